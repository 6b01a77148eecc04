package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/envrebuild/internal/model"
)

// writeConfig writes content to a config file inside a fresh temp dir
// and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "envrebuild.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// requireFatal asserts that err is a CLIError carrying ExitFatal and
// returns it for further checks.
func requireFatal(t *testing.T, err error) *model.CLIError {
	t.Helper()

	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %T", err)
	assert.Equal(t, model.ExitFatal, cliErr.Code)
	return cliErr
}

func TestLoad_QuotedAndBareValues(t *testing.T) {
	path := writeConfig(t, `# envrebuild site config
ENV_FILES_ROOT="/shared/envs"
CONDA_ROOT='/opt/miniforge'
LOCAL_SSD_ROOT=/lscratch/job
PKG_MANAGER="mamba"
UNRELATED=ignored
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/shared/envs", cfg.EnvFilesRoot)
	assert.Equal(t, "/opt/miniforge", cfg.CondaRoot)
	assert.Equal(t, "/lscratch/job", cfg.LocalSSDRoot)
	assert.Equal(t, model.ManagerMamba, cfg.PackageManager)
}

func TestLoad_FileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.conf")

	_, err := Load(path)
	cliErr := requireFatal(t, err)
	assert.Contains(t, cliErr.Message, "config file not found")
	assert.Contains(t, cliErr.Message, path)
}

// TestLoad_MissingRequiredKey removes each required key in turn and checks
// that the loader names it.
func TestLoad_MissingRequiredKey(t *testing.T) {
	full := map[string]string{
		KeyEnvFilesRoot:   "/shared/envs",
		KeyCondaRoot:      "/opt/conda",
		KeyLocalSSDRoot:   "/lscratch",
		KeyPackageManager: "conda",
	}

	for _, missing := range RequiredKeys {
		t.Run(missing, func(t *testing.T) {
			content := ""
			for _, key := range RequiredKeys {
				if key == missing {
					continue
				}
				content += key + "=\"" + full[key] + "\"\n"
			}

			_, err := Load(writeConfig(t, content))
			cliErr := requireFatal(t, err)
			assert.Contains(t, cliErr.Message, missing)
		})
	}
}

func TestLoad_EmptyValue(t *testing.T) {
	path := writeConfig(t, `ENV_FILES_ROOT="/shared/envs"
CONDA_ROOT=""
LOCAL_SSD_ROOT=/lscratch
PKG_MANAGER=conda
`)

	_, err := Load(path)
	cliErr := requireFatal(t, err)
	assert.Contains(t, cliErr.Message, KeyCondaRoot)
}

func TestLoad_InvalidPackageManager(t *testing.T) {
	path := writeConfig(t, `ENV_FILES_ROOT=/shared/envs
CONDA_ROOT=/opt/conda
LOCAL_SSD_ROOT=/lscratch
PKG_MANAGER=pip
`)

	_, err := Load(path)
	cliErr := requireFatal(t, err)
	assert.Contains(t, cliErr.Message, KeyPackageManager)
}

// TestLoad_ValuesAreLiteral checks that dollar signs and backslashes are
// kept as written, whether the value is quoted or not.
func TestLoad_ValuesAreLiteral(t *testing.T) {
	path := writeConfig(t, `ENV_FILES_ROOT="/data/envs$HOME/x"
CONDA_ROOT="C:\new\conda\"
LOCAL_SSD_ROOT=/lscratch/$SLURM_JOB_ID
PKG_MANAGER=conda
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/envs$HOME/x", cfg.EnvFilesRoot)
	assert.Equal(t, `C:\new\conda\`, cfg.CondaRoot)
	assert.Equal(t, "/lscratch/$SLURM_JOB_ID", cfg.LocalSSDRoot)
}

func TestLoad_EmbeddedQuotes(t *testing.T) {
	path := writeConfig(t, `ENV_FILES_ROOT="/shared/bob's envs"
CONDA_ROOT=/opt/it\'s
LOCAL_SSD_ROOT=/lscratch
PKG_MANAGER=conda
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/shared/bob's envs", cfg.EnvFilesRoot)
	assert.Equal(t, `/opt/it\'s`, cfg.CondaRoot)
}

// TestLoad_IgnoresOtherLines checks that lines which are not KEY=value
// for a required key do not make the file unreadable.
func TestLoad_IgnoresOtherLines(t *testing.T) {
	path := writeConfig(t, "some garbage line\r\n"+
		"  ENV_FILES_ROOT=/indented/is/ignored\r\n"+
		"export PKG_MANAGER=mamba\r\n"+
		"ENV_FILES_ROOT=/shared/envs\r\n"+
		"CONDA_ROOT=/opt/conda\r\n"+
		"LOCAL_SSD_ROOT=/lscratch\r\n"+
		"PKG_MANAGER=conda\r\n"+
		"= no key\r\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/shared/envs", cfg.EnvFilesRoot)
	assert.Equal(t, model.ManagerConda, cfg.PackageManager)
}

func TestLoad_LastLineWins(t *testing.T) {
	path := writeConfig(t, `ENV_FILES_ROOT=/old
ENV_FILES_ROOT=/new
CONDA_ROOT=/opt/conda
LOCAL_SSD_ROOT=/lscratch
PKG_MANAGER=conda
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/new", cfg.EnvFilesRoot)
}
