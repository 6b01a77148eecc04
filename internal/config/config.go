package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mmr-tortoise/envrebuild/internal/model"
)

// DefaultPath is the fixed location of the configuration file.
const DefaultPath = "/etc/envrebuild/envrebuild.conf"

// Required configuration keys.
const (
	KeyEnvFilesRoot   = "ENV_FILES_ROOT"
	KeyCondaRoot      = "CONDA_ROOT"
	KeyLocalSSDRoot   = "LOCAL_SSD_ROOT"
	KeyPackageManager = "PKG_MANAGER"
)

// RequiredKeys lists the keys in the order they are validated, so the
// first missing key reported is deterministic.
var RequiredKeys = []string{KeyEnvFilesRoot, KeyCondaRoot, KeyLocalSSDRoot, KeyPackageManager}

// Load reads the config file at path and returns the validated Config.
//
// Only lines of the form KEY=value for the required keys are read; every
// other line is ignored. Surrounding quote characters are stripped and the
// rest of the value is taken literally: no $VAR expansion and no escape
// sequences. Every failure is returned as a CLIError with ExitFatal.
func Load(path string) (*model.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.Fatal("config file not found: %s", path)
		}
		return nil, model.WrapCLIError(model.ExitFatal, fmt.Sprintf("failed to open config file %s", path), err)
	}
	defer func() { _ = f.Close() }()

	literal, err := extract(f)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitFatal, fmt.Sprintf("failed to read config file %s", path), err)
	}

	values, err := godotenv.Unmarshal(literal)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitFatal, fmt.Sprintf("failed to parse config file %s", path), err)
	}
	for key, value := range values {
		values[key] = strings.ReplaceAll(value, `\'`, "'")
	}

	return fromValues(path, values)
}

// extract keeps the required KEY=value lines of r and rewrites each value
// as a single-quoted dotenv value, which godotenv leaves unexpanded.
// A later line for the same key overrides an earlier one.
//
//	ENV_FILES_ROOT="/data/$USER"  →  ENV_FILES_ROOT='/data/$USER '
//
// Single quotes inside the value are written as \' and restored by Load.
// The trailing space keeps a final backslash from escaping the closing
// quote; values are trimmed afterwards.
func extract(r io.Reader) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimRight(scanner.Text(), "\r"), "=")
		if !ok || !slices.Contains(RequiredKeys, key) {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		fmt.Fprintf(&b, "%s='%s '\n", key, strings.ReplaceAll(value, "'", `\'`))
	}
	return b.String(), scanner.Err()
}

// fromValues validates the parsed key/value map and builds a Config.
func fromValues(path string, values map[string]string) (*model.Config, error) {
	for _, key := range RequiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			return nil, model.Fatal("required variable %s is not set in %s", key, path)
		}
	}

	pm, err := model.ParsePackageManager(values[KeyPackageManager])
	if err != nil {
		return nil, model.WrapCLIError(model.ExitFatal, fmt.Sprintf("invalid %s in %s", KeyPackageManager, path), err)
	}

	return &model.Config{
		EnvFilesRoot:   strings.TrimSpace(values[KeyEnvFilesRoot]),
		CondaRoot:      strings.TrimSpace(values[KeyCondaRoot]),
		LocalSSDRoot:   strings.TrimSpace(values[KeyLocalSSDRoot]),
		PackageManager: pm,
	}, nil
}
