package pkgmgr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/mmr-tortoise/envrebuild/internal/model"
)

// DefaultShell runs the wrapper script. conda.sh and mamba.sh both
// support bash.
const DefaultShell = "bash"

// stderrTailLines is how much of the package manager's stderr is kept on
// a RunError.
const stderrTailLines = 20

// InitScript returns the path of a shell-integration script under root.
// name is "conda" or "mamba".
func InitScript(root, name string) string {
	return filepath.Join(root, "etc", "profile.d", name+".sh")
}

// Manager runs package-manager subcommands through the bootstrap wrapper.
// Construct it with Bootstrap.
type Manager struct {
	// pm selects the command run after the init scripts (conda or mamba).
	pm model.PackageManager

	// condaRoot is the installation root; its condabin directory is put
	// first on PATH for every subprocess.
	condaRoot string

	// scripts are the shell-integration files sourced, in order, before
	// each command. Bootstrap has checked that they exist.
	scripts []string

	// Shell is the interpreter for the wrapper script.
	Shell string

	// Stdout and Stderr receive the streamed output of env create.
	// They default to the process's own stdout/stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives debug traces of each invocation.
	Logger *log.Logger
}

// Bootstrap verifies that the shell integration for the configured package
// manager exists and returns a Manager ready to run it.
//
// conda needs <root>/etc/profile.d/conda.sh. mamba needs that script and
// <root>/etc/profile.d/mamba.sh. A missing script is fatal and the error
// names the file.
func Bootstrap(cfg *model.Config) (*Manager, error) {
	condaScript := InitScript(cfg.CondaRoot, "conda")
	if !isFile(condaScript) {
		return nil, model.Fatal("conda shell integration not found: %s", condaScript)
	}
	scripts := []string{condaScript}

	if cfg.PackageManager == model.ManagerMamba {
		mambaScript := InitScript(cfg.CondaRoot, "mamba")
		if !isFile(mambaScript) {
			return nil, model.Fatal("mamba shell integration not found: %s", mambaScript)
		}
		scripts = append(scripts, mambaScript)
	}

	return &Manager{
		pm:        cfg.PackageManager,
		condaRoot: cfg.CondaRoot,
		scripts:   scripts,
		Shell:     DefaultShell,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Logger:    log.Default(),
	}, nil
}

// Name returns the package manager this Manager invokes.
func (m *Manager) Name() model.PackageManager {
	return m.pm
}

// Scripts returns the init scripts sourced before every invocation.
func (m *Manager) Scripts() []string {
	return append([]string(nil), m.scripts...)
}

// Script builds the wrapper shell script for `<pm> args...`.
func (m *Manager) Script(args ...string) (string, error) {
	parts := make([]string, 0, len(m.scripts)+1)
	for _, s := range m.scripts {
		q, err := syntax.Quote(s, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("cannot quote init script path %q: %w", s, err)
		}
		parts = append(parts, ". "+q)
	}

	words := make([]string, 0, len(args)+1)
	words = append(words, m.pm.String())
	for _, a := range args {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("cannot quote argument %q: %w", a, err)
		}
		words = append(words, q)
	}
	parts = append(parts, strings.Join(words, " "))

	return strings.Join(parts, " && "), nil
}

// Environ returns the environment for package-manager subprocesses: base
// with CONDA_ROOT set and <root>/condabin prepended to PATH.
func (m *Manager) Environ(base []string) []string {
	condabin := filepath.Join(m.condaRoot, "condabin")
	env := make([]string, 0, len(base)+2)
	path := ""
	for _, kv := range base {
		key, value, _ := strings.Cut(kv, "=")
		switch key {
		case "PATH":
			path = value
		case "CONDA_ROOT":
			// replaced below
		default:
			env = append(env, kv)
		}
	}
	if path == "" {
		path = condabin
	} else {
		path = condabin + string(os.PathListSeparator) + path
	}
	return append(env, "PATH="+path, "CONDA_ROOT="+m.condaRoot)
}

// command prepares the wrapper invocation for `<pm> args...`.
func (m *Manager) command(ctx context.Context, args ...string) (*exec.Cmd, error) {
	script, err := m.Script(args...)
	if err != nil {
		return nil, err
	}
	m.logger().Debug("running package manager", "shell", m.Shell, "script", script)

	// #nosec G204 -- every token is shell-quoted by Script
	cmd := exec.CommandContext(ctx, m.Shell, "-c", script)
	cmd.Env = m.Environ(os.Environ())
	return cmd, nil
}

// ListEnvs runs `<pm> env list` and returns its standard output.
func (m *Manager) ListEnvs(ctx context.Context) (string, error) {
	args := []string{"env", "list"}
	cmd, err := m.command(ctx, args...)
	if err != nil {
		return "", err
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", m.runError(args, err, stderr.String())
	}
	return stdout.String(), nil
}

// CreateNamed runs `<pm> env create --name <name> -f <file>`.
func (m *Manager) CreateNamed(ctx context.Context, name, file string) error {
	return m.stream(ctx, "env", "create", "--name", name, "-f", file)
}

// CreatePrefix runs `<pm> env create --prefix <prefix> -f <file>`.
func (m *Manager) CreatePrefix(ctx context.Context, prefix, file string) error {
	return m.stream(ctx, "env", "create", "--prefix", prefix, "-f", file)
}

// stream runs a long package-manager command with its output forwarded to
// m.Stdout / m.Stderr. The stderr tail is kept for the error report.
func (m *Manager) stream(ctx context.Context, args ...string) error {
	cmd, err := m.command(ctx, args...)
	if err != nil {
		return err
	}

	// Output goes to the user as it arrives; a copy of stderr is kept so
	// the failure report can quote it.
	var stderr strings.Builder
	cmd.Stdout = m.Stdout
	cmd.Stderr = &stderr
	if m.Stderr != nil {
		cmd.Stderr = io.MultiWriter(m.Stderr, &stderr)
	}

	if err := cmd.Run(); err != nil {
		return m.runError(args, err, stderr.String())
	}
	return nil
}

// runError builds the RunError for a failed invocation of args.
func (m *Manager) runError(args []string, err error, stderr string) *RunError {
	runErr := &RunError{
		Args:     append([]string{m.pm.String()}, args...),
		ExitCode: -1,
		Stderr:   tail(stderr, stderrTailLines),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		runErr.ExitCode = exitErr.ExitCode()
	}
	return runErr
}

// logger returns m.Logger, or the package default when none was set.
func (m *Manager) logger() *log.Logger {
	if m.Logger == nil {
		return log.Default()
	}
	return m.Logger
}

// RunError reports a package-manager invocation that did not succeed.
type RunError struct {
	// Args is the package-manager command line, starting with its name.
	Args []string

	// ExitCode is the subprocess exit status, or -1 when it never ran.
	ExitCode int

	// Stderr holds the last lines of the subprocess's standard error.
	Stderr string

	// Err is the error from exec: an *exec.ExitError for a non-zero exit,
	// or the reason the shell could not be started at all.
	Err error
}

// Error describes the failed command and its exit status.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.ExitCode < 0 {
		msg = fmt.Sprintf("%s could not be run: %v", strings.Join(e.Args, " "), e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying exec error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// HomeEnvNames extracts environment names from `env list` output, keeping
// only environments whose path lies under home. The name is the first
// whitespace-separated field; comment lines are ignored. A path matches
// when it is home itself or starts with home followed by a separator, so
// /home/al does not claim /home/alice/...
//
//	# conda environments:
//	base                  *  /opt/conda
//	analysis                 /home/alice/.conda/envs/analysis   → "analysis"
func HomeEnvNames(output, home string) []string {
	if home == "" {
		return nil
	}
	home = filepath.Clean(home)
	prefix := home
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	var names []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		for _, field := range fields[1:] {
			if field == home || strings.HasPrefix(field, prefix) {
				names = append(names, fields[0])
				break
			}
		}
	}
	return names
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
