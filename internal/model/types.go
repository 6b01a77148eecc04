package model

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// PackageManager identifies which external tool materializes environments.
// Both implementations accept the same `env list` / `env create` subcommands.
type PackageManager string

const (
	// ManagerConda is the primary package manager. Its shell integration
	// lives in <root>/etc/profile.d/conda.sh.
	ManagerConda PackageManager = "conda"

	// ManagerMamba is the faster drop-in alternative. It needs the conda
	// integration script plus its own mamba.sh.
	ManagerMamba PackageManager = "mamba"
)

// String returns the executable name of the package manager.
func (p PackageManager) String() string {
	return string(p)
}

// IsValid checks whether the PackageManager is one of the supported tools.
func (p PackageManager) IsValid() bool {
	switch p {
	case ManagerConda, ManagerMamba:
		return true
	default:
		return false
	}
}

// ParsePackageManager converts a config value to a PackageManager.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParsePackageManager(s string) (PackageManager, error) {
	pm := PackageManager(strings.ToLower(strings.TrimSpace(s)))
	if !pm.IsValid() {
		return "", fmt.Errorf("invalid package manager: %q (valid: conda, mamba)", s)
	}
	return pm, nil
}

// Config holds the four required values read from the config file.
// It is loaded once at startup and never mutated afterwards; actions
// receive it explicitly instead of reading process-wide state.
type Config struct {
	// EnvFilesRoot is the directory scanned for environment-definition files.
	EnvFilesRoot string

	// CondaRoot is the root of the conda/mamba installation. The shell
	// integration scripts are resolved relative to it.
	CondaRoot string

	// LocalSSDRoot is the job-scoped scratch directory used with --ssd.
	LocalSSDRoot string

	// PackageManager is the executable used for env list / env create.
	PackageManager PackageManager
}

// EnvFileList is the ordered list of environment-definition base names
// found by a directory scan. User-facing numbering is 1-based.
type EnvFileList []string

// Len returns the number of files in the list.
func (l EnvFileList) Len() int {
	return len(l)
}

// At resolves a 1-based index. The boolean is false when the index is
// outside [1, Len()].
func (l EnvFileList) At(index int) (string, bool) {
	if index < 1 || index > len(l) {
		return "", false
	}
	return l[index-1], true
}

// InvocationFlags is the parsed command-line state. It is populated by the
// cobra flag set and is read-only once actions start.
type InvocationFlags struct {
	// List prints the numbered file listing.
	List bool

	// Inspect pages through files chosen interactively.
	Inspect bool

	// Filter is the substring inserted into the discovery glob.
	Filter string

	// Local overrides the configured EnvFilesRoot for this invocation.
	Local string

	// Create is the name of the environment to build. Empty means no create.
	Create string

	// SSD targets LocalSSDRoot/<Create> instead of the home directory.
	SSD bool

	// JSON switches the listing to structured output.
	JSON bool

	// Verbose enables debug logging on stderr.
	Verbose bool
}

// HasAction reports whether any of list, inspect, or create was requested.
// Invocations without an action only print help.
func (f *InvocationFlags) HasAction() bool {
	return f.List || f.Inspect || f.Create != ""
}

// SelectionKind classifies what the user typed at an index prompt.
type SelectionKind int

const (
	// SelectionValid means the input parsed and resolved to a list entry.
	SelectionValid SelectionKind = iota

	// SelectionOutOfRange means the input was an integer outside [1, N].
	SelectionOutOfRange

	// SelectionNonNumeric means the input was not an integer literal.
	SelectionNonNumeric
)

// String returns a short name for the selection kind.
func (k SelectionKind) String() string {
	switch k {
	case SelectionValid:
		return "valid"
	case SelectionOutOfRange:
		return "out-of-range"
	case SelectionNonNumeric:
		return "non-numeric"
	default:
		return "unknown"
	}
}

// Selection is the outcome of parsing one line of index input.
type Selection struct {
	Kind SelectionKind

	// Index is the 1-based index the user typed. Zero for non-numeric input.
	Index int

	// File is the resolved base name. Only set when Kind is SelectionValid.
	File string
}

// ParseSelection interprets input as a 1-based index into list.
// Negative and zero values parse as integers and are reported out of range.
func ParseSelection(input string, list EnvFileList) Selection {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return Selection{Kind: SelectionNonNumeric}
	}
	file, ok := list.At(n)
	if !ok {
		return Selection{Kind: SelectionOutOfRange, Index: n}
	}
	return Selection{Kind: SelectionValid, Index: n, File: file}
}

// ValidateEnvName checks that name is usable as a conda environment name
// and as a directory name under the scratch root.
func ValidateEnvName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name must not be empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid environment name %q", name)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid environment name %q: must not start with '-'", name)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || strings.ContainsRune(`/\:#`, r) {
			return fmt.Errorf("invalid environment name %q: must not contain whitespace or any of / \\ : #", name)
		}
	}
	return nil
}

// ExitCode defines the process exit codes used by envrebuild.
type ExitCode int

const (
	// ExitSuccess covers help, version, and every completed action,
	// including "already exists" no-ops.
	ExitSuccess ExitCode = 0

	// ExitFatal is returned for every unrecoverable condition: config
	// problems, missing directories or init scripts, bad flag values,
	// empty file lists, and failed package-manager invocations.
	ExitFatal ExitCode = 200
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// Fatal is shorthand for a formatted CLIError with ExitFatal.
func Fatal(format string, args ...interface{}) *CLIError {
	return NewCLIError(ExitFatal, fmt.Sprintf(format, args...))
}
