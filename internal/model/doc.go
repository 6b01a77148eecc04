// Package model defines the domain types and value objects for the
// envrebuild CLI.
//
// This package contains pure data structures with no external dependencies.
// All entities (Config, EnvFileList, InvocationFlags, Selection) are
// transient: they are built once per invocation from the config file, the
// command line, and a directory scan. Nothing is persisted by envrebuild
// itself.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
