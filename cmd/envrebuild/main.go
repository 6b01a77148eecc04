// Package main is the entry point for the envrebuild CLI.
//
// envrebuild builds conda/mamba environments from the shared environment
// files of a site. It delegates all functionality to the internal/cli
// package.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release build. During development, they default to "dev",
// "none", and "unknown" respectively.
package main

import (
	"github.com/mmr-tortoise/envrebuild/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
// They provide binary identification for the --version flag output.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	// Execute loads /etc/envrebuild/envrebuild.conf, runs the requested
	// actions, and exits with 0 or 200.
	cli.Execute()
}
