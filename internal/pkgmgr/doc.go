// Package pkgmgr bootstraps and runs the external package manager
// (conda or mamba).
//
// Both tools need their shell integration sourced before the `conda` /
// `mamba` command behaves correctly; the integration defines shell
// functions and exports variables. Rather than trying to replay those side
// effects in the Go process, every invocation runs through a short wrapper
// script executed by bash:
//
//	. <root>/etc/profile.d/conda.sh && [. <root>/etc/profile.d/mamba.sh &&] <pm> env ...
//
// Every token is shell-quoted with mvdan.cc/sh/v3/syntax, and the
// subprocess environment is the caller's plus CONDA_ROOT and
// <root>/condabin on PATH. Nothing in the current process is mutated.
package pkgmgr
