package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/mmr-tortoise/envrebuild/internal/envfile"
	"github.com/mmr-tortoise/envrebuild/internal/model"
	"github.com/mmr-tortoise/envrebuild/internal/pkgmgr"
	"github.com/mmr-tortoise/envrebuild/internal/prompt"
)

// Create outcomes reported to the user.
const (
	statusCreated = "created"
	statusExists  = "exists"
)

// createResult is what runCreate reports, in text or JSON.
type createResult struct {
	// Name is the environment name given to --create.
	Name string `json:"name"`

	// File is the chosen environment file, relative to the listing root.
	File string `json:"file"`

	// Location is "home" or "ssd".
	Location string `json:"location"`

	// Target is the prefix directory for --ssd creates; empty for home.
	Target string `json:"target,omitempty"`

	// Status is statusCreated or statusExists.
	Status string `json:"status"`
}

// runCreate builds the environment named by --create from a file the
// user picks.
//
// Orchestration steps:
//  1. Show the listing and read a valid index
//  2. Check the chosen file parses as an environment definition
//  3. Skip when the target environment already exists (never overwrites)
//  4. Copy the file to a unique temp path, run env create, remove the copy
func (a *app) runCreate(ctx context.Context, pm PackageManager, root string, files model.EnvFileList) error {
	name := a.flags.Create
	if err := requireFiles(root, a.flags.Filter, files); err != nil {
		return err
	}
	printListing(a.opts.Stdout, files)

	sel, err := a.prompter.SelectIndex(ctx, fmt.Sprintf("Select an environment file for %q", name), files)
	if errors.Is(err, prompt.ErrNoInput) {
		return model.Fatal("no environment file selected for %q", name)
	}
	if ctx.Err() != nil {
		// Interrupted at the prompt: nothing was copied or created.
		return model.Fatal("interrupted before an environment file was selected for %q", name)
	}
	if err != nil {
		return model.WrapCLIError(model.ExitFatal, "failed to read user input", err)
	}

	src := filepath.Join(root, sel.File)
	if _, err := envfile.Load(src); err != nil {
		return model.WrapCLIError(model.ExitFatal, fmt.Sprintf("%s is not a valid environment file", sel.File), err)
	}
	a.verboseLog("Using %s for environment %q", src, name)

	var result *createResult
	if a.flags.SSD {
		result, err = a.createOnScratch(ctx, pm, name, src)
	} else {
		result, err = a.createInHome(ctx, pm, name, src)
	}
	if err != nil {
		return err
	}
	result.File = sel.File

	printCreateResult(a.opts.Stdout, a.flags.JSON, result)
	return nil
}

// createOnScratch builds the environment at <LocalSSDRoot>/<name> with
// env create --prefix. An existing directory there is left untouched.
func (a *app) createOnScratch(ctx context.Context, pm PackageManager, name, src string) (*createResult, error) {
	target := filepath.Join(a.cfg.LocalSSDRoot, name)
	result := &createResult{Name: name, Location: "ssd", Target: target}

	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		a.verboseLog("Target %s already exists, skipping", target)
		result.Status = statusExists
		return result, nil
	case err == nil:
		return nil, model.Fatal("%s exists and is not a directory", target)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, model.WrapCLIError(model.ExitFatal, fmt.Sprintf("cannot access %s", target), err)
	}

	err = a.withTempCopy(src, func(tmp string) error {
		return pm.CreatePrefix(ctx, target, tmp)
	})
	if err != nil {
		return nil, createFailed(name, err)
	}
	result.Status = statusCreated
	return result, nil
}

// createInHome builds a named environment in the user's home directory.
// Existing names are taken from `env list` lines that mention $HOME. A
// failing `env list` is fatal; creation is never attempted blind.
func (a *app) createInHome(ctx context.Context, pm PackageManager, name, src string) (*createResult, error) {
	result := &createResult{Name: name, Location: "home"}

	home, err := a.home()
	if err != nil {
		return nil, err
	}

	out, err := pm.ListEnvs(ctx)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitFatal, "failed to list existing environments", err)
	}
	existing := pkgmgr.HomeEnvNames(out, home)
	a.verboseLog("Existing environments under %s: %v", home, existing)

	if slices.Contains(existing, name) {
		result.Status = statusExists
		return result, nil
	}

	err = a.withTempCopy(src, func(tmp string) error {
		return pm.CreateNamed(ctx, name, tmp)
	})
	if err != nil {
		return nil, createFailed(name, err)
	}
	result.Status = statusCreated
	return result, nil
}

// withTempCopy runs fn with a private copy of src and removes the copy
// afterwards, whether fn succeeds or not.
func (a *app) withTempCopy(src string, fn func(tmp string) error) error {
	tmp, cleanup, err := envfile.CopyToTemp(src, a.opts.TempDir)
	defer cleanup()
	if err != nil {
		return err
	}
	a.verboseLog("Working copy %s", tmp)
	return fn(tmp)
}

// home returns the directory used to recognize home-directory envs.
func (a *app) home() (string, error) {
	if a.opts.Home != "" {
		return a.opts.Home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", model.WrapCLIError(model.ExitFatal, "cannot determine home directory", err)
	}
	return home, nil
}

func createFailed(name string, err error) error {
	return model.WrapCLIError(model.ExitFatal, fmt.Sprintf("failed to create environment %q", name), err)
}

// printCreateResult outputs the create result in text or JSON format.
func printCreateResult(w io.Writer, asJSON bool, r *createResult) {
	if asJSON {
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	where := "in your home directory"
	if r.Target != "" {
		where = "at " + r.Target
	}
	if r.Status == statusExists {
		fmt.Fprintf(w, "Environment %q already exists %s, nothing to do.\n", r.Name, where)
		return
	}
	fmt.Fprintf(w, "Created environment %q %s from %s\n", r.Name, where, r.File)
}
