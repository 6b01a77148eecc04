package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mmr-tortoise/envrebuild/internal/model"
	"github.com/mmr-tortoise/envrebuild/internal/prompt"
)

// runInspect shows the listing, then lets the user page through files
// until they decline to inspect another one. End of input and an interrupt
// (ctx cancelled) both stop the loop without an error.
func (a *app) runInspect(ctx context.Context, root string, files model.EnvFileList) error {
	if err := requireFiles(root, a.flags.Filter, files); err != nil {
		return err
	}
	printListing(a.opts.Stdout, files)

	for {
		sel, err := a.prompter.SelectIndex(ctx, "Select an environment file to inspect", files)
		if errors.Is(err, prompt.ErrNoInput) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return model.WrapCLIError(model.ExitFatal, "failed to read user input", err)
		}

		path := filepath.Join(root, sel.File)
		a.verboseLog("Paging %s", path)
		if err := a.opts.Pager.Page(path); err != nil {
			return model.WrapCLIError(model.ExitFatal, fmt.Sprintf("failed to show %s", sel.File), err)
		}

		again, err := a.prompter.Confirm(ctx, "Inspect another environment file?", false)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return model.WrapCLIError(model.ExitFatal, "failed to read user input", err)
		}
		if !again {
			return nil
		}
	}
}
