package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/mmr-tortoise/envrebuild/internal/envfile"
	"github.com/mmr-tortoise/envrebuild/internal/model"
)

// runList prints the numbered listing, or its JSON form with --json.
func (a *app) runList(root string, files model.EnvFileList) error {
	if err := requireFiles(root, a.flags.Filter, files); err != nil {
		return err
	}

	if a.flags.JSON {
		return printListJSON(a.opts.Stdout, root, a.flags.Filter, files)
	}
	printListing(a.opts.Stdout, files)
	return nil
}

// requireFiles fails when discovery found nothing. list, inspect, and
// create all need at least one file.
func requireFiles(root, filter string, files model.EnvFileList) error {
	if files.Len() == 0 {
		return model.Fatal("no environment files matching %s (filter %q) in %s",
			envfile.Pattern(filter), filter, root)
	}
	return nil
}

// printListing writes one "N) name" line per file, numbered from 1.
func printListing(w io.Writer, files model.EnvFileList) {
	for i, name := range files {
		fmt.Fprintf(w, "%d) %s\n", i+1, name)
	}
}

// listFileJSON describes one environment file in the JSON listing.
type listFileJSON struct {
	Index        int      `json:"index"`
	File         string   `json:"file"`
	Name         string   `json:"name,omitempty"`
	Channels     []string `json:"channels,omitempty"`
	Dependencies int      `json:"dependencies"`
	Error        string   `json:"error,omitempty"`
}

// printListJSON outputs the listing as structured JSON, with the summary
// of each definition. Files that fail to parse carry an "error" field
// instead of failing the whole listing.
func printListJSON(w io.Writer, root, filter string, files model.EnvFileList) error {
	type resultJSON struct {
		Root   string         `json:"root"`
		Filter string         `json:"filter"`
		Files  []listFileJSON `json:"files"`
	}

	result := resultJSON{
		Root:   root,
		Filter: filter,
		Files:  make([]listFileJSON, 0, files.Len()),
	}

	for i, name := range files {
		entry := listFileJSON{Index: i + 1, File: name}
		def, err := envfile.Load(filepath.Join(root, name))
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Name = def.Name
			entry.Channels = def.Channels
			entry.Dependencies = def.PackageCount()
		}
		result.Files = append(result.Files, entry)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return model.WrapCLIError(model.ExitFatal, "failed to encode listing", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
