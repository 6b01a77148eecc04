package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmr-tortoise/envrebuild/internal/model"
)

// Pattern builds the discovery glob for the given filter substring.
//
//	Pattern("")    → "*.y*ml"
//	Pattern("gpu") → "*gpu*.y*ml"
func Pattern(filter string) string {
	if filter == "" {
		return "*.y*ml"
	}
	return "*" + filter + "*.y*ml"
}

// Discover lists the environment-definition files directly inside root
// that match Pattern(filter).
//
// Subdirectories are never descended into, and entries that are
// directories themselves are skipped even when their names match. Names
// starting with "." are skipped as well, matching how a shell expands a
// leading "*". The result is in the lexical order os.ReadDir returns.
//
// A missing or non-directory root and a malformed filter are fatal.
// An empty result is not an error here; callers decide what to do with it.
func Discover(root, filter string) (model.EnvFileList, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.Fatal("environment file directory not found: %s", root)
		}
		return nil, model.WrapCLIError(model.ExitFatal, fmt.Sprintf("cannot access environment file directory %s", root), err)
	}
	if !info.IsDir() {
		return nil, model.Fatal("environment file root is not a directory: %s", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitFatal, fmt.Sprintf("failed to read %s", root), err)
	}

	pattern := Pattern(filter)
	// Validate the pattern once up front so a bad filter is reported even
	// when the directory is empty.
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, model.WrapCLIError(model.ExitFatal, fmt.Sprintf("invalid filter %q", filter), err)
	}

	files := model.EnvFileList{}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || isDir(root, entry) {
			continue
		}
		// The error was already ruled out above.
		if ok, _ := filepath.Match(pattern, name); ok {
			files = append(files, name)
		}
	}
	return files, nil
}

// isDir reports whether entry is a directory, following symlinks so that a
// link to a directory is skipped too.
func isDir(root string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(root, entry.Name()))
	return err == nil && info.IsDir()
}
