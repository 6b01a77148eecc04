package envfile

import (
	"fmt"
	"io"
	"os"
)

// TempPattern is the os.CreateTemp pattern for working copies. The random
// part makes concurrent invocations on the same host use distinct paths.
const TempPattern = "envrebuild-*.yml"

// CopyToTemp copies the environment file at src into a new, uniquely named
// file in dir (os.TempDir() when dir is empty) and returns its path.
//
// The returned cleanup function removes the copy. It is safe to call more
// than once and is non-nil even on error, so callers can always defer it:
//
//	tmp, cleanup, err := envfile.CopyToTemp(path, "")
//	defer cleanup()
func CopyToTemp(src, dir string) (string, func(), error) {
	noop := func() {}

	srcFile, err := os.Open(src)
	if err != nil {
		return "", noop, fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := dstFile.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to copy %s to %s: %w", src, tmpPath, err)
	}
	if err := dstFile.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	return tmpPath, cleanup, nil
}
