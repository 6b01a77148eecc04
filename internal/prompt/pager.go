package prompt

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// DefaultPager is used when $PAGER is unset.
const DefaultPager = "less"

// Pager shows a file to the user.
type Pager struct {
	// Command is the pager command line, split on whitespace
	// (e.g. "less -R").
	Command string

	// In and Out are connected to the pager process. When Out is not a
	// terminal the file is copied to Out instead of running the pager.
	In  io.Reader
	Out io.Writer

	// AlwaysExec runs Command even when Out is not a terminal.
	AlwaysExec bool
}

// NewPager returns a Pager using $PAGER (or less) on the given streams.
func NewPager(in io.Reader, out io.Writer) *Pager {
	cmd := strings.TrimSpace(os.Getenv("PAGER"))
	if cmd == "" {
		cmd = DefaultPager
	}
	return &Pager{Command: cmd, In: in, Out: out}
}

// Page displays the file at path.
func (p *Pager) Page(path string) error {
	if !p.AlwaysExec && !isTerminal(p.Out) {
		return p.copy(path)
	}

	fields := strings.Fields(p.Command)
	if len(fields) == 0 {
		return p.copy(path)
	}

	// #nosec G204 -- the pager comes from the user's own $PAGER
	cmd := exec.Command(fields[0], append(fields[1:], path)...)
	cmd.Stdin = p.In
	cmd.Stdout = p.Out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pager %q failed on %s: %w", p.Command, path, err)
	}
	return nil
}

func (p *Pager) copy(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(p.Out, f); err != nil {
		return fmt.Errorf("failed to show %s: %w", path, err)
	}
	return nil
}

// isTerminal reports whether w is a file descriptor attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
