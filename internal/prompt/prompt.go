package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmr-tortoise/envrebuild/internal/model"
)

// ErrNoInput is returned when input ends before a valid answer is read.
var ErrNoInput = errors.New("no input")

// Prompter reads answers line by line from In and writes questions to Out.
// A single Prompter must be reused for a whole session so that buffered
// input is not lost between questions.
type Prompter struct {
	// in buffers the answer stream; only one read is in flight at a time.
	in *bufio.Reader

	// out receives questions and validation messages.
	out io.Writer

	// pending is a read left running by a cancelled prompt. The next
	// prompt collects its answer instead of starting a second reader.
	pending chan lineResult
}

// lineResult is the outcome of one background ReadString call.
type lineResult struct {
	line string
	err  error
}

// New creates a Prompter over the given input and output.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned as-is; io.EOF is only reported when
// nothing at all was read.
//
// Reading from a terminal cannot be interrupted, so the read runs in its
// own goroutine and readLine returns ctx.Err() as soon as ctx is done.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ch := p.pending
	p.pending = nil
	if ch == nil {
		ch = make(chan lineResult, 1)
		go func() {
			line, err := p.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	var r lineResult
	select {
	case <-ctx.Done():
		p.pending = ch
		return "", ctx.Err()
	case r = <-ch:
	}

	if r.err != nil {
		if errors.Is(r.err, io.EOF) && r.line != "" {
			return strings.TrimRight(r.line, "\r\n"), nil
		}
		return "", r.err
	}
	return strings.TrimRight(r.line, "\r\n"), nil
}

// SelectIndex asks for a 1-based index into list until the answer is
// valid. Non-numeric and out-of-range answers are reported and the
// question is repeated. It returns ErrNoInput when input is exhausted and
// ctx.Err() when ctx is cancelled while waiting.
func (p *Prompter) SelectIndex(ctx context.Context, question string, list model.EnvFileList) (model.Selection, error) {
	for {
		fmt.Fprintf(p.out, "%s [1-%d]: ", question, list.Len())

		line, err := p.readLine(ctx)
		if err != nil {
			fmt.Fprintln(p.out)
			if errors.Is(err, io.EOF) {
				return model.Selection{}, ErrNoInput
			}
			if ctx.Err() != nil {
				return model.Selection{}, err
			}
			return model.Selection{}, fmt.Errorf("failed to read input: %w", err)
		}

		sel := model.ParseSelection(line, list)
		switch sel.Kind {
		case model.SelectionValid:
			return sel, nil
		case model.SelectionOutOfRange:
			fmt.Fprintf(p.out, "%d is out of range, enter a number between 1 and %d\n", sel.Index, list.Len())
		default:
			fmt.Fprintf(p.out, "%q is not a number, enter a number between 1 and %d\n", strings.TrimSpace(line), list.Len())
		}
	}
}

// Confirm asks a yes/no question. An empty answer, or end of input,
// selects defaultYes. Anything other than y/yes/n/no repeats the question.
// Cancelling ctx returns ctx.Err().
func (p *Prompter) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	for {
		fmt.Fprintf(p.out, "%s %s ", question, hint)

		line, err := p.readLine(ctx)
		if err != nil {
			fmt.Fprintln(p.out)
			if errors.Is(err, io.EOF) {
				return defaultYes, nil
			}
			if ctx.Err() != nil {
				return false, err
			}
			return false, fmt.Errorf("failed to read input: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}
