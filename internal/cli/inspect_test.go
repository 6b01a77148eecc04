package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmr-tortoise/envrebuild/internal/model"
)

func TestInspect_PagesUntilDeclined(t *testing.T) {
	h := newHarness(t, "base.yml", "gpu.yaml")

	code := h.run("1\ny\n2\nn\n", "--inspect")
	assert.Equal(t, model.ExitSuccess, code)
	assert.Equal(t, []string{
		filepath.Join(h.root, "base.yml"),
		filepath.Join(h.root, "gpu.yaml"),
	}, h.pager.paged)
	assert.Empty(t, h.pm.calls)
}

func TestInspect_DefaultAnswerStops(t *testing.T) {
	h := newHarness(t, "base.yml")

	assert.Equal(t, model.ExitSuccess, h.run("1\n\n", "--inspect"))
	assert.Len(t, h.pager.paged, 1)
}

func TestInspect_InvalidSelectionReprompts(t *testing.T) {
	h := newHarness(t, "base.yml", "gpu.yaml")

	code := h.run("abc\n7\n0\n2\nn\n", "--inspect")
	assert.Equal(t, model.ExitSuccess, code)
	assert.Equal(t, []string{filepath.Join(h.root, "gpu.yaml")}, h.pager.paged)

	out := h.stdout.String()
	assert.Contains(t, out, `"abc" is not a number`)
	assert.Contains(t, out, "7 is out of range")
	assert.Contains(t, out, "0 is out of range")
}

func TestInspect_EndOfInputStopsQuietly(t *testing.T) {
	h := newHarness(t, "base.yml")

	assert.Equal(t, model.ExitSuccess, h.run("", "--inspect"))
	assert.Empty(t, h.pager.paged)
	assert.Empty(t, h.stderr.String())
}

func TestInspect_NoFiles(t *testing.T) {
	h := newHarness(t, "base.yml")

	assert.Equal(t, model.ExitFatal, h.run("1\n", "--inspect", "--filter", "gpu"))
	assert.Empty(t, h.pager.paged)
}

type failingPager struct{}

func (failingPager) Page(string) error { return errors.New("less: not found") }

func TestInspect_PagerFailure(t *testing.T) {
	h := newHarness(t, "base.yml")
	opts := h.options("1\n")
	opts.Pager = failingPager{}

	code := Run(t.Context(), []string{"--inspect"}, opts)
	assert.Equal(t, model.ExitFatal, code)
	assert.Contains(t, h.stderr.String(), "Error: failed to show base.yml: less: not found")
}

func TestInspect_InterruptedAtSelection(t *testing.T) {
	h := newHarness(t, "base.yml")

	code, out := h.runInterrupted(t, "Select an environment file to inspect", "--inspect")
	assert.Equal(t, model.ExitSuccess, code)
	assert.Contains(t, out, "1) base.yml\n")
	assert.Empty(t, h.pager.paged)
	assert.Empty(t, h.stderr.String())
}
