package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/envrebuild/internal/model"
)

// fakePM records package-manager calls instead of running conda.
type fakePM struct {
	envList   string
	listErr   error
	createErr error

	calls []string

	// tmpFiles are the -f arguments seen by create calls, and tmpContents
	// what those files held at call time.
	tmpFiles    []string
	tmpContents []string
}

func (f *fakePM) ListEnvs(ctx context.Context) (string, error) {
	f.calls = append(f.calls, "env list")
	return f.envList, f.listErr
}

func (f *fakePM) CreateNamed(ctx context.Context, name, file string) error {
	f.calls = append(f.calls, fmt.Sprintf("env create --name %s -f %s", name, file))
	f.record(file)
	return f.createErr
}

func (f *fakePM) CreatePrefix(ctx context.Context, prefix, file string) error {
	f.calls = append(f.calls, fmt.Sprintf("env create --prefix %s -f %s", prefix, file))
	f.record(file)
	return f.createErr
}

func (f *fakePM) record(file string) {
	f.tmpFiles = append(f.tmpFiles, file)
	data, err := os.ReadFile(file)
	if err != nil {
		f.tmpContents = append(f.tmpContents, "<missing>")
		return
	}
	f.tmpContents = append(f.tmpContents, string(data))
}

// fakePager records which files were paged.
type fakePager struct {
	paged []string
}

func (p *fakePager) Page(path string) error {
	p.paged = append(p.paged, path)
	return nil
}

// harness is a complete, isolated envrebuild installation in temp dirs:
// a config file, an env-file directory, a scratch root, and a temp dir
// for working copies.
type harness struct {
	configPath string
	root       string
	ssd        string
	tmp        string
	home       string

	pm           *fakePM
	pager        *fakePager
	bootstrapped bool
	bootstrapErr error

	stdout bytes.Buffer
	stderr bytes.Buffer
}

// newHarness creates the installation and writes each named env file
// with a minimal valid definition.
func newHarness(t *testing.T, files ...string) *harness {
	t.Helper()

	base := t.TempDir()
	h := &harness{
		configPath: filepath.Join(base, "envrebuild.conf"),
		root:       filepath.Join(base, "envs"),
		ssd:        filepath.Join(base, "lscratch"),
		tmp:        filepath.Join(base, "tmp"),
		home:       "/home/tester",
		pm:         &fakePM{envList: "# conda environments:\n#\nbase  *  /opt/conda\n"},
		pager:      &fakePager{},
	}
	for _, dir := range []string{h.root, h.ssd, h.tmp} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	h.writeConfig(t, fmt.Sprintf(`ENV_FILES_ROOT="%s"
CONDA_ROOT="%s"
LOCAL_SSD_ROOT="%s"
PKG_MANAGER="conda"
`, h.root, filepath.Join(base, "conda"), h.ssd))

	for _, name := range files {
		h.writeEnvFile(t, name, "name: "+strings.TrimSuffix(name, filepath.Ext(name))+"\ndependencies:\n  - python=3.11\n")
	}
	return h
}

func (h *harness) writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.configPath, []byte(content), 0o644))
}

func (h *harness) writeEnvFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.root, name), []byte(content), 0o644))
}

func (h *harness) options(stdin string) Options {
	return Options{
		ConfigPath: h.configPath,
		Stdin:      strings.NewReader(stdin),
		Stdout:     &h.stdout,
		Stderr:     &h.stderr,
		Home:       h.home,
		TempDir:    h.tmp,
		Bootstrap: func(cfg *model.Config) (PackageManager, error) {
			h.bootstrapped = true
			if h.bootstrapErr != nil {
				return nil, h.bootstrapErr
			}
			return h.pm, nil
		},
		Pager: h.pager,
	}
}

// run executes envrebuild with args, feeding stdin to the prompts.
func (h *harness) run(stdin string, args ...string) model.ExitCode {
	return Run(context.Background(), args, h.options(stdin))
}

// tmpEntries lists what is left in the working-copy directory.
func (h *harness) tmpEntries(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(h.tmp)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// promptWatcher is a goroutine-safe stdout that closes prompted once the
// given prompt text has been written.
type promptWatcher struct {
	prompt   string
	prompted chan struct{}

	mu   sync.Mutex
	buf  bytes.Buffer
	once sync.Once
}

func newPromptWatcher(prompt string) *promptWatcher {
	return &promptWatcher{prompt: prompt, prompted: make(chan struct{})}
}

func (w *promptWatcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.buf.Write(p)
	if strings.Contains(w.buf.String(), w.prompt) {
		w.once.Do(func() { close(w.prompted) })
	}
	return n, err
}

func (w *promptWatcher) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// runInterrupted starts envrebuild with a stdin that never delivers a
// line, cancels the context once prompt has been shown, and returns the
// exit code together with everything written to stdout.
func (h *harness) runInterrupted(t *testing.T, prompt string, args ...string) (model.ExitCode, string) {
	t.Helper()

	stdin, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })
	out := newPromptWatcher(prompt)

	opts := h.options("")
	opts.Stdin = stdin
	opts.Stdout = out

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan model.ExitCode, 1)
	go func() { done <- Run(ctx, args, opts) }()

	select {
	case <-out.prompted:
	case <-time.After(5 * time.Second):
		t.Fatalf("prompt %q never shown; output so far: %q", prompt, out.String())
	}
	cancel()

	select {
	case code := <-done:
		return code, out.String()
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the context was cancelled")
		return 0, ""
	}
}
