// Package cli implements the cobra-based command line of envrebuild.
//
// envrebuild has a single root command whose flags select the actions
// (--list, --inspect, --create). This file builds that command, wires the
// loaded configuration and I/O streams into it, and translates errors into
// exit codes. Each action lives in its own file.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mmr-tortoise/envrebuild/internal/config"
	"github.com/mmr-tortoise/envrebuild/internal/envfile"
	"github.com/mmr-tortoise/envrebuild/internal/model"
	"github.com/mmr-tortoise/envrebuild/internal/pkgmgr"
	"github.com/mmr-tortoise/envrebuild/internal/prompt"
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// errHelpShown marks invocations that ended by printing help. They exit 0.
var errHelpShown = errors.New("help shown")

// PackageManager is the subset of pkgmgr.Manager the actions use.
type PackageManager interface {
	ListEnvs(ctx context.Context) (string, error)
	CreateNamed(ctx context.Context, name, file string) error
	CreatePrefix(ctx context.Context, prefix, file string) error
}

// Pager shows an environment file to the user.
type Pager interface {
	Page(path string) error
}

// Options configures a single run. Zero values select the production
// defaults (fixed config path, process stdio, real package manager).
type Options struct {
	// ConfigPath is the configuration file to load.
	// Defaults to config.DefaultPath.
	ConfigPath string

	// Stdin supplies the answers to interactive prompts.
	Stdin io.Reader

	// Stdout receives listings, prompts, results, and the streamed output
	// of the package manager.
	Stdout io.Writer

	// Stderr receives error messages, verbose logs, and the package
	// manager's standard error.
	Stderr io.Writer

	// Home is matched against `env list` output for home-directory envs.
	Home string

	// TempDir holds the working copy passed to env create.
	TempDir string

	// Bootstrap replaces pkgmgr.Bootstrap.
	Bootstrap func(cfg *model.Config) (PackageManager, error)

	// Pager replaces the $PAGER-based pager.
	Pager Pager
}

func (o Options) withDefaults() Options {
	if o.ConfigPath == "" {
		o.ConfigPath = config.DefaultPath
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Pager == nil {
		o.Pager = prompt.NewPager(o.Stdin, o.Stdout)
	}
	return o
}

// app carries everything one invocation needs. It replaces process-wide
// state: config and flags are built once and passed to every action.
type app struct {
	// cfg is the validated configuration file.
	cfg *model.Config

	// flags is populated by cobra when the root command parses args.
	flags model.InvocationFlags

	// opts holds the I/O streams and test overrides, with defaults applied.
	opts Options

	// logger writes verbose output to Stderr; --verbose lowers its level.
	logger *log.Logger

	// prompter is shared by every prompt of the run so buffered input
	// carries over from one question to the next.
	prompter *prompt.Prompter
}

// Execute runs envrebuild with the process arguments and exits.
// This is the main entry point called from main.go.
//
// The first Ctrl-C cancels the run context: prompts return at once and a
// running package manager is stopped, so the working copy is still
// removed. After that the default handler is back and a second Ctrl-C
// kills the process.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	code := Run(ctx, os.Args[1:], Options{})
	stop()
	os.Exit(int(code))
}

// Run loads the configuration, parses args, and performs the requested
// actions. It returns the exit code instead of exiting so it can be tested.
//
// The configuration is loaded before any argument is looked at: a broken
// config fails every invocation, --help included.
func Run(ctx context.Context, args []string, opts Options) model.ExitCode {
	opts = opts.withDefaults()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		printError(opts.Stderr, false, err)
		return exitCode(err)
	}

	a := newApp(cfg, opts)
	rootCmd := a.newRootCommand()
	rootCmd.SetArgs(args)

	err = rootCmd.ExecuteContext(ctx)
	if err == nil || errors.Is(err, errHelpShown) {
		return model.ExitSuccess
	}
	printError(opts.Stderr, a.flags.JSON, err)
	return exitCode(err)
}

// newApp wires a loaded config and defaulted options into an app.
func newApp(cfg *model.Config, opts Options) *app {
	return &app{
		cfg:  cfg,
		opts: opts,
		logger: log.NewWithOptions(opts.Stderr, log.Options{
			Prefix: "envrebuild",
			Level:  log.WarnLevel,
		}),
		prompter: prompt.New(opts.Stdin, opts.Stdout),
	}
}

// newRootCommand builds the root command. The flag variables are bound to
// a.flags, so the command must not be executed more than once.
func (a *app) newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "envrebuild [flags]",
		Short: "Build conda/mamba environments from shared environment files",
		Long: `envrebuild lists the environment files (*.yml / *.yaml) kept in the
configured directory and builds a named environment from one of them with
conda or mamba, either in your home directory or on the job's local SSD.

Examples:
  envrebuild --list
  envrebuild --filter gpu --list
  envrebuild --inspect
  envrebuild --create myenv
  envrebuild --create myenv --ssd
  envrebuild --local ~/my-envs --create scratch`,

		// Stray positional tokens print help rather than failing.
		Args: cobra.ArbitraryArgs,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// Run formats them (text or JSON based on --json).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		// Completion is served by the arglist subcommand.
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},

		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showHelp(cmd)
			}
			if err := a.validateFlags(cmd); err != nil {
				return err
			}
			if !a.flags.HasAction() {
				return showHelp(cmd)
			}
			return a.run(cmd.Context())
		},
	}

	rootCmd.SetIn(a.opts.Stdin)
	rootCmd.SetOut(a.opts.Stdout)
	rootCmd.SetErr(a.opts.Stderr)
	rootCmd.SetVersionTemplate("envrebuild {{.Version}}\n")
	rootCmd.SetFlagErrorFunc(flagError)

	f := rootCmd.Flags()
	f.BoolVar(&a.flags.List, "list", false, "List the available environment files")
	f.BoolVar(&a.flags.Inspect, "inspect", false, "Choose environment files and view them in a pager")
	f.StringVar(&a.flags.Filter, "filter", "", "Only consider files whose name contains this substring")
	f.StringVar(&a.flags.Local, "local", "", "Read environment files from this directory instead of the configured one")
	f.StringVar(&a.flags.Create, "create", "", "Create an environment with this name from a chosen file")
	f.BoolVar(&a.flags.SSD, "ssd", false, "With --create, build under the job's local SSD instead of $HOME")
	f.BoolVar(&a.flags.JSON, "json", false, "Output listings in JSON format")
	f.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(newArglistCommand(rootCmd))

	return rootCmd
}

// validateFlags checks the values of --local and --create. Both are fatal
// when given without a usable value.
func (a *app) validateFlags(cmd *cobra.Command) error {
	if cmd.Flags().Changed("local") {
		if a.flags.Local == "" {
			return model.Fatal("--local requires a directory")
		}
		info, err := os.Stat(a.flags.Local)
		if err != nil || !info.IsDir() {
			return model.Fatal("--local %s is not an existing directory", a.flags.Local)
		}
	}
	if cmd.Flags().Changed("create") {
		if err := model.ValidateEnvName(a.flags.Create); err != nil {
			return model.WrapCLIError(model.ExitFatal, "--create requires a valid environment name", err)
		}
	}
	return nil
}

// run bootstraps the package manager, builds the file list, and performs
// the requested actions in order: list, inspect, create.
func (a *app) run(ctx context.Context) error {
	if a.flags.Verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	a.verboseLog("Config: files=%s conda=%s ssd=%s manager=%s",
		a.cfg.EnvFilesRoot, a.cfg.CondaRoot, a.cfg.LocalSSDRoot, a.cfg.PackageManager)

	// Check the shell integration before touching the env files, so a
	// broken installation is reported even for --list.
	pm, err := a.bootstrap()
	if err != nil {
		return err
	}

	// Discover once; every action works on the same numbered list.
	root := a.envRoot()
	files, err := envfile.Discover(root, a.flags.Filter)
	if err != nil {
		return err
	}
	a.verboseLog("Found %d environment file(s) in %s", files.Len(), root)

	if a.flags.List {
		if err := a.runList(root, files); err != nil {
			return err
		}
	}
	if a.flags.Inspect {
		if err := a.runInspect(ctx, root, files); err != nil {
			return err
		}
	}
	if a.flags.Create != "" {
		if err := a.runCreate(ctx, pm, root, files); err != nil {
			return err
		}
	}
	return nil
}

// bootstrap returns the package manager for this run.
func (a *app) bootstrap() (PackageManager, error) {
	if a.opts.Bootstrap != nil {
		return a.opts.Bootstrap(a.cfg)
	}

	m, err := pkgmgr.Bootstrap(a.cfg)
	if err != nil {
		return nil, err
	}
	m.Stdout = a.opts.Stdout
	m.Stderr = a.opts.Stderr
	m.Logger = a.logger
	a.verboseLog("Sourcing %v before each %s call", m.Scripts(), m.Name())
	return m, nil
}

// envRoot is the directory scanned for environment files.
func (a *app) envRoot() string {
	if a.flags.Local != "" {
		return a.flags.Local
	}
	return a.cfg.EnvFilesRoot
}

// verboseLog prints a debug message when --verbose is set.
func (a *app) verboseLog(format string, args ...interface{}) {
	a.logger.Debugf(format, args...)
}

// flagError turns pflag parse errors into either help (unknown flags) or
// a fatal error (a value-taking flag given without its value).
func flagError(cmd *cobra.Command, err error) error {
	var missing *pflag.ValueRequiredError
	if errors.As(err, &missing) {
		return model.WrapCLIError(model.ExitFatal, "missing flag value", err)
	}
	return showHelp(cmd)
}

func showHelp(cmd *cobra.Command) error {
	if err := cmd.Help(); err != nil {
		return err
	}
	return errHelpShown
}

// exitCode maps an error to the process exit code. Every failure is fatal.
func exitCode(err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return model.ExitFatal
}

// printError outputs an error message in the appropriate format
// (JSON or text) on w.
func printError(w io.Writer, asJSON bool, err error) {
	message := err.Error()
	var underlying error
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		message = cliErr.Message
		underlying = cliErr.Err
	}

	if asJSON {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}
