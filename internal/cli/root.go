// Package cli holds the todos command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todos/internal/api"
	"github.com/Makepad-fr/todos/internal/app"
	"github.com/Makepad-fr/todos/internal/config"
	"github.com/Makepad-fr/todos/internal/tui"
	"github.com/Makepad-fr/todos/internal/ui"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

const logFileName = "todos.log"

// annoConfigOptional lets a command run with a --config file that does not
// exist yet.
const annoConfigOptional = "todos/config-optional"

// usageError marks bad invocations; they exit with ExitUsage.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

var errNotSignedIn = errors.New("not signed in: run `todos login`")

// Env is the state shared by all commands of one invocation.
type Env struct {
	ConfigPath string
	Server     string
	Dir        string
	NoColor    bool
	Color      bool

	// SystemDark overrides terminal background detection.
	SystemDark func() bool

	cfg     *config.Config
	app     *app.App
	logFile *os.File
	out     *ui.Printer
}

// NewRootCmd builds the command tree around env.
func NewRootCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todos",
		Short:         "Shared to-do lists in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive client
  todos

  # Sign in and add an item
  todos login --phone 15550001
  todos add "Buy milk" -d "2 litres"

  # Run the service locally
  todos serve --debug
`),
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.runTUI(cmd.Context())
		},
	}
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return env.loadConfig(cmd)
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&env.ConfigPath, "config", "", "config file (default ~/.todos/config.yaml)")
	pf.StringVar(&env.Server, "server", "", "server base URL")
	pf.StringVar(&env.Dir, "dir", "", "data directory")
	pf.BoolVar(&env.NoColor, "no-color", false, "disable colours")
	pf.BoolVar(&env.Color, "color", false, "force colours")

	cmd.AddCommand(newListCmd(env))
	cmd.AddCommand(newAddCmd(env))
	cmd.AddCommand(newEditCmd(env))
	cmd.AddCommand(newRemoveCmd(env))
	cmd.AddCommand(newStatusCmd(env))
	cmd.AddCommand(newShowCmd(env))
	cmd.AddCommand(newExportCmd(env))
	cmd.AddCommand(newImportCmd(env))
	cmd.AddCommand(newLoginCmd(env))
	cmd.AddCommand(newLogoutCmd(env))
	cmd.AddCommand(newWhoamiCmd(env))
	cmd.AddCommand(newInvitesCmd(env))
	cmd.AddCommand(newThemeCmd(env))
	cmd.AddCommand(newWatchCmd(env))
	cmd.AddCommand(newServeCmd(env))
	cmd.AddCommand(newConfigCmd(env))
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	env := &Env{}
	cmd := NewRootCmd(env)
	cmd.SetArgs(args)
	return env.finish(cmd, cmd.ExecuteContext(ctx))
}

// finish reports err and releases the client.
func (e *Env) finish(cmd *cobra.Command, err error) int {
	defer e.Close()
	if err == nil {
		return ExitOK
	}
	e.printer(cmd).Fail(err.Error())
	var ue *usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Run '%s --help' for usage.\n", cmd.Root().Name())
		return ExitUsage
	}
	return ExitError
}

// Close releases the realtime connection and the log file.
func (e *Env) Close() {
	if e.app != nil {
		_ = e.app.Close()
		e.app = nil
	}
	if e.logFile != nil {
		_ = e.logFile.Close()
		e.logFile = nil
	}
}

func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &usageError{msg: fmt.Sprintf("%s: %v", cmd.CommandPath(), err)}
		}
		return nil
	}
}

func (e *Env) loadConfig(cmd *cobra.Command) error {
	path := e.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	required := e.ConfigPath != "" && cmd.Annotations[annoConfigOptional] == ""
	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}
	if e.Server != "" {
		cfg.Server = e.Server
	}
	if e.Dir != "" {
		cfg.DataDir = e.Dir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	ui.SetColorForcing(e.Color, e.NoColor)
	return nil
}

// printer writes status lines in the active theme to the command's streams.
func (e *Env) printer(cmd *cobra.Command) *ui.Printer {
	if e.out != nil {
		return e.out
	}
	th := ui.For(ui.Light)
	if e.app != nil {
		th = e.app.Theme.Current()
	}
	p := ui.NewPrinter(th)
	p.Out, p.Err = cmd.OutOrStdout(), cmd.ErrOrStderr()
	if e.app != nil {
		e.out = p
	}
	return p
}

// client opens the local state and the API client. Commands that need a
// session call signedIn instead.
func (e *Env) client() (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	if err := os.MkdirAll(e.cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(e.cfg.DataDir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	log := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: parseLevel(e.cfg.LogLevel)}))

	a, err := app.New(app.Options{
		Server:     e.cfg.Server,
		DataDir:    e.cfg.DataDir,
		Logger:     log,
		SystemDark: e.SystemDark,
		APIOptions: []api.Option{
			api.WithPrefix(e.cfg.Serve.APIPrefix),
			api.WithCookieName(e.cfg.Serve.CookieName),
		},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	e.app, e.logFile = a, f
	return a, nil
}

// signedIn validates the session and loads the lists.
func (e *Env) signedIn(ctx context.Context) (*app.App, error) {
	a, err := e.client()
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		return nil, err
	}
	if !a.Session.Authenticated() {
		return nil, errNotSignedIn
	}
	return a, nil
}

func (e *Env) runTUI(ctx context.Context) error {
	a, err := e.client()
	if err != nil {
		return err
	}
	return tui.Run(ctx, a)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
