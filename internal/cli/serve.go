package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Makepad-fr/todos/internal/config"
	"github.com/Makepad-fr/todos/internal/model"
	"github.com/Makepad-fr/todos/internal/server"
	"github.com/Makepad-fr/todos/internal/store/jsonstore"
	"github.com/Makepad-fr/todos/internal/store/sqlstore"
)

const pruneEvery = time.Hour

func newServeCmd(env *Env) *cobra.Command {
	var listen, db string
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the todos service",
		Long: `Serve the HTTP API and the push channel backed by SQLite.
Login codes are written to the log; with --debug any code is accepted
for a phone that has requested one.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := env.cfg.Serve
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = db
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			dbPath := cfg.DBPath
			if dbPath == "" {
				dbPath = env.cfg.DBPath()
			}

			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(env.cfg.LogLevel)}))
			greeting, err := greetingTodos(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}
			st, err := sqlstore.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(st, server.Options{
				Prefix:     cfg.APIPrefix,
				CookieName: cfg.CookieName,
				SessionTTL: cfg.SessionTTL,
				CodeTTL:    cfg.CodeTTL,
				Greeting:   greeting,
				Debug:      cfg.Debug,
				Sender:     server.LogSender{Log: log},
				Logger:     log,
			})
			go prune(ctx, st, log)
			log.Info("serving", "db", dbPath)
			return srv.ListenAndServe(ctx, cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, :8000)")
	cmd.Flags().StringVar(&db, "db", "", "SQLite database path")
	cmd.Flags().BoolVar(&debug, "debug", false, "accept any login code")
	return cmd
}

// greetingTodos picks the starter todos for new users.
func greetingTodos(cfg config.ServeConfig) ([]model.TodoDraft, error) {
	if !cfg.GreetingTodos {
		return nil, nil
	}
	if cfg.GreetingFile == "" {
		return server.DefaultGreeting, nil
	}
	drafts, err := jsonstore.Load(cfg.GreetingFile)
	if err != nil {
		return nil, fmt.Errorf("greeting file: %w", err)
	}
	return drafts, nil
}

func prune(ctx context.Context, st *sqlstore.Store, log *slog.Logger) {
	t := time.NewTicker(pruneEvery)
	defer t.Stop()
	for {
		if err := st.PruneExpired(ctx); err != nil && ctx.Err() == nil {
			log.Warn("prune expired sessions", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func newConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := yaml.Marshal(env.cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Write the effective configuration to the config file",
		Args:        usageArgs(cobra.NoArgs),
		Annotations: map[string]string{annoConfigOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := env.ConfigPath
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := env.cfg.Save(path); err != nil {
				return err
			}
			env.printer(cmd).OK("wrote " + path)
			return nil
		},
	})
	return cmd
}
