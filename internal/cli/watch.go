package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todos/internal/realtime"
)

func newWatchCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print changes pushed by the server until interrupted",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := env.signedIn(ctx)
			if err != nil {
				return err
			}
			if env.NoColor {
				color.NoColor = true
			} else if env.Color {
				color.NoColor = false
			}
			out := cmd.OutOrStdout()
			ch, err := a.Connect(ctx, func(ev realtime.Event) { printEvent(out, ev) })
			if err != nil {
				return err
			}
			env.printer(cmd).Muted("watching, press ctrl+c to stop")

			select {
			case <-ctx.Done():
				return nil
			case <-ch.Done():
				if err := ch.Err(); err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				return nil
			}
		},
	}
}

func printEvent(w io.Writer, ev realtime.Event) {
	ts := color.New(color.Faint).Sprint(time.Now().Format("15:04:05"))
	switch ev.Kind {
	case realtime.KindDelete:
		fmt.Fprintf(w, "%s %s %s\n", ts, color.New(color.FgRed).Sprint("DELETE"), short(ev.ID))
	default:
		fmt.Fprintf(w, "%s %s %s %s [%s]\n", ts, color.New(color.FgGreen).Sprint("UPSERT"),
			short(ev.ID), ev.Todo.Title, color.New(color.FgCyan).Sprint(ev.Todo.Status.Label()))
	}
}
