package cli

import (
	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todos/internal/ui"
)

func newThemeCmd(env *Env) *cobra.Command {
	show := func(cmd *cobra.Command, args []string) error {
		a, err := env.client()
		if err != nil {
			return err
		}
		env.printer(cmd).OK("theme: " + string(a.Theme.Name()))
		return nil
	}
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the colour theme",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  show,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active theme",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  show,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Switch between light and dark",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.client()
			if err != nil {
				return err
			}
			name, err := a.Theme.Toggle()
			if err != nil {
				return err
			}
			env.out = nil
			env.printer(cmd).OK("theme: " + string(name))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <light|dark>",
		Short: "Select a theme",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ok := ui.ParseName(args[0])
			if !ok {
				return usagef("theme: unknown theme %q", args[0])
			}
			a, err := env.client()
			if err != nil {
				return err
			}
			if err := a.Theme.Set(name); err != nil {
				return err
			}
			env.out = nil
			env.printer(cmd).OK("theme: " + string(name))
			return nil
		},
	})
	return cmd
}
