package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todos/internal/authflow"
)

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd(env *Env) *cobra.Command {
	var phone, name, code string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a phone number and a one-time code",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := env.client()
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			p := env.printer(cmd)

			if phone == "" {
				if phone, err = prompt(in, out, "Phone: "); err != nil {
					return err
				}
			}
			flow := a.LoginFlow()
			flow.SetPhone(phone)
			flow.SetName(name)
			if err := flow.SubmitPhone(ctx); err != nil {
				return err
			}
			p.Muted("Code sent to +" + flow.Phone())

			if code == "" {
				if code, err = prompt(in, out, "Code: "); err != nil {
					return err
				}
			}
			submitted, err := flow.SetCode(ctx, code)
			if err != nil {
				return err
			}
			if !submitted {
				return usagef("login: the code has %d digits", authflow.CodeLength)
			}
			u, _ := flow.User()
			p.OK("signed in as " + u.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "phone number, prompted when empty")
	cmd.Flags().StringVar(&name, "name", "", "display name to save")
	cmd.Flags().StringVar(&code, "code", "", "one-time code, prompted when empty")
	return cmd
}

func newLogoutCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.client()
			if err != nil {
				return err
			}
			p := env.printer(cmd)
			if !a.Session.Authenticated() && !a.API.HasCookie() {
				p.Muted("not signed in")
				return nil
			}
			if err := a.Logout(cmd.Context()); err != nil {
				return err
			}
			p.OK("logged out")
			return nil
		},
	}
}

func newWhoamiCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			u, _ := a.Session.User()
			th := a.Theme.Current()
			lines := []string{th.Title.Render(u.DisplayName())}
			if u.Phone != 0 {
				lines = append(lines, "phone  +"+strconv.FormatInt(u.Phone, 10))
			}
			if u.Email != "" {
				lines = append(lines, "email  "+u.Email)
			}
			lines = append(lines, th.Muted.Render("id     "+u.ID), th.Muted.Render("server "+env.cfg.Server))
			env.printer(cmd).Panel(lines)
			return nil
		},
	}
}
