package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todos/internal/app"
	"github.com/Makepad-fr/todos/internal/model"
)

func newInvitesCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invites",
		Short: "List, answer and send invites",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listInvites(cmd, env)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List pending invites",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listInvites(cmd, env)
		},
	})
	cmd.AddCommand(answerCmd(env, "accept", true))
	cmd.AddCommand(answerCmd(env, "decline", false))
	cmd.AddCommand(&cobra.Command{
		Use:   "send <todo-id> <phone>",
		Short: "Invite a user to a todo by phone number",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.FindTodo(args[0])
			if err != nil {
				return err
			}
			if err := a.Invite(cmd.Context(), t.ID, args[1]); err != nil {
				return err
			}
			env.printer(cmd).OK("invite sent")
			return nil
		},
	})
	return cmd
}

func listInvites(cmd *cobra.Command, env *Env) error {
	a, err := env.signedIn(cmd.Context())
	if err != nil {
		return err
	}
	th := a.Theme.Current()
	lines := []string{th.Title.Render("Invites")}
	page, _ := a.Invites.Get()
	if page == nil || len(page.Data) == 0 {
		lines = append(lines, th.Muted.Render("no pending invites"))
	} else {
		for _, inv := range page.Data {
			text := th.Muted.Render("(unavailable todo)")
			if inv.Todo != nil {
				text = th.StatusTag(inv.Todo.Status) + " " + inv.Todo.Title
			}
			lines = append(lines, th.Muted.Render(short(inv.ID))+" "+text)
		}
		lines = append(lines, "", th.Muted.Render("Answer with `todos invites accept <id>` or `decline <id>`"))
	}
	env.printer(cmd).Panel(lines)
	return nil
}

func answerCmd(env *Env, verb string, accept bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <invite-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an invite",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			inv, err := findInvite(a, args[0])
			if err != nil {
				return err
			}
			if accept {
				err = a.AcceptInvite(cmd.Context(), inv.ID)
			} else {
				err = a.DeclineInvite(cmd.Context(), inv.ID)
			}
			if err != nil {
				return err
			}
			env.printer(cmd).OK("invite " + verb + "d")
			return nil
		},
	}
}

// findInvite resolves a full id or a unique prefix.
func findInvite(a *app.App, ref string) (model.Invite, error) {
	page, _ := a.Invites.Get()
	if page == nil {
		return model.Invite{}, fmt.Errorf("invites not loaded")
	}
	var match []model.Invite
	for _, inv := range page.Data {
		if inv.ID == ref {
			return inv, nil
		}
		if ref != "" && strings.HasPrefix(inv.ID, ref) {
			match = append(match, inv)
		}
	}
	switch len(match) {
	case 0:
		return model.Invite{}, fmt.Errorf("no invite matches %q", ref)
	case 1:
		return match[0], nil
	}
	return model.Invite{}, fmt.Errorf("%q matches %d invites", ref, len(match))
}
