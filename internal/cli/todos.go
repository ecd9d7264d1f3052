package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todos/internal/app"
	"github.com/Makepad-fr/todos/internal/model"
	"github.com/Makepad-fr/todos/internal/store/jsonstore"
	"github.com/Makepad-fr/todos/internal/ui"
)

const shortID = 8

func short(id string) string {
	if len(id) > shortID {
		return id[:shortID]
	}
	return id
}

func newListCmd(env *Env) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Browse todos (interactive unless --plain)",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !plain {
				return env.runTUI(cmd.Context())
			}
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			page, _ := a.Todos.Get()
			env.printer(cmd).Panel(listLines(a.Theme.Current(), page))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&plain, "plain", "p", false, "print the list and exit")
	return cmd
}

// listLines renders the page grouped by status with a progress header.
func listLines(th ui.Theme, page *model.TodoPage) []string {
	groups := page.ByStatus()
	done := len(groups[model.StatusDone])
	total := 0
	if page != nil {
		total = len(page.Data)
	}
	lines := []string{
		fmt.Sprintf("%s  %s %d  %s %d  %s %d",
			th.Title.Render("Todos"),
			th.Success.Render(th.SymDone), done,
			th.Pending.Render(th.SymPending), total-done,
			th.Accent.Render("Total"), total,
		),
		th.Muted.Render(ui.ProgressBar(done, total, 28)),
	}
	for _, s := range model.StatusOrder {
		lines = append(lines, "", th.Accent.Render(s.Label()))
		if len(groups[s]) == 0 {
			lines = append(lines, th.Muted.Render("(none)"))
			continue
		}
		for _, t := range groups[s] {
			title := t.Title
			if len(title) > 80 {
				title = title[:77] + "..."
			}
			if s == model.StatusDone {
				title = th.Done.Render(title)
			}
			lines = append(lines, fmt.Sprintf("%s %s %s", th.Muted.Render(short(t.ID)), th.StatusTag(t.Status), title))
		}
	}
	lines = append(lines, "", th.Muted.Render("Tip: add with `todos add \"Buy milk\"`"))
	return lines
}

func newAddCmd(env *Env) *cobra.Command {
	var desc, status string
	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a todo (title can be multiple words)",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := model.Status(status)
			if !st.Valid() {
				return usagef("add: unknown status %q", status)
			}
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.Submit(cmd.Context(), "", model.TodoDraft{
				Title:       strings.Join(args, " "),
				Description: desc,
				Status:      st,
			})
			if errors.Is(err, app.ErrEmptyTitle) {
				return usagef("add: empty title")
			}
			if err != nil {
				return err
			}
			env.printer(cmd).OK("added " + short(t.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "description (markdown)")
	cmd.Flags().StringVarP(&status, "status", "s", string(model.StatusNew), "new, in_progress or done")
	return cmd
}

func newEditCmd(env *Env) *cobra.Command {
	var title, desc string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a todo's title or description",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("desc") {
				return usagef("edit: nothing to change, pass --title or --desc")
			}
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.FindTodo(args[0])
			if err != nil {
				return err
			}
			d := model.TodoDraft{Title: t.Title, Description: t.Description, Status: t.Status}
			if cmd.Flags().Changed("title") {
				d.Title = title
			}
			if cmd.Flags().Changed("desc") {
				d.Description = desc
			}
			if _, err := a.Submit(cmd.Context(), t.ID, d); err != nil {
				if errors.Is(err, app.ErrEmptyTitle) {
					return usagef("edit: empty title")
				}
				return err
			}
			env.printer(cmd).OK("saved")
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "new description (markdown)")
	return cmd
}

func newRemoveCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a todo for every member",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.FindTodo(args[0])
			if err != nil {
				return err
			}
			if err := a.Delete(cmd.Context(), t.ID); err != nil {
				return err
			}
			env.printer(cmd).OK("removed")
			return nil
		},
	}
}

func newStatusCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> [new|in_progress|done]",
		Short: "Advance a todo to its next status, or set one",
		Long: `Without a status the todo moves one step: new, in progress, done.
Advancing a done todo deletes it.`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var want model.Status
			if len(args) == 2 {
				want = model.Status(args[1])
				if !want.Valid() {
					return usagef("status: unknown status %q", args[1])
				}
			}
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.FindTodo(args[0])
			if err != nil {
				return err
			}
			p := env.printer(cmd)
			if want == "" {
				next, err := a.AdvanceStatus(cmd.Context(), t)
				if err != nil {
					return err
				}
				if next == nil {
					p.OK("done todo removed")
					return nil
				}
				p.OK(next.Title + ": " + next.Status.Label())
				return nil
			}
			_, err = a.Submit(cmd.Context(), t.ID, model.TodoDraft{Title: t.Title, Description: t.Description, Status: want})
			if err != nil {
				return err
			}
			p.OK(t.Title + ": " + want.Label())
			return nil
		},
	}
}

func newShowCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a todo with its description",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.FindTodo(args[0])
			if err != nil {
				return err
			}
			th := a.Theme.Current()
			lines := []string{
				th.Title.Render(t.Title) + "  " + th.StatusTag(t.Status),
				th.Muted.Render(t.ID),
			}
			names := make([]string, 0, len(t.Users))
			for _, u := range t.Users {
				names = append(names, u.DisplayName())
			}
			lines = append(lines, th.Muted.Render("Members: "+strings.Join(names, ", ")))
			if !t.ModifiedAt.IsZero() {
				lines = append(lines, th.Muted.Render("Updated "+t.ModifiedAt.Local().Format("2006-01-02 15:04")))
			}
			if md := th.Markdown(t.Description, 72); md != "" {
				lines = append(lines, "", md)
			}
			env.printer(cmd).Panel(lines)
			return nil
		},
	}
}

func newExportCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write todos to a JSON file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			page, ok := a.Todos.Get()
			if !ok {
				return errors.New("todos not loaded")
			}
			drafts := jsonstore.Drafts(page.Data)
			if err := jsonstore.Save(args[0], drafts); err != nil {
				return err
			}
			env.printer(cmd).OK(fmt.Sprintf("exported %d todos", len(drafts)))
			return nil
		},
	}
}

func newImportCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create todos from a JSON file written by export",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			drafts, err := jsonstore.Load(args[0])
			if err != nil {
				return err
			}
			a, err := env.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			for i, d := range drafts {
				if _, err := a.Submit(cmd.Context(), "", d); err != nil {
					return fmt.Errorf("import entry %d: %w", i, err)
				}
			}
			env.printer(cmd).OK(fmt.Sprintf("imported %d todos", len(drafts)))
			return nil
		},
	}
}
