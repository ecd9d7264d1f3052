package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/todos/internal/app"
	"github.com/Makepad-fr/todos/internal/authflow"
	"github.com/Makepad-fr/todos/internal/model"
	"github.com/Makepad-fr/todos/internal/realtime"
)

type (
	startedMsg struct{ err error }
	loadedMsg  struct{ err error }

	// change notifications, re-armed after each delivery
	todosMsg   struct{}
	overlayMsg struct{}
	sessionMsg struct{}

	tickMsg time.Time

	connectedMsg struct {
		ch  *realtime.Channel
		err error
	}
	disconnectedMsg struct {
		ch  *realtime.Channel
		err error
	}

	codeSentMsg struct{ err error }
	loginMsg    struct {
		submitted bool
		err       error
	}

	savedMsg struct {
		create bool
		err    error
	}
	// resultMsg reports the outcome of a one-shot action in the status line.
	resultMsg struct {
		ok  string
		err error
	}
)

func wait(ctx context.Context, ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ch:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func startCmd(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg { return startedMsg{err: a.Start(ctx)} }
}

func loadCmd(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg { return loadedMsg{err: a.Load(ctx)} }
}

func connectCmd(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg {
		ch, err := a.Connect(ctx, nil)
		return connectedMsg{ch: ch, err: err}
	}
}

func waitClosed(ch *realtime.Channel) tea.Cmd {
	return func() tea.Msg {
		<-ch.Done()
		return disconnectedMsg{ch: ch, err: ch.Err()}
	}
}

func sendCodeCmd(ctx context.Context, f *authflow.Flow) tea.Cmd {
	return func() tea.Msg { return codeSentMsg{err: f.SubmitPhone(ctx)} }
}

func resendCmd(ctx context.Context, f *authflow.Flow) tea.Cmd {
	return func() tea.Msg { return codeSentMsg{err: f.Resend(ctx)} }
}

func loginCmd(ctx context.Context, f *authflow.Flow, code string) tea.Cmd {
	return func() tea.Msg {
		submitted, err := f.SetCode(ctx, code)
		return loginMsg{submitted: submitted, err: err}
	}
}

func submitCmd(ctx context.Context, a *app.App, id string, d model.TodoDraft) tea.Cmd {
	return func() tea.Msg {
		_, err := a.Submit(ctx, id, d)
		return savedMsg{create: id == "", err: err}
	}
}

func advanceCmd(ctx context.Context, a *app.App, t model.Todo) tea.Cmd {
	return func() tea.Msg {
		next, err := a.AdvanceStatus(ctx, t)
		switch {
		case err != nil:
			return resultMsg{err: err}
		case next == nil:
			return resultMsg{ok: "deleted " + t.Title}
		}
		return resultMsg{ok: t.Title + " is now " + next.Status.Label()}
	}
}

func deleteCmd(ctx context.Context, a *app.App, t model.Todo) tea.Cmd {
	return func() tea.Msg {
		if err := a.Delete(ctx, t.ID); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{ok: "deleted " + t.Title}
	}
}

func inviteCmd(ctx context.Context, a *app.App, todoID, phone string) tea.Cmd {
	return func() tea.Msg {
		if err := a.Invite(ctx, todoID, phone); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{ok: "invite sent"}
	}
}

func answerInviteCmd(ctx context.Context, a *app.App, id string, accept bool) tea.Cmd {
	return func() tea.Msg {
		if accept {
			if err := a.AcceptInvite(ctx, id); err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{ok: "invite accepted"}
		}
		if err := a.DeclineInvite(ctx, id); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{ok: "invite declined"}
	}
}

func logoutCmd(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg {
		if err := a.Logout(ctx); err != nil {
			return resultMsg{err: err}
		}
		return resultMsg{ok: "logged out"}
	}
}

func refreshSessionCmd(ctx context.Context, a *app.App) tea.Cmd {
	return func() tea.Msg {
		if err := a.Session.Refresh(ctx); err != nil {
			return resultMsg{err: err}
		}
		return nil
	}
}
