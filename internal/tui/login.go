package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/todos/internal/authflow"
	"github.com/Makepad-fr/todos/internal/ui"
)

func (m Model) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case codeSentMsg:
		m.busy = false
		if m.flow.Step() == authflow.EnterCode {
			m.phoneIn.Blur()
			m.nameIn.Blur()
			m.codeIn.SetValue("")
			return m, m.codeIn.Focus()
		}
		m.codeIn.Blur()
		return m, m.focusPhoneStep()

	case loginMsg:
		m.busy = false
		if msg.err != nil || !m.app.Session.Authenticated() {
			m.codeIn.SetValue("")
			return m, nil
		}
		m.codeIn.Blur()
		return m, m.toList()

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		if m.flow.Step() == authflow.EnterCode {
			return m.updateCode(msg)
		}
		return m.updatePhone(msg)
	}

	var cmd tea.Cmd
	switch {
	case m.flow != nil && m.flow.Step() == authflow.EnterCode:
		m.codeIn, cmd = m.codeIn.Update(msg)
	case m.nameNext:
		m.nameIn, cmd = m.nameIn.Update(msg)
	default:
		m.phoneIn, cmd = m.phoneIn.Update(msg)
	}
	return m, cmd
}

func (m *Model) focusPhoneStep() tea.Cmd {
	if m.nameNext {
		return m.nameIn.Focus()
	}
	return m.phoneIn.Focus()
}

func (m Model) updatePhone(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		m.nameNext = !m.nameNext
		m.phoneIn.Blur()
		m.nameIn.Blur()
		return m, m.focusPhoneStep()
	case "enter":
		m.flow.SetPhone(m.phoneIn.Value())
		m.flow.SetName(m.nameIn.Value())
		m.busy = true
		return m, sendCodeCmd(m.ctx, m.flow)
	}
	var cmd tea.Cmd
	if m.nameNext {
		m.nameIn, cmd = m.nameIn.Update(msg)
	} else {
		m.phoneIn, cmd = m.phoneIn.Update(msg)
	}
	return m, cmd
}

func (m Model) updateCode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.flow.Back()
		m.codeIn.Blur()
		m.codeIn.SetValue("")
		return m, m.focusPhoneStep()
	case "ctrl+r":
		if !m.flow.CanResend() {
			return m, nil
		}
		m.busy = true
		return m, resendCmd(m.ctx, m.flow)
	}
	var cmd tea.Cmd
	m.codeIn, cmd = m.codeIn.Update(msg)
	if len(authflow.Digits(m.codeIn.Value())) >= authflow.CodeLength {
		m.busy = true
		return m, tea.Batch(cmd, loginCmd(m.ctx, m.flow, m.codeIn.Value()))
	}
	return m, cmd
}

func (m Model) loginView(th ui.Theme) string {
	lines := []string{th.Title.Render("Sign in"), ""}
	fe := m.flow.Err()
	fieldErr := func(field string) {
		if fe != nil && fe.Field == field {
			lines = append(lines, th.Error.Render(fe.Message))
		}
	}

	if m.flow.Step() == authflow.EnterCode {
		lines = append(lines,
			"Code sent to "+th.Accent.Render("+"+m.flow.Phone()),
			m.codeIn.View(),
		)
		fieldErr(authflow.FieldCode)
		if m.flow.CanResend() {
			lines = append(lines, th.Muted.Render("ctrl+r resend code"))
		} else {
			lines = append(lines, th.Muted.Render("resend in "+authflow.Clock(m.flow.Timer())))
		}
		lines = append(lines, "", th.Muted.Render("esc change number"))
	} else {
		lines = append(lines, m.phoneIn.View())
		fieldErr(authflow.FieldPhone)
		lines = append(lines, m.nameIn.View(), "", th.Muted.Render("enter send code • tab switch field • esc quit"))
	}
	if m.busy {
		lines = append(lines, th.Muted.Render("Please wait..."))
	}
	return strings.Join(lines, "\n")
}
