package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/todos/internal/model"
	"github.com/Makepad-fr/todos/internal/overlay"
	"github.com/Makepad-fr/todos/internal/ui"
)

// startForm opens the title and description editor. An empty id creates.
func (m *Model) startForm(id, title, desc string) tea.Cmd {
	m.editing = true
	m.editID = id
	m.descNext = false
	m.formErr = ""
	m.titleIn.SetValue(title)
	m.titleIn.CursorEnd()
	m.descIn.SetValue(desc)
	m.descIn.Blur()
	return m.titleIn.Focus()
}

func (m Model) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	ov := m.app.Overlay
	if !m.editing && ov.Creating() {
		cmd := m.startForm("", "", "")
		return m, cmd
	}
	if m.editing {
		return m.updateForm(msg)
	}
	if m.inviting {
		return m.updateInvite(msg)
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok || ov.State() == overlay.Closing {
		return m, nil
	}
	sel, hasSel := ov.Selected()
	switch {
	case km.String() == "esc", km.String() == "q":
		ov.Dismiss()
	case key.Matches(km, m.keys.Advance) && hasSel:
		return m, advanceCmd(m.ctx, m.app, sel)
	case km.String() == "e" && hasSel:
		return m, m.startForm(sel.ID, sel.Title, sel.Description)
	case key.Matches(km, m.keys.Delete) && hasSel:
		return m, deleteCmd(m.ctx, m.app, sel)
	case km.String() == "m" && hasSel:
		m.inviting = true
		m.inviteIn.SetValue("")
		return m, m.inviteIn.Focus()
	case key.Matches(km, m.keys.Theme):
		name, err := m.app.Theme.Toggle()
		m.setStatus("theme: "+string(name), err)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "esc":
			m.editing = false
			m.formErr = ""
			if m.app.Overlay.Creating() {
				m.app.Overlay.Dismiss()
			}
			return m, nil
		case "tab", "shift+tab":
			m.descNext = !m.descNext
			if m.descNext {
				m.titleIn.Blur()
				return m, m.descIn.Focus()
			}
			m.descIn.Blur()
			return m, m.titleIn.Focus()
		case "ctrl+s":
			return m.saveForm()
		case "enter":
			if !m.descNext {
				return m.saveForm()
			}
		}
	}
	var cmd tea.Cmd
	if m.descNext {
		m.descIn, cmd = m.descIn.Update(msg)
	} else {
		m.titleIn, cmd = m.titleIn.Update(msg)
	}
	return m, cmd
}

func (m Model) saveForm() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.titleIn.Value())
	if title == "" {
		m.formErr = "Title cannot be empty"
		return m, nil
	}
	d := model.TodoDraft{Title: title, Description: m.descIn.Value(), Status: model.StatusNew}
	if m.editID != "" {
		if sel, ok := m.app.Overlay.Selected(); ok && sel.ID == m.editID {
			d.Status = sel.Status
		}
	}
	return m, submitCmd(m.ctx, m.app, m.editID, d)
}

func (m Model) updateInvite(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "esc":
			m.inviting = false
			m.inviteIn.Blur()
			return m, nil
		case "enter":
			m.inviting = false
			m.inviteIn.Blur()
			sel, ok := m.app.Overlay.Selected()
			if !ok {
				return m, nil
			}
			return m, inviteCmd(m.ctx, m.app, sel.ID, m.inviteIn.Value())
		}
	}
	var cmd tea.Cmd
	m.inviteIn, cmd = m.inviteIn.Update(msg)
	return m, cmd
}

func (m Model) detailView(th ui.Theme) string {
	if m.editing || m.app.Overlay.Creating() {
		return m.formView(th)
	}
	sel, ok := m.app.Overlay.Selected()
	if !ok {
		return th.Muted.Render("Loading...")
	}
	lines := []string{th.Title.Render(sel.Title) + "  " + th.StatusTag(sel.Status)}
	names := make([]string, 0, len(sel.Users))
	for _, u := range sel.Users {
		names = append(names, u.DisplayName())
	}
	if len(names) > 0 {
		lines = append(lines, th.Muted.Render("Members: "+strings.Join(names, ", ")))
	}
	if !sel.ModifiedAt.IsZero() {
		lines = append(lines, th.Muted.Render("Updated "+sel.ModifiedAt.Local().Format("2006-01-02 15:04")))
	}
	lines = append(lines, "")
	if md := th.Markdown(sel.Description, m.width-10); md != "" {
		lines = append(lines, md)
	} else {
		lines = append(lines, th.Muted.Render("No description"))
	}
	if m.inviting {
		lines = append(lines, "", "Invite a member", m.inviteIn.View())
	}
	lines = append(lines, "", th.Muted.Render("space next status • e edit • m invite • d delete • esc close"))

	out := th.Panel(lines)
	if m.app.Overlay.State() == overlay.Closing {
		out = lipgloss.NewStyle().Faint(true).Render(out)
	}
	return out
}

func (m Model) formView(th ui.Theme) string {
	title := "New todo"
	if m.editID != "" {
		title = "Edit todo"
	}
	lines := []string{th.Title.Render(title), m.titleIn.View(), m.descIn.View()}
	if m.formErr != "" {
		lines = append(lines, th.Error.Render(m.formErr))
	}
	lines = append(lines, th.Muted.Render("tab switch field • enter save title • ctrl+s save • esc cancel"))
	return th.Panel(lines)
}

func (m Model) invitesView(th ui.Theme) string {
	lines := []string{th.Title.Render("Invites"), ""}
	page, ok := m.app.Invites.Get()
	if !ok || len(page.Data) == 0 {
		lines = append(lines, th.Muted.Render("No pending invites"))
	} else {
		for i, inv := range page.Data {
			text := th.Muted.Render("(unavailable todo)")
			if inv.Todo != nil {
				text = th.StatusTag(inv.Todo.Status) + " " + inv.Todo.Title
			}
			prefix := "  "
			if i == m.inviteIdx {
				prefix = th.Selected.Render("> ")
			}
			lines = append(lines, prefix+text)
		}
	}
	lines = append(lines, "", th.Muted.Render("y accept • n decline • r reload • esc back"))
	return strings.Join(lines, "\n")
}
