// Package tui is the interactive terminal client built on Bubble Tea.
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/todos/internal/api"
	"github.com/Makepad-fr/todos/internal/app"
	"github.com/Makepad-fr/todos/internal/authflow"
	"github.com/Makepad-fr/todos/internal/overlay"
	"github.com/Makepad-fr/todos/internal/realtime"
)

type screen int

const (
	screenLoading screen = iota
	screenLogin
	screenList
	screenInvites
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx  context.Context
	app  *app.App
	keys keyMap

	screen        screen
	width, height int
	list          list.Model
	spinner       spinner.Model
	channel       *realtime.Channel

	status    string
	statusErr bool

	// login
	flow     *authflow.Flow
	phoneIn  textinput.Model
	nameIn   textinput.Model
	codeIn   textinput.Model
	nameNext bool
	busy     bool

	// detail overlay form
	editing  bool
	editID   string
	titleIn  textinput.Model
	descIn   textarea.Model
	descNext bool
	formErr  string
	inviting bool
	inviteIn textinput.Model

	inviteIdx int

	todosCh, overlayCh, sessionCh <-chan struct{}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m, stop := New(ctx, a)
	defer stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	a.Disconnect()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// New builds the model. stop releases the change subscriptions.
func New(ctx context.Context, a *app.App) (Model, func()) {
	todosCh, stopTodos := a.Todos.Subscribe()
	sessionCh, stopSession := a.Session.Subscribe()

	keys := newKeyMap()
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		app:       a,
		keys:      keys,
		width:     80,
		height:    24,
		list:      newList(a.Theme, keys),
		spinner:   sp,
		todosCh:   todosCh,
		overlayCh: a.OverlayChanges(),
		sessionCh: sessionCh,
	}

	m.phoneIn = newInput("Phone number", 20)
	m.nameIn = newInput("Name (optional)", 60)
	m.codeIn = newInput("4 digit code", authflow.CodeLength+2)
	m.titleIn = newInput("Title", 200)
	m.inviteIn = newInput("Phone number to invite", 20)
	m.descIn = textarea.New()
	m.descIn.Placeholder = "Description (markdown)"
	m.descIn.ShowLineNumbers = false
	m.descIn.SetHeight(5)
	m.resize()

	return m, func() {
		stopTodos()
		stopSession()
	}
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	return ti
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		startCmd(m.ctx, m.app),
		wait(m.ctx, m.todosCh, todosMsg{}),
		wait(m.ctx, m.overlayCh, overlayMsg{}),
		wait(m.ctx, m.sessionCh, sessionMsg{}),
		tick(),
	)
}

func (m *Model) resize() {
	w, h := m.width-4, m.height-4
	if m.status != "" {
		h--
	}
	m.list.SetSize(w, h)
	m.descIn.SetWidth(w - 4)
	m.titleIn.Width = w - 6
}

func (m *Model) setStatus(ok string, err error) {
	m.statusErr = err != nil
	m.status = ok
	if err != nil {
		m.status = err.Error()
	}
	m.resize()
}

// refreshList rebuilds the list from the cached Collection, keeping the
// cursor on the same todo.
func (m *Model) refreshList() {
	page, _ := m.app.Todos.Get()
	var selID string
	if it, ok := m.list.SelectedItem().(listItem); ok {
		selID = it.todo.ID
	}
	items := sortedItems(page)
	m.list.SetItems(items)
	for i, it := range items {
		if it.(listItem).todo.ID == selID {
			m.list.Select(i)
			break
		}
	}
	var user string
	if u, ok := m.app.Session.User(); ok {
		user = u.DisplayName()
	}
	th := m.app.Theme.Current()
	m.list.Title = header(th, page, user)
	m.list.Styles.Title = th.Title
	m.list.Styles.HelpStyle = th.Muted
	m.list.Styles.PaginationStyle = th.Muted
}

func (m *Model) toLogin() tea.Cmd {
	m.screen = screenLogin
	m.flow = m.app.LoginFlow()
	m.busy = false
	m.nameNext = false
	m.phoneIn.SetValue("")
	m.nameIn.SetValue("")
	m.codeIn.SetValue("")
	m.nameIn.Blur()
	m.codeIn.Blur()
	return m.phoneIn.Focus()
}

func (m *Model) toList() tea.Cmd {
	m.screen = screenList
	m.refreshList()
	return tea.Batch(loadCmd(m.ctx, m.app), connectCmd(m.ctx, m.app))
}

// overlayVisible reports whether the detail panel replaces the list.
func (m Model) overlayVisible() bool {
	return m.app.Overlay.State() != overlay.Closed
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if m.screen != screenLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if m.screen == screenLogin && m.flow != nil {
			m.flow.Tick()
		}
		return m, tick()

	case startedMsg:
		if msg.err != nil {
			m.setStatus("", msg.err)
		}
		if !m.app.Session.Authenticated() {
			return m, m.toLogin()
		}
		m.screen = screenList
		m.refreshList()
		return m, connectCmd(m.ctx, m.app)

	case loadedMsg:
		if msg.err != nil {
			m.setStatus("", msg.err)
			if errors.Is(msg.err, api.ErrNoSession) {
				return m, refreshSessionCmd(m.ctx, m.app)
			}
		}
		return m, nil

	case todosMsg:
		m.refreshList()
		return m, wait(m.ctx, m.todosCh, todosMsg{})

	case overlayMsg:
		if !m.overlayVisible() {
			m.editing = false
			m.inviting = false
		}
		return m, wait(m.ctx, m.overlayCh, overlayMsg{})

	case sessionMsg:
		var cmd tea.Cmd
		if !m.app.Session.Authenticated() && m.screen != screenLogin && m.screen != screenLoading {
			m.app.Disconnect()
			m.app.Cache.ResetAll()
			m.editing, m.inviting = false, false
			cmd = m.toLogin()
		}
		m.refreshList()
		return m, tea.Batch(cmd, wait(m.ctx, m.sessionCh, sessionMsg{}))

	case connectedMsg:
		if msg.err != nil {
			m.setStatus("", errors.New("realtime: "+msg.err.Error()))
			return m, nil
		}
		m.channel = msg.ch
		return m, waitClosed(msg.ch)

	case disconnectedMsg:
		if msg.ch == m.channel {
			m.channel = nil
			if msg.err != nil {
				m.setStatus("", errors.New("realtime disconnected, press r to reconnect"))
			}
		}
		return m, nil

	case codeSentMsg, loginMsg:
		return m.updateLogin(msg)

	case savedMsg:
		if msg.err != nil {
			m.formErr = msg.err.Error()
			return m, m.handleErr(msg.err)
		}
		m.formErr = ""
		m.editing = false
		if msg.create {
			m.setStatus("added", nil)
		} else {
			m.setStatus("saved", nil)
		}
		return m, nil

	case resultMsg:
		m.setStatus(msg.ok, msg.err)
		return m, m.handleErr(msg.err)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen {
		case screenLogin:
			return m.updateLogin(msg)
		case screenInvites:
			return m.updateInvites(msg)
		case screenList:
			if m.overlayVisible() {
				return m.updateDetail(msg)
			}
			return m.updateList(msg)
		}
		return m, nil
	}

	switch {
	case m.screen == screenLogin:
		return m.updateLogin(msg)
	case m.editing, m.inviting:
		return m.updateDetail(msg)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleErr re-validates the session when the server no longer accepts it.
func (m *Model) handleErr(err error) tea.Cmd {
	if errors.Is(err, api.ErrNoSession) {
		return refreshSessionCmd(m.ctx, m.app)
	}
	return nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	sel, hasSel := m.list.SelectedItem().(listItem)
	switch {
	case msg.String() == "q", msg.String() == "esc" && m.list.FilterState() == list.Unfiltered:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Add):
		m.app.Overlay.OpenCreate()
		return m, m.startForm("", "", "")
	case key.Matches(msg, m.keys.Open) && hasSel:
		m.app.Navigate(m.app.Overlay.Location().WithTodo(sel.todo.ID))
		return m, nil
	case key.Matches(msg, m.keys.Advance) && hasSel:
		return m, advanceCmd(m.ctx, m.app, sel.todo)
	case key.Matches(msg, m.keys.Delete) && hasSel:
		return m, deleteCmd(m.ctx, m.app, sel.todo)
	case key.Matches(msg, m.keys.Reload):
		cmds := []tea.Cmd{loadCmd(m.ctx, m.app)}
		if m.channel == nil {
			cmds = append(cmds, connectCmd(m.ctx, m.app))
		}
		m.setStatus("", nil)
		return m, tea.Batch(cmds...)
	case key.Matches(msg, m.keys.Theme):
		name, err := m.app.Theme.Toggle()
		m.setStatus("theme: "+string(name), err)
		m.refreshList()
		return m, nil
	case key.Matches(msg, m.keys.Invites):
		m.screen = screenInvites
		m.inviteIdx = 0
		return m, nil
	case key.Matches(msg, m.keys.Logout):
		return m, logoutCmd(m.ctx, m.app)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInvites(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page, _ := m.app.Invites.Get()
	n := 0
	if page != nil {
		n = len(page.Data)
	}
	if m.inviteIdx >= n {
		m.inviteIdx = max(n-1, 0)
	}
	switch msg.String() {
	case "esc", "q", "i":
		m.screen = screenList
	case "up", "k":
		if m.inviteIdx > 0 {
			m.inviteIdx--
		}
	case "down", "j":
		if m.inviteIdx < n-1 {
			m.inviteIdx++
		}
	case "y", "n":
		if n == 0 {
			return m, nil
		}
		return m, answerInviteCmd(m.ctx, m.app, page.Data[m.inviteIdx].ID, msg.String() == "y")
	case "r":
		return m, loadCmd(m.ctx, m.app)
	}
	return m, nil
}

func (m Model) View() string {
	th := m.app.Theme.Current()
	var content string
	switch m.screen {
	case screenLoading:
		content = m.spinner.View() + " Loading..."
	case screenLogin:
		content = m.loginView(th)
	case screenInvites:
		content = m.invitesView(th)
	default:
		if m.overlayVisible() {
			content = m.detailView(th)
		} else {
			content = m.list.View()
		}
	}
	if m.status != "" {
		st := th.Success
		if m.statusErr {
			st = th.Error
		}
		content += "\n" + st.Render(m.status)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.Border).
		Padding(0, 1).
		Render(content)
}
