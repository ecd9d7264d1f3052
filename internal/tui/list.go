package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/todos/internal/model"
	"github.com/Makepad-fr/todos/internal/ui"
)

// listItem adapts a todo to bubbles/list.Item.
type listItem struct {
	todo model.Todo
}

func (i listItem) Title() string       { return i.todo.Title }
func (i listItem) Description() string { return i.todo.Description }
func (i listItem) FilterValue() string { return i.todo.Title }

// itemDelegate renders one line per todo: status tag, title, member count.
type itemDelegate struct {
	theme *ui.Manager
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	th := d.theme.Current()
	text := it.todo.Title
	if it.todo.Status == model.StatusDone {
		text = th.Done.Render(text)
	}
	line := fmt.Sprintf("%s %s", th.StatusTag(it.todo.Status), text)
	if n := len(it.todo.Users); n > 1 {
		line += th.Muted.Render(fmt.Sprintf("  %d members", n))
	}
	prefix := "  "
	if index == m.Index() {
		prefix = th.Selected.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

type keyMap struct {
	Add, Open, Advance, Delete, Reload, Theme, Invites, Logout key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Advance: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "next status")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Theme:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "theme")),
		Invites: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "invites")),
		Logout:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),
	}
}

func (k keyMap) short() []key.Binding {
	return []key.Binding{k.Add, k.Open, k.Advance, k.Delete}
}

func (k keyMap) full() []key.Binding {
	return []key.Binding{k.Add, k.Open, k.Advance, k.Delete, k.Reload, k.Theme, k.Invites, k.Logout}
}

func newList(theme *ui.Manager, keys keyMap) list.Model {
	l := list.New(nil, itemDelegate{theme: theme}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todos")
	l.AdditionalShortHelpKeys = keys.short
	l.AdditionalFullHelpKeys = keys.full
	return l
}

// sortedItems orders the page by status, keeping server order inside a
// status.
func sortedItems(page *model.TodoPage) []list.Item {
	groups := page.ByStatus()
	out := make([]list.Item, 0, len(groups))
	for _, s := range model.StatusOrder {
		for _, t := range groups[s] {
			out = append(out, listItem{todo: t})
		}
	}
	return out
}

// header is the list title with live counts.
func header(th ui.Theme, page *model.TodoPage, user string) string {
	done := len(page.ByStatus()[model.StatusDone])
	total := 0
	if page != nil {
		total = len(page.Data)
	}
	title := fmt.Sprintf("%s   %s %d  %s %d  %s %d  %s",
		th.Title.Render("Todos"),
		th.Success.Render(th.SymDone), done,
		th.Pending.Render(th.SymPending), total-done,
		th.Accent.Render("Total"), total,
		ui.ProgressBar(done, total, 12),
	)
	if user != "" {
		title += "  " + th.Muted.Render(user)
	}
	return title
}
