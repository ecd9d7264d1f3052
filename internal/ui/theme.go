package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Makepad-fr/todos/internal/model"
)

// Name of a theme.
type Name string

const (
	Light Name = "light"
	Dark  Name = "dark"
)

// ParseName accepts "light" or "dark" in any case.
func ParseName(s string) (Name, bool) {
	switch Name(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, true
	case Dark:
		return Dark, true
	}
	return "", false
}

// Theme bundles the palette and the styles renderers need.
type Theme struct {
	Name Name

	Title, Muted, Accent, Success, Error, Pending lipgloss.Style
	Selected, Done                                lipgloss.Style
	Border                                        lipgloss.TerminalColor

	// MarkdownStyle is the glamour standard style for item descriptions.
	MarkdownStyle string

	SymDone, SymPending string
}

// For returns the theme called name. Unknown names get the light theme.
func For(name Name) Theme {
	if name == Dark {
		return Theme{
			Name:          Dark,
			Title:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")),
			Muted:         lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true),
			Accent:        lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
			Success:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
			Pending:       lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			Selected:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(lipgloss.Color("236")),
			Done:          lipgloss.NewStyle().Faint(true).Strikethrough(true),
			Border:        lipgloss.Color("240"),
			MarkdownStyle: "dark",
			SymDone:       "✔",
			SymPending:    "•",
		}
	}
	return Theme{
		Name:          Light,
		Title:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("235")),
		Muted:         lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		Accent:        lipgloss.NewStyle().Foreground(lipgloss.Color("27")),
		Success:       lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		Error:         lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
		Pending:       lipgloss.NewStyle().Foreground(lipgloss.Color("166")),
		Selected:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("235")).Background(lipgloss.Color("254")),
		Done:          lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("244")),
		Border:        lipgloss.Color("250"),
		MarkdownStyle: "light",
		SymDone:       "✔",
		SymPending:    "•",
	}
}

// StatusTag renders the coloured status label: new is green, in progress
// is orange and done is grey.
func (t Theme) StatusTag(s model.Status) string {
	var st lipgloss.Style
	switch s {
	case model.StatusNew:
		st = t.Success
	case model.StatusInProgress:
		st = t.Pending
	default:
		st = t.Muted
	}
	return st.Render("[" + s.Label() + "]")
}

// Slot is where the preference is persisted.
type Slot interface {
	Get() (string, bool)
	Set(v string) error
}

// Manager owns the active theme. A saved preference wins; without one the
// terminal background decides and system changes are followed until the
// user toggles.
type Manager struct {
	slot Slot

	mu      sync.Mutex
	name    Name
	userSet bool
}

// NewManager resolves the initial theme. systemDark reports the terminal
// background; nil uses termenv.
func NewManager(slot Slot, systemDark func() bool) *Manager {
	if systemDark == nil {
		systemDark = termenv.HasDarkBackground
	}
	m := &Manager{slot: slot}
	if v, ok := slot.Get(); ok {
		if n, ok := ParseName(v); ok {
			m.name = n
			m.userSet = true
		}
	}
	if !m.userSet {
		m.name = nameFor(systemDark())
	}
	m.apply()
	return m
}

func nameFor(dark bool) Name {
	if dark {
		return Dark
	}
	return Light
}

func (m *Manager) Name() Name {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Current returns the active theme.
func (m *Manager) Current() Theme { return For(m.Name()) }

// Toggle flips between light and dark and persists the choice.
func (m *Manager) Toggle() (Name, error) {
	m.mu.Lock()
	if m.name == Dark {
		m.name = Light
	} else {
		m.name = Dark
	}
	m.userSet = true
	name := m.name
	m.mu.Unlock()
	m.apply()
	if err := m.slot.Set(string(name)); err != nil {
		return name, fmt.Errorf("save theme: %w", err)
	}
	return name, nil
}

// Set selects name explicitly and persists it.
func (m *Manager) Set(name Name) error {
	m.mu.Lock()
	m.name = name
	m.userSet = true
	m.mu.Unlock()
	m.apply()
	if err := m.slot.Set(string(name)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// SystemChanged follows the terminal's background unless the user has
// chosen a theme. It reports whether the active theme changed.
func (m *Manager) SystemChanged(dark bool) bool {
	m.mu.Lock()
	if m.userSet || m.name == nameFor(dark) {
		m.mu.Unlock()
		return false
	}
	m.name = nameFor(dark)
	m.mu.Unlock()
	m.apply()
	return true
}

// apply keeps lipgloss adaptive colours in line with the active theme.
func (m *Manager) apply() {
	lipgloss.SetHasDarkBackground(m.Name() == Dark)
}
