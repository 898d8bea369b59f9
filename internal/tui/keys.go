package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcin-skalski/nighthub/internal/dashboard"
)

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Left       key.Binding
	Right      key.Binding
	Enter      key.Binding
	Back       key.Binding
	Refresh    key.Binding
	RefreshDue key.Binding
	Quit       key.Binding
}

var defaultKeys = keyMap{
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "repo up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "repo down")),
	Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev run")),
	Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next run")),
	Enter:      key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "menu")),
	Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh all")),
	RefreshDue: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh due")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Right, k.Enter, k.Back, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Enter, k.Back},
		{k.Refresh, k.RefreshDue, k.Quit},
	}
}

// input maps a key to a navigation symbol.
func (k keyMap) input(msg tea.KeyMsg) (dashboard.Input, bool) {
	switch {
	case key.Matches(msg, k.Down):
		return dashboard.InputDown, true
	case key.Matches(msg, k.Up):
		return dashboard.InputUp, true
	case key.Matches(msg, k.Right):
		return dashboard.InputRight, true
	case key.Matches(msg, k.Left):
		return dashboard.InputLeft, true
	case key.Matches(msg, k.Enter):
		return dashboard.InputActivate, true
	case key.Matches(msg, k.Back):
		return dashboard.InputCancel, true
	}
	return 0, false
}
