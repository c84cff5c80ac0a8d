package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	process key.Binding
	remove  key.Binding
	clear   key.Binding
	refresh key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		process: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "process")),
		remove:  key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
		clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		back:    key.NewBinding(key.WithKeys("esc", "enter"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.process, k.remove, k.clear, k.refresh, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.process, k.remove, k.clear, k.refresh},
		{k.back, k.yes, k.no, k.quit},
	}
}
