package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the agent status view.
type KeyMap struct {
	Refresh       key.Binding
	Notifications key.Binding
	Quit          key.Binding
}

// Default returns the default key bindings.
func Default() *KeyMap {
	return &KeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "scan now"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "mark notifications read"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Notifications, k.Quit}
}

// FullHelp returns all bindings grouped into columns.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Notifications},
		{k.Quit},
	}
}
