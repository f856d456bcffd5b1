package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	NextTab  key.Binding
	PrevTab  key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Job actions
	Start     key.Binding
	StartFrom key.Binding
	StartNext key.Binding
	Stop      key.Binding
	Submit    key.Binding

	// Entity actions
	SetAlias  key.Binding
	AddMerch  key.Binding
	PrevMerch key.Binding
	NextMerch key.Binding
	CopyURL   key.Binding
	Edit      key.Binding
	Blur      key.Binding
	Alias     key.Binding

	// Application
	Refresh      key.Binding
	ClearConsole key.Binding
	Help         key.Binding
	Quit         key.Binding
	ForceQuit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next workflow"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("Shift+Tab", "previous workflow"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll console up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll console down"),
		),

		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		StartFrom: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "start from selected"),
		),
		StartNext: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next account without payment"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x", "ctrl+x"),
			key.WithHelp("x/Ctrl+X", "stop"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("Ctrl+S", "submit"),
		),

		SetAlias: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "set card alias"),
		),
		AddMerch: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "add merchandise"),
		),
		PrevMerch: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous merchandise"),
		),
		NextMerch: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next merchandise"),
		),
		CopyURL: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy merchandise url"),
		),
		Edit: key.NewBinding(
			key.WithKeys("i", "enter"),
			key.WithHelp("i/Enter", "edit form"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "leave form"),
		),
		Alias: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("Ctrl+G", "toggle dot aliasing"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("Ctrl+R", "refresh"),
		),
		ClearConsole: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("Ctrl+L", "clear console"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Start, k.Stop, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextTab, k.PrevTab, k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Start, k.StartFrom, k.StartNext, k.Stop, k.Submit},
		{k.Edit, k.Blur, k.Alias, k.SetAlias, k.AddMerch},
		{k.PrevMerch, k.NextMerch, k.CopyURL},
		{k.Refresh, k.ClearConsole, k.Help, k.Quit, k.ForceQuit},
	}
}
