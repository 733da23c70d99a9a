package keys

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/huh"
)

// KeyMap defines the keybindings shared by the import dialogs and the
// progress view.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Toggle  key.Binding
	Confirm key.Binding
	Filter  key.Binding

	// Cancel dismisses a dialog or cancels the running import.
	Cancel key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("space", "x"),
			key.WithHelp("space", "toggle"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// ShortHelp returns the bindings shown under the progress view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cancel}
}

// FullHelp returns all keybindings grouped by category.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Toggle, k.Confirm, k.Filter},
		{k.Cancel},
	}
}

// Form returns a huh keymap whose select fields use k's navigation keys.
// Only ctrl+c aborts a form; esc stays with the fields, where it clears an
// active filter.
func (k *KeyMap) Form() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "cancel"),
	)
	km.Select.Up = k.Up
	km.Select.Down = k.Down
	km.Select.Filter = k.Filter
	km.MultiSelect.Up = k.Up
	km.MultiSelect.Down = k.Down
	km.MultiSelect.Toggle = k.Toggle
	km.MultiSelect.Filter = k.Filter
	return km
}
