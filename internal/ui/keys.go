package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap implements help.KeyMap.
type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Dec    key.Binding
	Inc    key.Binding
	Submit key.Binding
	Export key.Binding
	Help   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	Prev:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
	Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Toggle: key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle feature")),
	Dec:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "decrease")),
	Inc:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "increase")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run")),
	Export: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export boxplot")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Toggle, k.Submit, k.Export, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Up, k.Down},
		{k.Toggle, k.Dec, k.Inc},
		{k.Submit, k.Export, k.Help, k.Quit},
	}
}
