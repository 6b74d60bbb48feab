package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	NextTab   key.Binding
	PrevTab   key.Binding
	Reload    key.Binding
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	DropLeft  key.Binding
	DropRight key.Binding
	MoveUp    key.Binding
	MoveDown  key.Binding
	Search    key.Binding
	Save      key.Binding
	Delete    key.Binding
	DeleteAll key.Binding
	AddRide   key.Binding
	Sync      key.Binding
	Enter     key.Binding
	Clear     key.Binding
	Tab       key.Binding
	Back      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		NextTab:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next tab")),
		PrevTab:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev tab")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Left:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/l", "focus")),
		Right:     key.NewBinding(key.WithKeys("l", "right")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "move")),
		Down:      key.NewBinding(key.WithKeys("j", "down")),
		DropLeft:  key.NewBinding(key.WithKeys("H", "shift+left"), key.WithHelp("H/L", "move to team")),
		DropRight: key.NewBinding(key.WithKeys("L", "shift+right")),
		MoveUp:    key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("J/K", "reorder")),
		MoveDown:  key.NewBinding(key.WithKeys("J", "shift+down")),
		Search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		DeleteAll: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete team")),
		AddRide:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add ride")),
		Sync:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync")),
		Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Clear:     key.NewBinding(key.WithKeys("x", "backspace"), key.WithHelp("x", "clear filter")),
		Tab:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

func helpLine(bindings ...key.Binding) string {
	out := ""
	for _, b := range bindings {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		if out != "" {
			out += "  "
		}
		out += h.Key + ": " + h.Desc
	}
	return out
}
