package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive edit screen and blocks until it exits.
func Run(deps Deps) error {
	applyThemePreference()
	applyColorProfilePreference()

	m := newAppModel(deps)
	m.animate = true
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.sender.set(p.Send)
	_, err := p.Run()
	m.debouncer.Stop()
	return err
}
