package tui

import (
	"fmt"
	"strings"
	"time"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/settings"
	"pelotourney-cli/internal/submit"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

var settingsLabels = map[string]string{
	settings.FieldName:       "Name",
	settings.FieldStartDate:  "Start date",
	settings.FieldEndDate:    "End date",
	settings.FieldVisibility: "Visibility",
}

func (m appModel) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	field := settings.Fields[m.setRow]
	switch {
	case key.Matches(msg, m.keys.Up):
		m.setRow = max(0, m.setRow-1)
	case key.Matches(msg, m.keys.Down):
		m.setRow = min(m.setRow+1, len(settings.Fields)-1)
	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Right):
		if field != settings.FieldVisibility {
			return m, nil
		}
		step := 1
		if key.Matches(msg, m.keys.Left) {
			step = -1
		}
		m.form.CycleVisibility(step)
	case key.Matches(msg, m.keys.Enter):
		if field == settings.FieldVisibility {
			m.form.CycleVisibility(1)
			return m, nil
		}
		m.editing = true
		m.field.SetValue(m.form.Get(field))
		m.field.CursorEnd()
		return m, m.field.Focus()
	case key.Matches(msg, m.keys.Save):
		if _, err := m.form.Payload(); err != nil {
			m.setError(err)
			return m, nil
		}
		return m, m.dispatch(submit.Command{Name: submit.CmdTournamentSave, Settings: m.form})
	case key.Matches(msg, m.keys.Sync):
		m.confirm = &confirmState{
			title:   "Sync tournament",
			body:    "Refresh rides and workouts for every participant? Unsaved settings are discarded.",
			command: submit.Command{Name: submit.CmdTournamentSync},
		}
	}
	return m, nil
}

// updateSettingsInput edits one text field. enter keeps the value in the
// form, esc drops it.
func (m appModel) updateSettingsInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.editing = false
		m.field.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		m.editing = false
		m.field.Blur()
		if err := m.form.Set(settings.Fields[m.setRow], m.field.Value()); err != nil {
			m.setError(err)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.field, cmd = m.field.Update(msg)
	return m, cmd
}

func (m appModel) viewSettings(width, height int) string {
	if m.form == nil {
		return ""
	}
	t := m.page.Value().Tournament
	lines := []string{styleHeader().Render("Tournament")}
	for i, field := range settings.Fields {
		value := m.form.Get(field)
		if m.editing && i == m.setRow {
			value = m.field.View()
		} else if m.form.Dirty(field) {
			value = styleDirty().Render(value + " *")
		}
		label := truncateText(fmt.Sprintf("%-12s %s", settingsLabels[field], value), width)
		if i == m.setRow && !m.editing {
			label = styleSelected().Width(width).Render(label)
		}
		lines = append(lines, label)
	}
	format := t.Format
	if format == "" {
		format = model.FormatSimple
	}
	lines = append(lines, "",
		styleMuted().Render(fmt.Sprintf("%-12s %s", "Format", format)),
		styleMuted().Render(fmt.Sprintf("%-12s %s", "Last synced", formatSynced(t.LastSynced))),
	)
	if n := m.form.DirtyCount(); n > 0 {
		lines = append(lines, "", styleDirty().Render(fmt.Sprintf("%d unsaved change(s), ctrl+s to save", n)))
	}
	return strings.Join(lines, "\n")
}

func formatSynced(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
