package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/region"
	"pelotourney-cli/internal/rides"
	"pelotourney-cli/internal/submit"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type modalFocus int

const (
	focusInstructor modalFocus = iota
	focusDuration
	focusResults
)

func (f modalFocus) axis() string {
	if f == focusDuration {
		return model.AxisDuration
	}
	return model.AxisInstructor
}

// runStep starts whatever asynchronous work the filter controller asked for.
func (m *appModel) runStep(step rides.Step) tea.Cmd {
	ctrl := m.filters
	var cmds []tea.Cmd
	if step.LoadOptions {
		cmds = append(cmds, func() tea.Msg {
			return optionsLoadedMsg{owner: ctrl, res: ctrl.LoadOptions(context.Background())}
		})
	}
	if step.Refresh != nil {
		req := *step.Refresh
		r := ctrl.Refresher()
		m.resultRow = 0
		cmds = append(cmds, func() tea.Msg {
			return ridesResultMsg{owner: ctrl, res: r.Fetch(context.Background(), req)}
		})
	}
	return tea.Batch(cmds...)
}

func (m *appModel) resultRows() []rides.Row {
	reg := m.filters.Refresher().Region()
	if reg.State() != region.Ready {
		return nil
	}
	return reg.Value()
}

func (m *appModel) clampResultRow() {
	m.resultRow = clamp(m.resultRow, 0, max(0, len(m.resultRows())-1))
}

// attachedRows is the tournament's rides joined to their instructors when
// the page was hydrated, under the configured join policy.
func (m appModel) attachedRows() []rides.Row {
	if m.page.State() != region.Ready {
		return nil
	}
	return m.attached
}

func (m appModel) updateRidesTab(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	attached := m.attachedRows()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.rideRow = max(0, m.rideRow-1)
	case key.Matches(msg, m.keys.Down):
		m.rideRow = clamp(m.rideRow+1, 0, max(0, len(attached)-1))
	case key.Matches(msg, m.keys.AddRide):
		m.ridesOpen = true
		m.modal = focusInstructor
		return m, m.runStep(m.filters.Open())
	case key.Matches(msg, m.keys.Delete):
		if m.rideRow >= len(attached) {
			return m, nil
		}
		r := attached[m.rideRow].Ride
		m.confirm = &confirmState{
			title:   "Remove ride",
			body:    fmt.Sprintf("Remove %q from the tournament?", r.Title),
			command: submit.Command{Name: submit.CmdRideDelete, RideID: r.ID},
		}
	}
	return m, nil
}

func (m appModel) updateRidesModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.ridesOpen = false
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		m.modal = (m.modal + 1) % 3
		return m, nil
	case msg.String() == "shift+tab":
		m.modal = (m.modal + 2) % 3
		return m, nil
	}

	if m.modal == focusResults {
		rows := m.resultRows()
		switch {
		case key.Matches(msg, m.keys.Up):
			m.resultRow = max(0, m.resultRow-1)
		case key.Matches(msg, m.keys.Down):
			m.resultRow = clamp(m.resultRow+1, 0, max(0, len(rows)-1))
		case key.Matches(msg, m.keys.Reload):
			// Retry after a failure with the same selections.
			if m.filters.State() == rides.Unpopulated {
				return m, m.runStep(m.filters.Open())
			}
			req := m.filters.Refresher().Begin(m.filters.Snapshot())
			return m, m.runStep(rides.Step{Refresh: &req})
		case key.Matches(msg, m.keys.Enter):
			if m.submitting || m.resultRow >= len(rows) {
				return m, nil
			}
			m.ridesOpen = false
			return m, m.dispatch(submit.Command{Name: submit.CmdRideAdd, RideID: rows[m.resultRow].Ride.ID})
		}
		return m, nil
	}

	if m.filters.State() != rides.Ready {
		if key.Matches(msg, m.keys.Reload) && m.filters.State() == rides.Unpopulated {
			return m, m.runStep(m.filters.Open())
		}
		return m, nil
	}
	axis, _ := m.filters.Axis(m.modal.axis())
	opts := axis.Options()
	cur := &m.optCursor[m.modal]
	switch {
	case key.Matches(msg, m.keys.Up):
		*cur = max(0, *cur-1)
	case key.Matches(msg, m.keys.Down):
		*cur = clamp(*cur+1, 0, len(opts))
	case key.Matches(msg, m.keys.Clear):
		*cur = 0
		return m.selectAxis(axis.Name, "")
	case key.Matches(msg, m.keys.Enter):
		value := ""
		if *cur > 0 && *cur <= len(opts) {
			value = opts[*cur-1].Value
		}
		return m.selectAxis(axis.Name, value)
	}
	return m, nil
}

func (m appModel) selectAxis(axis, value string) (tea.Model, tea.Cmd) {
	step, err := m.filters.Select(axis, value)
	if err != nil {
		m.setError(err)
		return m, nil
	}
	return m, m.runStep(step)
}

func (m appModel) viewRidesTab(width, height int) string {
	attached := m.attachedRows()
	lines := []string{styleHeader().Render(fmt.Sprintf("Rides (%d)", len(attached)))}
	if m.attachedErr != nil {
		lines = append(lines, styleError().Width(width).Render(errString(m.attachedErr)), styleMuted().Render("r: reload"))
		return strings.Join(lines, "\n")
	}
	if len(attached) == 0 {
		lines = append(lines, styleMuted().Render("No rides yet. Press a to add one."))
	}
	for i, row := range attached {
		label := fmt.Sprintf("%-32s %-16s %s", truncateText(row.Ride.Title, 32), truncateText(row.Instructor.Name, 16), formatDuration(row.Ride.Duration))
		label = truncateText(label, width)
		if i == m.rideRow {
			label = styleSelected().Width(width).Render(label)
		}
		lines = append(lines, label)
	}
	if m.rideRow < len(attached) {
		if d := strings.TrimSpace(attached[m.rideRow].Ride.Description); d != "" {
			lines = append(lines, "", renderMarkdown(d, width))
		}
	}
	return strings.Join(lines, "\n")
}

func (m appModel) viewRidesModal(width, height int) string {
	bodyW := modalBodyWidth(width)
	axisW := (bodyW - 2) / 2

	axisPanes := make([]string, 0, 2)
	for i, a := range m.filters.Axes() {
		focus := modalFocus(i)
		axisPanes = append(axisPanes, normalizePane(m.viewAxis(a, focus, axisW), axisW, 7))
	}
	parts := []string{joinColumns(axisPanes, 2), ""}

	head := "Results"
	if m.modal == focusResults {
		head = styleHeader().Render(head)
	} else {
		head = lipgloss.NewStyle().Bold(true).Render(head)
	}
	parts = append(parts, head)

	reg := m.filters.Refresher().Region()
	switch {
	case m.filters.State() == rides.Populating:
		parts = append(parts, m.spinner.View()+" loading filters…")
	case reg.State() == region.Loading:
		parts = append(parts, m.spinner.View()+" loading rides…")
	case reg.State() == region.Failed:
		parts = append(parts, styleError().Width(bodyW).Render(errString(reg.Err())), styleMuted().Render("r: retry"))
	case reg.State() == region.Ready:
		rows := reg.Value()
		if len(rows) == 0 {
			parts = append(parts, styleMuted().Render("No rides match these filters."))
		}
		for i, row := range rows {
			label := truncateText(fmt.Sprintf("%s · %s · %s", row.Ride.Title, row.Instructor.Name, formatDuration(row.Ride.Duration)), bodyW)
			if m.modal == focusResults && i == m.resultRow {
				label = styleSelected().Width(bodyW).Render(label)
			}
			parts = append(parts, label)
		}
		if m.modal == focusResults && m.resultRow < len(rows) {
			if d := strings.TrimSpace(rows[m.resultRow].Ride.Description); d != "" {
				parts = append(parts, "", renderMarkdown(d, bodyW))
			}
		}
	}
	return renderModalBox(width, "Add ride", strings.Join(parts, "\n"))
}

func (m appModel) viewAxis(a *rides.Axis, focus modalFocus, width int) string {
	title := strings.ToUpper(a.Name[:1]) + a.Name[1:]
	if m.modal == focus {
		title = styleHeader().Render(title)
	} else {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}
	lines := []string{title}
	if !a.Populated() {
		return strings.Join(append(lines, styleMuted().Render("…")), "\n")
	}
	opts := append([]model.FilterOption{{Value: "", DisplayName: "Any"}}, a.Options()...)
	for i, o := range opts {
		mark := "  "
		if o.Value == a.Selected() {
			mark = "● "
		}
		label := truncateText(mark+o.DisplayName, width)
		if m.modal == focus && i == m.optCursor[focus] {
			label = styleSelected().Width(width).Render(label)
		}
		lines = append(lines, label)
	}
	return strings.Join(lines, "\n")
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return (time.Duration(seconds) * time.Second).String()
}
