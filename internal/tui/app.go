package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pelotourney-cli/internal/debounce"
	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/perm"
	"pelotourney-cli/internal/region"
	"pelotourney-cli/internal/rides"
	"pelotourney-cli/internal/roster"
	"pelotourney-cli/internal/settings"
	"pelotourney-cli/internal/submit"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const teamFamily = "teams"

// Backend is everything the edit screen talks to.
type Backend interface {
	rides.Source
	submit.Backend
	State(ctx context.Context) (model.PageState, error)
	SearchMembers(ctx context.Context, query string) ([]model.SearchResult, error)
}

type Deps struct {
	Backend        Backend
	Journal        submit.Recorder
	Log            logrus.FieldLogger
	SearchDebounce time.Duration
	RequestTimeout time.Duration
	JoinPolicy     rides.JoinPolicy
	Clock          clockwork.Clock
}

type appModel struct {
	deps Deps
	keys keyMap
	log  logrus.FieldLogger

	width  int
	height int

	loc model.Location
	tab tab

	page  region.Region[model.PageState]
	board *roster.Board
	perms *perm.Editor

	attached    []rides.Row
	attachedErr error
	form        *settings.Form

	teamCol int
	teamRow int
	rideRow int
	permRow int
	setRow  int

	editing bool
	field   textinput.Model

	searching     bool
	search        textinput.Model
	searchResults region.Region[[]model.SearchResult]
	searchRow     int
	searchGen     uint64
	debouncer     *debounce.Debouncer[searchQueryMsg]
	sender        *sender

	ridesOpen bool
	filters   *rides.Controller
	modal     modalFocus
	optCursor [2]int
	resultRow int

	confirm    *confirmState
	submitting bool
	status     string
	statusErr  bool

	// Spinner ticks only run inside a real program.
	animate bool
	spinner spinner.Model
}

func newAppModel(deps Deps) appModel {
	if deps.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		deps.Log = l
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.SearchDebounce <= 0 {
		deps.SearchDebounce = 250 * time.Millisecond
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 10 * time.Second
	}

	m := appModel{
		deps:   deps,
		keys:   defaultKeyMap(),
		log:    deps.Log.WithField("tournament_id", deps.Backend.TournamentID()),
		loc:    deps.Backend.EditLocation(model.FragmentTeams),
		tab:    tabTeams,
		sender: &sender{},
	}
	m.search = textinput.New()
	m.search.Prompt = "/ "
	m.search.Placeholder = "search riders"
	m.search.CharLimit = 64

	m.field = textinput.New()
	m.field.Prompt = ""
	m.field.CharLimit = 200

	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))

	snd := m.sender
	m.debouncer = debounce.New(deps.SearchDebounce, func(q searchQueryMsg) {
		snd.send(q)
	}, debounce.WithClock(deps.Clock))
	m.filters = m.newController()
	// Init cannot mutate the model, so the first hydration seq is taken here.
	m.page.Begin()
	return m
}

func (m appModel) newController() *rides.Controller {
	return rides.NewController(rides.NewRefresher(m.deps.Backend,
		rides.WithTimeout(m.deps.RequestTimeout),
		rides.WithJoinPolicy(m.deps.JoinPolicy),
		rides.WithLogger(m.log),
	))
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadStateCmd(m.page.Seq())}
	if m.animate {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// hardReload discards every piece of local state and re-hydrates from the
// server, the same as reloading the page.
func (m *appModel) hardReload() tea.Cmd {
	m.cancelSearch()
	m.board = nil
	m.perms = nil
	m.form = nil
	m.attached, m.attachedErr = nil, nil
	m.teamCol, m.teamRow, m.rideRow, m.permRow, m.setRow = 0, 0, 0, 0, 0
	m.editing = false
	m.field.Blur()
	m.searching = false
	m.search.Reset()
	m.search.Blur()
	m.searchResults.Reset()
	m.searchRow = 0
	m.ridesOpen = false
	m.filters = m.newController()
	m.modal = focusInstructor
	m.optCursor = [2]int{}
	m.resultRow = 0
	m.confirm = nil

	seq := m.page.Begin()
	m.log.WithField("seq", seq).Debug("hydrating edit screen")
	return m.loadStateCmd(seq)
}

func (m appModel) loadStateCmd(seq uint64) tea.Cmd {
	backend := m.deps.Backend
	timeout := m.deps.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		st, err := backend.State(ctx)
		return stateLoadedMsg{seq: seq, state: st, err: err}
	}
}

func (m *appModel) applyState(msg stateLoadedMsg) {
	if msg.err != nil {
		if m.page.Fail(msg.seq, msg.err) {
			m.setError(fmt.Errorf("load tournament: %w", msg.err))
		}
		return
	}
	if !m.page.Current(msg.seq) {
		return
	}
	board, err := roster.NewBoard(teamFamily, msg.state.Teams)
	if err != nil {
		m.page.Fail(msg.seq, err)
		m.setError(err)
		return
	}
	m.page.Resolve(msg.seq, msg.state)
	m.board = board
	m.perms = perm.NewEditor(msg.state.Members)
	m.form = settings.NewForm(msg.state.Tournament)
	m.attached, m.attachedErr = rides.Join(model.RideList{Data: msg.state.Rides, Instructors: msg.state.Instructors}, m.deps.JoinPolicy, m.log)
	if m.attachedErr != nil {
		m.setError(fmt.Errorf("attached rides: %w", m.attachedErr))
	}
}

func (m *appModel) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *appModel) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

func (m appModel) ready() bool {
	return m.page.State() == region.Ready && m.board != nil && m.perms != nil && m.form != nil
}

// dispatch runs one named command off the loop. Local state is frozen
// until submittedMsg arrives.
func (m *appModel) dispatch(c submit.Command) tea.Cmd {
	if m.submitting {
		return nil
	}
	m.submitting = true
	m.setStatus("saving " + c.Name + "…")

	nav := &loopNavigator{current: m.loc}
	opts := []submit.Option{submit.WithLogger(m.log)}
	if m.deps.Journal != nil {
		opts = append(opts, submit.WithJournal(m.deps.Journal))
	}
	d := submit.NewDispatcher(submit.NewSubmitter(m.deps.Backend, nav, opts...))
	timeout := m.deps.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out, err := d.Dispatch(ctx, c)
		return submittedMsg{command: c.Name, outcome: out, dest: nav.dest, err: err}
	}
}

func (m *appModel) applySubmitted(msg submittedMsg) tea.Cmd {
	m.submitting = false
	if msg.err != nil {
		m.setError(msg.err)
		return nil
	}
	if msg.outcome == submit.Navigated {
		m.loc = msg.dest
		m.tab = tabFromFragment(msg.dest.Fragment)
	}
	cmd := m.hardReload()
	m.setStatus(fmt.Sprintf("%s ok (%s)", msg.command, msg.outcome))
	return cmd
}

func (m *appModel) switchTab(t tab) {
	m.tab = t
	m.loc = m.loc.WithFragment(t.fragment())
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.animate {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateLoadedMsg:
		m.applyState(msg)
		return m, nil

	case searchQueryMsg:
		return m, m.startSearch(msg)

	case searchResultMsg:
		m.applySearch(msg)
		return m, nil

	case optionsLoadedMsg:
		if msg.owner != m.filters {
			return m, nil
		}
		step := m.filters.OptionsLoaded(msg.res)
		if msg.res.Err != nil {
			m.setError(msg.res.Err)
		}
		return m, m.runStep(step)

	case ridesResultMsg:
		if msg.owner != m.filters {
			return m, nil
		}
		m.filters.Apply(msg.res)
		m.clampResultRow()
		return m, nil

	case submittedMsg:
		return m, m.applySubmitted(msg)

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.debouncer.Stop()
		return m, tea.Quit
	}
	switch {
	case m.confirm != nil:
		return m.updateConfirm(msg)
	case m.ridesOpen:
		return m.updateRidesModal(msg)
	case m.searching:
		return m.updateSearch(msg)
	case m.editing:
		return m.updateSettingsInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.debouncer.Stop()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Reload):
		if m.submitting {
			return m, nil
		}
		m.setStatus("reloaded")
		return m, m.hardReload()
	case key.Matches(msg, m.keys.NextTab):
		m.switchTab(tabs[(int(m.tab)+1)%len(tabs)])
		return m, nil
	case key.Matches(msg, m.keys.PrevTab):
		m.switchTab(tabs[(int(m.tab)+len(tabs)-1)%len(tabs)])
		return m, nil
	}
	switch msg.String() {
	case "1", "2", "3", "4":
		m.switchTab(tabs[int(msg.String()[0]-'1')])
		return m, nil
	}

	if !m.ready() || m.submitting {
		return m, nil
	}
	switch m.tab {
	case tabRides:
		return m.updateRidesTab(msg)
	case tabPermissions:
		return m.updatePermissions(msg)
	case tabSettings:
		return m.updateSettings(msg)
	default:
		return m.updateTeams(msg)
	}
}

func (m appModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.confirm = nil
		return m, nil
	case key.Matches(msg, m.keys.Tab), key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Right):
		m.confirm.toggle()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		c := *m.confirm
		m.confirm = nil
		if c.focus != confirmFocusConfirm {
			return m, nil
		}
		return m, m.dispatch(c.command)
	}
	return m, nil
}

func (m appModel) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	height := m.height
	if height <= 0 {
		height = 30
	}

	header := m.viewHeader(width)
	footer := m.viewFooter(width)
	bodyH := height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyH < 3 {
		bodyH = 3
	}

	var body string
	switch {
	case m.confirm != nil:
		body = overlayCenter(width, bodyH, renderConfirmModal(width, *m.confirm))
	case m.ridesOpen:
		body = overlayCenter(width, bodyH, m.viewRidesModal(width, bodyH))
	case m.page.State() == region.Loading || m.page.State() == region.Idle:
		body = m.spinner.View() + " loading tournament…"
	case m.page.State() == region.Failed:
		body = styleError().Render("could not load tournament: "+errString(m.page.Err())) + "\n" + styleMuted().Render("r: retry")
	default:
		switch m.tab {
		case tabRides:
			body = m.viewRidesTab(width, bodyH)
		case tabPermissions:
			body = m.viewPermissions(width, bodyH)
		case tabSettings:
			body = m.viewSettings(width, bodyH)
		default:
			body = m.viewTeams(width, bodyH)
		}
	}
	return strings.Join([]string{header, normalizePane(body, width, bodyH), footer}, "\n")
}

func (m appModel) viewHeader(width int) string {
	name := "…"
	if m.page.State() == region.Ready {
		name = m.page.Value().Tournament.Name
	}
	title := lipgloss.NewStyle().Bold(true).Render("pelotourney · " + name)

	parts := make([]string, 0, len(tabs))
	for i, t := range tabs {
		label := fmt.Sprintf(" %d %s ", i+1, t.label())
		if t == m.tab {
			parts = append(parts, styleSelected().Render(label))
		} else {
			parts = append(parts, styleMuted().Render(label))
		}
	}
	loc := styleMuted().Render(m.loc.String())
	line := title + "   " + strings.Join(parts, "") + "   " + loc
	return truncateText(line, width) + "\n"
}

func (m appModel) viewFooter(width int) string {
	status := ""
	if m.status != "" {
		if m.statusErr {
			status = styleError().Render(m.status)
		} else {
			status = lipgloss.NewStyle().Foreground(colorOK).Render(m.status)
		}
	}
	var help string
	switch {
	case m.confirm != nil:
		help = ""
	case m.ridesOpen:
		help = helpLine(m.keys.Tab, m.keys.Up, m.keys.Enter, m.keys.Clear, m.keys.Back)
	case m.searching:
		help = "type to search  up/down: pick  enter: focus rider  esc: close"
	case m.tab == tabRides:
		help = helpLine(m.keys.Up, m.keys.AddRide, m.keys.Delete, m.keys.Reload, m.keys.NextTab, m.keys.Quit)
	case m.tab == tabPermissions:
		help = "h/l: change role  " + helpLine(m.keys.Up, m.keys.Save, m.keys.Reload, m.keys.NextTab, m.keys.Quit)
	case m.editing:
		help = "enter: keep  esc: discard"
	case m.tab == tabSettings:
		help = "enter: edit  h/l: visibility  " + helpLine(m.keys.Up, m.keys.Save, m.keys.Sync, m.keys.Reload, m.keys.Quit)
	default:
		help = helpLine(m.keys.Left, m.keys.Up, m.keys.DropLeft, m.keys.MoveUp, m.keys.Search, m.keys.Save, m.keys.Delete, m.keys.DeleteAll, m.keys.Reload, m.keys.Quit)
	}
	return truncateText(status, width) + "\n" + styleMuted().Render(truncateText(help, width))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
