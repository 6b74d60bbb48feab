package tui

import (
	"context"
	"sync"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/rides"
	"pelotourney-cli/internal/submit"

	tea "github.com/charmbracelet/bubbletea"
)

type tab int

const (
	tabTeams tab = iota
	tabRides
	tabPermissions
	tabSettings
)

var tabs = []tab{tabTeams, tabRides, tabPermissions, tabSettings}

func (t tab) fragment() string {
	switch t {
	case tabRides:
		return model.FragmentRides
	case tabPermissions:
		return model.FragmentPermissions
	case tabSettings:
		return model.FragmentSettings
	default:
		return model.FragmentTeams
	}
}

func (t tab) label() string {
	switch t {
	case tabRides:
		return "Rides"
	case tabPermissions:
		return "Permissions"
	case tabSettings:
		return "Settings"
	default:
		return "Teams"
	}
}

func tabFromFragment(f string) tab {
	for _, t := range tabs {
		if t.fragment() == f {
			return t
		}
	}
	return tabTeams
}

type stateLoadedMsg struct {
	seq   uint64
	state model.PageState
	err   error
}

// searchQueryMsg is sent by the search debouncer once typing settles. gen
// is the search session it was typed in; closing or reopening the search
// box starts a new one.
type searchQueryMsg struct {
	gen   uint64
	query string
}

type searchResultMsg struct {
	seq     uint64
	results []model.SearchResult
	err     error
}

// owner pins rides messages to the controller that issued them; a hard
// reload replaces the controller and orphans anything still in flight.
type optionsLoadedMsg struct {
	owner *rides.Controller
	res   rides.OptionsResult
}

type ridesResultMsg struct {
	owner *rides.Controller
	res   rides.Result
}

type submittedMsg struct {
	command string
	outcome submit.Outcome
	dest    model.Location
	err     error
}

// sender forwards messages from timer goroutines into the program. It is
// wired to tea.Program.Send once the program exists.
type sender struct {
	mu sync.Mutex
	fn func(tea.Msg)
}

func (s *sender) set(fn func(tea.Msg)) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

func (s *sender) send(msg tea.Msg) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// loopNavigator records where a submission wants to go. The reload itself
// happens on the event loop when submittedMsg arrives.
type loopNavigator struct {
	current  model.Location
	reloaded bool
	dest     model.Location
}

func (n *loopNavigator) Current() model.Location { return n.current }

func (n *loopNavigator) Reload(ctx context.Context) error {
	n.reloaded = true
	n.dest = n.current
	return nil
}

func (n *loopNavigator) Navigate(ctx context.Context, dest model.Location) error {
	n.dest = dest
	return nil
}
