package submit

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"pelotourney-cli/internal/perm"
	"pelotourney-cli/internal/roster"
	"pelotourney-cli/internal/settings"
)

const (
	CmdTeamsSave       = "teams.save"
	CmdTeamDelete      = "team.delete"
	CmdMemberDelete    = "member.delete"
	CmdRideAdd         = "ride.add"
	CmdRideDelete      = "ride.delete"
	CmdPermissionsSave = "permissions.save"
	CmdTournamentSave  = "tournament.save"
	CmdTournamentSync  = "tournament.sync"
)

var (
	ErrUnknownCommand  = errors.New("submit: unknown command")
	ErrMissingArgument = errors.New("submit: missing argument")
)

// Command is a named edit with its explicit arguments. Only the fields the
// named command needs are read.
type Command struct {
	Name        string
	TeamID      int64
	Username    string
	RideID      string
	Board       *roster.Board
	Permissions *perm.Editor
	Settings    *settings.Form
}

// Dispatcher is the single entry point from UI actions to submissions.
type Dispatcher struct {
	handlers map[string]func(context.Context, Command) (Outcome, error)
}

func NewDispatcher(sub *Submitter) *Dispatcher {
	d := &Dispatcher{}
	d.handlers = map[string]func(context.Context, Command) (Outcome, error){
		CmdTeamsSave: func(ctx context.Context, c Command) (Outcome, error) {
			if c.Board == nil {
				return 0, fmt.Errorf("%w: board", ErrMissingArgument)
			}
			return sub.SubmitTeams(ctx, c.Board)
		},
		CmdPermissionsSave: func(ctx context.Context, c Command) (Outcome, error) {
			if c.Permissions == nil {
				return 0, fmt.Errorf("%w: permissions", ErrMissingArgument)
			}
			return sub.SubmitPermissions(ctx, c.Permissions)
		},
		CmdTournamentSave: func(ctx context.Context, c Command) (Outcome, error) {
			if c.Settings == nil {
				return 0, fmt.Errorf("%w: settings", ErrMissingArgument)
			}
			return sub.SubmitSettings(ctx, c.Settings)
		},
		CmdTournamentSync: func(ctx context.Context, c Command) (Outcome, error) {
			return sub.Sync(ctx)
		},
		CmdTeamDelete: func(ctx context.Context, c Command) (Outcome, error) {
			return sub.DeleteTeam(ctx, c.TeamID)
		},
		CmdMemberDelete: func(ctx context.Context, c Command) (Outcome, error) {
			return sub.DeleteMember(ctx, c.Username)
		},
		CmdRideAdd: func(ctx context.Context, c Command) (Outcome, error) {
			return sub.AddRide(ctx, c.RideID)
		},
		CmdRideDelete: func(ctx context.Context, c Command) (Outcome, error) {
			return sub.DeleteRide(ctx, c.RideID)
		},
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, c Command) (Outcome, error) {
	h, ok := d.handlers[c.Name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
	return h(ctx, c)
}

// Commands lists the registered command names.
func (d *Dispatcher) Commands() []string {
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
