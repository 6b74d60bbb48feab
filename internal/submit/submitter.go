// Package submit sends edits to the server and decides where the screen
// goes afterwards.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/perm"
	"pelotourney-cli/internal/roster"
	"pelotourney-cli/internal/settings"
	"pelotourney-cli/internal/store"

	"github.com/sirupsen/logrus"
)

// Backend is the mutating half of the API client.
type Backend interface {
	TournamentID() int64
	EditLocation(fragment string) model.Location
	UpdateTeams(ctx context.Context, teams []model.TeamPayload) error
	DeleteTeam(ctx context.Context, teamID int64) error
	DeleteMember(ctx context.Context, username string) error
	AddRide(ctx context.Context, rideID string) error
	DeleteRide(ctx context.Context, rideID string) error
	UpdatePermissions(ctx context.Context, perms []model.PermissionPayload) error
	UpdateTournament(ctx context.Context, p model.TournamentPayload) error
	SyncTournament(ctx context.Context) error
}

// Recorder journals submissions. *store.Journal satisfies it.
type Recorder interface {
	Begin(ctx context.Context, e store.Entry) (string, error)
	Finish(ctx context.Context, id string, cause error) error
}

type Option func(*Submitter)

func WithJournal(r Recorder) Option {
	return func(s *Submitter) { s.journal = r }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Submitter) {
		if l != nil {
			s.log = l
		}
	}
}

// Submitter performs one request per edit. A failed request leaves local
// state untouched and triggers no navigation, so the edit can be retried.
type Submitter struct {
	backend Backend
	nav     Navigator
	journal Recorder
	log     logrus.FieldLogger
}

func NewSubmitter(b Backend, nav Navigator, opts ...Option) *Submitter {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	s := &Submitter{backend: b, nav: nav, log: discard}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitTeams sends every team with its full member list.
func (s *Submitter) SubmitTeams(ctx context.Context, board *roster.Board) (Outcome, error) {
	payload := board.Payload()
	return s.run(ctx, CmdTeamsSave, model.FragmentTeams, payload, func(ctx context.Context) error {
		return s.backend.UpdateTeams(ctx, payload)
	})
}

// SubmitPermissions sends every member's role.
func (s *Submitter) SubmitPermissions(ctx context.Context, ed *perm.Editor) (Outcome, error) {
	payload, err := ed.Payload()
	if err != nil {
		return 0, err
	}
	return s.run(ctx, CmdPermissionsSave, model.FragmentPermissions, payload, func(ctx context.Context) error {
		return s.backend.UpdatePermissions(ctx, payload)
	})
}

// SubmitSettings sends the whole settings form. An invalid form is refused
// before anything is sent.
func (s *Submitter) SubmitSettings(ctx context.Context, f *settings.Form) (Outcome, error) {
	payload, err := f.Payload()
	if err != nil {
		return 0, err
	}
	return s.run(ctx, CmdTournamentSave, model.FragmentSettings, payload, func(ctx context.Context) error {
		return s.backend.UpdateTournament(ctx, payload)
	})
}

// Sync refreshes ride and workout data, then shows the settings view where
// last_synced is displayed.
func (s *Submitter) Sync(ctx context.Context) (Outcome, error) {
	return s.run(ctx, CmdTournamentSync, model.FragmentSettings, struct{}{}, func(ctx context.Context) error {
		return s.backend.SyncTournament(ctx)
	})
}

func (s *Submitter) AddRide(ctx context.Context, rideID string) (Outcome, error) {
	if rideID == "" {
		return 0, fmt.Errorf("%w: ride id", ErrMissingArgument)
	}
	return s.run(ctx, CmdRideAdd, model.FragmentRides, model.RidePayload{RideID: rideID}, func(ctx context.Context) error {
		return s.backend.AddRide(ctx, rideID)
	})
}

func (s *Submitter) DeleteRide(ctx context.Context, rideID string) (Outcome, error) {
	if rideID == "" {
		return 0, fmt.Errorf("%w: ride id", ErrMissingArgument)
	}
	return s.run(ctx, CmdRideDelete, model.FragmentRides, model.RidePayload{RideID: rideID}, func(ctx context.Context) error {
		return s.backend.DeleteRide(ctx, rideID)
	})
}

func (s *Submitter) DeleteTeam(ctx context.Context, teamID int64) (Outcome, error) {
	if teamID <= 0 {
		return 0, fmt.Errorf("%w: team id", ErrMissingArgument)
	}
	return s.run(ctx, CmdTeamDelete, model.FragmentTeams, model.TeamRef{TeamID: teamID}, func(ctx context.Context) error {
		return s.backend.DeleteTeam(ctx, teamID)
	})
}

func (s *Submitter) DeleteMember(ctx context.Context, username string) (Outcome, error) {
	if username == "" {
		return 0, fmt.Errorf("%w: username", ErrMissingArgument)
	}
	return s.run(ctx, CmdMemberDelete, model.FragmentTeams, model.MemberRef{Username: username}, func(ctx context.Context) error {
		return s.backend.DeleteMember(ctx, username)
	})
}

func (s *Submitter) run(ctx context.Context, command, fragment string, payload any, call func(context.Context) error) (Outcome, error) {
	log := s.log.WithFields(logrus.Fields{"op": command, "tournament_id": s.backend.TournamentID()})

	entryID := s.begin(ctx, log, command, payload)
	err := call(ctx)
	s.finish(ctx, log, entryID, err)
	if err != nil {
		log.WithError(err).Warn("submission failed")
		return 0, fmt.Errorf("%s: %w", command, err)
	}

	dest := s.backend.EditLocation(fragment)
	out, err := RedirectOrRefresh(ctx, s.nav, dest)
	log.WithFields(logrus.Fields{"outcome": out.String(), "location": dest.String()}).Info("submission applied")
	if err != nil {
		return out, fmt.Errorf("%s: after submit: %w", command, err)
	}
	return out, nil
}

// Journal errors are logged and never block a submission.
func (s *Submitter) begin(ctx context.Context, log logrus.FieldLogger, command string, payload any) string {
	if s.journal == nil {
		return ""
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Warn("journal: marshal payload")
		b = nil
	}
	id, err := s.journal.Begin(ctx, store.Entry{TournamentID: s.backend.TournamentID(), Command: command, Payload: b})
	if err != nil {
		log.WithError(err).Warn("journal: begin")
		return ""
	}
	return id
}

func (s *Submitter) finish(ctx context.Context, log logrus.FieldLogger, id string, cause error) {
	if s.journal == nil || id == "" {
		return
	}
	if err := s.journal.Finish(ctx, id, cause); err != nil {
		log.WithError(err).Warn("journal: finish")
	}
}
