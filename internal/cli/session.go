package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pelotourney-cli/internal/api"
	"pelotourney-cli/internal/model"
	"pelotourney-cli/internal/rides"
	"pelotourney-cli/internal/store"
	"pelotourney-cli/internal/submit"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// session is everything one command invocation talks to.
type session struct {
	cfg     store.Config
	log     *logrus.Logger
	client  *api.Client
	journal *store.Journal
	policy  rides.JoinPolicy

	closers []io.Closer
}

// openSession loads config and builds the logger, client and journal. The
// TUI owns the terminal, so with no log file its logs are discarded;
// scriptable commands log to stderr instead.
func openSession(cmd *cobra.Command, app *App, interactive bool) (*session, error) {
	cfg, err := loadConfig(cmd, app)
	if err != nil {
		return nil, err
	}
	return openSessionWithConfig(cmd, cfg, interactive)
}

func openSessionWithConfig(cmd *cobra.Command, cfg store.Config, interactive bool) (*session, error) {
	s := &session{cfg: cfg}

	fallback := cmd.ErrOrStderr()
	if interactive {
		fallback = io.Discard
	}
	log, closer, err := newLogger(cfg, fallback)
	if err != nil {
		return nil, err
	}
	s.log = log
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	s.policy, err = rides.ParseJoinPolicy(cfg.JoinPolicy)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.client, err = api.New(cfg.BaseURL, cfg.TournamentID,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log),
	)
	if err != nil {
		s.Close()
		return nil, err
	}

	// The journal is best effort: a submission never waits on it.
	j, err := store.OpenJournal(cmd.Context(), cfg.JournalPath)
	if err != nil {
		log.WithError(err).Warn("journal unavailable; submissions will not be recorded")
	} else {
		s.journal = j
		s.closers = append(s.closers, j)
	}
	return s, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
	s.closers = nil
}

// recorder returns the journal as a submit.Recorder, or nil when it is
// unavailable.
func (s *session) recorder() submit.Recorder {
	if s.journal == nil {
		return nil
	}
	return s.journal
}

func (s *session) submitter(nav submit.Navigator) *submit.Submitter {
	opts := []submit.Option{submit.WithLogger(s.log)}
	if r := s.recorder(); r != nil {
		opts = append(opts, submit.WithJournal(r))
	}
	return submit.NewSubmitter(s.client, nav, opts...)
}

// submit runs one command as if issued from the fragment's screen and
// returns the re-hydrated state alongside the outcome.
func (s *session) submit(ctx context.Context, fragment string, c submit.Command) (*cliNavigator, error) {
	nav := &cliNavigator{client: s.client, current: s.client.EditLocation(fragment)}
	d := submit.NewDispatcher(s.submitter(nav))
	out, err := d.Dispatch(ctx, c)
	if err != nil {
		return nil, err
	}
	nav.outcome = out
	return nav, nil
}

func newLogger(cfg store.Config, fallback io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)

	path := strings.TrimSpace(cfg.LogFile)
	if path == "" {
		log.SetOutput(fallback)
		return log, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return log, f, nil
}

// cliNavigator has no screen to refresh; a reload or navigation re-reads
// the tournament state so the command can print what the screen would show.
type cliNavigator struct {
	client  *api.Client
	current model.Location
	dest    model.Location
	outcome submit.Outcome
	state   model.PageState
}

func (n *cliNavigator) Current() model.Location { return n.current }

func (n *cliNavigator) Reload(ctx context.Context) error {
	return n.Navigate(ctx, n.current)
}

func (n *cliNavigator) Navigate(ctx context.Context, dest model.Location) error {
	n.dest = dest
	st, err := n.client.State(ctx)
	if err != nil {
		return err
	}
	n.state = st
	return nil
}

func (n *cliNavigator) meta() map[string]any {
	return map[string]any{
		"outcome":  n.outcome.String(),
		"location": n.dest.String(),
	}
}
