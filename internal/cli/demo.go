package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"pelotourney-cli/internal/fakeapi"
	"pelotourney-cli/internal/store"

	"github.com/spf13/cobra"
)

func newDemoCmd(app *App) *cobra.Command {
	var (
		fixturePath string
		addr        string
		latency     time.Duration
		serveOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the edit screen against a local in-memory server",
		Long: strings.TrimSpace(`
Starts a fake tournament server seeded from a YAML fixture (an embedded
demo tournament by default) and opens the TUI against it. With --serve-only
the server keeps running so scriptable commands can be pointed at it.
Submissions are journaled in memory only.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := loadFixture(fixturePath)
			if err != nil {
				return writeErr(cmd, err)
			}

			cfg, err := store.LoadConfig(app.ConfigPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("listen %s: %w", addr, err))
			}
			cfg.BaseURL = "http://" + ln.Addr().String()
			cfg.TournamentID = fixture.Tournament.ID
			cfg.JournalPath = ":memory:"
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = app.LogLevel
			}
			if err := cfg.Validate(); err != nil {
				_ = ln.Close()
				return writeErr(cmd, err)
			}

			s, err := openSessionWithConfig(cmd, cfg, !serveOnly)
			if err != nil {
				_ = ln.Close()
				return writeErr(cmd, err)
			}
			defer s.Close()

			srv := fakeapi.New(fixture, fakeapi.WithLatency(latency), fakeapi.WithLogger(s.log))
			hs := &http.Server{Handler: srv, ReadHeaderTimeout: 5 * time.Second}
			serveErr := make(chan error, 1)
			go func() { serveErr <- hs.Serve(ln) }()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = hs.Shutdown(ctx)
			}()

			if serveOnly {
				if err := writeOut(cmd, app, map[string]any{"data": map[string]any{
					"base_url":      cfg.BaseURL,
					"tournament_id": cfg.TournamentID,
				}}); err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				select {
				case <-ctx.Done():
					return nil
				case err := <-serveErr:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return writeErr(cmd, err)
				}
			}
			return s.runTUI()
		},
	}

	cmd.Flags().StringVar(&fixturePath, "fixture", "", "YAML fixture (default: embedded demo tournament)")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "Listen address for the fake server")
	cmd.Flags().DurationVar(&latency, "latency", 150*time.Millisecond, "Artificial latency per request")
	cmd.Flags().BoolVar(&serveOnly, "serve-only", false, "Only run the server; print its address and wait for interrupt")
	return cmd
}

func loadFixture(path string) (fakeapi.Fixture, error) {
	if strings.TrimSpace(path) == "" {
		return fakeapi.DefaultFixture()
	}
	return fakeapi.LoadFixture(path)
}
