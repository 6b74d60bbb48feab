package cli

import (
	"fmt"
	"os"
	"strings"

	"pelotourney-cli/internal/format"
	"pelotourney-cli/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	ConfigPath   string
	BaseURL      string
	TournamentID int64
	LogLevel     string
	PrettyJSON   bool
	Format       string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "pelotourney",
		Short:        "Tournament roster, rides and permissions admin (CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Edit a tournament interactively
  pelotourney --base-url https://rides.example.com --tournament 42

  # Shortcut for: pelotourney --tournament 42
  pelotourney 42

  # Scriptable commands
  pelotourney teams list
  pelotourney teams move freya --to 7
  pelotourney rides list --duration 1800

  # Try it against a local fake server
  pelotourney demo
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr(store.EnvPrefix+"CONFIG", ""), "Path to config.yaml (default: <user config dir>/pelotourney/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.BaseURL, "base-url", "", "Server base URL (overrides base_url)")
	cmd.PersistentFlags().Int64Var(&app.TournamentID, "tournament", 0, "Tournament id (overrides tournament_id)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (overrides log_level)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr(store.EnvPrefix+"FORMAT", "json"), "Output format (json|yaml)")

	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newMembersCmd(app))
	cmd.AddCommand(newTeamsCmd(app))
	cmd.AddCommand(newRidesCmd(app))
	cmd.AddCommand(newPermissionsCmd(app))
	cmd.AddCommand(newTournamentCmd(app))
	cmd.AddCommand(newJournalCmd(app))
	cmd.AddCommand(newDemoCmd(app))

	return cmd
}

// loadConfig layers flags over the file and environment, then validates.
func loadConfig(cmd *cobra.Command, app *App) (store.Config, error) {
	cfg, err := store.LoadConfig(app.ConfigPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = strings.TrimSpace(app.BaseURL)
	}
	if flags.Changed("tournament") {
		cfg.TournamentID = app.TournamentID
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(app.LogLevel))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
