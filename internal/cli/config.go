package cli

import (
	"os"
	"strings"

	"pelotourney-cli/internal/store"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the config file",
	}
	cmd.AddCommand(newConfigShowCmd(app))
	cmd.AddCommand(newConfigInitCmd(app))
	return cmd
}

func configFile(app *App) (string, error) {
	if p := strings.TrimSpace(app.ConfigPath); p != "" {
		return p, nil
	}
	return store.ConfigPath()
}

func newConfigShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config (file, environment and flags)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFile(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg, verr := loadConfig(cmd, app)
			meta := map[string]any{"path": path, "valid": verr == nil}
			if verr != nil {
				// Still show what was loaded; the problem goes in meta.
				if cfg, err = store.LoadConfig(app.ConfigPath); err != nil {
					return writeErr(cmd, err)
				}
				meta["error"] = verr.Error()
			}
			return writeOut(cmd, app, map[string]any{"data": cfg, "meta": meta})
		},
	}
}

func newConfigInitCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from --base-url and --tournament",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFile(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return writeErr(cmd, errUsage("%s already exists (use --force to overwrite)", path))
				}
			}
			cfg := store.DefaultConfig()
			cfg.BaseURL = strings.TrimSpace(app.BaseURL)
			cfg.TournamentID = app.TournamentID
			if app.LogLevel != "" {
				cfg.LogLevel = app.LogLevel
			}
			if err := cfg.Validate(); err != nil {
				return writeErr(cmd, err)
			}
			if err := store.SaveConfig(path, cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cfg, "meta": map[string]any{"path": path}})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
