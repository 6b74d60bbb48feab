package main

import (
	"os"
	"strconv"
	"strings"

	"pelotourney-cli/internal/cli"
)

func isTournamentID(s string) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil && n > 0
}

func rewriteDirectTournamentArgs(argv []string) []string {
	// Convenience: `pelotourney 42 [command...]` works like
	// `pelotourney --tournament 42 [command...]`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
	// Persistent flags may come first (e.g. `pelotourney --base-url ... 42`), so we look for the
	// first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config":     true,
		"--base-url":   true,
		"--tournament": true,
		"--log-level":  true,
		"--format":     true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	rewrite := func(before []string, id string, after []string) []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, before...)
		out = append(out, "--tournament", strings.TrimSpace(id))
		return append(out, after...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			// The flag must land before "--" to still be parsed.
			if i+1 < len(argv) && isTournamentID(argv[i+1]) {
				return rewrite(argv[:i], argv[i+1], argv[i+2:])
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") {
				continue
			}
			if boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++ // skip value if present
				continue
			}
			continue
		}

		// First positional token.
		if isTournamentID(a) {
			return rewrite(argv[:i], a, argv[i+1:])
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectTournamentArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
