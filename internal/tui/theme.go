package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme/palette helpers.
//
// The TUI must remain readable on both light and dark terminal backgrounds.
// AdaptiveColor everywhere; faint styling only on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted     = ac("240", "243")
	colorSurfaceFg = ac("235", "252")
	colorControlBg = ac("252", "235")
	colorAccent    = ac("27", "62")
	colorAccentFg  = ac("255", "235")

	colorSelectedBg = ac("#e9e9e9", "#262626")
	colorSelectedFg = ac("235", "255")

	// Members moved away from the team they were first dragged out of.
	colorDirty = ac("130", "214")
	colorError = ac("160", "203")
	colorOK    = ac("28", "78")

	colorModalBorder = ac("250", "243")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

func styleError() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorError).Bold(true)
}

func styleDirty() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorDirty).Bold(true)
}

func styleSelected() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
}

func styleHeader() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg)
}

// applyColorProfilePreference sets Lip Gloss's color profile for the TUI.
//
// termenv.EnvColorProfile honors CLICOLOR, which can disable colors in a TUI;
// only NO_COLOR is honored here.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	profile := termenv.ColorProfile()
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(term, "256color") && (profile == termenv.Ascii || profile == termenv.ANSI) {
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// themePreference resolves light/dark from the environment.
//
// Priority:
// 1) PELOTOURNEY_TUI_THEME=light|dark|auto
// 2) COLORFGBG heuristic ("fg;bg")
// 3) Lip Gloss's own detection
func themePreference() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("PELOTOURNEY_TUI_THEME"))) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	}
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			// Common xterm palette: 0-6 dark colors, 7-15 light colors.
			if bg >= 7 {
				return "light"
			}
			return "dark"
		}
	}
	return ""
}

func applyThemePreference() {
	switch themePreference() {
	case "light":
		lipgloss.SetHasDarkBackground(false)
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	}
}
