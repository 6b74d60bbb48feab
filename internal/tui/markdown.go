package tui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Renderers are cached by style + wrap width. WithAutoStyle can block on
	// terminal queries, so a fixed style is always passed.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// renderMarkdown renders a ride description for the preview pane. Errors
// fall back to the raw text.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	mdRendererMu.Unlock()

	if r == nil {
		cfg := markdownStyleConfig(style)
		zero := uint(0)
		cfg.Document.Margin = &zero
		rr, err := glamour.NewTermRenderer(
			glamour.WithStyles(cfg),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		mdRendererMu.Lock()
		if existing := mdRenderers[key]; existing != nil {
			r = existing
		} else {
			mdRenderers[key] = rr
			r = rr
		}
		mdRendererMu.Unlock()
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

func markdownStyle() string {
	if s := themePreference(); s != "" {
		return s
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func markdownStyleConfig(styleName string) ansi.StyleConfig {
	if styleName == "light" {
		cfg := styles.LightStyleConfig
		applyMarkdownPalette(&cfg, "light")
		return cfg
	}
	cfg := styles.DarkStyleConfig
	applyMarkdownPalette(&cfg, "dark")
	return cfg
}

// applyMarkdownPalette aligns headings, links and body text with the TUI
// surface colors.
func applyMarkdownPalette(cfg *ansi.StyleConfig, styleName string) {
	text := mdColor(colorSurfaceFg, styleName)
	cfg.Heading.Color = text
	cfg.H1.Color = text
	cfg.H2.Color = text
	cfg.H3.Color = text
	cfg.Text.Color = text
	cfg.Code.Color = text

	link := mdColor(colorAccent, styleName)
	cfg.Link.Color = link
	cfg.Link.Underline = mdBoolPtr(true)
	cfg.LinkText.Color = link

	cfg.Strong.Color = nil
	cfg.Emph.Color = nil
	cfg.BlockQuote.Faint = mdBoolPtr(false)
}

func mdColor(c lipgloss.AdaptiveColor, styleName string) *string {
	if styleName == "light" {
		return &c.Light
	}
	return &c.Dark
}

func mdBoolPtr(b bool) *bool { return &b }
