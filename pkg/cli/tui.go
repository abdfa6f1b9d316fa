package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the colors used by the CLI status rendering.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Warn    lipgloss.Color // Warning/error color
	Dim     lipgloss.Color // Dimmed/help text color
}

// DefaultTheme is a green-on-dark hacker aesthetic.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Warn:    lipgloss.Color("#ff5f5f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles bundles the derived lipgloss styles for a theme.
type Styles struct {
	Label lipgloss.Style
	Live  lipgloss.Style
	Down  lipgloss.Style
	Dim   lipgloss.Style
}

// NewStyles derives render styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Live:  lipgloss.NewStyle().Foreground(t.Primary),
		Down:  lipgloss.NewStyle().Foreground(t.Warn),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// StatusLine renders a one-line live session status, e.g.
//
//	● connected   turn 3.2s   ↓ 128.0 KB
//
// live selects the accent color for the state dot.
func (s Styles) StatusLine(state string, live bool, elapsedMs int, audioBytes int64) string {
	dot := s.Down.Render("●")
	if live {
		dot = s.Live.Render("●")
	}

	parts := []string{dot + " " + s.Label.Render(state)}
	if elapsedMs >= 0 {
		parts = append(parts, s.Dim.Render("turn ")+FormatDuration(elapsedMs))
	}
	if audioBytes > 0 {
		parts = append(parts, s.Dim.Render("↓ ")+FormatBytes(audioBytes))
	}
	return strings.Join(parts, "   ")
}

// Transcript renders a speaker-attributed line of conversation text.
func (s Styles) Transcript(speaker, text string) string {
	return fmt.Sprintf("%s %s", s.Label.Render(speaker+":"), text)
}
