// Package watch implements the hookgw system watch TUI: a live view of hook
// runs, callbacks and heartbeats fed by the ops API event stream.
package watch

import "github.com/charmbracelet/lipgloss"

const (
	colorGreen  = lipgloss.Color("#5FD75F")
	colorAmber  = lipgloss.Color("#FFD75F")
	colorRed    = lipgloss.Color("#FF5F5F")
	colorOrange = lipgloss.Color("#FF8700")
	colorAccent = lipgloss.Color("#5F87FF")
	colorText   = lipgloss.Color("#EEEEEE")
	colorMuted  = lipgloss.Color("#8A8A8A")
	colorFaint  = lipgloss.Color("#3A3A3A")
	colorGold   = lipgloss.Color("#D7AF5F")
)

// Theme holds the styles shared by the watch panels.
type Theme struct {
	StatusOK      lipgloss.Style
	StatusRunning lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusBlocked lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	PulseActive   lipgloss.Style
	PulseInactive lipgloss.Style
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func NewDefaultTheme() Theme {
	return Theme{
		StatusOK:      fg(colorGreen),
		StatusRunning: fg(colorAmber),
		StatusFailed:  fg(colorRed).Bold(true),
		StatusBlocked: fg(colorOrange),

		Border:    lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(colorAccent),
		Title:     fg(colorText).Bold(true).Padding(0, 1),
		Dim:       fg(colorMuted),
		Highlight: fg(colorGold),

		PulseActive:   fg(colorGreen),
		PulseInactive: fg(colorFaint),
	}
}
