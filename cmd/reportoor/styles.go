package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6B7280")
	colorBorder  = lipgloss.Color("#374151")

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F9FAFB")).
			Background(colorPrimary).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().Bold(true)
	styleMuted = lipgloss.NewStyle().Foreground(colorMuted)

	styleCell = lipgloss.NewStyle().Padding(0, 1)
)

// swatch renders label in a chart color.
func swatch(color, label string) string {
	if color == "" {
		return label
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(label)
}
