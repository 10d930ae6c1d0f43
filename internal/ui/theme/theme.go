package theme

import (
	"charm.land/lipgloss/v2"
)

// Palette: papyrus and lapis on a dark ground.
var (
	Primary   = lipgloss.Color("#2563EB") // Lapis
	Secondary = lipgloss.Color("#D4A373") // Sand
	Accent    = lipgloss.Color("#E9C46A") // Gold
	Success   = lipgloss.Color("#2A9D8F") // Teal
	Error     = lipgloss.Color("#E76F51") // Terracotta
	Text      = lipgloss.Color("#F5F0E6") // Papyrus
	TextDim   = lipgloss.Color("#A8A29E") // Stone
	BgCard    = lipgloss.Color("#1C1917") // Basalt
	Border    = lipgloss.Color("#44403C") // Slate
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		Align(lipgloss.Center)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)
)

// Centered renders s across width with the given style.
func Centered(style lipgloss.Style, width int, s string) string {
	return style.Width(width).Align(lipgloss.Center).Render(s)
}
