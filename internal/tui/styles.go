package tui

import "github.com/charmbracelet/lipgloss"

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)
	// TitleStyle styles the table title.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		"downloaded": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"extracted":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"found":      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"written":    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		// Active states
		"downloading": lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"extracting":  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		// Skipped / warning
		"skipped":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"missing":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"rejected": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		// Error
		"error": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		// Pending
		"pending": lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
