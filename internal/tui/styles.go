package tui

import "github.com/charmbracelet/lipgloss"

// Row statuses.
const (
	StatusPending     = "pending"
	StatusRunning     = "running"
	StatusDownloading = "downloading"
	StatusDone        = "done"
	StatusCurrent     = "current"
	StatusSkipped     = "skipped"
	StatusNeeded      = "needed"
	StatusError       = "error"
)

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))

	statusStyles = map[string]lipgloss.Style{
		StatusDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusCurrent: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		StatusRunning:     lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusDownloading: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		StatusSkipped: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		StatusNeeded:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		StatusError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		StatusPending: lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
