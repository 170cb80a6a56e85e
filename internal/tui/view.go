package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	queuedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

// View renders the session's worker grid and queue summary.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" paratest │ session %s │ status: %s ", m.latest.SessionID, m.latest.Status)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	summary := fmt.Sprintf("Pending: %d  Running: %d  Completed: %d  Failed: %d",
		m.latest.Pending, m.latest.Running, m.latest.Completed, m.latest.Failed)
	b.WriteString(titleStyle.Render(summary))
	b.WriteString("\n\n")

	var workers strings.Builder
	workers.WriteString("Workers\n")
	for _, w := range m.latest.Workers {
		line := fmt.Sprintf("%-10s %-10s %-36s %s", w.ID, w.State, w.CurrentRequest, w.CurrentLease)
		switch w.State {
		case "RUNNING":
			line = runningStyle.Render(line)
		case "ERROR":
			line = failedStyle.Render(line)
		case "IDLE", "STOPPED":
			line = dimmedStyle.Render(line)
		default:
			line = queuedStyle.Render(line)
		}
		workers.WriteString(line)
		workers.WriteString("\n")
	}
	b.WriteString(sectionStyle.Render(strings.TrimRight(workers.String(), "\n")))
	b.WriteString("\n\n")

	if len(m.latest.Warnings) > 0 {
		var warn strings.Builder
		warn.WriteString("Warnings\n")
		for _, w := range m.latest.Warnings {
			warn.WriteString(warningStyle.Render(w))
			warn.WriteString("\n")
		}
		b.WriteString(sectionStyle.Render(strings.TrimRight(warn.String(), "\n")))
		b.WriteString("\n\n")
	}

	footer := "q quit · r refresh"
	if m.latest.Done {
		footer = completedStyle.Render("session complete — press q to exit")
	}
	b.WriteString(statusBarStyle.Render(footer))

	return b.String()
}
