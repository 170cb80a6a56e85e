package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles bubbletea messages: window resize, quit keys, and the
// periodic snapshot refresh.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, refreshCmd(m.source)
		}
		return m, nil

	case TickMsg:
		if m.latest.Done {
			return m, nil
		}
		return m, tea.Batch(tickCmd(), refreshCmd(m.source))

	case SnapshotMsg:
		m.latest = Snapshot(msg)
		if m.latest.Done {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}
