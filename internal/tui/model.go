// Package tui renders a live view of one orchestrator session: per-
// worker state, queue progress, and any pool warnings, refreshed on a
// tick by polling the orchestrator's cheap get_status snapshot.
//
// Grounded on tui/model.go's bubbletea Model shape and tui/view.go's
// lipgloss styling, sized down from the teacher's multi-tab task board
// to a single status view matching spec.md §4.4's Status fields.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// WorkerRow is one worker's status line.
type WorkerRow struct {
	ID             string
	State          string
	CurrentRequest string
	CurrentLease   string
}

// Snapshot is the data the TUI renders each tick, sourced from
// orchestrator.Status.
type Snapshot struct {
	SessionID string
	Status    string
	Pending   int
	Running   int
	Completed int
	Failed    int
	Workers   []WorkerRow
	Warnings  []string
	Done      bool
}

// StatusSource supplies the latest Snapshot; cmd/paratest implements it
// over orchestrator.Orchestrator.
type StatusSource interface {
	Snapshot() Snapshot
}

// Model is the TUI application model.
type Model struct {
	source StatusSource
	latest Snapshot
	width  int
	height int
}

// New creates a Model that polls source on every tick.
func New(source StatusSource) Model {
	return Model{source: source}
}

// Init starts the refresh tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), refreshCmd(m.source))
}

// TickMsg triggers the next refresh.
type TickMsg time.Time

// SnapshotMsg carries a freshly polled Snapshot.
type SnapshotMsg Snapshot

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func refreshCmd(source StatusSource) tea.Cmd {
	return func() tea.Msg { return SnapshotMsg(source.Snapshot()) }
}
