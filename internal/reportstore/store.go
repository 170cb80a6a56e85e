// Package reportstore persists SessionReports across process restarts,
// so `paratest status` can list sessions after the CLI that ran them
// has exited.
//
// Grounded on internal/taskstore/store.go's sql.DB-over-modernc.org/
// sqlite shape (Open, run schema, Upsert/Get/List), repurposed from
// tasks/runs to sessions/results.
package reportstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pipelinehardening/paratest/internal/domain"
)

// Store provides SQLite-backed session report persistence.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the SQLite database at dbPath and
// runs its schema migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// SaveReport upserts a session report and its nested results and
// warnings. Existing rows for the session are replaced.
func (s *Store) SaveReport(report domain.SessionReport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, status, started_at, completed_at, duration_seconds, total, passed, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			duration_seconds = excluded.duration_seconds,
			total = excluded.total,
			passed = excluded.passed,
			failed = excluded.failed
	`,
		report.SessionID, string(report.Status), report.StartedAt, report.CompletedAt,
		report.DurationSeconds, report.Summary.Total, report.Summary.Passed, report.Summary.Failed,
	)
	if err != nil {
		return err
	}

	for _, r := range report.Results {
		_, err = tx.Exec(`
			INSERT INTO results (request_id, session_id, worktree_id, worker_id, status, tasks_passed, tasks_failed, started_at, completed_at, error_message, report_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, request_id) DO UPDATE SET
				status = excluded.status,
				tasks_passed = excluded.tasks_passed,
				tasks_failed = excluded.tasks_failed,
				completed_at = excluded.completed_at,
				error_message = excluded.error_message,
				report_path = excluded.report_path
		`,
			r.RequestID, report.SessionID, r.WorktreeID, r.WorkerID, string(r.Status),
			r.TasksPassed, r.TasksFailed, r.StartedAt, r.CompletedAt, r.ErrorMessage, r.ReportPath,
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM warnings WHERE session_id = ?`, report.SessionID); err != nil {
		return err
	}
	for _, w := range report.Warnings {
		if _, err := tx.Exec(`INSERT INTO warnings (session_id, message) VALUES (?, ?)`, report.SessionID, w); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetReport reconstructs a session report by id.
func (s *Store) GetReport(sessionID string) (domain.SessionReport, error) {
	var report domain.SessionReport
	var status string
	err := s.db.QueryRow(`
		SELECT id, status, started_at, completed_at, duration_seconds, total, passed, failed
		FROM sessions WHERE id = ?
	`, sessionID).Scan(
		&report.SessionID, &status, &report.StartedAt, &report.CompletedAt,
		&report.DurationSeconds, &report.Summary.Total, &report.Summary.Passed, &report.Summary.Failed,
	)
	if err != nil {
		return domain.SessionReport{}, err
	}
	report.Status = domain.SessionStatus(status)

	results, err := s.listResults(sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	report.Results = results

	warnings, err := s.listWarnings(sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	report.Warnings = warnings

	return report, nil
}

func (s *Store) listResults(sessionID string) ([]domain.TestResult, error) {
	rows, err := s.db.Query(`
		SELECT request_id, worktree_id, worker_id, status, tasks_passed, tasks_failed, started_at, completed_at, error_message, report_path
		FROM results WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TestResult
	for rows.Next() {
		var r domain.TestResult
		var status string
		if err := rows.Scan(&r.RequestID, &r.WorktreeID, &r.WorkerID, &status, &r.TasksPassed, &r.TasksFailed, &r.StartedAt, &r.CompletedAt, &r.ErrorMessage, &r.ReportPath); err != nil {
			return nil, err
		}
		r.Status = domain.ResultStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) listWarnings(sessionID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT message FROM warnings WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSessions returns every persisted session's id and status, most
// recently started first.
func (s *Store) ListSessions() ([]SessionSummary, error) {
	rows, err := s.db.Query(`SELECT id, status, started_at, total, passed, failed FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sm SessionSummary
		var status string
		var startedAt time.Time
		if err := rows.Scan(&sm.SessionID, &status, &startedAt, &sm.Total, &sm.Passed, &sm.Failed); err != nil {
			return nil, err
		}
		sm.Status = domain.SessionStatus(status)
		sm.StartedAt = startedAt
		out = append(out, sm)
	}
	return out, rows.Err()
}

// SessionSummary is the lightweight row ListSessions returns, avoiding
// a full result-set fetch for a listing view.
type SessionSummary struct {
	SessionID string
	Status    domain.SessionStatus
	StartedAt time.Time
	Total     int
	Passed    int
	Failed    int
}
