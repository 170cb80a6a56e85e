package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/pipelinehardening/paratest/internal/domain"
)

// PlanSubmission is one plan entry of a submit-session request.
type PlanSubmission struct {
	PlanPath   string `json:"plan_path"`
	BatchRange string `json:"batch_range,omitempty"` // "all" or "start-end"; empty means all
	Priority   int    `json:"priority,omitempty"`
}

// SubmitRequest is spec.md §6's "start session" request body.
type SubmitRequest struct {
	Plans      []PlanSubmission    `json:"plans"`
	NumWorkers int                 `json:"num_workers,omitempty"`
	Config     domain.RunnerConfig `json:"config,omitempty"`
}

// SubmitResponse is spec.md §6's "start session" response body.
type SubmitResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	NumWorkers  int    `json:"num_workers"`
	TestsQueued int    `json:"tests_queued"`
}

// ProgressResponse is spec.md §6's status response body.
type ProgressResponse struct {
	SessionID string       `json:"session_id"`
	Status    string       `json:"status"`
	Progress  ProgressView `json:"progress"`
	Workers   []WorkerJSON `json:"workers"`
}

// ProgressView is the nested progress object of ProgressResponse.
type ProgressView struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Running   int `json:"running"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

// WorkerJSON is one worker's wire representation.
type WorkerJSON struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CurrentTest string `json:"current_test,omitempty"`
	WorktreeID  string `json:"worktree_id,omitempty"`
}

// ResultsResponse is spec.md §6's results response body.
type ResultsResponse struct {
	SessionID       string              `json:"session_id"`
	Status          string              `json:"status"`
	DurationSeconds float64             `json:"duration_seconds"`
	Summary         domain.Summary      `json:"summary"`
	Results         []domain.TestResult `json:"results"`
}

func parseBatchRange(s string) domain.BatchRange {
	if s == "" || s == "all" {
		return domain.AllBatches
	}
	var start, end int
	if _, err := fmt.Sscanf(s, "%d-%d", &start, &end); err == nil {
		return domain.BatchRange{Start: start, End: end}
	}
	return domain.AllBatches
}

func (s *Server) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if len(req.Plans) == 0 {
			writeError(w, http.StatusBadRequest, "at least one plan is required")
			return
		}

		reqs := make([]*domain.TestRequest, 0, len(req.Plans))
		for _, p := range req.Plans {
			reqs = append(reqs, &domain.TestRequest{
				ID:         uuid.NewString(),
				PlanPath:   p.PlanPath,
				BatchRange: parseBatchRange(p.BatchRange),
				Priority:   p.Priority,
				Config:     req.Config,
				MaxRetries: req.Config.MaxRetries,
			})
		}

		if err := s.session.SubmitBatch(reqs); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}

		status := s.session.GetStatus()
		writeJSON(w, SubmitResponse{
			SessionID:   status.SessionID,
			Status:      "RUNNING",
			NumWorkers:  req.NumWorkers,
			TestsQueued: len(reqs),
		})
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		status := s.session.GetStatus()
		workers := make([]WorkerJSON, 0, len(status.Workers))
		for _, wk := range status.Workers {
			workers = append(workers, WorkerJSON{
				ID:          wk.ID,
				Status:      wk.State,
				CurrentTest: wk.CurrentRequest,
				WorktreeID:  wk.CurrentLease,
			})
		}

		writeJSON(w, ProgressResponse{
			SessionID: status.SessionID,
			Status:    sessionStatusLabel(status),
			Progress: ProgressView{
				Total:     status.Pending + status.Running + status.Completed + status.Failed,
				Completed: status.Completed,
				Running:   status.Running,
				Pending:   status.Pending,
				Failed:    status.Failed,
			},
			Workers: workers,
		})
	}
}

func sessionStatusLabel(s StatusView) string {
	total := s.Pending + s.Running + s.Completed + s.Failed
	return string(domain.DeriveSessionStatus(total, s.Completed, s.Failed))
}

func (s *Server) resultsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		report := s.report.Load()
		if report == nil {
			writeError(w, http.StatusAccepted, "session still running")
			return
		}

		writeJSON(w, ResultsResponse{
			SessionID:       report.SessionID,
			Status:          string(report.Status),
			DurationSeconds: report.DurationSeconds,
			Summary:         report.Summary,
			Results:         report.Results,
		})
	}
}
