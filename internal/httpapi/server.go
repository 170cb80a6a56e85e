// Package httpapi exposes spec.md §6's submission surface over HTTP:
// start a session, poll its status, fetch its results — plus a
// server-sent-events stream for status pushes, so a UI doesn't have to
// poll.
//
// Grounded on web/api/server.go's ServeMux+writeJSON/writeError shape
// and web/api/sse.go's hub, repurposed from task/agent status to
// session submission and progress.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/pipelinehardening/paratest/internal/domain"
)

// SessionRunner is the subset of orchestrator.Orchestrator the HTTP
// layer depends on, kept narrow so the server can be tested against a
// fake.
type SessionRunner interface {
	SubmitBatch(reqs []*domain.TestRequest) error
	GetStatus() StatusView
	WaitForCompletion() domain.SessionReport
}

// StatusView is the status shape the server needs; orchestrator.Status
// satisfies it structurally via an adapter in cmd/paratest.
type StatusView struct {
	SessionID string
	Pending   int
	Running   int
	Completed int
	Failed    int
	Workers   []WorkerView
}

// WorkerView is one worker's status row.
type WorkerView struct {
	ID             string
	State          string
	CurrentRequest string
	CurrentLease   string
}

// Server is the submission HTTP API described in spec.md §6.
type Server struct {
	addr   string
	mux    *http.ServeMux
	sseHub *SSEHub

	session SessionRunner
	// report is set once by NotifyCompletion and read by resultsHandler
	// from concurrent request goroutines; atomic.Pointer avoids a data
	// race between the two.
	report atomic.Pointer[domain.SessionReport]
}

// NewServer constructs a Server that fronts one already-initialized,
// started SessionRunner (one session per server, matching the
// orchestrator's one-session-per-process lifecycle).
func NewServer(addr string, session SessionRunner) *Server {
	s := &Server{
		addr:    addr,
		mux:     http.NewServeMux(),
		sseHub:  NewSSEHub(),
		session: session,
	}
	s.setupRoutes()
	go s.sseHub.Run()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/sessions", s.submitHandler())
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/results", s.resultsHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
}

// Start serves the API; blocks until the listener errors. The SSE hub
// runs from construction, so Broadcast works even for callers that
// only use Handler() against an httptest.Server.
func (s *Server) Start() error {
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler returns the server's http.Handler, for use with httptest or
// a caller-owned http.Server.
func (s *Server) Handler() http.Handler { return s.mux }

// Broadcast pushes a status event to every connected SSE client.
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

// NotifyCompletion records the final report and broadcasts it, for the
// caller to invoke once WaitForCompletion returns.
func (s *Server) NotifyCompletion(report domain.SessionReport) {
	s.report.Store(&report)
	s.Broadcast(EventSessionComplete(report))
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
