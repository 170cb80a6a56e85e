package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pipelinehardening/paratest/internal/domain"
)

type mockSession struct {
	submitted []*domain.TestRequest
	submitErr error
	status    StatusView
	report    domain.SessionReport
}

func (m *mockSession) SubmitBatch(reqs []*domain.TestRequest) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, reqs...)
	return nil
}

func (m *mockSession) GetStatus() StatusView { return m.status }

func (m *mockSession) WaitForCompletion() domain.SessionReport { return m.report }

func TestSubmitHandler_QueuesEveryPlan(t *testing.T) {
	session := &mockSession{status: StatusView{SessionID: "sess-1"}}
	server := NewServer(":0", session)

	body, _ := json.Marshal(SubmitRequest{
		Plans: []PlanSubmission{{PlanPath: "plans/a.md"}, {PlanPath: "plans/b.md"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	server.submitHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}
	if len(session.submitted) != 2 {
		t.Errorf("got %d submitted requests, want 2", len(session.submitted))
	}

	var resp SubmitResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.TestsQueued != 2 {
		t.Errorf("got TestsQueued=%d, want 2", resp.TestsQueued)
	}
}

func TestSubmitHandler_RejectsEmptyPlanList(t *testing.T) {
	session := &mockSession{}
	server := NewServer(":0", session)

	body, _ := json.Marshal(SubmitRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	w := httptest.NewRecorder()

	server.submitHandler()(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", w.Code)
	}
}

func TestStatusHandler_ReportsProgress(t *testing.T) {
	session := &mockSession{status: StatusView{
		SessionID: "sess-1", Completed: 2, Running: 1, Pending: 0, Failed: 1,
		Workers: []WorkerView{{ID: "worker-1", State: "RUNNING", CurrentRequest: "t1"}},
	}}
	server := NewServer(":0", session)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	server.statusHandler()(w, req)

	var resp ProgressResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Progress.Total != 4 {
		t.Errorf("got Total=%d, want 4", resp.Progress.Total)
	}
	if len(resp.Workers) != 1 || resp.Workers[0].CurrentTest != "t1" {
		t.Errorf("got workers %+v, want one worker running t1", resp.Workers)
	}
}

func TestResultsHandler_PendingUntilNotified(t *testing.T) {
	session := &mockSession{}
	server := NewServer(":0", session)

	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	w := httptest.NewRecorder()
	server.resultsHandler()(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("got status %d before completion, want 202", w.Code)
	}

	server.NotifyCompletion(domain.SessionReport{SessionID: "sess-1", Status: domain.SessionComplete})

	w2 := httptest.NewRecorder()
	server.resultsHandler()(w2, req)
	if w2.Code != http.StatusOK {
		t.Errorf("got status %d after completion, want 200", w2.Code)
	}
}
