package main

import (
	"sync/atomic"

	"github.com/pipelinehardening/paratest/internal/domain"
	"github.com/pipelinehardening/paratest/internal/httpapi"
	"github.com/pipelinehardening/paratest/internal/orchestrator"
	"github.com/pipelinehardening/paratest/internal/tui"
)

// sessionAdapter narrows *orchestrator.Orchestrator to the interfaces
// httpapi.SessionRunner and tui.StatusSource need, converting
// orchestrator.Status into each package's own status shape.
type sessionAdapter struct {
	orc       *orchestrator.Orchestrator
	submitted *int64
}

func newSessionAdapter(orc *orchestrator.Orchestrator) sessionAdapter {
	return sessionAdapter{orc: orc, submitted: new(int64)}
}

func (a sessionAdapter) SubmitBatch(reqs []*domain.TestRequest) error {
	if err := a.orc.SubmitBatch(reqs); err != nil {
		return err
	}
	atomic.AddInt64(a.submitted, int64(len(reqs)))
	return nil
}

func (a sessionAdapter) WaitForCompletion() domain.SessionReport {
	return a.orc.WaitForCompletion()
}

func (a sessionAdapter) GetStatus() httpapi.StatusView {
	st := a.orc.GetStatus()
	view := httpapi.StatusView{
		SessionID: st.SessionID,
		Pending:   st.Pending,
		Running:   st.Running,
		Completed: st.Completed,
		Failed:    st.Failed,
	}
	for _, w := range st.Workers {
		view.Workers = append(view.Workers, httpapi.WorkerView{
			ID:             w.ID,
			State:          string(w.State),
			CurrentRequest: w.CurrentRequest,
			CurrentLease:   w.CurrentLease,
		})
	}
	return view
}

func (a sessionAdapter) Snapshot() tui.Snapshot {
	st := a.orc.GetStatus()
	snap := tui.Snapshot{
		SessionID: st.SessionID,
		Pending:   st.Pending,
		Running:   st.Running,
		Completed: st.Completed,
		Failed:    st.Failed,
		Done:      atomic.LoadInt64(a.submitted) > 0 && st.Pending == 0 && st.Running == 0,
	}
	for _, w := range st.Workers {
		snap.Workers = append(snap.Workers, tui.WorkerRow{
			ID:             w.ID,
			State:          string(w.State),
			CurrentRequest: w.CurrentRequest,
			CurrentLease:   w.CurrentLease,
		})
	}
	if snap.Done {
		snap.Status = "COMPLETE"
	} else {
		snap.Status = "RUNNING"
	}
	return snap
}
