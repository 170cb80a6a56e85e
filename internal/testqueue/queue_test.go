package testqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/pipelinehardening/paratest/internal/domain"
	"github.com/pipelinehardening/paratest/internal/orcerr"
)

func req(id string, priority int) *domain.TestRequest {
	return &domain.TestRequest{ID: id, PlanPath: "plans/" + id + ".md", Priority: priority, MaxRetries: 1}
}

func TestQueue_DequeueOrdersByPriorityThenFIFO(t *testing.T) {
	q := New(0)
	q.Enqueue(req("low", 0))
	q.Enqueue(req("high", 10))
	q.Enqueue(req("low-2", 0))

	r1, ok := q.Dequeue(time.Second)
	if !ok || r1.ID != "high" {
		t.Fatalf("got %v, want high first", r1)
	}
	r2, ok := q.Dequeue(time.Second)
	if !ok || r2.ID != "low" {
		t.Fatalf("got %v, want low (earlier) second", r2)
	}
	r3, ok := q.Dequeue(time.Second)
	if !ok || r3.ID != "low-2" {
		t.Fatalf("got %v, want low-2 third", r3)
	}
}

func TestQueue_DequeueTimesOutWhenEmpty(t *testing.T) {
	q := New(0)
	start := time.Now()
	_, ok := q.Dequeue(30 * time.Millisecond)
	if ok {
		t.Fatal("expected timeout, got a request")
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Dequeue took %s, want close to the 30ms timeout", elapsed)
	}
}

func TestQueue_EnqueueRejectsDuplicateID(t *testing.T) {
	q := New(0)
	if err := q.Enqueue(req("dup", 0)); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := q.Enqueue(req("dup", 0)); !errors.Is(err, orcerr.ErrDuplicateID) {
		t.Errorf("got %v, want ErrDuplicateID", err)
	}
}

func TestQueue_EnqueueRejectsWhenFull(t *testing.T) {
	q := New(1)
	q.Enqueue(req("a", 0))
	if err := q.Enqueue(req("b", 0)); !errors.Is(err, orcerr.ErrQueueFull) {
		t.Errorf("got %v, want ErrQueueFull", err)
	}
}

func TestQueue_EnqueueBatchIsAllOrNothing(t *testing.T) {
	q := New(0)
	q.Enqueue(req("a", 0))

	batch := []*domain.TestRequest{req("b", 0), req("a", 0)} // "a" dupes
	if err := q.EnqueueBatch(batch); !errors.Is(err, orcerr.ErrDuplicateID) {
		t.Fatalf("got %v, want ErrDuplicateID", err)
	}

	// "b" must not have been partially enqueued.
	q.mu.Lock()
	partial := q.knownLocked("b")
	q.mu.Unlock()
	if partial {
		t.Error("batch partially applied: b was enqueued despite rejection")
	}
}

func TestQueue_RequeueForRetryRespectsMaxRetries(t *testing.T) {
	q := New(0)
	r := req("flaky", 0)
	r.MaxRetries = 2
	q.Enqueue(r)
	dequeued, _ := q.Dequeue(time.Second)
	q.MarkRunning(dequeued)

	if !q.RequeueForRetry(dequeued) {
		t.Fatal("first retry should be allowed")
	}
	if dequeued.RetryCount != 1 {
		t.Errorf("got RetryCount=%d, want 1", dequeued.RetryCount)
	}

	dequeued2, _ := q.Dequeue(time.Second)
	q.MarkRunning(dequeued2)
	if !q.RequeueForRetry(dequeued2) {
		t.Fatal("second retry should be allowed (RetryCount 1 < MaxRetries 2)")
	}

	dequeued3, _ := q.Dequeue(time.Second)
	q.MarkRunning(dequeued3)
	if q.RequeueForRetry(dequeued3) {
		t.Fatal("third retry should be rejected (RetryCount 2 == MaxRetries 2)")
	}
}

func TestQueue_SummaryCountsPassedAndFailed(t *testing.T) {
	q := New(0)
	q.Enqueue(req("ok", 0))
	q.Enqueue(req("bad", 0))

	q.MarkRunning(req("ok", 0))
	q.MarkCompleted("ok", domain.TestResult{RequestID: "ok", Status: domain.StatusComplete})

	q.MarkRunning(req("bad", 0))
	q.MarkFailed("bad", domain.TestResult{RequestID: "bad", Status: domain.StatusFailed})

	s := q.Summary()
	if s.Passed != 1 || s.Failed != 1 {
		t.Errorf("got Passed=%d Failed=%d, want 1 and 1", s.Passed, s.Failed)
	}
}

func TestQueue_WaitUntilDrainedBlocksUntilEmpty(t *testing.T) {
	q := New(0)
	q.Enqueue(req("a", 0))

	done := make(chan struct{})
	go func() {
		q.WaitUntilDrained(5 * time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitUntilDrained returned before the request drained")
	case <-time.After(30 * time.Millisecond):
	}

	r, _ := q.Dequeue(time.Second)
	q.MarkRunning(r)
	q.MarkCompleted(r.ID, domain.TestResult{RequestID: r.ID, Status: domain.StatusComplete})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitUntilDrained never returned after draining")
	}
}

func TestQueue_CloseUnblocksDequeue(t *testing.T) {
	q := New(0)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(10 * time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Dequeue to report no request after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Dequeue")
	}
}
