// Package testqueue holds pending test requests, tracks running and
// terminal state, and drives the retry policy. Every public operation
// is atomic with respect to the others: a single mutex guards the three
// disjoint maps (pending, running, terminal), and dequeue's waiters are
// released by a condition variable signalled from enqueue.
//
// Grounded on internal/buildpool/dispatcher.go's queue+pending-map
// shape, generalised from a single FIFO slice to a priority queue per
// spec.md §4.2, and on the mark_running/mark_complete/mark_failed/
// requeue_for_retry lifecycle exercised by
// original_source/tests/test_parallel_execution.py.
package testqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/pipelinehardening/paratest/internal/domain"
	"github.com/pipelinehardening/paratest/internal/orcerr"
)

// item is one entry in the priority heap: higher Priority dequeues
// first; ties break FIFO by sequence number.
type item struct {
	req *domain.TestRequest
	seq int64
}

type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].req.Priority != pq[j].req.Priority {
		return pq[i].req.Priority > pq[j].req.Priority
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(*item)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}

// Queue is the test queue described in spec.md §4.2.
type Queue struct {
	maxSize int

	mu      sync.Mutex
	cond    *sync.Cond
	seq     int64
	pending priorityQueue
	running map[string]*domain.TestRequest
	results map[string]domain.TestResult
	failed  map[string]bool
	closed  bool
}

// New creates a Queue that rejects enqueue above maxSize pending
// requests. maxSize <= 0 means unbounded.
func New(maxSize int) *Queue {
	q := &Queue{
		maxSize: maxSize,
		running: make(map[string]*domain.TestRequest),
		results: make(map[string]domain.TestResult),
		failed:  make(map[string]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) knownLocked(id string) bool {
	if _, ok := q.running[id]; ok {
		return true
	}
	if _, ok := q.results[id]; ok {
		return true
	}
	for _, it := range q.pending {
		if it.req.ID == id {
			return true
		}
	}
	return false
}

// Enqueue adds a request to pending. It rejects a duplicate id with
// orcerr.ErrDuplicateID and a full queue with orcerr.ErrQueueFull;
// neither rejection mutates state.
func (q *Queue) Enqueue(req *domain.TestRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.knownLocked(req.ID) {
		return orcerr.ErrDuplicateID
	}
	if q.maxSize > 0 && len(q.pending) >= q.maxSize {
		return orcerr.ErrQueueFull
	}

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	q.seq++
	heap.Push(&q.pending, &item{req: req, seq: q.seq})
	q.cond.Broadcast()
	return nil
}

// EnqueueBatch enqueues every request or none: it validates the whole
// batch against duplicates and capacity before mutating any state, so a
// rejected batch leaves the queue untouched.
func (q *Queue) EnqueueBatch(reqs []*domain.TestRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if seen[r.ID] || q.knownLocked(r.ID) {
			return orcerr.ErrDuplicateID
		}
		seen[r.ID] = true
	}
	if q.maxSize > 0 && len(q.pending)+len(reqs) > q.maxSize {
		return orcerr.ErrQueueFull
	}

	for _, r := range reqs {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		q.seq++
		heap.Push(&q.pending, &item{req: r, seq: q.seq})
	}
	q.cond.Broadcast()
	return nil
}

// Dequeue blocks for up to timeout for a pending request, highest
// priority and earliest-submitted first. It returns (nil, false) on
// timeout, which is how a worker checks its own stop flag.
func (q *Queue) Dequeue(timeout time.Duration) (*domain.TestRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for len(q.pending) == 0 {
		if q.closed {
			return nil, false
		}
		remaining := deadline.Sub(time.Now())
		if remaining <= 0 {
			return nil, false
		}
		if !q.waitUntil(deadline) {
			return nil, false
		}
	}

	it := heap.Pop(&q.pending).(*item)
	return it.req, true
}

// waitUntil waits on the condition variable until broadcast or the
// deadline, whichever comes first. Must be called with q.mu held.
func (q *Queue) waitUntil(deadline time.Time) bool {
	timer := time.AfterFunc(time.Until(deadline), func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()

	q.cond.Wait()
	return time.Now().Before(deadline)
}

// MarkRunning moves a request from pending/dequeued into running.
func (q *Queue) MarkRunning(req *domain.TestRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running[req.ID] = req
}

// MarkCompleted moves a request from running into the completed
// terminal collection.
func (q *Queue) MarkCompleted(id string, result domain.TestResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, id)
	q.results[id] = result
	q.cond.Broadcast()
}

// MarkFailed moves a request from running into the failed terminal
// collection.
func (q *Queue) MarkFailed(id string, result domain.TestResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, id)
	q.results[id] = result
	q.failed[id] = true
	q.cond.Broadcast()
}

// RequeueForRetry increments retry_count and moves the request back to
// pending if retry_count < max_retries, returning true. Otherwise it
// returns false and leaves the request in running for the caller to
// mark_failed.
func (q *Queue) RequeueForRetry(req *domain.TestRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if req.RetryCount >= req.MaxRetries {
		return false
	}
	req.RetryCount++
	delete(q.running, req.ID)
	q.seq++
	heap.Push(&q.pending, &item{req: req, seq: q.seq})
	q.cond.Broadcast()
	return true
}

// WaitUntilDrained blocks, polling at pollInterval, until pending and
// running are both empty.
func (q *Queue) WaitUntilDrained(pollInterval time.Duration) {
	for {
		q.mu.Lock()
		empty := len(q.pending) == 0 && len(q.running) == 0
		q.mu.Unlock()
		if empty {
			return
		}
		time.Sleep(pollInterval)
	}
}

// Close releases any blocked Dequeue callers; used by the orchestrator
// during shutdown so FETCHING workers observe the stop signal without
// waiting out their full timeout.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Summary returns the current aggregate counters.
func (q *Queue) Summary() domain.Summary {
	q.mu.Lock()
	defer q.mu.Unlock()

	passed, failed := 0, 0
	for id, r := range q.results {
		if q.failed[id] {
			failed++
		} else if r.Status == domain.StatusComplete {
			passed++
		}
	}
	total := len(q.pending) + len(q.running) + len(q.results)
	return domain.Summary{
		Total:     total,
		Passed:    passed,
		Failed:    failed,
		Pending:   len(q.pending),
		Running:   len(q.running),
		Completed: passed,
	}
}

// Results returns a snapshot of every terminal result recorded so far,
// in no particular order.
func (q *Queue) Results() []domain.TestResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.TestResult, 0, len(q.results))
	for _, r := range q.results {
		out = append(out, r)
	}
	return out
}
