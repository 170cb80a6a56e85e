// Package worktreepool owns a fixed set of isolated git worktrees and
// leases them exclusively to callers. It is the component that
// prevents version-control corruption when N independent tests run
// concurrently against one underlying repository: each lease touches
// only its own working directory, and the shared object database is
// append-only from the pool's perspective.
//
// Grounded on internal/executor/worktree.go's git-worktree exec.Command
// patterns and the acquire/release/reset-on-release loop in
// original_source/backend/app/services/worktree_pool.py.
package worktreepool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pipelinehardening/paratest/internal/domain"
	"github.com/pipelinehardening/paratest/internal/orcerr"
)

// VCSDriver is the version-control capability the pool depends on. The
// pool is agnostic to the underlying VCS; a real implementation shells
// out to git (see internal/gitvcs), and tests substitute a fake.
type VCSDriver interface {
	CreateWorktree(ctx context.Context, path, branch string) error
	RemoveWorktree(ctx context.Context, path string) error
	ResetWorktree(ctx context.Context, path, branch string) error
	IntegrityCheck(ctx context.Context, path string) bool
}

// Config configures a Pool.
type Config struct {
	Size    int
	BaseDir string
	// ResetFailureCap bounds how many consecutive reset/integrity
	// failures a single lease may suffer before it is dropped instead
	// of recycled. Zero uses a small built-in default.
	ResetFailureCap int
	// PreserveErrorLeases keeps ERROR leases around for diagnosis
	// instead of destroying and recreating them immediately.
	PreserveErrorLeases bool
}

func (c Config) cap() int {
	if c.ResetFailureCap > 0 {
		return c.ResetFailureCap
	}
	return 3
}

type entry struct {
	lease       domain.WorktreeLease
	failStreak  int
	dropped     bool
}

// Pool is the worktree pool described in spec.md §4.1.
type Pool struct {
	vcs    VCSDriver
	cfg    Config
	mu     sync.Mutex
	cond   *sync.Cond
	leases map[string]*entry
	order  []string // stable iteration order, wt-1, wt-2, ...

	warnings []string
}

// New creates an uninitialized pool bound to the given VCS driver.
func New(vcs VCSDriver, cfg Config) *Pool {
	p := &Pool{
		vcs:    vcs,
		cfg:    cfg,
		leases: make(map[string]*entry),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Initialize creates exactly cfg.Size worktrees under cfg.BaseDir, each
// on a distinct dedicated branch. If any creation fails, it rolls back
// by destroying everything already created and returns
// orcerr.ErrSetupFailure.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.leases) > 0 {
		return nil // already initialized; idempotent like cleanup
	}

	created := make([]string, 0, p.cfg.Size)
	for i := 1; i <= p.cfg.Size; i++ {
		id := fmt.Sprintf("wt-%d", i)
		branch := fmt.Sprintf("paratest/%s", id)
		path := fmt.Sprintf("%s/%s", p.cfg.BaseDir, id)

		// Tolerate stale directories from a crashed prior session by
		// unconditionally attempting a remove before create.
		_ = p.vcs.RemoveWorktree(ctx, path)

		if err := p.vcs.CreateWorktree(ctx, path, branch); err != nil {
			for _, cid := range created {
				_ = p.vcs.RemoveWorktree(ctx, p.leases[cid].lease.Path)
				delete(p.leases, cid)
			}
			p.order = nil
			return fmt.Errorf("%w: creating %s: %v", orcerr.ErrSetupFailure, id, err)
		}

		now := time.Now()
		p.leases[id] = &entry{lease: domain.WorktreeLease{
			ID:        id,
			Path:      path,
			Branch:    branch,
			Status:    domain.LeaseFree,
			CreatedAt: now,
			LastUsed:  now,
		}}
		p.order = append(p.order, id)
		created = append(created, id)
	}

	return nil
}

// Acquire blocks until a FREE lease is available and returns it marked
// BUSY. It never returns an ERROR lease.
func (p *Pool) Acquire(ctx context.Context) (domain.WorktreeLease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return domain.WorktreeLease{}, err
		}
		if len(p.order) == 0 {
			return domain.WorktreeLease{}, orcerr.ErrLeaseFailure
		}

		for _, id := range p.order {
			e, ok := p.leases[id]
			if !ok || e.dropped {
				continue
			}
			if e.lease.Status == domain.LeaseFree {
				e.lease.Status = domain.LeaseBusy
				e.lease.LastUsed = time.Now()
				return e.lease, nil
			}
		}

		// No free lease: wait for a release, but remain responsive to
		// context cancellation by waking periodically.
		waited := p.waitWithContext(ctx)
		if !waited {
			return domain.WorktreeLease{}, ctx.Err()
		}
	}
}

// waitWithContext waits on the pool's condition variable, but also
// wakes on context cancellation by racing a one-shot canceller
// goroutine against the broadcast from Release. It must be called with
// p.mu held and holds it again before returning.
func (p *Pool) waitWithContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-stop:
		}
	}()

	p.cond.Wait()
	close(stop)

	return ctx.Err() == nil
}

// Release resets the worktree to a clean state, probes its integrity,
// and returns it to FREE. On any failure the lease is marked ERROR
// instead and recycled (or dropped) internally; Release never returns
// an error to the caller.
func (p *Pool) Release(ctx context.Context, lease domain.WorktreeLease) {
	ok := p.resetAndProbe(ctx, lease)

	p.mu.Lock()
	e, exists := p.leases[lease.ID]
	if !exists || e.dropped {
		p.mu.Unlock()
		return
	}

	if ok {
		e.failStreak = 0
		e.lease.Status = domain.LeaseFree
		p.cond.Broadcast()
		p.mu.Unlock()
		return
	}

	e.failStreak++
	e.lease.Status = domain.LeaseErr
	if e.failStreak < p.cfg.cap() && !p.cfg.PreserveErrorLeases {
		// Recycle: try a hard destroy+recreate before giving up. The
		// streak is only cleared by a successful reset, so a lease whose
		// reset keeps failing still reaches the cap.
		p.mu.Unlock()
		if p.recreate(ctx, lease) {
			p.mu.Lock()
			e.lease.Status = domain.LeaseFree
			p.cond.Broadcast()
			p.mu.Unlock()
			return
		}
		p.mu.Lock()
	}

	// Reached the recycle cap (or recreate failed): drop the lease,
	// shrinking pool capacity, unless the caller wants it preserved for
	// diagnosis, in which case it stays in ERROR and is never acquired.
	outcome := "kept in ERROR"
	if !p.cfg.PreserveErrorLeases {
		e.dropped = true
		p.removeFromOrder(lease.ID)
		outcome = "dropped"
	}
	p.warnings = append(p.warnings, fmt.Sprintf(
		"%v: lease %s %s after %d consecutive reset failures",
		orcerr.ErrResetFailure, lease.ID, outcome, e.failStreak))
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Pool) removeFromOrder(id string) {
	for i, oid := range p.order {
		if oid == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// resetAndProbe implements the three-step reset algorithm of spec.md
// §4.1: reset the working tree against the branch tip, then run the
// integrity probe.
func (p *Pool) resetAndProbe(ctx context.Context, lease domain.WorktreeLease) bool {
	if err := p.vcs.ResetWorktree(ctx, lease.Path, lease.Branch); err != nil {
		return false
	}
	return p.vcs.IntegrityCheck(ctx, lease.Path)
}

func (p *Pool) recreate(ctx context.Context, lease domain.WorktreeLease) bool {
	_ = p.vcs.RemoveWorktree(ctx, lease.Path)
	if err := p.vcs.CreateWorktree(ctx, lease.Path, lease.Branch); err != nil {
		return false
	}
	return p.vcs.IntegrityCheck(ctx, lease.Path)
}

// Cleanup removes all worktrees and their branches. Idempotent.
func (p *Pool) Cleanup(ctx context.Context) {
	p.mu.Lock()
	ids := append([]string(nil), p.order...)
	for id := range p.leases {
		found := false
		for _, oid := range ids {
			if oid == id {
				found = true
				break
			}
		}
		if !found {
			ids = append(ids, id)
		}
	}
	paths := make(map[string]string, len(p.leases))
	for id, e := range p.leases {
		paths[id] = e.lease.Path
	}
	p.mu.Unlock()

	for _, id := range ids {
		if path, ok := paths[id]; ok {
			_ = p.vcs.RemoveWorktree(ctx, path)
		}
	}

	p.mu.Lock()
	p.leases = make(map[string]*entry)
	p.order = nil
	p.mu.Unlock()
}

// Warnings returns and clears the accumulated RESET_FAILURE warnings,
// for the orchestrator to fold into the session report.
func (p *Pool) Warnings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.warnings
	p.warnings = nil
	return w
}

// Size returns the current lease count (may be less than the
// configured size if leases were dropped after repeated reset
// failures).
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Snapshot returns a read-only view of every lease still in the pool,
// for status reporting. Dropped leases are not included.
func (p *Pool) Snapshot() []domain.WorktreeLease {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.WorktreeLease, 0, len(p.leases))
	for _, id := range p.order {
		out = append(out, p.leases[id].lease)
	}
	return out
}
