// Package gitvcs implements worktreepool.VCSDriver over the system git
// binary. It is the only package in the core that shells out to git;
// the pool itself is VCS-agnostic.
//
// Grounded on internal/executor/worktree.go's exec.Command usage for
// `git worktree add`/`remove` and on the reset/clean sequence in
// original_source/backend/app/services/worktree_pool.py's
// _cleanup_worktree.
package gitvcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Driver shells out to git rooted at RepoDir to manage worktrees under
// a shared object database.
type Driver struct {
	RepoDir    string
	BaseBranch string // branch new worktrees and resets are anchored to, e.g. "main"
}

// New creates a Driver anchored at repoDir, resetting worktrees against
// baseBranch.
func New(repoDir, baseBranch string) *Driver {
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &Driver{RepoDir: repoDir, BaseBranch: baseBranch}
}

func (d *Driver) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

// CreateWorktree creates a new worktree at path on a fresh branch cut
// from the driver's base branch.
func (d *Driver) CreateWorktree(ctx context.Context, path, branch string) error {
	// Best-effort cleanup of a stale branch from a crashed prior run.
	_, _ = d.run(ctx, d.RepoDir, "branch", "-D", branch)

	_, err := d.run(ctx, d.RepoDir, "worktree", "add", "-b", branch, path, d.BaseBranch)
	return err
}

// RemoveWorktree removes the worktree at path and deletes its branch.
// Both steps are best-effort: an already-gone worktree or branch is not
// an error.
func (d *Driver) RemoveWorktree(ctx context.Context, path string) error {
	branch, _ := d.branchOf(ctx, path)

	_, _ = d.run(ctx, d.RepoDir, "worktree", "remove", "--force", path)
	_, _ = d.run(ctx, d.RepoDir, "worktree", "prune")

	if branch != "" {
		_, _ = d.run(ctx, d.RepoDir, "branch", "-D", branch)
	}
	return nil
}

// ResetWorktree discards tracked and untracked changes in path and
// restores the branch tip, implementing the reset-on-release algorithm
// of spec.md §4.1.
func (d *Driver) ResetWorktree(ctx context.Context, path, branch string) error {
	if _, err := d.run(ctx, path, "checkout", "-f", branch); err != nil {
		return err
	}
	if _, err := d.run(ctx, path, "reset", "--hard", branch); err != nil {
		return err
	}
	if _, err := d.run(ctx, path, "clean", "-fdx"); err != nil {
		return err
	}
	return nil
}

// IntegrityCheck probes that path is a clean, consistent git worktree:
// the object database is reachable and the working tree matches HEAD.
func (d *Driver) IntegrityCheck(ctx context.Context, path string) bool {
	if _, err := d.run(ctx, path, "rev-parse", "--verify", "HEAD"); err != nil {
		return false
	}
	if _, err := d.run(ctx, path, "fsck", "--no-progress"); err != nil {
		return false
	}
	out, err := d.run(ctx, path, "status", "--porcelain")
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(out))) == 0
}

func (d *Driver) branchOf(ctx context.Context, path string) (string, error) {
	out, err := d.run(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
