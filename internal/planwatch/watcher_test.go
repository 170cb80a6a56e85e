package planwatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestWatcher_ReportsChangedPlanAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	planPath := filepath.Join(dir, "smoke.md")
	if err := os.WriteFile(planPath, []byte("---\ntitle: smoke\n---\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []string
	w, err := New(func(changed []string) {
		mu.Lock()
		got = append(got, changed...)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	w.SetDebounce(20 * time.Millisecond)

	if err := w.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	if err := os.WriteFile(planPath, []byte("---\ntitle: smoke v2\n---\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("expected a change notification, got none")
	}
	if got[0] != planPath {
		t.Errorf("got changed path %q, want %q", got[0], planPath)
	}
}

func TestWatcher_IgnoresNonMarkdownFiles(t *testing.T) {
	dir := t.TempDir()
	otherPath := filepath.Join(dir, "notes.txt")
	os.WriteFile(otherPath, []byte("hi"), 0644)

	var mu sync.Mutex
	var got []string
	w, _ := New(func(changed []string) {
		mu.Lock()
		got = append(got, changed...)
		mu.Unlock()
	})
	w.SetDebounce(20 * time.Millisecond)
	w.AddDir(dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	os.WriteFile(otherPath, []byte("hi again"), 0644)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 0 {
		t.Errorf("got %v, want no notifications for a non-markdown file", got)
	}
}
