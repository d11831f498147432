package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartupPassRunsOnce(t *testing.T) {
	var passes atomic.Int64
	w := NewWatcher(filepath.Join(t.TempDir(), "reports.json"), func() { passes.Add(1) })
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return passes.Load() >= 1 })
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestChangeBurstTriggersOnePass(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports.json")
	if err := os.WriteFile(path, []byte(`{"executions":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var passes atomic.Int64
	w := NewWatcher(path, func() { passes.Add(1) })
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Startup pass.
	waitFor(t, 2*time.Second, func() bool { return passes.Load() == 1 })

	// A burst of writes within the debounce window.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`{"executions":[{}]}`), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	waitFor(t, 2*time.Second, func() bool { return passes.Load() == 2 })

	// No further passes without further changes.
	time.Sleep(150 * time.Millisecond)
	if passes.Load() != 2 {
		t.Fatalf("passes = %d, want 2", passes.Load())
	}
}

func TestPollFallbackDetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports.json")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	var passes atomic.Int64
	w := NewWatcher(path, func() { passes.Add(1) })
	w.poll = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.runPoll(ctx) }()

	time.Sleep(30 * time.Millisecond)
	if err := os.WriteFile(path, []byte("ab"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return passes.Load() >= 1 })
}
