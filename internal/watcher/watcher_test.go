package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_DebouncedReload(t *testing.T) {
	dir := t.TempDir()
	var reloads atomic.Int32
	w := New(dir, func() { reloads.Add(1) }, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer w.Stop()

	// A burst of writes should collapse into one reload.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(dir, "costs.csv"), []byte("a,b\n1,2"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reloads.Load() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := reloads.Load(); got != 1 {
		t.Errorf("got %d reloads, want 1 debounced reload", got)
	}
}

func TestWatcher_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-yet")
	w := New(dir, func() {})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer w.Stop()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New(t.TempDir(), func() {})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	// Start after Stop is a fresh session.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	w.Stop()
}
