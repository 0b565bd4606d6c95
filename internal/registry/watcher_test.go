package registry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchDetectsNewRepository(t *testing.T) {
	reg := testRegistry(t)
	if _, err := reg.List(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, reg, discardLogger(), func() {
			calls.Add(1)
		})
	}()

	// Give the watcher time to install.
	time.Sleep(100 * time.Millisecond)

	// Another process drops a repository file into the data dir.
	other, err := New(reg.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Open("synced"); err != nil {
		t.Fatal(err)
	}
	other.Close()

	deadline := time.After(3 * time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for watcher callback")
		case <-time.After(50 * time.Millisecond):
		}
	}

	// The registry picked up the repository.
	if _, err := reg.Get("synced"); err != nil {
		t.Errorf("synced repository not registered: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop on cancel")
	}
}

func TestWatchIgnoresSidecarFiles(t *testing.T) {
	reg := testRegistry(t)
	if _, err := reg.List(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go func() {
		_ = Watch(ctx, reg, discardLogger(), func() { calls.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	// WAL/SHM churn must not trigger refreshes.
	writeFile(t, reg.Dir(), "notebook.db-wal")
	writeFile(t, reg.Dir(), "notebook.db-shm")

	time.Sleep(500 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("callback fired %d times for sidecar files", n)
	}
}

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
		t.Fatal(err)
	}
}
