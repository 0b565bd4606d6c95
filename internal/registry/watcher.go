package registry

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the data directory and processes
// repository file events until ctx is cancelled. When a repository database
// appears or disappears (e.g. dropped in by a sync client or a second
// process), the registry is refreshed and cb (if non-nil) is invoked so the
// caller can rebuild its index.
//
// Events are debounced: bursts of file activity trigger a single refresh.
func Watch(ctx context.Context, reg *Registry, logger *slog.Logger, cb func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(reg.Dir()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", reg.Dir()))

	var refreshTimer *time.Timer
	var refreshCh <-chan time.Time

	scheduleRefresh := func() {
		if refreshTimer == nil {
			refreshTimer = time.NewTimer(200 * time.Millisecond)
			refreshCh = refreshTimer.C
		} else {
			refreshTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if refreshTimer != nil {
				refreshTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-refreshCh:
			if err := reg.Refresh(); err != nil {
				logger.Warn("watcher: refresh failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: registry refreshed")
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			// Only repository database files matter; SQLite sidecar
			// files (-wal, -shm) churn constantly and are ignored.
			if !strings.HasSuffix(ev.Name, ".db") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: repository change",
				slog.String("path", ev.Name),
				slog.String("op", ev.Op.String()))
			scheduleRefresh()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
