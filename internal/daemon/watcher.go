// Package daemon watches the execution report log and drives reactive
// passes. Passes run inline in the event loop, one at a time — the
// single-writer assumption of the proposal store is preserved by
// construction, never by locking.
package daemon

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the default debounce interval for file events. A
// burst of writes to the report log collapses into one reactive pass.
const debounceDefault = 500 * time.Millisecond

// pollDefault is the default polling interval when fsnotify is
// unavailable.
const pollDefault = 5 * time.Second

// Watcher triggers a reactive pass when the report log changes.
type Watcher struct {
	reportsPath string
	pass        func()
	debounce    time.Duration
	poll        time.Duration
}

// NewWatcher creates a watcher over the report log file. pass is
// invoked once per debounced change burst, always from a single
// goroutine.
func NewWatcher(reportsPath string, pass func()) *Watcher {
	return &Watcher{
		reportsPath: reportsPath,
		pass:        pass,
		debounce:    debounceDefault,
		poll:        pollDefault,
	}
}

// Run blocks until ctx is cancelled. One pass runs at startup to cover
// reports that landed while the daemon was down.
func (w *Watcher) Run(ctx context.Context) error {
	w.pass()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// fsnotify unavailable (e.g. NFS): fall back to polling.
		return w.runPoll(ctx)
	}
	defer func() { _ = watcher.Close() }()

	// The report log is replaced by rename on every append, so the
	// watch goes on the parent directory and events are filtered by
	// file name.
	dir := filepath.Dir(w.reportsPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Base(w.reportsPath)

	// Single debounce timer, reset on each event.
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			w.pass()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}

// runPoll watches the report log by modification time and size.
func (w *Watcher) runPoll(ctx context.Context) error {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var lastMod time.Time
	var lastSize int64
	if info, err := os.Stat(w.reportsPath); err == nil {
		lastMod, lastSize = info.ModTime(), info.Size()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			info, err := os.Stat(w.reportsPath)
			if err != nil {
				continue
			}
			if info.ModTime().Equal(lastMod) && info.Size() == lastSize {
				continue
			}
			lastMod, lastSize = info.ModTime(), info.Size()
			w.pass()
		}
	}
}
