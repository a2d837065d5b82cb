// Package watch reports files appearing in a directory, using fsnotify with
// a stat-polling fallback. The orchestrator uses it to notice worker result
// files as soon as they are renamed into place.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the stat interval used when fsnotify is unavailable.
const DefaultPollInterval = 2 * time.Second

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher monitors a directory for files whose names satisfy a match function.
type Watcher struct {
	// dir is the directory being monitored.
	dir string
	// match filters file base names; temp files from atomic writes must not match.
	match func(name string) bool
	// events delivers the base name of each matching file that was created
	// or written. A full channel drops names; [Watcher.Changed] still fires.
	events chan string
	// changed carries a coalesced signal, buffered to 1.
	changed chan struct{}
	// done is closed by [Watcher.Close] to signal goroutines to exit.
	done chan struct{}
	// fsw is the underlying fsnotify watcher; nil when polling.
	fsw *fsnotify.Watcher
	// once ensures [Watcher.Close] is idempotent.
	once sync.Once
	// polling is true when the watcher has fallen back to stat-based polling.
	polling atomic.Bool
	// pollInterval is the duration between directory scans in polling mode.
	pollInterval time.Duration
}

// Suffix returns a match function accepting names that end in ext.
func Suffix(ext string) func(string) bool {
	return func(name string) bool { return strings.HasSuffix(name, ext) }
}

// New watches dir for files accepted by match. The directory must exist.
// If fsnotify cannot be used the watcher polls every pollInterval, or
// [DefaultPollInterval] when pollInterval is zero.
func New(dir string, match func(string) bool, pollInterval time.Duration) (*Watcher, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	w := &Watcher{
		dir:          dir,
		match:        match,
		events:       make(chan string, 64),
		changed:      make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to directory polling", "error", err)
		w.startPolling()
		return w, nil
	}

	w.fsw = fsw
	if err := fsw.Add(dir); err != nil {
		slog.Info("cannot watch directory, falling back to polling", "path", dir, "error", err)
		fsw.Close()
		w.fsw = nil
		w.startPolling()
		return w, nil
	}

	go w.watch(fsw)
	return w, nil
}

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	seen := w.scan(nil)
	go w.poll(seen)
}

// watch forwards create/write events for matching files. On an fsnotify
// error it closes the native watcher and switches to polling.
func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && w.match(name) {
				w.notify(name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to directory polling", "error", err)
			fsw.Close()
			w.startPolling()
			return
		}
	}
}

// poll rescans the directory and notifies for every matching file that is
// new or whose modification time advanced.
func (w *Watcher) poll(seen map[string]time.Time) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			seen = w.scan(seen)
		}
	}
}

// scan returns the current modification times of matching files, notifying
// for changes against prev. A nil prev records a baseline silently.
func (w *Watcher) scan(prev map[string]time.Time) map[string]time.Time {
	cur := map[string]time.Time{}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return prev
	}
	for _, e := range entries {
		if e.IsDir() || !w.match(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		cur[e.Name()] = info.ModTime()
		if prev == nil {
			continue
		}
		if last, ok := prev[e.Name()]; !ok || info.ModTime().After(last) {
			w.notify(e.Name())
		}
	}
	return cur
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events returns the names of matching files as they change.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Changed returns a channel that receives a signal after any matching change.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

// notify never blocks. Rapid successive changes coalesce on the changed
// channel.
func (w *Watcher) notify(name string) {
	select {
	case w.events <- name:
	default:
	}
	select {
	case w.changed <- struct{}{}:
	default:
	}
}
