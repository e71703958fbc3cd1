// Package reload applies configuration changes to a running host. A Watcher
// polls the configuration file; the Handler re-reads it and hands the new
// blocks to the modules.
package reload

import (
	"context"
	"io/fs"
	"os"
	"sync"
	"time"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Path string
	// PollInterval defaults to 5s.
	PollInterval time.Duration
}

// EventType says how the file changed.
type EventType string

// Event types.
const (
	EventModified EventType = "modified"
	EventCreated  EventType = "created"
)

// Event reports a settled change of the watched file.
type Event struct {
	Type    EventType
	Path    string
	ModTime time.Time
}

// fingerprint identifies a version of the file. The zero value means the
// file does not exist.
type fingerprint struct {
	mod  time.Time
	size int64
}

// Watcher polls a file and emits an Event once a change has settled: the
// file must look the same on two consecutive polls, so an editor still
// writing it is not picked up half way. Any change of modification time or
// size counts, including a replacement by an older file. A removed file
// produces no event; its reappearance does.
type Watcher struct {
	cfg    WatcherConfig
	stat   func(string) (fs.FileInfo, error)
	events chan Event

	// Poll state, owned by the polling goroutine.
	seen    fingerprint
	pending *fingerprint

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewWatcher creates a watcher. It records the file as it is now; only
// later changes are reported.
func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	w := &Watcher{
		cfg:    cfg,
		stat:   os.Stat,
		events: make(chan Event, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	w.seen = w.fingerprint()
	return w
}

// Events delivers changes. At most one event is buffered; consumers re-read
// the file, so a dropped duplicate loses nothing.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start launches the polling goroutine. Later calls do nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() { go w.run(ctx) })
}

// Stop ends polling and waits for the goroutine. It may be called more
// than once and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	started := true
	w.startOnce.Do(func() { started = false })
	if started {
		<-w.done
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if evt, ok := w.poll(); ok {
				select {
				case w.events <- evt:
				default:
				}
			}
		}
	}
}

// poll runs one observation and returns the event it settles, if any.
func (w *Watcher) poll() (Event, bool) {
	now := w.fingerprint()
	switch {
	case now == w.seen:
		w.pending = nil
		return Event{}, false
	case now.mod.IsZero():
		// Removed. Forget it so that its return counts as a creation.
		w.seen, w.pending = fingerprint{}, nil
		return Event{}, false
	case w.pending == nil || *w.pending != now:
		w.pending = &now
		return Event{}, false
	}

	typ := EventModified
	if w.seen.mod.IsZero() {
		typ = EventCreated
	}
	w.seen, w.pending = now, nil
	return Event{Type: typ, Path: w.cfg.Path, ModTime: now.mod}, true
}

func (w *Watcher) fingerprint() fingerprint {
	fi, err := w.stat(w.cfg.Path)
	if err != nil {
		return fingerprint{}
	}
	return fingerprint{mod: fi.ModTime(), size: fi.Size()}
}

// ModTime returns the modification time of path, or the zero time when it
// cannot be stat'ed.
func ModTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}
