// Package watch reports changes to the files a build depends on.
package watch

import (
	"context"
	"iter"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/qobs-build/rebuild/internal/msg"
)

type Op uint8

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

type Event struct {
	Path string
	Op   Op
}

const eventChannelBuffer = 100

// Watcher watches a set of directories, non-recursively. Directories can be
// added while it runs, as the set of included headers changes.
type Watcher struct {
	// Ignore, if set, drops events for the paths it returns true for
	Ignore func(path string) bool

	fsWatcher *fsnotify.Watcher
	events    chan Event

	mu   sync.Mutex
	dirs map[string]struct{}
}

func New() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		events:    make(chan Event, eventChannelBuffer),
		dirs:      make(map[string]struct{}),
	}, nil
}

// Add starts watching every directory in dirs that isn't watched yet
func (w *Watcher) Add(dirs ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = struct{}{}
	}
	return nil
}

// Len returns the number of watched directories
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// Start delivers events until ctx is done or the watcher is stopped
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// Events yields events until the watcher stops
func (w *Watcher) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			ev, ok := convertEvent(event)
			if !ok || (w.Ignore != nil && w.Ignore(ev.Path)) {
				continue
			}
			select {
			case w.events <- ev:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			msg.Warn("watcher: %v", err)
		}
	}
}

func convertEvent(event fsnotify.Event) (Event, bool) {
	switch {
	case event.Has(fsnotify.Write):
		return Event{Path: event.Name, Op: OpWrite}, true
	case event.Has(fsnotify.Create):
		return Event{Path: event.Name, Op: OpCreate}, true
	case event.Has(fsnotify.Remove):
		return Event{Path: event.Name, Op: OpRemove}, true
	case event.Has(fsnotify.Rename):
		return Event{Path: event.Name, Op: OpRename}, true
	}
	return Event{}, false
}
