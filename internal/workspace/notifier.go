package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind classifies a filesystem change reported by a Notifier.
type EventKind string

const (
	EventCreate EventKind = "create"
	EventModify EventKind = "modify"
	EventDelete EventKind = "delete"
)

// Event is one raw filesystem change, path relative to the watched root.
type Event struct {
	Path string
	Kind EventKind
}

// Notifier watches a workspace root for file changes, emitting raw events
// to a channel. Debouncing and coalescing across rapid successive events is
// the builder's responsibility, not the notifier's.
type Notifier interface {
	Start(ctx context.Context, root string, excludes []string) (<-chan Event, error)
	Close() error
}

// NewNotifier returns the default Notifier: fsnotify-backed, falling back
// to a polling watcher if the platform's inotify/kqueue/ReadDirectoryChanges
// facility is unavailable, grounded on the teacher's startWatcher factory.
func NewNotifier(pollInterval time.Duration) Notifier {
	if fw, err := newFsnotifyNotifier(); err == nil {
		return fw
	}
	return newPollingNotifier(pollInterval)
}

// fsnotifyNotifier is the default Notifier, backed by the OS's native
// file-change facility.
type fsnotifyNotifier struct {
	watcher *fsnotify.Watcher
	filter  *FileFilter
	root    string
	cancel  context.CancelFunc
}

func newFsnotifyNotifier() (*fsnotifyNotifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &fsnotifyNotifier{watcher: w}, nil
}

func (n *fsnotifyNotifier) Start(ctx context.Context, root string, excludes []string) (<-chan Event, error) {
	n.root = root
	n.filter = NewFileFilter(excludes...)

	if err := n.addRecursive(root); err != nil {
		_ = n.watcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	out := make(chan Event)
	go n.run(ctx, out)
	return out, nil
}

func (n *fsnotifyNotifier) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, relErr := filepath.Rel(n.root, path)
		if relErr == nil && relPath != "." && n.filter.ShouldExclude(filepath.ToSlash(relPath)) {
			return filepath.SkipDir
		}
		_ = n.watcher.Add(path)
		return nil
	})
}

func (n *fsnotifyNotifier) run(ctx context.Context, out chan<- Event) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handle(ctx, ev, out)

		case _, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (n *fsnotifyNotifier) handle(ctx context.Context, ev fsnotify.Event, out chan<- Event) {
	relPath, err := filepath.Rel(n.root, ev.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)
	if n.filter.ShouldExclude(relPath) {
		return
	}

	var kind EventKind
	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		kind = EventCreate
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = n.addRecursive(ev.Name)
			return
		}
	case ev.Op&fsnotify.Write == fsnotify.Write:
		kind = EventModify
	case ev.Op&fsnotify.Remove == fsnotify.Remove, ev.Op&fsnotify.Rename == fsnotify.Rename:
		kind = EventDelete
	default:
		return
	}

	select {
	case out <- Event{Path: relPath, Kind: kind}:
	case <-ctx.Done():
	}
}

func (n *fsnotifyNotifier) Close() error {
	if n.cancel != nil {
		n.cancel()
	}
	return n.watcher.Close()
}

// pollingNotifier is the fallback Notifier used when the native
// file-change facility is unavailable.
type pollingNotifier struct {
	interval time.Duration
	cancel   context.CancelFunc

	mu    sync.Mutex
	mtime map[string]time.Time
}

func newPollingNotifier(interval time.Duration) *pollingNotifier {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &pollingNotifier{interval: interval, mtime: make(map[string]time.Time)}
}

func (p *pollingNotifier) Start(ctx context.Context, root string, excludes []string) (<-chan Event, error) {
	filter := NewFileFilter(excludes...)
	if err := p.scan(root, filter); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	out := make(chan Event)
	go p.run(ctx, root, filter, out)
	return out, nil
}

func (p *pollingNotifier) scan(root string, filter *FileFilter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := make(map[string]time.Time)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && filter.ShouldExclude(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if filter.ShouldExclude(relPath) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fresh[relPath] = info.ModTime()
		return nil
	})
	if err != nil {
		return err
	}
	p.mtime = fresh
	return nil
}

func (p *pollingNotifier) run(ctx context.Context, root string, filter *FileFilter, out chan<- Event) {
	defer close(out)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.diff(ctx, root, filter, out)
		}
	}
}

func (p *pollingNotifier) diff(ctx context.Context, root string, filter *FileFilter, out chan<- Event) {
	p.mu.Lock()
	before := make(map[string]time.Time, len(p.mtime))
	for k, v := range p.mtime {
		before[k] = v
	}
	p.mu.Unlock()

	if err := p.scan(root, filter); err != nil {
		return
	}

	p.mu.Lock()
	after := p.mtime
	p.mu.Unlock()

	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for path, mtime := range after {
		if old, ok := before[path]; !ok {
			if !emit(Event{Path: path, Kind: EventCreate}) {
				return
			}
		} else if !old.Equal(mtime) {
			if !emit(Event{Path: path, Kind: EventModify}) {
				return
			}
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			if !emit(Event{Path: path, Kind: EventDelete}) {
				return
			}
		}
	}
}

func (p *pollingNotifier) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

var (
	_ Notifier = (*fsnotifyNotifier)(nil)
	_ Notifier = (*pollingNotifier)(nil)
)
