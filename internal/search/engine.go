// Package search exposes the stable public façade over the storage
// adapter, index builder, and query engine: initialize, search, refresh,
// shutdown.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sha1n/wsearch/internal/builder"
	"github.com/sha1n/wsearch/internal/query"
	"github.com/sha1n/wsearch/internal/store"
	"github.com/sha1n/wsearch/internal/symbols"
	"github.com/sha1n/wsearch/internal/workspace"
)

// Config configures an Engine's behavior. PollInterval is consumed by the
// host wiring code when constructing the Notifier passed to New, not by
// New itself.
type Config struct {
	Root             string
	ExcludePatterns  []string
	CaseSensitive    bool
	MinTrigramLength int
	EnableCamelCase  bool
	IncludeFiles     bool
	IncludeSymbols   bool
	MaxResults       int
	Watch            bool
	PollInterval     time.Duration
}

// Engine is the public façade. It owns the storage adapter, the builder,
// and the query engine, and serializes initialize/refresh against search
// the way the teacher's Service serializes SyncAll/openIndexes against
// GetIndexAlias.
type Engine struct {
	cfg      Config
	adapter  store.Adapter
	builder  *builder.Builder
	notifier workspace.Notifier
	qe       *query.Engine
	lock     *store.FileLock

	mu    sync.RWMutex
	ready bool

	initMu      sync.Mutex
	initDone    chan struct{}
	initErr     error
	initStarted bool
}

// New wires an Engine around adapter, using enum/sym/notifier as the
// workspace collaborators (spec §6). notifier may be nil to disable
// incremental watching.
func New(cfg Config, adapter store.Adapter, enum workspace.Enumerator, sym symbols.Provider, notifier workspace.Notifier, lockPath string) *Engine {
	b := builder.New(adapter, enum, sym, cfg.Root, cfg.ExcludePatterns, cfg.CaseSensitive)
	qe := query.New(adapter, query.Options{
		MinTrigramLength: cfg.MinTrigramLength,
		EnableCamelCase:  cfg.EnableCamelCase,
		CaseSensitive:    cfg.CaseSensitive,
	})

	var lock *store.FileLock
	if lockPath != "" {
		lock = store.NewFileLock(lockPath)
	}

	return &Engine{
		cfg:      cfg,
		adapter:  adapter,
		builder:  b,
		notifier: notifier,
		qe:       qe,
		lock:     lock,
	}
}

// Initialize prepares the engine: acquires the initialization lock (if
// configured), performs a full build if the store is empty, and starts
// the incremental watcher if configured. Only one initialization may be
// in flight at a time; concurrent callers share the same result, mirroring
// the teacher's Service.Initialize leader/follower shape reduced to a
// single process (no multi-instance sync lock is needed for search's
// single-workspace, single-process embedding, so the FileLock here guards
// only against two Engine instances initializing the same persistent store
// at once; it is released when initialization returns and does not stop
// another instance from opening the store afterwards).
func (e *Engine) Initialize(ctx context.Context) error {
	e.initMu.Lock()
	if e.initStarted {
		done := e.initDone
		e.initMu.Unlock()
		select {
		case <-done:
			return e.initErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	e.initStarted = true
	e.initDone = make(chan struct{})
	e.initMu.Unlock()

	err := e.doInitialize(ctx)

	e.initMu.Lock()
	e.initErr = err
	close(e.initDone)
	e.initMu.Unlock()

	return err
}

func (e *Engine) doInitialize(ctx context.Context) error {
	if e.lock != nil {
		acquired, err := e.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire index lock: %w", err)
		}
		if !acquired {
			return fmt.Errorf("index store is locked by another instance")
		}
		defer func() { _ = e.lock.Unlock() }()
	}

	if err := e.adapter.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	stats, err := e.adapter.Stats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	if stats.Items == 0 {
		slog.Info("workspace index empty, running full build", "root", e.cfg.Root)
		if err := e.builder.Build(ctx, nil); err != nil {
			return fmt.Errorf("initial build: %w", err)
		}
	} else {
		slog.Info("workspace index loaded", "items", stats.Items, "root", e.cfg.Root)
	}

	if e.cfg.Watch && e.notifier != nil {
		e.builder.SetFlushLock(&e.mu)
		if err := e.builder.Watch(ctx, e.notifier); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()

	return nil
}

// IsReady reports whether the engine has completed initialization and is
// serving searches.
func (e *Engine) IsReady() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// Search awaits initialization if still in progress, then runs the query
// pipeline. limit ≤ 0 falls back to Config.MaxResults.
func (e *Engine) Search(ctx context.Context, q string, limit int) ([]query.Result, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if limit <= 0 {
		limit = e.cfg.MaxResults
	}

	results, err := e.qe.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return filterByKind(results, e.cfg.IncludeFiles, e.cfg.IncludeSymbols), nil
}

func filterByKind(results []query.Result, includeFiles, includeSymbols bool) []query.Result {
	if includeFiles && includeSymbols {
		return results
	}
	out := make([]query.Result, 0, len(results))
	for _, r := range results {
		isFile := r.Item.Kind == store.KindFile
		if isFile && includeFiles {
			out = append(out, r)
			continue
		}
		if !isFile && includeSymbols {
			out = append(out, r)
		}
	}
	return out
}

// Refresh is a barrier: it drops the entire index and performs a fresh
// full build, holding the write lock so concurrent searches block until
// it completes (spec §5: "refresh is a barrier").
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.builder.Refresh(ctx, nil)
}

// Stats reports current index totals.
func (e *Engine) Stats(ctx context.Context) (store.Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.adapter.Stats(ctx)
}

// Shutdown stops the watcher (if running) and closes the storage adapter.
// It does not touch the initialization lock, which Initialize already
// released.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.notifier != nil {
		if err := e.notifier.Close(); err != nil {
			slog.Warn("failed closing notifier", "error", err)
		}
	}

	e.ready = false

	return e.adapter.Close()
}
