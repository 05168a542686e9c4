// Package builder drives initial full indexing, consumes file-change
// events, and orchestrates incremental reindex against a store.Adapter.
package builder

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sha1n/wsearch/internal/store"
	"github.com/sha1n/wsearch/internal/symbols"
	"github.com/sha1n/wsearch/internal/textindex"
	"github.com/sha1n/wsearch/internal/workspace"
)

// ErrCancelled is returned by Build when ctx is cancelled mid-sweep.
var ErrCancelled = errors.New("builder: build cancelled")

// progressInterval is how often Build reports progress and yields to the
// scheduler (spec §4.5: "reports progress at 50-item intervals").
const progressInterval = 50

// debounceInterval is the fixed window incremental events are coalesced
// over before a flush (spec §4.5: "a 1-second debounce fires
// process_pending").
const debounceInterval = 1 * time.Second

// ProgressFunc is called with the running item count during Build.
type ProgressFunc func(indexed int)

// Builder walks a workspace into an Adapter and keeps it in sync with
// incremental file-change events.
type Builder struct {
	adapter       store.Adapter
	enumerator    workspace.Enumerator
	symbols       symbols.Provider
	root          string
	excludes      []string
	caseSensitive bool

	mu      sync.Mutex
	pending map[string]workspace.EventKind
	closed  chan struct{}

	flushLock sync.Locker
}

// SetFlushLock installs a lock taken around each incremental flush, so a
// caller holding the same lock around Search (engine.go) never observes a
// half-applied batch (spec §5: a search during a batch sees all of it or
// none). Call before Watch; a nil lock (the default) leaves flushes
// unserialized, which is fine for a Builder used standalone.
func (b *Builder) SetFlushLock(l sync.Locker) {
	b.flushLock = l
}

// New constructs a Builder rooted at root, using enum to walk the workspace
// and sym to extract symbols from indexed files.
func New(adapter store.Adapter, enum workspace.Enumerator, sym symbols.Provider, root string, excludes []string, caseSensitive bool) *Builder {
	return &Builder{
		adapter:       adapter,
		enumerator:    enum,
		symbols:       sym,
		root:          root,
		excludes:      excludes,
		caseSensitive: caseSensitive,
		pending:       make(map[string]workspace.EventKind),
	}
}

// Refresh drops every item and posting, then performs a fresh full build.
// Callers observe a brief unavailability window, per spec §4.5.
func (b *Builder) Refresh(ctx context.Context, onProgress ProgressFunc) error {
	if err := b.adapter.Clear(ctx); err != nil {
		return err
	}
	return b.Build(ctx, onProgress)
}

// Build performs a full initial index: every file the enumerator yields,
// followed by every symbol the symbol provider reports, grouped under
// their enclosing file item. Cancellable via ctx; on cancellation the
// outer transaction is rolled back.
func (b *Builder) Build(ctx context.Context, onProgress ProgressFunc) (err error) {
	if err := b.adapter.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = b.adapter.Rollback(ctx)
		}
	}()

	files, err := b.enumerator.Enumerate(ctx, b.root, b.excludes)
	if err != nil {
		return err
	}

	contents := make(map[string]string)
	fileIDs := make(map[string]int64)
	indexed := 0

	for relPath := range files {
		select {
		case <-ctx.Done():
			return ErrCancelled
		default:
		}

		content, ok, readErr := workspace.ReadFile(filepath.Join(b.root, relPath))
		if readErr != nil || !ok {
			continue
		}
		contents[relPath] = content

		base, _ := workspace.SplitPath(relPath)
		id, addErr := b.adapter.AddItem(ctx, store.Item{
			Path: relPath,
			Name: base,
			Kind: store.KindFile,
		})
		if addErr != nil {
			continue
		}
		fileIDs[relPath] = id

		if err := b.indexText(ctx, id, base+" "+relPath); err != nil {
			return err
		}

		indexed++
		if indexed%progressInterval == 0 {
			if onProgress != nil {
				onProgress(indexed)
			}
			runtime.Gosched()
		}
	}

	if b.symbols != nil {
		syms, symErr := b.symbols.Symbols(contents)
		if symErr == nil {
			if err := b.indexSymbols(ctx, syms, fileIDs); err != nil {
				return err
			}
		}
	}

	if onProgress != nil {
		onProgress(indexed)
	}

	return b.adapter.Commit(ctx)
}

func (b *Builder) indexSymbols(ctx context.Context, syms []symbols.Symbol, fileIDs map[string]int64) error {
	for _, sym := range syms {
		parentID, ok := fileIDs[sym.Path]
		if !ok {
			continue
		}
		parent := parentID

		id, err := b.adapter.AddItem(ctx, store.Item{
			Path:     sym.Path + "#" + sym.Name + ":" + string(sym.Kind),
			Name:     sym.Name,
			Kind:     convertKind(sym.Kind),
			ParentID: &parent,
			Metadata: store.Metadata{
				Container: sym.Container,
				RangeLo:   sym.RangeLo,
				RangeHi:   sym.RangeHi,
			},
		})
		if err != nil {
			continue
		}

		base, _ := workspace.SplitPath(sym.Path)
		if err := b.indexText(ctx, id, sym.Name+" "+sym.Container+" "+base); err != nil {
			return err
		}
	}
	return nil
}

// indexText normalizes text into trigram and token postings for itemID.
func (b *Builder) indexText(ctx context.Context, itemID int64, text string) error {
	trigrams := textindex.Trigrams(text, b.caseSensitive)
	if len(trigrams) > 0 {
		postings := make([]store.Posting, len(trigrams))
		for i, tg := range trigrams {
			postings[i] = store.Posting{Term: tg.Text, ItemID: itemID, Position: tg.Position}
		}
		if err := b.adapter.AddTrigrams(ctx, postings); err != nil {
			return err
		}
	}

	tokens := textindex.Tokens(text)
	if len(tokens) > 0 {
		postings := make([]store.Posting, len(tokens))
		for i, tok := range tokens {
			postings[i] = store.Posting{
				Term:     textindex.Fold(tok.Text, b.caseSensitive),
				ItemID:   itemID,
				Position: tok.Position,
			}
		}
		if err := b.adapter.AddTokens(ctx, postings); err != nil {
			return err
		}
	}
	return nil
}

func convertKind(k symbols.Kind) store.Kind {
	switch k {
	case symbols.KindFunction, symbols.KindMacro:
		return store.KindFunction
	case symbols.KindClass, symbols.KindType:
		return store.KindClass
	case symbols.KindInterface, symbols.KindTrait:
		return store.KindInterface
	case symbols.KindEnum:
		return store.KindEnum
	case symbols.KindConst, symbols.KindVar:
		return store.KindVariable
	case symbols.KindModule:
		return store.KindNamespace
	default:
		return store.KindVariable
	}
}

// Watch starts consuming file-change events from notifier and reindexing
// incrementally, coalescing rapid successive events into a 1-second
// debounced batch per spec §4.5.
func (b *Builder) Watch(ctx context.Context, notifier workspace.Notifier) error {
	events, err := notifier.Start(ctx, b.root, b.excludes)
	if err != nil {
		return err
	}

	b.closed = make(chan struct{})
	go b.watchLoop(ctx, events)
	return nil
}

func (b *Builder) watchLoop(ctx context.Context, events <-chan workspace.Event) {
	defer close(b.closed)
	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			b.recordPending(ev)
		case <-ticker.C:
			b.flushPending(ctx)
		}
	}
}

// Done is closed once Watch's background loop has exited.
func (b *Builder) Done() <-chan struct{} {
	return b.closed
}

func (b *Builder) recordPending(ev workspace.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, exists := b.pending[ev.Path]
	if !exists {
		b.pending[ev.Path] = ev.Kind
		return
	}
	b.pending[ev.Path] = coalesce(prev, ev.Kind)
}

// coalesce collapses a pending op with a newly observed one: a
// create-then-delete becomes delete, modify overwrites modify, and a
// modify following an uncommitted create leaves the pending op as create
// since the item does not exist in the store yet.
func coalesce(prev, next workspace.EventKind) workspace.EventKind {
	switch next {
	case workspace.EventDelete:
		return workspace.EventDelete
	case workspace.EventModify:
		if prev == workspace.EventCreate {
			return workspace.EventCreate
		}
		return workspace.EventModify
	default:
		return next
	}
}

// flushPending applies the coalesced pending ops in a single transaction.
func (b *Builder) flushPending(ctx context.Context) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make(map[string]workspace.EventKind)
	b.mu.Unlock()

	if b.flushLock != nil {
		b.flushLock.Lock()
		defer b.flushLock.Unlock()
	}

	if err := b.adapter.Begin(ctx); err != nil {
		return
	}

	for relPath, kind := range batch {
		switch kind {
		case workspace.EventCreate, workspace.EventModify:
			_ = b.upsertFile(ctx, relPath)
		case workspace.EventDelete:
			_ = b.deleteFile(ctx, relPath)
		}
	}

	_ = b.adapter.Commit(ctx)
}

// upsertFile re-indexes a single file: insert if absent, else purge and
// re-derive its postings and symbol children.
func (b *Builder) upsertFile(ctx context.Context, relPath string) error {
	existing, err := b.adapter.GetItemByPath(ctx, relPath)
	if err != nil {
		return err
	}

	content, ok, readErr := workspace.ReadFile(filepath.Join(b.root, relPath))
	if readErr != nil || !ok {
		if existing != nil {
			return b.deleteFile(ctx, relPath)
		}
		return nil
	}

	base, _ := workspace.SplitPath(relPath)
	var fileID int64

	if existing != nil {
		fileID = existing.ID
		if err := b.adapter.RemoveTrigrams(ctx, fileID); err != nil {
			return err
		}
		if err := b.adapter.RemoveTokens(ctx, fileID); err != nil {
			return err
		}
		if err := b.removeSymbolChildren(ctx, fileID); err != nil {
			return err
		}
	} else {
		id, addErr := b.adapter.AddItem(ctx, store.Item{Path: relPath, Name: base, Kind: store.KindFile})
		if addErr != nil {
			return addErr
		}
		fileID = id
	}

	if err := b.indexText(ctx, fileID, base+" "+relPath); err != nil {
		return err
	}

	if b.symbols == nil {
		return nil
	}
	syms, symErr := b.symbols.Symbols(map[string]string{relPath: content})
	if symErr != nil {
		return nil
	}
	return b.indexSymbols(ctx, syms, map[string]int64{relPath: fileID})
}

// removeSymbolChildren deletes every existing symbol item rooted at
// parentID, a full scan acceptable here since it is driven by a single
// file's reindex, not a hot query path (the same tolerance spec §4.3
// grants per-item posting removal).
func (b *Builder) removeSymbolChildren(ctx context.Context, parentID int64) error {
	items, err := b.adapter.AllItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.ParentID != nil && *item.ParentID == parentID {
			if err := b.adapter.DeleteItem(ctx, item.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) deleteFile(ctx context.Context, relPath string) error {
	existing, err := b.adapter.GetItemByPath(ctx, relPath)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return b.adapter.DeleteItem(ctx, existing.ID)
}
