package store

import (
	"context"
	"sync"
	"time"
)

const (
	trigramShardCount = 65536
	tokenShardCount   = 256
)

// postingSet maps a term to the set of item ids carrying a posting for it.
type postingSet map[string]map[int64]struct{}

// MemoryStore is the sharded in-memory Adapter implementation: the inverted
// indexes are partitioned into fixed-size arrays of sub-maps keyed by the
// leading code units of the term, so no single map ever approaches a
// runtime's per-container size ceiling.
type MemoryStore struct {
	mu sync.RWMutex

	items      map[int64]*Item
	byPath     map[string]int64
	children   map[int64]map[int64]struct{}
	nextID     int64

	trigramShards [trigramShardCount]postingSet
	tokenShards   [tokenShardCount]postingSet

	trigramTermShard map[string]int
	tokenTermShard   map[string]int

	activeTrigramShards int
	activeTokenShards   int

	lastUpdated time.Time
	initialized bool
}

// NewMemoryStore constructs an empty sharded in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:            make(map[int64]*Item),
		byPath:           make(map[string]int64),
		children:         make(map[int64]map[int64]struct{}),
		trigramTermShard: make(map[string]int),
		tokenTermShard:   make(map[string]int),
	}
}

func shardIndexTrigram(term string) int {
	switch len(term) {
	case 0:
		return 0
	case 1:
		return int(term[0]) << 8
	default:
		return (int(term[0]) << 8) | int(term[1])
	}
}

func shardIndexToken(term string) int {
	if len(term) == 0 {
		return 0
	}
	return int(term[0])
}

// Initialize must be called once before any other op; idempotent on repeat.
func (m *MemoryStore) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

// Clear drops every item and posting. The in-memory store has no rollback
// semantics, so there is no transaction to roll back first.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[int64]*Item)
	m.byPath = make(map[string]int64)
	m.children = make(map[int64]map[int64]struct{})
	m.trigramShards = [trigramShardCount]postingSet{}
	m.tokenShards = [tokenShardCount]postingSet{}
	m.trigramTermShard = make(map[string]int)
	m.tokenTermShard = make(map[string]int)
	m.activeTrigramShards = 0
	m.activeTokenShards = 0
	m.lastUpdated = time.Now()
	return nil
}

// AddItem inserts item, assigning and returning a new id.
func (m *MemoryStore) AddItem(ctx context.Context, item Item) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byPath[item.Path]; exists {
		return 0, newErr("AddItem", KindDuplicatePath, nil)
	}

	m.nextID++
	id := m.nextID
	stored := item
	stored.ID = id
	m.items[id] = &stored
	m.byPath[item.Path] = id
	if item.ParentID != nil {
		if m.children[*item.ParentID] == nil {
			m.children[*item.ParentID] = make(map[int64]struct{})
		}
		m.children[*item.ParentID][id] = struct{}{}
	}
	m.lastUpdated = time.Now()
	return id, nil
}

// UpdateItem applies a partial update to an existing item.
func (m *MemoryStore) UpdateItem(ctx context.Context, id int64, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return newErr("UpdateItem", KindNotFound, nil)
	}

	if patch.Path != nil && *patch.Path != item.Path {
		if _, exists := m.byPath[*patch.Path]; exists {
			return newErr("UpdateItem", KindDuplicatePath, nil)
		}
		delete(m.byPath, item.Path)
		item.Path = *patch.Path
		m.byPath[item.Path] = id
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Kind != nil {
		item.Kind = *patch.Kind
	}
	if patch.ParentID != nil {
		if item.ParentID != nil {
			if siblings := m.children[*item.ParentID]; siblings != nil {
				delete(siblings, id)
			}
		}
		item.ParentID = *patch.ParentID
		if item.ParentID != nil {
			if m.children[*item.ParentID] == nil {
				m.children[*item.ParentID] = make(map[int64]struct{})
			}
			m.children[*item.ParentID][id] = struct{}{}
		}
	}
	if patch.Metadata != nil {
		item.Metadata = *patch.Metadata
	}
	m.lastUpdated = time.Now()
	return nil
}

// DeleteItem removes item id and cascades to its children and postings.
func (m *MemoryStore) DeleteItem(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteItemLocked(id)
}

func (m *MemoryStore) deleteItemLocked(id int64) error {
	item, ok := m.items[id]
	if !ok {
		return newErr("DeleteItem", KindNotFound, nil)
	}

	for childID := range m.children[id] {
		_ = m.deleteItemLocked(childID)
	}
	delete(m.children, id)

	if item.ParentID != nil {
		if siblings := m.children[*item.ParentID]; siblings != nil {
			delete(siblings, id)
		}
	}

	m.removeTrigramsLocked(id)
	m.removeTokensLocked(id)
	delete(m.byPath, item.Path)
	delete(m.items, id)
	m.lastUpdated = time.Now()
	return nil
}

// GetItem returns item id, or nil if absent.
func (m *MemoryStore) GetItem(ctx context.Context, id int64) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	clone := *item
	return &clone, nil
}

// GetItemByPath returns the item at path, or nil if absent.
func (m *MemoryStore) GetItemByPath(ctx context.Context, path string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPath[path]
	if !ok {
		return nil, nil
	}
	clone := *m.items[id]
	return &clone, nil
}

// AddTrigrams bulk-inserts trigram postings, silently ignoring duplicates.
func (m *MemoryStore) AddTrigrams(ctx context.Context, postings []Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range postings {
		shardIdx := shardIndexTrigram(p.Term)
		shard := m.trigramShards[shardIdx]
		if shard == nil {
			shard = make(postingSet)
			m.trigramShards[shardIdx] = shard
			m.activeTrigramShards++
		}
		ids, ok := shard[p.Term]
		if !ok {
			ids = make(map[int64]struct{})
			shard[p.Term] = ids
			m.trigramTermShard[p.Term] = shardIdx
		}
		ids[p.ItemID] = struct{}{}
	}
	m.lastUpdated = time.Now()
	return nil
}

// RemoveTrigrams removes all trigram postings for itemID.
func (m *MemoryStore) RemoveTrigrams(ctx context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeTrigramsLocked(itemID)
	m.lastUpdated = time.Now()
	return nil
}

func (m *MemoryStore) removeTrigramsLocked(itemID int64) {
	for i := range m.trigramShards {
		shard := m.trigramShards[i]
		if shard == nil {
			continue
		}
		for term, ids := range shard {
			delete(ids, itemID)
			if len(ids) == 0 {
				delete(shard, term)
				delete(m.trigramTermShard, term)
			}
		}
		if len(shard) == 0 {
			m.trigramShards[i] = nil
			m.activeTrigramShards--
		}
	}
}

// SearchTrigrams returns item_id -> count of distinct query terms matched.
func (m *MemoryStore) SearchTrigrams(ctx context.Context, terms []string) (map[int64]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchLocked(terms, m.trigramShards[:], shardIndexTrigram), nil
}

// AddTokens bulk-inserts token postings, silently ignoring duplicates.
func (m *MemoryStore) AddTokens(ctx context.Context, postings []Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range postings {
		shardIdx := shardIndexToken(p.Term)
		shard := m.tokenShards[shardIdx]
		if shard == nil {
			shard = make(postingSet)
			m.tokenShards[shardIdx] = shard
			m.activeTokenShards++
		}
		ids, ok := shard[p.Term]
		if !ok {
			ids = make(map[int64]struct{})
			shard[p.Term] = ids
			m.tokenTermShard[p.Term] = shardIdx
		}
		ids[p.ItemID] = struct{}{}
	}
	m.lastUpdated = time.Now()
	return nil
}

// RemoveTokens removes all token postings for itemID.
func (m *MemoryStore) RemoveTokens(ctx context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeTokensLocked(itemID)
	m.lastUpdated = time.Now()
	return nil
}

func (m *MemoryStore) removeTokensLocked(itemID int64) {
	for i := range m.tokenShards {
		shard := m.tokenShards[i]
		if shard == nil {
			continue
		}
		for term, ids := range shard {
			delete(ids, itemID)
			if len(ids) == 0 {
				delete(shard, term)
				delete(m.tokenTermShard, term)
			}
		}
		if len(shard) == 0 {
			m.tokenShards[i] = nil
			m.activeTokenShards--
		}
	}
}

// SearchTokens returns item_id -> count of distinct query terms matched.
func (m *MemoryStore) SearchTokens(ctx context.Context, terms []string) (map[int64]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchLocked(terms, m.tokenShards[:], shardIndexToken), nil
}

// searchLocked sums, per distinct query term, the item ids with at least
// one posting under that term. Duplicates in terms do not inflate the count.
func (m *MemoryStore) searchLocked(terms []string, shards []postingSet, shardOf func(string) int) map[int64]int {
	counts := make(map[int64]int)
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		shard := shards[shardOf(term)]
		if shard == nil {
			continue
		}
		ids, ok := shard[term]
		if !ok {
			continue
		}
		for id := range ids {
			counts[id]++
		}
	}
	return counts
}

// AllItems returns every live item, for the abbreviation-predicate fallback
// scan. A first-letter bucket index could narrow this; MemoryStore instead
// returns the full set and leaves narrowing to the caller, since the
// fallback itself must consider all items regardless.
func (m *MemoryStore) AllItems(ctx context.Context) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, *item)
	}
	return out, nil
}

// Begin, Commit, Rollback are no-ops: the in-memory store has no rollback
// semantics and documents that fact here rather than pretending otherwise.
func (m *MemoryStore) Begin(ctx context.Context) error    { return nil }
func (m *MemoryStore) Commit(ctx context.Context) error   { return nil }
func (m *MemoryStore) Rollback(ctx context.Context) error { return nil }

// Stats returns totals plus last-updated.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Items:            len(m.items),
		DistinctTrigrams: len(m.trigramTermShard),
		DistinctTokens:   len(m.tokenTermShard),
		LastUpdated:      m.lastUpdated,
	}, nil
}

// Close releases no resources; the in-memory store owns nothing external.
func (m *MemoryStore) Close() error { return nil }

// ActiveShardCounts exposes the observability counters spec §4.3 calls
// for: active_trigram_shards, active_token_shards.
func (m *MemoryStore) ActiveShardCounts() (trigramShards, tokenShards int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeTrigramShards, m.activeTokenShards
}
