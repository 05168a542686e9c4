package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// defaultBatchSize is the Builder commit granularity when auto-commit is on
// and no explicit transaction has been started (spec §4.4, §6 batch_size).
const defaultBatchSize = 10000

// querier is implemented by both *sql.DB and *sql.Tx, letting every helper
// below run unmodified whether or not a transaction is open.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is the relational Adapter implementation: a single file with
// tables items/trigrams/tokens, WAL journaling, and periodic checkpointing
// standing in for the snapshot-to-disk the spec describes.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *slog.Logger

	batchSize int

	mu          sync.Mutex
	explicitTx  *sql.Tx
	implicitTx  *sql.Tx
	implicitOps int

	snapshotStop chan struct{}
	snapshotDone chan struct{}
}

// NewSQLiteStore opens (or creates) the database file at path.
func NewSQLiteStore(path string, batchSize int, log *slog.Logger) (*SQLiteStore, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, newErr("Open", KindIoError, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, newErr("Open", KindIoError, fmt.Errorf("%s: %w", pragma, err))
		}
	}

	return &SQLiteStore{
		db:        db,
		path:      path,
		log:       log,
		batchSize: batchSize,
	}, nil
}

// Initialize creates the schema idempotently; safe to call repeatedly.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return newErr("Initialize", KindSchemaError, err)
	}
	return nil
}

// Clear drops every item and posting, rolling back any open transaction
// first.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.rollbackLocked()
	s.mu.Unlock()

	for _, stmt := range []string{"DELETE FROM tokens", "DELETE FROM trigrams", "DELETE FROM items"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return newErr("Clear", KindIoError, err)
		}
	}
	return nil
}

func (s *SQLiteStore) rollbackLocked() {
	if s.implicitTx != nil {
		_ = s.implicitTx.Rollback()
		s.implicitTx = nil
		s.implicitOps = 0
	}
	if s.explicitTx != nil {
		_ = s.explicitTx.Rollback()
		s.explicitTx = nil
	}
}

// writer returns the querier write operations should use, opening or
// reusing an implicit auto-commit transaction when no explicit one is in
// progress, and flushing it every batchSize operations.
func (s *SQLiteStore) writer(ctx context.Context) (querier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.explicitTx != nil {
		return s.explicitTx, nil
	}

	if s.implicitTx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, newErr("writer", KindIoError, err)
		}
		s.implicitTx = tx
		s.implicitOps = 0
	}
	return s.implicitTx, nil
}

// afterWrite flushes the implicit batch once batchSize operations have
// accumulated since it was opened.
func (s *SQLiteStore) afterWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.explicitTx != nil || s.implicitTx == nil {
		return nil
	}
	s.implicitOps++
	if s.implicitOps < s.batchSize {
		return nil
	}
	err := s.implicitTx.Commit()
	s.implicitTx = nil
	s.implicitOps = 0
	if err != nil {
		return newErr("afterWrite", KindIoError, err)
	}
	return nil
}

func (s *SQLiteStore) reader() querier {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.explicitTx != nil {
		return s.explicitTx
	}
	if s.implicitTx != nil {
		return s.implicitTx
	}
	return s.db
}

// Begin starts a single-level transaction; a nested Begin while one is
// already open is a no-op warning, matching the contract's documented
// single-level semantics.
func (s *SQLiteStore) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.explicitTx != nil {
		s.log.Warn("nested transaction begin ignored")
		return nil
	}
	if s.implicitTx != nil {
		if err := s.implicitTx.Commit(); err != nil {
			return newErr("Begin", KindIoError, err)
		}
		s.implicitTx = nil
		s.implicitOps = 0
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newErr("Begin", KindIoError, err)
	}
	s.explicitTx = tx
	return nil
}

// Commit commits the open explicit transaction, if any.
func (s *SQLiteStore) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.explicitTx == nil {
		return nil
	}
	err := s.explicitTx.Commit()
	s.explicitTx = nil
	if err != nil {
		return newErr("Commit", KindIoError, err)
	}
	return nil
}

// Rollback rolls back the open explicit transaction, if any.
func (s *SQLiteStore) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.explicitTx == nil {
		return nil
	}
	err := s.explicitTx.Rollback()
	s.explicitTx = nil
	if err != nil {
		return newErr("Rollback", KindIoError, err)
	}
	return nil
}

// AddItem inserts item, assigning and returning a new id.
func (s *SQLiteStore) AddItem(ctx context.Context, item Item) (int64, error) {
	q, err := s.writer(ctx)
	if err != nil {
		return 0, err
	}

	meta, err := json.Marshal(item.Metadata)
	if err != nil {
		return 0, newErr("AddItem", KindSchemaError, err)
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO items (path, name, kind, parent_id, metadata) VALUES (?, ?, ?, ?, ?)`,
		item.Path, item.Name, string(item.Kind), nullableID(item.ParentID), string(meta))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, newErr("AddItem", KindDuplicatePath, err)
		}
		return 0, newErr("AddItem", KindIoError, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, newErr("AddItem", KindIoError, err)
	}
	if err := s.afterWrite(); err != nil {
		return 0, err
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// UpdateItem applies a partial update to an existing item.
func (s *SQLiteStore) UpdateItem(ctx context.Context, id int64, patch Patch) error {
	current, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return newErr("UpdateItem", KindNotFound, nil)
	}

	if patch.Path != nil {
		current.Path = *patch.Path
	}
	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Kind != nil {
		current.Kind = *patch.Kind
	}
	if patch.ParentID != nil {
		current.ParentID = *patch.ParentID
	}
	if patch.Metadata != nil {
		current.Metadata = *patch.Metadata
	}

	q, err := s.writer(ctx)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(current.Metadata)
	if err != nil {
		return newErr("UpdateItem", KindSchemaError, err)
	}
	_, err = q.ExecContext(ctx,
		`UPDATE items SET path = ?, name = ?, kind = ?, parent_id = ?, metadata = ? WHERE id = ?`,
		current.Path, current.Name, string(current.Kind), nullableID(current.ParentID), string(meta), id)
	if err != nil {
		if isUniqueViolation(err) {
			return newErr("UpdateItem", KindDuplicatePath, err)
		}
		return newErr("UpdateItem", KindIoError, err)
	}
	return s.afterWrite()
}

// DeleteItem removes item id; the schema's ON DELETE CASCADE purges its
// postings and child items.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id int64) error {
	q, err := s.writer(ctx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return newErr("DeleteItem", KindIoError, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return newErr("DeleteItem", KindIoError, err)
	}
	if n == 0 {
		return newErr("DeleteItem", KindNotFound, nil)
	}
	return s.afterWrite()
}

func scanItem(row *sql.Row) (*Item, error) {
	var item Item
	var parentID sql.NullInt64
	var kind, meta string
	if err := row.Scan(&item.ID, &item.Path, &item.Name, &kind, &parentID, &meta); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, newErr("scanItem", KindIoError, err)
	}
	item.Kind = Kind(kind)
	if parentID.Valid {
		id := parentID.Int64
		item.ParentID = &id
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &item.Metadata); err != nil {
			return nil, newErr("scanItem", KindSchemaError, err)
		}
	}
	return &item, nil
}

// GetItem returns item id, or nil if absent.
func (s *SQLiteStore) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.reader().QueryRowContext(ctx,
		`SELECT id, path, name, kind, parent_id, metadata FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// GetItemByPath returns the item at path, or nil if absent.
func (s *SQLiteStore) GetItemByPath(ctx context.Context, path string) (*Item, error) {
	row := s.reader().QueryRowContext(ctx,
		`SELECT id, path, name, kind, parent_id, metadata FROM items WHERE path = ?`, path)
	return scanItem(row)
}

// AddTrigrams bulk-inserts trigram postings, silently ignoring duplicates
// via INSERT OR IGNORE against the (trigram,item_id,position) primary key.
func (s *SQLiteStore) AddTrigrams(ctx context.Context, postings []Posting) error {
	return s.addPostings(ctx, "trigrams", "trigram", postings)
}

// AddTokens bulk-inserts token postings, silently ignoring duplicates.
func (s *SQLiteStore) AddTokens(ctx context.Context, postings []Posting) error {
	return s.addPostings(ctx, "tokens", "token", postings)
}

func (s *SQLiteStore) addPostings(ctx context.Context, table, column string, postings []Posting) error {
	if len(postings) == 0 {
		return nil
	}
	q, err := s.writer(ctx)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s, item_id, position) VALUES (?, ?, ?)`, table, column)
	for _, p := range postings {
		if _, err := q.ExecContext(ctx, stmt, p.Term, p.ItemID, p.Position); err != nil {
			return newErr("addPostings", KindIoError, err)
		}
	}
	return s.afterWrite()
}

// RemoveTrigrams removes all trigram postings for itemID.
func (s *SQLiteStore) RemoveTrigrams(ctx context.Context, itemID int64) error {
	return s.removePostings(ctx, "trigrams", itemID)
}

// RemoveTokens removes all token postings for itemID.
func (s *SQLiteStore) RemoveTokens(ctx context.Context, itemID int64) error {
	return s.removePostings(ctx, "tokens", itemID)
}

func (s *SQLiteStore) removePostings(ctx context.Context, table string, itemID int64) error {
	q, err := s.writer(ctx)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE item_id = ?`, table)
	if _, err := q.ExecContext(ctx, stmt, itemID); err != nil {
		return newErr("removePostings", KindIoError, err)
	}
	return s.afterWrite()
}

// SearchTrigrams performs the counted aggregation, additionally requiring
// every distinct query trigram to appear under a candidate (spec §4.4:
// "HAVING COUNT(DISTINCT trigram) = |query_trigrams|") to enforce
// all-must-appear substring recall.
func (s *SQLiteStore) SearchTrigrams(ctx context.Context, terms []string) (map[int64]int, error) {
	return s.searchCounted(ctx, "trigrams", "trigram", terms, true)
}

// SearchTokens performs the counted aggregation without the all-must-match
// filter, retaining per-item counts for fractional-match scoring.
func (s *SQLiteStore) SearchTokens(ctx context.Context, terms []string) (map[int64]int, error) {
	return s.searchCounted(ctx, "tokens", "token", terms, false)
}

func (s *SQLiteStore) searchCounted(ctx context.Context, table, column string, terms []string, requireAll bool) (map[int64]int, error) {
	distinct := dedupe(terms)
	if len(distinct) == 0 {
		return map[int64]int{}, nil
	}

	placeholders := strings.Repeat("?,", len(distinct))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(distinct)+1)
	for _, t := range distinct {
		args = append(args, t)
	}

	query := fmt.Sprintf(
		`SELECT item_id, COUNT(DISTINCT %s) FROM %s WHERE %s IN (%s) GROUP BY item_id`,
		column, table, column, placeholders)
	if requireAll {
		query += ` HAVING COUNT(DISTINCT ` + column + `) = ?`
		args = append(args, len(distinct))
	}

	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newErr("searchCounted", KindIoError, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]int)
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, newErr("searchCounted", KindIoError, err)
		}
		out[id] = count
	}
	return out, rows.Err()
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// AllItems returns every live item, for the abbreviation-predicate
// fallback scan.
func (s *SQLiteStore) AllItems(ctx context.Context) ([]Item, error) {
	rows, err := s.reader().QueryContext(ctx,
		`SELECT id, path, name, kind, parent_id, metadata FROM items`)
	if err != nil {
		return nil, newErr("AllItems", KindIoError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Item
	for rows.Next() {
		var item Item
		var parentID sql.NullInt64
		var kind, meta string
		if err := rows.Scan(&item.ID, &item.Path, &item.Name, &kind, &parentID, &meta); err != nil {
			return nil, newErr("AllItems", KindIoError, err)
		}
		item.Kind = Kind(kind)
		if parentID.Valid {
			id := parentID.Int64
			item.ParentID = &id
		}
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &item.Metadata)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Stats returns totals plus last-updated.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.reader().QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&stats.Items); err != nil {
		return Stats{}, newErr("Stats", KindIoError, err)
	}
	if err := s.reader().QueryRowContext(ctx, `SELECT COUNT(DISTINCT trigram) FROM trigrams`).Scan(&stats.DistinctTrigrams); err != nil {
		return Stats{}, newErr("Stats", KindIoError, err)
	}
	if err := s.reader().QueryRowContext(ctx, `SELECT COUNT(DISTINCT token) FROM tokens`).Scan(&stats.DistinctTokens); err != nil {
		return Stats{}, newErr("Stats", KindIoError, err)
	}
	stats.LastUpdated = time.Now()
	return stats, nil
}

// StartSnapshotLoop launches the background timer (default 5s) that
// checkpoints the WAL into the main database file on every tick, standing in for the spec's serialize-to-disk snapshot since the
// backing store here is always itself a file rather than an in-memory
// structure needing a separate serialization step.
func (s *SQLiteStore) StartSnapshotLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s.snapshotStop = make(chan struct{})
	s.snapshotDone = make(chan struct{})

	go func() {
		defer close(s.snapshotDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.snapshotStop:
				return
			case <-ticker.C:
				if _, err := s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
					s.log.Warn("snapshot checkpoint failed, will retry next tick", "error", err)
				}
			}
		}
	}()
}

// Close forces a final flush and closes the database.
func (s *SQLiteStore) Close() error {
	if s.snapshotStop != nil {
		close(s.snapshotStop)
		<-s.snapshotDone
	}

	s.mu.Lock()
	if s.implicitTx != nil {
		if err := s.implicitTx.Commit(); err != nil {
			s.log.Warn("final batch commit failed", "error", err)
		}
		s.implicitTx = nil
		s.implicitOps = 0
	}
	s.rollbackLocked()
	s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.log.Warn("final checkpoint failed", "error", err)
	}
	return s.db.Close()
}

var _ Adapter = (*SQLiteStore)(nil)
