package store

// schemaDDL creates the three tables and their covering indexes (spec §4.4),
// idempotently: items, trigrams, tokens, plus secondary indexes on
// items(path), items(kind), trigrams(trigram), trigrams(item_id),
// tokens(token), tokens(item_id).
const schemaDDL = `
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	parent_id INTEGER REFERENCES items(id) ON DELETE CASCADE,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_items_path ON items(path);
CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id);

CREATE TABLE IF NOT EXISTS trigrams (
	trigram TEXT NOT NULL,
	item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	PRIMARY KEY (trigram, item_id, position)
);

CREATE INDEX IF NOT EXISTS idx_trigrams_trigram ON trigrams(trigram);
CREATE INDEX IF NOT EXISTS idx_trigrams_item ON trigrams(item_id);

CREATE TABLE IF NOT EXISTS tokens (
	token TEXT NOT NULL,
	item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	PRIMARY KEY (token, item_id, position)
);

CREATE INDEX IF NOT EXISTS idx_tokens_token ON tokens(token);
CREATE INDEX IF NOT EXISTS idx_tokens_item ON tokens(item_id);
`

// pragmas applied on open: write-ahead journaling, relaxed sync, foreign
// keys, and a memory-mapped cache sized to roughly 256 MiB.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA mmap_size=268435456",
}
