package store

import (
	"context"
	"database/sql"
	"fmt"
)

// TableSpec describes one regular mutable table for trigger creation and
// sync replay.
type TableSpec struct {
	Name    string
	PK      string
	Columns []string
}

// TableSpecs lists the regular mutable tables in dependency order: parents
// before children, so INSERT replays satisfy foreign keys and DELETE replays
// can run in reverse.
func TableSpecs() []TableSpec {
	return []TableSpec{
		{Name: "sessions", PK: "session_id", Columns: []string{"session_id", "created_at"}},
		{Name: "blocked_domains", PK: "id", Columns: []string{"id", "pattern", "description", "created_at"}},
		{Name: "crawled_content", PK: "id", Columns: []string{
			"id", "url", "title", "content", "markdown", "crawled_at",
			"retention_policy", "session_id", "tags", "metadata"}},
		{Name: "content_chunks", PK: "id", Columns: []string{
			"id", "content_id", "chunk_index", "chunk_text", "char_start",
			"char_end", "word_count", "kg_processed"}},
		{Name: "kg_processing_queue", PK: "id", Columns: []string{
			"id", "content_id", "status", "retry_count", "created_at",
			"updated_at", "error", "skipped_reason"}},
	}
}

// VectorTable is the vec0 virtual table name used in sync-tracker rows.
const VectorTable = "content_vectors"

const schemaContent = `
CREATE TABLE IF NOT EXISTS crawled_content (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	url              TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL DEFAULT '',
	content          TEXT NOT NULL DEFAULT '',
	markdown         TEXT NOT NULL DEFAULT '',
	crawled_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	retention_policy TEXT NOT NULL DEFAULT 'permanent',
	session_id       TEXT,
	tags             TEXT NOT NULL DEFAULT '',
	metadata         TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_crawled_content_url ON crawled_content(url);
CREATE INDEX IF NOT EXISTS idx_crawled_content_session ON crawled_content(session_id);
CREATE INDEX IF NOT EXISTS idx_crawled_content_retention ON crawled_content(retention_policy);
`

const schemaChunks = `
CREATE TABLE IF NOT EXISTS content_chunks (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	content_id   INTEGER NOT NULL REFERENCES crawled_content(id) ON DELETE CASCADE,
	chunk_index  INTEGER NOT NULL,
	chunk_text   TEXT NOT NULL,
	char_start   INTEGER NOT NULL,
	char_end     INTEGER NOT NULL,
	word_count   INTEGER NOT NULL,
	kg_processed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_content_chunks_content ON content_chunks(content_id);
`

const schemaSessions = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const schemaBlockedDomains = `
CREATE TABLE IF NOT EXISTS blocked_domains (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern     TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const schemaKGQueue = `
CREATE TABLE IF NOT EXISTS kg_processing_queue (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	content_id     INTEGER NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	error          TEXT,
	skipped_reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_kg_queue_status ON kg_processing_queue(status);
`

// initSchema creates every table. The vec0 virtual table width is fixed at
// creation; changing dimensions requires a fresh database.
func initSchema(ctx context.Context, db *sql.DB, dims int) error {
	stmts := []string{
		schemaContent,
		schemaChunks,
		schemaSessions,
		schemaBlockedDomains,
		schemaKGQueue,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS content_vectors USING vec0(
	embedding float[%d],
	content_id integer
)`, dims),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
