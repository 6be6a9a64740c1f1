// Package store implements the storage engine: one SQLite database holding
// content rows, their chunks, a vec0 vector virtual table keyed by chunk
// rowid, sessions, the blocklist, and the knowledge-graph queue.
//
// The engine is the only component that touches a database handle. All writes
// funnel through an internal mutex and a bounded busy/locked retry; vector
// writes additionally pair every virtual-table statement with an explicit
// sync-tracker entry because vec0 cannot carry triggers.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/gofrs/flock"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/webrecall/webrecall/internal/chunk"
	"github.com/webrecall/webrecall/internal/embed"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/validate"
)

func init() {
	// Registers vec0 on every new sqlite3 connection.
	sqlite_vec.Auto()
}

// Engine owns one database handle (disk or RAM incarnation) and serializes
// all writes to it.
type Engine struct {
	mu sync.Mutex

	db       *sql.DB
	path     string
	dims     int
	embedder embed.Embedder
	chunkOpt chunk.Options
	logger   *slog.Logger

	// trackVectors mirrors every vector write into sync_tracker.
	// Enabled only by the sync manager in RAM mode.
	trackVectors bool

	// onWrite fires after every committed write so the sync manager can
	// reset its idle clock.
	onWrite func()

	lock   *flock.Flock
	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithChunkOptions overrides the chunk window shape.
func WithChunkOptions(opt chunk.Options) Option {
	return func(e *Engine) { e.chunkOpt = opt }
}

// Open opens the on-disk database directly (disk mode). A flock guard file
// next to the database prevents a second process from opening it.
func Open(path string, embedder embed.Embedder, opts ...Option) (*Engine, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, werrors.New(werrors.ErrCodeStorageOpen,
			fmt.Sprintf("cannot create database directory %s", dir), err)
	}

	guard := flock.New(path + ".lock")
	locked, err := guard.TryLock()
	if err != nil {
		return nil, werrors.New(werrors.ErrCodeStorageOpen, "cannot acquire database lock", err)
	}
	if !locked {
		return nil, werrors.New(werrors.ErrCodeStorageOpen,
			fmt.Sprintf("database %s is in use by another process", path), nil)
	}

	db, err := openHandle(path, true)
	if err != nil {
		_ = guard.Unlock()
		return nil, err
	}

	e, err := NewWithDB(db, path, embedder, opts...)
	if err != nil {
		_ = db.Close()
		_ = guard.Unlock()
		return nil, err
	}
	e.lock = guard
	return e, nil
}

// OpenMemory opens a standalone in-memory engine. Used by tests and by
// callers that need a throwaway store; the sync manager builds its RAM
// incarnation through NewWithDB instead.
func OpenMemory(embedder embed.Embedder, opts ...Option) (*Engine, error) {
	db, err := openHandle(":memory:", false)
	if err != nil {
		return nil, err
	}
	e, err := NewWithDB(db, "", embedder, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// NewWithDB wraps an already-open handle. The sync manager uses this for the
// RAM incarnation. path is the disk file used for size reporting; it may be
// empty for pure in-memory engines.
func NewWithDB(db *sql.DB, path string, embedder embed.Embedder, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, werrors.New(werrors.ErrCodeStorageOpen, "embedder is required", nil)
	}

	e := &Engine{
		db:       db,
		path:     path,
		dims:     embedder.Dimensions(),
		embedder: embedder,
		chunkOpt: chunk.DefaultOptions(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := initSchema(context.Background(), db, e.dims); err != nil {
		return nil, werrors.Storage("schema initialization failed", err)
	}
	return e, nil
}

// OpenRawHandle opens a SQLite handle with the engine pragmas but no schema.
// The sync manager uses it for the disk mirror and the RAM working set.
func OpenRawHandle(path string, wal bool) (*sql.DB, error) {
	return openHandle(path, wal)
}

// InitSchema creates the full schema on an externally-owned handle.
func InitSchema(ctx context.Context, db *sql.DB, dims int) error {
	return initSchema(ctx, db, dims)
}

// openHandle opens a SQLite handle with the engine pragmas. WAL only applies
// to file-backed databases.
func openHandle(path string, wal bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, werrors.New(werrors.ErrCodeStorageOpen, "cannot open database", err)
	}

	// Single connection: SQLite is effectively single-writer, and for
	// :memory: a second connection would see a different database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	if wal {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, werrors.New(werrors.ErrCodeStorageOpen, "cannot set pragma", err)
		}
	}
	return db, nil
}

// EnableVectorTracking turns on explicit sync-tracker entries for vector
// writes. Called by the sync manager after it creates the tracker table.
func (e *Engine) EnableVectorTracking() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trackVectors = true
}

// SetOnWrite registers a hook fired after every committed write.
func (e *Engine) SetOnWrite(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onWrite = fn
}

// DB exposes the underlying handle for the sync manager's replay reads.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Dimensions returns the vector width of the index.
func (e *Engine) Dimensions() int {
	return e.dims
}

// Close closes the handle and releases the disk guard.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.db.Close()
	if e.lock != nil {
		_ = e.lock.Unlock()
	}
	return err
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// withWriteTx runs fn inside a transaction under the write mutex, retrying
// busy/locked errors with bounded exponential backoff. Everything else is
// fatal and rolls back.
func (e *Engine) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return werrors.Storage("engine is closed", nil)
	}

	err := werrors.Retry(ctx, werrors.StorageRetryConfig(), func() error {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return e.classify(err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return e.classify(err)
		}

		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()
			return e.classify(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if e.onWrite != nil {
		e.onWrite()
	}
	return nil
}

// classify wraps raw database errors into the retryable/fatal taxonomy.
func (e *Engine) classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*werrors.Error); ok {
		return err
	}
	if isBusy(err) {
		return werrors.Contention("database busy", err)
	}
	return werrors.Storage(err.Error(), err)
}

// trackVector records one virtual-table write in sync_tracker. Must be called
// inside the same transaction as the vector statement.
func (e *Engine) trackVector(tx *sql.Tx, rowid int64, op string) error {
	if !e.trackVectors {
		return nil
	}
	_, err := tx.Exec(
		`INSERT INTO sync_tracker (table_name, record_id, operation) VALUES (?, ?, ?)`,
		VectorTable, rowid, op)
	if err != nil {
		return fmt.Errorf("track vector %s rowid=%d: %w", op, rowid, err)
	}
	return nil
}

// deleteContentData removes all chunks and vectors of a content row inside
// tx. The virtual table only supports DELETE by rowid, so rowids are listed
// from the sibling chunk table first; each vector delete is tracked.
func (e *Engine) deleteContentData(tx *sql.Tx, contentID int64) error {
	rows, err := tx.Query(`SELECT id FROM content_chunks WHERE content_id = ?`, contentID)
	if err != nil {
		return err
	}
	var rowids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		rowids = append(rowids, id)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, rowid := range rowids {
		if _, err := tx.Exec(`DELETE FROM content_vectors WHERE rowid = ?`, rowid); err != nil {
			return fmt.Errorf("delete vector rowid=%d: %w", rowid, err)
		}
		if err := e.trackVector(tx, rowid, "DELETE"); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`DELETE FROM content_chunks WHERE content_id = ?`, contentID)
	return err
}

// upsertContentTx inserts or replaces the content row for params.URL inside
// tx. A URL collision deletes the prior row's chunks and vectors in the same
// transaction so readers never see the old and new sets mixed.
func (e *Engine) upsertContentTx(tx *sql.Tx, params UpsertParams) (int64, error) {
	var existing int64
	err := tx.QueryRow(`SELECT id FROM crawled_content WHERE url = ?`, params.URL).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(`
			INSERT INTO crawled_content (url, title, content, markdown, retention_policy, session_id, tags, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			params.URL, params.Title, params.Content, params.Content,
			params.Retention, nullable(params.SessionID), params.Tags, params.Metadata)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	case err != nil:
		return 0, err
	default:
		if err := e.deleteContentData(tx, existing); err != nil {
			return 0, err
		}
		_, err := tx.Exec(`
			UPDATE crawled_content
			SET title = ?, content = ?, markdown = ?, crawled_at = CURRENT_TIMESTAMP,
			    retention_policy = ?, session_id = ?, tags = ?, metadata = ?
			WHERE id = ?`,
			params.Title, params.Content, params.Content, params.Retention,
			nullable(params.SessionID), params.Tags, params.Metadata, existing)
		return existing, err
	}
}

// UpsertContent inserts or replaces the content row for params.URL.
func (e *Engine) UpsertContent(ctx context.Context, params UpsertParams) (int64, error) {
	if params.Metadata == "" {
		params.Metadata = "{}"
	}

	var contentID int64
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		contentID, err = e.upsertContentTx(tx, params)
		return err
	})
	if err != nil {
		return 0, err
	}
	return contentID, nil
}

// insertChunkRowsTx writes chunk rows and their vectors inside tx, pairing
// every vector insert with a sync-tracker entry.
func (e *Engine) insertChunkRowsTx(tx *sql.Tx, contentID int64, chunks []chunk.Chunk, vectors [][]float32) error {
	for i, c := range chunks {
		res, err := tx.Exec(`
			INSERT INTO content_chunks (content_id, chunk_index, chunk_text, char_start, char_end, word_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			contentID, c.Index, c.Text, c.CharStart, c.CharEnd, c.WordCount)
		if err != nil {
			return err
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return err
		}

		blob, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return fmt.Errorf("serialize vector for chunk %d: %w", c.Index, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO content_vectors (rowid, embedding, content_id) VALUES (?, ?, ?)`,
			rowid, blob, contentID); err != nil {
			return fmt.Errorf("insert vector rowid=%d: %w", rowid, err)
		}
		if err := e.trackVector(tx, rowid, "INSERT"); err != nil {
			return err
		}
	}
	return nil
}

// embedChunks chunks cleaned text, filters the windows, and embeds the
// survivors. The network call happens here, before any transaction opens.
func (e *Engine) embedChunks(ctx context.Context, cleaned string) (raw, kept []chunk.Chunk, vectors [][]float32, err error) {
	raw = chunk.Split(cleaned, e.chunkOpt)
	kept = chunk.Filter(raw)
	if len(kept) == 0 {
		return raw, kept, nil, nil
	}

	texts := make([]string, len(kept))
	for i, c := range kept {
		texts[i] = c.Text
	}
	vectors, err = e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(vectors) != len(kept) {
		return nil, nil, nil, werrors.Embed(
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(kept)), nil)
	}
	return raw, kept, vectors, nil
}

// StoreContent is the ingest write path: it chunks and embeds params.Content
// first, then upserts the content row and replaces its chunks and vectors in
// one transaction. An embed failure leaves the previously stored version
// fully intact. Returns the content id, the raw chunk count, and the number
// kept after filtering.
func (e *Engine) StoreContent(ctx context.Context, params UpsertParams) (int64, int, int, error) {
	if params.Metadata == "" {
		params.Metadata = "{}"
	}

	raw, kept, vectors, err := e.embedChunks(ctx, params.Content)
	if err != nil {
		return 0, 0, 0, err
	}

	var contentID int64
	err = e.withWriteTx(ctx, func(tx *sql.Tx) error {
		id, err := e.upsertContentTx(tx, params)
		if err != nil {
			return err
		}
		contentID = id
		return e.insertChunkRowsTx(tx, id, kept, vectors)
	})
	if err != nil {
		return 0, 0, 0, err
	}

	e.logger.Debug("content stored",
		slog.Int64("content_id", contentID),
		slog.Int("chunks", len(raw)),
		slog.Int("kept", len(kept)))
	return contentID, len(raw), len(kept), nil
}

// GenerateAndStoreVectors regenerates the chunk and vector rows for an
// existing content id from its cleaned text. Returns the raw chunk count and
// the number kept after filtering.
func (e *Engine) GenerateAndStoreVectors(ctx context.Context, contentID int64, cleaned string) (int, int, error) {
	raw, kept, vectors, err := e.embedChunks(ctx, cleaned)
	if err != nil {
		return 0, 0, err
	}
	if len(kept) == 0 {
		return 0, 0, nil
	}

	err = e.withWriteTx(ctx, func(tx *sql.Tx) error {
		// Idempotent: clears any rows left by a prior ingest of this id.
		if err := e.deleteContentData(tx, contentID); err != nil {
			return err
		}
		return e.insertChunkRowsTx(tx, contentID, kept, vectors)
	})
	if err != nil {
		return 0, 0, err
	}

	e.logger.Debug("vectors stored",
		slog.Int64("content_id", contentID),
		slog.Int("chunks", len(raw)),
		slog.Int("kept", len(kept)))
	return len(raw), len(kept), nil
}

// ForgetURL deletes a content row and all derived data. Returns the number
// of content rows removed (0 or 1).
func (e *Engine) ForgetURL(ctx context.Context, rawURL string) (int64, error) {
	var removed int64
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRow(`SELECT id FROM crawled_content WHERE url = ?`, rawURL).Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if err := e.deleteContentRow(tx, id); err != nil {
			return err
		}
		removed = 1
		return nil
	})
	return removed, err
}

// deleteContentRow removes one content row plus chunks, vectors, and queue
// rows inside tx.
func (e *Engine) deleteContentRow(tx *sql.Tx, id int64) error {
	if err := e.deleteContentData(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM kg_processing_queue WHERE content_id = ?`, id); err != nil {
		return err
	}
	_, err := tx.Exec(`DELETE FROM crawled_content WHERE id = ?`, id)
	return err
}

// ClearSession deletes every session_only row of the given session. Returns
// the number of content rows removed.
func (e *Engine) ClearSession(ctx context.Context, sessionID string) (int64, error) {
	var removed int64
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		ids, err := collectIDs(tx,
			`SELECT id FROM crawled_content WHERE session_id = ? AND retention_policy = ?`,
			sessionID, validate.RetentionSessionOnly)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := e.deleteContentRow(tx, id); err != nil {
				return err
			}
		}
		removed = int64(len(ids))
		return nil
	})
	return removed, err
}

// SweepExpired deletes N_days rows older than their N days. Invoked at
// startup and from the periodic sync tick. Returns the number of rows
// removed.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	type expiring struct {
		id        int64
		retention string
		crawledAt time.Time
	}

	var removed int64
	err := e.withWriteTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.Query(`
			SELECT id, retention_policy, crawled_at FROM crawled_content
			WHERE retention_policy NOT IN ('permanent', 'session_only')`)
		if err != nil {
			return err
		}
		var candidates []expiring
		for rows.Next() {
			var c expiring
			if err := rows.Scan(&c.id, &c.retention, &c.crawledAt); err != nil {
				_ = rows.Close()
				return err
			}
			candidates = append(candidates, c)
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, c := range candidates {
			days, ok := retentionDays(c.retention)
			if !ok {
				continue
			}
			if now.Sub(c.crawledAt) > time.Duration(days)*24*time.Hour {
				if err := e.deleteContentRow(tx, c.id); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// retentionDays parses "N_days" tokens.
func retentionDays(retention string) (int, bool) {
	suffix := "_days"
	if !strings.HasSuffix(retention, suffix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(retention, suffix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// RegisterSession records the process session row.
func (e *Engine) RegisterSession(ctx context.Context, sessionID string) error {
	return e.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO sessions (session_id) VALUES (?)`, sessionID)
		return err
	})
}

// ListContent returns content rows, optionally filtered by an exact
// retention policy match, newest first.
func (e *Engine) ListContent(ctx context.Context, filter string, limit, offset int) ([]ContentRow, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, url, title, crawled_at, retention_policy, COALESCE(session_id, ''), tags
		FROM crawled_content`
	args := []any{}
	if filter != "" {
		query += ` WHERE retention_policy = ?`
		args = append(args, filter)
	}
	query += ` ORDER BY crawled_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, werrors.Storage("list content failed", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ContentRow
	for rows.Next() {
		var r ContentRow
		if err := rows.Scan(&r.ID, &r.URL, &r.Title, &r.CrawledAt, &r.Retention, &r.SessionID, &r.Tags); err != nil {
			return nil, werrors.Storage("scan content row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetContentByURL fetches one content row including its cleaned text.
func (e *Engine) GetContentByURL(ctx context.Context, rawURL string) (*ContentRow, error) {
	var r ContentRow
	err := e.db.QueryRowContext(ctx, `
		SELECT id, url, title, content, crawled_at, retention_policy, COALESCE(session_id, ''), tags, metadata
		FROM crawled_content WHERE url = ?`, rawURL).
		Scan(&r.ID, &r.URL, &r.Title, &r.Content, &r.CrawledAt, &r.Retention, &r.SessionID, &r.Tags, &r.Metadata)
	if err == sql.ErrNoRows {
		return nil, werrors.NotFound(fmt.Sprintf("no content for url %s", rawURL))
	}
	if err != nil {
		return nil, werrors.Storage("get content failed", err)
	}
	return &r, nil
}

// ListDomains aggregates stored pages per domain, descending by count.
func (e *Engine) ListDomains(ctx context.Context) ([]DomainCount, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT url FROM crawled_content`)
	if err != nil {
		return nil, werrors.Storage("list domains failed", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, werrors.Storage("scan url", err)
		}
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			counts[strings.ToLower(u.Host)]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, werrors.Storage("list domains failed", err)
	}

	out := make([]DomainCount, 0, len(counts))
	for domain, n := range counts {
		out = append(out, DomainCount{Domain: domain, Pages: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pages != out[j].Pages {
			return out[i].Pages > out[j].Pages
		}
		return out[i].Domain < out[j].Domain
	})
	return out, nil
}

// Stats collects store-wide counters.
func (e *Engine) Stats(ctx context.Context) (*StatsSnapshot, error) {
	s := &StatsSnapshot{
		ByRetention:    make(map[string]int64),
		KGQueueByState: make(map[string]int64),
	}

	counts := map[string]*int64{
		"crawled_content": &s.ContentRows,
		"content_chunks":  &s.ChunkRows,
		"content_vectors": &s.VectorRows,
		"sessions":        &s.SessionRows,
		"blocked_domains": &s.BlockedRows,
	}
	for table, dst := range counts {
		if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(dst); err != nil {
			return nil, werrors.Storage(fmt.Sprintf("count %s failed", table), err)
		}
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT retention_policy, COUNT(*) FROM crawled_content GROUP BY retention_policy`)
	if err != nil {
		return nil, werrors.Storage("retention breakdown failed", err)
	}
	for rows.Next() {
		var policy string
		var n int64
		if err := rows.Scan(&policy, &n); err != nil {
			_ = rows.Close()
			return nil, werrors.Storage("scan retention breakdown", err)
		}
		s.ByRetention[policy] = n
	}
	_ = rows.Close()

	rows, err = e.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM kg_processing_queue GROUP BY status`)
	if err != nil {
		return nil, werrors.Storage("kg queue breakdown failed", err)
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			_ = rows.Close()
			return nil, werrors.Storage("scan kg breakdown", err)
		}
		s.KGQueueByState[status] = n
	}
	_ = rows.Close()

	if e.path != "" {
		if info, err := os.Stat(e.path); err == nil {
			s.DiskSizeBytes = info.Size()
		}
	}
	return s, nil
}

// EnqueueKG writes one knowledge-graph queue row for a content id.
func (e *Engine) EnqueueKG(ctx context.Context, contentID int64, status, skippedReason string) error {
	return e.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO kg_processing_queue (content_id, status, skipped_reason)
			VALUES (?, ?, ?)`,
			contentID, status, nullable(skippedReason))
		return err
	})
}

// collectIDs gathers int64 ids from a query inside tx.
func collectIDs(tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// nullable maps "" to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
