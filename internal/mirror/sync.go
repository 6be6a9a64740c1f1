package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/store"
)

// trackedChange is one sync_tracker row.
type trackedChange struct {
	id       int64
	table    string
	recordID string
	op       string
}

// changeKey identifies one record across tracker rows.
type changeKey struct {
	table    string
	recordID string
}

// Sync replays tracked changes from memory to disk in one transaction and
// clears the consumed tracker rows on commit. Changes tracked while the sync
// runs stay in the tracker for the next pass.
func (m *Manager) Sync(ctx context.Context) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	start := time.Now()

	changes, maxID, err := m.readTracker(ctx)
	if err != nil {
		return m.recordFailure(werrors.Sync("read sync tracker", err))
	}
	if len(changes) == 0 {
		return nil
	}

	// Only the final operation per record matters: INSERT then DELETE is a
	// delete, any sequence ending in INSERT or UPDATE is an upsert.
	final := make(map[changeKey]string, len(changes))
	for _, c := range changes {
		final[changeKey{c.table, c.recordID}] = c.op
	}

	applied, err := m.replay(ctx, final)
	if err != nil {
		return m.recordFailure(err)
	}

	if _, err := m.mem.ExecContext(ctx, `DELETE FROM sync_tracker WHERE id <= ?`, maxID); err != nil {
		return m.recordFailure(werrors.Sync("clear sync tracker", err))
	}

	m.idleSyncDone.Store(true)

	elapsed := time.Since(start)
	m.statsMu.Lock()
	m.totalSyncs++
	m.recordsSynced += int64(applied)
	m.lastDuration = elapsed
	m.lastSyncAt = time.Now().UTC()
	m.statsMu.Unlock()

	m.logger.Info("sync completed",
		slog.Int("records", applied),
		slog.Duration("duration", elapsed))
	return nil
}

func (m *Manager) recordFailure(err error) error {
	m.statsMu.Lock()
	m.failedSyncs++
	m.statsMu.Unlock()
	return err
}

// readTracker loads all tracker rows in insertion order and the highest id
// seen, so rows tracked mid-sync survive the post-commit clear.
func (m *Manager) readTracker(ctx context.Context) ([]trackedChange, int64, error) {
	rows, err := m.mem.QueryContext(ctx,
		`SELECT id, table_name, record_id, operation FROM sync_tracker ORDER BY id`)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var changes []trackedChange
	var maxID int64
	for rows.Next() {
		var c trackedChange
		if err := rows.Scan(&c.id, &c.table, &c.recordID, &c.op); err != nil {
			return nil, 0, err
		}
		if c.id > maxID {
			maxID = c.id
		}
		changes = append(changes, c)
	}
	return changes, maxID, rows.Err()
}

// replay applies the reduced change set to disk inside one transaction:
// deletes first in reverse dependency order (children before parents), then
// upserts in forward order, vectors last.
func (m *Manager) replay(ctx context.Context, final map[changeKey]string) (int, error) {
	tx, err := m.disk.BeginTx(ctx, nil)
	if err != nil {
		return 0, werrors.Sync("begin disk transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	specs := store.TableSpecs()
	applied := 0

	// Vector deletes carry no dependencies; run them with the delete pass.
	for key, op := range final {
		if op == "DELETE" && key.table == store.VectorTable {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM content_vectors WHERE rowid = ?`, key.recordID); err != nil {
				return 0, werrors.Sync(fmt.Sprintf("delete vector rowid=%s", key.recordID), err)
			}
			applied++
		}
	}
	for i := len(specs) - 1; i >= 0; i-- {
		spec := specs[i]
		for key, op := range final {
			if op != "DELETE" || key.table != spec.Name {
				continue
			}
			stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, spec.Name, spec.PK)
			if _, err := tx.ExecContext(ctx, stmt, key.recordID); err != nil {
				return 0, werrors.Sync(fmt.Sprintf("delete %s %s", spec.Name, key.recordID), err)
			}
			applied++
		}
	}

	for _, spec := range specs {
		for key, op := range final {
			if op == "DELETE" || key.table != spec.Name {
				continue
			}
			n, err := m.upsertRow(ctx, tx, spec, key.recordID)
			if err != nil {
				return 0, err
			}
			applied += n
		}
	}
	for key, op := range final {
		if op == "DELETE" || key.table != store.VectorTable {
			continue
		}
		n, err := m.upsertVector(ctx, tx, key.recordID)
		if err != nil {
			return 0, err
		}
		applied += n
	}

	if err := tx.Commit(); err != nil {
		return 0, werrors.Sync("commit disk transaction", err)
	}
	return applied, nil
}

// upsertRow re-reads the current record from memory and writes it to disk
// with INSERT OR REPLACE. A record deleted since tracking is removed instead.
func (m *Manager) upsertRow(ctx context.Context, tx *sql.Tx, spec store.TableSpec, recordID string) (int, error) {
	cols := strings.Join(spec.Columns, ", ")
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, cols, spec.Name, spec.PK)

	values := make([]any, len(spec.Columns))
	dests := make([]any, len(spec.Columns))
	for i := range values {
		dests[i] = &values[i]
	}

	err := m.mem.QueryRowContext(ctx, query, recordID).Scan(dests...)
	if err == sql.ErrNoRows {
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, spec.Name, spec.PK)
		if _, err := tx.ExecContext(ctx, stmt, recordID); err != nil {
			return 0, werrors.Sync(fmt.Sprintf("delete vanished %s %s", spec.Name, recordID), err)
		}
		return 1, nil
	}
	if err != nil {
		return 0, werrors.Sync(fmt.Sprintf("read %s %s from memory", spec.Name, recordID), err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(spec.Columns)), ", ")
	stmt := fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`, spec.Name, cols, placeholders)
	if _, err := tx.ExecContext(ctx, stmt, values...); err != nil {
		return 0, werrors.Sync(fmt.Sprintf("replace %s %s", spec.Name, recordID), err)
	}
	return 1, nil
}

// upsertVector copies one vector row by rowid. vec0 has no REPLACE, so the
// disk row is deleted first.
func (m *Manager) upsertVector(ctx context.Context, tx *sql.Tx, recordID string) (int, error) {
	var embedding []byte
	var contentID int64
	err := m.mem.QueryRowContext(ctx,
		`SELECT embedding, content_id FROM content_vectors WHERE rowid = ?`, recordID).
		Scan(&embedding, &contentID)
	if err == sql.ErrNoRows {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM content_vectors WHERE rowid = ?`, recordID); err != nil {
			return 0, werrors.Sync(fmt.Sprintf("delete vanished vector %s", recordID), err)
		}
		return 1, nil
	}
	if err != nil {
		return 0, werrors.Sync(fmt.Sprintf("read vector %s from memory", recordID), err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM content_vectors WHERE rowid = ?`, recordID); err != nil {
		return 0, werrors.Sync(fmt.Sprintf("clear vector %s", recordID), err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO content_vectors (rowid, embedding, content_id) VALUES (?, ?, ?)`,
		recordID, embedding, contentID); err != nil {
		return 0, werrors.Sync(fmt.Sprintf("insert vector %s", recordID), err)
	}
	return 1, nil
}
