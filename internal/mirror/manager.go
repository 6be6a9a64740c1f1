// Package mirror keeps a RAM working set and a durable disk file coherent
// with differential sync. Writes land in :memory: where triggers (and, for
// the vector virtual table, explicit engine calls) record every change in a
// sync_tracker table; an idle monitor and a periodic monitor replay tracked
// changes to the disk mirror and clear the tracker.
package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/embed"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/store"
)

const trackerSchema = `
CREATE TABLE IF NOT EXISTS sync_tracker (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	operation  TEXT NOT NULL,
	tracked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Metrics is a snapshot of sync health.
type Metrics struct {
	TotalSyncs    int64         `json:"total_syncs"`
	FailedSyncs   int64         `json:"failed_syncs"`
	RecordsSynced int64         `json:"records_synced"`
	LastDuration  time.Duration `json:"last_duration_ns"`
	LastSyncAt    time.Time     `json:"last_sync_at"`
	Pending       int64         `json:"pending_changes"`
	SuccessRate   float64       `json:"success_rate"`
}

// Manager owns both database incarnations. The disk handle is touched only
// during a sync, under the sync mutex.
type Manager struct {
	mem    *sql.DB
	disk   *sql.DB
	engine *store.Engine
	path   string
	cfg    config.SyncConfig
	logger *slog.Logger
	lock   *flock.Flock

	// syncMu guards the disk handle: only one sync at a time.
	syncMu sync.Mutex

	lastWrite    atomic.Int64 // unix nanos of the last tracked write
	idleSyncDone atomic.Bool

	statsMu       sync.Mutex
	totalSyncs    int64
	failedSyncs   int64
	recordsSynced int64
	lastDuration  time.Duration
	lastSyncAt    time.Time

	stop    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Open initializes RAM mode: open the disk file, snapshot it into memory,
// install the tracker and triggers, build the engine over the RAM handle,
// and start the idle and periodic monitors.
func Open(path string, embedder embed.Embedder, cfg config.SyncConfig, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, werrors.New(werrors.ErrCodeStorageOpen,
			fmt.Sprintf("cannot create database directory %s", filepath.Dir(path)), err)
	}

	m := &Manager{
		path:   path,
		cfg:    cfg,
		logger: slog.Default(),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
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
	m.lock = guard

	dims := embedder.Dimensions()
	ctx := context.Background()

	fail := func(err error) (*Manager, error) {
		if m.mem != nil {
			_ = m.mem.Close()
		}
		if m.disk != nil {
			_ = m.disk.Close()
		}
		_ = guard.Unlock()
		return nil, err
	}

	if m.disk, err = store.OpenRawHandle(path, true); err != nil {
		return fail(err)
	}
	if err := store.InitSchema(ctx, m.disk, dims); err != nil {
		return fail(werrors.Storage("disk schema initialization failed", err))
	}

	if m.mem, err = store.OpenRawHandle(":memory:", false); err != nil {
		return fail(err)
	}
	if err := store.InitSchema(ctx, m.mem, dims); err != nil {
		return fail(werrors.Storage("memory schema initialization failed", err))
	}

	if err := m.snapshot(ctx); err != nil {
		return fail(werrors.Storage("snapshot into memory failed", err))
	}
	if err := m.installTracker(ctx); err != nil {
		return fail(werrors.Storage("tracker installation failed", err))
	}

	engine, err := store.NewWithDB(m.mem, path, embedder, store.WithLogger(m.logger))
	if err != nil {
		return fail(err)
	}
	m.engine = engine
	engine.EnableVectorTracking()
	engine.SetOnWrite(m.noteWrite)

	m.lastWrite.Store(time.Now().UnixNano())
	m.idleSyncDone.Store(true)

	m.wg.Add(2)
	go m.idleMonitor()
	go m.periodicMonitor()

	m.logger.Info("memory database initialized",
		slog.String("disk_path", path),
		slog.Duration("idle_threshold", cfg.IdleThreshold),
		slog.Duration("periodic_interval", cfg.PeriodicInterval))
	return m, nil
}

// Engine returns the storage engine bound to the RAM working set.
func (m *Manager) Engine() *store.Engine {
	return m.engine
}

// snapshot bulk-copies every table from the disk file into memory by
// attaching the file to the RAM connection.
func (m *Manager) snapshot(ctx context.Context) error {
	if _, err := m.mem.ExecContext(ctx, `ATTACH DATABASE ? AS src`, m.path); err != nil {
		return fmt.Errorf("attach disk database: %w", err)
	}
	detach := func() {
		_, _ = m.mem.ExecContext(ctx, `DETACH DATABASE src`)
	}

	for _, spec := range store.TableSpecs() {
		stmt := fmt.Sprintf(`INSERT INTO main.%s SELECT * FROM src.%s`, spec.Name, spec.Name)
		if _, err := m.mem.ExecContext(ctx, stmt); err != nil {
			detach()
			return fmt.Errorf("snapshot %s: %w", spec.Name, err)
		}
	}

	// Vector rows keep their rowids so the chunk/vector pairing survives.
	if _, err := m.mem.ExecContext(ctx, `
		INSERT INTO main.content_vectors (rowid, embedding, content_id)
		SELECT rowid, embedding, content_id FROM src.content_vectors`); err != nil {
		detach()
		return fmt.Errorf("snapshot content_vectors: %w", err)
	}

	detach()
	return nil
}

// installTracker creates the sync_tracker table and change triggers on every
// regular mutable table. The vector virtual table cannot carry triggers; the
// engine records its changes explicitly.
func (m *Manager) installTracker(ctx context.Context) error {
	if _, err := m.mem.ExecContext(ctx, trackerSchema); err != nil {
		return err
	}

	for _, spec := range store.TableSpecs() {
		triggers := []string{
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS trk_%s_insert AFTER INSERT ON %s BEGIN
				INSERT INTO sync_tracker (table_name, record_id, operation) VALUES ('%s', NEW.%s, 'INSERT');
			END`, spec.Name, spec.Name, spec.Name, spec.PK),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS trk_%s_update AFTER UPDATE ON %s BEGIN
				INSERT INTO sync_tracker (table_name, record_id, operation) VALUES ('%s', NEW.%s, 'UPDATE');
			END`, spec.Name, spec.Name, spec.Name, spec.PK),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS trk_%s_delete AFTER DELETE ON %s BEGIN
				INSERT INTO sync_tracker (table_name, record_id, operation) VALUES ('%s', OLD.%s, 'DELETE');
			END`, spec.Name, spec.Name, spec.Name, spec.PK),
		}
		for _, trg := range triggers {
			if _, err := m.mem.ExecContext(ctx, trg); err != nil {
				return fmt.Errorf("create trigger on %s: %w", spec.Name, err)
			}
		}
	}
	return nil
}

// noteWrite is installed as the engine's write hook.
func (m *Manager) noteWrite() {
	m.lastWrite.Store(time.Now().UnixNano())
	m.idleSyncDone.Store(false)
}

// pendingChanges counts unsynced tracker rows.
func (m *Manager) pendingChanges(ctx context.Context) (int64, error) {
	var n int64
	err := m.mem.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_tracker`).Scan(&n)
	return n, err
}

// idleMonitor syncs after a quiet period, once per quiet period.
func (m *Manager) idleMonitor() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.IdleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.maybeIdleSync(context.Background())
		}
	}
}

// maybeIdleSync runs a sync when the store has been idle past the threshold
// with unsynced changes, and no idle sync has run since the last write.
func (m *Manager) maybeIdleSync(ctx context.Context) {
	if m.idleSyncDone.Load() {
		return
	}
	idleFor := time.Since(time.Unix(0, m.lastWrite.Load()))
	if idleFor < m.cfg.IdleThreshold {
		return
	}
	pending, err := m.pendingChanges(ctx)
	if err != nil || pending == 0 {
		return
	}
	if err := m.Sync(ctx); err != nil {
		m.logger.Error("idle sync failed", slog.String("error", err.Error()))
	}
}

// periodicMonitor syncs unconditionally on a long interval and runs the
// retention sweeper.
func (m *Manager) periodicMonitor() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PeriodicInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ctx := context.Background()

			if removed, err := m.engine.SweepExpired(ctx, time.Now().UTC()); err != nil {
				m.logger.Error("retention sweep failed", slog.String("error", err.Error()))
			} else if removed > 0 {
				m.logger.Info("retention sweep removed rows", slog.Int64("removed", removed))
			}

			pending, err := m.pendingChanges(ctx)
			if err != nil || pending == 0 {
				continue
			}
			if err := m.Sync(ctx); err != nil {
				m.logger.Error("periodic sync failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Metrics returns a snapshot of sync health.
func (m *Manager) Metrics(ctx context.Context) Metrics {
	pending, _ := m.pendingChanges(ctx)

	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	rate := 1.0
	if m.totalSyncs+m.failedSyncs > 0 {
		rate = float64(m.totalSyncs) / float64(m.totalSyncs+m.failedSyncs)
	}
	return Metrics{
		TotalSyncs:    m.totalSyncs,
		FailedSyncs:   m.failedSyncs,
		RecordsSynced: m.recordsSynced,
		LastDuration:  m.lastDuration,
		LastSyncAt:    m.lastSyncAt,
		Pending:       pending,
		SuccessRate:   rate,
	}
}

// Close drains pending changes with one final sync, stops the monitors, and
// closes both handles.
func (m *Manager) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	close(m.stop)
	m.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if pending, err := m.pendingChanges(ctx); err == nil && pending > 0 {
		if err := m.Sync(ctx); err != nil {
			m.logger.Error("final sync failed", slog.String("error", err.Error()))
		}
	}

	err := m.engine.Close() // closes the RAM handle
	if derr := m.disk.Close(); err == nil {
		err = derr
	}
	if m.lock != nil {
		_ = m.lock.Unlock()
	}
	return err
}
