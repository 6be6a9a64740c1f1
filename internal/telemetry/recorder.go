// Package telemetry persists operation latency metrics in a sidecar SQLite
// file. All data stays local. The sidecar uses the pure-Go driver and lives
// outside the mirrored main database, so recording never contends with the
// sync manager.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS op_metrics (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	op           TEXT NOT NULL,
	duration_ms  REAL NOT NULL,
	result_count INTEGER NOT NULL DEFAULT 0,
	recorded_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_op_metrics_op ON op_metrics(op);
`

// keepPerOp bounds sidecar growth; older rows beyond it are pruned lazily.
const keepPerOp = 10000

// OpStats aggregates one operation's recorded latencies.
type OpStats struct {
	Op     string  `json:"op"`
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
}

// Recorder writes and aggregates op metrics.
type Recorder struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the sidecar file.
func Open(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open telemetry sidecar: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Record stores one measurement. Failures are swallowed; metrics must never
// break the operation being measured.
func (r *Recorder) Record(op string, duration time.Duration, resultCount int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = r.db.Exec(
		`INSERT INTO op_metrics (op, duration_ms, result_count) VALUES (?, ?, ?)`,
		op, float64(duration.Microseconds())/1000.0, resultCount)

	_, _ = r.db.Exec(`
		DELETE FROM op_metrics WHERE op = ? AND id NOT IN (
			SELECT id FROM op_metrics WHERE op = ? ORDER BY id DESC LIMIT ?
		)`, op, op, keepPerOp)
}

// Timed runs fn and records its latency under op.
func (r *Recorder) Timed(op string, fn func() (int, error)) error {
	start := time.Now()
	n, err := fn()
	r.Record(op, time.Since(start), n)
	return err
}

// Aggregate computes per-op count, mean, p50 and p95, sorted by op name.
func (r *Recorder) Aggregate(ctx context.Context) ([]OpStats, error) {
	if r == nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT op, duration_ms FROM op_metrics ORDER BY op, duration_ms`)
	if err != nil {
		return nil, fmt.Errorf("read telemetry: %w", err)
	}
	defer func() { _ = rows.Close() }()

	durations := make(map[string][]float64)
	for rows.Next() {
		var op string
		var ms float64
		if err := rows.Scan(&op, &ms); err != nil {
			return nil, fmt.Errorf("scan telemetry row: %w", err)
		}
		durations[op] = append(durations[op], ms)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ops := make([]string, 0, len(durations))
	for op := range durations {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	out := make([]OpStats, 0, len(ops))
	for _, op := range ops {
		samples := durations[op]
		sum := 0.0
		for _, ms := range samples {
			sum += ms
		}
		out = append(out, OpStats{
			Op:     op,
			Count:  int64(len(samples)),
			MeanMs: sum / float64(len(samples)),
			P50Ms:  percentile(samples, 0.50),
			P95Ms:  percentile(samples, 0.95),
		})
	}
	return out, nil
}

// percentile expects sorted samples.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// Close closes the sidecar handle.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}
