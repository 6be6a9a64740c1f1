package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/ingest"
)

// Progress is one batch progress record, emitted every cfg.ProgressEvery
// completions and once at the end.
type Progress struct {
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Rate      float64       `json:"pages_per_second"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// ProgressFunc consumes progress records. Called from the driver goroutine.
type ProgressFunc func(Progress)

// FailedURL records one URL the batch could not ingest.
type FailedURL struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchReport summarizes one batch run.
type BatchReport struct {
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	FailedURLs  []FailedURL   `json:"failed_urls,omitempty"`
	SidecarPath string        `json:"failed_sidecar,omitempty"`
}

// Batch ingests many URLs concurrently under a weighted semaphore.
type Batch struct {
	pipeline   *ingest.Pipeline
	cfg        config.CrawlConfig
	logger     *slog.Logger
	onProgress ProgressFunc

	// sidecarDir receives the failed-URL file; empty means the system
	// temp directory.
	sidecarDir string
}

// BatchOption configures the driver.
type BatchOption func(*Batch)

// WithProgress installs a progress consumer.
func WithProgress(fn ProgressFunc) BatchOption {
	return func(b *Batch) { b.onProgress = fn }
}

// WithSidecarDir overrides where the failed-URL file is written.
func WithSidecarDir(dir string) BatchOption {
	return func(b *Batch) { b.sidecarDir = dir }
}

// NewBatch builds a batch driver.
func NewBatch(pipeline *ingest.Pipeline, cfg config.CrawlConfig, logger *slog.Logger, opts ...BatchOption) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Batch{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger.With("component", "batch"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run ingests every URL with bounded concurrency and a per-URL timeout.
// Failures never abort the batch; they are collected and written to the
// sidecar file.
func (b *Batch) Run(ctx context.Context, urls []string, retention string, tags []string) (*BatchReport, error) {
	began := time.Now()
	total := len(urls)

	maxConcurrent := b.cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		completed int
		succeeded int
		failed    []FailedURL
	)

	emit := func() {
		if b.onProgress == nil {
			return
		}
		elapsed := time.Since(began)
		rate := 0.0
		if elapsed > 0 {
			rate = float64(completed) / elapsed.Seconds()
		}
		b.onProgress(Progress{
			Completed: completed,
			Total:     total,
			Succeeded: succeeded,
			Failed:    len(failed),
			Rate:      rate,
			Elapsed:   elapsed,
		})
	}

	progressEvery := b.cfg.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = 50
	}

	for _, rawURL := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context gone; record the rest as failed.
			mu.Lock()
			failed = append(failed, FailedURL{URL: rawURL, Error: err.Error()})
			completed++
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(rawURL string) {
			defer wg.Done()
			defer sem.Release(1)

			perURL := b.cfg.PerURLTimeout
			if perURL <= 0 {
				perURL = 60 * time.Second
			}
			urlCtx, cancel := context.WithTimeout(ctx, perURL)
			defer cancel()

			_, err := b.pipeline.Ingest(urlCtx, ingest.Request{
				URL:       rawURL,
				Retention: retention,
				Tags:      tags,
			})

			mu.Lock()
			completed++
			if err != nil {
				failed = append(failed, FailedURL{URL: rawURL, Error: err.Error()})
			} else {
				succeeded++
			}
			if completed%progressEvery == 0 {
				emit()
			}
			mu.Unlock()
		}(rawURL)

		if b.cfg.DispatchDelay > 0 {
			select {
			case <-time.After(b.cfg.DispatchDelay):
			case <-ctx.Done():
			}
		}
	}
	wg.Wait()

	mu.Lock()
	emit()
	report := &BatchReport{
		Total:      total,
		Succeeded:  succeeded,
		Failed:     len(failed),
		Elapsed:    time.Since(began),
		FailedURLs: failed,
	}
	mu.Unlock()

	if len(report.FailedURLs) > 0 {
		if path, err := b.writeSidecar(report.FailedURLs); err != nil {
			b.logger.Warn("cannot write failed-url sidecar", slog.String("error", err.Error()))
		} else {
			report.SidecarPath = path
		}
	}

	b.logger.Info("batch finished",
		slog.Int("total", report.Total),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Duration("elapsed", report.Elapsed))
	return report, nil
}

// writeSidecar records failed URLs one per line for later recrawl.
func (b *Batch) writeSidecar(failed []FailedURL) (string, error) {
	dir := b.sidecarDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("webrecall-failed-%s.txt", time.Now().UTC().Format("20060102-150405")))

	var sb strings.Builder
	for _, f := range failed {
		sb.WriteString(f.URL)
		sb.WriteString("\t")
		sb.WriteString(f.Error)
		sb.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
