// Package ingest runs the content pipeline: validate, blocklist gate, fetch,
// clean, chunk+embed+store, knowledge-graph enqueue. It is the sole writer of
// new content rows.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/webrecall/webrecall/internal/blocklist"
	"github.com/webrecall/webrecall/internal/clean"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/fetch"
	"github.com/webrecall/webrecall/internal/store"
	"github.com/webrecall/webrecall/internal/validate"
)

// Fetcher retrieves one page from the crawl service.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// KGHealth reports whether the knowledge-graph service can accept work.
type KGHealth interface {
	Healthy(ctx context.Context) bool
}

// Request is one ingestion job.
type Request struct {
	URL       string
	Retention string
	Tags      []string
	SessionID string
}

// Result reports what one ingestion stored.
type Result struct {
	Success      bool     `json:"success"`
	ContentID    int64    `json:"content_id"`
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	ChunksStored int      `json:"n_chunks_stored"`
	ChunksTotal  int      `json:"n_chunks_total"`
	Retention    string   `json:"retention_policy"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	fetcher Fetcher
	blocked *blocklist.Blocklist
	engine  *store.Engine
	kg      KGHealth
	logger  *slog.Logger
}

// New builds a pipeline. kg may be nil when no knowledge-graph service is
// configured; queue rows are then written as skipped.
func New(fetcher Fetcher, blocked *blocklist.Blocklist, engine *store.Engine, kg KGHealth, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher: fetcher,
		blocked: blocked,
		engine:  engine,
		kg:      kg,
		logger:  logger.With("component", "ingest"),
	}
}

// Ingest runs the full pipeline for one URL.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	rawURL, err := validate.URL(req.URL)
	if err != nil {
		return nil, err
	}
	if err := p.blocked.Check(ctx, rawURL); err != nil {
		return nil, err
	}

	page, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return p.IngestFetched(ctx, req, page)
}

// IngestFetched runs the pipeline stages after the fetch. The deep crawler
// uses it directly because it fetches pages itself to extract links.
func (p *Pipeline) IngestFetched(ctx context.Context, req Request, page *fetch.Page) (*Result, error) {
	rawURL, err := validate.URL(req.URL)
	if err != nil {
		return nil, err
	}
	retention, err := validate.Retention(req.Retention)
	if err != nil {
		return nil, err
	}

	cleaned := clean.Markdown(page.Markdown, rawURL)
	var warnings []string
	if !cleaned.Stats.IsClean {
		warnings = append(warnings, fmt.Sprintf(
			"content cleaning removed %.0f%% of lines (%d nav lines); stored text may be noisy",
			cleaned.Stats.ReductionRatio*100, cleaned.Stats.NavCount))
		p.logger.Warn("aggressive clean",
			slog.String("url", rawURL),
			slog.Float64("reduction_ratio", cleaned.Stats.ReductionRatio),
			slog.Int("nav_lines", cleaned.Stats.NavCount))
	}

	// One atomic write: the content row and its chunks and vectors commit
	// together, so an embed failure leaves any prior version untouched.
	contentID, total, kept, err := p.engine.StoreContent(ctx, store.UpsertParams{
		URL:       rawURL,
		Title:     page.Title,
		Content:   cleaned.Text,
		Retention: retention,
		SessionID: req.SessionID,
		Tags:      validate.JoinTags(req.Tags),
	})
	if err != nil {
		return nil, err
	}
	if kept == 0 {
		warnings = append(warnings, "no chunks survived filtering; page is not searchable")
	}

	if err := p.enqueueKG(ctx, contentID); err != nil {
		// Queue rows are advisory; the stored content stands.
		p.logger.Warn("kg enqueue failed",
			slog.Int64("content_id", contentID),
			slog.String("error", err.Error()))
		warnings = append(warnings, "knowledge-graph enqueue failed")
	}

	p.logger.Info("content ingested",
		slog.String("url", rawURL),
		slog.Int64("content_id", contentID),
		slog.String("retention", retention),
		slog.Int("chunks_stored", kept))

	return &Result{
		Success:      true,
		ContentID:    contentID,
		URL:          rawURL,
		Title:        page.Title,
		ChunksStored: kept,
		ChunksTotal:  total,
		Retention:    retention,
		Warnings:     warnings,
	}, nil
}

// enqueueKG writes the queue row: pending when the service is healthy,
// skipped with a reason otherwise.
func (p *Pipeline) enqueueKG(ctx context.Context, contentID int64) error {
	if p.kg != nil && p.kg.Healthy(ctx) {
		return p.engine.EnqueueKG(ctx, contentID, store.KGStatusPending, "")
	}
	return p.engine.EnqueueKG(ctx, contentID, store.KGStatusSkipped, "kg_service_unavailable")
}

// IsBlockedErr reports whether an ingest failure was the blocklist gate.
func IsBlockedErr(err error) bool {
	return werrors.GetCode(err) == werrors.ErrCodeBlockedURL
}
