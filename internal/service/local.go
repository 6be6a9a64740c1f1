package service

import (
	"context"
	"log/slog"

	"github.com/webrecall/webrecall/internal/blocklist"
	"github.com/webrecall/webrecall/internal/crawl"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/ingest"
	"github.com/webrecall/webrecall/internal/mirror"
	"github.com/webrecall/webrecall/internal/search"
	"github.com/webrecall/webrecall/internal/session"
	"github.com/webrecall/webrecall/internal/store"
	"github.com/webrecall/webrecall/internal/telemetry"
	"github.com/webrecall/webrecall/internal/validate"
)

// Local executes operations against the in-process engines.
type Local struct {
	engine   *store.Engine
	searcher *search.Engine
	pipeline *ingest.Pipeline
	deep     *crawl.Deep
	fetcher  ingest.Fetcher
	blocked  *blocklist.Blocklist
	sess     *session.Session
	// sync is nil in disk mode.
	sync *mirror.Manager
	// metrics is nil when the telemetry sidecar is disabled.
	metrics *telemetry.Recorder

	removalToken string
	logger       *slog.Logger
}

// LocalDeps collects the engines a Local backend operates.
type LocalDeps struct {
	Engine       *store.Engine
	Searcher     *search.Engine
	Pipeline     *ingest.Pipeline
	Deep         *crawl.Deep
	Fetcher      ingest.Fetcher
	Blocked      *blocklist.Blocklist
	Session      *session.Session
	Sync         *mirror.Manager
	Metrics      *telemetry.Recorder
	RemovalToken string
	Logger       *slog.Logger
}

// NewLocal wires a backend over in-process engines.
func NewLocal(deps LocalDeps) *Local {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		engine:       deps.Engine,
		searcher:     deps.Searcher,
		pipeline:     deps.Pipeline,
		deep:         deps.Deep,
		fetcher:      deps.Fetcher,
		blocked:      deps.Blocked,
		sess:         deps.Session,
		sync:         deps.Sync,
		metrics:      deps.Metrics,
		removalToken: deps.RemovalToken,
		logger:       logger.With("component", "service"),
	}
}

// CrawlPreview fetches a page without storing it.
func (l *Local) CrawlPreview(ctx context.Context, rawURL string) (*Preview, error) {
	cleaned, err := validate.URL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := l.blocked.Check(ctx, cleaned); err != nil {
		return nil, err
	}

	page, err := l.fetcher.Fetch(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	return &Preview{
		URL:      cleaned,
		Title:    page.Title,
		Markdown: page.Markdown,
		Status:   page.Status,
	}, nil
}

// CrawlStore fetches and stores a page with the given retention.
func (l *Local) CrawlStore(ctx context.Context, rawURL string, tags []string, retention string) (*ingest.Result, error) {
	var result *ingest.Result
	err := l.timed("crawl_store", func() (int, error) {
		var err error
		result, err = l.pipeline.Ingest(ctx, ingest.Request{
			URL:       rawURL,
			Retention: retention,
			Tags:      tags,
		})
		if result != nil {
			return result.ChunksStored, err
		}
		return 0, err
	})
	return result, err
}

// CrawlTemp stores a page bound to the current session.
func (l *Local) CrawlTemp(ctx context.Context, rawURL string, tags []string) (*ingest.Result, error) {
	return l.pipeline.Ingest(ctx, ingest.Request{
		URL:       rawURL,
		Retention: validate.RetentionSessionOnly,
		Tags:      tags,
		SessionID: l.sess.ID,
	})
}

// DeepCrawl walks from a start URL without storing pages.
func (l *Local) DeepCrawl(ctx context.Context, params DeepParams) (*crawl.DeepReport, error) {
	return l.deep.Crawl(ctx, params.URL, crawl.DeepOptions{
		MaxDepth:        params.MaxDepth,
		MaxPages:        params.MaxPages,
		IncludeExternal: params.IncludeExternal,
		ScoreThreshold:  params.ScoreThreshold,
		Timeout:         params.Timeout,
		Store:           false,
	})
}

// DeepCrawlStore walks from a start URL and stores every reachable page.
func (l *Local) DeepCrawlStore(ctx context.Context, params DeepParams) (*crawl.DeepReport, error) {
	var report *crawl.DeepReport
	err := l.timed("deep_crawl_store", func() (int, error) {
		var err error
		report, err = l.deep.Crawl(ctx, params.URL, crawl.DeepOptions{
			MaxDepth:        params.MaxDepth,
			MaxPages:        params.MaxPages,
			IncludeExternal: params.IncludeExternal,
			ScoreThreshold:  params.ScoreThreshold,
			Timeout:         params.Timeout,
			Store:           true,
			Retention:       params.Retention,
			Tags:            params.Tags,
		})
		if report != nil {
			return report.PagesStored, err
		}
		return 0, err
	})
	return report, err
}

// Search runs a semantic query.
func (l *Local) Search(ctx context.Context, query string, limit int, tags []string) ([]search.Hit, error) {
	var hits []search.Hit
	err := l.timed("search", func() (int, error) {
		var err error
		hits, err = l.searcher.Search(ctx, query, limit, tags)
		return len(hits), err
	})
	return hits, err
}

// TargetSearch runs the two-pass tag-expanded query.
func (l *Local) TargetSearch(ctx context.Context, query string, initialLimit, expandedLimit int, tags []string) (*search.TargetResult, error) {
	var result *search.TargetResult
	err := l.timed("target_search", func() (int, error) {
		var err error
		result, err = l.searcher.TargetSearch(ctx, query, initialLimit, expandedLimit, tags)
		if result != nil {
			return len(result.Hits), err
		}
		return 0, err
	})
	return result, err
}

// ListMemory lists stored content rows.
func (l *Local) ListMemory(ctx context.Context, filter string, limit, offset int) ([]store.ContentRow, error) {
	if filter != "" {
		cleaned, err := validate.Retention(filter)
		if err != nil {
			return nil, err
		}
		filter = cleaned
	}
	return l.engine.ListContent(ctx, filter, limit, offset)
}

// ForgetURL removes one URL and all derived data.
func (l *Local) ForgetURL(ctx context.Context, rawURL string) (int64, error) {
	cleaned, err := validate.URL(rawURL)
	if err != nil {
		return 0, err
	}
	removed, err := l.engine.ForgetURL(ctx, cleaned)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, werrors.NotFound("no stored content for " + cleaned)
	}
	return removed, nil
}

// ClearTemp removes the current session's session_only rows.
func (l *Local) ClearTemp(ctx context.Context) (int64, error) {
	return l.engine.ClearSession(ctx, l.sess.ID)
}

// Stats aggregates store counters, sync health, and latency aggregates.
func (l *Local) Stats(ctx context.Context) (*StatsReport, error) {
	snapshot, err := l.engine.Stats(ctx)
	if err != nil {
		return nil, err
	}

	report := &StatsReport{Store: snapshot, SessionID: l.sess.ID}
	if l.sync != nil {
		m := l.sync.Metrics(ctx)
		report.Sync = &m
	}
	if aggregates, err := l.metrics.Aggregate(ctx); err == nil {
		report.Telemetry = aggregates
	}
	return report, nil
}

// SyncStatus reports sync manager health; disk mode has none.
func (l *Local) SyncStatus(ctx context.Context) (*mirror.Metrics, error) {
	if l.sync == nil {
		return nil, werrors.NotFound("memory database mode is disabled")
	}
	m := l.sync.Metrics(ctx)
	return &m, nil
}

// ListDomains aggregates stored pages per domain.
func (l *Local) ListDomains(ctx context.Context) ([]store.DomainCount, error) {
	return l.engine.ListDomains(ctx)
}

// BlockDomain adds a blocklist pattern.
func (l *Local) BlockDomain(ctx context.Context, pattern, description string) error {
	return l.blocked.Add(ctx, pattern, description)
}

// UnblockDomain removes a pattern. Removal requires the configured removal
// token; without one the operation is disabled.
func (l *Local) UnblockDomain(ctx context.Context, pattern string) error {
	return l.blocked.Remove(ctx, pattern, l.removalToken)
}

// ListBlocked lists blocklist patterns.
func (l *Local) ListBlocked(ctx context.Context) ([]store.BlockedPattern, error) {
	return l.engine.ListBlockedPatterns(ctx)
}

// timed wraps an operation with the telemetry recorder. The recorder is
// nil-safe, so disabled telemetry costs one clock read.
func (l *Local) timed(op string, fn func() (int, error)) error {
	return l.metrics.Timed(op, fn)
}

var _ Backend = (*Local)(nil)
