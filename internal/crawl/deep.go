// Package crawl implements the deep (depth-first) crawler and the concurrent
// batch driver. Both delegate page storage to the ingestion pipeline.
package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/webrecall/webrecall/internal/blocklist"
	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/ingest"
	"github.com/webrecall/webrecall/internal/validate"
)

// Hard caps on caller-supplied bounds.
const (
	MaxDepthLimit = 5
	MaxPagesLimit = 250
)

// DeepOptions bounds one depth-first crawl.
type DeepOptions struct {
	MaxDepth        int
	MaxPages        int
	IncludeExternal bool
	// ScoreThreshold drops links scoring below it; 0 disables scoring.
	ScoreThreshold float64
	Timeout        time.Duration

	// Store persists every fetched page through the pipeline; otherwise
	// the crawl only reports what it found.
	Store     bool
	Retention string
	Tags      []string
	SessionID string
}

// PageVisit is the outcome for one URL the crawler reached.
type PageVisit struct {
	URL       string `json:"url"`
	Depth     int    `json:"depth"`
	Title     string `json:"title,omitempty"`
	Stored    bool   `json:"stored"`
	ContentID int64  `json:"content_id,omitempty"`
	Chunks    int    `json:"n_chunks_stored,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DeepReport aggregates one crawl.
type DeepReport struct {
	StartURL        string        `json:"start_url"`
	PagesVisited    int           `json:"pages_visited"`
	PagesStored     int           `json:"pages_stored"`
	PagesFailed     int           `json:"pages_failed"`
	MaxDepthReached int           `json:"max_depth_reached"`
	TimedOut        bool          `json:"timed_out"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	Pages           []PageVisit   `json:"pages"`
}

// Deep walks pages depth-first from a start URL.
type Deep struct {
	fetcher  ingest.Fetcher
	pipeline *ingest.Pipeline
	blocked  *blocklist.Blocklist
	cfg      config.CrawlConfig
	logger   *slog.Logger
}

// NewDeep builds a deep crawler.
func NewDeep(fetcher ingest.Fetcher, pipeline *ingest.Pipeline, blocked *blocklist.Blocklist, cfg config.CrawlConfig, logger *slog.Logger) *Deep {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deep{
		fetcher:  fetcher,
		pipeline: pipeline,
		blocked:  blocked,
		cfg:      cfg,
		logger:   logger.With("component", "crawl"),
	}
}

type frame struct {
	url   string
	depth int
}

// Crawl runs the depth-first walk. The frontier is a stack, so the crawler
// descends before it widens. Partial results are kept on timeout.
func (d *Deep) Crawl(ctx context.Context, startURL string, opts DeepOptions) (*DeepReport, error) {
	start, err := validate.URL(startURL)
	if err != nil {
		return nil, err
	}
	if err := d.blocked.Check(ctx, start); err != nil {
		return nil, err
	}

	opts = d.clampOptions(opts)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	began := time.Now()
	report := &DeepReport{StartURL: start}
	visited := make(map[string]struct{})
	stack := []frame{{url: start, depth: 0}}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			report.TimedOut = true
			break
		}
		if report.PagesVisited+report.PagesFailed >= opts.MaxPages {
			break
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, done := visited[top.url]; done {
			continue
		}
		visited[top.url] = struct{}{}

		visit, html := d.visit(ctx, top, opts)
		report.Pages = append(report.Pages, visit)
		if visit.Error != "" {
			report.PagesFailed++
			continue
		}
		report.PagesVisited++
		if visit.Stored {
			report.PagesStored++
		}
		if top.depth > report.MaxDepthReached {
			report.MaxDepthReached = top.depth
		}

		if top.depth+1 > opts.MaxDepth {
			continue
		}
		for _, link := range d.expand(ctx, top, html, opts) {
			if _, done := visited[link]; done {
				continue
			}
			stack = append(stack, frame{url: link, depth: top.depth + 1})
		}
	}

	if ctx.Err() != nil {
		report.TimedOut = true
	}
	report.Elapsed = time.Since(began)

	d.logger.Info("deep crawl finished",
		slog.String("start_url", start),
		slog.Int("visited", report.PagesVisited),
		slog.Int("stored", report.PagesStored),
		slog.Int("failed", report.PagesFailed),
		slog.Bool("timed_out", report.TimedOut))
	return report, nil
}

// visit fetches one frame and optionally stores it, returning the page HTML
// for link extraction.
func (d *Deep) visit(ctx context.Context, f frame, opts DeepOptions) (PageVisit, string) {
	visit := PageVisit{URL: f.url, Depth: f.depth}

	if err := d.blocked.Check(ctx, f.url); err != nil {
		visit.Error = err.Error()
		return visit, ""
	}

	page, err := d.fetcher.Fetch(ctx, f.url)
	if err != nil {
		visit.Error = err.Error()
		return visit, ""
	}
	visit.Title = page.Title

	if !opts.Store {
		return visit, page.CleanedHTML
	}

	res, err := d.pipeline.IngestFetched(ctx, ingest.Request{
		URL:       f.url,
		Retention: opts.Retention,
		Tags:      opts.Tags,
		SessionID: opts.SessionID,
	}, page)
	if err != nil {
		visit.Error = err.Error()
		return visit, page.CleanedHTML
	}
	visit.Stored = true
	visit.ContentID = res.ContentID
	visit.Chunks = res.ChunksStored
	return visit, page.CleanedHTML
}

// expand lists the follow-up links of the page just visited.
func (d *Deep) expand(ctx context.Context, f frame, html string, opts DeepOptions) []string {
	links := extractLinks(f.url, html, d.cfg.LinksPerPage, opts.IncludeExternal)

	kept := links[:0]
	for _, link := range links {
		if opts.ScoreThreshold > 0 && linkScore(f.depth+1) < opts.ScoreThreshold {
			continue
		}
		if verdict, err := d.blocked.IsBlocked(ctx, link); err == nil && verdict.Blocked {
			continue
		}
		kept = append(kept, link)
	}
	return kept
}

// linkScore decays with depth; the threshold lets callers stop a crawl from
// descending into deep link chains.
func linkScore(depth int) float64 {
	return 1.0 / (1.0 + float64(depth))
}

func (d *Deep) clampOptions(opts DeepOptions) DeepOptions {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = d.cfg.DefaultMaxDepth
	}
	if opts.MaxDepth > MaxDepthLimit {
		opts.MaxDepth = MaxDepthLimit
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = d.cfg.DefaultMaxPages
	}
	if opts.MaxPages > MaxPagesLimit {
		opts.MaxPages = MaxPagesLimit
	}
	if opts.Retention == "" {
		opts.Retention = validate.RetentionPermanent
	}
	return opts
}
