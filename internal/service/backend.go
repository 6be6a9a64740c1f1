// Package service defines the operation surface shared by the MCP tool
// server, the HTTP API, and the CLI. service.Local executes against the
// in-process engines; remote.Client implements the same interface by
// forwarding to another instance's HTTP API.
package service

import (
	"context"
	"time"

	"github.com/webrecall/webrecall/internal/crawl"
	"github.com/webrecall/webrecall/internal/ingest"
	"github.com/webrecall/webrecall/internal/mirror"
	"github.com/webrecall/webrecall/internal/search"
	"github.com/webrecall/webrecall/internal/store"
	"github.com/webrecall/webrecall/internal/telemetry"
)

// Preview is a fetched page that was not stored.
type Preview struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	Status   int    `json:"status"`
}

// DeepParams bounds a deep crawl request.
type DeepParams struct {
	URL             string        `json:"url"`
	MaxDepth        int           `json:"max_depth,omitempty"`
	MaxPages        int           `json:"max_pages,omitempty"`
	IncludeExternal bool          `json:"include_external,omitempty"`
	ScoreThreshold  float64       `json:"score_threshold,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
	Tags            []string      `json:"tags,omitempty"`
	Retention       string        `json:"retention_policy,omitempty"`
}

// StatsReport combines store counters, sync health, and latency aggregates.
type StatsReport struct {
	Store     *store.StatsSnapshot `json:"store"`
	Sync      *mirror.Metrics      `json:"sync,omitempty"`
	Telemetry []telemetry.OpStats  `json:"telemetry,omitempty"`
	SessionID string               `json:"session_id,omitempty"`
}

// Backend is the full operation surface behind the 15 tools and the REST API.
type Backend interface {
	CrawlPreview(ctx context.Context, url string) (*Preview, error)
	CrawlStore(ctx context.Context, url string, tags []string, retention string) (*ingest.Result, error)
	CrawlTemp(ctx context.Context, url string, tags []string) (*ingest.Result, error)
	DeepCrawl(ctx context.Context, params DeepParams) (*crawl.DeepReport, error)
	DeepCrawlStore(ctx context.Context, params DeepParams) (*crawl.DeepReport, error)

	Search(ctx context.Context, query string, limit int, tags []string) ([]search.Hit, error)
	TargetSearch(ctx context.Context, query string, initialLimit, expandedLimit int, tags []string) (*search.TargetResult, error)

	ListMemory(ctx context.Context, filter string, limit, offset int) ([]store.ContentRow, error)
	ForgetURL(ctx context.Context, url string) (int64, error)
	ClearTemp(ctx context.Context) (int64, error)

	Stats(ctx context.Context) (*StatsReport, error)
	SyncStatus(ctx context.Context) (*mirror.Metrics, error)
	ListDomains(ctx context.Context) ([]store.DomainCount, error)

	BlockDomain(ctx context.Context, pattern, description string) error
	UnblockDomain(ctx context.Context, pattern string) error
	ListBlocked(ctx context.Context) ([]store.BlockedPattern, error)
}
