package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/webrecall/webrecall/internal/crawl"
	"github.com/webrecall/webrecall/internal/ingest"
	"github.com/webrecall/webrecall/internal/search"
	"github.com/webrecall/webrecall/internal/service"
	"github.com/webrecall/webrecall/internal/store"
)

// CrawlInput addresses a single page.
type CrawlInput struct {
	URL       string   `json:"url" jsonschema:"the page URL to fetch"`
	Tags      []string `json:"tags,omitempty" jsonschema:"tags attached to the stored page"`
	Retention string   `json:"retention_policy,omitempty" jsonschema:"permanent, session_only, or 30_days"`
}

// DeepCrawlInput bounds a depth-first walk.
type DeepCrawlInput struct {
	URL             string   `json:"url" jsonschema:"the start URL"`
	MaxDepth        int      `json:"max_depth,omitempty" jsonschema:"link depth bound, at most 5"`
	MaxPages        int      `json:"max_pages,omitempty" jsonschema:"page count bound, at most 250"`
	IncludeExternal bool     `json:"include_external,omitempty" jsonschema:"follow links to other domains"`
	ScoreThreshold  float64  `json:"score_threshold,omitempty" jsonschema:"drop links scoring below this"`
	TimeoutSeconds  float64  `json:"timeout,omitempty" jsonschema:"overall crawl deadline in seconds"`
	Tags            []string `json:"tags,omitempty" jsonschema:"tags attached to every stored page"`
	Retention       string   `json:"retention_policy,omitempty" jsonschema:"retention for stored pages"`
}

// SearchInput is a semantic query.
type SearchInput struct {
	Query string   `json:"query" jsonschema:"natural language query"`
	Limit int      `json:"limit,omitempty" jsonschema:"maximum distinct URLs to return"`
	Tags  []string `json:"tags,omitempty" jsonschema:"only return pages carrying at least one of these tags"`
}

// TargetSearchInput is the two-pass query.
type TargetSearchInput struct {
	Query         string   `json:"query" jsonschema:"natural language query"`
	InitialLimit  int      `json:"initial_limit,omitempty" jsonschema:"first-pass hit count used for tag discovery"`
	ExpandedLimit int      `json:"expanded_limit,omitempty" jsonschema:"final result count after expansion"`
	Tags          []string `json:"tags,omitempty" jsonschema:"tags that are always applied, never dropped"`
}

// ListMemoryInput pages through stored content.
type ListMemoryInput struct {
	Filter string `json:"filter,omitempty" jsonschema:"retention policy filter"`
	Limit  int    `json:"limit,omitempty" jsonschema:"rows per page"`
	Offset int    `json:"offset,omitempty" jsonschema:"rows to skip"`
}

// URLInput addresses one stored URL.
type URLInput struct {
	URL string `json:"url" jsonschema:"the stored URL"`
}

// PatternInput addresses one blocklist pattern.
type PatternInput struct {
	Pattern     string `json:"pattern" jsonschema:"blocklist pattern"`
	Description string `json:"description,omitempty" jsonschema:"why the pattern exists"`
}

// EmptyInput is for tools without arguments.
type EmptyInput struct{}

// SearchOutput carries ranked hits.
type SearchOutput struct {
	Hits []search.Hit `json:"hits"`
}

func (s *Server) handleCrawlURL(ctx context.Context, _ *mcp.CallToolRequest, in CrawlInput) (*mcp.CallToolResult, Result[*service.Preview], error) {
	preview, err := s.backend.CrawlPreview(ctx, in.URL)
	if err != nil {
		return nil, failed[*service.Preview](err), nil
	}
	return nil, ok(preview), nil
}

func (s *Server) handleCrawlAndRemember(ctx context.Context, _ *mcp.CallToolRequest, in CrawlInput) (*mcp.CallToolResult, Result[*ingest.Result], error) {
	result, err := s.backend.CrawlStore(ctx, in.URL, in.Tags, in.Retention)
	if err != nil {
		return nil, failed[*ingest.Result](err), nil
	}
	return nil, ok(result), nil
}

func (s *Server) handleCrawlTemp(ctx context.Context, _ *mcp.CallToolRequest, in CrawlInput) (*mcp.CallToolResult, Result[*ingest.Result], error) {
	result, err := s.backend.CrawlTemp(ctx, in.URL, in.Tags)
	if err != nil {
		return nil, failed[*ingest.Result](err), nil
	}
	return nil, ok(result), nil
}

func (s *Server) deepParams(in DeepCrawlInput) service.DeepParams {
	return service.DeepParams{
		URL:             in.URL,
		MaxDepth:        in.MaxDepth,
		MaxPages:        in.MaxPages,
		IncludeExternal: in.IncludeExternal,
		ScoreThreshold:  in.ScoreThreshold,
		Timeout:         time.Duration(in.TimeoutSeconds * float64(time.Second)),
		Tags:            in.Tags,
		Retention:       in.Retention,
	}
}

func (s *Server) handleDeepCrawlDFS(ctx context.Context, _ *mcp.CallToolRequest, in DeepCrawlInput) (*mcp.CallToolResult, Result[*crawl.DeepReport], error) {
	report, err := s.backend.DeepCrawl(ctx, s.deepParams(in))
	if err != nil {
		return nil, failed[*crawl.DeepReport](err), nil
	}
	return nil, ok(report), nil
}

func (s *Server) handleDeepCrawlAndStore(ctx context.Context, _ *mcp.CallToolRequest, in DeepCrawlInput) (*mcp.CallToolResult, Result[*crawl.DeepReport], error) {
	report, err := s.backend.DeepCrawlStore(ctx, s.deepParams(in))
	if err != nil {
		return nil, failed[*crawl.DeepReport](err), nil
	}
	return nil, ok(report), nil
}

func (s *Server) handleSearchMemory(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, Result[SearchOutput], error) {
	hits, err := s.backend.Search(ctx, in.Query, in.Limit, in.Tags)
	if err != nil {
		return nil, failed[SearchOutput](err), nil
	}
	return nil, ok(SearchOutput{Hits: hits}), nil
}

func (s *Server) handleTargetSearch(ctx context.Context, _ *mcp.CallToolRequest, in TargetSearchInput) (*mcp.CallToolResult, Result[*search.TargetResult], error) {
	result, err := s.backend.TargetSearch(ctx, in.Query, in.InitialLimit, in.ExpandedLimit, in.Tags)
	if err != nil {
		return nil, failed[*search.TargetResult](err), nil
	}
	return nil, ok(result), nil
}

func (s *Server) handleListMemory(ctx context.Context, _ *mcp.CallToolRequest, in ListMemoryInput) (*mcp.CallToolResult, Result[[]store.ContentRow], error) {
	rows, err := s.backend.ListMemory(ctx, in.Filter, in.Limit, in.Offset)
	if err != nil {
		return nil, failed[[]store.ContentRow](err), nil
	}
	return nil, ok(rows), nil
}

func (s *Server) handleForgetURL(ctx context.Context, _ *mcp.CallToolRequest, in URLInput) (*mcp.CallToolResult, Result[service.Removed], error) {
	removed, err := s.backend.ForgetURL(ctx, in.URL)
	if err != nil {
		return nil, failed[service.Removed](err), nil
	}
	return nil, ok(service.Removed{Removed: removed}), nil
}

func (s *Server) handleClearTempMemory(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, Result[service.Removed], error) {
	removed, err := s.backend.ClearTemp(ctx)
	if err != nil {
		return nil, failed[service.Removed](err), nil
	}
	return nil, ok(service.Removed{Removed: removed}), nil
}

func (s *Server) handleGetDatabaseStats(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, Result[*service.StatsReport], error) {
	report, err := s.backend.Stats(ctx)
	if err != nil {
		return nil, failed[*service.StatsReport](err), nil
	}
	return nil, ok(report), nil
}

func (s *Server) handleListDomains(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, Result[[]store.DomainCount], error) {
	domains, err := s.backend.ListDomains(ctx)
	if err != nil {
		return nil, failed[[]store.DomainCount](err), nil
	}
	return nil, ok(domains), nil
}

func (s *Server) handleBlockDomain(ctx context.Context, _ *mcp.CallToolRequest, in PatternInput) (*mcp.CallToolResult, Result[PatternInput], error) {
	if err := s.backend.BlockDomain(ctx, in.Pattern, in.Description); err != nil {
		return nil, failed[PatternInput](err), nil
	}
	return nil, ok(in), nil
}

func (s *Server) handleUnblockDomain(ctx context.Context, _ *mcp.CallToolRequest, in PatternInput) (*mcp.CallToolResult, Result[PatternInput], error) {
	if err := s.backend.UnblockDomain(ctx, in.Pattern); err != nil {
		return nil, failed[PatternInput](err), nil
	}
	return nil, ok(in), nil
}

func (s *Server) handleListBlockedDomains(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, Result[[]store.BlockedPattern], error) {
	patterns, err := s.backend.ListBlocked(ctx)
	if err != nil {
		return nil, failed[[]store.BlockedPattern](err), nil
	}
	return nil, ok(patterns), nil
}
