// Package mcp exposes the tool surface over the Model Context Protocol on
// stdio. Every tool runs against a service.Backend, so the same server works
// in local mode and in forward mode.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/webrecall/webrecall/internal/service"
	"github.com/webrecall/webrecall/pkg/version"
)

// Server hosts the MCP tool server.
type Server struct {
	backend service.Backend
	mcp     *mcp.Server
	logger  *slog.Logger
}

// NewServer builds the tool server over a backend.
func NewServer(backend service.Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		backend: backend,
		logger:  logger.With("component", "mcp"),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "webrecall",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves JSON-RPC on stdin/stdout until the client disconnects or ctx is
// cancelled. Logging must already be redirected away from stdout.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("version", version.Version))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

// Result is the uniform tool response envelope.
type Result[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func ok[T any](data T) Result[T] {
	return Result[T]{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func failed[T any](err error) Result[T] {
	return Result[T]{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (s *Server) registerTools() {
	for _, tool := range service.Catalog() {
		s.logger.Debug("registering tool", slog.String("name", tool.Name))
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "crawl_url",
		Description: "Fetch a page and return its cleaned markdown without storing anything. Use this to inspect a page before deciding to remember it.",
	}, s.handleCrawlURL)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "crawl_and_remember",
		Description: "Fetch a page and store it permanently in the knowledge base so future searches can find it.",
	}, s.handleCrawlAndRemember)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "crawl_temp",
		Description: "Fetch a page and store it only for the current session. clear_temp_memory removes it.",
	}, s.handleCrawlTemp)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "deep_crawl_dfs",
		Description: "Walk linked pages depth-first from a start URL and report what was found, without storing anything.",
	}, s.handleDeepCrawlDFS)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "deep_crawl_and_store",
		Description: "Walk linked pages depth-first from a start URL and store every reachable page.",
	}, s.handleDeepCrawlAndStore)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_memory",
		Description: "Semantic search over everything stored. Returns the best-matching pages with the chunk that matched.",
	}, s.handleSearchMemory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "target_search",
		Description: "Two-pass search: a first pass discovers tags on its hits, a second pass re-searches with those tags to widen recall.",
	}, s.handleTargetSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_memory",
		Description: "List stored pages, optionally filtered by retention policy (permanent, session_only, 30_days).",
	}, s.handleListMemory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "forget_url",
		Description: "Delete one stored URL with its chunks and vectors.",
	}, s.handleForgetURL)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_temp_memory",
		Description: "Delete every session-only page stored during the current session.",
	}, s.handleClearTempMemory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_database_stats",
		Description: "Store counters, retention breakdown, sync health, and operation latency aggregates.",
	}, s.handleGetDatabaseStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_domains",
		Description: "Stored page counts per domain, most pages first.",
	}, s.handleListDomains)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "block_domain",
		Description: "Add a blocklist pattern: *.tld blocks a suffix, *keyword* blocks URLs containing it, anything else blocks the exact host.",
	}, s.handleBlockDomain)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "unblock_domain",
		Description: "Remove a blocklist pattern. Requires the removal token to be configured on the server.",
	}, s.handleUnblockDomain)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_blocked_domains",
		Description: "List active blocklist patterns.",
	}, s.handleListBlockedDomains)

	s.logger.Info("mcp tools registered", slog.Int("count", len(service.Catalog())))
}
