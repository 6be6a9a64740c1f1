// Package integration exercises the full local stack end to end: a fake
// crawl service feeds the real pipeline, store, search engine, and service
// backend, all over an in-memory database.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webrecall/webrecall/internal/blocklist"
	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/crawl"
	"github.com/webrecall/webrecall/internal/embed"
	"github.com/webrecall/webrecall/internal/fetch"
	"github.com/webrecall/webrecall/internal/ingest"
	"github.com/webrecall/webrecall/internal/search"
	"github.com/webrecall/webrecall/internal/service"
	"github.com/webrecall/webrecall/internal/session"
	"github.com/webrecall/webrecall/internal/store"
)

// fakePage is what the fake crawl service serves for one URL.
type fakePage struct {
	title    string
	markdown string
	html     string
}

// newCrawlService runs an HTTP server speaking the crawl service protocol,
// answering from the pages map. Unknown URLs fail with a 404 result.
func newCrawlService(t *testing.T, pages map[string]fakePage) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/crawl", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URLs []string `json:"urls"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.URLs, 1)

		url := req.URLs[0]
		result := map[string]any{"url": url}
		if page, ok := pages[url]; ok {
			result["success"] = true
			result["status_code"] = 200
			result["cleaned_html"] = page.html
			result["markdown"] = map[string]string{"raw_markdown": page.markdown}
			result["metadata"] = map[string]any{"title": page.title}
		} else {
			result["success"] = false
			result["status_code"] = 404
			result["error_message"] = "not found"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"results": []any{result},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// article builds a markdown body long enough to survive chunking, seeded
// with a distinctive topic word.
func article(topic string) string {
	var b strings.Builder
	b.WriteString("# " + topic + "\n\n")
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "%s detail%d ", topic, i)
	}
	return b.String()
}

// stack is a fully wired local backend over an in-memory store.
type stack struct {
	engine  *store.Engine
	blocked *blocklist.Blocklist
	backend *service.Local
}

const removalToken = "integration-removal-token"

func newStack(t *testing.T, crawlerURL string) *stack {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.NewConfig()

	embedder := embed.NewStaticEmbedder(32)
	engine, err := store.OpenMemory(embedder, store.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	fetcher := fetch.NewClient(config.CrawlerConfig{
		URL:          crawlerURL,
		Timeout:      5 * time.Second,
		BatchTimeout: 10 * time.Second,
	})
	blocked, err := blocklist.New(ctx, engine, removalToken)
	require.NoError(t, err)

	pipeline := ingest.New(fetcher, blocked, engine, nil, logger)
	deep := crawl.NewDeep(fetcher, pipeline, blocked, cfg.Crawl, logger)
	searcher := search.New(engine, embedder, cfg.Search, logger)

	sess, err := session.Start(ctx, engine)
	require.NoError(t, err)

	backend := service.NewLocal(service.LocalDeps{
		Engine:       engine,
		Searcher:     searcher,
		Pipeline:     pipeline,
		Deep:         deep,
		Fetcher:      fetcher,
		Blocked:      blocked,
		Session:      sess,
		RemovalToken: removalToken,
		Logger:       logger,
	})
	return &stack{engine: engine, blocked: blocked, backend: backend}
}

func TestIngestThenSearchRoundtrip(t *testing.T) {
	const url = "https://docs.example.test/transactions"
	srv := newCrawlService(t, map[string]fakePage{
		url: {title: "Transactions", markdown: article("transactions")},
	})
	s := newStack(t, srv.URL)
	ctx := context.Background()

	result, err := s.backend.CrawlStore(ctx, url, []string{"docs", "db"}, "permanent")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, url, result.URL)
	assert.Greater(t, result.ChunksStored, 0)

	hits, err := s.backend.Search(ctx, "how do transactions work", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, url, hits[0].URL)
	assert.Equal(t, "Transactions", hits[0].Title)

	rows, err := s.backend.ListMemory(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, url, rows[0].URL)

	stats, err := s.backend.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Store.ContentRows)
}

func TestCrawlPreviewDoesNotStore(t *testing.T) {
	const url = "https://docs.example.test/preview"
	srv := newCrawlService(t, map[string]fakePage{
		url: {title: "Preview", markdown: article("preview")},
	})
	s := newStack(t, srv.URL)
	ctx := context.Background()

	preview, err := s.backend.CrawlPreview(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "Preview", preview.Title)
	assert.Contains(t, preview.Markdown, "preview")

	rows, err := s.backend.ListMemory(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBlocklistGatesCrawlAndRemoval(t *testing.T) {
	const url = "https://tracker.example.test/page"
	srv := newCrawlService(t, map[string]fakePage{
		url: {title: "Tracker", markdown: article("tracker")},
	})
	s := newStack(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, s.backend.BlockDomain(ctx, "tracker.example.test", "ads"))

	_, err := s.backend.CrawlStore(ctx, url, nil, "permanent")
	require.Error(t, err)
	assert.True(t, ingest.IsBlockedErr(err))

	// Wrong token cannot remove the pattern.
	err = s.blocked.Remove(ctx, "tracker.example.test", "wrong")
	require.Error(t, err)

	// The backend holds the configured token, so removal succeeds.
	require.NoError(t, s.backend.UnblockDomain(ctx, "tracker.example.test"))

	_, err = s.backend.CrawlStore(ctx, url, nil, "permanent")
	require.NoError(t, err)
}

func TestSessionScopedTempContent(t *testing.T) {
	const url = "https://scratch.example.test/notes"
	srv := newCrawlService(t, map[string]fakePage{
		url: {title: "Notes", markdown: article("scratchpad")},
	})
	s := newStack(t, srv.URL)
	ctx := context.Background()

	result, err := s.backend.CrawlTemp(ctx, url, nil)
	require.NoError(t, err)
	assert.Equal(t, "session_only", result.Retention)

	rows, err := s.backend.ListMemory(ctx, "session_only", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	removed, err := s.backend.ClearTemp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rows, err = s.backend.ListMemory(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestForgetURLRemovesEverything(t *testing.T) {
	const url = "https://docs.example.test/drop-me"
	srv := newCrawlService(t, map[string]fakePage{
		url: {title: "Drop", markdown: article("ephemeral")},
	})
	s := newStack(t, srv.URL)
	ctx := context.Background()

	_, err := s.backend.CrawlStore(ctx, url, nil, "permanent")
	require.NoError(t, err)

	removed, err := s.backend.ForgetURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Second delete finds nothing.
	_, err = s.backend.ForgetURL(ctx, url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored content")

	hits, err := s.backend.Search(ctx, "ephemeral content", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeepCrawlStoresLinkedPages(t *testing.T) {
	const (
		root  = "https://wiki.example.test/start"
		child = "https://wiki.example.test/child"
		leaf  = "https://wiki.example.test/leaf"
	)
	srv := newCrawlService(t, map[string]fakePage{
		root: {
			title:    "Start",
			markdown: article("root"),
			html: `<a href="https://wiki.example.test/child">child</a>
			       <a href="https://elsewhere.example.test/out">external</a>`,
		},
		child: {
			title:    "Child",
			markdown: article("child"),
			html:     `<a href="https://wiki.example.test/leaf">leaf</a>`,
		},
		leaf: {title: "Leaf", markdown: article("leaf")},
	})
	s := newStack(t, srv.URL)
	ctx := context.Background()

	report, err := s.backend.DeepCrawlStore(ctx, service.DeepParams{
		URL:      root,
		MaxDepth: 2,
		MaxPages: 10,
	})
	require.NoError(t, err)

	// External host is skipped; the same-host chain is followed to depth 2.
	assert.Equal(t, 3, report.PagesVisited)
	assert.Equal(t, 3, report.PagesStored)
	assert.Equal(t, 0, report.PagesFailed)
	assert.Equal(t, 2, report.MaxDepthReached)

	rows, err := s.backend.ListMemory(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestDeepCrawlPreviewLeavesStoreEmpty(t *testing.T) {
	const root = "https://wiki.example.test/start"
	srv := newCrawlService(t, map[string]fakePage{
		root: {title: "Start", markdown: article("root")},
	})
	s := newStack(t, srv.URL)
	ctx := context.Background()

	report, err := s.backend.DeepCrawl(ctx, service.DeepParams{URL: root, MaxDepth: 1, MaxPages: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, report.PagesVisited)
	assert.Equal(t, 0, report.PagesStored)

	rows, err := s.backend.ListMemory(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
