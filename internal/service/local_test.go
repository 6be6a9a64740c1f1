package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webrecall/webrecall/internal/blocklist"
	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/crawl"
	"github.com/webrecall/webrecall/internal/embed"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/fetch"
	"github.com/webrecall/webrecall/internal/ingest"
	"github.com/webrecall/webrecall/internal/search"
	"github.com/webrecall/webrecall/internal/session"
	"github.com/webrecall/webrecall/internal/store"
)

type fixedFetcher struct {
	markdown string
}

func (f *fixedFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	return &fetch.Page{
		URL:      url,
		Title:    "Fixture",
		Markdown: f.markdown,
		Status:   200,
	}, nil
}

func fixtureText() string {
	words := make([]string, 60)
	for i := range words {
		words[i] = "fixture" + string(rune('a'+i%26))
	}
	return strings.Join(words, " ")
}

func newTestLocal(t *testing.T, removalToken string) *Local {
	t.Helper()
	ctx := context.Background()

	embedder := embed.NewStaticEmbedder(32)
	engine, err := store.OpenMemory(embedder)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	blocked, err := blocklist.New(ctx, engine, removalToken)
	require.NoError(t, err)

	sess, err := session.Start(ctx, engine)
	require.NoError(t, err)

	fetcher := &fixedFetcher{markdown: fixtureText()}
	pipeline := ingest.New(fetcher, blocked, engine, nil, nil)
	searcher := search.New(engine, embedder, config.SearchConfig{
		OverfetchFactor: 4, MaxLimit: 1000, DefaultLimit: 10,
	}, nil)
	deep := crawl.NewDeep(fetcher, pipeline, blocked, config.CrawlConfig{
		DefaultMaxDepth: 2, DefaultMaxPages: 10, LinksPerPage: 5,
	}, nil)

	return NewLocal(LocalDeps{
		Engine:       engine,
		Searcher:     searcher,
		Pipeline:     pipeline,
		Deep:         deep,
		Fetcher:      fetcher,
		Blocked:      blocked,
		Session:      sess,
		RemovalToken: removalToken,
	})
}

func TestLocal_CrawlStoreAndSearchRoundTrip(t *testing.T) {
	l := newTestLocal(t, "")
	ctx := context.Background()

	res, err := l.CrawlStore(ctx, "https://example.com/doc", []string{"docs"}, "permanent")
	require.NoError(t, err)
	assert.True(t, res.Success)

	hits, err := l.Search(ctx, "fixturea fixtureb", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "https://example.com/doc", hits[0].URL)
}

func TestLocal_CrawlPreviewDoesNotStore(t *testing.T) {
	l := newTestLocal(t, "")
	ctx := context.Background()

	preview, err := l.CrawlPreview(ctx, "https://example.com/peek")
	require.NoError(t, err)
	assert.Equal(t, "Fixture", preview.Title)
	assert.NotEmpty(t, preview.Markdown)

	rows, err := l.ListMemory(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLocal_CrawlTempBindsSession(t *testing.T) {
	l := newTestLocal(t, "")
	ctx := context.Background()

	_, err := l.CrawlTemp(ctx, "https://example.com/temp", nil)
	require.NoError(t, err)

	rows, err := l.ListMemory(ctx, "session_only", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, l.sess.ID, rows[0].SessionID)

	removed, err := l.ClearTemp(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestLocal_ForgetURLNotFound(t *testing.T) {
	l := newTestLocal(t, "")

	_, err := l.ForgetURL(context.Background(), "https://example.com/never-stored")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.GetCode(err))
}

func TestLocal_UnblockDisabledWithoutToken(t *testing.T) {
	l := newTestLocal(t, "")

	err := l.UnblockDomain(context.Background(), "*.ru")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeUnauthorized, werrors.GetCode(err))
}

func TestLocal_BlockUnblockWithToken(t *testing.T) {
	l := newTestLocal(t, "token-1")
	ctx := context.Background()

	require.NoError(t, l.BlockDomain(ctx, "*.example", "test block"))
	patterns, err := l.ListBlocked(ctx)
	require.NoError(t, err)

	found := false
	for _, p := range patterns {
		if p.Pattern == "*.example" {
			found = true
		}
	}
	assert.True(t, found)

	require.NoError(t, l.UnblockDomain(ctx, "*.example"))
}

func TestLocal_StatsIncludesSessionAndStore(t *testing.T) {
	l := newTestLocal(t, "")
	ctx := context.Background()

	_, err := l.CrawlStore(ctx, "https://example.com/s", nil, "permanent")
	require.NoError(t, err)

	report, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Store.ContentRows)
	assert.Equal(t, l.sess.ID, report.SessionID)
	assert.Nil(t, report.Sync)
}

func TestLocal_SyncStatusWithoutMirror(t *testing.T) {
	l := newTestLocal(t, "")

	_, err := l.SyncStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.GetCode(err))
}
