package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webrecall/webrecall/internal/blocklist"
	"github.com/webrecall/webrecall/internal/embed"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/fetch"
	"github.com/webrecall/webrecall/internal/store"
)

type stubFetcher struct {
	page *fetch.Page
	err  error
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (*fetch.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	page := *s.page
	page.URL = url
	return &page, nil
}

type stubKG struct{ healthy bool }

func (s *stubKG) Healthy(context.Context) bool { return s.healthy }

func longArticle() string {
	words := make([]string, 120)
	for i := range words {
		words[i] = "paragraph" + string(rune('a'+i%26))
	}
	return "# Heading\n\n" + strings.Join(words, " ")
}

func newTestPipeline(t *testing.T, fetcher Fetcher, kg KGHealth) (*Pipeline, *store.Engine) {
	t.Helper()

	engine, err := store.OpenMemory(embed.NewStaticEmbedder(32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	blocked, err := blocklist.New(context.Background(), engine, "")
	require.NoError(t, err)

	return New(fetcher, blocked, engine, kg, nil), engine
}

func TestIngest_StoresContentAndVectors(t *testing.T) {
	fetcher := &stubFetcher{page: &fetch.Page{
		Title:    "Article",
		Markdown: longArticle(),
		Status:   200,
	}}
	p, engine := newTestPipeline(t, fetcher, &stubKG{healthy: false})
	ctx := context.Background()

	res, err := p.Ingest(ctx, Request{
		URL:       "https://example.com/article",
		Retention: "permanent",
		Tags:      []string{"go", "testing"},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Greater(t, res.ContentID, int64(0))
	assert.Greater(t, res.ChunksStored, 0)
	assert.Equal(t, "permanent", res.Retention)

	row, err := engine.GetContentByURL(ctx, "https://example.com/article")
	require.NoError(t, err)
	assert.Equal(t, "Article", row.Title)
	assert.Equal(t, "go,testing", row.Tags)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(res.ChunksStored), stats.VectorRows)
	assert.Equal(t, int64(1), stats.KGQueueByState[store.KGStatusSkipped])
}

func TestIngest_KGPendingWhenHealthy(t *testing.T) {
	fetcher := &stubFetcher{page: &fetch.Page{Title: "A", Markdown: longArticle()}}
	p, engine := newTestPipeline(t, fetcher, &stubKG{healthy: true})
	ctx := context.Background()

	_, err := p.Ingest(ctx, Request{URL: "https://example.com/a", Retention: "permanent"})
	require.NoError(t, err)

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.KGQueueByState[store.KGStatusPending])
}

func TestIngest_BlockedURLRejectedBeforeFetch(t *testing.T) {
	fetcher := &stubFetcher{err: werrors.Fetch("network", "must not be called", nil)}
	p, _ := newTestPipeline(t, fetcher, nil)

	_, err := p.Ingest(context.Background(), Request{
		URL:       "https://example.ru/doc",
		Retention: "permanent",
	})
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeBlockedURL, werrors.GetCode(err))
	assert.True(t, IsBlockedErr(err))
}

func TestIngest_InvalidRetentionRejected(t *testing.T) {
	p, _ := newTestPipeline(t, &stubFetcher{page: &fetch.Page{Markdown: "x"}}, nil)

	_, err := p.Ingest(context.Background(), Request{
		URL:       "https://example.com/",
		Retention: "forever",
	})
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeInvalidInput, werrors.GetCode(err))
}

func TestIngest_EmptyRetentionDefaultsToPermanent(t *testing.T) {
	fetcher := &stubFetcher{page: &fetch.Page{Markdown: longArticle()}}
	p, _ := newTestPipeline(t, fetcher, nil)

	res, err := p.Ingest(context.Background(), Request{URL: "https://example.com/d"})
	require.NoError(t, err)
	assert.Equal(t, "permanent", res.Retention)
}

func TestIngest_FetchFailurePropagates(t *testing.T) {
	fetcher := &stubFetcher{err: werrors.Fetch("timeout", "upstream stalled", nil)}
	p, _ := newTestPipeline(t, fetcher, nil)

	_, err := p.Ingest(context.Background(), Request{
		URL:       "https://example.com/slow",
		Retention: "permanent",
	})
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeFetchTimeout, werrors.GetCode(err))
}

func TestIngest_SessionOnlyCarriesSessionID(t *testing.T) {
	fetcher := &stubFetcher{page: &fetch.Page{Markdown: longArticle()}}
	p, engine := newTestPipeline(t, fetcher, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, Request{
		URL:       "https://example.com/temp",
		Retention: "session_only",
		SessionID: "sess-1",
	})
	require.NoError(t, err)

	row, err := engine.GetContentByURL(ctx, "https://example.com/temp")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", row.SessionID)
	assert.Equal(t, "session_only", row.Retention)
}
