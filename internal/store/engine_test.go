package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webrecall/webrecall/internal/embed"
	werrors "github.com/webrecall/webrecall/internal/errors"
)

// newTestEngine creates an in-memory engine with a deterministic embedder.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	db, err := openHandle(":memory:", false)
	require.NoError(t, err)

	e, err := NewWithDB(db, "", embed.NewStaticEmbedder(32))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// words builds a space-joined sequence of n distinct words.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ")
}

func countRows(t *testing.T, e *Engine, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestUpsertContent_InsertThenReplace(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Given: a fresh URL
	id1, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/a", Title: "A", Content: words(100),
		Retention: "permanent", Tags: "go,testing",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id1, int64(1))

	// When: the same URL is upserted again
	id2, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/a", Title: "A2", Content: words(80),
		Retention: "permanent",
	})
	require.NoError(t, err)

	// Then: the row is replaced, never duplicated
	assert.Equal(t, id1, id2)
	assert.Equal(t, int64(1), countRows(t, e, "crawled_content"))

	row, err := e.GetContentByURL(ctx, "https://example.test/a")
	require.NoError(t, err)
	assert.Equal(t, "A2", row.Title)
}

func TestUpsertContent_URLUniqueness(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.UpsertContent(ctx, UpsertParams{
			URL: "https://example.test/same", Content: words(60), Retention: "permanent",
		})
		require.NoError(t, err)
	}

	var dups int64
	require.NoError(t, e.db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT url FROM crawled_content GROUP BY url HAVING COUNT(*) > 1
		)`).Scan(&dups))
	assert.Zero(t, dups)
}

func TestGenerateAndStoreVectors_ChunkVectorParity(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	text := words(1200)
	id, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/long", Content: text, Retention: "permanent",
	})
	require.NoError(t, err)

	nChunks, nKept, err := e.GenerateAndStoreVectors(ctx, id, text)
	require.NoError(t, err)

	// ceil((1200-50)/(500-50)) = 3 windows
	assert.Equal(t, 3, nChunks)
	assert.Equal(t, 3, nKept)
	assert.Equal(t, int64(3), countRows(t, e, "content_chunks"))
	assert.Equal(t, int64(3), countRows(t, e, "content_vectors"))
}

func TestGenerateAndStoreVectors_ReplaceDropsOldVectors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first := words(1200)
	id, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/re", Content: first, Retention: "permanent",
	})
	require.NoError(t, err)
	_, _, err = e.GenerateAndStoreVectors(ctx, id, first)
	require.NoError(t, err)

	// Re-ingest with shorter text: ceil((800-50)/450) = 2 windows
	second := words(800)
	id2, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/re", Content: second, Retention: "permanent",
	})
	require.NoError(t, err)
	require.Equal(t, id, id2)
	_, nKept, err := e.GenerateAndStoreVectors(ctx, id2, second)
	require.NoError(t, err)

	assert.Equal(t, 2, nKept)
	assert.Equal(t, int64(2), countRows(t, e, "content_chunks"))
	assert.Equal(t, int64(2), countRows(t, e, "content_vectors"))
}

func TestGenerateAndStoreVectors_OffsetsSliceContent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	text := words(700)
	id, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/off", Content: text, Retention: "permanent",
	})
	require.NoError(t, err)
	_, _, err = e.GenerateAndStoreVectors(ctx, id, text)
	require.NoError(t, err)

	rows, err := e.db.Query(`SELECT chunk_text, char_start, char_end FROM content_chunks WHERE content_id = ?`, id)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var chunkText string
		var start, end int
		require.NoError(t, rows.Scan(&chunkText, &start, &end))
		assert.Equal(t, chunkText, text[start:end])
	}
}

func TestSearchVectors_RanksAndJoins(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	docs := map[string]string{
		"https://example.test/go":   "golang goroutines channels concurrency " + words(60),
		"https://example.test/bake": "sourdough bread flour yeast baking oven " + words(60),
	}
	for u, text := range docs {
		id, err := e.UpsertContent(ctx, UpsertParams{URL: u, Content: text, Retention: "permanent"})
		require.NoError(t, err)
		_, _, err = e.GenerateAndStoreVectors(ctx, id, text)
		require.NoError(t, err)
	}

	qv, err := e.embedder.EmbedOne(ctx, "golang concurrency with goroutines")
	require.NoError(t, err)

	hits, err := e.SearchVectors(ctx, qv, 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, "https://example.test/go", hits[0].URL)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Similarity, hits[i-1].Similarity)
	}
	assert.NotEmpty(t, hits[0].ChunkText)
}

func TestForgetURL_RemovesAllDerivedRows(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	text := words(600)
	id, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/gone", Content: text, Retention: "permanent",
	})
	require.NoError(t, err)
	_, _, err = e.GenerateAndStoreVectors(ctx, id, text)
	require.NoError(t, err)
	require.NoError(t, e.EnqueueKG(ctx, id, KGStatusPending, ""))

	removed, err := e.ForgetURL(ctx, "https://example.test/gone")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	assert.Zero(t, countRows(t, e, "crawled_content"))
	assert.Zero(t, countRows(t, e, "content_chunks"))
	assert.Zero(t, countRows(t, e, "content_vectors"))
	assert.Zero(t, countRows(t, e, "kg_processing_queue"))

	removed, err = e.ForgetURL(ctx, "https://example.test/gone")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestClearSession_OnlySessionRows(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/perm", Content: words(60), Retention: "permanent",
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := e.UpsertContent(ctx, UpsertParams{
			URL:       fmt.Sprintf("https://example.test/tmp%d", i),
			Content:   words(60),
			Retention: "session_only",
			SessionID: "sess-1",
		})
		require.NoError(t, err)
	}

	removed, err := e.ClearSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, int64(1), countRows(t, e, "crawled_content"))
}

func TestSweepExpired_RemovesOldNDaysRows(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	id, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/old", Content: words(60), Retention: "30_days",
	})
	require.NoError(t, err)

	_, err = e.db.Exec(`UPDATE crawled_content SET crawled_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-31*24*time.Hour), id)
	require.NoError(t, err)

	_, err = e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/fresh", Content: words(60), Retention: "30_days",
	})
	require.NoError(t, err)

	removed, err := e.SweepExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = e.GetContentByURL(ctx, "https://example.test/old")
	assert.Error(t, err)
	_, err = e.GetContentByURL(ctx, "https://example.test/fresh")
	assert.NoError(t, err)
}

func TestBlockedPatterns_CRUDAndSeed(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.SeedBlockedPatterns(ctx))
	patterns, err := e.ListBlockedPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, len(DefaultBlockedPatterns))

	// Seeding again is a no-op
	require.NoError(t, e.SeedBlockedPatterns(ctx))
	patterns, err = e.ListBlockedPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, len(DefaultBlockedPatterns))

	require.NoError(t, e.AddBlockedPattern(ctx, "*.test", "test TLD"))
	err = e.AddBlockedPattern(ctx, "*.test", "dup")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeInvalidInput, werrors.GetCode(err))

	require.NoError(t, e.RemoveBlockedPattern(ctx, "*.test"))
	err = e.RemoveBlockedPattern(ctx, "*.test")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.GetCode(err))
}

func TestStats_Counts(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	text := words(600)
	id, err := e.UpsertContent(ctx, UpsertParams{
		URL: "https://example.test/s", Content: text, Retention: "permanent",
	})
	require.NoError(t, err)
	_, _, err = e.GenerateAndStoreVectors(ctx, id, text)
	require.NoError(t, err)
	require.NoError(t, e.RegisterSession(ctx, "sess-1"))
	require.NoError(t, e.EnqueueKG(ctx, id, KGStatusSkipped, "kg_service_unavailable"))

	s, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ContentRows)
	assert.Equal(t, s.ChunkRows, s.VectorRows)
	assert.Equal(t, int64(1), s.SessionRows)
	assert.Equal(t, int64(1), s.ByRetention["permanent"])
	assert.Equal(t, int64(1), s.KGQueueByState[KGStatusSkipped])
}

// faultyEmbedder answers like the static embedder for failAfter calls, then
// fails every Embed.
type faultyEmbedder struct {
	*embed.StaticEmbedder
	calls     int
	failAfter int
}

func (f *faultyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls > f.failAfter {
		return nil, werrors.Embed("embedding service unavailable", nil)
	}
	return f.StaticEmbedder.Embed(ctx, texts)
}

func TestStoreContent_StoresRowAndChunksTogether(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	id, total, kept, err := e.StoreContent(ctx, UpsertParams{
		URL: "https://example.test/atomic", Title: "Atomic", Content: words(400),
		Retention: "permanent",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id, int64(1))
	assert.Greater(t, kept, 0)
	assert.LessOrEqual(t, kept, total)
	assert.Equal(t, int64(kept), countRows(t, e, "content_chunks"))
	assert.Equal(t, int64(kept), countRows(t, e, "content_vectors"))
}

func TestStoreContent_ReplaceLeavesNoLeftovers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, _, _, err := e.StoreContent(ctx, UpsertParams{
		URL: "https://example.test/replace", Content: words(600), Retention: "permanent",
	})
	require.NoError(t, err)

	_, _, kept2, err := e.StoreContent(ctx, UpsertParams{
		URL: "https://example.test/replace", Content: words(200), Retention: "permanent",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(kept2), countRows(t, e, "content_chunks"))
	assert.Equal(t, int64(kept2), countRows(t, e, "content_vectors"))
}

func TestStoreContent_EmbedFailureKeepsPriorVersion(t *testing.T) {
	flaky := &faultyEmbedder{StaticEmbedder: embed.NewStaticEmbedder(32), failAfter: 1}
	db, err := openHandle(":memory:", false)
	require.NoError(t, err)
	e, err := NewWithDB(db, "", flaky)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	ctx := context.Background()

	_, _, kept, err := e.StoreContent(ctx, UpsertParams{
		URL: "https://example.test/a", Title: "First", Content: words(400),
		Retention: "permanent",
	})
	require.NoError(t, err)
	require.Greater(t, kept, 0)
	chunksBefore := countRows(t, e, "content_chunks")

	// Re-ingest of the same URL fails at the embed stage.
	_, _, _, err = e.StoreContent(ctx, UpsertParams{
		URL: "https://example.test/a", Title: "Second", Content: "replacement " + words(400),
		Retention: "permanent",
	})
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeEmbedFailed, werrors.GetCode(err))

	// The stored version is untouched: old row text, old chunks, old vectors.
	row, err := e.GetContentByURL(ctx, "https://example.test/a")
	require.NoError(t, err)
	assert.Equal(t, "First", row.Title)
	assert.NotContains(t, row.Content, "replacement")
	assert.Equal(t, chunksBefore, countRows(t, e, "content_chunks"))
	assert.Equal(t, chunksBefore, countRows(t, e, "content_vectors"))
}
