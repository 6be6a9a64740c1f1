package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder counts inner calls to verify cache behavior.
type countingEmbedder struct {
	*StaticEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.StaticEmbedder.Embed(ctx, texts)
}

func (c *countingEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.EmbedOne(ctx, text)
}

func TestCachedEmbedder_HitsSkipInner(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()
	v1, err := cached.EmbedOne(ctx, "repeated query")
	require.NoError(t, err)
	v2, err := cached.EmbedOne(ctx, "repeated query")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_BatchEmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()
	_, err := cached.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())

	vecs, err := cached.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	// Only "c" was a miss
	assert.Equal(t, int64(3), inner.calls.Load())
}

func TestCachedEmbedder_PreservesOrder(t *testing.T) {
	inner := NewStaticEmbedder(32)
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	ctx := context.Background()
	// Warm the cache with "b" so the next batch mixes hits and misses.
	_, err := cached.EmbedOne(ctx, "b")
	require.NoError(t, err)

	got, err := cached.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	direct, err := inner.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, direct, got)
}

func TestCachedEmbedder_PassthroughMetadata(t *testing.T) {
	inner := NewStaticEmbedder(48)
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	assert.Equal(t, 48, cached.Dimensions())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
	assert.NoError(t, cached.Available(context.Background()))
}
