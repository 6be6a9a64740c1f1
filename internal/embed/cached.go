package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the default number of cached vectors.
// 384 dims * 4 bytes * 1024 entries is about 1.5MB.
const DefaultCacheSize = 1024

// CachedEmbedder wraps an Embedder with an LRU cache keyed by text and model.
// Duplicate in-flight texts are collapsed with singleflight so a burst of
// identical queries costs one model call.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
	group singleflight.Group
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a cache of cacheSize entries.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// cacheKey hashes text together with the model name so a model change never
// serves stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

// Embed serves cached vectors where possible and embeds only the misses.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		vecs, err := c.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			results[missIdx[j]] = vec
			c.cache.Add(c.cacheKey(missTexts[j]), vec)
		}
	}

	return results, nil
}

// EmbedOne embeds one text with cache and in-flight collapse.
func (c *CachedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if vec, ok := c.cache.Get(key); ok {
			return vec, nil
		}
		vec, err := c.inner.EmbedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Dimensions returns the inner embedder's vector width.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the inner embedder's model name.
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Available defers to the inner embedder.
func (c *CachedEmbedder) Available(ctx context.Context) error {
	return c.inner.Available(ctx)
}

// Close purges the cache and closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}
