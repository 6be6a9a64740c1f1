package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"

	werrors "github.com/webrecall/webrecall/internal/errors"
)

// Hash-projection weights.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// tokenRe matches alphanumeric token runs.
var tokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder produces deterministic hash-projection vectors without any
// external service. Semantic quality is low, but identical inputs always map
// to identical vectors, which tests and offline operation rely on.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder of the given width. A width of
// 0 selects DefaultDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates one normalized vector per text.
func (e *StaticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, werrors.Embed("embedder is closed", nil)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, werrors.Embed("embedding cancelled", ctx.Err())
		default:
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (e *StaticEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// vector projects tokens and character trigrams into the vector space.
func (e *StaticEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)

	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return v
	}

	for _, token := range tokenRe.FindAllString(trimmed, -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		v[int(h.Sum32())%e.dims] += tokenWeight

		for i := 0; i+ngramSize <= len(token); i++ {
			g := fnv.New32a()
			_, _ = g.Write([]byte(token[i : i+ngramSize]))
			v[int(g.Sum32())%e.dims] += ngramWeight
		}
	}

	return Normalize(v)
}

// Dimensions returns the vector width.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName identifies the static provider.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash"
}

// Available always succeeds while the embedder is open.
func (e *StaticEmbedder) Available(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return werrors.Embed("embedder is closed", nil)
	}
	return nil
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
