// Package embed adapts external embedding models behind one interface.
//
// Three implementations are provided: a remote Ollama-style HTTP embedder,
// a deterministic hash-projection embedder for tests and offline operation,
// and an LRU-caching wrapper that also collapses duplicate in-flight texts.
package embed

import (
	"context"
	"math"
	"time"
)

// Defaults shared across providers.
const (
	// DefaultDimensions is the embedding width of the reference model
	// (all-minilm).
	DefaultDimensions = 384

	// DefaultBatchSize is the number of texts sent per remote request.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single remote request.
	MaxBatchSize = 256

	// DefaultTimeout bounds one remote embedding request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retry attempts for transient
	// remote failures.
	DefaultMaxRetries = 3
)

// Embedder maps text chunks to fixed-width float32 vectors. Implementations
// must be deterministic for a fixed model and input ordering, and must return
// exactly one vector per input text.
type Embedder interface {
	// Embed returns one vector per input text, row-major, each of
	// Dimensions() width.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector width.
	Dimensions() int

	// ModelName identifies the underlying model.
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Normalize scales a vector to unit length so that L2 distance doubles as
// cosine distance. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
