package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	werrors "github.com/webrecall/webrecall/internal/errors"
)

// RemoteConfig configures the Ollama-style HTTP embedder.
type RemoteConfig struct {
	// Host is the base URL of the embedding service.
	Host string
	// Model is the embedding model name.
	Model string
	// Dimensions is the expected vector width; responses of a different
	// width are rejected.
	Dimensions int
	// BatchSize is the number of texts per request.
	BatchSize int
	// Timeout bounds each request.
	Timeout time.Duration
	// MaxRetries is the retry budget for transient failures.
	MaxRetries int
}

// RemoteEmbedder calls an Ollama-compatible /api/embed endpoint.
type RemoteEmbedder struct {
	client *http.Client
	cfg    RemoteConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*RemoteEmbedder)(nil)

// embedRequest is the /api/embed request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the /api/embed response body.
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewRemoteEmbedder creates a remote embedder. The service is not contacted
// until the first call; use Available for a startup probe.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	return &RemoteEmbedder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		cfg: cfg,
	}
}

// Embed generates normalized embeddings for texts, batching requests.
func (e *RemoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatchWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

// EmbedOne embeds a single text.
func (e *RemoteEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// embedBatchWithRetry retries transient failures with exponential backoff
// starting at 100ms.
func (e *RemoteEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, werrors.Embed("embedding cancelled", ctx.Err())
			case <-time.After(time.Duration(100<<uint(attempt-1)) * time.Millisecond):
			}
		}

		vecs, err := e.embedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, werrors.Embed(fmt.Sprintf("embedding failed after %d attempts", e.cfg.MaxRetries), lastErr)
}

// embedBatch performs one request.
func (e *RemoteEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, payload)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings))
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, vec := range parsed.Embeddings {
		if len(vec) != e.cfg.Dimensions {
			return nil, fmt.Errorf("expected %d dimensions, got %d", e.cfg.Dimensions, len(vec))
		}
		out[i] = Normalize(vec)
	}
	return out, nil
}

// Dimensions returns the configured vector width.
func (e *RemoteEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// ModelName returns the model identifier.
func (e *RemoteEmbedder) ModelName() string {
	return e.cfg.Model
}

// Available probes the service with a one-word embedding.
func (e *RemoteEmbedder) Available(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := e.embedBatch(probeCtx, []string{"ping"})
	if err != nil {
		return werrors.Embed("embedding service unavailable", err)
	}
	return nil
}

// Close releases idle connections.
func (e *RemoteEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if t, ok := e.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

func (e *RemoteEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return werrors.Embed("embedder is closed", nil)
	}
	return nil
}
