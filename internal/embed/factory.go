package embed

import (
	"fmt"
	"strings"

	"github.com/webrecall/webrecall/internal/config"
)

// Provider names accepted by the factory.
const (
	ProviderOllama = "ollama"
	ProviderStatic = "static"
)

// NewFromConfig builds the embedder stack selected by cfg: the provider,
// wrapped in a cache when cache_size is positive.
func NewFromConfig(cfg config.EmbeddingConfig) (Embedder, error) {
	var inner Embedder

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		inner = NewRemoteEmbedder(RemoteConfig{
			Host:       cfg.URL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
	case ProviderStatic:
		inner = NewStaticEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: ollama, static)", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
