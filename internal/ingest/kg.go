package ingest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/webrecall/webrecall/internal/config"
	werrors "github.com/webrecall/webrecall/internal/errors"
)

// KGProbe checks the knowledge-graph service health behind a circuit breaker
// so a dead service does not cost one probe timeout per ingest.
type KGProbe struct {
	url        string
	httpClient *http.Client
	breaker    *werrors.CircuitBreaker
}

// NewKGProbe builds a probe for the configured service. An empty URL yields a
// probe that always reports unhealthy.
func NewKGProbe(cfg config.KGConfig) *KGProbe {
	return &KGProbe{
		url:        strings.TrimRight(cfg.ServiceURL, "/"),
		httpClient: &http.Client{Timeout: 3 * time.Second},
		breaker:    werrors.NewCircuitBreaker("kg-service"),
	}
}

// Healthy reports whether queue rows should be written as pending.
func (p *KGProbe) Healthy(ctx context.Context) bool {
	if p.url == "" {
		return false
	}
	if !p.breaker.Allow() {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/health", nil)
	if err != nil {
		p.breaker.RecordFailure()
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.breaker.RecordFailure()
		return false
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.breaker.RecordFailure()
		return false
	}
	p.breaker.RecordSuccess()
	return true
}
