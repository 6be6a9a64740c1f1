package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	werrors "github.com/webrecall/webrecall/internal/errors"
)

// authGate is the bearer token check plus a per-token rolling rate window.
// Limits are process-local; a restart resets them.
type authGate struct {
	mu      sync.Mutex
	apiKey  string
	limit   int
	windows map[string][]time.Time
	now     func() time.Time
}

func newAuthGate(apiKey string, limitPerMinute int) *authGate {
	return &authGate{
		apiKey:  apiKey,
		limit:   limitPerMinute,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Update applies live config changes.
func (g *authGate) Update(apiKey string, limitPerMinute int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.apiKey = apiKey
	g.limit = limitPerMinute
}

// middleware enforces auth then rate limiting on every request it wraps.
func (g *authGate) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := g.authorize(r)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := g.allow(token); err != nil {
			respondError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize validates the bearer token with a constant-time compare.
func (g *authGate) authorize(r *http.Request) (string, error) {
	g.mu.Lock()
	expected := g.apiKey
	g.mu.Unlock()

	if expected == "" {
		// No key configured: open API, rate-limited per client address.
		return r.RemoteAddr, nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", werrors.Unauthorized("missing bearer token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return "", werrors.Unauthorized("invalid bearer token")
	}
	return token, nil
}

// allow counts the request against the token's rolling 60-second window.
func (g *authGate) allow(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-time.Minute)

	recent := g.windows[token][:0]
	for _, t := range g.windows[token] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if g.limit > 0 && len(recent) >= g.limit {
		g.windows[token] = recent
		return werrors.RateLimited("rate limit exceeded, retry in up to 60s")
	}

	g.windows[token] = append(recent, now)
	return nil
}
