// Package blocklist gates ingestion with wildcard URL patterns persisted in
// the main store. Three pattern shapes are supported: "*.tld" matches hosts
// ending in that suffix, "*kw*" matches any URL containing the keyword, and
// anything else is an exact host match.
package blocklist

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"

	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/store"
	"github.com/webrecall/webrecall/internal/validate"
)

// Verdict is the result of a blocklist check.
type Verdict struct {
	Blocked bool   `json:"blocked"`
	Pattern string `json:"pattern,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Blocklist wraps the persisted pattern set with matching and the
// out-of-band removal authorization.
type Blocklist struct {
	engine *store.Engine
	// removalToken authorizes pattern removal; empty disables removal.
	removalToken string
}

// New creates a blocklist over the storage engine and seeds the default
// pattern set when the table is empty.
func New(ctx context.Context, engine *store.Engine, removalToken string) (*Blocklist, error) {
	b := &Blocklist{engine: engine, removalToken: removalToken}
	if err := engine.SeedBlockedPatterns(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns every pattern.
func (b *Blocklist) List(ctx context.Context) ([]store.BlockedPattern, error) {
	return b.engine.ListBlockedPatterns(ctx)
}

// Add validates and inserts a pattern. Duplicates are rejected by the store.
func (b *Blocklist) Add(ctx context.Context, pattern, description string) error {
	pattern, err := validate.Pattern(pattern)
	if err != nil {
		return err
	}
	if description != "" {
		if description, err = validate.Description(description); err != nil {
			return err
		}
	}
	return b.engine.AddBlockedPattern(ctx, pattern, description)
}

// Remove deletes a pattern after checking the out-of-band removal token.
func (b *Blocklist) Remove(ctx context.Context, pattern, authToken string) error {
	if b.removalToken == "" {
		return werrors.Unauthorized("block removal is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(authToken), []byte(b.removalToken)) != 1 {
		return werrors.Unauthorized("invalid block removal token")
	}

	pattern, err := validate.Pattern(pattern)
	if err != nil {
		return err
	}
	return b.engine.RemoveBlockedPattern(ctx, pattern)
}

// IsBlocked checks a URL against every stored pattern.
func (b *Blocklist) IsBlocked(ctx context.Context, rawURL string) (Verdict, error) {
	patterns, err := b.engine.ListBlockedPatterns(ctx)
	if err != nil {
		return Verdict{}, err
	}

	for _, p := range patterns {
		if Matches(p.Pattern, rawURL) {
			reason := p.Description
			if reason == "" {
				reason = fmt.Sprintf("matches blocked pattern %s", p.Pattern)
			}
			return Verdict{Blocked: true, Pattern: p.Pattern, Reason: reason}, nil
		}
	}
	return Verdict{}, nil
}

// Check is the ingestion gate: it returns a BlockedURL error when the URL
// matches any pattern.
func (b *Blocklist) Check(ctx context.Context, rawURL string) error {
	verdict, err := b.IsBlocked(ctx, rawURL)
	if err != nil {
		return err
	}
	if verdict.Blocked {
		return werrors.BlockedURL(rawURL, verdict.Pattern)
	}
	return nil
}

// Matches applies one pattern to one URL.
func Matches(pattern, rawURL string) bool {
	host := hostOf(rawURL)
	lowerURL := strings.ToLower(rawURL)
	pattern = strings.ToLower(pattern)

	switch {
	case strings.HasPrefix(pattern, "*."):
		// Suffix match on the domain: "*.ru" blocks example.ru and
		// sub.example.ru, but not example.run.
		suffix := pattern[1:] // ".ru"
		return strings.HasSuffix(host, suffix)
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 2:
		keyword := strings.Trim(pattern, "*")
		return strings.Contains(lowerURL, keyword)
	default:
		return host == pattern
	}
}

// hostOf extracts the lowercased host, tolerating scheme-less input.
func hostOf(rawURL string) string {
	candidate := rawURL
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}
