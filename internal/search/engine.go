// Package search ranks stored content against a query embedding. It layers
// tag filtering, URL dedup, and tag-expansion (target search) over the raw
// vector KNN of the store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/embed"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/store"
	"github.com/webrecall/webrecall/internal/validate"
)

// Hit is one ranked search result; one URL appears at most once, represented
// by its best-scoring chunk.
type Hit struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Similarity float64  `json:"similarity"`
	ChunkText  string   `json:"chunk_text"`
	ChunkIndex int      `json:"chunk_index"`
	Tags       []string `json:"tags,omitempty"`
}

// TargetResult is the outcome of a tag-expanded search.
type TargetResult struct {
	Hits           []Hit    `json:"hits"`
	DiscoveredTags []string `json:"discovered_tags,omitempty"`
	ExpansionUsed  bool     `json:"expansion_used"`
}

// Engine runs semantic queries.
type Engine struct {
	store    *store.Engine
	embedder embed.Embedder
	cfg      config.SearchConfig
	logger   *slog.Logger
}

// New builds a search engine over the store and query embedder.
func New(st *store.Engine, embedder embed.Embedder, cfg config.SearchConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    st,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With("component", "search"),
	}
}

// Search embeds the query and returns the top-limit distinct URLs. The vector
// query over-fetches because tag filtering and URL dedup thin the hit list.
func (e *Engine) Search(ctx context.Context, query string, limit int, tags []string) ([]Hit, error) {
	cleaned, err := validate.Query(query)
	if err != nil {
		return nil, err
	}
	limit, err = e.resolveLimit(limit)
	if err != nil {
		return nil, err
	}

	queryVec, err := e.embedder.EmbedOne(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	overfetch := e.cfg.OverfetchFactor
	if overfetch <= 0 {
		overfetch = 4
	}
	k := limit * overfetch
	if max := e.cfg.MaxLimit; max > 0 && k > max {
		k = max
	}

	raw, err := e.store.SearchVectors(ctx, queryVec, k)
	if err != nil {
		return nil, err
	}

	hits := dedupeByURL(filterByTags(raw, tags))
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	e.logger.Debug("search completed",
		slog.String("query", cleaned),
		slog.Int("raw_hits", len(raw)),
		slog.Int("returned", len(hits)))
	return hits, nil
}

// TargetSearch runs a first pass, collects the tags its hits carry, and when
// any are found re-runs with the caller's tags plus the discovered ones. The
// caller's tags are a floor: they are never dropped from the second pass.
func (e *Engine) TargetSearch(ctx context.Context, query string, initialLimit, expandedLimit int, tags []string) (*TargetResult, error) {
	expandedLimit, err := e.resolveLimit(expandedLimit)
	if err != nil {
		return nil, err
	}

	first, err := e.Search(ctx, query, initialLimit, tags)
	if err != nil {
		return nil, err
	}

	discovered := discoverTags(first, tags)
	if len(discovered) == 0 {
		if len(first) > expandedLimit {
			first = first[:expandedLimit]
		}
		return &TargetResult{Hits: first, ExpansionUsed: false}, nil
	}

	expandedTags := append(append([]string{}, tags...), discovered...)
	second, err := e.Search(ctx, query, expandedLimit, expandedTags)
	if err != nil {
		return nil, err
	}

	merged := mergeHits(first, second)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Similarity > merged[j].Similarity })
	if len(merged) > expandedLimit {
		merged = merged[:expandedLimit]
	}

	return &TargetResult{
		Hits:           merged,
		DiscoveredTags: discovered,
		ExpansionUsed:  true,
	}, nil
}

// resolveLimit substitutes the default for an omitted limit and rejects
// out-of-range values.
func (e *Engine) resolveLimit(limit int) (int, error) {
	if limit == 0 {
		if e.cfg.DefaultLimit > 0 {
			return e.cfg.DefaultLimit, nil
		}
		return 10, nil
	}
	if limit < 0 {
		return 0, werrors.Validation("limit", "must be at least 1")
	}
	if max := e.cfg.MaxLimit; max > 0 && limit > max {
		return 0, werrors.Validation("limit", fmt.Sprintf("must not exceed %d", max))
	}
	return limit, nil
}

// filterByTags keeps hits sharing at least one requested tag (ANY-match).
// Without requested tags everything passes.
func filterByTags(raw []store.VectorHit, tags []string) []store.VectorHit {
	if len(tags) == 0 {
		return raw
	}
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	var kept []store.VectorHit
	for _, hit := range raw {
		for _, t := range splitTags(hit.Tags) {
			if _, ok := want[t]; ok {
				kept = append(kept, hit)
				break
			}
		}
	}
	return kept
}

// dedupeByURL keeps the best-scoring chunk per URL.
func dedupeByURL(raw []store.VectorHit) []Hit {
	best := make(map[string]store.VectorHit)
	var order []string
	for _, hit := range raw {
		prev, seen := best[hit.URL]
		if !seen {
			order = append(order, hit.URL)
			best[hit.URL] = hit
			continue
		}
		if hit.Similarity > prev.Similarity {
			best[hit.URL] = hit
		}
	}

	hits := make([]Hit, 0, len(order))
	for _, u := range order {
		hit := best[u]
		hits = append(hits, Hit{
			URL:        hit.URL,
			Title:      hit.Title,
			Similarity: hit.Similarity,
			ChunkText:  hit.ChunkText,
			ChunkIndex: hit.ChunkIndex,
			Tags:       splitTags(hit.Tags),
		})
	}
	return hits
}

// discoverTags lists tags carried by hits, minus the caller's own, ordered by
// frequency then lexically.
func discoverTags(hits []Hit, userTags []string) []string {
	own := make(map[string]struct{}, len(userTags))
	for _, t := range userTags {
		own[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	freq := make(map[string]int)
	for _, hit := range hits {
		for _, t := range hit.Tags {
			if _, mine := own[t]; mine {
				continue
			}
			freq[t]++
		}
	}

	tags := make([]string, 0, len(freq))
	for t := range freq {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if freq[tags[i]] != freq[tags[j]] {
			return freq[tags[i]] > freq[tags[j]]
		}
		return tags[i] < tags[j]
	})
	return tags
}

// mergeHits unions two result sets, keeping the best similarity per URL.
func mergeHits(a, b []Hit) []Hit {
	best := make(map[string]Hit)
	var order []string
	for _, hit := range append(append([]Hit{}, a...), b...) {
		prev, seen := best[hit.URL]
		if !seen {
			order = append(order, hit.URL)
			best[hit.URL] = hit
			continue
		}
		if hit.Similarity > prev.Similarity {
			best[hit.URL] = hit
		}
	}

	merged := make([]Hit, 0, len(order))
	for _, u := range order {
		merged = append(merged, best[u])
	}
	return merged
}

func splitTags(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.ToLower(strings.TrimSpace(p)); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
