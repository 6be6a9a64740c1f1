package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/service"
	"github.com/webrecall/webrecall/internal/store"
)

type crawlRequest struct {
	URL       string   `json:"url"`
	Tags      []string `json:"tags,omitempty"`
	Retention string   `json:"retention_policy,omitempty"`
}

type deepCrawlRequest struct {
	URL             string   `json:"url"`
	MaxDepth        int      `json:"max_depth,omitempty"`
	MaxPages        int      `json:"max_pages,omitempty"`
	IncludeExternal bool     `json:"include_external,omitempty"`
	ScoreThreshold  float64  `json:"score_threshold,omitempty"`
	// TimeoutSeconds bounds the whole walk; 0 keeps the default.
	TimeoutSeconds float64  `json:"timeout,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Retention      string   `json:"retention_policy,omitempty"`
}

type searchRequest struct {
	Query string   `json:"query"`
	Limit int      `json:"limit,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

type targetSearchRequest struct {
	Query         string   `json:"query"`
	InitialLimit  int      `json:"initial_limit,omitempty"`
	ExpandedLimit int      `json:"expanded_limit,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

type blockRequest struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description,omitempty"`
}

func decode(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return werrors.Validation("body", "request body must be valid JSON")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{"api": "healthy"}
	if s.health != nil {
		components = s.health(r.Context())
	}
	respond(w, http.StatusOK, map[string]any{"components": components})
}

func (s *Server) handleHelp(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]any{"tools": service.Catalog()})
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	preview, err := s.backend.CrawlPreview(r.Context(), req.URL)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, preview)
}

func (s *Server) handleCrawlStore(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	result, err := s.backend.CrawlStore(r.Context(), req.URL, req.Tags, req.Retention)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) handleCrawlTemp(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	result, err := s.backend.CrawlTemp(r.Context(), req.URL, req.Tags)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) handleDeepCrawlStore(w http.ResponseWriter, r *http.Request) {
	var req deepCrawlRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	report, err := s.backend.DeepCrawlStore(r.Context(), service.DeepParams{
		URL:             req.URL,
		MaxDepth:        req.MaxDepth,
		MaxPages:        req.MaxPages,
		IncludeExternal: req.IncludeExternal,
		ScoreThreshold:  req.ScoreThreshold,
		Timeout:         time.Duration(req.TimeoutSeconds * float64(time.Second)),
		Tags:            req.Tags,
		Retention:       req.Retention,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	hits, err := s.backend.Search(r.Context(), req.Query, req.Limit, req.Tags)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, hits)
}

func (s *Server) handleTargetSearch(w http.ResponseWriter, r *http.Request) {
	var req targetSearchRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	result, err := s.backend.TargetSearch(r.Context(), req.Query, req.InitialLimit, req.ExpandedLimit, req.Tags)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	rows, err := s.backend.ListMemory(r.Context(), r.URL.Query().Get("filter"), limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	if rows == nil {
		rows = []store.ContentRow{}
	}
	respond(w, http.StatusOK, rows)
}

func (s *Server) handleForgetURL(w http.ResponseWriter, r *http.Request) {
	removed, err := s.backend.ForgetURL(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, service.Removed{Removed: removed})
}

func (s *Server) handleClearTemp(w http.ResponseWriter, r *http.Request) {
	removed, err := s.backend.ClearTemp(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, service.Removed{Removed: removed})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.backend.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.backend.SyncStatus(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, metrics)
}

func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := s.backend.ListDomains(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, domains)
}

func (s *Server) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.backend.ListBlocked(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, patterns)
}

func (s *Server) handleBlockDomain(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decode(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.backend.BlockDomain(r.Context(), req.Pattern, req.Description); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"pattern": req.Pattern})
}

func (s *Server) handleUnblockDomain(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		// Legacy clients send keyword patterns under a separate key.
		pattern = r.URL.Query().Get("keyword")
	}
	if err := s.backend.UnblockDomain(r.Context(), pattern); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"pattern": pattern})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
