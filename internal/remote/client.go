// Package remote implements service.Backend by forwarding every operation to
// another instance's HTTP API. It is used when IS_SERVER is false: the local
// process runs the MCP tool surface while storage, crawling, and search
// happen on the configured remote.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/crawl"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/ingest"
	"github.com/webrecall/webrecall/internal/mirror"
	"github.com/webrecall/webrecall/internal/search"
	"github.com/webrecall/webrecall/internal/service"
	"github.com/webrecall/webrecall/internal/store"
)

// envelope mirrors the API's response wrapper.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Client forwards Backend operations over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a forwarding client for the configured remote.
func New(cfg config.RemoteConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger.With("component", "remote"),
	}
}

// do runs one request and decodes the envelope data into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return werrors.New(werrors.ErrCodeInvalidInput, "cannot encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return werrors.Fetch("network", "cannot build remote request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return werrors.Fetch("timeout", "remote API did not answer", err)
		}
		return werrors.Fetch("network", "remote API unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return werrors.Fetch("malformed",
			fmt.Sprintf("remote API returned undecodable body (status %d)", resp.StatusCode), err)
	}

	if !env.Success || resp.StatusCode >= 400 {
		message := env.Error
		if message == "" {
			message = fmt.Sprintf("remote API returned status %d", resp.StatusCode)
		}
		return werrors.New(codeForStatus(resp.StatusCode), message, nil)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return werrors.Fetch("malformed", "cannot decode remote API data", err)
		}
	}
	return nil
}

// codeForStatus maps HTTP status codes back onto the error taxonomy so
// forwarded failures keep their meaning.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return werrors.ErrCodeInvalidInput
	case http.StatusUnauthorized:
		return werrors.ErrCodeUnauthorized
	case http.StatusNotFound:
		return werrors.ErrCodeNotFound
	case http.StatusTooManyRequests:
		return werrors.ErrCodeRateLimited
	case http.StatusBadGateway:
		return werrors.ErrCodeFetchHTTP
	case http.StatusGatewayTimeout:
		return werrors.ErrCodeFetchTimeout
	default:
		return werrors.ErrCodeStorageFailed
	}
}

func (c *Client) CrawlPreview(ctx context.Context, rawURL string) (*service.Preview, error) {
	var out service.Preview
	err := c.do(ctx, http.MethodPost, "/api/v1/crawl", map[string]any{"url": rawURL}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CrawlStore(ctx context.Context, rawURL string, tags []string, retention string) (*ingest.Result, error) {
	var out ingest.Result
	err := c.do(ctx, http.MethodPost, "/api/v1/crawl/store", map[string]any{
		"url":              rawURL,
		"tags":             tags,
		"retention_policy": retention,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CrawlTemp(ctx context.Context, rawURL string, tags []string) (*ingest.Result, error) {
	var out ingest.Result
	err := c.do(ctx, http.MethodPost, "/api/v1/crawl/temp", map[string]any{
		"url":  rawURL,
		"tags": tags,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeepCrawl without storage has no REST route; the preview walk only exists
// on a local server.
func (c *Client) DeepCrawl(ctx context.Context, params service.DeepParams) (*crawl.DeepReport, error) {
	return nil, werrors.New(werrors.ErrCodeInvalidInput,
		"deep_crawl_dfs is unavailable in forward mode; use deep_crawl_and_store", nil)
}

func (c *Client) DeepCrawlStore(ctx context.Context, params service.DeepParams) (*crawl.DeepReport, error) {
	body := map[string]any{
		"url":              params.URL,
		"max_depth":        params.MaxDepth,
		"max_pages":        params.MaxPages,
		"include_external": params.IncludeExternal,
		"retention_policy": params.Retention,
		"tags":             params.Tags,
	}
	if params.ScoreThreshold > 0 {
		body["score_threshold"] = params.ScoreThreshold
	}
	if params.Timeout > 0 {
		body["timeout"] = params.Timeout.Seconds()
	}

	var out crawl.DeepReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/crawl/deep/store", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Search(ctx context.Context, query string, limit int, tags []string) ([]search.Hit, error) {
	var out []search.Hit
	err := c.do(ctx, http.MethodPost, "/api/v1/search", map[string]any{
		"query": query,
		"limit": limit,
		"tags":  tags,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TargetSearch(ctx context.Context, query string, initialLimit, expandedLimit int, tags []string) (*search.TargetResult, error) {
	var out search.TargetResult
	err := c.do(ctx, http.MethodPost, "/api/v1/search/target", map[string]any{
		"query":          query,
		"initial_limit":  initialLimit,
		"expanded_limit": expandedLimit,
		"tags":           tags,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMemory(ctx context.Context, filter string, limit, offset int) ([]store.ContentRow, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var out []store.ContentRow
	if err := c.do(ctx, http.MethodGet, "/api/v1/memory?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ForgetURL(ctx context.Context, rawURL string) (int64, error) {
	q := url.Values{}
	q.Set("url", rawURL)

	var out service.Removed
	if err := c.do(ctx, http.MethodDelete, "/api/v1/memory?"+q.Encode(), nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) ClearTemp(ctx context.Context) (int64, error) {
	var out service.Removed
	if err := c.do(ctx, http.MethodDelete, "/api/v1/memory/temp", nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

func (c *Client) Stats(ctx context.Context) (*service.StatsReport, error) {
	var out service.StatsReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SyncStatus(ctx context.Context) (*mirror.Metrics, error) {
	var out mirror.Metrics
	if err := c.do(ctx, http.MethodGet, "/api/v1/db/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDomains(ctx context.Context) ([]store.DomainCount, error) {
	var out []store.DomainCount
	if err := c.do(ctx, http.MethodGet, "/api/v1/domains", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BlockDomain(ctx context.Context, pattern, description string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/blocked-domains", map[string]any{
		"pattern":     pattern,
		"description": description,
	}, nil)
}

func (c *Client) UnblockDomain(ctx context.Context, pattern string) error {
	q := url.Values{}
	q.Set("pattern", pattern)
	return c.do(ctx, http.MethodDelete, "/api/v1/blocked-domains?"+q.Encode(), nil, nil)
}

func (c *Client) ListBlocked(ctx context.Context) ([]store.BlockedPattern, error) {
	var out []store.BlockedPattern
	if err := c.do(ctx, http.MethodGet, "/api/v1/blocked-domains", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ service.Backend = (*Client)(nil)
