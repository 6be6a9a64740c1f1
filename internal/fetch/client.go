// Package fetch talks to the external crawl service (a crawl4ai-compatible
// HTTP API) that renders pages and converts them to markdown.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/webrecall/webrecall/internal/config"
	werrors "github.com/webrecall/webrecall/internal/errors"
)

// Page is one successfully fetched and converted page.
type Page struct {
	URL         string
	Title       string
	CleanedHTML string
	Markdown    string
	Status      int
}

// Client posts fetch requests to the crawl service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	batchTimeout time.Duration
}

// crawlRequest mirrors the crawl service request body.
type crawlRequest struct {
	URLs               []string `json:"urls"`
	WordCountThreshold int      `json:"word_count_threshold"`
	ExcludedTags       []string `json:"excluded_tags"`
	RemoveForms        bool     `json:"remove_forms"`
	OnlyText           bool     `json:"only_text"`
}

// crawlResponse mirrors the crawl service response body.
type crawlResponse struct {
	Success bool          `json:"success"`
	Results []crawlResult `json:"results"`
}

type crawlResult struct {
	URL          string         `json:"url"`
	Success      bool           `json:"success"`
	StatusCode   int            `json:"status_code"`
	ErrorMessage string         `json:"error_message"`
	CleanedHTML  string         `json:"cleaned_html"`
	Markdown     crawlMarkdown  `json:"markdown"`
	Metadata     map[string]any `json:"metadata"`
}

type crawlMarkdown struct {
	RawMarkdown string `json:"raw_markdown"`
	FitMarkdown string `json:"fit_markdown"`
}

// excludedTags are stripped server-side before markdown conversion.
var excludedTags = []string{"nav", "header", "footer", "aside", "script", "style", "noscript"}

// NewClient builds a fetch client for the configured crawl service.
func NewClient(cfg config.CrawlerConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		httpClient:   &http.Client{},
		timeout:      cfg.Timeout,
		batchTimeout: cfg.BatchTimeout,
	}
}

// Fetch retrieves one page with the single-page timeout.
func (c *Client) Fetch(ctx context.Context, url string) (*Page, error) {
	return c.fetch(ctx, url, c.timeout)
}

// FetchBatchItem retrieves one page with the longer batch timeout. Batch
// drivers call it per URL under their own concurrency limit.
func (c *Client) FetchBatchItem(ctx context.Context, url string) (*Page, error) {
	return c.fetch(ctx, url, c.batchTimeout)
}

func (c *Client) fetch(ctx context.Context, url string, timeout time.Duration) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(crawlRequest{
		URLs:               []string{url},
		WordCountThreshold: 10,
		ExcludedTags:       excludedTags,
		RemoveForms:        true,
		OnlyText:           true,
	})
	if err != nil {
		return nil, werrors.Fetch("malformed", "cannot encode crawl request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/crawl", bytes.NewReader(body))
	if err != nil {
		return nil, werrors.Fetch("network", "cannot build crawl request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, werrors.Fetch("timeout",
				fmt.Sprintf("crawl service did not answer within %s", timeout), err).
				WithDetail("url", url)
		}
		return nil, werrors.Fetch("network", "crawl service unreachable", err).
			WithDetail("url", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, werrors.Fetch("http_error",
			fmt.Sprintf("crawl service returned %d", resp.StatusCode), nil).
			WithDetail("url", url).
			WithDetail("body", string(snippet))
	}

	var parsed crawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, werrors.Fetch("malformed", "cannot decode crawl response", err).
			WithDetail("url", url)
	}
	if len(parsed.Results) == 0 {
		return nil, werrors.Fetch("malformed", "crawl response carries no results", nil).
			WithDetail("url", url)
	}

	result := parsed.Results[0]
	if !result.Success {
		return nil, werrors.Fetch("http_error",
			fmt.Sprintf("crawl failed upstream: %s", result.ErrorMessage), nil).
			WithDetail("url", url).
			WithDetail("status", fmt.Sprintf("%d", result.StatusCode))
	}

	// fit_markdown is the content-pruned variant; prefer it when present.
	markdown := result.Markdown.FitMarkdown
	if strings.TrimSpace(markdown) == "" {
		markdown = result.Markdown.RawMarkdown
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, werrors.Fetch("malformed", "crawl response carries no markdown", nil).
			WithDetail("url", url)
	}

	return &Page{
		URL:         url,
		Title:       titleOf(result.Metadata),
		CleanedHTML: result.CleanedHTML,
		Markdown:    markdown,
		Status:      result.StatusCode,
	}, nil
}

// Ping reports whether the crawl service answers at all.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return werrors.Fetch("network", "cannot build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return werrors.Fetch("network", "crawl service unreachable", err)
	}
	_ = resp.Body.Close()
	return nil
}

func titleOf(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if title, ok := metadata["title"].(string); ok {
		return title
	}
	return ""
}
