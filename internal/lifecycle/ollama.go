// Package lifecycle readies the Ollama embedding provider: reachability,
// model presence, and model pulling with progress. It never manages the
// Ollama process itself; the provider may live on another host.
package lifecycle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// ReadyPollInterval is the initial polling interval for WaitForReady.
	ReadyPollInterval = 100 * time.Millisecond

	// MaxReadyPollInterval caps the poll backoff.
	MaxReadyPollInterval = 2 * time.Second

	// DefaultReadyTimeout bounds WaitForReady when no timeout is given.
	DefaultReadyTimeout = 30 * time.Second
)

// Ollama checks and prepares an Ollama instance for embedding.
type Ollama struct {
	host   string
	client *http.Client
}

// PullProgress reports model download progress.
type PullProgress struct {
	Status    string
	Completed int64
	Total     int64
	Percent   float64
}

// NewOllama creates a manager for the instance at host.
func NewOllama(host string) *Ollama {
	return &Ollama{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Host returns the configured endpoint.
func (o *Ollama) Host() string {
	return o.host
}

// IsRunning checks whether the API answers.
func (o *Ollama) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// ListModels returns the models the instance has available.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ollama at %s: %w", o.host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	models := make([]string, len(result.Models))
	for i, m := range result.Models {
		models[i] = m.Name
	}
	return models, nil
}

// HasModel checks whether model is available, matching either the full
// name:tag or just the base name.
func (o *Ollama) HasModel(ctx context.Context, model string) (bool, error) {
	models, err := o.ListModels(ctx)
	if err != nil {
		return false, err
	}

	want := strings.ToLower(model)
	wantBase := strings.Split(want, ":")[0]
	for _, available := range models {
		have := strings.ToLower(available)
		if have == want || strings.Split(have, ":")[0] == wantBase {
			return true, nil
		}
	}
	return false, nil
}

// WaitForReady polls until the API answers or timeout elapses.
func (o *Ollama) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if timeout == 0 {
		timeout = DefaultReadyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := ReadyPollInterval
	for {
		if o.IsRunning(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for ollama at %s: %w", o.host, ctx.Err())
		case <-time.After(interval):
		}
		interval *= 2
		if interval > MaxReadyPollInterval {
			interval = MaxReadyPollInterval
		}
	}
}

// PullModel downloads model via the streaming pull API. No-op when the
// model is already present. progressFunc may be nil.
func (o *Ollama) PullModel(ctx context.Context, model string, progressFunc func(PullProgress)) error {
	hasModel, err := o.HasModel(ctx, model)
	if err != nil {
		return err
	}
	if hasModel {
		return nil
	}

	body, err := json.Marshal(map[string]any{"name": model, "stream": true})
	if err != nil {
		return fmt.Errorf("failed to marshal pull request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Model pulls stream for minutes; no client timeout.
	pullClient := &http.Client{}
	resp, err := pullClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to start pull: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pull failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var progress struct {
			Status    string `json:"status"`
			Total     int64  `json:"total"`
			Completed int64  `json:"completed"`
		}
		if err := json.Unmarshal(line, &progress); err != nil {
			continue
		}
		if progressFunc != nil {
			percent := 0.0
			if progress.Total > 0 {
				percent = float64(progress.Completed) / float64(progress.Total) * 100
			}
			progressFunc(PullProgress{
				Status:    progress.Status,
				Completed: progress.Completed,
				Total:     progress.Total,
				Percent:   percent,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading pull response: %w", err)
	}
	return nil
}

// EnsureModel verifies the instance answers and pulls model if missing.
func (o *Ollama) EnsureModel(ctx context.Context, model string, progressFunc func(PullProgress)) error {
	if !o.IsRunning(ctx) {
		return &NotRunningError{Host: o.host}
	}
	if err := o.PullModel(ctx, model, progressFunc); err != nil {
		return fmt.Errorf("failed to pull model %s: %w", model, err)
	}
	return nil
}

// NotRunningError indicates the Ollama API did not answer.
type NotRunningError struct {
	Host string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("ollama is not reachable at %s", e.Host)
}
