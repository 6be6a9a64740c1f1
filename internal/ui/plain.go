package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/webrecall/webrecall/internal/crawl"
)

// PlainRenderer outputs one line per progress event (for CI/pipes).
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// Update implements Renderer.
func (r *PlainRenderer) Update(p crawl.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "[CRAWL] %d/%d - %d ok, %d failed (%.1f/s)\n",
		p.Completed, p.Total, p.Succeeded, p.Failed, p.Rate)
}

// Fail implements Renderer.
func (r *PlainRenderer) Fail(url string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "FAIL: %s: %v\n", url, err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(report crawl.BatchReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d URLs in %s (%d ok, %d failed)\n",
		report.Total, report.Elapsed.Round(100*time.Millisecond),
		report.Succeeded, report.Failed)

	if report.SidecarPath != "" {
		_, _ = fmt.Fprintf(r.out, "Failed URLs written to %s\n", report.SidecarPath)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
