// Package ui renders batch crawl progress in the terminal: a bubbletea
// progress bar on interactive terminals, plain line output for CI and pipes.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/webrecall/webrecall/internal/crawl"
)

// Renderer displays the progress of a batch crawl.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Update reports batch progress.
	Update(p crawl.Progress)

	// Fail reports one failed URL.
	Fail(url string, err error)

	// Complete marks the run finished with its final report.
	Complete(report crawl.BatchReport)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// ConfigOption modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// NewConfig creates a Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks a renderer for the environment: TUI on interactive
// terminals, plain text for CI, pipes, and --plain.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if the NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
