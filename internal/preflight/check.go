// Package preflight validates the runtime environment before the server
// starts: database directory, disk space, file descriptors, and the
// external crawl and embedding services. Only local filesystem problems are
// fatal; unreachable services degrade features and report as warnings.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Prober reports whether an external service answers its health endpoint.
type Prober interface {
	Ping(ctx context.Context) error
}

// Availabler reports whether the embedding provider can serve requests.
type Availabler interface {
	Available(ctx context.Context) error
}

// Checker performs preflight validation checks.
type Checker struct {
	dbPath   string
	crawler  Prober
	embedder Availabler
	verbose  bool
	output   io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithCrawler registers the crawl service probe.
func WithCrawler(p Prober) Option {
	return func(c *Checker) { c.crawler = p }
}

// WithEmbedder registers the embedding provider probe.
func WithEmbedder(a Availabler) Option {
	return func(c *Checker) { c.embedder = a }
}

// WithVerbose enables detail lines in PrintResults.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// New creates a Checker for the database at dbPath.
func New(dbPath string, opts ...Option) *Checker {
	c := &Checker{
		dbPath: dbPath,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check and returns the results.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	dbDir := filepath.Dir(c.dbPath)

	results := []CheckResult{
		c.CheckWritePermissions(dbDir),
		c.CheckDiskSpace(dbDir),
		c.CheckFileDescriptors(),
	}
	if c.crawler != nil {
		results = append(results, c.CheckCrawler(ctx))
	}
	if c.embedder != nil {
		results = append(results, c.CheckEmbedder(ctx))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus reduces results to "ready", "ready_with_warnings", or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "webrecall System Check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status == StatusWarn {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}
	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckWritePermissions checks whether the database directory is writable,
// creating it if missing.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create database directory: %v", err)
		return result
	}

	testFile := filepath.Join(dir, ".webrecall-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = fmt.Sprintf("Database directory: %s", dir)
	return result
}

// CheckCrawler probes the crawl service health endpoint. Unreachable is a
// warning: search over existing content still works without it.
func (c *Checker) CheckCrawler(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "crawl_service",
		Required: false,
	}

	if err := c.crawler.Ping(ctx); err != nil {
		result.Status = StatusWarn
		result.Message = "crawl service unreachable (crawl operations will fail)"
		result.Details = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = "crawl service reachable"
	return result
}

// CheckEmbedder probes the embedding provider.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:     "embedding_provider",
		Required: false,
	}

	if err := c.embedder.Available(ctx); err != nil {
		result.Status = StatusWarn
		result.Message = "embedding provider unavailable (ingest and search will fail)"
		result.Details = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = "embedding provider ready"
	return result
}
