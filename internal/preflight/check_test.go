package preflight

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct{ err error }

func (s stubProber) Ping(context.Context) error { return s.err }

type stubAvailabler struct{ err error }

func (s stubAvailabler) Available(context.Context) error { return s.err }

func TestRunAll_AllHealthy(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "webrecall.db")
	c := New(dbPath,
		WithCrawler(stubProber{}),
		WithEmbedder(stubAvailabler{}),
	)

	results := c.RunAll(context.Background())
	require.Len(t, results, 5)
	assert.False(t, c.HasCriticalFailures(results))
	assert.Equal(t, "ready", c.SummaryStatus(results))
}

func TestRunAll_UnreachableServicesWarnOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "webrecall.db")
	c := New(dbPath,
		WithCrawler(stubProber{err: errors.New("connection refused")}),
		WithEmbedder(stubAvailabler{err: errors.New("no model")}),
	)

	results := c.RunAll(context.Background())
	assert.False(t, c.HasCriticalFailures(results), "service outages are not fatal")
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus(results))

	warns := 0
	for _, r := range results {
		if r.Status == StatusWarn {
			warns++
		}
	}
	assert.Equal(t, 2, warns)
}

func TestCheckWritePermissions_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	c := New(filepath.Join(dir, "webrecall.db"))

	result := c.CheckWritePermissions(dir)
	assert.Equal(t, StatusPass, result.Status)
	assert.DirExists(t, dir)
}

func TestCheckWritePermissions_UnwritableFails(t *testing.T) {
	c := New("/proc/nope/webrecall.db")
	result := c.CheckWritePermissions("/proc/nope")
	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
}

func TestCheckDiskSpace_TempDirPasses(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "webrecall.db"))
	result := c.CheckDiskSpace(t.TempDir())
	assert.Equal(t, StatusPass, result.Status)
	assert.Contains(t, result.Message, "free")
}

func TestPrintResults_ListsWarningsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	c := New(filepath.Join(t.TempDir(), "webrecall.db"), WithOutput(&buf), WithVerbose(true))

	c.PrintResults([]CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "OK", Required: true},
		{Name: "crawl_service", Status: StatusWarn, Message: "unreachable", Details: "dial tcp"},
		{Name: "write_permissions", Status: StatusFail, Message: "denied", Required: true},
	})

	out := buf.String()
	assert.Contains(t, out, "webrecall System Check")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
	assert.Contains(t, out, "1 warning(s):")
	assert.Contains(t, out, "dial tcp")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "100.0 MB", formatBytes(100*1024*1024))
	assert.Equal(t, "2.0 GB", formatBytes(2*1024*1024*1024))
}
