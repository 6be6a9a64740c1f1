package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/webrecall/webrecall/internal/crawl"
)

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(NewConfig(&buf))
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestNewRenderer_ForcePlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(NewConfig(&buf, WithForcePlain(true)))
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestIsTTY_FalseForBuffer(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTTY(&buf))
	assert.False(t, IsTTY(nil))
}

func TestPlainRenderer_ProgressLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Update(crawl.Progress{Completed: 5, Total: 10, Succeeded: 4, Failed: 1, Rate: 2.5})
	out := buf.String()
	assert.Contains(t, out, "[CRAWL] 5/10")
	assert.Contains(t, out, "4 ok")
	assert.Contains(t, out, "1 failed")
}

func TestPlainRenderer_FailAndComplete(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Fail("https://example.com/x", errors.New("timeout"))
	r.Complete(crawl.BatchReport{
		Total:       10,
		Succeeded:   9,
		Failed:      1,
		Elapsed:     3 * time.Second,
		SidecarPath: "/tmp/webrecall-failed.txt",
	})

	out := buf.String()
	assert.Contains(t, out, "FAIL: https://example.com/x: timeout")
	assert.Contains(t, out, "Complete: 10 URLs")
	assert.Contains(t, out, "/tmp/webrecall-failed.txt")
}

func TestCrawlModel_ViewShowsCounts(t *testing.T) {
	m := newCrawlModel()
	m.styles = NoColorStyles()

	updated, _ := m.Update(progressMsg(crawl.Progress{Completed: 3, Total: 6, Succeeded: 3}))
	m = updated.(*crawlModel)

	view := m.View()
	assert.Contains(t, view, "3/6")
	assert.Contains(t, view, "Crawling")
}

func TestCrawlModel_CompleteQuits(t *testing.T) {
	m := newCrawlModel()
	m.styles = NoColorStyles()

	updated, cmd := m.Update(completeMsg(crawl.BatchReport{Total: 2, Succeeded: 2, Elapsed: time.Second}))
	m = updated.(*crawlModel)

	assert.NotNil(t, cmd)
	assert.True(t, m.finished)
	assert.Contains(t, m.View(), "Crawl complete")
}

func TestCrawlModel_FailureListBounded(t *testing.T) {
	m := newCrawlModel()
	for i := 0; i < maxVisibleFailures+3; i++ {
		updated, _ := m.Update(failMsg{url: "https://example.com/", err: errors.New("x")})
		m = updated.(*crawlModel)
	}
	assert.Len(t, m.failures, maxVisibleFailures)
}
