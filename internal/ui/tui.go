package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/webrecall/webrecall/internal/crawl"
)

// TUIRenderer provides a rich terminal progress display using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *crawlModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. Fails on non-TTY output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	model := newCrawlModel()
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:   cfg,
		model: model,
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(p crawl.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(progressMsg(p))
	}
}

// Fail implements Renderer.
func (r *TUIRenderer) Fail(url string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(failMsg{url: url, err: err})
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(report crawl.BatchReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(report))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			// TUI did not respond to quit; do not hang the process.
		}
	}
	return nil
}

type progressMsg crawl.Progress

type failMsg struct {
	url string
	err error
}

type completeMsg crawl.BatchReport

// maxVisibleFailures bounds the failure list in the viewport.
const maxVisibleFailures = 5

type crawlModel struct {
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	latest   crawl.Progress
	failures []failMsg
	report   *crawl.BatchReport
	finished bool
}

func newCrawlModel() *crawlModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	bar := progress.New(progress.WithDefaultGradient())

	return &crawlModel{
		styles:  DefaultStyles(),
		spinner: sp,
		bar:     bar,
	}
}

func (m *crawlModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *crawlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 10
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
	case progressMsg:
		m.latest = crawl.Progress(msg)
	case failMsg:
		m.failures = append(m.failures, msg)
		if len(m.failures) > maxVisibleFailures {
			m.failures = m.failures[len(m.failures)-maxVisibleFailures:]
		}
	case completeMsg:
		report := crawl.BatchReport(msg)
		m.report = &report
		m.finished = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *crawlModel) View() string {
	var b strings.Builder

	if m.finished && m.report != nil {
		b.WriteString(m.styles.Header.Render("Crawl complete"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%d URLs in %s (%s, %s)\n",
			m.report.Total,
			m.report.Elapsed.Round(100*time.Millisecond),
			m.styles.Success.Render(fmt.Sprintf("%d ok", m.report.Succeeded)),
			m.styles.Error.Render(fmt.Sprintf("%d failed", m.report.Failed)),
		))
		if m.report.SidecarPath != "" {
			b.WriteString(m.styles.Label.Render("failed URLs: " + m.report.SidecarPath))
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.styles.Header.Render("Crawling"))
	b.WriteString("\n\n")

	pct := 0.0
	if m.latest.Total > 0 {
		pct = float64(m.latest.Completed) / float64(m.latest.Total)
	}
	b.WriteString(m.bar.ViewAs(pct))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %d/%d   %s %d   %s %d   %s %.1f/s\n",
		m.styles.Label.Render("pages"), m.latest.Completed, m.latest.Total,
		m.styles.Success.Render("ok"), m.latest.Succeeded,
		m.styles.Error.Render("failed"), m.latest.Failed,
		m.styles.Label.Render("rate"), m.latest.Rate,
	))

	if len(m.failures) > 0 {
		b.WriteString("\n")
		for _, f := range m.failures {
			b.WriteString(m.styles.Error.Render("FAIL "))
			b.WriteString(f.url)
			b.WriteString(m.styles.Dim.Render("  " + f.err.Error()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Dim.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}
