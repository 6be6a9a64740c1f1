package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webrecall/webrecall/internal/crawl"
	"github.com/webrecall/webrecall/internal/logging"
	"github.com/webrecall/webrecall/internal/ui"
)

// listFilterLimit bounds how many stored rows --filter scans.
const listFilterLimit = 100000

func newRecrawlCmd() *cobra.Command {
	var (
		urlFile   string
		filter    string
		retention string
		tags      []string
		plain     bool
	)

	cmd := &cobra.Command{
		Use:   "recrawl",
		Short: "Re-fetch and re-store many URLs as a batch",
		Long: `Reads URLs from a file (one per line, # comments allowed) or selects
stored URLs matching a substring filter, then fetches and stores them with
bounded concurrency. URLs that fail are written to a sidecar file for
retrying.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if urlFile == "" && filter == "" {
				return fmt.Errorf("either --file or --filter is required")
			}
			return runRecrawl(cmd.Context(), urlFile, filter, retention, tags, plain)
		},
	}

	cmd.Flags().StringVarP(&urlFile, "file", "f", "", "File with one URL per line")
	cmd.Flags().StringVar(&filter, "filter", "", "Re-crawl stored URLs containing this substring")
	cmd.Flags().StringVar(&retention, "retention", "permanent", "Retention policy for stored pages")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags attached to every stored page")
	cmd.Flags().BoolVar(&plain, "plain", false, "Plain line output instead of the progress UI")
	return cmd
}

func runRecrawl(ctx context.Context, urlFile, filter, retention string, tags []string, plain bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Progress owns the terminal; logs go to the file only.
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.WriteToStderr = false
	if err := logging.EnsureLogDir(); err != nil {
		return err
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	defer logCleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildLocal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var urls []string
	if urlFile != "" {
		urls, err = readURLFile(urlFile)
		if err != nil {
			return err
		}
	} else {
		urls, err = storedURLsMatching(ctx, a, filter)
		if err != nil {
			return err
		}
	}
	if len(urls) == 0 {
		fmt.Println("no URLs to crawl")
		return nil
	}

	renderer := ui.NewRenderer(ui.NewConfig(os.Stdout,
		ui.WithForcePlain(plain),
		ui.WithNoColor(ui.DetectNoColor()),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	batch := crawl.NewBatch(a.pipeline, cfg.Crawl, logger,
		crawl.WithProgress(renderer.Update),
	)

	report, err := batch.Run(ctx, urls, retention, tags)
	if err != nil {
		return err
	}

	for _, f := range report.FailedURLs {
		renderer.Fail(f.URL, fmt.Errorf("%s", f.Error))
	}
	renderer.Complete(*report)

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d URLs failed", report.Failed, report.Total)
	}
	return nil
}

// readURLFile reads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open URL file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read URL file: %w", err)
	}
	return urls, nil
}

// storedURLsMatching selects stored URLs containing the substring.
func storedURLsMatching(ctx context.Context, a *app, filter string) ([]string, error) {
	rows, err := a.engine.ListContent(ctx, "", listFilterLimit, 0)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(filter)
	var urls []string
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.URL), needle) {
			urls = append(urls, row.URL)
		}
	}
	return urls, nil
}
