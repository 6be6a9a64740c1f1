package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webrecall/webrecall/internal/fetch"
	"github.com/webrecall/webrecall/internal/lifecycle"
	"github.com/webrecall/webrecall/internal/preflight"
)

func newSetupCmd() *cobra.Command {
	var noPull bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Check the environment and pull the embedding model",
		Long: `Runs the preflight checks, verifies the crawl service and the Ollama
embedding provider are reachable, and pulls the configured embedding model
if it is missing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd.Context(), !noPull)
		},
	}

	cmd.Flags().BoolVar(&noPull, "no-pull", false, "Do not download the embedding model")
	return cmd
}

func runSetup(ctx context.Context, pull bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fetcher := fetch.NewClient(cfg.Crawler)
	checker := preflight.New(cfg.Database.Path,
		preflight.WithCrawler(fetcher),
		preflight.WithVerbose(true),
	)
	results := checker.RunAll(ctx)
	checker.PrintResults(results)
	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}

	if cfg.Embedding.Provider == "static" {
		fmt.Println("\nEmbedding provider: static (no model needed)")
		return nil
	}

	ollama := lifecycle.NewOllama(cfg.Embedding.URL)
	if !pull {
		if ollama.IsRunning(ctx) {
			fmt.Printf("\nOllama reachable at %s\n", ollama.Host())
		} else {
			fmt.Printf("\nOllama NOT reachable at %s\n", ollama.Host())
		}
		return nil
	}

	fmt.Printf("\nEnsuring embedding model %s...\n", cfg.Embedding.Model)
	lastPercent := -1.0
	err = ollama.EnsureModel(ctx, cfg.Embedding.Model, func(p lifecycle.PullProgress) {
		if p.Total > 0 && p.Percent != lastPercent {
			lastPercent = p.Percent
			fmt.Printf("\r%s: %.0f%% (%d/%d MB)",
				p.Status, p.Percent, p.Completed/(1024*1024), p.Total/(1024*1024))
		}
	})
	if err != nil {
		var notRunning *lifecycle.NotRunningError
		if errors.As(err, &notRunning) {
			return fmt.Errorf("%w\n\nStart it with: ollama serve\nOr install from https://ollama.com/download", err)
		}
		return err
	}
	fmt.Printf("\nModel %s ready.\n", cfg.Embedding.Model)
	return nil
}
