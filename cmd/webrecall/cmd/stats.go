package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/webrecall/webrecall/internal/logging"
	"github.com/webrecall/webrecall/internal/remote"
	"github.com/webrecall/webrecall/internal/service"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store, sync, and latency statistics as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context())
		},
	}
}

func runStats(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Keep the terminal clean for the JSON output.
	logCfg := logging.DefaultConfig()
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

	var backend service.Backend
	if cfg.Server.IsServer {
		a, err := buildLocal(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		backend = a.backend
	} else {
		backend = remote.New(cfg.Remote, logger)
	}

	report, err := backend.Stats(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
