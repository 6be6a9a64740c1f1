package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/httpapi"
	"github.com/webrecall/webrecall/internal/logging"
	"github.com/webrecall/webrecall/internal/preflight"
)

func newServeCmd() *cobra.Command {
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Long: `Starts the HTTP API on the configured host and port. The working set
runs in memory with differential sync to disk unless use_memory_db is
disabled. Config file changes to auth settings apply without restart.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), skipCheck)
		},
	}

	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip preflight system checks")
	return cmd
}

func runServe(ctx context.Context, skipCheck bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
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

	if !skipCheck {
		checker := preflight.New(cfg.Database.Path,
			preflight.WithCrawler(a.fetcher),
			preflight.WithEmbedder(a.embedder),
		)
		results := checker.RunAll(ctx)
		checker.PrintResults(results)
		if checker.HasCriticalFailures(results) {
			return fmt.Errorf("system check failed")
		}
	}

	srv := httpapi.New(a.backend, cfg.Auth, logger, httpapi.WithHealth(a.componentHealth))

	if watchPath := effectiveConfigFile(); watchPath != "" {
		watcher, err := config.NewWatcher(watchPath, logger)
		if err != nil {
			logger.Warn("config watcher unavailable", slog.String("error", err.Error()))
		} else {
			watcher.Subscribe(func(next *config.Config) {
				srv.UpdateAuth(next.Auth)
			})
			go func() {
				if err := watcher.Run(ctx); err != nil {
					logger.Warn("config watcher stopped", slog.String("error", err.Error()))
				}
			}()
			defer watcher.Stop()
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return srv.ListenAndServe(ctx, addr)
}

// componentHealth reports per-component status for /api/v1/status.
func (a *app) componentHealth(ctx context.Context) map[string]string {
	components := map[string]string{
		"api":   "healthy",
		"store": "healthy",
	}

	if err := a.fetcher.Ping(ctx); err != nil {
		components["crawler"] = "unreachable"
	} else {
		components["crawler"] = "healthy"
	}
	if err := a.embedder.Available(ctx); err != nil {
		components["embedder"] = "unavailable"
	} else {
		components["embedder"] = "healthy"
	}
	if a.sync != nil {
		components["sync"] = "running"
	}
	return components
}

// effectiveConfigFile returns the config file serve should watch, empty when
// running on defaults and environment only.
func effectiveConfigFile() string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat("webrecall.yaml"); err == nil {
		return "webrecall.yaml"
	}
	return ""
}
