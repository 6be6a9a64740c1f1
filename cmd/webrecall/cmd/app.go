package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/webrecall/webrecall/internal/blocklist"
	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/crawl"
	"github.com/webrecall/webrecall/internal/embed"
	"github.com/webrecall/webrecall/internal/fetch"
	"github.com/webrecall/webrecall/internal/ingest"
	"github.com/webrecall/webrecall/internal/mirror"
	"github.com/webrecall/webrecall/internal/search"
	"github.com/webrecall/webrecall/internal/service"
	"github.com/webrecall/webrecall/internal/session"
	"github.com/webrecall/webrecall/internal/store"
	"github.com/webrecall/webrecall/internal/telemetry"
)

// app holds the wired local backend and everything it needs closed.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	embedder embed.Embedder
	engine   *store.Engine
	sync     *mirror.Manager
	metrics  *telemetry.Recorder
	fetcher  *fetch.Client
	blocked  *blocklist.Blocklist
	pipeline *ingest.Pipeline
	backend  service.Backend
}

// buildLocal wires the full in-process backend: embedder, store (mirrored or
// direct), fetch client, blocklist, ingest pipeline, deep crawler, search,
// session, and telemetry.
func buildLocal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	embedder, err := embed.NewFromConfig(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	a.embedder = embedder

	if cfg.Database.UseMemoryDB {
		m, err := mirror.Open(cfg.Database.Path, embedder, cfg.Sync, mirror.WithLogger(logger))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open mirrored store: %w", err)
		}
		a.sync = m
		a.engine = m.Engine()
	} else {
		engine, err := store.Open(cfg.Database.Path, embedder, store.WithLogger(logger))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.engine = engine
	}

	// In RAM mode the periodic sync tick also sweeps; disk mode has no
	// ticker, so the startup sweep is what retires N_days rows there.
	if removed, err := a.engine.SweepExpired(ctx, time.Now().UTC()); err != nil {
		logger.Warn("retention sweep failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("expired content removed", slog.Int64("rows", removed))
	}

	metrics, err := telemetry.Open(telemetryPath(cfg.Database.Path))
	if err != nil {
		logger.Warn("telemetry sidecar unavailable", slog.String("error", err.Error()))
		metrics = nil
	}
	a.metrics = metrics

	a.fetcher = fetch.NewClient(cfg.Crawler)

	blocked, err := blocklist.New(ctx, a.engine, cfg.Auth.BlockRemovalToken)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load blocklist: %w", err)
	}
	a.blocked = blocked

	kg := ingest.NewKGProbe(cfg.KG)
	a.pipeline = ingest.New(a.fetcher, blocked, a.engine, kg, logger)
	deep := crawl.NewDeep(a.fetcher, a.pipeline, blocked, cfg.Crawl, logger)
	searcher := search.New(a.engine, embedder, cfg.Search, logger)

	sess, err := session.Start(ctx, a.engine)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}

	a.backend = service.NewLocal(service.LocalDeps{
		Engine:       a.engine,
		Searcher:     searcher,
		Pipeline:     a.pipeline,
		Deep:         deep,
		Fetcher:      a.fetcher,
		Blocked:      blocked,
		Session:      sess,
		Sync:         a.sync,
		Metrics:      a.metrics,
		RemovalToken: cfg.Auth.BlockRemovalToken,
		Logger:       logger,
	})
	return a, nil
}

// Close releases resources in reverse wiring order. The sync manager runs a
// final flush to disk on close.
func (a *app) Close() {
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	if a.sync != nil {
		if err := a.sync.Close(); err != nil {
			a.logger.Error("final sync failed", slog.String("error", err.Error()))
		}
	} else if a.engine != nil {
		_ = a.engine.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
}

// telemetryPath puts the sidecar next to the main database.
func telemetryPath(dbPath string) string {
	if strings.HasSuffix(dbPath, ".db") {
		return strings.TrimSuffix(dbPath, ".db") + "-telemetry.db"
	}
	return dbPath + "-telemetry.db"
}

// loadConfig loads configuration honoring the global --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
