package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/webrecall/webrecall/internal/logging"
	mcpserver "github.com/webrecall/webrecall/internal/mcp"
	"github.com/webrecall/webrecall/internal/remote"
	"github.com/webrecall/webrecall/internal/service"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP tool server on stdio",
		Long: `Serves the tool surface over the Model Context Protocol on
stdin/stdout. With is_server true (the default) tools run against the local
store; with is_server false every call is forwarded to the remote REST API
configured under remote.

Stdout carries the JSON-RPC stream, so all logging goes to the log file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context())
		},
	}
}

func runMCP(ctx context.Context) error {
	// File-only logging must be in place before anything can write to
	// stdout or stderr.
	logCleanup, err := logging.SetupMCPMode()
	if err != nil {
		return err
	}
	defer logCleanup()
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("config load failed", slog.String("error", err.Error()))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var backend service.Backend
	if cfg.Server.IsServer {
		a, err := buildLocal(ctx, cfg, logger)
		if err != nil {
			logger.Error("backend init failed", slog.String("error", err.Error()))
			return err
		}
		defer a.Close()
		backend = a.backend
		logger.Info("mcp running in local mode")
	} else {
		backend = remote.New(cfg.Remote, logger)
		logger.Info("mcp running in forward mode", slog.String("api_url", cfg.Remote.APIURL))
	}

	srv, err := mcpserver.NewServer(backend, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
