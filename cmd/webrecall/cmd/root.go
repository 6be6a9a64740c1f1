// Package cmd provides the CLI commands for webrecall.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webrecall/webrecall/internal/profiling"
	"github.com/webrecall/webrecall/pkg/version"
)

var (
	configPath string
	profileCPU string
	profileMem string
	cpuStop    func()
)

// NewRootCmd creates the root command for the webrecall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webrecall",
		Short: "Web knowledge base with semantic search",
		Long: `webrecall crawls web pages, cleans them to markdown, embeds the
content, and serves semantic search over everything it has stored.

It speaks two protocols over the same backend: a REST API (webrecall serve)
and MCP tools on stdio for AI assistants (webrecall mcp).`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("webrecall version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to webrecall.yaml")
	cmd.PersistentFlags().StringVar(&profileCPU, "cpu-profile", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "mem-profile", "", "Write heap profile to file on exit")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newRecrawlCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if profileCPU == "" {
		return nil
	}
	stop, err := profiling.StartCPU(profileCPU)
	if err != nil {
		return fmt.Errorf("failed to start CPU profile: %w", err)
	}
	cpuStop = stop
	return nil
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	if cpuStop != nil {
		cpuStop()
		cpuStop = nil
	}
	if profileMem != "" {
		if err := profiling.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write heap profile: %w", err)
		}
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
