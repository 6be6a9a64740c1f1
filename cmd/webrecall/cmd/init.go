package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webrecall/webrecall/configs"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter webrecall.yaml in the working directory",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := "webrecall.yaml"
			if configPath != "" {
				path = configPath
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
