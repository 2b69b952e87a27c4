package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tcsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tcsync",
	Short: "Import local test cases into Jira + Xray",
	Long:  "Loads test-case records from YAML files or Notion, creates or updates the matching Xray tests, links them to plans, executions, sets, folders and preconditions, and verifies the links.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
