package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sniper",
	Short: "Local-business lead acquisition pipeline",
	Long:  "Crawls maps and directory listings zone by zone, resolves business identities across sources, and maintains one deduplicated lead per real-world business.",
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
