package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantic/fieldsat/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fieldsat",
	Short: "Match biodiversity survey sites to satellite image patches",
	Long:  "Joins field-survey site tables with satellite-patch metadata by nearest-neighbor spatial/temporal matching, and manages the datasets, regions, and runs around it.",
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
