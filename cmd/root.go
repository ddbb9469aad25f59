package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rainier-analytics/call-pipeline/internal/config"
	"github.com/rainier-analytics/call-pipeline/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "call-pipeline",
	Short: "Emergency call ingestion and aggregation pipeline",
	Long:  "Parses the Seattle Fire Department call feed, stores call events, builds daily summaries and merges weather and covid time series.",
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

// openPipeline opens the configured store. With loadOnly set it also
// verifies the schema version marker and reseeds the holiday codes,
// the required preamble for every read-only command.
func openPipeline(ctx context.Context, loadOnly bool) (*pipeline.Pipeline, error) {
	p, err := pipeline.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if loadOnly {
		if err := p.LoadExisting(ctx); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
