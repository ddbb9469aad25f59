package main

import (
	"github.com/spf13/cobra"

	"github.com/rainier-analytics/call-pipeline/internal/pipeline"
)

var (
	ingestCalls   string
	ingestWeather string
	ingestCovid   string
	ingestDMin    string
	ingestDMax    string
	ingestRebuild bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run a full ingestion pass over a call feed",
	Long:  "Parses the call feed CSV, inserts call events, aggregates daily summaries and optionally merges weather and covid feeds in the same run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := openPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer p.Close()

		dmin := ingestDMin
		if dmin == "" {
			dmin = cfg.Ingest.DMin
		}
		dmax := ingestDMax
		if dmax == "" {
			dmax = cfg.Ingest.DMax
		}

		return p.Run(ctx, pipeline.RunSpec{
			CallsCSV:      ingestCalls,
			WeatherCSV:    ingestWeather,
			CovidCSV:      ingestCovid,
			DMin:          dmin,
			DMax:          dmax,
			WeatherFields: cfg.Weather.Fields,
			Rebuild:       ingestRebuild,
		})
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCalls, "calls", "", "call feed CSV path (required)")
	ingestCmd.Flags().StringVar(&ingestWeather, "weather", "", "weather CSV to merge after aggregation")
	ingestCmd.Flags().StringVar(&ingestCovid, "covid", "", "covid CSV to merge after aggregation")
	ingestCmd.Flags().StringVar(&ingestDMin, "dmin", "", "keep events on or after this day (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestDMax, "dmax", "", "keep events on or before this day (YYYY-MM-DD)")
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "drop and recreate all tables first")
	ingestCmd.MarkFlagRequired("calls")
	rootCmd.AddCommand(ingestCmd)
}
