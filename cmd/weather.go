package main

import (
	"github.com/spf13/cobra"
)

var (
	weatherCSV     string
	weatherFields  []string
	weatherRebuild bool
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Merge a weather feed into an existing store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := openPipeline(ctx, true)
		if err != nil {
			return err
		}
		defer p.Close()

		fields := weatherFields
		if len(fields) == 0 {
			fields = cfg.Weather.Fields
		}
		return p.MergeWeatherFile(ctx, weatherCSV, fields, weatherRebuild)
	},
}

func init() {
	weatherCmd.Flags().StringVar(&weatherCSV, "csv", "", "weather CSV path (required)")
	weatherCmd.Flags().StringSliceVar(&weatherFields, "fields", nil, "station fields to keep (default from config, must include DATE)")
	weatherCmd.Flags().BoolVar(&weatherRebuild, "rebuild", false, "clear stored weather fields before merging")
	weatherCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(weatherCmd)
}
