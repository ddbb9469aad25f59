package main

import (
	"github.com/spf13/cobra"
)

var (
	covidCSV     string
	covidRebuild bool
)

var covidCmd = &cobra.Command{
	Use:   "covid",
	Short: "Merge a covid feed into an existing store",
	Long:  "Inserts daily covid counts for days present in the summary table, then recomputes the 7-day rolling sums over the store's full date range.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := openPipeline(ctx, true)
		if err != nil {
			return err
		}
		defer p.Close()

		return p.MergeCovidFile(ctx, covidCSV, covidRebuild)
	},
}

func init() {
	covidCmd.Flags().StringVar(&covidCSV, "csv", "", "covid CSV path (required)")
	covidCmd.Flags().BoolVar(&covidRebuild, "rebuild", false, "drop the covid table before merging")
	covidCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(covidCmd)
}
