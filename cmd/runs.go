package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded ingestion runs as JSON, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := openPipeline(ctx, true)
		if err != nil {
			return err
		}
		defer p.Close()

		runs, err := p.Store.Runs(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
