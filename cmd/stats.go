package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	statsDate    string
	statsBetween []string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print daily summaries as JSON",
	Long:  "With --date, prints the full summary, weather and covid record for one day. With --between, lists the per-day call counts over an inclusive date range.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := openPipeline(ctx, true)
		if err != nil {
			return err
		}
		defer p.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(statsBetween) == 2 {
			dates, err := p.Store.SummaryDates(ctx, statsBetween[0], statsBetween[1])
			if err != nil {
				return err
			}
			out := make([]map[string]any, 0, len(dates))
			for _, date := range dates {
				n, err := p.Store.CountDaily(ctx, date)
				if err != nil {
					return err
				}
				out = append(out, map[string]any{"date": date, "calls": n})
			}
			return enc.Encode(out)
		}

		if statsDate == "" {
			return eris.New("either --date or --between is required")
		}

		details, err := p.Store.DayDetails(ctx, statsDate)
		if err != nil {
			return err
		}
		if details == nil {
			return eris.Errorf("no summary for %s", statsDate)
		}

		out := struct {
			Details any `json:"details"`
			Weather any `json:"weather,omitempty"`
			Covid   any `json:"covid,omitempty"`
		}{Details: details}

		if weather, err := p.Store.Weather(ctx, statsDate); err != nil {
			return err
		} else if len(weather) > 0 {
			out.Weather = weather
		}
		if covid, err := p.Store.CovidDay(ctx, statsDate); err != nil {
			return err
		} else if covid != nil {
			out.Covid = covid
		}

		return enc.Encode(out)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsDate, "date", "", "day to report (YYYY-MM-DD)")
	statsCmd.Flags().StringSliceVar(&statsBetween, "between", nil, "inclusive date range START,END")
	rootCmd.AddCommand(statsCmd)
}
