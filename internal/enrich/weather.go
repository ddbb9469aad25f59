// Package enrich folds the auxiliary weather and covid time series into the
// daily summary tables.
package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/rainier-analytics/call-pipeline/internal/ingest"
	"github.com/rainier-analytics/call-pipeline/internal/store"
)

// MergeWeather applies parsed weather rows to the summary table. Rows whose
// date has no summary row are dropped. An existing non-empty blob is left
// untouched unless rebuild is set: whole-row insert-if-absent, not a
// field-by-field merge.
func MergeWeather(ctx context.Context, st store.Store, rows []ingest.WeatherRow, rebuild bool) (applied int, err error) {
	log := zap.L().With(zap.String("component", "enrich.weather"))

	if rebuild {
		if err := st.ClearWeather(ctx); err != nil {
			return 0, err
		}
	}

	var dropped int
	for _, row := range rows {
		select {
		case <-ctx.Done():
			return applied, ctx.Err()
		default:
		}

		if row.Date == "" {
			dropped++
			continue
		}
		known, err := st.SummaryExists(ctx, row.Date)
		if err != nil {
			return applied, err
		}
		if !known {
			dropped++
			continue
		}

		if !rebuild {
			existing, err := st.Weather(ctx, row.Date)
			if err != nil {
				return applied, err
			}
			if len(existing) > 0 {
				continue
			}
		}

		if err := st.SetWeather(ctx, row.Date, row.Fields); err != nil {
			return applied, err
		}
		applied++
	}

	log.Info("weather merge complete",
		zap.Int("applied", applied),
		zap.Int("dropped", dropped),
	)
	return applied, nil
}
