package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rainier-analytics/call-pipeline/internal/model"
	"github.com/rainier-analytics/call-pipeline/internal/store"
)

// MergeCovid applies parsed covid rows to the store, then runs the
// chronological rolling-window pass from first to last. Source rows for
// dates with no summary row are dropped; existing covid rows are never
// re-inserted unless rebuild is set, which drops the covid table first.
func MergeCovid(ctx context.Context, st store.Store, days []model.CovidDay, first, last time.Time, rebuild bool) error {
	log := zap.L().With(zap.String("component", "enrich.covid"))

	if rebuild {
		if err := st.DropCovid(ctx); err != nil {
			return err
		}
	}

	var keep []model.CovidDay
	for _, day := range days {
		known, err := st.SummaryExists(ctx, day.Date)
		if err != nil {
			return err
		}
		if known {
			keep = append(keep, day)
		}
	}

	inserted, err := st.InsertCovid(ctx, keep, store.PolicyIgnore)
	if err != nil {
		return err
	}
	log.Info("covid source rows written",
		zap.Int("rows", len(keep)),
		zap.Int64("inserted", inserted),
		zap.Int("dropped", len(days)-len(keep)),
	)

	if err := rollForward(ctx, st, first, last); err != nil {
		return err
	}
	log.Info("covid rolling pass complete")
	return nil
}

// rollForward walks every day from first to last in chronological order,
// maintaining the four trailing 7-day windows. Gap days get a zero-filled
// row inserted with the current sums; existing days contribute their stored
// daily counts and have only the rolling-sum columns rewritten. The order
// is load-bearing: each day's sums depend on the prior 7 days' state.
func rollForward(ctx context.Context, st store.Store, first, last time.Time) error {
	pcrTest := newWindow(7)
	pcrPos := newWindow(7)
	hospCnt := newWindow(7)
	deathCnt := newWindow(7)

	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.Local)
	end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.Local)

	for !day.After(end) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		date := day.Format(model.DateLayout)
		existing, err := st.CovidDay(ctx, date)
		if err != nil {
			return err
		}

		if existing == nil {
			pcrTest.push(0)
			pcrPos.push(0)
			hospCnt.push(0)
			deathCnt.push(0)

			row := model.CovidDay{
				Date: date,
				RollingSums: model.RollingSums{
					SevenDayPCRTest:  pcrTest.sum(),
					SevenDayPCRPos:   pcrPos.sum(),
					SevenDayHospCnt:  hospCnt.sum(),
					SevenDayDeathCnt: deathCnt.sum(),
				},
			}
			if model.PandemicActive(day) {
				row.Pandemic = 1
			}
			if _, err := st.InsertCovid(ctx, []model.CovidDay{row}, store.PolicyIgnore); err != nil {
				return err
			}
		} else {
			// Stored daily counts feed the window as-is; they are
			// never re-derived from the source.
			pcrTest.push(existing.PCRTest)
			pcrPos.push(existing.PCRPos)
			hospCnt.push(existing.HospCnt)
			deathCnt.push(existing.DeathCnt)

			sums := model.RollingSums{
				SevenDayPCRTest:  pcrTest.sum(),
				SevenDayPCRPos:   pcrPos.sum(),
				SevenDayHospCnt:  hospCnt.sum(),
				SevenDayDeathCnt: deathCnt.sum(),
			}
			if err := st.UpdateCovidRolling(ctx, date, sums); err != nil {
				return err
			}
		}

		day = day.AddDate(0, 0, 1)
	}
	return nil
}
