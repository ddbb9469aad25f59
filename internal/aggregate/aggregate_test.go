package aggregate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rainier-analytics/call-pipeline/internal/holiday"
	"github.com/rainier-analytics/call-pipeline/internal/model"
	"github.com/rainier-analytics/call-pipeline/internal/population"
	"github.com/rainier-analytics/call-pipeline/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedEvents(t *testing.T, st store.Store, events []model.CallEvent) {
	t.Helper()
	_, err := st.InsertCalls(context.Background(), events)
	require.NoError(t, err)
}

func event(id, date string, hour int, typ string) model.CallEvent {
	d, _ := model.ParseDate(date)
	ts := time.Date(d.Year(), d.Month(), d.Day(), hour, 30, 0, 0, time.Local)
	return model.CallEvent{
		ID: id, Type: typ, Date: date,
		Year: d.Year(), Month: int(d.Month()), Day: d.Day(),
		Weekday: model.Weekday(d), Hour: hour, Minute: 30,
		Timestamp: ts.Unix(),
	}
}

func day(date string) time.Time {
	d, _ := model.ParseDate(date)
	return d
}

func TestBuildRangeSummaries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedEvents(t, st, []model.CallEvent{
		event("F1", "2022-01-06", 7, "Aid Response"),
		event("F2", "2022-01-06", 7, "Aid Response"),
		event("F3", "2022-01-06", 19, "Medic Response"),
		event("F4", "2022-01-08", 3, "Aid Response"),
	})

	pop, err := population.Default()
	require.NoError(t, err)
	b := New(st, holiday.NewCodes(), pop)

	inserted, err := b.BuildRange(ctx, day("2022-01-06"), day("2022-01-08"), store.PolicyIgnore)
	require.NoError(t, err)
	assert.Equal(t, int64(3), inserted, "one summary per calendar day, gap days included")

	details, err := st.DayDetails(ctx, "2022-01-06")
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, "2022-01-06", details.Date)
	assert.Equal(t, 2022, details.Year)
	assert.Equal(t, 6, details.DayOfYear)
	assert.Equal(t, 3, details.Calls)
	assert.Equal(t, map[string]int{"Aid Response": 2, "Medic Response": 1}, details.TypeStats)
	assert.Equal(t, 3, details.Weekday, "Thursday, Monday = 0")
	assert.Equal(t, 3489000, details.Population)
	assert.Equal(t, "Winter", details.SeasonName)
	assert.Equal(t, 1, details.Winter)
	assert.Zero(t, details.Summer)
	assert.Nil(t, details.HolidayName)
	assert.Equal(t, holiday.NoHoliday, details.Holiday)
	require.Len(t, details.HourlyStats, 24)
	assert.Equal(t, 2, details.HourlyStats[7])
	assert.Equal(t, 1, details.HourlyStats[19])

	// The gap day still gets a row, with zero calls.
	gap, err := st.DayDetails(ctx, "2022-01-07")
	require.NoError(t, err)
	require.NotNil(t, gap)
	assert.Zero(t, gap.Calls)
	assert.Empty(t, gap.TypeStats)
}

func TestBuildRangeHolidays(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedEvents(t, st, []model.CallEvent{
		event("F1", "2022-11-24", 12, "Aid Response"),
	})

	pop, err := population.Default()
	require.NoError(t, err)
	codes := holiday.NewCodes()
	b := New(st, codes, pop)

	_, err = b.BuildRange(ctx, day("2022-11-24"), day("2022-11-25"), store.PolicyIgnore)
	require.NoError(t, err)

	details, err := st.DayDetails(ctx, "2022-11-24")
	require.NoError(t, err)
	require.NotNil(t, details)
	require.NotNil(t, details.HolidayName)
	assert.Equal(t, "Thanksgiving", *details.HolidayName)
	assert.Equal(t, codes.Code("Thanksgiving"), details.Holiday)

	names, err := st.HolidayNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Thanksgiving"}, names)
}

func TestBuildRangeDeterministic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedEvents(t, st, []model.CallEvent{
		event("F1", "2022-01-06", 7, "Aid Response"),
		event("F2", "2022-01-06", 9, "Medic Response"),
	})

	pop, err := population.Default()
	require.NoError(t, err)
	b := New(st, holiday.NewCodes(), pop)

	_, err = b.BuildRange(ctx, day("2022-01-06"), day("2022-01-06"), store.PolicyIgnore)
	require.NoError(t, err)
	first, err := st.DayDetails(ctx, "2022-01-06")
	require.NoError(t, err)

	// A rerun with overwrite over an unchanged store reproduces the row.
	_, err = b.BuildRange(ctx, day("2022-01-06"), day("2022-01-06"), store.PolicyOverwrite)
	require.NoError(t, err)
	second, err := st.DayDetails(ctx, "2022-01-06")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// And a rerun with ignore inserts nothing.
	inserted, err := b.BuildRange(ctx, day("2022-01-06"), day("2022-01-06"), store.PolicyIgnore)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestBuildRangeUncoveredYear(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedEvents(t, st, []model.CallEvent{
		event("F1", "1901-06-15", 7, "Aid Response"),
	})

	pop, err := population.Default()
	require.NoError(t, err)
	b := New(st, holiday.NewCodes(), pop)

	_, err = b.BuildRange(ctx, day("1901-06-15"), day("1901-06-15"), store.PolicyIgnore)
	require.Error(t, err)
	assert.True(t, errors.Is(err, population.ErrYearMissing))
}
