package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainier-analytics/call-pipeline/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresInsertCalls(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	lat, lon := 47.6, -122.3
	ev := model.CallEvent{
		ID: "F1", Date: "2022-01-06", Address: "123 Main St", Type: "Aid Response",
		Year: 2022, Month: 1, Day: 6, Weekday: 3, Hour: 7, Minute: 15,
		Timestamp: 1641481500, Lat: &lat, Lon: &lon,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO calls").
		WithArgs(ev.ID, ev.Date, ev.Address, ev.Type, ev.Year, ev.Month, ev.Day,
			ev.Weekday, ev.Hour, ev.Minute, ev.Second, ev.Holiday, ev.Timestamp,
			ev.Lat, ev.Lon).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.InsertCalls(ctx, []model.CallEvent{ev})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCallQueries(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("F1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.CallExists(ctx, "F1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT type FROM calls").
		WithArgs("F404").
		WillReturnError(pgx.ErrNoRows)

	_, err = s.CallType(ctx, "F404")
	assert.Error(t, err)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(100), int64(200)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	n, err := s.CountBetween(ctx, 100, 200)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDayDetailsNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT details FROM dates").
		WithArgs("2099-01-01").
		WillReturnError(pgx.ErrNoRows)

	details, err := s.DayDetails(context.Background(), "2099-01-01")
	require.NoError(t, err)
	assert.Nil(t, details, "a missing summary row is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWeatherNullBlob(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT weather FROM dates").
		WithArgs("2022-01-06").
		WillReturnRows(pgxmock.NewRows([]string{"weather"}).AddRow(nil))

	weather, err := s.Weather(context.Background(), "2022-01-06")
	require.NoError(t, err)
	assert.Empty(t, weather)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCovidDayNotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT (.+) FROM covid").
		WithArgs("2099-01-01").
		WillReturnError(pgx.ErrNoRows)

	day, err := s.CovidDay(context.Background(), "2099-01-01")
	require.NoError(t, err)
	assert.Nil(t, day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateCovidRollingMissingRow(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("UPDATE covid SET").
		WithArgs(1, 2, 3, 4, "2099-01-01").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateCovidRolling(context.Background(), "2099-01-01", model.RollingSums{
		SevenDayPCRTest: 1, SevenDayPCRPos: 2, SevenDayHospCnt: 3, SevenDayDeathCnt: 4,
	})
	assert.Error(t, err, "the rolling pass must never silently skip a day")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresVerifyVersion(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id FROM schema_version").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(SchemaVersion))
	assert.NoError(t, s.VerifyVersion(ctx))

	mock.ExpectQuery("SELECT id FROM schema_version").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("v0.0.1"))
	err := s.VerifyVersion(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatibleVersion))

	mock.ExpectQuery("SELECT id FROM schema_version").
		WillReturnError(pgx.ErrNoRows)
	err = s.VerifyVersion(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompatibleVersion))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresHolidayNames(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT holiday FROM dates").
		WillReturnRows(pgxmock.NewRows([]string{"holiday"}).
			AddRow("New Year's Day").
			AddRow("Martin Luther King Jr. Day").
			AddRow("New Year's Day"))

	names, err := s.HolidayNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"New Year's Day", "Martin Luther King Jr. Day"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRuns(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT id, source, dmin, dmax, rows_parsed, rows_inserted, status").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "source", "dmin", "dmax", "rows_parsed", "rows_inserted", "status"}).
			AddRow("run-2", "calls.csv", "", "", 8, int64(0), "complete").
			AddRow("run-1", "calls.csv", "2022-01-01", "2022-01-31", 1000, int64(990), "complete"))

	runs, err := s.Runs(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, int64(990), runs[1].RowsInserted)
	assert.Equal(t, "2022-01-01", runs[1].DMin)
	assert.NoError(t, mock.ExpectationsWereMet())
}
