package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rainier-analytics/call-pipeline/internal/db"
	"github.com/rainier-analytics/call-pipeline/internal/model"
)

// PostgresStore implements Store using pgxpool. It offers the same
// single-writer semantics as the SQLite backend for shared deployments.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS calls (
	id        TEXT PRIMARY KEY,
	date      TEXT NOT NULL,
	address   TEXT,
	type      TEXT,
	year      INT NOT NULL,
	month     INT NOT NULL,
	day       INT NOT NULL,
	week_day  INT NOT NULL,
	hour      INT NOT NULL,
	minute    INT NOT NULL,
	second    INT NOT NULL,
	holiday   INT NOT NULL DEFAULT 0,
	timestamp BIGINT NOT NULL,
	lat       DOUBLE PRECISION,
	lon       DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS dates (
	id          TEXT PRIMARY KEY,
	year        INT NOT NULL,
	day_of_year INT NOT NULL,
	month       INT NOT NULL,
	day         INT NOT NULL,
	weekday     INT NOT NULL,
	holiday     TEXT,
	calls       INT NOT NULL,
	details     JSONB NOT NULL,
	population  INT NOT NULL,
	weather     JSONB
);

CREATE TABLE IF NOT EXISTS covid (
	id                  TEXT PRIMARY KEY,
	pandemic            INT NOT NULL,
	pcr_test            INT NOT NULL,
	pcr_pos             INT NOT NULL,
	hosp_cnt            INT NOT NULL,
	death_cnt           INT NOT NULL,
	seven_day_pcr_test  INT NOT NULL,
	seven_day_pcr_pos   INT NOT NULL,
	seven_day_hosp_cnt  INT NOT NULL,
	seven_day_death_cnt INT NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	dmin          TEXT,
	dmax          TEXT,
	rows_parsed   INT NOT NULL,
	rows_inserted BIGINT NOT NULL,
	status        TEXT NOT NULL,
	recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schema_version (id TEXT PRIMARY KEY);

CREATE INDEX IF NOT EXISTS idx_calls_timestamp ON calls(timestamp);
CREATE INDEX IF NOT EXISTS idx_calls_date ON calls(date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM schema_version`); err != nil {
		return eris.Wrap(err, "postgres: clear version")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO schema_version (id) VALUES ($1)`, SchemaVersion)
	return eris.Wrap(err, "postgres: stamp version")
}

func (s *PostgresStore) Rebuild(ctx context.Context) error {
	for _, table := range []string{"calls", "dates", "covid"} {
		if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return eris.Wrapf(err, "postgres: drop %s", table)
		}
	}
	return s.Migrate(ctx)
}

func (s *PostgresStore) VerifyVersion(ctx context.Context) error {
	var got string
	err := s.pool.QueryRow(ctx, `SELECT id FROM schema_version LIMIT 1`).Scan(&got)
	if err != nil {
		return eris.Wrap(ErrIncompatibleVersion, "no version marker")
	}
	if got != SchemaVersion {
		return eris.Wrapf(ErrIncompatibleVersion, "store has %s, want %s", got, SchemaVersion)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var callColumns = []string{
	"id", "date", "address", "type", "year", "month", "day", "week_day",
	"hour", "minute", "second", "holiday", "timestamp", "lat", "lon",
}

func (s *PostgresStore) InsertCalls(ctx context.Context, events []model.CallEvent) (int64, error) {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []any{
			ev.ID, ev.Date, ev.Address, ev.Type, ev.Year, ev.Month, ev.Day,
			ev.Weekday, ev.Hour, ev.Minute, ev.Second, ev.Holiday, ev.Timestamp,
			ev.Lat, ev.Lon,
		})
	}
	return db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "calls",
		Columns:      callColumns,
		ConflictKeys: []string{"id"},
	}, rows)
}

func (s *PostgresStore) CallExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM calls WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, eris.Wrapf(err, "postgres: call exists %s", id)
}

func (s *PostgresStore) CallType(ctx context.Context, id string) (string, error) {
	var typ string
	err := s.pool.QueryRow(ctx, `SELECT type FROM calls WHERE id = $1`, id).Scan(&typ)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", eris.Errorf("postgres: call not found: %s", id)
	}
	return typ, eris.Wrapf(err, "postgres: call type %s", id)
}

func (s *PostgresStore) CountBetween(ctx context.Context, startTS, endTS int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM calls WHERE timestamp >= $1 AND timestamp < $2`,
		startTS, endTS,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count between")
}

func (s *PostgresStore) CountDaily(ctx context.Context, date string) (int, error) {
	start, end, err := dayBounds(date)
	if err != nil {
		return 0, err
	}
	return s.CountBetween(ctx, start, end)
}

func (s *PostgresStore) TypeHistogram(ctx context.Context, date string) (map[string]int, error) {
	start, end, err := dayBounds(date)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT type, COUNT(*) FROM calls WHERE timestamp >= $1 AND timestamp < $2 GROUP BY type`,
		start, end,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: type histogram")
	}
	defer rows.Close()

	hist := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan type histogram")
		}
		hist[typ] = n
	}
	return hist, eris.Wrap(rows.Err(), "postgres: type histogram iterate")
}

func (s *PostgresStore) HourlyHistogram(ctx context.Context, date string) ([]int, error) {
	start, end, err := dayBounds(date)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT hour, COUNT(*) FROM calls WHERE timestamp >= $1 AND timestamp < $2 GROUP BY hour`,
		start, end,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: hourly histogram")
	}
	defer rows.Close()

	hist := make([]int, 24)
	for rows.Next() {
		var hour, n int
		if err := rows.Scan(&hour, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hourly histogram")
		}
		if hour >= 0 && hour < 24 {
			hist[hour] = n
		}
	}
	return hist, eris.Wrap(rows.Err(), "postgres: hourly histogram iterate")
}

func (s *PostgresStore) TimestampBounds(ctx context.Context) (int64, int64, error) {
	var first, last sql.NullInt64
	err := s.pool.QueryRow(ctx,
		`SELECT MIN(timestamp), MAX(timestamp) FROM calls`,
	).Scan(&first, &last)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: timestamp bounds")
	}
	if !first.Valid || !last.Valid {
		return 0, 0, eris.New("postgres: no call events in store")
	}
	return first.Int64, last.Int64, nil
}

var summaryColumns = []string{
	"id", "year", "day_of_year", "month", "day", "weekday", "holiday",
	"calls", "details", "population",
}

func (s *PostgresStore) InsertSummaries(ctx context.Context, rows []model.DaySummary, policy UpsertPolicy) (int64, error) {
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		details, err := row.Details.Encode()
		if err != nil {
			return 0, err
		}
		values = append(values, []any{
			row.Date, row.Year, row.DayOfYear, row.Month, row.Day, row.Weekday,
			row.HolidayName, row.Calls, string(details), row.Population,
		})
	}
	return db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "dates",
		Columns:      summaryColumns,
		ConflictKeys: []string{"id"},
		Overwrite:    policy == PolicyOverwrite,
	}, values)
}

func (s *PostgresStore) SummaryExists(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM dates WHERE id = $1)`, date,
	).Scan(&exists)
	return exists, eris.Wrapf(err, "postgres: summary exists %s", date)
}

func (s *PostgresStore) SummaryDates(ctx context.Context, first, last string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM dates WHERE id >= $1 AND id <= $2 ORDER BY id`, first, last,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summary dates")
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "postgres: scan summary date")
		}
		dates = append(dates, d)
	}
	return dates, eris.Wrap(rows.Err(), "postgres: summary dates iterate")
}

func (s *PostgresStore) HolidayNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT holiday FROM dates WHERE holiday IS NOT NULL ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: holiday names")
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan holiday name")
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, eris.Wrap(rows.Err(), "postgres: holiday names iterate")
}

func (s *PostgresStore) DayDetails(ctx context.Context, date string) (*model.DayDetails, error) {
	var blob string
	err := s.pool.QueryRow(ctx, `SELECT details FROM dates WHERE id = $1`, date).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: day details %s", date)
	}
	return model.DecodeDayDetails([]byte(blob))
}

func (s *PostgresStore) Weather(ctx context.Context, date string) (map[string]any, error) {
	var blob *string
	err := s.pool.QueryRow(ctx, `SELECT weather FROM dates WHERE id = $1`, date).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: weather %s", date)
	}
	if blob == nil {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(*blob), &fields); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode weather %s", date)
	}
	return fields, nil
}

func (s *PostgresStore) SetWeather(ctx context.Context, date string, fields map[string]any) error {
	blob, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrapf(err, "postgres: encode weather %s", date)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE dates SET weather = $1 WHERE id = $2`, string(blob), date,
	)
	return eris.Wrapf(err, "postgres: set weather %s", date)
}

func (s *PostgresStore) ClearWeather(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `UPDATE dates SET weather = NULL`)
	return eris.Wrap(err, "postgres: clear weather")
}

var covidColumns = []string{
	"id", "pandemic", "pcr_test", "pcr_pos", "hosp_cnt", "death_cnt",
	"seven_day_pcr_test", "seven_day_pcr_pos", "seven_day_hosp_cnt", "seven_day_death_cnt",
}

func (s *PostgresStore) InsertCovid(ctx context.Context, rows []model.CovidDay, policy UpsertPolicy) (int64, error) {
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, []any{
			row.Date, row.Pandemic, row.PCRTest, row.PCRPos, row.HospCnt, row.DeathCnt,
			row.SevenDayPCRTest, row.SevenDayPCRPos, row.SevenDayHospCnt, row.SevenDayDeathCnt,
		})
	}
	return db.BulkInsert(ctx, s.pool, db.InsertConfig{
		Table:        "covid",
		Columns:      covidColumns,
		ConflictKeys: []string{"id"},
		Overwrite:    policy == PolicyOverwrite,
	}, values)
}

func (s *PostgresStore) CovidDay(ctx context.Context, date string) (*model.CovidDay, error) {
	var d model.CovidDay
	err := s.pool.QueryRow(ctx,
		`SELECT id, pandemic, pcr_test, pcr_pos, hosp_cnt, death_cnt,
		        seven_day_pcr_test, seven_day_pcr_pos, seven_day_hosp_cnt, seven_day_death_cnt
		 FROM covid WHERE id = $1`, date,
	).Scan(
		&d.Date, &d.Pandemic, &d.PCRTest, &d.PCRPos, &d.HospCnt, &d.DeathCnt,
		&d.SevenDayPCRTest, &d.SevenDayPCRPos, &d.SevenDayHospCnt, &d.SevenDayDeathCnt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: covid day %s", date)
	}
	return &d, nil
}

func (s *PostgresStore) UpdateCovidRolling(ctx context.Context, date string, sums model.RollingSums) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE covid SET seven_day_pcr_test = $1, seven_day_pcr_pos = $2,
		        seven_day_hosp_cnt = $3, seven_day_death_cnt = $4
		 WHERE id = $5`,
		sums.SevenDayPCRTest, sums.SevenDayPCRPos, sums.SevenDayHospCnt, sums.SevenDayDeathCnt, date,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update covid rolling %s", date)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: covid row not found: %s", date)
	}
	return nil
}

func (s *PostgresStore) DropCovid(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS covid`); err != nil {
		return eris.Wrap(err, "postgres: drop covid")
	}
	return s.Migrate(ctx)
}

func (s *PostgresStore) RecordRun(ctx context.Context, run IngestRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, source, dmin, dmax, rows_parsed, rows_inserted, status, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Source, run.DMin, run.DMax, run.RowsParsed, run.RowsInserted, run.Status,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record run %s", run.ID)
}

// Runs returns the recorded ingestion runs, newest first.
func (s *PostgresStore) Runs(ctx context.Context) ([]IngestRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, dmin, dmax, rows_parsed, rows_inserted, status
		 FROM ingest_runs ORDER BY recorded_at DESC, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var r IngestRun
		if err := rows.Scan(&r.ID, &r.Source, &r.DMin, &r.DMax, &r.RowsParsed, &r.RowsInserted, &r.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}
