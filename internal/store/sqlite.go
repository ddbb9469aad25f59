package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rainier-analytics/call-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. A single open connection enforces the single-writer model.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS calls (
	id        TEXT PRIMARY KEY,
	date      TEXT NOT NULL,
	address   TEXT,
	type      TEXT,
	year      INTEGER NOT NULL,
	month     INTEGER NOT NULL,
	day       INTEGER NOT NULL,
	week_day  INTEGER NOT NULL,
	hour      INTEGER NOT NULL,
	minute    INTEGER NOT NULL,
	second    INTEGER NOT NULL,
	holiday   INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL,
	lat       REAL,
	lon       REAL
);

CREATE TABLE IF NOT EXISTS dates (
	id          TEXT PRIMARY KEY,
	year        INTEGER NOT NULL,
	day_of_year INTEGER NOT NULL,
	month       INTEGER NOT NULL,
	day         INTEGER NOT NULL,
	weekday     INTEGER NOT NULL,
	holiday     TEXT,
	calls       INTEGER NOT NULL,
	details     TEXT NOT NULL,
	population  INTEGER NOT NULL,
	weather     TEXT
);

CREATE TABLE IF NOT EXISTS covid (
	id                  TEXT PRIMARY KEY,
	pandemic            INTEGER NOT NULL,
	pcr_test            INTEGER NOT NULL,
	pcr_pos             INTEGER NOT NULL,
	hosp_cnt            INTEGER NOT NULL,
	death_cnt           INTEGER NOT NULL,
	seven_day_pcr_test  INTEGER NOT NULL,
	seven_day_pcr_pos   INTEGER NOT NULL,
	seven_day_hosp_cnt  INTEGER NOT NULL,
	seven_day_death_cnt INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	dmin          TEXT,
	dmax          TEXT,
	rows_parsed   INTEGER NOT NULL,
	rows_inserted INTEGER NOT NULL,
	status        TEXT NOT NULL,
	recorded_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS schema_version (id TEXT PRIMARY KEY);

CREATE INDEX IF NOT EXISTS idx_calls_timestamp ON calls(timestamp);
CREATE INDEX IF NOT EXISTS idx_calls_date ON calls(date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
		return eris.Wrap(err, "sqlite: clear version")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO schema_version (id) VALUES (?)`, SchemaVersion)
	return eris.Wrap(err, "sqlite: stamp version")
}

// Rebuild drops every data table and recreates the schema from scratch.
func (s *SQLiteStore) Rebuild(ctx context.Context) error {
	for _, table := range []string{"calls", "dates", "covid"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return eris.Wrapf(err, "sqlite: drop %s", table)
		}
	}
	return s.Migrate(ctx)
}

// VerifyVersion checks the persisted schema version marker. Any mismatch,
// including a missing marker, is ErrIncompatibleVersion.
func (s *SQLiteStore) VerifyVersion(ctx context.Context) error {
	var got string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM schema_version LIMIT 1`).Scan(&got)
	if err != nil {
		return eris.Wrap(ErrIncompatibleVersion, "no version marker")
	}
	if got != SchemaVersion {
		return eris.Wrapf(ErrIncompatibleVersion, "store has %s, want %s", got, SchemaVersion)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertCalls bulk-inserts events with insert-or-ignore semantics: events
// whose incident id already exists are silently dropped, never updated.
// The whole batch commits in a single transaction.
func (s *SQLiteStore) InsertCalls(ctx context.Context, events []model.CallEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert calls")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO calls
		 (id, date, address, type, year, month, day, week_day, hour, minute, second, holiday, timestamp, lat, lon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert calls")
	}
	defer stmt.Close()

	var inserted int64
	for _, ev := range events {
		res, err := stmt.ExecContext(ctx,
			ev.ID, ev.Date, ev.Address, ev.Type, ev.Year, ev.Month, ev.Day,
			ev.Weekday, ev.Hour, ev.Minute, ev.Second, ev.Holiday, ev.Timestamp,
			ev.Lat, ev.Lon,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert call %s", ev.ID)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return inserted, eris.Wrap(err, "sqlite: commit insert calls")
	}
	return inserted, nil
}

func (s *SQLiteStore) CallExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM calls WHERE id = ?)`, id,
	).Scan(&exists)
	return exists, eris.Wrapf(err, "sqlite: call exists %s", id)
}

func (s *SQLiteStore) CallType(ctx context.Context, id string) (string, error) {
	var typ string
	err := s.db.QueryRowContext(ctx, `SELECT type FROM calls WHERE id = ?`, id).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", eris.Errorf("sqlite: call not found: %s", id)
	}
	return typ, eris.Wrapf(err, "sqlite: call type %s", id)
}

func (s *SQLiteStore) CountBetween(ctx context.Context, startTS, endTS int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calls WHERE timestamp >= ? AND timestamp < ?`,
		startTS, endTS,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count between")
}

func (s *SQLiteStore) CountDaily(ctx context.Context, date string) (int, error) {
	start, end, err := dayBounds(date)
	if err != nil {
		return 0, err
	}
	return s.CountBetween(ctx, start, end)
}

func (s *SQLiteStore) TypeHistogram(ctx context.Context, date string) (map[string]int, error) {
	start, end, err := dayBounds(date)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM calls WHERE timestamp >= ? AND timestamp < ? GROUP BY type`,
		start, end,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: type histogram")
	}
	defer rows.Close()

	hist := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan type histogram")
		}
		hist[typ] = n
	}
	return hist, eris.Wrap(rows.Err(), "sqlite: type histogram iterate")
}

func (s *SQLiteStore) HourlyHistogram(ctx context.Context, date string) ([]int, error) {
	start, end, err := dayBounds(date)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT hour, COUNT(*) FROM calls WHERE timestamp >= ? AND timestamp < ? GROUP BY hour`,
		start, end,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: hourly histogram")
	}
	defer rows.Close()

	hist := make([]int, 24)
	for rows.Next() {
		var hour, n int
		if err := rows.Scan(&hour, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hourly histogram")
		}
		if hour >= 0 && hour < 24 {
			hist[hour] = n
		}
	}
	return hist, eris.Wrap(rows.Err(), "sqlite: hourly histogram iterate")
}

func (s *SQLiteStore) TimestampBounds(ctx context.Context) (int64, int64, error) {
	var first, last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(timestamp), MAX(timestamp) FROM calls`,
	).Scan(&first, &last)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: timestamp bounds")
	}
	if !first.Valid || !last.Valid {
		return 0, 0, eris.New("sqlite: no call events in store")
	}
	return first.Int64, last.Int64, nil
}

func (s *SQLiteStore) InsertSummaries(ctx context.Context, rows []model.DaySummary, policy UpsertPolicy) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	conflict := `DO NOTHING`
	if policy == PolicyOverwrite {
		conflict = `DO UPDATE SET
			year = excluded.year, day_of_year = excluded.day_of_year,
			month = excluded.month, day = excluded.day, weekday = excluded.weekday,
			holiday = excluded.holiday, calls = excluded.calls,
			details = excluded.details, population = excluded.population`
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert summaries")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO dates (id, year, day_of_year, month, day, weekday, holiday, calls, details, population)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) `+conflict,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert summaries")
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		details, err := row.Details.Encode()
		if err != nil {
			return inserted, err
		}
		res, err := stmt.ExecContext(ctx,
			row.Date, row.Year, row.DayOfYear, row.Month, row.Day, row.Weekday,
			row.HolidayName, row.Calls, string(details), row.Population,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert summary %s", row.Date)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return inserted, eris.Wrap(err, "sqlite: commit insert summaries")
	}
	return inserted, nil
}

func (s *SQLiteStore) SummaryExists(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM dates WHERE id = ?)`, date,
	).Scan(&exists)
	return exists, eris.Wrapf(err, "sqlite: summary exists %s", date)
}

// SummaryDates returns the summary dates within the inclusive range, in
// chronological order. ISO dates compare correctly as strings.
func (s *SQLiteStore) SummaryDates(ctx context.Context, first, last string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM dates WHERE id >= ? AND id <= ? ORDER BY id`, first, last,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summary dates")
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan summary date")
		}
		dates = append(dates, d)
	}
	return dates, eris.Wrap(rows.Err(), "sqlite: summary dates iterate")
}

// HolidayNames returns the distinct non-null holiday names from the summary
// table in date order of first appearance, the order used to reseed the
// holiday code registry.
func (s *SQLiteStore) HolidayNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT holiday FROM dates WHERE holiday IS NOT NULL ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: holiday names")
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan holiday name")
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, eris.Wrap(rows.Err(), "sqlite: holiday names iterate")
}

func (s *SQLiteStore) DayDetails(ctx context.Context, date string) (*model.DayDetails, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT details FROM dates WHERE id = ?`, date).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: day details %s", date)
	}
	return model.DecodeDayDetails([]byte(blob))
}

// Weather returns the weather blob for a date, or an empty map when none is
// recorded.
func (s *SQLiteStore) Weather(ctx context.Context, date string) (map[string]any, error) {
	var blob sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT weather FROM dates WHERE id = ?`, date).Scan(&blob)
	if err == sql.ErrNoRows {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: weather %s", date)
	}
	if !blob.Valid {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(blob.String), &fields); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode weather %s", date)
	}
	return fields, nil
}

func (s *SQLiteStore) SetWeather(ctx context.Context, date string, fields map[string]any) error {
	blob, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrapf(err, "sqlite: encode weather %s", date)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE dates SET weather = ? WHERE id = ?`, string(blob), date,
	)
	return eris.Wrapf(err, "sqlite: set weather %s", date)
}

// ClearWeather wipes all weather blobs; used when a weather merge is run
// with rebuild.
func (s *SQLiteStore) ClearWeather(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE dates SET weather = NULL`)
	return eris.Wrap(err, "sqlite: clear weather")
}

func (s *SQLiteStore) InsertCovid(ctx context.Context, rows []model.CovidDay, policy UpsertPolicy) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	conflict := `DO NOTHING`
	if policy == PolicyOverwrite {
		conflict = `DO UPDATE SET
			pandemic = excluded.pandemic, pcr_test = excluded.pcr_test,
			pcr_pos = excluded.pcr_pos, hosp_cnt = excluded.hosp_cnt,
			death_cnt = excluded.death_cnt,
			seven_day_pcr_test = excluded.seven_day_pcr_test,
			seven_day_pcr_pos = excluded.seven_day_pcr_pos,
			seven_day_hosp_cnt = excluded.seven_day_hosp_cnt,
			seven_day_death_cnt = excluded.seven_day_death_cnt`
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert covid")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO covid
		 (id, pandemic, pcr_test, pcr_pos, hosp_cnt, death_cnt,
		  seven_day_pcr_test, seven_day_pcr_pos, seven_day_hosp_cnt, seven_day_death_cnt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) `+conflict,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert covid")
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx,
			row.Date, row.Pandemic, row.PCRTest, row.PCRPos, row.HospCnt, row.DeathCnt,
			row.SevenDayPCRTest, row.SevenDayPCRPos, row.SevenDayHospCnt, row.SevenDayDeathCnt,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert covid %s", row.Date)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return inserted, eris.Wrap(err, "sqlite: commit insert covid")
	}
	return inserted, nil
}

func (s *SQLiteStore) CovidDay(ctx context.Context, date string) (*model.CovidDay, error) {
	var d model.CovidDay
	err := s.db.QueryRowContext(ctx,
		`SELECT id, pandemic, pcr_test, pcr_pos, hosp_cnt, death_cnt,
		        seven_day_pcr_test, seven_day_pcr_pos, seven_day_hosp_cnt, seven_day_death_cnt
		 FROM covid WHERE id = ?`, date,
	).Scan(
		&d.Date, &d.Pandemic, &d.PCRTest, &d.PCRPos, &d.HospCnt, &d.DeathCnt,
		&d.SevenDayPCRTest, &d.SevenDayPCRPos, &d.SevenDayHospCnt, &d.SevenDayDeathCnt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: covid day %s", date)
	}
	return &d, nil
}

// UpdateCovidRolling rewrites only the four rolling-sum columns of an
// existing covid row; the stored daily counts are never touched.
func (s *SQLiteStore) UpdateCovidRolling(ctx context.Context, date string, sums model.RollingSums) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE covid SET seven_day_pcr_test = ?, seven_day_pcr_pos = ?,
		        seven_day_hosp_cnt = ?, seven_day_death_cnt = ?
		 WHERE id = ?`,
		sums.SevenDayPCRTest, sums.SevenDayPCRPos, sums.SevenDayHospCnt, sums.SevenDayDeathCnt, date,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update covid rolling %s", date)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: covid row not found: %s", date)
	}
	return nil
}

func (s *SQLiteStore) DropCovid(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS covid`); err != nil {
		return eris.Wrap(err, "sqlite: drop covid")
	}
	return s.Migrate(ctx)
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run IngestRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, source, dmin, dmax, rows_parsed, rows_inserted, status, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.DMin, run.DMax, run.RowsParsed, run.RowsInserted, run.Status,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record run %s", run.ID)
}

// Runs returns the recorded ingestion runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]IngestRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, dmin, dmax, rows_parsed, rows_inserted, status
		 FROM ingest_runs ORDER BY recorded_at DESC, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var r IngestRun
		if err := rows.Scan(&r.ID, &r.Source, &r.DMin, &r.DMax, &r.RowsParsed, &r.RowsInserted, &r.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}
