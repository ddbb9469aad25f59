// Package store persists call events, daily summaries and the auxiliary
// covid series behind a backend-neutral interface. SQLite is the default
// backend; Postgres is available for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rainier-analytics/call-pipeline/internal/model"
)

// SchemaVersion is stamped into every store at migration time and checked
// on every load-existing entry path before any read.
const SchemaVersion = "v1.0.0"

// ErrIncompatibleVersion is returned when a persisted store carries a
// different schema version than this build. Fatal: callers must abort
// before reading.
var ErrIncompatibleVersion = eris.New("store: incompatible store version")

// UpsertPolicy selects what happens when an insert hits an existing key.
type UpsertPolicy int

const (
	// PolicyIgnore silently drops rows whose key already exists. This is
	// the default for every incremental pass; it is what makes reruns
	// idempotent.
	PolicyIgnore UpsertPolicy = iota
	// PolicyOverwrite replaces the non-key columns of existing rows. Used
	// only under explicit rebuild.
	PolicyOverwrite
)

// IngestRun records one pipeline invocation for bookkeeping.
type IngestRun struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	DMin         string `json:"dmin,omitempty"`
	DMax         string `json:"dmax,omitempty"`
	RowsParsed   int    `json:"rows_parsed"`
	RowsInserted int64  `json:"rows_inserted"`
	Status       string `json:"status"`
}

// Store is the persistence interface for the ingestion pipeline. All
// mutating calls commit durably before returning; the model is single
// process, single writer.
type Store interface {
	// Call events (append-only, keyed by incident id)
	InsertCalls(ctx context.Context, events []model.CallEvent) (int64, error)
	CallExists(ctx context.Context, id string) (bool, error)
	CallType(ctx context.Context, id string) (string, error)
	CountBetween(ctx context.Context, startTS, endTS int64) (int, error)
	CountDaily(ctx context.Context, date string) (int, error)
	TypeHistogram(ctx context.Context, date string) (map[string]int, error)
	HourlyHistogram(ctx context.Context, date string) ([]int, error)
	TimestampBounds(ctx context.Context) (first, last int64, err error)

	// Daily summaries
	InsertSummaries(ctx context.Context, rows []model.DaySummary, policy UpsertPolicy) (int64, error)
	SummaryExists(ctx context.Context, date string) (bool, error)
	SummaryDates(ctx context.Context, first, last string) ([]string, error)
	HolidayNames(ctx context.Context) ([]string, error)
	DayDetails(ctx context.Context, date string) (*model.DayDetails, error)
	Weather(ctx context.Context, date string) (map[string]any, error)
	SetWeather(ctx context.Context, date string, fields map[string]any) error
	ClearWeather(ctx context.Context) error

	// Covid series
	InsertCovid(ctx context.Context, rows []model.CovidDay, policy UpsertPolicy) (int64, error)
	CovidDay(ctx context.Context, date string) (*model.CovidDay, error)
	UpdateCovidRolling(ctx context.Context, date string, sums model.RollingSums) error
	DropCovid(ctx context.Context) error

	// Bookkeeping
	RecordRun(ctx context.Context, run IngestRun) error
	Runs(ctx context.Context) ([]IngestRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Rebuild(ctx context.Context) error
	VerifyVersion(ctx context.Context) error
	Close() error
}

// dayBounds converts an ISO date to the half-open local-day timestamp pair
// shared by both backends.
func dayBounds(date string) (int64, int64, error) {
	t, err := model.ParseDate(date)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "store: parse date %q", date)
	}
	start, end := model.DayBounds(t)
	return start, end, nil
}
