// Package pipeline orchestrates the full ingestion run: parse the call
// feed, fill the event store, aggregate daily summaries and fold in the
// auxiliary time series.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rainier-analytics/call-pipeline/internal/aggregate"
	"github.com/rainier-analytics/call-pipeline/internal/config"
	"github.com/rainier-analytics/call-pipeline/internal/enrich"
	"github.com/rainier-analytics/call-pipeline/internal/holiday"
	"github.com/rainier-analytics/call-pipeline/internal/ingest"
	"github.com/rainier-analytics/call-pipeline/internal/model"
	"github.com/rainier-analytics/call-pipeline/internal/population"
	"github.com/rainier-analytics/call-pipeline/internal/store"
)

// Pipeline bundles the store and the lookup tables shared by every stage.
type Pipeline struct {
	Store store.Store
	Codes *holiday.Codes
	Pop   population.Table
}

// RunSpec describes one ingestion run.
type RunSpec struct {
	CallsCSV      string
	WeatherCSV    string
	CovidCSV      string
	DMin          string
	DMax          string
	WeatherFields []string
	Rebuild       bool
}

// Open creates the configured store backend and loads the population table.
func Open(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("pipeline: unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	var pop population.Table
	if cfg.Population.Path != "" {
		pop, err = population.LoadFile(cfg.Population.Path)
	} else {
		pop, err = population.Default()
	}
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Pipeline{Store: st, Codes: holiday.NewCodes(), Pop: pop}, nil
}

// Close releases the store.
func (p *Pipeline) Close() {
	if err := p.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// LoadExisting prepares the pipeline for read-only use of a persisted
// store: the schema version marker is checked before any read and the
// holiday code registry is reseeded from the summary table.
func (p *Pipeline) LoadExisting(ctx context.Context) error {
	if err := p.Store.VerifyVersion(ctx); err != nil {
		return err
	}
	names, err := p.Store.HolidayNames(ctx)
	if err != nil {
		return err
	}
	p.Codes.Seed(names)
	return nil
}

// Run executes a full ingestion pass. Reruns over the same sources are
// idempotent unless spec.Rebuild is set, which drops and recreates all
// tables first.
func (p *Pipeline) Run(ctx context.Context, spec RunSpec) error {
	log := zap.L().With(zap.String("component", "pipeline"))

	if spec.Rebuild {
		if err := p.Store.Rebuild(ctx); err != nil {
			return err
		}
	} else if err := p.Store.Migrate(ctx); err != nil {
		return err
	}

	f, err := os.Open(spec.CallsCSV)
	if err != nil {
		return eris.Wrapf(err, "pipeline: open %s", spec.CallsCSV)
	}
	events, err := ingest.ParseCalls(f, p.Codes, ingest.CallOptions{DMin: spec.DMin, DMax: spec.DMax})
	f.Close()
	if err != nil {
		return err
	}
	log.Info("call feed parsed", zap.Int("events", len(events)))

	inserted, err := p.Store.InsertCalls(ctx, events)
	if err != nil {
		return err
	}
	log.Info("call events written", zap.Int64("inserted", inserted))

	first, last, err := p.dateRange(ctx)
	if err != nil {
		return err
	}

	policy := store.PolicyIgnore
	if spec.Rebuild {
		policy = store.PolicyOverwrite
	}
	builder := aggregate.New(p.Store, p.Codes, p.Pop)
	if _, err := builder.BuildRange(ctx, first, last, policy); err != nil {
		return err
	}

	// Parse both auxiliary feeds concurrently; the merges themselves run
	// sequentially (single writer).
	var weatherRows []ingest.WeatherRow
	var covidDays []model.CovidDay

	var g errgroup.Group
	if spec.WeatherCSV != "" {
		g.Go(func() error {
			wf, err := os.Open(spec.WeatherCSV)
			if err != nil {
				return eris.Wrapf(err, "pipeline: open %s", spec.WeatherCSV)
			}
			defer wf.Close()
			weatherRows, err = ingest.ParseWeather(wf, spec.WeatherFields)
			return err
		})
	}
	if spec.CovidCSV != "" {
		g.Go(func() error {
			cf, err := os.Open(spec.CovidCSV)
			if err != nil {
				return eris.Wrapf(err, "pipeline: open %s", spec.CovidCSV)
			}
			defer cf.Close()
			covidDays, err = ingest.ParseCovid(cf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if spec.WeatherCSV != "" {
		if _, err := enrich.MergeWeather(ctx, p.Store, weatherRows, spec.Rebuild); err != nil {
			return err
		}
	}
	if spec.CovidCSV != "" {
		if err := enrich.MergeCovid(ctx, p.Store, covidDays, first, last, spec.Rebuild); err != nil {
			return err
		}
	}

	// The run row is written only once every stage has finished, so an
	// interrupted run never leaves a completed marker behind.
	run := store.IngestRun{
		ID:           uuid.New().String(),
		Source:       spec.CallsCSV,
		DMin:         spec.DMin,
		DMax:         spec.DMax,
		RowsParsed:   len(events),
		RowsInserted: inserted,
		Status:       "complete",
	}
	if err := p.Store.RecordRun(ctx, run); err != nil {
		return err
	}

	log.Info("ingestion run complete", zap.String("run_id", run.ID))
	return nil
}

// MergeWeatherFile folds a weather feed into an existing store.
func (p *Pipeline) MergeWeatherFile(ctx context.Context, path string, fields []string, rebuild bool) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: open %s", path)
	}
	defer f.Close()

	rows, err := ingest.ParseWeather(f, fields)
	if err != nil {
		return err
	}
	_, err = enrich.MergeWeather(ctx, p.Store, rows, rebuild)
	return err
}

// MergeCovidFile folds a covid feed into an existing store.
func (p *Pipeline) MergeCovidFile(ctx context.Context, path string, rebuild bool) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: open %s", path)
	}
	defer f.Close()

	days, err := ingest.ParseCovid(f)
	if err != nil {
		return err
	}
	first, last, err := p.dateRange(ctx)
	if err != nil {
		return err
	}
	return enrich.MergeCovid(ctx, p.Store, days, first, last, rebuild)
}

// dateRange returns the store's observed first and last calendar days.
func (p *Pipeline) dateRange(ctx context.Context) (time.Time, time.Time, error) {
	firstTS, lastTS, err := p.Store.TimestampBounds(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return time.Unix(firstTS, 0).In(time.Local), time.Unix(lastTS, 0).In(time.Local), nil
}
