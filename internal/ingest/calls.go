// Package ingest parses the raw delimited source feeds: the emergency-call
// log plus the auxiliary weather and COVID time series.
package ingest

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rainier-analytics/call-pipeline/internal/holiday"
	"github.com/rainier-analytics/call-pipeline/internal/model"
)

// ErrBadHeader is returned when a source file's header row does not match
// the expected format. Header mismatches are fatal for the whole source:
// nothing is parsed.
var ErrBadHeader = eris.New("ingest: malformed source header")

// callDatetimeLayout is the raw feed's timestamp format.
const callDatetimeLayout = "01/02/2006 03:04:05 PM"

// callHeader is the exact header the call feed must carry.
var callHeader = []string{"Address", "Type", "Datetime", "Latitude", "Longitude", "Report Location", "Incident Number"}

// Call feed column indices.
const (
	colAddress = 0
	colType    = 1
	colDate    = 2
	colLat     = 3
	colLon     = 4
	colID      = 6
)

// CallOptions controls call-feed parsing.
type CallOptions struct {
	// DMin and DMax bound the ingested records to an inclusive ISO date
	// window, compared at day granularity. Either may be empty.
	DMin string
	DMax string
}

// ParseCalls streams call records from r, normalizes timestamps, derives
// calendar fields and holiday codes, and applies the optional date window.
// Rows with unparseable coordinates keep the event and record the
// coordinates as absent. Output preserves source row order.
func ParseCalls(r io.Reader, codes *holiday.Codes, opt CallOptions) ([]model.CallEvent, error) {
	var dmin, dmax time.Time
	var err error
	if opt.DMin != "" {
		if dmin, err = model.ParseDate(opt.DMin); err != nil {
			return nil, eris.Wrapf(err, "ingest: parse dmin %q", opt.DMin)
		}
	}
	if opt.DMax != "" {
		if dmax, err = model.ParseDate(opt.DMax); err != nil {
			return nil, eris.Wrapf(err, "ingest: parse dmax %q", opt.DMax)
		}
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read call header")
	}
	if !headerEquals(header, callHeader) {
		return nil, eris.Wrapf(ErrBadHeader, "call feed: got %v", header)
	}

	resolver := holiday.NewResolver()

	var events []model.CallEvent
	var skipped int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		t, err := time.ParseInLocation(callDatetimeLayout, getCol(record, colDate), time.Local)
		if err != nil {
			skipped++
			continue
		}

		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
		if opt.DMin != "" && day.Before(dmin) {
			continue
		}
		if opt.DMax != "" && day.After(dmax) {
			continue
		}

		ev := model.CallEvent{
			ID:        getCol(record, colID),
			Address:   getCol(record, colAddress),
			Type:      getCol(record, colType),
			Date:      t.Format(model.DateLayout),
			Year:      t.Year(),
			Month:     int(t.Month()),
			Day:       t.Day(),
			Weekday:   model.Weekday(t),
			Hour:      t.Hour(),
			Minute:    t.Minute(),
			Second:    t.Second(),
			Timestamp: t.Unix(),
		}

		// Coordinates are best-effort: either both parse or both are
		// recorded as absent.
		if lat, ok := parseFloat(getCol(record, colLat)); ok {
			if lon, ok := parseFloat(getCol(record, colLon)); ok {
				ev.Lat, ev.Lon = &lat, &lon
			}
		}

		if name, ok := resolver.Lookup(t); ok {
			ev.Holiday = codes.Code(name)
		}

		events = append(events, ev)
	}

	if skipped > 0 {
		zap.L().Warn("skipped malformed call rows", zap.Int("rows", skipped))
	}
	return events, nil
}
