package ingest

import (
	"encoding/csv"
	"io"
	"math"

	"github.com/rotisserie/eris"
)

// WeatherRow is one observed day from the station feed: a flexible mapping
// from station field codes to a float64 or, when a cell is not numeric, its
// raw string.
type WeatherRow struct {
	Date   string
	Fields map[string]any
}

// ParseWeather reads the station feed and returns one row per data line.
// filter selects which header columns are kept; nil keeps them all. Every
// name in the filter must appear in the header or parsing fails with
// ErrBadHeader. Empty cells are treated as numeric zero. When TAVG, TMIN and
// TMAX are all selected and TAVG parsed to zero, TAVG is recomputed from the
// temperature extremes.
func ParseWeather(r io.Reader, filter []string) ([]WeatherRow, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read weather header")
	}

	if filter == nil {
		filter = header
	}

	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[col] = i
	}
	for _, name := range filter {
		if _, ok := colIdx[name]; !ok {
			return nil, eris.Wrapf(ErrBadHeader, "weather feed: field %q not in header", name)
		}
	}
	if !contains(filter, "DATE") {
		return nil, eris.Wrap(ErrBadHeader, "weather feed: filter must include DATE")
	}

	_, hasTAVG := colIdx["TAVG"]
	deriveTAVG := hasTAVG && contains(filter, "TAVG") && contains(filter, "TMIN") && contains(filter, "TMAX")

	var rows []WeatherRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		fields := make(map[string]any, len(filter))
		for _, name := range filter {
			cell := getCol(record, colIdx[name])
			if cell == "" {
				fields[name] = float64(0)
				continue
			}
			if v, ok := parseFloat(cell); ok {
				fields[name] = v
			} else {
				fields[name] = cell
			}
		}

		if deriveTAVG && fields["TAVG"] == float64(0) {
			tmin, okMin := fields["TMIN"].(float64)
			tmax, okMax := fields["TMAX"].(float64)
			if okMin && okMax {
				fields["TAVG"] = math.Round((tmax-tmin)/2*10) / 10
			}
		}

		date, _ := fields["DATE"].(string)
		rows = append(rows, WeatherRow{Date: date, Fields: fields})
	}

	return rows, nil
}

func contains(names []string, want string) bool {
	for _, name := range names {
		if name == want {
			return true
		}
	}
	return false
}
