package ingest

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rainier-analytics/call-pipeline/internal/model"
)

// covidDateLayout is the pandemic feed's date format.
const covidDateLayout = "01.02.2006"

// Pandemic feed column indices.
const (
	covidColDate    = 2
	covidColHosp    = 4
	covidColDeaths  = 5
	covidColPCRTest = 6
	covidColPCRPos  = 7
)

// ParseCovid reads the pandemic feed and returns one CovidDay per data row
// with its daily counts and pandemic flag set. Rolling sums are left zero;
// the merger's chronological pass fills them in. Non-numeric count cells are
// treated as zero.
func ParseCovid(r io.Reader) ([]model.CovidDay, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	// Header row carries no positional information for this feed; columns
	// are fixed by index.
	if _, err := reader.Read(); err != nil {
		return nil, eris.Wrap(err, "ingest: read covid header")
	}

	var days []model.CovidDay
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		t, err := time.ParseInLocation(covidDateLayout, getCol(record, covidColDate), time.Local)
		if err != nil {
			continue
		}

		day := model.CovidDay{
			Date:     t.Format(model.DateLayout),
			PCRTest:  parseIntOr(getCol(record, covidColPCRTest), 0),
			PCRPos:   parseIntOr(getCol(record, covidColPCRPos), 0),
			HospCnt:  parseIntOr(getCol(record, covidColHosp), 0),
			DeathCnt: parseIntOr(getCol(record, covidColDeaths), 0),
		}
		if model.PandemicActive(t) {
			day.Pandemic = 1
		}
		days = append(days, day)
	}

	return days, nil
}
