package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Season holds the four meteorological season flags for a date. Exactly one
// flag is 1 for any date.
type Season struct {
	Winter int `json:"Winter"`
	Spring int `json:"Spring"`
	Summer int `json:"Summer"`
	Fall   int `json:"Fall"`
}

// SeasonFor returns the meteorological season of a date: Winter [Dec 1,
// Mar 1), Spring [Mar 1, Jun 1), Summer [Jun 1, Sep 1), Fall [Sep 1, Dec 1).
func SeasonFor(t time.Time) Season {
	switch m := t.Month(); {
	case m < time.March:
		return Season{Winter: 1}
	case m < time.June:
		return Season{Spring: 1}
	case m < time.September:
		return Season{Summer: 1}
	case m < time.December:
		return Season{Fall: 1}
	default:
		return Season{Winter: 1}
	}
}

// Name returns the name of the season whose flag is set.
func (s Season) Name() string {
	switch {
	case s.Winter == 1:
		return "Winter"
	case s.Spring == 1:
		return "Spring"
	case s.Summer == 1:
		return "Summer"
	default:
		return "Fall"
	}
}

// DayDetails is the structured blob embedded in each daily summary row.
// Field order is fixed so that repeated aggregation over an unchanged store
// produces byte-identical blobs.
type DayDetails struct {
	Date        string         `json:"date"`
	Year        int            `json:"year"`
	Month       int            `json:"month"`
	Day         int            `json:"day"`
	DayOfYear   int            `json:"day_of_year"`
	Population  int            `json:"population"`
	Calls       int            `json:"calls"`
	TypeStats   map[string]int `json:"type_stats"`
	Weekday     int            `json:"weekday"`
	Holiday     int            `json:"holiday"`
	HolidayName *string        `json:"holiday_name"`
	SeasonName  string         `json:"season_name"`
	HourlyStats []int          `json:"hourly_stats"`
	Season
}

// Encode serializes the details blob with its stable field order.
func (d DayDetails) Encode() ([]byte, error) {
	b, err := json.Marshal(d)
	return b, eris.Wrap(err, "model: encode day details")
}

// DecodeDayDetails parses a details blob produced by Encode.
func DecodeDayDetails(b []byte) (*DayDetails, error) {
	var d DayDetails
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, eris.Wrap(err, "model: decode day details")
	}
	return &d, nil
}

// DaySummary is one row of the daily summary table.
type DaySummary struct {
	Date        string     `json:"date"` // primary key, ISO
	Year        int        `json:"year"`
	DayOfYear   int        `json:"day_of_year"`
	Month       int        `json:"month"`
	Day         int        `json:"day"`
	Weekday     int        `json:"weekday"` // Monday = 0
	HolidayName *string    `json:"holiday_name"`
	Calls       int        `json:"calls"`
	Details     DayDetails `json:"details"`
	Population  int        `json:"population"`
}
