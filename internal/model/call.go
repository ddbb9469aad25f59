package model

import "time"

// DateLayout is the canonical ISO date format used as the primary key of the
// daily summary table and as the date field of call events.
const DateLayout = "2006-01-02"

// CallEvent is a single emergency-call record as ingested from the raw feed.
// The incident number is globally unique; inserting a duplicate is a no-op.
type CallEvent struct {
	ID        string   `json:"id"`
	Address   string   `json:"address"`
	Type      string   `json:"type"`
	Date      string   `json:"date"` // ISO, derived from Timestamp
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	Day       int      `json:"day"`
	Weekday   int      `json:"weekday"` // Monday = 0
	Hour      int      `json:"hour"`
	Minute    int      `json:"minute"`
	Second    int      `json:"second"`
	Holiday   int      `json:"holiday"` // holiday code, 0 = none
	Timestamp int64    `json:"timestamp"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
}

// ParseDate parses an ISO date in the local time zone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.Local)
}

// Weekday returns the day of week with Monday = 0, matching the summary
// table convention.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DayBounds returns the Unix timestamps of the day's local midnight and the
// next day's local midnight. Range queries treat the pair as half-open, so
// the final second of the day is still covered.
func DayBounds(t time.Time) (start, end int64) {
	y, m, d := t.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, time.Local).Unix()
	end = time.Date(y, m, d+1, 0, 0, 0, 0, time.Local).Unix()
	return start, end
}
