// Package holiday resolves Washington State public holidays and maintains
// the stable holiday-name-to-code mapping used by the call tables.
package holiday

import (
	"fmt"
	"time"
)

// Resolver reports whether a date is a recognized Washington State holiday.
// Calendars are computed per year and cached.
type Resolver struct {
	years map[int]map[string]string // year -> ISO date -> holiday name
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{years: make(map[int]map[string]string)}
}

// Lookup returns the holiday name for the date, if any. Observed shifts of
// fixed-date holidays are included under "<name> (observed)".
func (r *Resolver) Lookup(t time.Time) (string, bool) {
	cal, ok := r.years[t.Year()]
	if !ok {
		cal = waHolidays(t.Year())
		r.years[t.Year()] = cal
	}
	name, ok := cal[t.Format("2006-01-02")]
	return name, ok
}

// waHolidays returns all Washington State holidays for a year, keyed by ISO
// date.
func waHolidays(year int) map[string]string {
	hs := make(map[string]string)

	// Fixed-date holidays, with federal observed shifts.
	addObserved(hs, year, time.January, 1, "New Year's Day")
	if year >= 2021 {
		addObserved(hs, year, time.June, 19, "Juneteenth National Independence Day")
	}
	addObserved(hs, year, time.July, 4, "Independence Day")
	addObserved(hs, year, time.November, 11, "Veterans Day")
	addObserved(hs, year, time.December, 25, "Christmas Day")

	// Next year's New Year's Day observed on Dec 31 when it falls on a
	// Saturday.
	if time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Weekday() == time.Saturday {
		hs[fmt.Sprintf("%04d-12-31", year)] = "New Year's Day (observed)"
	}

	// Floating holidays. Washington does not observe Columbus Day.
	if year >= 1986 {
		add(hs, nthWeekday(year, time.January, time.Monday, 3), "Martin Luther King Jr. Day")
	}
	add(hs, nthWeekday(year, time.February, time.Monday, 3), "Washington's Birthday")
	add(hs, lastWeekday(year, time.May, time.Monday), "Memorial Day")
	add(hs, nthWeekday(year, time.September, time.Monday, 1), "Labor Day")
	add(hs, nthWeekday(year, time.November, time.Thursday, 4), "Thanksgiving")

	return hs
}

func add(hs map[string]string, t time.Time, name string) {
	hs[t.Format("2006-01-02")] = name
}

// addObserved records a fixed-date holiday plus its observed shift: Saturday
// holidays are observed the preceding Friday, Sunday holidays the following
// Monday.
func addObserved(hs map[string]string, year int, month time.Month, day int, name string) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	add(hs, t, name)
	switch t.Weekday() {
	case time.Saturday:
		add(hs, t.AddDate(0, 0, -1), name+" (observed)")
	case time.Sunday:
		add(hs, t.AddDate(0, 0, 1), name+" (observed)")
	}
}

// nthWeekday returns the n-th given weekday of a month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last given weekday of a month.
func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(wd) + 7) % 7
	return t.AddDate(0, 0, -offset)
}
