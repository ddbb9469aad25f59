package holiday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

func TestResolverKnownHolidays(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		date time.Time
		want string
	}{
		{day(2022, time.January, 17), "Martin Luther King Jr. Day"},
		{day(2022, time.February, 21), "Washington's Birthday"},
		{day(2022, time.May, 30), "Memorial Day"},
		{day(2022, time.June, 19), "Juneteenth National Independence Day"},
		{day(2022, time.July, 4), "Independence Day"},
		{day(2022, time.September, 5), "Labor Day"},
		{day(2022, time.November, 11), "Veterans Day"},
		{day(2022, time.November, 24), "Thanksgiving"},
		{day(2022, time.December, 25), "Christmas Day"},
		{day(2023, time.November, 23), "Thanksgiving"},
		{day(2021, time.May, 31), "Memorial Day"},
	}
	for _, tc := range tests {
		name, ok := r.Lookup(tc.date)
		require.True(t, ok, tc.date.Format("2006-01-02"))
		assert.Equal(t, tc.want, name, tc.date.Format("2006-01-02"))
	}
}

func TestResolverOrdinaryDays(t *testing.T) {
	r := NewResolver()
	for _, d := range []time.Time{
		day(2022, time.March, 15),
		day(2022, time.October, 10), // Columbus Day is not observed here
		day(2022, time.August, 1),
	} {
		_, ok := r.Lookup(d)
		assert.False(t, ok, d.Format("2006-01-02"))
	}
}

func TestResolverObservedShifts(t *testing.T) {
	r := NewResolver()

	// July 4 2021 was a Sunday: observed the following Monday.
	name, ok := r.Lookup(day(2021, time.July, 5))
	require.True(t, ok)
	assert.Equal(t, "Independence Day (observed)", name)

	// Christmas 2021 was a Saturday: observed the preceding Friday.
	name, ok = r.Lookup(day(2021, time.December, 24))
	require.True(t, ok)
	assert.Equal(t, "Christmas Day (observed)", name)

	// New Year's Day 2022 was a Saturday: observed Dec 31 2021.
	name, ok = r.Lookup(day(2021, time.December, 31))
	require.True(t, ok)
	assert.Equal(t, "New Year's Day (observed)", name)

	// The actual dates still count as holidays.
	name, ok = r.Lookup(day(2022, time.January, 1))
	require.True(t, ok)
	assert.Equal(t, "New Year's Day", name)
}

func TestResolverHolidayIntroductionYears(t *testing.T) {
	r := NewResolver()

	_, ok := r.Lookup(day(2020, time.June, 19))
	assert.False(t, ok, "Juneteenth did not exist before 2021")

	_, ok = r.Lookup(day(2021, time.June, 19))
	assert.True(t, ok)

	_, ok = r.Lookup(day(1985, time.January, 21)) // 3rd Monday
	assert.False(t, ok, "MLK Day did not exist before 1986")

	_, ok = r.Lookup(day(1986, time.January, 20))
	assert.True(t, ok)
}

func TestCodesFirstEncounterOrder(t *testing.T) {
	c := NewCodes()

	assert.Equal(t, NoHoliday, c.Code(""))
	assert.Equal(t, 1, c.Code("New Year's Day"))
	assert.Equal(t, 2, c.Code("Thanksgiving"))
	assert.Equal(t, 1, c.Code("New Year's Day"), "stable on re-encounter")
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, "Thanksgiving", c.Name(2))
	assert.Equal(t, "", c.Name(NoHoliday))
	assert.Equal(t, "", c.Name(99))
}

func TestCodesSeed(t *testing.T) {
	c := NewCodes()
	c.Seed([]string{"Memorial Day", "Labor Day", "Memorial Day"})

	assert.Equal(t, 1, c.Code("Memorial Day"))
	assert.Equal(t, 2, c.Code("Labor Day"))
	assert.Equal(t, 3, c.Code("Christmas Day"), "new names continue after seeds")
}
