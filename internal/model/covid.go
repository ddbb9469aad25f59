package model

import "time"

// WHO PHEIC declaration bounds. The pandemic flag is set only for dates
// strictly between the two.
var (
	PandemicStart = time.Date(2020, time.January, 30, 0, 0, 0, 0, time.Local)
	PandemicEnd   = time.Date(2023, time.May, 5, 0, 0, 0, 0, time.Local)
)

// PandemicActive reports whether a date falls inside the pandemic window.
// Both boundary dates are excluded.
func PandemicActive(t time.Time) bool {
	return t.After(PandemicStart) && t.Before(PandemicEnd)
}

// CovidDay is one row of the covid table: daily counts plus trailing 7-day
// rolling sums maintained by the merger's chronological pass.
type CovidDay struct {
	Date     string `json:"date"` // primary key, ISO
	Pandemic int    `json:"pandemic"`
	PCRTest  int    `json:"pcr_test"`
	PCRPos   int    `json:"pcr_pos"`
	HospCnt  int    `json:"hosp_cnt"`
	DeathCnt int    `json:"death_cnt"`
	RollingSums
}

// RollingSums holds the four trailing 7-day sums of a covid row.
type RollingSums struct {
	SevenDayPCRTest  int `json:"seven_day_pcr_test"`
	SevenDayPCRPos   int `json:"seven_day_pcr_pos"`
	SevenDayHospCnt  int `json:"seven_day_hosp_cnt"`
	SevenDayDeathCnt int `json:"seven_day_death_cnt"`
}
