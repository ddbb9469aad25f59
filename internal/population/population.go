// Package population provides the historical year-to-population lookup table
// used by daily aggregation and by downstream growth predictors.
package population

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrYearMissing is returned when aggregation is requested for a year that
// the table does not cover.
var ErrYearMissing = eris.New("population: no data for year")

//go:embed population.yaml
var defaultTable []byte

// Table maps calendar year to population.
type Table map[int]int

// Default returns the embedded historical table.
func Default() (Table, error) {
	return parse(defaultTable)
}

// LoadFile reads a table from a YAML file with the same year-to-count shape
// as the embedded default.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "population: read %s", path)
	}
	return parse(data)
}

func parse(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "population: parse table")
	}
	if len(t) == 0 {
		return nil, eris.New("population: empty table")
	}
	return t, nil
}

// Lookup returns the population for a year. Years outside the table fail
// with ErrYearMissing; callers treat that as fatal for the aggregation pass.
func (t Table) Lookup(year int) (int, error) {
	pop, ok := t[year]
	if !ok {
		return 0, eris.Wrapf(ErrYearMissing, "year %d", year)
	}
	return pop, nil
}
