package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeatherFilter(t *testing.T) {
	feed := "STATION,DATE,TAVG,TMIN,TMAX,PRCP\n" +
		"USW00024233,2022-01-06,5.2,3.9,6.4,0.3\n"

	rows, err := ParseWeather(strings.NewReader(feed), []string{"DATE", "TMIN", "TMAX"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "2022-01-06", row.Date)
	assert.Equal(t, map[string]any{
		"DATE": "2022-01-06",
		"TMIN": 3.9,
		"TMAX": 6.4,
	}, row.Fields)
}

func TestParseWeatherNilFilterKeepsAll(t *testing.T) {
	feed := "DATE,PRCP\n2022-01-06,0.3\n"

	rows, err := ParseWeather(strings.NewReader(feed), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Fields, 2)
}

func TestParseWeatherUnknownField(t *testing.T) {
	feed := "DATE,TMIN\n2022-01-06,3.9\n"

	_, err := ParseWeather(strings.NewReader(feed), []string{"DATE", "SNOW"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadHeader))
}

func TestParseWeatherFilterMustIncludeDate(t *testing.T) {
	feed := "DATE,TMIN\n2022-01-06,3.9\n"

	_, err := ParseWeather(strings.NewReader(feed), []string{"TMIN"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadHeader))
}

func TestParseWeatherEmptyCellsAreZero(t *testing.T) {
	feed := "DATE,PRCP,WT01\n2022-01-06,,\n"

	rows, err := ParseWeather(strings.NewReader(feed), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(0), rows[0].Fields["PRCP"])
	assert.Equal(t, float64(0), rows[0].Fields["WT01"])
}

func TestParseWeatherNonNumericKeepsRawString(t *testing.T) {
	feed := "DATE,STATION\n2022-01-06,USW00024233\n"

	rows, err := ParseWeather(strings.NewReader(feed), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "USW00024233", rows[0].Fields["STATION"])
}

func TestParseWeatherDerivesTAVG(t *testing.T) {
	feed := "DATE,TAVG,TMIN,TMAX\n" +
		"2022-01-06,,3.0,6.5\n" + // empty TAVG: recomputed
		"2022-01-07,5.2,3.0,6.5\n" // present TAVG: untouched

	rows, err := ParseWeather(strings.NewReader(feed), []string{"DATE", "TAVG", "TMIN", "TMAX"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// round((6.5-3.0)/2, 1) = 1.8
	assert.Equal(t, 1.8, rows[0].Fields["TAVG"])
	assert.Equal(t, 5.2, rows[1].Fields["TAVG"])
}

func TestParseWeatherNoTAVGDerivationWithoutExtremes(t *testing.T) {
	feed := "DATE,TAVG,TMIN,TMAX\n2022-01-06,,3.0,6.5\n"

	rows, err := ParseWeather(strings.NewReader(feed), []string{"DATE", "TAVG"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(0), rows[0].Fields["TAVG"], "no recompute when extremes are filtered out")
}
