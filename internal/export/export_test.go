package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/source"
)

func TestWriteRecords_RoundTripsThroughParser(t *testing.T) {
	pop := int64(67000000)
	in := []domain.Record{
		{DateRep: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), Day: 10, Month: 1, Year: 2025,
			Cases: 5, Deaths: 1, Country: "France", GeoID: "FR", CountryCode: "FRA", PopData2020: &pop, Continent: "Europe"},
		{DateRep: time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC), Day: 9, Month: 1, Year: 2025,
			Cases: 2, Country: "Bonaire, Saint Eustatius and Saba", GeoID: "BQ"},
	}
	path := filepath.Join(t.TempDir(), "export", "covid_latest_five_days.csv")
	require.NoError(t, WriteRecords(path, in))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), strings.Join(source.Columns, ",")+"\n"))

	out, err := source.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteTotals_HeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covid_total_cases.csv")
	require.NoError(t, WriteTotals(path, []domain.CountryTotal{
		{Country: "FR", TotalCases: 2},
		{Country: "US", TotalCases: 8},
	}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "countriesAndTerritories,total_cases\nFR,2\nUS,8\n", string(b))
}

func TestWriteTotals_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "covid_total_cases.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, WriteTotals(path, nil))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "countriesAndTerritories,total_cases\n", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
