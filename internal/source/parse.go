package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

// ECDC column names.
const (
	ColDateRep     = "dateRep"
	ColDay         = "day"
	ColMonth       = "month"
	ColYear        = "year"
	ColCases       = "cases"
	ColDeaths      = "deaths"
	ColCountry     = "countriesAndTerritories"
	ColGeoID       = "geoId"
	ColCountryCode = "countryterritoryCode"
	ColPopData2020 = "popData2020"
	ColContinent   = "continentExp"
)

// Columns is the dataset's column order, also used when writing records back out.
var Columns = []string{
	ColDateRep, ColDay, ColMonth, ColYear, ColCases, ColDeaths,
	ColCountry, ColGeoID, ColCountryCode, ColPopData2020, ColContinent,
}

var required = []string{ColDateRep, ColCases, ColCountry}

// DateLayout is the ECDC day-first date format.
const DateLayout = "02/01/2006"

var dateLayouts = []string{DateLayout, "2006-01-02"}

var ErrEmpty = errors.New("dataset has no header row")

func ParseFile(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a headered CSV. Columns are located by name, so extra or
// reordered columns are fine; a missing required column is an error.
func Parse(r io.Reader) ([]domain.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		idx[h] = i
	}
	for _, c := range required {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing required column %q", c)
		}
	}

	var out []domain.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isBlank(row) {
			continue
		}
		rec, err := toRecord(row, idx)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(row []string, idx map[string]int) (domain.Record, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		rec domain.Record
		err error
	)
	if rec.DateRep, err = parseDate(get(ColDateRep)); err != nil {
		return rec, err
	}
	if rec.Day, err = atoi(ColDay, get(ColDay)); err != nil {
		return rec, err
	}
	if rec.Month, err = atoi(ColMonth, get(ColMonth)); err != nil {
		return rec, err
	}
	if rec.Year, err = atoi(ColYear, get(ColYear)); err != nil {
		return rec, err
	}
	if rec.Cases, err = parseInt(ColCases, get(ColCases)); err != nil {
		return rec, err
	}
	if rec.Deaths, err = parseInt(ColDeaths, get(ColDeaths)); err != nil {
		return rec, err
	}
	if raw := get(ColPopData2020); raw != "" {
		n, err := parseInt(ColPopData2020, raw)
		if err != nil {
			return rec, err
		}
		rec.PopData2020 = &n
	}
	rec.Country = get(ColCountry)
	rec.GeoID = get(ColGeoID)
	rec.CountryCode = get(ColCountryCode)
	rec.Continent = get(ColContinent)
	return rec, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s: empty", ColDateRep)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: unrecognised date %q", ColDateRep, raw)
}

func parseInt(col, raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Some exports write counts as floats ("12.0").
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("%s: invalid number %q", col, raw)
		}
		n = int64(f)
	}
	return n, nil
}

func atoi(col, raw string) (int, error) {
	n, err := parseInt(col, raw)
	return int(n), err
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
