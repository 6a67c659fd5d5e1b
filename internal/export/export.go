// Package export writes the derived views as flat CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hamed0406/covidrefresh/internal/domain"
	"github.com/hamed0406/covidrefresh/internal/source"
)

// TotalsHeader is the header row of the totals file.
var TotalsHeader = []string{source.ColCountry, "total_cases"}

// WriteRecords writes records with the dataset's own column set.
func WriteRecords(path string, records []domain.Record) error {
	return writeAtomic(path, func(w *csv.Writer) error {
		if err := w.Write(source.Columns); err != nil {
			return err
		}
		for _, r := range records {
			if err := w.Write(recordRow(r)); err != nil {
				return err
			}
		}
		return nil
	})
}

func WriteTotals(path string, totals []domain.CountryTotal) error {
	return writeAtomic(path, func(w *csv.Writer) error {
		if err := w.Write(TotalsHeader); err != nil {
			return err
		}
		for _, t := range totals {
			if err := w.Write([]string{t.Country, strconv.FormatInt(t.TotalCases, 10)}); err != nil {
				return err
			}
		}
		return nil
	})
}

func recordRow(r domain.Record) []string {
	pop := ""
	if r.PopData2020 != nil {
		pop = strconv.FormatInt(*r.PopData2020, 10)
	}
	return []string{
		r.DateRep.Format(source.DateLayout),
		strconv.Itoa(r.Day),
		strconv.Itoa(r.Month),
		strconv.Itoa(r.Year),
		strconv.FormatInt(r.Cases, 10),
		strconv.FormatInt(r.Deaths, 10),
		r.Country,
		r.GeoID,
		r.CountryCode,
		pop,
		r.Continent,
	}
}

func writeAtomic(path string, fill func(*csv.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
