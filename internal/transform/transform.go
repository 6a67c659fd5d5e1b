// Package transform computes the two derived views of the raw dataset.
package transform

import (
	"sort"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

// WindowDays is how far back from the newest report date LatestFiveDays
// reaches. Both ends are inclusive, so six calendar days are kept.
const WindowDays = 5

// LatestFiveDays keeps the records dated within WindowDays of the newest
// dateRep, in input order.
func LatestFiveDays(records []domain.Record) []domain.Record {
	if len(records) == 0 {
		return nil
	}
	newest := records[0].DateRep
	for _, r := range records[1:] {
		if r.DateRep.After(newest) {
			newest = r.DateRep
		}
	}
	lo := newest.AddDate(0, 0, -WindowDays)

	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if !r.DateRep.Before(lo) && !r.DateRep.After(newest) {
			out = append(out, r)
		}
	}
	return out
}

// TotalCases sums cases per country. Rows are sorted by country so that
// repeated runs over the same input produce identical files.
func TotalCases(records []domain.Record) []domain.CountryTotal {
	sums := make(map[string]*Sum)
	for _, r := range records {
		s, ok := sums[r.Country]
		if !ok {
			s = &Sum{}
			sums[r.Country] = s
		}
		s.Add(r.Cases)
	}

	out := make([]domain.CountryTotal, 0, len(sums))
	for c, s := range sums {
		out = append(out, domain.CountryTotal{Country: c, TotalCases: s.Result()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// Sum is a running integer total.
type Sum struct {
	sum int64
}

func (s *Sum) Add(v int64) *Sum {
	s.sum += v
	return s
}

func (s *Sum) Result() int64 { return s.sum }
