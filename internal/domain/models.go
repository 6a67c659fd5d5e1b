package domain

import "time"

// Record is one row of the ECDC daily case/death dataset.
type Record struct {
	DateRep     time.Time `json:"date_rep"`
	Day         int       `json:"day"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	Cases       int64     `json:"cases"`
	Deaths      int64     `json:"deaths"`
	Country     string    `json:"countries_and_territories"`
	GeoID       string    `json:"geo_id"`
	CountryCode string    `json:"countryterritory_code"`
	PopData2020 *int64    `json:"pop_data_2020"` // pointer to allow nil
	Continent   string    `json:"continent_exp"`
}

type CountryTotal struct {
	Country    string `json:"countries_and_territories"`
	TotalCases int64  `json:"total_cases"`
}

// Availability is the outcome of probing the remote dataset.
type Availability struct {
	Reachable    bool       `json:"reachable"`
	StatusCode   int        `json:"status_code,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"` // nil when the header is absent or unreadable
	Reason       string     `json:"reason,omitempty"`
}

// Commit is one entry of a table's write history.
type Commit struct {
	Table       string    `json:"table"`
	Version     int64     `json:"version"`
	Operation   string    `json:"operation"`
	RowCount    int       `json:"row_count"`
	RunID       string    `json:"run_id,omitempty"`
	CommittedAt time.Time `json:"committed_at"`
}

const OperationOverwrite = "OVERWRITE"
