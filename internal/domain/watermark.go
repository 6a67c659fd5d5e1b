package domain

import "time"

// Watermark is the time of the last successful ingest. The zero value means
// nothing was ingested yet and sorts before every instant.
type Watermark struct {
	At    time.Time
	Valid bool
}

func WatermarkAt(t time.Time) Watermark {
	return Watermark{At: t, Valid: true}
}

// Before reports whether the watermark is strictly older than t.
func (w Watermark) Before(t time.Time) bool {
	if !w.Valid {
		return true
	}
	return w.At.Before(t)
}

func (w Watermark) String() string {
	if !w.Valid {
		return "-inf"
	}
	return w.At.UTC().Format(time.RFC3339)
}
