// Package events announces completed refreshes to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

const TopicRefreshCompleted = "covid.refresh.completed"

type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close() error
}

// RefreshCompleted is emitted once per committed run.
type RefreshCompleted struct {
	RunID              string     `json:"run_id"`
	Table              string     `json:"table"`
	RemoteLastModified *time.Time `json:"remote_last_modified,omitempty"`
	Records            int        `json:"records"`
	LatestFiveDays     int        `json:"latest_five_days"`
	Countries          int        `json:"countries"`
	Archive            string     `json:"archive"`
	ArchiveURI         string     `json:"archive_uri,omitempty"`
	CompletedAt        time.Time  `json:"completed_at"`
}

func NewRefreshCompleted(table string, o domain.RunOutcome, archiveURI string) RefreshCompleted {
	return RefreshCompleted{
		RunID:              o.RunID,
		Table:              table,
		RemoteLastModified: o.RemoteLastModified,
		Records:            o.Records,
		LatestFiveDays:     o.LatestFiveDays,
		Countries:          o.Countries,
		Archive:            o.Archive,
		ArchiveURI:         archiveURI,
		CompletedAt:        o.FinishedAt,
	}
}

// NoopPublisher is used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, event any) error { return nil }

func (NoopPublisher) Close() error { return nil }
