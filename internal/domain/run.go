package domain

import "time"

type RunStatus string

const (
	RunSkipped   RunStatus = "skipped"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunOutcome summarizes one invocation of the refresh pipeline.
type RunOutcome struct {
	RunID              string     `json:"run_id"`
	Status             RunStatus  `json:"status"`
	Reason             string     `json:"reason,omitempty"`
	RemoteLastModified *time.Time `json:"remote_last_modified,omitempty"`
	Records            int        `json:"records"`
	LatestFiveDays     int        `json:"latest_five_days"`
	Countries          int        `json:"countries"`
	Archive            string     `json:"archive,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         time.Time  `json:"finished_at"`
}

func (o RunOutcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}
