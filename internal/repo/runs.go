package repo

import (
	"context"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

// RunStore keeps the outcome of every pipeline invocation, skipped runs
// included, for the status API and the operator CLI.
type RunStore interface {
	// AppendRun upserts by RunID.
	AppendRun(ctx context.Context, o domain.RunOutcome) error
	// LatestRun returns nil, nil if there's no run recorded yet.
	LatestRun(ctx context.Context) (*domain.RunOutcome, error)
}
