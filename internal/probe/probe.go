package probe

import (
	"context"

	"github.com/hamed0406/covidrefresh/internal/domain"
)

// Checker probes a dataset URL for availability and freshness metadata.
//
// Implementations never return errors: transport failures and non-200
// statuses come back as Availability{Reachable: false} with a Reason.
type Checker interface {
	Check(ctx context.Context, target string) domain.Availability
}
