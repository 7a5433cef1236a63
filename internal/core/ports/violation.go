package ports

import (
	"context"
	"time"

	"github.com/tariffscope/admission/internal/core/domain/violation"
)

// ViolationRepository stores the append-only log of rejected attempts.
type ViolationRepository interface {
	Create(ctx context.Context, v *violation.Violation) error
	List(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, error)
	Count(ctx context.Context, filter *violation.Filter) (int, error)
	TopViolators(ctx context.Context, since time.Time, n int) ([]*violation.ViolatorRank, error)
	// DeleteOlderThan ages out rows past the retention horizon. Used only by
	// the background cleanup job, never by request handling.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ViolationService records rejections and serves the admin analytics
// surface.
type ViolationService interface {
	// Record appends a violation without blocking the caller; persistence
	// failures are logged, never propagated to the admission path.
	Record(v *violation.Violation)
	GetViolations(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, int, error)
	TopViolators(ctx context.Context, window time.Duration, n int) ([]*violation.ViolatorRank, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
