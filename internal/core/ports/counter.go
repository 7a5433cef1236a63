package ports

import (
	"context"
	"time"

	"github.com/tariffscope/admission/internal/core/domain/limit"
)

// WindowCounterStore is the atomic fixed-window counter primitive every
// throttle layer depends on. Implementations MUST perform the check and the
// increment as one atomic operation at the storage layer: two concurrent
// callers racing on the same counter must never both be admitted past the
// limit. A read-then-compare-then-write sequence is a correctness bug here,
// not an optimization trade-off.
type WindowCounterStore interface {
	// CheckAndIncrement counts one attempt for (scope, subject) in the
	// current fixed window of length window. When the counter is already at
	// max the attempt is reported as not allowed and the counter is left
	// untouched. The decision carries the post-operation count and the time
	// until the window resets.
	CheckAndIncrement(ctx context.Context, scope limit.Scope, subject string, max int, window time.Duration) (*limit.WindowDecision, error)
}

// WindowSweeper is implemented by counter stores that need explicit pruning
// of expired windows (the in-memory store; Redis windows expire via TTL).
// Sweep must be cheap enough to run from a background job and must honor the
// grace period so a window is never purged while a skewed clock could still
// legitimately hit it.
type WindowSweeper interface {
	Sweep(now time.Time) (removed int)
}
