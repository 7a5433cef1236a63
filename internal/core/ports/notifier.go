package ports

import (
	"context"

	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/domain/quota"
)

// UsageNotifier receives warning-zone transitions. This subsystem only
// emits the signal; rendering and delivering the "approaching your limit"
// message is the notification collaborator's job.
type UsageNotifier interface {
	QuotaWarning(ctx context.Context, o *org.Organization, view *quota.UsageView) error
}
