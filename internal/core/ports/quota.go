package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/tariffscope/admission/internal/core/domain/audit"
	"github.com/tariffscope/admission/internal/core/domain/quota"
)

// QuotaUsageRepository provides atomic storage for monthly usage counters.
// Rows are keyed by (organization, resource, period); only the quota service
// writes them.
type QuotaUsageRepository interface {
	// Increment atomically adds one to the usage counter for the period,
	// creating the row at 1 if it does not exist yet, and returns the new
	// count. The upsert must be a single atomic statement.
	Increment(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (used int, err error)
	// Get returns the current count for the period, zero if no row exists.
	Get(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error)
	// Reset zeroes the counter for the period. Missing rows are not an error.
	Reset(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) error
	// ListByPeriod returns every usage row for a period, for the admin
	// usage report.
	ListByPeriod(ctx context.Context, period string) ([]*quota.Usage, error)
}

// QuotaService resolves an organization's plan-derived allowance and meters
// consumption against it. Usage is a meter, not an attempt counter: it only
// moves when business logic reports a billable unit consumed.
type QuotaService interface {
	// Resolve reads current usage against the plan limit without consuming
	// anything.
	Resolve(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error)
	// CommitUsage consumes one billable unit and returns the resulting view.
	// Crossing into the warning zone emits a signal to the UsageNotifier.
	CommitUsage(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error)
	// ResetQuota is the administrative override: it zeroes the current
	// period's usage only and writes a distinct audit record. Historical
	// violations are untouched.
	ResetQuota(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, req *audit.CreateAuditLogRequest) (*quota.UsageView, error)
	// ReloadLimits replaces the plan limit table after validating it.
	ReloadLimits(limits quota.PlanLimits) error
	// ListUsage returns every organization's usage for the current period.
	ListUsage(ctx context.Context) ([]*quota.Usage, error)
}
