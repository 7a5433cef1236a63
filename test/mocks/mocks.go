package mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tariffscope/admission/internal/core/domain/admission"
	"github.com/tariffscope/admission/internal/core/domain/audit"
	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/internal/core/domain/violation"
)

// WindowCounterStoreMock is a lightweight mock for WindowCounterStore
type WindowCounterStoreMock struct {
	CheckAndIncrementFn func(ctx context.Context, scope limit.Scope, subject string, max int, window time.Duration) (*limit.WindowDecision, error)
}

func (m *WindowCounterStoreMock) CheckAndIncrement(ctx context.Context, scope limit.Scope, subject string, max int, window time.Duration) (*limit.WindowDecision, error) {
	if m.CheckAndIncrementFn != nil {
		return m.CheckAndIncrementFn(ctx, scope, subject, max, window)
	}
	return &limit.WindowDecision{Allowed: true, Count: 1, Limit: max, ResetAfter: window}, nil
}

// QuotaUsageRepositoryMock is a lightweight mock for QuotaUsageRepository
type QuotaUsageRepositoryMock struct {
	IncrementFn    func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error)
	GetFn          func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error)
	ResetFn        func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) error
	ListByPeriodFn func(ctx context.Context, period string) ([]*quota.Usage, error)
}

func (m *QuotaUsageRepositoryMock) Increment(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error) {
	if m.IncrementFn != nil {
		return m.IncrementFn(ctx, orgID, resource, period)
	}
	return 1, nil
}
func (m *QuotaUsageRepositoryMock) Get(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, orgID, resource, period)
	}
	return 0, nil
}
func (m *QuotaUsageRepositoryMock) Reset(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) error {
	if m.ResetFn != nil {
		return m.ResetFn(ctx, orgID, resource, period)
	}
	return nil
}
func (m *QuotaUsageRepositoryMock) ListByPeriod(ctx context.Context, period string) ([]*quota.Usage, error) {
	if m.ListByPeriodFn != nil {
		return m.ListByPeriodFn(ctx, period)
	}
	return nil, nil
}

// OrganizationRepositoryMock is a lightweight mock for OrganizationRepository
type OrganizationRepositoryMock struct {
	GetByIDFn func(ctx context.Context, id uuid.UUID) (*org.Organization, error)
	ListFn    func(ctx context.Context) ([]*org.Organization, error)
}

func (m *OrganizationRepositoryMock) GetByID(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, fmt.Errorf("not found")
}
func (m *OrganizationRepositoryMock) List(ctx context.Context) ([]*org.Organization, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx)
	}
	return nil, nil
}

// ViolationRepositoryMock is a lightweight mock for ViolationRepository
type ViolationRepositoryMock struct {
	CreateFn          func(ctx context.Context, v *violation.Violation) error
	ListFn            func(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, error)
	CountFn           func(ctx context.Context, filter *violation.Filter) (int, error)
	TopViolatorsFn    func(ctx context.Context, since time.Time, n int) ([]*violation.ViolatorRank, error)
	DeleteOlderThanFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *ViolationRepositoryMock) Create(ctx context.Context, v *violation.Violation) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, v)
	}
	return nil
}
func (m *ViolationRepositoryMock) List(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	return nil, nil
}
func (m *ViolationRepositoryMock) Count(ctx context.Context, filter *violation.Filter) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, filter)
	}
	return 0, nil
}
func (m *ViolationRepositoryMock) TopViolators(ctx context.Context, since time.Time, n int) ([]*violation.ViolatorRank, error) {
	if m.TopViolatorsFn != nil {
		return m.TopViolatorsFn(ctx, since, n)
	}
	return nil, nil
}
func (m *ViolationRepositoryMock) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFn != nil {
		return m.DeleteOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}

// ViolationServiceMock is a lightweight mock for ViolationService
type ViolationServiceMock struct {
	RecordFn         func(v *violation.Violation)
	GetViolationsFn  func(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, int, error)
	TopViolatorsFn   func(ctx context.Context, window time.Duration, n int) ([]*violation.ViolatorRank, error)
	PurgeOlderThanFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *ViolationServiceMock) Record(v *violation.Violation) {
	if m.RecordFn != nil {
		m.RecordFn(v)
	}
}
func (m *ViolationServiceMock) GetViolations(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, int, error) {
	if m.GetViolationsFn != nil {
		return m.GetViolationsFn(ctx, filter)
	}
	return nil, 0, nil
}
func (m *ViolationServiceMock) TopViolators(ctx context.Context, window time.Duration, n int) ([]*violation.ViolatorRank, error) {
	if m.TopViolatorsFn != nil {
		return m.TopViolatorsFn(ctx, window, n)
	}
	return nil, nil
}
func (m *ViolationServiceMock) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.PurgeOlderThanFn != nil {
		return m.PurgeOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}

// AuditRepositoryMock is a lightweight mock for AuditRepository
type AuditRepositoryMock struct {
	CreateFn          func(ctx context.Context, log *audit.AuditLog) error
	ListFn            func(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, error)
	CountFn           func(ctx context.Context, filter *audit.AuditLogFilter) (int, error)
	DeleteOlderThanFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *AuditRepositoryMock) Create(ctx context.Context, log *audit.AuditLog) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, log)
	}
	return nil
}
func (m *AuditRepositoryMock) List(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	return nil, nil
}
func (m *AuditRepositoryMock) Count(ctx context.Context, filter *audit.AuditLogFilter) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, filter)
	}
	return 0, nil
}
func (m *AuditRepositoryMock) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFn != nil {
		return m.DeleteOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}

// AuditServiceMock is a lightweight mock for AuditService
type AuditServiceMock struct {
	LogActionFn      func(ctx context.Context, req *audit.CreateAuditLogRequest) error
	GetAuditLogsFn   func(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, int, error)
	PurgeOlderThanFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *AuditServiceMock) LogAction(ctx context.Context, req *audit.CreateAuditLogRequest) error {
	if m.LogActionFn != nil {
		return m.LogActionFn(ctx, req)
	}
	return nil
}
func (m *AuditServiceMock) GetAuditLogs(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, int, error) {
	if m.GetAuditLogsFn != nil {
		return m.GetAuditLogsFn(ctx, filter)
	}
	return nil, 0, nil
}
func (m *AuditServiceMock) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.PurgeOlderThanFn != nil {
		return m.PurgeOlderThanFn(ctx, cutoff)
	}
	return 0, nil
}

// QuotaServiceMock is a lightweight mock for QuotaService
type QuotaServiceMock struct {
	ResolveFn      func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error)
	CommitUsageFn  func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error)
	ResetQuotaFn   func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, req *audit.CreateAuditLogRequest) (*quota.UsageView, error)
	ReloadLimitsFn func(limits quota.PlanLimits) error
	ListUsageFn    func(ctx context.Context) ([]*quota.Usage, error)
}

func (m *QuotaServiceMock) Resolve(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, orgID, resource)
	}
	return quota.BuildUsageView(orgID, resource, 0, quota.Limit{Value: 100}, time.Now()), nil
}
func (m *QuotaServiceMock) CommitUsage(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error) {
	if m.CommitUsageFn != nil {
		return m.CommitUsageFn(ctx, orgID, resource)
	}
	return quota.BuildUsageView(orgID, resource, 1, quota.Limit{Value: 100}, time.Now()), nil
}
func (m *QuotaServiceMock) ResetQuota(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, req *audit.CreateAuditLogRequest) (*quota.UsageView, error) {
	if m.ResetQuotaFn != nil {
		return m.ResetQuotaFn(ctx, orgID, resource, req)
	}
	return quota.BuildUsageView(orgID, resource, 0, quota.Limit{Value: 100}, time.Now()), nil
}
func (m *QuotaServiceMock) ReloadLimits(limits quota.PlanLimits) error {
	if m.ReloadLimitsFn != nil {
		return m.ReloadLimitsFn(limits)
	}
	return nil
}
func (m *QuotaServiceMock) ListUsage(ctx context.Context) ([]*quota.Usage, error) {
	if m.ListUsageFn != nil {
		return m.ListUsageFn(ctx)
	}
	return nil, nil
}

// UsageNotifierMock is a lightweight mock for UsageNotifier
type UsageNotifierMock struct {
	QuotaWarningFn func(ctx context.Context, o *org.Organization, view *quota.UsageView) error
}

func (m *UsageNotifierMock) QuotaWarning(ctx context.Context, o *org.Organization, view *quota.UsageView) error {
	if m.QuotaWarningFn != nil {
		return m.QuotaWarningFn(ctx, o, view)
	}
	return nil
}

// AdmissionServiceMock is a lightweight mock for AdmissionService
type AdmissionServiceMock struct {
	AdmitFn func(ctx context.Context, req *admission.Request) *admission.Decision
}

func (m *AdmissionServiceMock) Admit(ctx context.Context, req *admission.Request) *admission.Decision {
	if m.AdmitFn != nil {
		return m.AdmitFn(ctx, req)
	}
	return &admission.Decision{Allowed: true}
}
