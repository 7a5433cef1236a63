package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	impl "github.com/tariffscope/admission/internal/application/services"
	"github.com/tariffscope/admission/internal/core/domain/audit"
	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/test/mocks"
)

type usageState struct {
	mu   sync.Mutex
	used map[string]int
}

func newUsageState() *usageState {
	return &usageState{used: make(map[string]int)}
}

func (s *usageState) repo() *mocks.QuotaUsageRepositoryMock {
	return &mocks.QuotaUsageRepositoryMock{
		IncrementFn: func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			key := orgID.String() + ":" + string(resource) + ":" + period
			s.used[key]++
			return s.used[key], nil
		},
		GetFn: func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.used[orgID.String()+":"+string(resource)+":"+period], nil
		},
		ResetFn: func(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.used[orgID.String()+":"+string(resource)+":"+period] = 0
			return nil
		},
	}
}

func freeOrgRepo(orgID uuid.UUID) *mocks.OrganizationRepositoryMock {
	return &mocks.OrganizationRepositoryMock{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
			return &org.Organization{ID: orgID, Name: "Acme Freight", Plan: org.PlanFree, Status: org.StatusActive}, nil
		},
	}
}

func TestCommitUsage_HundredthAllowedHundredFirstExceeded(t *testing.T) {
	orgID := uuid.New()
	state := newUsageState()
	svc, err := impl.NewQuotaService(state.repo(), freeOrgRepo(orgID), nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Free plan allows 100 calculations per month.
	var view *quota.UsageView
	for i := 0; i < 100; i++ {
		view, err = svc.CommitUsage(context.Background(), orgID, quota.ResourceCalculations)
		if err != nil {
			t.Fatalf("commit %d failed: %v", i+1, err)
		}
	}
	if !view.Exceeded {
		t.Fatalf("100th unit is the last allowed one and marks the quota exhausted, got %+v", view)
	}
	if view.Used != 100 {
		t.Fatalf("expected used=100, got %d", view.Used)
	}

	resolved, err := svc.Resolve(context.Background(), orgID, quota.ResourceCalculations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resolved.Exceeded || resolved.Percentage < 100 {
		t.Fatalf("expected exceeded standing at 100%%, got %+v", resolved)
	}
}

func TestCommitUsage_WarningEmittedExactlyOnce(t *testing.T) {
	orgID := uuid.New()
	state := newUsageState()

	var mu sync.Mutex
	warnings := 0
	done := make(chan struct{}, 10)
	notifier := &mocks.UsageNotifierMock{
		QuotaWarningFn: func(ctx context.Context, o *org.Organization, view *quota.UsageView) error {
			mu.Lock()
			warnings++
			mu.Unlock()
			done <- struct{}{}
			return nil
		},
	}

	svc, err := impl.NewQuotaService(state.repo(), freeOrgRepo(orgID), nil, notifier, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 80 of 100 crosses the warning threshold; commits 81..85 stay inside
	// the zone and must not re-emit.
	for i := 0; i < 85; i++ {
		if _, err := svc.CommitUsage(context.Background(), orgID, quota.ResourceCalculations); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a warning signal")
	}
	// Give any extra goroutines a moment to surface.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if warnings != 1 {
		t.Fatalf("expected exactly one warning signal, got %d", warnings)
	}
}

func TestCommitUsage_UnlimitedNeverWarnsOrExceeds(t *testing.T) {
	orgID := uuid.New()
	state := newUsageState()
	orgRepo := &mocks.OrganizationRepositoryMock{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
			return &org.Organization{ID: orgID, Plan: org.PlanEnterprise, Status: org.StatusActive}, nil
		},
	}
	notifier := &mocks.UsageNotifierMock{
		QuotaWarningFn: func(ctx context.Context, o *org.Organization, view *quota.UsageView) error {
			t.Error("unlimited resources must never emit warnings")
			return nil
		},
	}
	svc, err := impl.NewQuotaService(state.repo(), orgRepo, nil, notifier, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Enterprise comparisons are unlimited.
	var view *quota.UsageView
	for i := 0; i < 200; i++ {
		view, err = svc.CommitUsage(context.Background(), orgID, quota.ResourceComparisons)
		if err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}
	if view.Exceeded || view.Warning {
		t.Fatalf("unlimited resource flagged: %+v", view)
	}
	if view.Limit != nil {
		t.Fatalf("unlimited limit must serialize as null, got %d", *view.Limit)
	}
}

func TestResetQuota_WritesAuditRecordAndZeroesCurrentPeriod(t *testing.T) {
	orgID := uuid.New()
	actorID := uuid.New()
	state := newUsageState()

	var logged *audit.CreateAuditLogRequest
	auditSvc := &mocks.AuditServiceMock{
		LogActionFn: func(ctx context.Context, req *audit.CreateAuditLogRequest) error {
			logged = req
			return nil
		},
	}

	svc, err := impl.NewQuotaService(state.repo(), freeOrgRepo(orgID), auditSvc, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 42; i++ {
		if _, err := svc.CommitUsage(context.Background(), orgID, quota.ResourceCalculations); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}

	view, err := svc.ResetQuota(context.Background(), orgID, quota.ResourceCalculations, &audit.CreateAuditLogRequest{ActorID: &actorID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Used != 0 {
		t.Fatalf("expected zeroed usage, got %d", view.Used)
	}

	if logged == nil {
		t.Fatal("expected an audit record")
	}
	if logged.Action != audit.ActionQuotaReset || logged.Resource != audit.ResourceQuota {
		t.Fatalf("unexpected audit action/resource: %+v", logged)
	}
	if logged.OrganizationID == nil || *logged.OrganizationID != orgID {
		t.Fatal("audit record must name the organization")
	}
	details, ok := logged.Details.(map[string]any)
	if !ok || details["previous_used"] != 42 {
		t.Fatalf("audit details must carry previous usage, got %+v", logged.Details)
	}
}

func TestResetQuota_AuditFailureSurfaces(t *testing.T) {
	orgID := uuid.New()
	state := newUsageState()
	auditSvc := &mocks.AuditServiceMock{
		LogActionFn: func(ctx context.Context, req *audit.CreateAuditLogRequest) error {
			return errors.New("audit store down")
		},
	}
	svc, err := impl.NewQuotaService(state.repo(), freeOrgRepo(orgID), auditSvc, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.ResetQuota(context.Background(), orgID, quota.ResourceCalculations, &audit.CreateAuditLogRequest{}); err == nil {
		t.Fatal("a reset whose audit record failed must report the failure")
	}
}

func TestReloadLimits_RejectsInvalidTable(t *testing.T) {
	orgID := uuid.New()
	svc, err := impl.NewQuotaService(newUsageState().repo(), freeOrgRepo(orgID), nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := quota.PlanLimits{org.PlanFree: {quota.ResourceCalculations: {Value: -5}}}
	if err := svc.ReloadLimits(bad); err == nil {
		t.Fatal("invalid plan table must be rejected")
	}

	// The valid table still resolves afterwards.
	view, err := svc.Resolve(context.Background(), orgID, quota.ResourceCalculations)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Limit == nil || *view.Limit != 100 {
		t.Fatalf("expected the original free-plan limit to survive, got %+v", view.Limit)
	}
}

func TestNewQuotaService_RejectsIncompleteTable(t *testing.T) {
	bad := quota.PlanLimits{org.PlanFree: {quota.ResourceCalculations: {Value: 10}}}
	if _, err := impl.NewQuotaService(newUsageState().repo(), freeOrgRepo(uuid.New()), nil, nil, bad, nil); err == nil {
		t.Fatal("a table with holes must prevent startup")
	}
}
