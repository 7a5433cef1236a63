package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/audit"
	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/internal/core/ports"
)

// QuotaService resolves plan-derived monthly allowances and meters billable
// consumption against them. The plan limit table is immutable reference
// data held behind a lock and replaced wholesale on an explicit reload,
// never consulted through ad-hoc conditionals in request code.
type QuotaService struct {
	usageRepo ports.QuotaUsageRepository
	orgRepo   ports.OrganizationRepository
	auditSvc  ports.AuditService
	notifier  ports.UsageNotifier
	logger    *logrus.Logger

	mu     sync.RWMutex
	limits quota.PlanLimits

	now func() time.Time
}

func NewQuotaService(usageRepo ports.QuotaUsageRepository, orgRepo ports.OrganizationRepository, auditSvc ports.AuditService, notifier ports.UsageNotifier, limits quota.PlanLimits, logger *logrus.Logger) (*QuotaService, error) {
	if limits == nil {
		limits = quota.DefaultPlanLimits()
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("quota service: %w", err)
	}
	return &QuotaService{
		usageRepo: usageRepo,
		orgRepo:   orgRepo,
		auditSvc:  auditSvc,
		notifier:  notifier,
		limits:    limits,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// limitFor joins the organization's current plan against the limit table at
// read time, so a plan change is picked up on the next resolution instead of
// going stale in a stored copy.
func (s *QuotaService) limitFor(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (quota.Limit, error) {
	o, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return quota.Limit{}, fmt.Errorf("failed to resolve organization plan: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits.Lookup(o.Plan, resource)
}

// Resolve reads current usage against the plan limit without consuming
// anything.
func (s *QuotaService) Resolve(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error) {
	l, err := s.limitFor(ctx, orgID, resource)
	if err != nil {
		return nil, err
	}
	now := s.now()
	used, err := s.usageRepo.Get(ctx, orgID, resource, quota.Period(now))
	if err != nil {
		return nil, err
	}
	return quota.BuildUsageView(orgID, resource, used, l, now), nil
}

// CommitUsage consumes one billable unit. This is the only place the usage
// meter moves: admission checks never increment it, so a request rejected at
// the IP or identity layer leaves the quota untouched.
func (s *QuotaService) CommitUsage(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType) (*quota.UsageView, error) {
	l, err := s.limitFor(ctx, orgID, resource)
	if err != nil {
		return nil, err
	}
	now := s.now()
	used, err := s.usageRepo.Increment(ctx, orgID, resource, quota.Period(now))
	if err != nil {
		return nil, err
	}

	view := quota.BuildUsageView(orgID, resource, used, l, now)

	// Signal the warning-zone crossing exactly once, on the commit that
	// moved usage over the threshold. Delivery is the notification
	// collaborator's job and must never delay the billable request.
	if view.Warning {
		if prev := quota.BuildUsageView(orgID, resource, used-1, l, now); !prev.Warning {
			s.emitWarning(orgID, resource, view)
		}
	}

	return view, nil
}

func (s *QuotaService) emitWarning(orgID uuid.UUID, resource quota.ResourceType, view *quota.UsageView) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		o, err := s.orgRepo.GetByID(ctx, orgID)
		if err != nil {
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{"organization_id": orgID}).WithError(err).Warn("quota: failed to load organization for warning signal")
			}
			return
		}
		if err := s.notifier.QuotaWarning(ctx, o, view); err != nil && s.logger != nil {
			s.logger.WithFields(logrus.Fields{"organization_id": orgID, "resource": resource}).WithError(err).Warn("quota: warning signal failed")
		}
	}()
}

// ResetQuota is the administrative override. It zeroes the current period's
// usage only and writes exactly one audit record, so a manual reset is
// always distinguishable in the trail from an organic month rollover (which
// writes none). Historical violations are never touched.
func (s *QuotaService) ResetQuota(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, req *audit.CreateAuditLogRequest) (*quota.UsageView, error) {
	l, err := s.limitFor(ctx, orgID, resource)
	if err != nil {
		return nil, err
	}
	now := s.now()
	period := quota.Period(now)

	previous, err := s.usageRepo.Get(ctx, orgID, resource, period)
	if err != nil {
		return nil, err
	}
	if err := s.usageRepo.Reset(ctx, orgID, resource, period); err != nil {
		return nil, err
	}

	if s.auditSvc != nil && req != nil {
		req.OrganizationID = &orgID
		req.Action = audit.ActionQuotaReset
		req.Resource = audit.ResourceQuota
		req.Details = map[string]any{
			"resource":      resource,
			"period":        period,
			"previous_used": previous,
		}
		if err := s.auditSvc.LogAction(ctx, req); err != nil {
			return nil, fmt.Errorf("quota reset applied but audit record failed: %w", err)
		}
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"organization_id": orgID, "resource": resource, "period": period, "previous_used": previous}).Info("quota: administrative reset applied")
	}

	return quota.BuildUsageView(orgID, resource, 0, l, now), nil
}

// ReloadLimits replaces the plan table after validating the replacement.
// This is the explicit reload trigger for plan reference data changes.
func (s *QuotaService) ReloadLimits(limits quota.PlanLimits) error {
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("refusing to reload invalid plan limits: %w", err)
	}
	s.mu.Lock()
	s.limits = limits
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info("quota: plan limit table reloaded")
	}
	return nil
}

// ListUsage returns every organization's usage rows for the current period.
func (s *QuotaService) ListUsage(ctx context.Context) ([]*quota.Usage, error) {
	return s.usageRepo.ListByPeriod(ctx, quota.Period(s.now()))
}
