package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/admission"
	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/core/domain/violation"
	"github.com/tariffscope/admission/internal/core/ports"
)

// AdmissionService is the layered throttle orchestrator. It evaluates the
// IP, identity and organization layers in that fixed order, cheapest and
// most general first, and short-circuits on the first rejection.
//
// IP and identity counters meter attempts: they are incremented for every
// request reaching their layer, including requests that a later layer ends
// up rejecting, so retrying after a quota rejection cannot bypass them. The
// organization quota is a usage meter and only moves when business logic
// commits a billable unit (see QuotaService.CommitUsage).
type AdmissionService struct {
	counters   ports.WindowCounterStore
	quota      ports.QuotaService
	violations ports.ViolationService
	logger     *logrus.Logger

	window       time.Duration
	ipLimit      int
	roleLimits   limit.RoleLimits
	policy       limit.FailurePolicy
	storeTimeout time.Duration
	upgradeURL   string
}

// AdmissionServiceConfig groups the orchestrator's tunables.
type AdmissionServiceConfig struct {
	Window        time.Duration
	IPLimit       int
	RoleLimits    limit.RoleLimits
	FailurePolicy limit.FailurePolicy
	StoreTimeout  time.Duration
	UpgradeURL    string
}

func NewAdmissionService(counters ports.WindowCounterStore, quotaSvc ports.QuotaService, violationSvc ports.ViolationService, cfg *AdmissionServiceConfig, logger *logrus.Logger) *AdmissionService {
	// Apply defaults
	window := time.Minute
	ipLimit := 100
	roleLimits := limit.DefaultRoleLimits()
	policy := limit.FailOpen
	storeTimeout := 500 * time.Millisecond
	upgradeURL := ""
	if cfg != nil {
		if cfg.Window > 0 {
			window = cfg.Window
		}
		if cfg.IPLimit > 0 {
			ipLimit = cfg.IPLimit
		}
		if cfg.RoleLimits != nil {
			roleLimits = cfg.RoleLimits
		}
		if cfg.FailurePolicy != "" {
			policy = cfg.FailurePolicy
		}
		if cfg.StoreTimeout > 0 {
			storeTimeout = cfg.StoreTimeout
		}
		upgradeURL = cfg.UpgradeURL
	}
	return &AdmissionService{
		counters:     counters,
		quota:        quotaSvc,
		violations:   violationSvc,
		logger:       logger,
		window:       window,
		ipLimit:      ipLimit,
		roleLimits:   roleLimits,
		policy:       policy,
		storeTimeout: storeTimeout,
		upgradeURL:   upgradeURL,
	}
}

// Admit evaluates the layers and always returns a decision: infrastructure
// failures are resolved internally by the configured failure policy and
// never surface as errors to business logic.
func (s *AdmissionService) Admit(ctx context.Context, req *admission.Request) *admission.Decision {
	dec := &admission.Decision{Allowed: true}

	// Layer 1: IP. Always evaluated, even for unauthenticated requests.
	ipDec := s.checkWindow(ctx, limit.ScopeIP, req.IP, s.ipLimit)
	dec.IPWindow = ipDec
	if !ipDec.Allowed {
		return s.rejectWindow(req, dec, admission.LayerIP, req.IP, ipDec)
	}

	// Layer 2: identity, only when a verified principal is attached.
	// Unlimited roles skip the counter entirely.
	if p := req.Principal; p != nil {
		rl := s.roleLimits.For(p.Role)
		if !rl.Unlimited {
			idDec := s.checkWindow(ctx, limit.ScopeIdentity, p.ID.String(), rl.RequestsPerWindow)
			dec.IdentityWindow = idDec
			if !idDec.Allowed {
				return s.rejectWindow(req, dec, admission.LayerIdentity, p.ID.String(), idDec)
			}
		}
	}

	// Layer 3: organization quota, only for quota-relevant endpoints.
	// Check-only: the meter moves on commit, not on admission.
	if oc := req.Org; oc != nil {
		view, err := s.quota.Resolve(ctx, oc.ID, oc.Resource)
		if err != nil {
			return s.resolveQuotaFailure(req, dec, err)
		}
		dec.Quota = view
		if view.Exceeded {
			return s.rejectQuota(req, dec)
		}
	}

	return dec
}

// checkWindow runs one bounded check-and-increment and resolves store
// failures to the configured policy instead of propagating them.
func (s *AdmissionService) checkWindow(ctx context.Context, scope limit.Scope, subject string, max int) *limit.WindowDecision {
	cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	d, err := s.counters.CheckAndIncrement(cctx, scope, subject, max, s.window)
	if err == nil {
		return d
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"scope": scope, "subject": subject, "policy": s.policy}).WithError(err).Warn("admission: counter store unavailable")
	}

	synthetic := &limit.WindowDecision{
		Allowed:    s.policy == limit.FailOpen,
		Count:      0,
		Limit:      max,
		ResetAfter: s.window,
	}
	return synthetic
}

func (s *AdmissionService) rejectWindow(req *admission.Request, dec *admission.Decision, layer admission.Layer, subject string, wd *limit.WindowDecision) *admission.Decision {
	dec.Allowed = false
	dec.Layer = layer

	retryAfter := wd.RetryAfterSeconds()
	lim := wd.Limit
	dec.Deny = &admission.Deny{
		Error:             admission.DenyRateLimited,
		Message:           fmt.Sprintf("Rate limit exceeded: %d requests per %s.", wd.Limit, s.window),
		Limit:             &lim,
		Used:              wd.Count,
		RetryAfterSeconds: &retryAfter,
	}

	s.recordViolation(req, subject, scopeForLayer(layer), wd.Limit, wd.Count+1)
	return dec
}

func (s *AdmissionService) rejectQuota(req *admission.Request, dec *admission.Decision) *admission.Decision {
	view := dec.Quota
	dec.Allowed = false
	dec.Layer = admission.LayerOrganization

	resetsInDays := view.ResetsInDays
	dec.Deny = &admission.Deny{
		Error:        admission.DenyQuotaExceeded,
		Message:      fmt.Sprintf("Monthly %s quota exceeded.", view.Resource),
		Limit:        view.Limit,
		Used:         view.Used,
		ResetsInDays: &resetsInDays,
		UpgradeURL:   s.upgradeURL,
	}

	limitValue := 0
	if view.Limit != nil {
		limitValue = *view.Limit
	}
	s.recordViolation(req, req.Org.ID.String(), limit.ScopeOrganization, limitValue, view.Used+1)
	return dec
}

// resolveQuotaFailure applies the failure policy when the quota layer's
// backing store cannot be consulted. Either way the caller still gets a
// well-formed decision, never an error.
func (s *AdmissionService) resolveQuotaFailure(req *admission.Request, dec *admission.Decision, err error) *admission.Decision {
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"organization_id": req.Org.ID, "resource": req.Org.Resource, "policy": s.policy}).WithError(err).Warn("admission: quota resolution unavailable")
	}
	if s.policy == limit.FailOpen {
		return dec
	}

	dec.Allowed = false
	dec.Layer = admission.LayerOrganization
	dec.Deny = &admission.Deny{
		Error:   admission.DenyQuotaExceeded,
		Message: "Quota could not be verified; request rejected by policy.",
	}
	return dec
}

func (s *AdmissionService) recordViolation(req *admission.Request, subject string, scope limit.Scope, max, observed int) {
	if s.violations == nil {
		return
	}
	v := &violation.Violation{
		Subject:       subject,
		Scope:         scope,
		Limit:         max,
		ObservedCount: observed,
		Endpoint:      req.Endpoint,
		UserAgent:     req.UserAgent,
	}
	if req.Principal != nil {
		id := req.Principal.ID
		v.UserID = &id
	}
	s.violations.Record(v)
}

func scopeForLayer(layer admission.Layer) limit.Scope {
	switch layer {
	case admission.LayerIP:
		return limit.ScopeIP
	case admission.LayerIdentity:
		return limit.ScopeIdentity
	default:
		return limit.ScopeOrganization
	}
}
