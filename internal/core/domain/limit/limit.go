package limit

import (
	"fmt"
	"slices"
	"time"
)

// Scope identifies which throttle layer a counter belongs to.
type Scope string

const (
	ScopeIP           Scope = "ip"
	ScopeIdentity     Scope = "identity"
	ScopeOrganization Scope = "organization"
)

func (s Scope) Valid() bool {
	return s == ScopeIP || s == ScopeIdentity || s == ScopeOrganization
}

// WindowDecision is the outcome of a single check-and-increment against a
// fixed window counter.
type WindowDecision struct {
	Allowed     bool          `json:"allowed"`
	Count       int           `json:"count"`
	Limit       int           `json:"limit"`
	WindowStart time.Time     `json:"window_start"`
	ResetAfter  time.Duration `json:"reset_after"`
}

// Remaining reports how many more requests fit in the current window.
func (d *WindowDecision) Remaining() int {
	r := d.Limit - d.Count
	if r < 0 {
		return 0
	}
	return r
}

// RetryAfterSeconds converts the window remainder into the Retry-After
// header value. Always at least 1 so clients never retry immediately.
func (d *WindowDecision) RetryAfterSeconds() int {
	secs := int(d.ResetAfter.Round(time.Second).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// FailurePolicy decides admission when the counter store itself is
// unreachable: fail-open admits (availability first), fail-closed rejects
// (strict enforcement first).
type FailurePolicy string

const (
	FailOpen   FailurePolicy = "fail_open"
	FailClosed FailurePolicy = "fail_closed"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case FailOpen, FailClosed:
		return FailurePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", s, FailOpen, FailClosed)
	}
}

// Role is the identity-layer tier supplied by the identity provider.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

func Roles() []Role {
	return []Role{RoleViewer, RoleMember, RoleAdmin, RoleSuperadmin}
}

func (r Role) Valid() bool {
	return slices.Contains(Roles(), r)
}

// IsAdmin reports whether the role may use the admin introspection surface.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// RoleLimit is the per-window request ceiling for one role. Unlimited roles
// skip the identity layer entirely.
type RoleLimit struct {
	RequestsPerWindow int
	Unlimited         bool
}

type RoleLimits map[Role]RoleLimit

// DefaultRoleLimits mirrors the product's role tiers: read-only roles get a
// smaller ceiling, administrative roles a larger one.
func DefaultRoleLimits() RoleLimits {
	return RoleLimits{
		RoleViewer:     {RequestsPerWindow: 50},
		RoleMember:     {RequestsPerWindow: 100},
		RoleAdmin:      {RequestsPerWindow: 500},
		RoleSuperadmin: {Unlimited: true},
	}
}

// Validate ensures every known role has a usable limit. Called at startup;
// a bad table prevents the service from booting rather than failing
// requests unpredictably.
func (rl RoleLimits) Validate() error {
	for _, role := range Roles() {
		l, ok := rl[role]
		if !ok {
			return fmt.Errorf("role limits: missing entry for role %q", role)
		}
		if !l.Unlimited && l.RequestsPerWindow <= 0 {
			return fmt.Errorf("role limits: non-positive limit %d for role %q", l.RequestsPerWindow, role)
		}
	}
	for role := range rl {
		if !role.Valid() {
			return fmt.Errorf("role limits: unknown role %q", role)
		}
	}
	return nil
}

// For returns the limit for a role, falling back to the member tier when the
// role is not in the table.
func (rl RoleLimits) For(r Role) RoleLimit {
	if l, ok := rl[r]; ok {
		return l
	}
	return rl[RoleMember]
}

// Standing is a subject's state against one layer. WarningZone is purely
// informational and never blocks.
type Standing string

const (
	StandingUnderLimit Standing = "under_limit"
	StandingWarning    Standing = "warning_zone"
	StandingBlocked    Standing = "blocked"
)

// WarningThresholdPercent is where the informational warning zone begins.
const WarningThresholdPercent = 80.0

// StandingFor classifies usage against a finite limit.
func StandingFor(used, max int) Standing {
	if max <= 0 {
		return StandingUnderLimit
	}
	pct := float64(used) / float64(max) * 100
	switch {
	case pct >= 100:
		return StandingBlocked
	case pct >= WarningThresholdPercent:
		return StandingWarning
	default:
		return StandingUnderLimit
	}
}
