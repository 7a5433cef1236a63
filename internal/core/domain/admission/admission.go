package admission

import (
	"github.com/google/uuid"

	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/core/domain/quota"
)

// Principal is the verified identity attached to a request by the identity
// provider before this subsystem runs. No verification happens here.
type Principal struct {
	ID             uuid.UUID  `json:"id"`
	Role           limit.Role `json:"role"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
}

// OrgContext marks a request as quota-relevant: it consumes the named
// resource for the organization if admitted through to business logic.
type OrgContext struct {
	ID       uuid.UUID          `json:"id"`
	Resource quota.ResourceType `json:"resource"`
}

// Request is everything the orchestrator needs to evaluate the three layers.
type Request struct {
	IP        string      `json:"ip"`
	Principal *Principal  `json:"principal,omitempty"`
	Org       *OrgContext `json:"org,omitempty"`
	Endpoint  string      `json:"endpoint"`
	UserAgent string      `json:"user_agent"`
}

// Layer names an enforcement layer in the fixed evaluation order.
type Layer string

const (
	LayerIP           Layer = "ip"
	LayerIdentity     Layer = "identity"
	LayerOrganization Layer = "organization"
)

// Decision is the single admission outcome. Exactly one of Allowed or Deny
// is meaningful; window/quota snapshots are carried for response headers
// regardless of the outcome.
type Decision struct {
	Allowed bool `json:"allowed"`
	// Layer is the rejecting layer when denied.
	Layer Layer `json:"layer,omitempty"`

	IPWindow       *limit.WindowDecision `json:"ip_window,omitempty"`
	IdentityWindow *limit.WindowDecision `json:"identity_window,omitempty"`
	Quota          *quota.UsageView      `json:"quota,omitempty"`

	Deny *Deny `json:"deny,omitempty"`
}

// Deny is the machine-parseable 429 body. IP/identity rejections carry
// retry_after_seconds from the window remainder; organization rejections
// carry resets_in_days from the calendar boundary plus an upgrade reference.
type Deny struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	Limit             *int   `json:"limit"`
	Used              int    `json:"used"`
	RetryAfterSeconds *int   `json:"retry_after_seconds,omitempty"`
	ResetsInDays      *int   `json:"resets_in_days,omitempty"`
	UpgradeURL        string `json:"upgrade_url,omitempty"`
}

const (
	// DenyRateLimited is the error code for IP and identity layer rejections.
	DenyRateLimited = "rate_limit_exceeded"
	// DenyQuotaExceeded is the error code for organization layer rejections.
	DenyQuotaExceeded = "quota_exceeded"
)
