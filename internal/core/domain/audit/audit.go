package audit

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records an administrative action against the admission subsystem.
// Quota resets go through here so an administrative reset is never
// indistinguishable from an organic period rollover (rollovers write no
// audit record at all).
type AuditLog struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty" db:"organization_id"`
	ActorID        *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	Action         string     `json:"action" db:"action"`
	Resource       string     `json:"resource" db:"resource"`
	Details        any        `json:"details" db:"details"`
	IPAddress      string     `json:"ip_address" db:"ip_address"`
	UserAgent      string     `json:"user_agent" db:"user_agent"`
	Timestamp      time.Time  `json:"timestamp" db:"timestamp"`
}

type AuditAction string

const (
	ActionQuotaReset   AuditAction = "quota_reset"
	ActionLimitsReload AuditAction = "limits_reload"
)

type AuditResource string

const (
	ResourceQuota  AuditResource = "quota"
	ResourceLimits AuditResource = "limits"
)

// CreateAuditLogRequest represents the request to create an audit log entry
type CreateAuditLogRequest struct {
	OrganizationID *uuid.UUID    `json:"organization_id,omitempty"`
	ActorID        *uuid.UUID    `json:"actor_id,omitempty"`
	Action         AuditAction   `json:"action"`
	Resource       AuditResource `json:"resource"`
	Details        any           `json:"details,omitempty"`
	IPAddress      string        `json:"ip_address"`
	UserAgent      string        `json:"user_agent"`
}

// AuditLogFilter represents filters for querying audit logs
type AuditLogFilter struct {
	OrganizationID *uuid.UUID     `json:"organization_id,omitempty" query:"organization_id"`
	ActorID        *uuid.UUID     `json:"actor_id,omitempty" query:"actor_id"`
	Action         *AuditAction   `json:"action,omitempty" query:"action"`
	Resource       *AuditResource `json:"resource,omitempty" query:"resource"`
	StartTime      *time.Time     `json:"start_time,omitempty" query:"start_time"`
	EndTime        *time.Time     `json:"end_time,omitempty" query:"end_time"`
	Limit          int            `json:"limit" query:"limit"`
	Offset         int            `json:"offset" query:"offset"`
}
