package org

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Organization is the billing tenant whose plan drives quota limits.
// The plan field is maintained by the billing collaborator; this service
// only reads it.
type Organization struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Slug         string    `json:"slug" db:"slug"`
	Plan         Plan      `json:"plan" db:"plan"`
	Status       Status    `json:"status" db:"status"`
	BillingEmail string    `json:"billing_email" db:"billing_email"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// CanAccess returns true if the organization may use the API at all.
func (o *Organization) CanAccess() bool {
	return o.Status == StatusActive
}

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Plans lists every plan tier known to this service, in ascending order.
func Plans() []Plan {
	return []Plan{PlanFree, PlanPro, PlanEnterprise}
}

func (p Plan) Valid() bool {
	return slices.Contains(Plans(), p)
}
