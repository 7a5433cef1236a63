package quota

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/core/domain/org"
)

// ResourceType is a metered, billable resource. Only endpoints flagged with a
// resource type are subject to the organization quota layer.
type ResourceType string

const (
	ResourceCalculations ResourceType = "calculations"
	ResourceComparisons  ResourceType = "comparisons"
)

func ResourceTypes() []ResourceType {
	return []ResourceType{ResourceCalculations, ResourceComparisons}
}

func (r ResourceType) Valid() bool {
	return slices.Contains(ResourceTypes(), r)
}

// Limit is a plan-derived monthly allowance. Unlimited is an explicit
// sentinel, never a very large number.
type Limit struct {
	Value     int
	Unlimited bool
}

// PlanLimits maps (plan, resource) to its monthly allowance. The table is
// immutable reference data owned by the billing collaborator; it is loaded
// once at startup, validated, and only replaced through an explicit reload.
type PlanLimits map[org.Plan]map[ResourceType]Limit

// DefaultPlanLimits carries the product's published plan allowances.
func DefaultPlanLimits() PlanLimits {
	return PlanLimits{
		org.PlanFree: {
			ResourceCalculations: {Value: 100},
			ResourceComparisons:  {Value: 50},
		},
		org.PlanPro: {
			ResourceCalculations: {Value: 1000},
			ResourceComparisons:  {Value: 500},
		},
		org.PlanEnterprise: {
			ResourceCalculations: {Value: 10000},
			ResourceComparisons:  {Unlimited: true},
		},
	}
}

// Validate ensures every (plan, resource) pair resolves. A hole in the table
// is a configuration fault that must prevent startup.
func (pl PlanLimits) Validate() error {
	for _, plan := range org.Plans() {
		resources, ok := pl[plan]
		if !ok {
			return fmt.Errorf("plan limits: missing plan %q", plan)
		}
		for _, res := range ResourceTypes() {
			l, ok := resources[res]
			if !ok {
				return fmt.Errorf("plan limits: missing resource %q for plan %q", res, plan)
			}
			if !l.Unlimited && l.Value <= 0 {
				return fmt.Errorf("plan limits: non-positive limit %d for plan %q resource %q", l.Value, plan, res)
			}
		}
	}
	for plan, resources := range pl {
		if !plan.Valid() {
			return fmt.Errorf("plan limits: unknown plan %q", plan)
		}
		for res := range resources {
			if !res.Valid() {
				return fmt.Errorf("plan limits: unknown resource %q under plan %q", res, plan)
			}
		}
	}
	return nil
}

// Lookup resolves the allowance for a (plan, resource) pair.
func (pl PlanLimits) Lookup(plan org.Plan, res ResourceType) (Limit, error) {
	resources, ok := pl[plan]
	if !ok {
		return Limit{}, fmt.Errorf("no limits configured for plan %q", plan)
	}
	l, ok := resources[res]
	if !ok {
		return Limit{}, fmt.Errorf("no limit configured for plan %q resource %q", plan, res)
	}
	return l, nil
}

// Usage is one organization's consumption of one resource within one
// calendar-month period. A new period always starts from zero; the limit is
// a read-time join against the plan table, not a stored copy.
type Usage struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	OrganizationID uuid.UUID    `json:"organization_id" db:"organization_id"`
	Resource       ResourceType `json:"resource" db:"resource"`
	PeriodStart    string       `json:"period_start" db:"period_start"` // "2026-08"
	Used           int          `json:"used" db:"used"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// UsageView is the resolver's answer: current usage against the plan limit
// with the derived warning/exceeded flags. Limit is nil when unlimited.
type UsageView struct {
	OrganizationID uuid.UUID    `json:"organization_id"`
	Resource       ResourceType `json:"resource"`
	PeriodStart    string       `json:"period_start"`
	Used           int          `json:"used"`
	Limit          *int         `json:"limit"`
	Percentage     float64      `json:"percentage"`
	Warning        bool         `json:"warning"`
	Exceeded       bool         `json:"exceeded"`
	ResetsInDays   int          `json:"resets_in_days"`
}

// Standing classifies the view for the notification collaborator.
func (v *UsageView) Standing() limit.Standing {
	switch {
	case v.Exceeded:
		return limit.StandingBlocked
	case v.Warning:
		return limit.StandingWarning
	default:
		return limit.StandingUnderLimit
	}
}

// BuildUsageView derives the flags from raw usage. The three flags are
// mutually consistent by construction: exceeded at >=100%, warning only in
// the [80%, 100%) band, and an unlimited resource is never warned or
// exceeded.
func BuildUsageView(orgID uuid.UUID, res ResourceType, used int, l Limit, now time.Time) *UsageView {
	view := &UsageView{
		OrganizationID: orgID,
		Resource:       res,
		PeriodStart:    Period(now),
		Used:           used,
		ResetsInDays:   DaysUntilRollover(now),
	}
	if l.Unlimited {
		return view
	}
	value := l.Value
	view.Limit = &value
	if value > 0 {
		view.Percentage = float64(used) / float64(value) * 100
	}
	view.Exceeded = view.Percentage >= 100
	view.Warning = !view.Exceeded && view.Percentage >= limit.WarningThresholdPercent
	return view
}

// Period formats the calendar-month period key for a point in time (UTC).
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// NextPeriodStart returns midnight UTC on the first day of the next month.
func NextPeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// DaysUntilRollover counts days until the quota period rolls over, rounding
// up so "later today" reports 1.
func DaysUntilRollover(t time.Time) int {
	remaining := NextPeriodStart(t).Sub(t.UTC())
	days := int(math.Ceil(remaining.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}
