package quota_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/domain/quota"
)

func TestBuildUsageView_FlagConsistency(t *testing.T) {
	orgID := uuid.New()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	l := quota.Limit{Value: 100}

	cases := []struct {
		used     int
		warning  bool
		exceeded bool
	}{
		{0, false, false},
		{79, false, false},
		{80, true, false},
		{99, true, false},
		{100, false, true},
		{150, false, true},
	}
	for _, tc := range cases {
		v := quota.BuildUsageView(orgID, quota.ResourceCalculations, tc.used, l, now)
		if v.Warning != tc.warning || v.Exceeded != tc.exceeded {
			t.Errorf("used=%d: got warning=%v exceeded=%v, want %v/%v", tc.used, v.Warning, v.Exceeded, tc.warning, tc.exceeded)
		}
		if v.Warning && v.Exceeded {
			t.Errorf("used=%d: warning and exceeded are mutually exclusive", tc.used)
		}
	}
}

func TestBuildUsageView_Unlimited(t *testing.T) {
	v := quota.BuildUsageView(uuid.New(), quota.ResourceComparisons, 1_000_000, quota.Limit{Unlimited: true}, time.Now())
	if v.Limit != nil {
		t.Fatal("unlimited must serialize limit as nil")
	}
	if v.Warning || v.Exceeded {
		t.Fatalf("unlimited must never warn or exceed: %+v", v)
	}
	if v.Percentage != 0 {
		t.Fatalf("percentage is undefined for unlimited, got %f", v.Percentage)
	}
}

func TestBuildUsageView_Standing(t *testing.T) {
	orgID := uuid.New()
	now := time.Now()
	l := quota.Limit{Value: 10}
	if s := quota.BuildUsageView(orgID, quota.ResourceCalculations, 5, l, now).Standing(); s != limit.StandingUnderLimit {
		t.Fatalf("expected under_limit, got %s", s)
	}
	if s := quota.BuildUsageView(orgID, quota.ResourceCalculations, 8, l, now).Standing(); s != limit.StandingWarning {
		t.Fatalf("expected warning_zone, got %s", s)
	}
	if s := quota.BuildUsageView(orgID, quota.ResourceCalculations, 10, l, now).Standing(); s != limit.StandingBlocked {
		t.Fatalf("expected blocked, got %s", s)
	}
}

func TestPeriod_CalendarMonthKey(t *testing.T) {
	if p := quota.Period(time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)); p != "2026-08" {
		t.Fatalf("got %q", p)
	}
	// Period keys are derived in UTC regardless of the input zone.
	loc := time.FixedZone("UTC+10", 10*3600)
	if p := quota.Period(time.Date(2026, 9, 1, 5, 0, 0, 0, loc)); p != "2026-08" {
		t.Fatalf("zone conversion broken, got %q", p)
	}
}

func TestDaysUntilRollover(t *testing.T) {
	if d := quota.DaysUntilRollover(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)); d != 31 {
		t.Fatalf("expected 31, got %d", d)
	}
	// Late on the last day still reports 1, never 0.
	if d := quota.DaysUntilRollover(time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)); d != 1 {
		t.Fatalf("expected 1, got %d", d)
	}
}

func TestPlanLimits_ValidateCatchesHoles(t *testing.T) {
	pl := quota.DefaultPlanLimits()
	if err := pl.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	delete(pl[org.PlanPro], quota.ResourceComparisons)
	if err := pl.Validate(); err == nil {
		t.Fatal("a missing (plan, resource) pair must fail validation")
	}

	bad := quota.DefaultPlanLimits()
	bad[org.Plan("platinum")] = map[quota.ResourceType]quota.Limit{}
	if err := bad.Validate(); err == nil {
		t.Fatal("an unknown plan must fail validation")
	}
}

func TestPlanLimits_Lookup(t *testing.T) {
	pl := quota.DefaultPlanLimits()
	l, err := pl.Lookup(org.PlanEnterprise, quota.ResourceComparisons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Unlimited {
		t.Fatal("enterprise comparisons should be unlimited")
	}
	if _, err := pl.Lookup(org.Plan("platinum"), quota.ResourceCalculations); err == nil {
		t.Fatal("unknown plan must not resolve")
	}
}
