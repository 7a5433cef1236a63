package services_test

import (
	"context"
	"testing"
	"time"

	impl "github.com/tariffscope/admission/internal/application/services"
	"github.com/tariffscope/admission/internal/core/domain/limit"
	"github.com/tariffscope/admission/internal/core/domain/violation"
	"github.com/tariffscope/admission/test/mocks"
)

func TestRecord_PersistsAsynchronously(t *testing.T) {
	created := make(chan *violation.Violation, 1)
	repo := &mocks.ViolationRepositoryMock{
		CreateFn: func(ctx context.Context, v *violation.Violation) error {
			created <- v
			return nil
		},
	}
	svc := impl.NewViolationService(repo, nil)

	svc.Record(&violation.Violation{Subject: "203.0.113.9", Scope: limit.ScopeIP, Limit: 100, ObservedCount: 101})

	select {
	case v := <-created:
		if v.Subject != "203.0.113.9" || v.ObservedCount != 101 {
			t.Fatalf("unexpected violation persisted: %+v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the violation to be persisted in the background")
	}
}

func TestGetViolations_DefaultsPageSize(t *testing.T) {
	var seen *violation.Filter
	repo := &mocks.ViolationRepositoryMock{
		ListFn: func(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, error) {
			seen = filter
			return []*violation.Violation{{Subject: "a"}}, nil
		},
		CountFn: func(ctx context.Context, filter *violation.Filter) (int, error) { return 1, nil },
	}
	svc := impl.NewViolationService(repo, nil)

	violations, total, err := svc.GetViolations(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(violations) != 1 {
		t.Fatalf("expected one violation with total 1, got %d/%d", len(violations), total)
	}
	if seen.Limit != 50 {
		t.Fatalf("expected default page size 50, got %d", seen.Limit)
	}
}

func TestTopViolators_AppliesDefaults(t *testing.T) {
	var gotSince time.Time
	var gotN int
	repo := &mocks.ViolationRepositoryMock{
		TopViolatorsFn: func(ctx context.Context, since time.Time, n int) ([]*violation.ViolatorRank, error) {
			gotSince, gotN = since, n
			return nil, nil
		},
	}
	svc := impl.NewViolationService(repo, nil)

	if _, err := svc.TopViolators(context.Background(), 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotN != 20 {
		t.Fatalf("expected default top-n of 20, got %d", gotN)
	}
	wantSince := time.Now().Add(-7 * 24 * time.Hour)
	if gotSince.Before(wantSince.Add(-time.Minute)) || gotSince.After(wantSince.Add(time.Minute)) {
		t.Fatalf("expected a trailing week window, got since=%s", gotSince)
	}
}
