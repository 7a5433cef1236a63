package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	impl "github.com/tariffscope/admission/internal/application/services"
	"github.com/tariffscope/admission/internal/core/domain/audit"
	"github.com/tariffscope/admission/test/mocks"
)

func TestLogAction_PersistsRecord(t *testing.T) {
	orgID := uuid.New()
	var created *audit.AuditLog
	repo := &mocks.AuditRepositoryMock{
		CreateFn: func(ctx context.Context, l *audit.AuditLog) error {
			created = l
			return nil
		},
	}
	svc := impl.NewAuditService(repo, nil)

	err := svc.LogAction(context.Background(), &audit.CreateAuditLogRequest{
		OrganizationID: &orgID,
		Action:         audit.ActionQuotaReset,
		Resource:       audit.ResourceQuota,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil || created.Action != string(audit.ActionQuotaReset) {
		t.Fatalf("unexpected record: %+v", created)
	}
	if created.Timestamp.IsZero() {
		t.Fatal("timestamp must be set")
	}
}

func TestLogAction_RepoErrorSurfaces(t *testing.T) {
	repo := &mocks.AuditRepositoryMock{
		CreateFn: func(ctx context.Context, l *audit.AuditLog) error { return errors.New("boom") },
	}
	svc := impl.NewAuditService(repo, nil)

	if err := svc.LogAction(context.Background(), &audit.CreateAuditLogRequest{Action: audit.ActionQuotaReset}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetAuditLogs_ReturnsListAndCount(t *testing.T) {
	now := time.Now()
	sample := &audit.AuditLog{Action: string(audit.ActionQuotaReset), Timestamp: now}
	repo := &mocks.AuditRepositoryMock{
		ListFn: func(ctx context.Context, f *audit.AuditLogFilter) ([]*audit.AuditLog, error) {
			return []*audit.AuditLog{sample}, nil
		},
		CountFn: func(ctx context.Context, f *audit.AuditLogFilter) (int, error) { return 1, nil },
	}
	svc := impl.NewAuditService(repo, nil)

	logs, total, err := svc.GetAuditLogs(context.Background(), &audit.AuditLogFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(logs) != 1 || !logs[0].Timestamp.Equal(now) {
		t.Fatalf("unexpected result: total=%d logs=%v", total, logs)
	}
}
