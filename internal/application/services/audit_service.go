package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/audit"
	"github.com/tariffscope/admission/internal/core/ports"
)

type AuditService struct {
	repo   ports.AuditRepository
	logger *logrus.Logger
}

func NewAuditService(repo ports.AuditRepository, logger *logrus.Logger) ports.AuditService {
	return &AuditService{
		repo:   repo,
		logger: logger,
	}
}

func (s *AuditService) LogAction(ctx context.Context, req *audit.CreateAuditLogRequest) error {
	auditLog := &audit.AuditLog{
		OrganizationID: req.OrganizationID,
		ActorID:        req.ActorID,
		Action:         string(req.Action),
		Resource:       string(req.Resource),
		Details:        req.Details,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		Timestamp:      time.Now(),
	}

	err := s.repo.Create(ctx, auditLog)
	if err != nil {
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"organization_id": req.OrganizationID, "actor_id": req.ActorID, "action": req.Action, "resource": req.Resource}).WithError(err).Error("failed to persist audit log")
		}
		return err
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"organization_id": req.OrganizationID, "actor_id": req.ActorID, "action": req.Action, "resource": req.Resource}).Debug("audit log persisted")
	}
	return nil
}

func (s *AuditService) GetAuditLogs(ctx context.Context, filter *audit.AuditLogFilter) ([]*audit.AuditLog, int, error) {
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (s *AuditService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, cutoff)
}
