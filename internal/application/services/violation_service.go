package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/violation"
	"github.com/tariffscope/admission/internal/core/ports"
)

const (
	recordTimeout      = 5 * time.Second
	defaultTopN        = 20
	defaultTopWindow   = 7 * 24 * time.Hour
	maxListPageSize    = 500
)

// ViolationService appends rejected attempts to the violation log and serves
// the admin analytics surface. A rejection is an expected, user-facing
// outcome, so nothing here logs at error severity for the rejection itself.
type ViolationService struct {
	repo   ports.ViolationRepository
	logger *logrus.Logger
}

func NewViolationService(repo ports.ViolationRepository, logger *logrus.Logger) *ViolationService {
	return &ViolationService{repo: repo, logger: logger}
}

// Record appends without blocking the admission path. Persistence failures
// are logged and dropped; losing a violation row must never turn into a
// failed request.
func (s *ViolationService) Record(v *violation.Violation) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.repo.Create(ctx, v); err != nil && s.logger != nil {
			s.logger.WithFields(logrus.Fields{"subject": v.Subject, "scope": v.Scope}).WithError(err).Warn("violation: failed to persist record")
		}
	}()
}

// GetViolations lists violations with their total for the admin surface.
func (s *ViolationService) GetViolations(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, int, error) {
	if filter == nil {
		filter = &violation.Filter{}
	}
	if filter.Limit <= 0 || filter.Limit > maxListPageSize {
		filter.Limit = 50
	}

	violations, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return violations, total, nil
}

// TopViolators ranks subjects by rejections within the trailing window.
func (s *ViolationService) TopViolators(ctx context.Context, window time.Duration, n int) ([]*violation.ViolatorRank, error) {
	if window <= 0 {
		window = defaultTopWindow
	}
	if n <= 0 {
		n = defaultTopN
	}
	return s.repo.TopViolators(ctx, time.Now().Add(-window), n)
}

// PurgeOlderThan ages out rows past the retention horizon; called by the
// background cleanup job only.
func (s *ViolationService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, cutoff)
}
