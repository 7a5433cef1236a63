package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/quota"
	"github.com/tariffscope/admission/internal/core/ports"
	"github.com/tariffscope/admission/internal/infrastructure/db"
)

// QuotaUsageRepository stores monthly usage counters in Postgres. Rows are
// keyed by (organization, resource, period); a new period gets a fresh row,
// so usage never carries over a rollover.
type QuotaUsageRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewQuotaUsageRepository(database *db.Database, logger *logrus.Logger) ports.QuotaUsageRepository {
	return &QuotaUsageRepository{db: database, logger: logger}
}

// Increment adds one to the period's counter in a single upsert statement.
// The ON CONFLICT arithmetic runs inside the database, so concurrent
// increments from multiple instances serialize there instead of racing
// through a read-modify-write in application code.
func (r *QuotaUsageRepository) Increment(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error) {
	query := `
		INSERT INTO quota_usage (id, organization_id, resource, period_start, used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW())
		ON CONFLICT (organization_id, resource, period_start)
		DO UPDATE SET used = quota_usage.used + 1, updated_at = NOW()
		RETURNING used`

	var used int
	err := r.db.DB.GetContext(ctx, &used, query, uuid.New(), orgID, resource, period)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"organization_id": orgID, "resource": resource, "period": period}).WithError(err).Error("db: failed to increment quota usage")
		}
		return 0, fmt.Errorf("failed to increment quota usage: %w", err)
	}
	return used, nil
}

// Get returns the period's counter, zero when no row exists yet.
func (r *QuotaUsageRepository) Get(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) (int, error) {
	query := `
		SELECT used FROM quota_usage
		WHERE organization_id = $1 AND resource = $2 AND period_start = $3`

	var used int
	err := r.db.DB.GetContext(ctx, &used, query, orgID, resource, period)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota usage: %w", err)
	}
	return used, nil
}

// Reset zeroes the period's counter. Absence of a row means nothing was
// used, which is already the reset state.
func (r *QuotaUsageRepository) Reset(ctx context.Context, orgID uuid.UUID, resource quota.ResourceType, period string) error {
	query := `
		UPDATE quota_usage SET used = 0, updated_at = NOW()
		WHERE organization_id = $1 AND resource = $2 AND period_start = $3`

	if _, err := r.db.DB.ExecContext(ctx, query, orgID, resource, period); err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"organization_id": orgID, "resource": resource, "period": period}).WithError(err).Error("db: failed to reset quota usage")
		}
		return fmt.Errorf("failed to reset quota usage: %w", err)
	}
	return nil
}

// ListByPeriod returns every usage row for the period, for the admin usage
// report.
func (r *QuotaUsageRepository) ListByPeriod(ctx context.Context, period string) ([]*quota.Usage, error) {
	query := `
		SELECT id, organization_id, resource, period_start, used, created_at, updated_at
		FROM quota_usage
		WHERE period_start = $1
		ORDER BY organization_id, resource`

	var usages []*quota.Usage
	if err := r.db.DB.SelectContext(ctx, &usages, query, period); err != nil {
		return nil, fmt.Errorf("failed to list quota usage: %w", err)
	}
	return usages, nil
}
