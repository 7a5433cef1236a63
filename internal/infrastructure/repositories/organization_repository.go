package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/ports"
	"github.com/tariffscope/admission/internal/infrastructure/db"
)

// ErrOrganizationNotFound is returned when no organization row exists.
var ErrOrganizationNotFound = errors.New("organization not found")

// OrganizationRepository reads the organization records owned by the billing
// collaborator. Read-only from this service's perspective.
type OrganizationRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

func NewOrganizationRepository(database *db.Database, logger *logrus.Logger) ports.OrganizationRepository {
	return &OrganizationRepository{db: database, logger: logger}
}

// GetByID retrieves an organization by ID.
func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
	var o org.Organization
	query := `
		SELECT id, name, slug, plan, status, billing_email, created_at, updated_at
		FROM organizations
		WHERE id = $1`

	err := r.db.DB.GetContext(ctx, &o, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"organization_id": id}).WithError(err).Error("db: failed to read organization")
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}

// List returns all organizations, for the admin usage report.
func (r *OrganizationRepository) List(ctx context.Context) ([]*org.Organization, error) {
	var orgs []*org.Organization
	query := `
		SELECT id, name, slug, plan, status, billing_email, created_at, updated_at
		FROM organizations
		ORDER BY name`

	if err := r.db.DB.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}
