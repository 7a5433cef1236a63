package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/tariffscope/admission/internal/core/domain/org"
)

// OrganizationRepository reads the organization records maintained by the
// billing collaborator. This subsystem never writes them.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*org.Organization, error)
	List(ctx context.Context) ([]*org.Organization, error)
}

// OrganizationCacheInvalidator is implemented by caching decorators so the
// billing collaborator's plan-change events can evict a stale plan
// immediately instead of waiting out the cache TTL.
type OrganizationCacheInvalidator interface {
	Invalidate(ctx context.Context, id uuid.UUID) error
}
