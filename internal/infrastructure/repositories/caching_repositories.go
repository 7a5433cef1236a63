package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tariffscope/admission/internal/core/domain/org"
	"github.com/tariffscope/admission/internal/core/ports"
)

// Utility helpers
func cacheSetSilently(c ports.Cache, ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, b, ttl)
}

func cacheGet[T any](c ports.Cache, ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// singleflight group for coalescing cache-miss loads in-process
var sf singleflight.Group

// CachingOrganizationRepository decorates the organization reader with
// cache-aside. The TTL bounds how long a stale plan can mis-enforce when no
// invalidation event arrives; the billing collaborator's plan-change events
// call Invalidate to cut that window to zero.
type CachingOrganizationRepository struct {
	inner ports.OrganizationRepository
	cache ports.Cache
	ttl   time.Duration
}

func NewCachingOrganizationRepository(inner ports.OrganizationRepository, cache ports.Cache, ttl time.Duration) *CachingOrganizationRepository {
	return &CachingOrganizationRepository{inner: inner, cache: cache, ttl: ttl}
}

func (c *CachingOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
	key := "org:id:" + id.String()
	if v, ok := cacheGet[org.Organization](c.cache, ctx, key); ok {
		return v, nil
	}
	res, err, _ := sf.Do(key, func() (any, error) {
		if v, ok := cacheGet[org.Organization](c.cache, ctx, key); ok {
			return v, nil
		}
		o, err := c.inner.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		cacheSetSilently(c.cache, ctx, key, o, c.ttl)
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	o, ok := res.(*org.Organization)
	if !ok {
		return nil, fmt.Errorf("unexpected type from singleflight result")
	}
	return o, nil
}

func (c *CachingOrganizationRepository) List(ctx context.Context) ([]*org.Organization, error) {
	// Listing is an admin-surface operation; always read through.
	return c.inner.List(ctx)
}

// Invalidate evicts one organization, wired to the billing collaborator's
// plan-change events.
func (c *CachingOrganizationRepository) Invalidate(ctx context.Context, id uuid.UUID) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, "org:id:"+id.String())
}
