// Package cached decorates repositories with in-memory caches.
package cached

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/odontogram-api/internal/model"
	"github.com/jwalitptl/odontogram-api/internal/repository"
	"github.com/jwalitptl/odontogram-api/pkg/metrics"
)

// CatalogRepository caches suggestion lists per finding type. Failures are never cached.
type CatalogRepository struct {
	next    repository.CatalogRepository
	cache   *cache.Cache
	metrics *metrics.Metrics
}

func NewCatalogRepository(next repository.CatalogRepository, ttl time.Duration, m *metrics.Metrics) *CatalogRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &CatalogRepository{
		next:    next,
		cache:   cache.New(ttl, 2*ttl),
		metrics: m,
	}
}

func (r *CatalogRepository) SuggestedFor(ctx context.Context, t model.FindingType) ([]*model.CatalogTreatment, error) {
	key := string(t)
	if cached, found := r.cache.Get(key); found {
		r.metrics.SuggestionCache.WithLabelValues("hit").Inc()
		return cached.([]*model.CatalogTreatment), nil
	}
	r.metrics.SuggestionCache.WithLabelValues("miss").Inc()

	items, err := r.next.SuggestedFor(ctx, t)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, items, cache.DefaultExpiration)
	return items, nil
}

// Flush drops every cached list.
func (r *CatalogRepository) Flush() {
	r.cache.Flush()
}
