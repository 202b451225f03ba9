package books

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/inkstream/bookqa/internal/domain"
)

// catalog is the consumer interface the cache decorates.
type catalog interface {
	Get(ctx context.Context, id string) (domain.Book, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// CachedCatalog fronts book lookups with an in-process TTL cache. The query
// path checks book existence on every request; books change only on
// re-ingestion, so short-lived positive answers are safe.
type CachedCatalog struct {
	inner catalog
	cache *gocache.Cache
}

// NewCachedCatalog wraps a catalog with a TTL cache.
func NewCachedCatalog(inner catalog, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Exists answers from cache when possible. Only positive answers are cached:
// a miss must stay visible until the book is actually ingested.
func (c *CachedCatalog) Exists(ctx context.Context, id string) (bool, error) {
	if _, ok := c.cache.Get(existsKey(id)); ok {
		return true, nil
	}

	exists, err := c.inner.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		c.cache.SetDefault(existsKey(id), struct{}{})
	}
	return exists, nil
}

// Get delegates to the inner catalog. Full book bodies are too large to keep
// in process memory, so only existence is cached.
func (c *CachedCatalog) Get(ctx context.Context, id string) (domain.Book, error) {
	return c.inner.Get(ctx, id)
}

// Invalidate drops the cached existence answer, called on re-ingestion.
func (c *CachedCatalog) Invalidate(id string) {
	c.cache.Delete(existsKey(id))
}

func existsKey(id string) string { return "exists:" + id }
