package catalog

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"assessd/internal/model"
	"assessd/internal/repository"
)

const (
	defaultCacheSize = 8
	defaultCacheTTL  = 5 * time.Minute
)

type cacheEntry struct {
	catalog  *model.Catalog
	storedAt time.Time
}

// Cached keeps recently loaded catalogs in memory. Entries older than the
// TTL are reloaded from the delegate on the next request.
type Cached struct {
	delegate repository.CatalogRepo
	cache    *lru.Cache[model.InstrumentType, cacheEntry]
	ttl      time.Duration
	now      func() time.Time
}

var _ repository.CatalogRepo = (*Cached)(nil)

// NewCached wraps delegate. Zero size or ttl fall back to defaults.
func NewCached(delegate repository.CatalogRepo, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache, err := lru.New[model.InstrumentType, cacheEntry](size)
	if err != nil {
		// Only returned for non-positive sizes, excluded above.
		panic(err)
	}
	return &Cached{delegate: delegate, cache: cache, ttl: ttl, now: time.Now}
}

func (c *Cached) Load(ctx context.Context, instrument model.InstrumentType) (*model.Catalog, error) {
	if e, ok := c.cache.Get(instrument); ok && c.now().Sub(e.storedAt) < c.ttl {
		return e.catalog, nil
	}
	cat, err := c.delegate.Load(ctx, instrument)
	if err != nil {
		return nil, err
	}
	c.cache.Add(instrument, cacheEntry{catalog: cat, storedAt: c.now()})
	return cat, nil
}

// Invalidate drops the cached catalog of instrument
func (c *Cached) Invalidate(instrument model.InstrumentType) {
	c.cache.Remove(instrument)
}
