package status

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"signflow/internal/lifecycle/metrics"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	dErrors "signflow/pkg/domain-errors"
)

const defaultCatalogTTL = time.Minute

// Catalog serves the status catalog from an in-process cache. Concurrent
// reloads collapse into one store read.
type Catalog struct {
	src     ports.CatalogStore
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics

	group singleflight.Group

	mu       sync.RWMutex
	entries  models.Catalog
	loadedAt time.Time
}

type CatalogOption func(*Catalog)

func WithCatalogTTL(ttl time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.ttl = ttl
	}
}

func WithCatalogMetrics(m *metrics.Metrics) CatalogOption {
	return func(c *Catalog) {
		c.metrics = m
	}
}

func withCatalogClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		c.now = now
	}
}

// NewCatalog builds a cached catalog over src. A zero TTL uses one minute;
// a negative TTL disables caching.
func NewCatalog(src ports.CatalogStore, opts ...CatalogOption) *Catalog {
	c := &Catalog{src: src, ttl: defaultCatalogTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns entries ordered by sequence number, then code.
func (c *Catalog) List(ctx context.Context) (models.Catalog, error) {
	return c.LoadWith(ctx, c.src)
}

// TotalSteps is the catalog size, never less than 1.
func (c *Catalog) TotalSteps(ctx context.Context) (int, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	return entries.TotalSteps(), nil
}

func (c *Catalog) Contains(ctx context.Context, code string) (bool, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return false, err
	}
	return entries.Contains(code), nil
}

// Invalidate drops the cached entries.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.loadedAt = time.Time{}
}

// LoadWith returns the cached catalog, reloading it through src when stale.
// Inside a unit of work pass the transaction's CatalogStore.
func (c *Catalog) LoadWith(ctx context.Context, src ports.CatalogStore) (models.Catalog, error) {
	if entries, ok := c.cached(); ok {
		return entries, nil
	}
	v, err, _ := c.group.Do("catalog", func() (any, error) {
		if entries, ok := c.cached(); ok {
			return entries, nil
		}
		rows, err := src.ListCatalog(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load status catalog")
		}
		entries := models.NewCatalog(rows)
		c.metrics.IncCatalogLoad()

		c.mu.Lock()
		c.entries = entries
		c.loadedAt = c.now()
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(models.Catalog), nil
}

func (c *Catalog) cached() (models.Catalog, bool) {
	if c.ttl < 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entries == nil || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return c.entries, true
}
