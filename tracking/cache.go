package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/models"
)

// Cache holds the freshest report per throttle key and the persist gate for
// that key. MemoryCache serves a single instance; rdx.LocationCache shares
// both across instances.
type Cache interface {
	// Put keeps whichever of loc and the cached entry is newer.
	Put(ctx context.Context, key string, loc models.DriverLocation) error
	Get(ctx context.Context, key string) (models.DriverLocation, bool, error)
	// ClaimPersist reports whether the caller should persist now: true when
	// no persist happened for key within interval. A true result starts a
	// new interval.
	ClaimPersist(ctx context.Context, key string, now time.Time, interval time.Duration) (bool, error)
	// ReleasePersist forgets the last persist so the next report writes.
	ReleasePersist(ctx context.Context, key string) error
	// Sweep drops entries last reported before cutoff and returns how many
	// remain.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

type cacheEntry struct {
	loc         models.DriverLocation
	lastPersist time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*cacheEntry)}
}

func (c *MemoryCache) Put(_ context.Context, key string, loc models.DriverLocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	if loc.UpdatedAt.Before(e.loc.UpdatedAt) {
		return nil
	}
	e.loc = loc
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (models.DriverLocation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return models.DriverLocation{}, false, nil
	}
	return e.loc, true, nil
}

func (c *MemoryCache) ClaimPersist(_ context.Context, key string, now time.Time, interval time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	if !e.lastPersist.IsZero() && now.Sub(e.lastPersist) < interval {
		return false, nil
	}
	e.lastPersist = now
	return true, nil
}

func (c *MemoryCache) ReleasePersist(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.lastPersist = time.Time{}
	}
	return nil
}

func (c *MemoryCache) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.loc.UpdatedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
	return len(c.entries), nil
}
