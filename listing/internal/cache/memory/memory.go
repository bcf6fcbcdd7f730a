package memory

import (
	"context"
	"sync"
	"time"

	"tourbook/listing/internal/cache"
	"tourbook/listing/pkg/model"
)

type entry struct {
	agg     model.Aggregate
	expires time.Time
}

// Cache defines an in-process aggregate cache.
type Cache struct {
	sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	data     map[string]entry
	versions map[string]int64
}

// New creates a new memory cache. A zero ttl keeps entries forever.
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, data: map[string]entry{}, versions: map[string]int64{}}
}

// Get returns the cached aggregate of ref.
func (c *Cache) Get(_ context.Context, ref model.SubjectRef) (model.Aggregate, error) {
	c.RLock()
	defer c.RUnlock()
	e, ok := c.data[cache.AggregateKey(ref)]
	if !ok || (!e.expires.IsZero() && c.now().After(e.expires)) {
		return model.Aggregate{}, cache.ErrNotFound
	}
	return copyAggregate(e.agg), nil
}

// Version returns the invalidation counter of ref.
func (c *Cache) Version(_ context.Context, ref model.SubjectRef) (int64, error) {
	c.RLock()
	defer c.RUnlock()
	return c.versions[cache.VersionKey(ref)], nil
}

// Fill stores the aggregate of ref unless ref was invalidated after
// version was read. It reports whether the entry was stored.
func (c *Cache) Fill(_ context.Context, ref model.SubjectRef, agg model.Aggregate, version int64) (bool, error) {
	c.Lock()
	defer c.Unlock()
	if c.versions[cache.VersionKey(ref)] != version {
		return false, nil
	}
	e := entry{agg: copyAggregate(agg)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.data[cache.AggregateKey(ref)] = e
	return true, nil
}

// Invalidate evicts the aggregate of ref and rejects fills started
// before the call.
func (c *Cache) Invalidate(_ context.Context, ref model.SubjectRef) error {
	c.Lock()
	defer c.Unlock()
	delete(c.data, cache.AggregateKey(ref))
	c.versions[cache.VersionKey(ref)]++
	return nil
}

func copyAggregate(agg model.Aggregate) model.Aggregate {
	if agg.AverageRating != nil {
		v := *agg.AverageRating
		agg.AverageRating = &v
	}
	return agg
}
