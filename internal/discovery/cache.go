package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/station-telemetry-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Cache memoizes a discovery result for a bounded TTL so every poll cycle
// does not re-scan the ID range. Reads and writes are atomic with respect to
// the TTL check: timestamp and value are always taken under the same lock.
type Cache struct {
	mu        sync.Mutex
	ids       []int
	populated bool
	fetchedAt time.Time

	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCache creates a discovery cache with the given TTL. Pass a fake clock in
// tests to control expiry.
func NewCache(ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Cache {
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}
}

// GetOrPopulate returns the cached ID set when fresh, otherwise runs discover
// and caches its result. A failed discover is not cached, so the next cycle
// retries. Holding the lock across discover also collapses concurrent
// populate attempts into one upstream scan.
func (c *Cache) GetOrPopulate(ctx context.Context, discover func(ctx context.Context) ([]int, error)) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.populated && c.clock.Since(c.fetchedAt) < c.ttl {
		c.metrics.DiscoveryCache.WithLabelValues("hit").Inc()
		return copyIDs(c.ids), nil
	}
	c.metrics.DiscoveryCache.WithLabelValues("miss").Inc()

	ids, err := discover(ctx)
	if err != nil {
		return nil, err
	}

	c.ids = copyIDs(ids)
	c.populated = true
	c.fetchedAt = c.clock.Now()
	return copyIDs(ids), nil
}

// Invalidate drops the cached result; the next GetOrPopulate rediscovers.
// Wired to the explicit rescan request.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = nil
	c.populated = false
	c.fetchedAt = time.Time{}
}

func copyIDs(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}
