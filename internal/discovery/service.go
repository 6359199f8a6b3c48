package discovery

import "context"

// Service fronts the prober with the TTL cache. It is what the aggregation
// pipeline sees as its station source.
type Service struct {
	prober *Prober
	cache  *Cache
}

func NewService(prober *Prober, cache *Cache) *Service {
	return &Service{prober: prober, cache: cache}
}

// Discover returns the cached station ID set, probing upstream when the
// cache is cold or expired.
func (s *Service) Discover(ctx context.Context) ([]int, error) {
	return s.cache.GetOrPopulate(ctx, s.prober.Discover)
}

// Invalidate drops the cached station set so the next cycle probes afresh.
func (s *Service) Invalidate() {
	s.cache.Invalidate()
}
