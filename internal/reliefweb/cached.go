package reliefweb

import (
	"context"

	"github.com/FranksOps/reliefscope/internal/cache"
	"github.com/FranksOps/reliefscope/internal/metrics"
)

// QueryKey identifies one fetch.
type QueryKey struct {
	Query string
	Limit int
}

type cachedSource struct {
	src   Source
	cache cache.Cache[QueryKey, []RawReport]
}

// Cached wraps src so that successful fetches are memoized per (query, limit).
// Failed fetches are never stored.
func Cached(src Source, c cache.Cache[QueryKey, []RawReport]) Source {
	return &cachedSource{src: src, cache: c}
}

func (s *cachedSource) Fetch(ctx context.Context, query string, limit int) ([]RawReport, error) {
	if limit < 1 {
		return []RawReport{}, ErrInvalidLimit
	}
	key := QueryKey{Query: query, Limit: limit}
	if reports, ok := s.cache.Get(key); ok {
		metrics.RecordCacheLookup(true)
		return reports, nil
	}
	metrics.RecordCacheLookup(false)

	reports, err := s.src.Fetch(ctx, query, limit)
	if err != nil {
		return reports, err
	}
	s.cache.Put(key, reports)
	return reports, nil
}
