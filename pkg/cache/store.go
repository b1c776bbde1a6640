package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

// ErrSchemaMismatch is returned by a generation whose backing table lacks an
// optional column. Save retries once without the optional fields.
var ErrSchemaMismatch = errors.New("cache schema mismatch")

// SaveOptions controls how an entry is persisted.
type SaveOptions struct {
	// SkipOptional omits cost, response time and the synthetic flag.
	SkipOptional bool
}

// Generation is one backing store of cached search results.
type Generation interface {
	Name() string
	// Lookup returns the newest successful, unexpired entry for key, or nil.
	Lookup(ctx context.Context, key models.CacheKey, now time.Time) (*models.CacheEntry, error)
	Save(ctx context.Context, entry models.CacheEntry, opts SaveOptions) error
	Close() error
}

// Clearer is implemented by generations that support deletion.
type Clearer interface {
	Clear(ctx context.Context, expiredOnly bool, now time.Time) (int64, error)
}

// Counter is implemented by generations that can report their size.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Store reads every generation and writes the newest one.
type Store struct {
	gens    []Generation
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewStore creates a Store over gens, ordered newest first.
func NewStore(gens []Generation, log *zap.Logger, m *metrics.Metrics) (*Store, error) {
	if len(gens) == 0 {
		return nil, errors.New("cache: at least one generation is required")
	}
	return &Store{
		gens:    gens,
		log:     logging.Named(log, "cache"),
		metrics: m,
		now:     time.Now,
	}, nil
}

// Lookup queries all generations concurrently and returns the entry with the
// latest CreatedAt. Ties go to the earlier (newer) generation. A failing
// generation is logged and treated as a miss.
func (s *Store) Lookup(ctx context.Context, key models.CacheKey) (*models.CacheEntry, bool) {
	now := s.now()
	found := make([]*models.CacheEntry, len(s.gens))

	var wg sync.WaitGroup
	for i, g := range s.gens {
		wg.Add(1)
		go func(i int, g Generation) {
			defer wg.Done()
			entry, err := g.Lookup(ctx, key, now)
			switch {
			case err != nil:
				s.log.Warn("cache lookup failed", zap.String("generation", g.Name()), zap.Error(err))
				s.metrics.CacheLookup(g.Name(), "error")
			case entry == nil || !entry.IsSuccessful || entry.Expired(now):
				s.metrics.CacheLookup(g.Name(), "miss")
			default:
				entry.Generation = g.Name()
				found[i] = entry
				s.metrics.CacheLookup(g.Name(), "hit")
			}
		}(i, g)
	}
	wg.Wait()

	var best *models.CacheEntry
	for _, e := range found {
		if e != nil && (best == nil || e.CreatedAt.After(best.CreatedAt)) {
			best = e
		}
	}
	if best == nil {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return best, true
}

// Save writes entry to the newest generation.
func (s *Store) Save(ctx context.Context, entry models.CacheEntry) error {
	g := s.gens[0]
	err := g.Save(ctx, entry, SaveOptions{})
	if errors.Is(err, ErrSchemaMismatch) {
		s.log.Info("retrying cache write without optional columns", zap.String("generation", g.Name()))
		s.metrics.CacheWrite("retried")
		err = g.Save(ctx, entry, SaveOptions{SkipOptional: true})
	}
	if err != nil {
		return fmt.Errorf("save to %s: %w", g.Name(), err)
	}
	return nil
}

// Stats returns per-generation entry counts plus process hit/miss counters.
func (s *Store) Stats(ctx context.Context) (models.CacheStats, error) {
	stats := models.CacheStats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
	for _, g := range s.gens {
		c, ok := g.(Counter)
		if !ok {
			stats.Generations = append(stats.Generations, models.GenerationStats{Name: g.Name(), Entries: -1})
			continue
		}
		n, err := c.Count(ctx)
		if err != nil {
			return models.CacheStats{}, fmt.Errorf("count %s: %w", g.Name(), err)
		}
		stats.Generations = append(stats.Generations, models.GenerationStats{Name: g.Name(), Entries: n})
	}
	return stats, nil
}

// Clear removes entries from every generation that supports it and returns the total removed.
func (s *Store) Clear(ctx context.Context, expiredOnly bool) (int64, error) {
	now := s.now()
	var total int64
	for _, g := range s.gens {
		c, ok := g.(Clearer)
		if !ok {
			continue
		}
		n, err := c.Clear(ctx, expiredOnly, now)
		if err != nil {
			return total, fmt.Errorf("clear %s: %w", g.Name(), err)
		}
		total += n
	}
	return total, nil
}

// Close releases every generation.
func (s *Store) Close() error {
	var errs []error
	for _, g := range s.gens {
		if err := g.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", g.Name(), err))
		}
	}
	return errors.Join(errs...)
}
