package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

// memGeneration is an in-memory Generation used to exercise Store.
type memGeneration struct {
	name string

	mu        sync.Mutex
	entries   map[models.CacheKey][]models.CacheEntry
	lookupErr error
	strict    bool // rejects optional fields like a legacy table
	saveCalls []SaveOptions
	closed    bool
}

func newMemGeneration(name string) *memGeneration {
	return &memGeneration{name: name, entries: make(map[models.CacheKey][]models.CacheEntry)}
}

func (g *memGeneration) Name() string { return g.name }

func (g *memGeneration) Lookup(_ context.Context, key models.CacheKey, now time.Time) (*models.CacheEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lookupErr != nil {
		return nil, g.lookupErr
	}
	var best *models.CacheEntry
	for i := range g.entries[key] {
		e := g.entries[key][i]
		if !e.IsSuccessful || e.Expired(now) {
			continue
		}
		if best == nil || e.CreatedAt.After(best.CreatedAt) {
			best = &e
		}
	}
	return best, nil
}

func (g *memGeneration) Save(_ context.Context, entry models.CacheEntry, opts SaveOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saveCalls = append(g.saveCalls, opts)
	if g.strict && !opts.SkipOptional {
		return ErrSchemaMismatch
	}
	if opts.SkipOptional {
		entry.Cost = 0
		entry.APIResponseTimeMs = 0
		entry.Synthetic = false
	}
	g.entries[entry.Key] = append(g.entries[entry.Key], entry)
	return nil
}

func (g *memGeneration) Count(context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int64
	for _, es := range g.entries {
		n += int64(len(es))
	}
	return n, nil
}

func (g *memGeneration) Close() error {
	g.closed = true
	return nil
}

func (g *memGeneration) put(e models.CacheEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[e.Key] = append(g.entries[e.Key], e)
}

func entryAt(key models.CacheKey, created time.Time, ttl time.Duration, title string) models.CacheEntry {
	return models.CacheEntry{
		Key:          key,
		Results:      []models.VendorListing{{Title: title, Images: []string{}}},
		ResultCount:  1,
		CreatedAt:    created,
		ExpiresAt:    created.Add(ttl),
		IsSuccessful: true,
	}
}

func newTestStore(t *testing.T, gens ...Generation) *Store {
	t.Helper()
	s, err := NewStore(gens, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewStoreRequiresGeneration(t *testing.T) {
	if _, err := NewStore(nil, nil, nil); err == nil {
		t.Error("expected error for empty generation list")
	}
}

func TestLookupPrefersLatestCreatedAt(t *testing.T) {
	newer, legacy := newMemGeneration("search_cache"), newMemGeneration("vendor_cache")
	s := newTestStore(t, newer, legacy)
	key := models.CacheKey("dj|austin,tx|nosub")
	now := time.Now()

	newer.put(entryAt(key, now.Add(-2*time.Hour), 24*time.Hour, "from newer"))
	legacy.put(entryAt(key, now.Add(-time.Hour), 24*time.Hour, "from legacy"))

	got, ok := s.Lookup(context.Background(), key)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Results[0].Title != "from legacy" || got.Generation != "vendor_cache" {
		t.Errorf("expected later legacy entry to win, got %q from %s", got.Results[0].Title, got.Generation)
	}
}

func TestLookupTieGoesToNewerGeneration(t *testing.T) {
	newer, legacy := newMemGeneration("search_cache"), newMemGeneration("vendor_cache")
	s := newTestStore(t, newer, legacy)
	key := models.CacheKey("dj|austin,tx|nosub")
	created := time.Now().Add(-time.Minute)

	legacy.put(entryAt(key, created, time.Hour, "legacy"))
	newer.put(entryAt(key, created, time.Hour, "newer"))

	got, ok := s.Lookup(context.Background(), key)
	if !ok || got.Generation != "search_cache" {
		t.Fatalf("expected tie to resolve to newer generation, got %+v", got)
	}
}

func TestLookupHonorsLegacyOnly(t *testing.T) {
	newer, legacy := newMemGeneration("search_cache"), newMemGeneration("vendor_cache")
	s := newTestStore(t, newer, legacy)
	key := models.CacheKey("florist|boise,id|nosub")
	legacy.put(entryAt(key, time.Now(), time.Hour, "legacy"))

	if _, ok := s.Lookup(context.Background(), key); !ok {
		t.Error("expected legacy-only entry to be honored")
	}
}

func TestLookupSkipsExpired(t *testing.T) {
	gen := newMemGeneration("search_cache")
	s := newTestStore(t, gen)
	key := models.CacheKey("cake|reno,nv|nosub")

	e := entryAt(key, time.Now().Add(-time.Hour), time.Hour-time.Second, "stale")
	gen.put(e)

	if _, ok := s.Lookup(context.Background(), key); ok {
		t.Error("expected expired entry to be absent")
	}
	if stats, _ := s.Stats(context.Background()); stats.Misses != 1 || stats.Hits != 0 {
		t.Errorf("unexpected counters: %+v", stats)
	}
}

func TestLookupErrorIsMiss(t *testing.T) {
	broken, healthy := newMemGeneration("search_cache"), newMemGeneration("vendor_cache")
	broken.lookupErr = errors.New("connection refused")
	s := newTestStore(t, broken, healthy)
	key := models.CacheKey("venue|napa,ca|nosub")
	healthy.put(entryAt(key, time.Now(), time.Hour, "ok"))

	got, ok := s.Lookup(context.Background(), key)
	if !ok || got.Generation != "vendor_cache" {
		t.Errorf("expected fallback to healthy generation, got %v %v", got, ok)
	}
}

func TestSaveWritesNewestGeneration(t *testing.T) {
	newer, legacy := newMemGeneration("search_cache"), newMemGeneration("vendor_cache")
	s := newTestStore(t, newer, legacy)
	key := models.CacheKey("band|tulsa,ok|nosub")

	if err := s.Save(context.Background(), entryAt(key, time.Now(), time.Hour, "x")); err != nil {
		t.Fatal(err)
	}
	if n, _ := newer.Count(context.Background()); n != 1 {
		t.Errorf("expected 1 entry in newest generation, got %d", n)
	}
	if n, _ := legacy.Count(context.Background()); n != 0 {
		t.Errorf("expected legacy generation untouched, got %d", n)
	}
}

func TestSaveRetriesWithoutOptionalFields(t *testing.T) {
	gen := newMemGeneration("vendor_cache")
	gen.strict = true
	s := newTestStore(t, gen)
	key := models.CacheKey("caterer|provo,ut|nosub")

	e := entryAt(key, time.Now(), time.Hour, "x")
	e.Cost = 0.05
	if err := s.Save(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if len(gen.saveCalls) != 2 || !gen.saveCalls[1].SkipOptional {
		t.Fatalf("expected one retry without optional fields, got %+v", gen.saveCalls)
	}
	got, ok := s.Lookup(context.Background(), key)
	if !ok || got.Cost != 0 {
		t.Errorf("expected stripped entry to be readable, got %+v", got)
	}
}

func TestStatsAndClose(t *testing.T) {
	gen := newMemGeneration("search_cache")
	s := newTestStore(t, gen)
	gen.put(entryAt("a|b,c|nosub", time.Now(), time.Hour, "x"))

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Generations) != 1 || stats.Generations[0].Entries != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !gen.closed {
		t.Error("expected generation to be closed")
	}
}
