package fallback

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pario-ai/vendorsearch/pkg/budget"
	"github.com/pario-ai/vendorsearch/pkg/cache"
	"github.com/pario-ai/vendorsearch/pkg/cache/sqlstore"
	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/provider"
	"github.com/pario-ai/vendorsearch/pkg/tracker"
)

type countingProvider struct {
	configured bool
	items      int
	cost       float64
	err        error
	calls      atomic.Int32
	lastQuery  provider.Query
}

func (p *countingProvider) Configured() bool { return p.configured }

func (p *countingProvider) Search(_ context.Context, q provider.Query) (provider.Result, error) {
	p.calls.Add(1)
	p.lastQuery = q
	if p.err != nil {
		return provider.Result{Elapsed: time.Millisecond}, p.err
	}
	res := provider.Result{Cost: p.cost, Elapsed: 25 * time.Millisecond}
	for i := 0; i < p.items; i++ {
		res.Items = append(res.Items, models.ProviderItem{Type: "maps_search", Title: fmt.Sprintf("Provider %d", i), PlaceID: fmt.Sprintf("p%d", i)})
	}
	return res, nil
}

type fixedLocations int

func (f fixedLocations) Resolve(context.Context, string, string) int { return int(f) }

type memQueue struct {
	mu      sync.Mutex
	entries []models.CacheEntry
}

func (q *memQueue) Enqueue(e models.CacheEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return true
}

type staticBudget struct{ err error }

func (b staticBudget) Check(context.Context) error { return b.err }

func localListings(n int) []models.VendorListing {
	out := make([]models.VendorListing, n)
	for i := range out {
		out[i] = models.VendorListing{Title: fmt.Sprintf("Local %d", i), ExternalID: fmt.Sprintf("vendor_%d", i), Images: []string{}, SourceKind: models.KindGenericRecord}
	}
	return out
}

var seattleReq = models.SearchRequest{Keyword: "coffee cart", City: "Seattle", State: "WA", Page: 1, Limit: 30}

const seattleKey = models.CacheKey("coffee cart|seattle,wa|nosub")

func TestSufficientLocalSkipsProvider(t *testing.T) {
	p := &countingProvider{configured: true, items: 8, cost: 0.05}
	q := &memQueue{}
	c := New(Options{Provider: p, Writer: q, Locations: fixedLocations(1), Logger: zaptest.NewLogger(t)})

	local := localListings(20)
	d, err := c.DecideAndFetch(context.Background(), seattleReq, seattleKey, local)
	if err != nil {
		t.Fatal(err)
	}
	if p.calls.Load() != 0 {
		t.Errorf("expected zero provider calls, got %d", p.calls.Load())
	}
	if d.Cost != 0 || d.Source != models.SourceDatabase || len(d.Listings) != 20 {
		t.Errorf("unexpected decision: cost=%v source=%s n=%d", d.Cost, d.Source, len(d.Listings))
	}
	for i := range local {
		if d.Listings[i].ExternalID != local[i].ExternalID {
			t.Fatal("local listings must be returned unchanged")
		}
	}
	if len(q.entries) != 0 {
		t.Error("local results are not cached unless persist_local is set")
	}
}

func TestPersistLocal(t *testing.T) {
	q := &memQueue{}
	c := New(Options{Provider: &countingProvider{configured: true}, Writer: q, PersistLocal: true, Logger: zaptest.NewLogger(t)})

	if _, err := c.DecideAndFetch(context.Background(), seattleReq, seattleKey, localListings(25)); err != nil {
		t.Fatal(err)
	}
	if len(q.entries) != 1 || q.entries[0].ResultCount != 25 || q.entries[0].Cost != 0 {
		t.Errorf("expected a zero-cost cache entry, got %+v", q.entries)
	}
}

func TestInsufficientLocalMergesProvider(t *testing.T) {
	p := &countingProvider{configured: true, items: 8, cost: 0.05}
	q := &memQueue{}
	c := New(Options{Provider: p, Writer: q, Locations: fixedLocations(1027744), TTL: 30 * 24 * time.Hour, Logger: zaptest.NewLogger(t)})

	d, err := c.DecideAndFetch(context.Background(), seattleReq, seattleKey, localListings(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Listings) != 11 || d.Cost != 0.05 || d.Source != models.SourceCombined || !d.ProviderCalled {
		t.Errorf("unexpected decision: n=%d cost=%v source=%s", len(d.Listings), d.Cost, d.Source)
	}
	if d.Listings[0].ExternalID != "vendor_0" || d.Listings[3].SourceKind != models.KindExternalProvider {
		t.Error("local listings must precede provider listings")
	}
	if p.lastQuery.Keyword != "coffee cart Seattle WA" || p.lastQuery.LocationCode != 1027744 {
		t.Errorf("unexpected provider query: %+v", p.lastQuery)
	}

	if len(q.entries) != 1 {
		t.Fatalf("expected one scheduled cache write, got %d", len(q.entries))
	}
	e := q.entries[0]
	if e.Key != seattleKey || e.ResultCount != 11 || e.Cost != 0.05 || e.APIResponseTimeMs != 25 {
		t.Errorf("unexpected cache entry: %+v", e)
	}
	if e.ExpiresAt.Sub(e.CreatedAt) != 30*24*time.Hour {
		t.Errorf("expected 30 day ttl, got %v", e.ExpiresAt.Sub(e.CreatedAt))
	}
}

func TestProviderFailureIsTerminal(t *testing.T) {
	p := &countingProvider{configured: true, err: &provider.StatusError{Code: 500, Body: "boom"}}
	q := &memQueue{}
	c := New(Options{Provider: p, Writer: q, Logger: zaptest.NewLogger(t)})

	_, err := c.DecideAndFetch(context.Background(), seattleReq, seattleKey, localListings(3))
	if !errors.Is(err, provider.ErrProviderFailed) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if len(q.entries) != 0 {
		t.Error("failed searches must not be cached")
	}
}

func TestMissingCredentials(t *testing.T) {
	t.Run("synthetic disabled", func(t *testing.T) {
		q := &memQueue{}
		c := New(Options{Provider: &countingProvider{}, Writer: q, Logger: zaptest.NewLogger(t)})

		d, err := c.DecideAndFetch(context.Background(), seattleReq, seattleKey, localListings(3))
		if err != nil {
			t.Fatal(err)
		}
		if d.Source != models.SourceDatabase || len(d.Listings) != 3 || len(q.entries) != 0 {
			t.Errorf("expected local-only result, got source=%s n=%d writes=%d", d.Source, len(d.Listings), len(q.entries))
		}
	})

	t.Run("synthetic enabled", func(t *testing.T) {
		p := &countingProvider{}
		q := &memQueue{}
		c := New(Options{Provider: p, Writer: q, AllowSynthetic: true, Logger: zaptest.NewLogger(t)})

		d, err := c.DecideAndFetch(context.Background(), seattleReq, seattleKey, localListings(3))
		if err != nil {
			t.Fatal(err)
		}
		if p.calls.Load() != 0 {
			t.Error("provider must not be called without credentials")
		}
		if d.Source != models.SourceExternalFallback || len(d.Listings) != 5 || !d.Listings[4].Synthetic {
			t.Errorf("unexpected decision: source=%s n=%d", d.Source, len(d.Listings))
		}
		if len(q.entries) != 1 || !q.entries[0].Synthetic {
			t.Errorf("expected synthetic cache entry, got %+v", q.entries)
		}
	})
}

func TestBudgetExceededDegrades(t *testing.T) {
	p := &countingProvider{configured: true, items: 8}
	c := New(Options{Provider: p, Budget: staticBudget{err: budget.ErrBudgetExceeded}, Logger: zaptest.NewLogger(t)})

	d, err := c.DecideAndFetch(context.Background(), seattleReq, seattleKey, localListings(2))
	if err != nil {
		t.Fatal(err)
	}
	if p.calls.Load() != 0 || d.Source != models.SourceDatabase || len(d.Listings) != 2 {
		t.Errorf("expected local-only result, got calls=%d source=%s", p.calls.Load(), d.Source)
	}
}

func TestSpendIsRecorded(t *testing.T) {
	tr, err := tracker.New(filepath.Join(t.TempDir(), "spend.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	ok := New(Options{Provider: &countingProvider{configured: true, items: 2, cost: 0.05}, Spend: tr, Logger: zaptest.NewLogger(t)})
	if _, err := ok.DecideAndFetch(context.Background(), seattleReq, seattleKey, nil); err != nil {
		t.Fatal(err)
	}
	failing := New(Options{Provider: &countingProvider{configured: true, err: provider.ErrProviderFailed}, Spend: tr, Logger: zaptest.NewLogger(t)})
	_, _ = failing.DecideAndFetch(context.Background(), seattleReq, seattleKey, nil)

	records, err := tr.Recent(context.Background(), time.Now().Add(-time.Minute), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 spend records, got %d", len(records))
	}
	statuses := map[models.SpendStatus]int{}
	for _, r := range records {
		statuses[r.Status]++
	}
	if statuses[models.SpendOK] != 1 || statuses[models.SpendFailed] != 1 {
		t.Errorf("unexpected statuses: %v", statuses)
	}
}

// The cache write is scheduled on a real queue and store, so the derived key
// is eventually readable.
func TestCacheWriteEventuallyPersisted(t *testing.T) {
	gen, err := sqlstore.Open(sqlstore.Options{
		Table:   "search_cache",
		DSN:     filepath.Join(t.TempDir(), "cache.db"),
		Migrate: true,
		Logger:  zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	store, err := cache.NewStore([]cache.Generation{gen}, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	writer := cache.NewWriter(store, cache.WriterOptions{Logger: zaptest.NewLogger(t)})
	defer writer.Close()

	c := New(Options{
		Provider:  &countingProvider{configured: true, items: 8, cost: 0.05},
		Writer:    writer,
		Locations: fixedLocations(2840),
		Logger:    zaptest.NewLogger(t),
	})
	key := cache.DeriveKey(seattleReq)
	if _, err := c.DecideAndFetch(context.Background(), seattleReq, key, localListings(3)); err != nil {
		t.Fatal(err)
	}

	writer.Drain()
	entry, ok := store.Lookup(context.Background(), key)
	if !ok {
		t.Fatal("expected cache entry for derived key")
	}
	if entry.ResultCount != 11 || len(entry.Results) != 11 {
		t.Errorf("expected 11 cached results, got %d/%d", entry.ResultCount, len(entry.Results))
	}
}
