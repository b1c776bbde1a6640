package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/pario-ai/vendorsearch/pkg/config"
	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/searchlog"
)

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	for _, k := range []string{"DATAFORSEO_LOGIN", "DATAFORSEO_PASSWORD", "VENDOR_DATABASE_URL", "ALLOW_SYNTHETIC_FALLBACK"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "vendorsearch.yaml")
	body := fmt.Sprintf("db_path: %s\n%s", filepath.Join(dir, "vs.db"), extra)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestOpenAppSyntheticFallback(t *testing.T) {
	cfg := testConfig(t, "provider:\n  allow_synthetic_fallback: true\n")
	ctx := context.Background()

	a, err := openApp(ctx, cfg, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	req := models.SearchRequest{Keyword: "florist", City: "Boise", State: "ID", Page: 1, Limit: 30}
	resp, err := a.engine.Search(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Source != models.SourceExternalFallback || resp.TotalResults != 2 {
		t.Fatalf("expected 2 synthetic results, got %s/%d", resp.Source, resp.TotalResults)
	}

	a.writer.Drain()
	resp, err = a.engine.Search(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Source != models.SourceCache {
		t.Errorf("expected second search from cache, got %s", resp.Source)
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	sl, err := searchlog.New(cfg.SearchLog.DBPath, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sl.Close()
	entries, err := sl.Query(ctx, models.SearchLogQueryOpts{Keyword: "florist"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected both searches logged, got %d", len(entries))
	}
}

func TestOpenAppWithoutCredentialsServesEmptyLocal(t *testing.T) {
	cfg := testConfig(t, "search_log:\n  enabled: false\n")
	a, err := openApp(context.Background(), cfg, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.searchLog != nil || a.budget != nil {
		t.Error("disabled components must stay nil")
	}
	resp, err := a.engine.Search(context.Background(), models.SearchRequest{Keyword: "dj", City: "Austin", State: "TX", Page: 1, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Source != models.SourceDatabase || resp.TotalResults != 0 || resp.Results == nil {
		t.Errorf("expected empty database response, got %+v", resp)
	}
}

func TestOpenCacheStats(t *testing.T) {
	cfg := testConfig(t, "")
	store, err := openCache(context.Background(), cfg, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Generations) != 1 || stats.Generations[0].Name != "search_cache" || stats.Generations[0].Entries != 0 {
		t.Errorf("expected one empty generation, got %+v", stats)
	}
}

func TestFormatSearchResponse(t *testing.T) {
	out := formatSearchResponse(models.SearchResponse{
		Results: []models.VendorListing{
			{Title: "Bloom Room", SourceKind: models.KindBusinessDirectory, City: "Boise", ExternalID: "ChIJ1", Rating: &models.Rating{Value: 4.5, Count: 12}},
			{Title: "florist in Boise, ID", SourceKind: models.KindExternalProvider, Synthetic: true},
		},
		TotalResults: 7,
		Source:       models.SourceCombined,
		Page:         2,
		Limit:        2,
	})
	for _, want := range []string{"Source: combined", "3  Bloom Room", "4.5 (12)", "[synthetic]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if got := formatSearchResponse(models.SearchResponse{Source: models.SourceDatabase, Page: 1, Limit: 30}); !strings.Contains(got, "No results.") {
		t.Errorf("unexpected empty output: %s", got)
	}
}
