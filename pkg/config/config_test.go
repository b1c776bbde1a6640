package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Listen)
	}
	if cfg.Cache.TTL != 7*24*time.Hour {
		t.Errorf("expected 7d TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Fallback.Threshold != 20 {
		t.Errorf("expected threshold 20, got %d", cfg.Fallback.Threshold)
	}
	if cfg.Fallback.DefaultLocationCode != 2840 {
		t.Errorf("expected default location 2840, got %d", cfg.Fallback.DefaultLocationCode)
	}
	if cfg.Provider.AllowSyntheticFallback {
		t.Error("synthetic fallback must default to off")
	}
}

func TestLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TEST_VENDOR_DB", "postgres://u:p@localhost/vendors")
	t.Setenv("DATAFORSEO_LOGIN", "login@example.com")
	t.Setenv("DATAFORSEO_PASSWORD", "secret")
	t.Setenv("ALLOW_SYNTHETIC_FALLBACK", "true")

	content := `
listen: ":9090"
db_path: "test.db"
vendor_db:
  url: ${TEST_VENDOR_DB}
cache:
  ttl: 720h
  generations:
    - name: search_cache
    - name: vendor_cache
      driver: postgres
      dsn: postgres://u:p@localhost/cache
      migrate: false
sources:
  timeout: 2s
locations:
  - city: Seattle
    state: WA
    code: 1027744
categories:
  - pattern: coffee cart
    category: beverage-carts
budget:
  enabled: true
  policies:
    - max_cost: 25.5
      period: monthly
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.VendorDB.URL != "postgres://u:p@localhost/vendors" {
		t.Errorf("env var not expanded: got %s", cfg.VendorDB.URL)
	}
	if cfg.Cache.TTL != 30*24*time.Hour {
		t.Errorf("expected 30d TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Provider.Login != "login@example.com" || cfg.Provider.Password != "secret" {
		t.Error("provider credentials not taken from environment")
	}
	if !cfg.Provider.AllowSyntheticFallback {
		t.Error("expected synthetic fallback enabled from environment")
	}
	if len(cfg.Cache.Generations) != 2 {
		t.Fatalf("expected 2 generations, got %d", len(cfg.Cache.Generations))
	}
	first := cfg.Cache.Generations[0]
	if first.Driver != "sqlite" || first.DSN != "test.db" || first.Table != "search_cache" {
		t.Errorf("unexpected defaults for first generation: %+v", first)
	}
	if cfg.Cache.Generations[1].ShouldMigrate() {
		t.Error("expected legacy generation not to migrate")
	}
	if cfg.Locations[0].Code != 1027744 {
		t.Errorf("expected location code 1027744, got %d", cfg.Locations[0].Code)
	}
	if cfg.Categories[0].Category != "beverage-carts" {
		t.Errorf("unexpected category rule: %+v", cfg.Categories[0])
	}
	if len(cfg.Budget.Policies) != 1 || cfg.Budget.Policies[0].MaxCost != 25.5 {
		t.Errorf("unexpected budget policies: %+v", cfg.Budget.Policies)
	}
	if cfg.SearchLog.DBPath != "test.db" {
		t.Errorf("expected search log to share db_path, got %s", cfg.SearchLog.DBPath)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Cache.Generations) != 1 {
		t.Errorf("expected a default generation, got %d", len(cfg.Cache.Generations))
	}
}

func TestLoadBadSyntheticFlag(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ALLOW_SYNTHETIC_FALLBACK", "maybe")
	if _, err := Load(""); err == nil {
		t.Error("expected error for unparsable flag")
	}
}

func TestLoadMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
