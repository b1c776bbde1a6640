package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Config holds all vendorsearch configuration.
type Config struct {
	Listen     string                 `yaml:"listen"`
	DBPath     string                 `yaml:"db_path"`
	Log        logging.Config         `yaml:"log"`
	VendorDB   VendorDBConfig         `yaml:"vendor_db"`
	Cache      CacheConfig            `yaml:"cache"`
	Sources    SourcesConfig          `yaml:"sources"`
	Provider   ProviderConfig         `yaml:"provider"`
	Fallback   FallbackConfig         `yaml:"fallback"`
	Locations  []models.LocationEntry `yaml:"locations"`
	Categories []models.CategoryRule  `yaml:"categories"`
	Budget     BudgetConfig           `yaml:"budget"`
	SearchLog  SearchLogConfig        `yaml:"search_log"`
}

// VendorDBConfig points at the Postgres database holding the vendor collections.
type VendorDBConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// CacheConfig controls the search cache and its background writer.
type CacheConfig struct {
	TTL          time.Duration      `yaml:"ttl"`
	PersistLocal bool               `yaml:"persist_local"`
	QueueSize    int                `yaml:"queue_size"`
	Workers      int                `yaml:"workers"`
	WriteTimeout time.Duration      `yaml:"write_timeout"`
	Generations  []GenerationConfig `yaml:"generations"`
}

// GenerationConfig defines one cache generation. Generations are listed newest first;
// only the first one receives writes.
// Driver is "sqlite" (default), "postgres" or "redis".
type GenerationConfig struct {
	Name     string `yaml:"name"`
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
	Migrate  *bool  `yaml:"migrate"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// ShouldMigrate reports whether the generation's schema is owned by this service.
func (g GenerationConfig) ShouldMigrate() bool {
	return g.Migrate == nil || *g.Migrate
}

// SourcesConfig controls the internal source fan-out.
type SourcesConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	SocialLimit    int           `yaml:"social_limit"`
	DirectoryLimit int           `yaml:"directory_limit"`
	GenericLimit   int           `yaml:"generic_limit"`
}

// ProviderConfig defines the paid external search provider.
type ProviderConfig struct {
	URL                    string        `yaml:"url"`
	Login                  string        `yaml:"login"`
	Password               string        `yaml:"password"`
	Timeout                time.Duration `yaml:"timeout"`
	Depth                  int           `yaml:"depth"`
	Language               string        `yaml:"language"`
	Device                 string        `yaml:"device"`
	OS                     string        `yaml:"os"`
	AllowSyntheticFallback bool          `yaml:"allow_synthetic_fallback"`
}

// FallbackConfig controls when the provider is consulted.
type FallbackConfig struct {
	Threshold           int `yaml:"threshold"`
	DefaultLocationCode int `yaml:"default_location_code"`
}

// BudgetConfig controls provider spend enforcement.
type BudgetConfig struct {
	Enabled  bool                  `yaml:"enabled"`
	Policies []models.BudgetPolicy `yaml:"policies"`
}

// SearchLogConfig controls the per-search log.
type SearchLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "vendorsearch.db",
		Log:    logging.Config{Level: "info", Format: "console"},
		VendorDB: VendorDBConfig{
			MaxConns: 10,
		},
		Cache: CacheConfig{
			TTL:          7 * 24 * time.Hour,
			QueueSize:    256,
			Workers:      2,
			WriteTimeout: 10 * time.Second,
		},
		Sources: SourcesConfig{
			Timeout:        3 * time.Second,
			SocialLimit:    20,
			DirectoryLimit: 30,
			GenericLimit:   20,
		},
		Provider: ProviderConfig{
			URL:      "https://api.dataforseo.com",
			Timeout:  30 * time.Second,
			Depth:    100,
			Language: "en",
			Device:   "desktop",
			OS:       "windows",
		},
		Fallback: FallbackConfig{
			Threshold:           20,
			DefaultLocationCode: 2840,
		},
		SearchLog: SearchLogConfig{
			Enabled:       true,
			RetentionDays: 90,
		},
	}
}

// Load reads a YAML config file, loading .env first and expanding environment variables.
// An empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.fillGenerations()
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATAFORSEO_LOGIN"); v != "" {
		cfg.Provider.Login = v
	}
	if v := os.Getenv("DATAFORSEO_PASSWORD"); v != "" {
		cfg.Provider.Password = v
	}
	if v := os.Getenv("VENDOR_DATABASE_URL"); v != "" {
		cfg.VendorDB.URL = v
	}
	if v := os.Getenv("VENDORSEARCH_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("ALLOW_SYNTHETIC_FALLBACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse ALLOW_SYNTHETIC_FALLBACK: %w", err)
		}
		cfg.Provider.AllowSyntheticFallback = b
	}
	return nil
}

// fillGenerations defaults to a single SQLite generation in DBPath.
func (c *Config) fillGenerations() {
	if len(c.Cache.Generations) == 0 {
		c.Cache.Generations = []GenerationConfig{{Name: "search_cache"}}
	}
	for i := range c.Cache.Generations {
		g := &c.Cache.Generations[i]
		if g.Driver == "" {
			g.Driver = "sqlite"
		}
		if g.Name == "" {
			g.Name = fmt.Sprintf("generation_%d", i)
		}
		if g.Table == "" {
			g.Table = g.Name
		}
		if g.Driver == "sqlite" && g.DSN == "" {
			g.DSN = c.DBPath
		}
	}
	if c.SearchLog.DBPath == "" {
		c.SearchLog.DBPath = c.DBPath
	}
}
