package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/aggregate"
	"github.com/pario-ai/vendorsearch/pkg/budget"
	"github.com/pario-ai/vendorsearch/pkg/cache"
	"github.com/pario-ai/vendorsearch/pkg/cache/redisstore"
	"github.com/pario-ai/vendorsearch/pkg/cache/sqlstore"
	"github.com/pario-ai/vendorsearch/pkg/category"
	"github.com/pario-ai/vendorsearch/pkg/config"
	"github.com/pario-ai/vendorsearch/pkg/fallback"
	"github.com/pario-ai/vendorsearch/pkg/location"
	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/provider"
	"github.com/pario-ai/vendorsearch/pkg/search"
	"github.com/pario-ai/vendorsearch/pkg/searchlog"
	"github.com/pario-ai/vendorsearch/pkg/tracker"
	"github.com/pario-ai/vendorsearch/pkg/vendordb"
)

// app holds the wired search engine and everything it needs closed.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *cache.Store
	writer    *cache.Writer
	engine    *search.Engine
	tracker   *tracker.SQLiteTracker
	budget    *budget.Enforcer
	searchLog *searchlog.Logger
	closers   []func() error
}

func loadConfig(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// openCache builds the generation list newest first. The caller owns Close.
func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*cache.Store, error) {
	gens := make([]cache.Generation, 0, len(cfg.Cache.Generations))
	closeAll := func() {
		for _, g := range gens {
			_ = g.Close()
		}
	}
	for _, g := range cfg.Cache.Generations {
		var (
			gen cache.Generation
			err error
		)
		switch g.Driver {
		case "redis":
			gen, err = redisstore.New(ctx, redisstore.Options{
				Name:     g.Name,
				Addr:     g.Addr,
				Password: g.Password,
				DB:       g.DB,
				Prefix:   g.Prefix,
			})
		default:
			gen, err = sqlstore.Open(sqlstore.Options{
				Name:    g.Name,
				Driver:  g.Driver,
				DSN:     g.DSN,
				Table:   g.Table,
				Migrate: g.ShouldMigrate(),
				Logger:  log,
			})
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("open cache generation %s: %w", g.Name, err)
		}
		gens = append(gens, gen)
	}
	store, err := cache.NewStore(gens, log, m)
	if err != nil {
		closeAll()
		return nil, err
	}
	return store, nil
}

// openApp wires the full search path from cfg. m may be nil.
func openApp(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	store, err := openCache(ctx, cfg, log, m)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	a.writer = cache.NewWriter(store, cache.WriterOptions{
		QueueSize:    cfg.Cache.QueueSize,
		Workers:      cfg.Cache.Workers,
		WriteTimeout: cfg.Cache.WriteTimeout,
		Logger:       log,
		Metrics:      m,
	})
	a.closers = append(a.closers, func() error { a.writer.Close(); return nil })

	mapper, err := category.New(cfg.Categories)
	if err != nil {
		return nil, fmt.Errorf("load category rules: %w", err)
	}

	var (
		sources []aggregate.Source
		lookup  location.Lookup
	)
	if cfg.VendorDB.URL != "" {
		vendors, err := vendordb.New(ctx, cfg.VendorDB.URL, cfg.VendorDB.MaxConns, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { vendors.Close(); return nil })
		sources = aggregate.DefaultSources(vendors, aggregate.Limits{
			Social:    cfg.Sources.SocialLimit,
			Directory: cfg.Sources.DirectoryLimit,
			Generic:   cfg.Sources.GenericLimit,
		})
		lookup = vendors
	} else {
		log.Warn("vendor_db.url not set, local sources disabled")
	}
	agg := aggregate.New(sources, mapper, aggregate.Options{Timeout: cfg.Sources.Timeout, Logger: log, Metrics: m})

	tr, err := tracker.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init spend tracker: %w", err)
	}
	a.tracker = tr
	a.closers = append(a.closers, tr.Close)

	fbOpts := fallback.Options{
		Threshold:      cfg.Fallback.Threshold,
		TTL:            cfg.Cache.TTL,
		PersistLocal:   cfg.Cache.PersistLocal,
		AllowSynthetic: cfg.Provider.AllowSyntheticFallback,
		Provider: provider.New(provider.Config{
			URL:      cfg.Provider.URL,
			Login:    cfg.Provider.Login,
			Password: cfg.Provider.Password,
			Timeout:  cfg.Provider.Timeout,
			Depth:    cfg.Provider.Depth,
			Language: cfg.Provider.Language,
			Device:   cfg.Provider.Device,
			OS:       cfg.Provider.OS,
		}, log),
		Locations: location.New(cfg.Locations, lookup, cfg.Fallback.DefaultLocationCode, log),
		Writer:    a.writer,
		Spend:     tr,
		Logger:    log,
		Metrics:   m,
	}
	if cfg.Budget.Enabled {
		a.budget = budget.New(cfg.Budget.Policies, tr)
		fbOpts.Budget = a.budget
	}

	engineOpts := search.Options{
		Cache:      store,
		Aggregator: agg,
		Fallback:   fallback.New(fbOpts),
		Logger:     log,
		Metrics:    m,

		// Sources, the location lookup and the provider call run in sequence.
		ResolveTimeout: cfg.Sources.Timeout + location.LookupTimeout + cfg.Provider.Timeout + 5*time.Second,
	}
	if cfg.SearchLog.Enabled {
		sl, err := searchlog.New(cfg.SearchLog.DBPath, cfg.SearchLog.RetentionDays, log)
		if err != nil {
			return nil, fmt.Errorf("init search log: %w", err)
		}
		a.searchLog = sl
		a.closers = append(a.closers, sl.Close)
		engineOpts.SearchLog = sl
	}
	a.engine = search.New(engineOpts)

	ok = true
	return a, nil
}

// Close flushes pending background writes and releases resources in
// reverse order of acquisition.
func (a *app) Close() error {
	if a.engine != nil {
		a.engine.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
