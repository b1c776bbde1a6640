// Package fallback decides whether local listings are enough or the paid
// provider must be called, and schedules the resulting cache write.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/budget"
	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/normalize"
	"github.com/pario-ai/vendorsearch/pkg/provider"
)

// DefaultThreshold is the local listing count at which the provider is skipped.
const DefaultThreshold = 20

// Provider is the external search client. *provider.Client implements it.
type Provider interface {
	Configured() bool
	Search(ctx context.Context, q provider.Query) (provider.Result, error)
}

// LocationResolver maps a city and state to a provider location code.
type LocationResolver interface {
	Resolve(ctx context.Context, city, state string) int
}

// Enqueuer schedules a cache write without blocking. *cache.Writer implements it.
type Enqueuer interface {
	Enqueue(entry models.CacheEntry) bool
}

// BudgetChecker guards provider spend. *budget.Enforcer implements it.
type BudgetChecker interface {
	Check(ctx context.Context) error
}

// SpendRecorder stores provider calls. tracker.Tracker implements it.
type SpendRecorder interface {
	Record(ctx context.Context, rec models.SpendRecord) error
}

// Options configures a Controller. Budget and Spend are optional.
type Options struct {
	Threshold      int
	TTL            time.Duration
	PersistLocal   bool
	AllowSynthetic bool

	Provider  Provider
	Locations LocationResolver
	Writer    Enqueuer
	Budget    BudgetChecker
	Spend     SpendRecorder
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Decision is the outcome of DecideAndFetch.
type Decision struct {
	Listings       []models.VendorListing
	Cost           float64
	Source         models.ResultSource
	ProviderCalled bool
}

// Controller implements the sufficiency rule and the provider fallback.
type Controller struct {
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

// New creates a Controller.
func New(opts Options) *Controller {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	return &Controller{
		opts: opts,
		log:  logging.Named(opts.Logger, "fallback"),
		now:  time.Now,
	}
}

// DecideAndFetch returns local unchanged when it meets the threshold.
// Otherwise it calls the provider and returns local followed by the
// provider listings. A provider failure is returned as an error; missing
// credentials and an exhausted budget degrade instead.
func (c *Controller) DecideAndFetch(ctx context.Context, req models.SearchRequest, key models.CacheKey, local []models.VendorListing) (Decision, error) {
	log := logging.FromContext(ctx, c.log)

	if len(local) >= c.opts.Threshold {
		if c.opts.PersistLocal {
			c.schedule(log, c.entry(key, local, 0, 0, false))
		}
		return Decision{Listings: local, Source: models.SourceDatabase}, nil
	}

	if c.opts.Provider == nil || !c.opts.Provider.Configured() {
		if !c.opts.AllowSynthetic {
			log.Error("provider credentials missing, serving local results only", zap.String("stage", "provider"))
			return Decision{Listings: local, Source: models.SourceDatabase}, nil
		}
		log.Warn("provider credentials missing, serving synthetic placeholders", zap.String("stage", "provider"))
		merged := merge(local, provider.Synthetic(req))
		c.schedule(log, c.entry(key, merged, 0, 0, true))
		return Decision{Listings: merged, Source: models.SourceExternalFallback}, nil
	}

	if c.opts.Budget != nil {
		if err := c.opts.Budget.Check(ctx); err != nil {
			if errors.Is(err, budget.ErrBudgetExceeded) {
				log.Warn("provider budget exhausted, serving local results", zap.String("stage", "provider"), zap.Error(err))
				return Decision{Listings: local, Source: models.SourceDatabase}, nil
			}
			log.Warn("budget check failed, calling provider anyway", zap.String("stage", "provider"), zap.Error(err))
		}
	}

	q := provider.Query{Keyword: provider.BuildQuery(req)}
	if c.opts.Locations != nil {
		q.LocationCode = c.opts.Locations.Resolve(ctx, req.City, req.State)
	}

	res, err := c.opts.Provider.Search(ctx, q)
	rec := models.SpendRecord{
		CacheKey:     string(key),
		Query:        q.Keyword,
		LocationCode: q.LocationCode,
		Cost:         res.Cost,
		ResponseMs:   res.Elapsed.Milliseconds(),
		ResultCount:  len(res.Items),
		Status:       models.SpendOK,
		CreatedAt:    c.now(),
	}
	if err != nil {
		rec.Status = models.SpendFailed
		c.record(ctx, log, rec)
		c.opts.Metrics.ProviderCall("failed", res.Cost, res.Elapsed)
		return Decision{ProviderCalled: true}, fmt.Errorf("provider search: %w", err)
	}
	c.record(ctx, log, rec)
	c.opts.Metrics.ProviderCall("ok", res.Cost, res.Elapsed)

	fetched := make([]models.VendorListing, 0, len(res.Items))
	for _, item := range res.Items {
		fetched = append(fetched, normalize.Provider(item, req.City, req.State))
	}
	merged := merge(local, fetched)

	log.Info("provider results merged",
		zap.String("stage", "provider"),
		zap.Int("local", len(local)),
		zap.Int("provider", len(fetched)),
		zap.Float64("cost", res.Cost),
		zap.Duration("elapsed", res.Elapsed),
	)

	c.schedule(log, c.entry(key, merged, res.Cost, res.Elapsed.Milliseconds(), false))
	return Decision{Listings: merged, Cost: res.Cost, Source: models.SourceCombined, ProviderCalled: true}, nil
}

func merge(local, extra []models.VendorListing) []models.VendorListing {
	out := make([]models.VendorListing, 0, len(local)+len(extra))
	out = append(out, local...)
	return append(out, extra...)
}

func (c *Controller) entry(key models.CacheKey, listings []models.VendorListing, cost float64, responseMs int64, synthetic bool) models.CacheEntry {
	now := c.now()
	return models.CacheEntry{
		Key:               key,
		Results:           listings,
		ResultCount:       len(listings),
		CreatedAt:         now,
		ExpiresAt:         now.Add(c.opts.TTL),
		IsSuccessful:      true,
		Cost:              cost,
		APIResponseTimeMs: responseMs,
		Synthetic:         synthetic,
	}
}

func (c *Controller) schedule(log *zap.Logger, entry models.CacheEntry) {
	if c.opts.Writer == nil {
		return
	}
	if !c.opts.Writer.Enqueue(entry) {
		log.Warn("cache write not scheduled", zap.String("stage", "cache_write"))
	}
}

func (c *Controller) record(ctx context.Context, log *zap.Logger, rec models.SpendRecord) {
	if c.opts.Spend == nil {
		return
	}
	if err := c.opts.Spend.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Error("failed to record provider spend", zap.Error(err))
	}
}
