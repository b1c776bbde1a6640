// Package aggregate fans a search out to the internal vendor collections.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/category"
	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Options configures an Aggregator.
type Options struct {
	// Timeout bounds each source independently.
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Aggregator queries every source concurrently and waits for all of them.
type Aggregator struct {
	sources []Source
	mapper  *category.Mapper
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates an Aggregator. Outcomes are always returned in sources order.
func New(sources []Source, mapper *category.Mapper, opts Options) *Aggregator {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Aggregator{
		sources: sources,
		mapper:  mapper,
		timeout: opts.Timeout,
		log:     logging.Named(opts.Logger, "aggregate"),
		metrics: opts.Metrics,
	}
}

// Aggregate runs every source. A failing, panicking or timed-out source
// yields an outcome with Succeeded=false and no listings; it never fails
// the aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, req models.SearchRequest) []models.SourceQueryOutcome {
	q := Query{Keyword: req.Keyword, City: req.City, State: req.State}
	if a.mapper != nil {
		q.Category, _ = a.mapper.Resolve(req.Keyword)
	}

	outcomes := make([]models.SourceQueryOutcome, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			outcomes[i] = a.run(ctx, src, q)
		}(i, src)
	}
	wg.Wait()
	return outcomes
}

func (a *Aggregator) run(ctx context.Context, src Source, q Query) models.SourceQueryOutcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		listings []models.VendorListing
		err      error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("source panicked: %v", r)}
			}
		}()
		listings, err := src.Search(ctx, q)
		done <- result{listings: listings, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	}

	elapsed := time.Since(start)
	out := models.SourceQueryOutcome{SourceKind: src.Kind(), Duration: elapsed.Milliseconds()}
	kind := string(src.Kind())

	switch {
	case errors.Is(res.err, ErrNotApplicable):
		out.Succeeded = true
		out.Skipped = true
		out.Listings = []models.VendorListing{}
		a.metrics.SourceQuery(kind, "skipped", elapsed)
	case res.err != nil:
		out.Err = res.err
		out.Listings = []models.VendorListing{}
		logging.FromContext(ctx, a.log).Warn("source query failed",
			zap.String("stage", "source"),
			zap.String("source", kind),
			zap.Duration("elapsed", elapsed),
			zap.Error(res.err),
		)
		a.metrics.SourceQuery(kind, "failed", elapsed)
	default:
		out.Succeeded = true
		out.Listings = res.listings
		if out.Listings == nil {
			out.Listings = []models.VendorListing{}
		}
		a.metrics.SourceQuery(kind, "ok", elapsed)
	}
	return out
}

// Listings concatenates the outcomes' listings in outcome order.
func Listings(outcomes []models.SourceQueryOutcome) []models.VendorListing {
	n := 0
	for _, o := range outcomes {
		n += len(o.Listings)
	}
	out := make([]models.VendorListing, 0, n)
	for _, o := range outcomes {
		out = append(out, o.Listings...)
	}
	return out
}
