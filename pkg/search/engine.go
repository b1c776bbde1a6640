// Package search runs one vendor search end to end: cache lookup, source
// aggregation, provider fallback and pagination.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pario-ai/vendorsearch/pkg/aggregate"
	"github.com/pario-ai/vendorsearch/pkg/cache"
	"github.com/pario-ai/vendorsearch/pkg/fallback"
	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/paginate"
)

// ErrSearchFailed is the single failure callers see for non-validation faults.
var ErrSearchFailed = errors.New("search failed")

// Error records the stage a search failed at. It matches ErrSearchFailed.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return "search failed at " + e.Stage + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrSearchFailed }

// CacheReader looks up a merged result set. *cache.Store implements it.
type CacheReader interface {
	Lookup(ctx context.Context, key models.CacheKey) (*models.CacheEntry, bool)
}

// Aggregator queries the local vendor sources. *aggregate.Aggregator implements it.
type Aggregator interface {
	Aggregate(ctx context.Context, req models.SearchRequest) []models.SourceQueryOutcome
}

// Fallback supplements insufficient local listings. *fallback.Controller implements it.
type Fallback interface {
	DecideAndFetch(ctx context.Context, req models.SearchRequest, key models.CacheKey, local []models.VendorListing) (fallback.Decision, error)
}

// Recorder stores one search log entry. *searchlog.Logger implements it.
type Recorder interface {
	Log(ctx context.Context, entry models.SearchLogEntry) error
}

// DefaultResolveTimeout bounds one shared aggregation and provider call.
const DefaultResolveTimeout = time.Minute

// Options wires an Engine. SearchLog and Metrics are optional.
type Options struct {
	Cache      CacheReader
	Aggregator Aggregator
	Fallback   Fallback
	SearchLog  Recorder
	Logger     *zap.Logger
	Metrics    *metrics.Metrics

	// ResolveTimeout caps the shared work for a cache miss so a stuck
	// collaborator cannot pin its key in the single-flight group.
	ResolveTimeout time.Duration
}

// Engine serves searches. Concurrent misses for one cache key share a
// single aggregation and provider call.
type Engine struct {
	opts    Options
	log     *zap.Logger
	group   singleflight.Group
	logs    chan struct{}
	pending sync.WaitGroup
	now     func() time.Time
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultResolveTimeout
	}
	return &Engine{
		opts: opts,
		log:  logging.Named(opts.Logger, "search"),
		logs: make(chan struct{}, 64),
		now:  time.Now,
	}
}

type requestIDKey struct{}

// WithRequestID attaches a caller-chosen request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type resolution struct {
	listings []models.VendorListing
	source   models.ResultSource
	cost     float64
}

// Search validates req and returns one page of results.
func (e *Engine) Search(ctx context.Context, req models.SearchRequest) (models.SearchResponse, error) {
	start := e.now()
	if err := req.Validate(); err != nil {
		return models.SearchResponse{}, err
	}

	key := cache.DeriveKey(req)
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	ctx = logging.WithFields(ctx, zap.String("request_id", id), zap.String("cache_key", string(key)))
	log := logging.FromContext(ctx, e.log)

	entry := models.SearchLogEntry{
		RequestID: id,
		CacheKey:  string(key),
		Keyword:   req.Keyword,
		City:      req.City,
		State:     req.State,
		CreatedAt: start,
	}
	if sub, ok := req.SubcategoryValue(); ok {
		entry.Subcategory = sub
	}

	var res resolution
	if hit, ok := e.opts.Cache.Lookup(ctx, key); ok {
		res = resolution{listings: hit.Results, source: models.SourceCache}
	} else {
		var shared bool
		var err error
		res, shared, err = e.resolve(ctx, req, key)
		entry.Shared = shared
		if err != nil {
			var se *Error
			if errors.As(err, &se) {
				entry.FailedStage = se.Stage
			}
			log.Error("search failed", zap.String("stage", entry.FailedStage), zap.Error(err))
			entry.LatencyMs = e.now().Sub(start).Milliseconds()
			e.record(log, entry)
			return models.SearchResponse{}, err
		}
	}

	page, err := paginate.Window(res.listings, req.Page, req.Limit)
	if err != nil {
		return models.SearchResponse{}, err
	}

	elapsed := e.now().Sub(start)
	e.opts.Metrics.Search(string(res.source), elapsed)

	entry.Source = string(res.source)
	entry.TotalResults = len(res.listings)
	entry.Cost = res.cost
	entry.LatencyMs = elapsed.Milliseconds()
	e.record(log, entry)

	log.Debug("search served",
		zap.String("source", entry.Source),
		zap.Int("total", entry.TotalResults),
		zap.Duration("elapsed", elapsed),
	)

	return models.SearchResponse{
		Results:      page.Items,
		TotalResults: len(res.listings),
		HasMore:      page.HasMore,
		Source:       res.source,
		Page:         req.Page,
		Limit:        req.Limit,
		QueryTimeMs:  elapsed.Milliseconds(),
	}, nil
}

// resolve aggregates and falls back once per key across concurrent callers.
// The shared work is detached from any single caller's cancellation and runs
// under ResolveTimeout; each caller stops waiting when its own ctx ends.
func (e *Engine) resolve(ctx context.Context, req models.SearchRequest, key models.CacheKey) (resolution, bool, error) {
	ch := e.group.DoChan(string(key), func() (any, error) {
		work, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.ResolveTimeout)
		defer cancel()
		local := aggregate.Listings(e.opts.Aggregator.Aggregate(work, req))
		d, err := e.opts.Fallback.DecideAndFetch(work, req, key, local)
		if err != nil {
			return nil, &Error{Stage: "provider", Err: err}
		}
		return resolution{listings: d.Listings, source: d.Source, cost: d.Cost}, nil
	})

	select {
	case <-ctx.Done():
		return resolution{}, false, &Error{Stage: "wait", Err: ctx.Err()}
	case r := <-ch:
		if r.Shared {
			e.opts.Metrics.Coalesced()
		}
		if r.Err != nil {
			return resolution{}, r.Shared, r.Err
		}
		return r.Val.(resolution), r.Shared, nil
	}
}

// record writes the search log entry in the background. When too many
// writes are outstanding the entry is dropped.
func (e *Engine) record(log *zap.Logger, entry models.SearchLogEntry) {
	if e.opts.SearchLog == nil {
		return
	}
	select {
	case e.logs <- struct{}{}:
	default:
		log.Warn("search log backlog full, entry dropped")
		return
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer func() { <-e.logs }()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.opts.SearchLog.Log(ctx, entry); err != nil {
			log.Warn("failed to write search log", zap.Error(err))
		}
	}()
}

// Wait blocks until background search log writes have finished.
func (e *Engine) Wait() {
	e.pending.Wait()
}
