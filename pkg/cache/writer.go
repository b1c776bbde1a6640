package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Saver persists a cache entry. *Store implements it.
type Saver interface {
	Save(ctx context.Context, entry models.CacheEntry) error
}

// WriterOptions configures the background cache writer.
type WriterOptions struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// Writer persists cache entries off the request path. Writes are
// at-most-once: a full queue or a failed save drops the entry.
type Writer struct {
	saver   Saver
	queue   chan models.CacheEntry
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	workers sync.WaitGroup
}

// NewWriter starts the worker goroutines.
func NewWriter(saver Saver, opts WriterOptions) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	w := &Writer{
		saver:   saver,
		queue:   make(chan models.CacheEntry, opts.QueueSize),
		timeout: opts.WriteTimeout,
		log:     logging.Named(opts.Logger, "cache_writer"),
		metrics: opts.Metrics,
	}
	for i := 0; i < opts.Workers; i++ {
		w.workers.Add(1)
		go w.run()
	}
	return w
}

// Enqueue schedules entry for persistence without blocking. It reports false
// when the entry was dropped.
func (w *Writer) Enqueue(entry models.CacheEntry) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.metrics.CacheWrite("dropped")
		return false
	}

	w.pending.Add(1)
	select {
	case w.queue <- entry:
		return true
	default:
		w.pending.Done()
		w.log.Warn("cache write queue full, dropping entry",
			zap.String("cache_key", string(entry.Key)),
			zap.String("stage", "cache_write"),
		)
		w.metrics.CacheWrite("dropped")
		return false
	}
}

func (w *Writer) run() {
	defer w.workers.Done()
	for entry := range w.queue {
		w.write(entry)
		w.pending.Done()
	}
}

func (w *Writer) write(entry models.CacheEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.saver.Save(ctx, entry); err != nil {
		w.log.Error("cache write failed",
			zap.String("cache_key", string(entry.Key)),
			zap.String("stage", "cache_write"),
			zap.Error(err),
		)
		w.metrics.CacheWrite("failed")
		return
	}
	w.metrics.CacheWrite("ok")
}

// Drain blocks until every accepted entry has been written or failed.
func (w *Writer) Drain() {
	w.pending.Wait()
}

// Close stops accepting entries, flushes the queue and stops the workers.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.workers.Wait()
}
