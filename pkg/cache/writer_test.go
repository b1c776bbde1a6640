package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/pario-ai/vendorsearch/pkg/metrics"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

type recordingSaver struct {
	mu      sync.Mutex
	saved   []models.CacheEntry
	err     error
	release chan struct{}
}

func (s *recordingSaver) Save(ctx context.Context, e models.CacheEntry) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, e)
	return nil
}

func (s *recordingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestWriterDrain(t *testing.T) {
	saver := &recordingSaver{}
	w := NewWriter(saver, WriterOptions{QueueSize: 8, Workers: 2, Logger: zaptest.NewLogger(t)})
	defer w.Close()

	for i := 0; i < 5; i++ {
		if !w.Enqueue(models.CacheEntry{Key: "k", CreatedAt: time.Now()}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	w.Drain()

	if saver.count() != 5 {
		t.Errorf("expected 5 saved entries, got %d", saver.count())
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	saver := &recordingSaver{release: make(chan struct{})}
	w := NewWriter(saver, WriterOptions{
		QueueSize: 1,
		Workers:   1,
		Logger:    zaptest.NewLogger(t),
		Metrics:   metrics.New(prometheus.NewRegistry()),
	})

	// First entry is picked up by the blocked worker, second fills the queue.
	w.Enqueue(models.CacheEntry{Key: "a"})
	deadline := time.Now().Add(time.Second)
	for len(w.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !w.Enqueue(models.CacheEntry{Key: "b"}) {
		t.Fatal("expected second entry to be queued")
	}
	if w.Enqueue(models.CacheEntry{Key: "c"}) {
		t.Error("expected third entry to be dropped")
	}

	close(saver.release)
	w.Drain()
	w.Close()

	if saver.count() != 2 {
		t.Errorf("expected 2 saved entries, got %d", saver.count())
	}
}

func TestWriterFailureIsAbsorbed(t *testing.T) {
	saver := &recordingSaver{err: errors.New("disk full")}
	w := NewWriter(saver, WriterOptions{Logger: zaptest.NewLogger(t)})

	w.Enqueue(models.CacheEntry{Key: "k"})
	w.Drain()
	w.Close()

	if saver.count() != 0 {
		t.Errorf("expected nothing saved, got %d", saver.count())
	}
}

func TestWriterEnqueueAfterClose(t *testing.T) {
	w := NewWriter(&recordingSaver{}, WriterOptions{Logger: zaptest.NewLogger(t)})
	w.Close()
	w.Close()

	if w.Enqueue(models.CacheEntry{Key: "k"}) {
		t.Error("expected enqueue after close to be rejected")
	}
}
