package redisstore

import (
	"testing"
	"time"

	"github.com/pario-ai/vendorsearch/pkg/cache"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

func TestKeyFor(t *testing.T) {
	s := NewWithClient(nil, "", "")
	if s.Name() != "redis" {
		t.Errorf("expected default name, got %s", s.Name())
	}
	if got := s.keyFor("dj|austin,tx|nosub"); got != "vendorsearch:dj|austin,tx|nosub" {
		t.Errorf("unexpected key %s", got)
	}
}

func TestTTLFor(t *testing.T) {
	now := time.Now()
	live := models.CacheEntry{ExpiresAt: now.Add(time.Hour)}
	if ttlFor(live, now) != time.Hour {
		t.Errorf("expected 1h ttl, got %v", ttlFor(live, now))
	}
	stale := models.CacheEntry{ExpiresAt: now.Add(-time.Second)}
	if ttlFor(stale, now) > 0 {
		t.Error("expected non-positive ttl for expired entry")
	}
}

func TestEncodeStripsOptional(t *testing.T) {
	entry := models.CacheEntry{
		Key:          "cake|reno,nv|nosub",
		Results:      []models.VendorListing{{Title: "Sugar Bloom", Images: []string{}}},
		ResultCount:  1,
		IsSuccessful: true,
		Cost:         0.05,
		Synthetic:    true,
		Generation:   "redis",
	}

	data, err := encode(entry, cache.SaveOptions{SkipOptional: true})
	if err != nil {
		t.Fatal(err)
	}
	got, err := decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cost != 0 || got.Synthetic {
		t.Errorf("expected optional fields stripped, got %+v", got)
	}
	if got.Generation != "" {
		t.Error("generation name must not be persisted")
	}
	if got.Results[0].Title != "Sugar Bloom" {
		t.Errorf("unexpected results: %+v", got.Results)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := decode([]byte("not json")); err == nil {
		t.Error("expected decode error")
	}
}
