package models

import "time"

// CacheKey is the canonical identity of a search in the cache.
type CacheKey string

// CacheEntry stores the merged listings for one search.
type CacheEntry struct {
	Key               CacheKey        `json:"key"`
	Results           []VendorListing `json:"results"`
	ResultCount       int             `json:"result_count"`
	CreatedAt         time.Time       `json:"created_at"`
	ExpiresAt         time.Time       `json:"expires_at"`
	IsSuccessful      bool            `json:"is_successful"`
	Cost              float64         `json:"cost"`
	APIResponseTimeMs int64           `json:"api_response_time_ms"`
	Synthetic         bool            `json:"synthetic"`
	// Generation names the backing store the entry was read from.
	Generation string `json:"-"`
}

// Expired reports whether the entry is no longer readable at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// GenerationStats reports the entry count of one cache generation.
type GenerationStats struct {
	Name    string `json:"name"`
	Entries int64  `json:"entries"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Generations []GenerationStats `json:"generations"`
	Hits        int64             `json:"hits"`
	Misses      int64             `json:"misses"`
}
