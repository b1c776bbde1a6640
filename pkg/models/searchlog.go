package models

import "time"

// SearchLogEntry records one served search.
type SearchLogEntry struct {
	RequestID    string    `json:"request_id"`
	CacheKey     string    `json:"cache_key"`
	Keyword      string    `json:"keyword"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Subcategory  string    `json:"subcategory,omitempty"`
	Source       string    `json:"source"`
	TotalResults int       `json:"total_results"`
	Cost         float64   `json:"cost"`
	LatencyMs    int64     `json:"latency_ms"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	Shared       bool      `json:"shared"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchLogQueryOpts specifies filters for querying the search log.
type SearchLogQueryOpts struct {
	Keyword   string
	City      string
	Source    string
	Since     time.Time
	RequestID string
	Limit     int
}

// SearchLogStat holds aggregate counts for a source/day combination.
type SearchLogStat struct {
	Source string
	Day    string
	Count  int
	Cost   float64
}
