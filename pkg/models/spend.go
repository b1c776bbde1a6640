package models

import "time"

// SpendStatus is the outcome of one provider call.
type SpendStatus string

const (
	SpendOK     SpendStatus = "ok"
	SpendFailed SpendStatus = "failed"
)

// SpendRecord tracks the cost of a single external provider call.
type SpendRecord struct {
	ID           int64       `json:"id"`
	CacheKey     string      `json:"cache_key"`
	Query        string      `json:"query"`
	LocationCode int         `json:"location_code"`
	Cost         float64     `json:"cost"`
	ResponseMs   int64       `json:"response_ms"`
	ResultCount  int         `json:"result_count"`
	Status       SpendStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// SpendSummary aggregates provider spend for one day.
type SpendSummary struct {
	Day          string  `json:"day"`
	Calls        int     `json:"calls"`
	FailedCalls  int     `json:"failed_calls"`
	TotalCost    float64 `json:"total_cost"`
	TotalResults int     `json:"total_results"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
