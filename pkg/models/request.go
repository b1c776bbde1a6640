package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest marks validation faults. Wrapped errors carry the field detail.
var ErrInvalidRequest = errors.New("invalid search request")

// Default paging applied when the caller omits page or limit.
const (
	DefaultPage  = 1
	DefaultLimit = 30
)

// SearchRequest is one vendor search. It is built per call and never mutated.
type SearchRequest struct {
	Keyword     string  `json:"keyword"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Subcategory *string `json:"subcategory,omitempty"`
	Page        int     `json:"page"`
	Limit       int     `json:"limit"`
}

// SubcategoryValue returns the subcategory and whether one was supplied.
func (r SearchRequest) SubcategoryValue() (string, bool) {
	if r.Subcategory == nil {
		return "", false
	}
	return *r.Subcategory, true
}

// Location renders "City, ST".
func (r SearchRequest) Location() string {
	if r.State == "" {
		return r.City
	}
	return r.City + ", " + r.State
}

// Validate rejects requests that must not reach any I/O.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Keyword) == "" {
		return fmt.Errorf("%w: keyword is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.City) == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidRequest)
	}
	if r.Page <= 0 {
		return fmt.Errorf("%w: page must be >= 1", ErrInvalidRequest)
	}
	if r.Limit <= 0 {
		return fmt.Errorf("%w: limit must be >= 1", ErrInvalidRequest)
	}
	return nil
}

// InboundSearch is the wire shape accepted from the UI boundary.
type InboundSearch struct {
	Keyword     string  `json:"keyword"`
	Location    string  `json:"location"`
	Subcategory *string `json:"subcategory,omitempty"`
	Page        *int    `json:"page,omitempty"`
	Limit       *int    `json:"limit,omitempty"`
}

// ParseLocation splits "City, ST" on the first comma.
func ParseLocation(location string) (city, state string) {
	city, state, _ = strings.Cut(location, ",")
	return strings.TrimSpace(city), strings.TrimSpace(state)
}

// ToRequest validates the inbound payload and builds a SearchRequest.
func (in InboundSearch) ToRequest() (SearchRequest, error) {
	if strings.TrimSpace(in.Keyword) == "" {
		return SearchRequest{}, fmt.Errorf("%w: keyword is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Location) == "" {
		return SearchRequest{}, fmt.Errorf("%w: location is required", ErrInvalidRequest)
	}
	city, state := ParseLocation(in.Location)

	req := SearchRequest{
		Keyword:     strings.TrimSpace(in.Keyword),
		City:        city,
		State:       state,
		Subcategory: in.Subcategory,
		Page:        DefaultPage,
		Limit:       DefaultLimit,
	}
	if in.Page != nil {
		req.Page = *in.Page
	}
	if in.Limit != nil {
		req.Limit = *in.Limit
	}
	if err := req.Validate(); err != nil {
		return SearchRequest{}, err
	}
	return req, nil
}

// ResultSource tells the caller where the listings came from.
type ResultSource string

const (
	SourceCache            ResultSource = "cache"
	SourceDatabase         ResultSource = "database"
	SourceCombined         ResultSource = "combined"
	SourceExternalFallback ResultSource = "external-fallback"
)

// SearchResponse is the outbound page of results.
type SearchResponse struct {
	Results      []VendorListing `json:"results"`
	TotalResults int             `json:"totalResults"`
	HasMore      bool            `json:"hasMore"`
	Source       ResultSource    `json:"source"`
	Page         int             `json:"page"`
	Limit        int             `json:"limit"`
	QueryTimeMs  int64           `json:"queryTimeMs"`
}
