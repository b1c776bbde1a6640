// Package provider calls the paid DataForSEO Google Maps search API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

var (
	// ErrProviderFailed marks any provider fault: transport, timeout, non-2xx or malformed body.
	ErrProviderFailed = errors.New("provider request failed")
	// ErrNotConfigured is returned when credentials are missing.
	ErrNotConfigured = errors.New("provider credentials not configured")
)

// StatusError is returned for a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrProviderFailed }

const searchPath = "/v3/serp/google/maps/live/advanced"

// Config holds the provider endpoint and credentials.
type Config struct {
	URL      string
	Login    string
	Password string
	Timeout  time.Duration
	Depth    int
	Language string
	Device   string
	OS       string
}

// Client is a DataForSEO client.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New creates a Client with defaults filled in.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = "https://api.dataforseo.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 100
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Device == "" {
		cfg.Device = "desktop"
	}
	if cfg.OS == "" {
		cfg.OS = "windows"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logging.Named(log, "provider"),
	}
}

// Configured reports whether both login and password are set.
func (c *Client) Configured() bool {
	return c.cfg.Login != "" && c.cfg.Password != ""
}

// Query is one provider search.
type Query struct {
	Keyword      string
	LocationCode int
}

// Result is the decoded provider response.
type Result struct {
	Items   []models.ProviderItem
	Cost    float64
	Elapsed time.Duration
}

type taskRequest struct {
	Keyword      string `json:"keyword"`
	LocationCode int    `json:"location_code"`
	LanguageCode string `json:"language_code"`
	Device       string `json:"device"`
	OS           string `json:"os"`
	Depth        int    `json:"depth"`
}

type apiResponse struct {
	StatusCode    int     `json:"status_code"`
	StatusMessage string  `json:"status_message"`
	Cost          float64 `json:"cost"`
	Tasks         []struct {
		StatusCode    int     `json:"status_code"`
		StatusMessage string  `json:"status_message"`
		Cost          float64 `json:"cost"`
		Result        []struct {
			Items []models.ProviderItem `json:"items"`
		} `json:"result"`
	} `json:"tasks"`
}

func okStatus(code int) bool {
	return code == 0 || (code >= 20000 && code < 20100)
}

// Search runs q against the live Google Maps endpoint.
func (c *Client) Search(ctx context.Context, q Query) (Result, error) {
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}

	body, err := json.Marshal([]taskRequest{{
		Keyword:      q.Keyword,
		LocationCode: q.LocationCode,
		LanguageCode: c.cfg.Language,
		Device:       c.cfg.Device,
		OS:           c.cfg.OS,
		Depth:        c.cfg.Depth,
	}})
	if err != nil {
		return Result{}, fmt.Errorf("encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+searchPath, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", ErrProviderFailed, err)
	}
	req.SetBasicAuth(c.cfg.Login, c.cfg.Password)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Elapsed: elapsed}, fmt.Errorf("%w: read body: %v", ErrProviderFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Elapsed: elapsed}, &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 512)}
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Result{Elapsed: elapsed}, fmt.Errorf("%w: malformed response: %v", ErrProviderFailed, err)
	}
	if !okStatus(parsed.StatusCode) {
		return Result{Elapsed: elapsed}, fmt.Errorf("%w: status %d: %s", ErrProviderFailed, parsed.StatusCode, parsed.StatusMessage)
	}

	res := Result{Cost: parsed.Cost, Elapsed: elapsed, Items: []models.ProviderItem{}}
	if len(parsed.Tasks) == 0 {
		return res, nil
	}
	task := parsed.Tasks[0]
	if !okStatus(task.StatusCode) {
		return res, fmt.Errorf("%w: task status %d: %s", ErrProviderFailed, task.StatusCode, task.StatusMessage)
	}
	if res.Cost == 0 {
		res.Cost = task.Cost
	}
	if len(task.Result) == 0 {
		return res, nil
	}
	for _, item := range task.Result[0].Items {
		if item.Type != "" && item.Type != "maps_search" {
			continue
		}
		res.Items = append(res.Items, item)
	}

	logging.FromContext(ctx, c.log).Debug("provider search complete",
		zap.String("stage", "provider"),
		zap.Int("items", len(res.Items)),
		zap.Float64("cost", res.Cost),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// BuildQuery renders the provider keyword: subcategory first when present,
// then keyword, city and state.
func BuildQuery(req models.SearchRequest) string {
	var parts []string
	if sub, ok := req.SubcategoryValue(); ok && strings.TrimSpace(sub) != "" {
		parts = append(parts, strings.TrimSpace(sub))
	}
	for _, p := range []string{req.Keyword, req.City, req.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
