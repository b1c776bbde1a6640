package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"vendorsearch_search":      handleSearch,
	"vendorsearch_cache_stats": handleCacheStats,
	"vendorsearch_spend":       handleSpend,
	"vendorsearch_budget":      handleBudget,
	"vendorsearch_search_log":  handleSearchLog,
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

var allTools = []ToolDefinition{
	{
		Name:        "vendorsearch_search",
		Description: "Search event vendors by keyword and location. Uses cached and local results first and calls the paid provider only when local results are insufficient.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"keyword", "location"},
			"properties": map[string]any{
				"keyword":     stringProp("What to search for, e.g. \"wedding photographer\""),
				"location":    stringProp("City and state as \"City, ST\""),
				"subcategory": stringProp("Optional subcategory that narrows the provider query"),
				"page":        map[string]any{"type": "integer", "minimum": 1},
				"limit":       map[string]any{"type": "integer", "minimum": 1},
			},
		},
	},
	{
		Name:        "vendorsearch_cache_stats",
		Description: "Show cache entry counts per generation and hit/miss counters.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "vendorsearch_spend",
		Description: "Show paid provider spend per day.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"since": stringProp("Start date YYYY-MM-DD (default: start of month)"),
			},
		},
	},
	{
		Name:        "vendorsearch_budget",
		Description: "Show provider spend against the configured budget policies.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	},
	{
		Name:        "vendorsearch_search_log",
		Description: "List recent searches with their result source, total and cost.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"keyword": stringProp("Filter by keyword substring"),
				"source":  stringProp("Filter by result source: cache, database, combined or external-fallback"),
				"since":   stringProp("Start date YYYY-MM-DD"),
			},
		},
	},
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func parseSince(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse("2006-01-02", s)
}

func handleSearch(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var in models.InboundSearch
	if err := decodeArgs(raw, &in); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	req, err := in.ToRequest()
	if err != nil {
		return errorResult(err.Error())
	}
	resp, err := s.searcher.Search(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			return errorResult(err.Error())
		}
		return errorResult("search failed")
	}
	return textResult(formatSearch(resp))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.opts.Cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.opts.Cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

type sinceArgs struct {
	Since string `json:"since"`
}

func handleSpend(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.opts.Spend == nil {
		return textResult("Spend tracking is not configured.")
	}
	var args sinceArgs
	_ = decodeArgs(raw, &args)
	since, err := parseSince(args.Since, beginningOfMonth())
	if err != nil {
		return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
	}
	summaries, err := s.opts.Spend.DailySummary(ctx, since)
	if err != nil {
		return errorResult("Error fetching spend: " + err.Error())
	}
	return textResult(formatSpend(summaries))
}

func beginningOfMonth() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.opts.Budget == nil {
		return textResult("Budget enforcement is not configured.")
	}
	statuses, err := s.opts.Budget.Status(ctx)
	if err != nil {
		return errorResult("Error fetching budget status: " + err.Error())
	}
	return textResult(formatBudgetStatus(statuses))
}

type searchLogArgs struct {
	Keyword string `json:"keyword"`
	Source  string `json:"source"`
	Since   string `json:"since"`
}

func handleSearchLog(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.opts.SearchLog == nil {
		return textResult("Search logging is not configured.")
	}
	var args searchLogArgs
	_ = decodeArgs(raw, &args)
	since, err := parseSince(args.Since, time.Time{})
	if err != nil {
		return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
	}
	entries, err := s.opts.SearchLog.Query(ctx, models.SearchLogQueryOpts{
		Keyword: args.Keyword,
		Source:  args.Source,
		Since:   since,
		Limit:   50,
	})
	if err != nil {
		return errorResult("Error searching the search log: " + err.Error())
	}
	return textResult(formatSearchLog(entries))
}
