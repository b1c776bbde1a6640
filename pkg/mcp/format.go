package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

func formatSearch(resp models.SearchResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d results (source: %s, page %d, more: %v)\n",
		resp.TotalResults, resp.Source, resp.Page, resp.HasMore)
	for i, l := range resp.Results {
		fmt.Fprintf(&b, "%d. %s", (resp.Page-1)*resp.Limit+i+1, l.Title)
		if l.Rating != nil {
			fmt.Fprintf(&b, " (%.1f, %d reviews)", l.Rating.Value, l.Rating.Count)
		}
		if l.Synthetic {
			b.WriteString(" [synthetic]")
		}
		b.WriteString("\n")
		if l.Address != "" {
			fmt.Fprintf(&b, "   %s\n", l.Address)
		}
		if l.Phone != "" || l.WebsiteURL != "" {
			fmt.Fprintf(&b, "   %s\n", strings.TrimSpace(l.Phone+" "+l.WebsiteURL))
		}
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	var b strings.Builder
	b.WriteString("Cache Statistics\n")
	for _, g := range stats.Generations {
		if g.Entries < 0 {
			fmt.Fprintf(&b, "  %-20s n/a\n", g.Name+":")
			continue
		}
		fmt.Fprintf(&b, "  %-20s %d entries\n", g.Name+":", g.Entries)
	}
	fmt.Fprintf(&b, "  Hits:     %d\n  Misses:   %d\n  Hit Rate: %.1f%%\n", stats.Hits, stats.Misses, hitRate)
	return b.String()
}

func formatSpend(summaries []models.SpendSummary) string {
	if len(summaries) == 0 {
		return "No provider spend found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %8s %8s %10s\n", "Day", "Calls", "Failed", "Cost")
	b.WriteString(strings.Repeat("-", 41) + "\n")
	var total float64
	for _, s := range summaries {
		fmt.Fprintf(&b, "%-12s %8d %8d $%9.4f\n", s.Day, s.Calls, s.FailedCalls, s.TotalCost)
		total += s.TotalCost
	}
	fmt.Fprintf(&b, "%-30s $%9.4f\n", "Total", total)
	return b.String()
}

func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %10s %10s %10s %6s\n", "Period", "Max", "Spent", "Remaining", "Used%")
	b.WriteString(strings.Repeat("-", 48) + "\n")
	for _, s := range statuses {
		pct := float64(0)
		if s.Policy.MaxCost > 0 {
			pct = s.Spent / s.Policy.MaxCost * 100
		}
		fmt.Fprintf(&b, "%-8s $%9.2f $%9.4f $%9.4f %5.1f%%\n",
			s.Policy.Period, s.Policy.MaxCost, s.Spent, s.Remaining, pct)
	}
	return b.String()
}

func formatSearchLog(entries []models.SearchLogEntry) string {
	if len(entries) == 0 {
		return "No searches found."
	}
	var b strings.Builder
	for _, e := range entries {
		source := e.Source
		if e.FailedStage != "" {
			source = "failed at " + e.FailedStage
		}
		fmt.Fprintf(&b, "%s  %q in %s, %s  %s  %d results  $%.4f  %dms\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Keyword, e.City, e.State,
			source, e.TotalResults, e.Cost, e.LatencyMs)
	}
	return b.String()
}
