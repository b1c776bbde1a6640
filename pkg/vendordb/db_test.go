package vendordb

import (
	"strings"
	"testing"
)

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"florist":    "%florist%",
		" 100% fun ": `%100\% fun%`,
		"dj_booth":   `%dj\_booth%`,
		`a\b`:        `%a\\b%`,
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSocialQuery(t *testing.T) {
	q, args := socialQuery(Filter{Category: "photographers", City: "Seattle", State: "WA", Limit: 20})
	if !strings.Contains(q, "FROM instagram_vendors") {
		t.Errorf("unexpected table: %s", q)
	}
	if !strings.Contains(q, "category = $1") || !strings.Contains(q, "city ILIKE $2") || !strings.Contains(q, "LIMIT $4") {
		t.Errorf("unexpected placeholders: %s", q)
	}
	if len(args) != 4 || args[0] != "photographers" || args[1] != "%Seattle%" || args[3] != 20 {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestDirectoryQueryFreeText(t *testing.T) {
	q, args := directoryQuery(Filter{Text: "coffee cart", Limit: 30})
	if !strings.Contains(q, "business_name ILIKE $1 OR description ILIKE $1") {
		t.Errorf("expected free-text clause: %s", q)
	}
	if strings.Contains(q, "city ILIKE") {
		t.Error("location filter requires both city and state")
	}
	if len(args) != 2 || args[0] != "%coffee cart%" || args[1] != 30 {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestDirectoryQueryCategory(t *testing.T) {
	q, args := directoryQuery(Filter{Category: "florists", City: "Boise", State: "ID", Limit: 30})
	if !strings.Contains(q, "category = $1") || strings.Contains(q, "description ILIKE") {
		t.Errorf("expected category clause only: %s", q)
	}
	if len(args) != 4 {
		t.Errorf("expected 4 args, got %v", args)
	}
}

func TestGenericQuery(t *testing.T) {
	q, args := genericQuery(Filter{Text: "DJ", City: "Austin", State: "TX", Limit: 20})
	if !strings.Contains(q, "FROM vendors\n") || !strings.Contains(q, "category ILIKE $1") {
		t.Errorf("unexpected query: %s", q)
	}
	if args[2] != "%TX%" {
		t.Errorf("unexpected state arg: %v", args[2])
	}
}
