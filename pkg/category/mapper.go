package category

import (
	"fmt"
	"strings"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

// DefaultRules is the built-in keyword table, in priority order.
var DefaultRules = []models.CategoryRule{
	{Pattern: "photographer", Category: "photographers"},
	{Pattern: "wedding planner", Category: "wedding-planners"},
	{Pattern: "planner", Category: "wedding-planners"},
	{Pattern: "videographer", Category: "videographers"},
	{Pattern: "florist", Category: "florists"},
	{Pattern: "caterer", Category: "caterers"},
	{Pattern: "venue", Category: "venues"},
	{Pattern: "dj", Category: "djs-and-bands"},
	{Pattern: "band", Category: "djs-and-bands"},
	{Pattern: "cake", Category: "cake-designers"},
	{Pattern: "bridal", Category: "bridal-shops"},
	{Pattern: "makeup", Category: "makeup-artists"},
	{Pattern: "hair", Category: "hair-stylists"},
}

// Mapper resolves free-text keywords to canonical category identifiers.
type Mapper struct {
	rules []models.CategoryRule
}

// New creates a Mapper. An empty rule list selects DefaultRules.
func New(rules []models.CategoryRule) (*Mapper, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	normalized := make([]models.CategoryRule, 0, len(rules))
	for i, r := range rules {
		pattern := strings.ToLower(strings.TrimSpace(r.Pattern))
		if pattern == "" || strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("category rule %d: pattern and category are required", i)
		}
		normalized = append(normalized, models.CategoryRule{Pattern: pattern, Category: strings.TrimSpace(r.Category)})
	}
	return &Mapper{rules: normalized}, nil
}

// Resolve returns the category of the first rule whose pattern occurs in
// keyword, case-insensitively.
func (m *Mapper) Resolve(keyword string) (string, bool) {
	kw := strings.ToLower(keyword)
	for _, r := range m.rules {
		if strings.Contains(kw, r.Pattern) {
			return r.Category, true
		}
	}
	return "", false
}

// Rules returns a copy of the active rule table.
func (m *Mapper) Rules() []models.CategoryRule {
	out := make([]models.CategoryRule, len(m.rules))
	copy(out, m.rules)
	return out
}
