package provider

import (
	"fmt"
	"strings"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Synthetic returns deterministic placeholder listings for req. They are
// tagged Synthetic so they can be told apart from real provider data.
func Synthetic(req models.SearchRequest) []models.VendorListing {
	keyword := strings.TrimSpace(req.Keyword)
	label := keyword
	idPart := "general"
	if sub, ok := req.SubcategoryValue(); ok && strings.TrimSpace(sub) != "" {
		sub = strings.TrimSpace(sub)
		label = sub + " " + keyword
		idPart = strings.ToLower(strings.Join(strings.Fields(sub), "_"))
	}
	loc := req.Location()

	return []models.VendorListing{
		{
			Title:       fmt.Sprintf("%s in %s", label, loc),
			Description: fmt.Sprintf("Professional %s services in %s", strings.ToLower(label), loc),
			Address:     loc,
			ExternalID:  fmt.Sprintf("synthetic_%s_1", idPart),
			Images:      []string{},
			City:        req.City,
			State:       req.State,
			SourceKind:  models.KindExternalProvider,
			Synthetic:   true,
		},
		{
			Title:       fmt.Sprintf("Elite %s Services", label),
			Description: fmt.Sprintf("Top-rated %s serving %s and surrounding areas", strings.ToLower(label), loc),
			Address:     loc,
			ExternalID:  fmt.Sprintf("synthetic_%s_2", idPart),
			Images:      []string{},
			City:        req.City,
			State:       req.State,
			SourceKind:  models.KindExternalProvider,
			Synthetic:   true,
		},
	}
}
