package paginate

import (
	"fmt"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Page is one window over a result set.
type Page struct {
	Items   []models.VendorListing
	HasMore bool
}

// Window returns listings[(page-1)*limit : page*limit]. A page past the end
// yields no items. Page and limit must be positive.
func Window(listings []models.VendorListing, page, limit int) (Page, error) {
	if page <= 0 {
		return Page{}, fmt.Errorf("%w: page must be >= 1", models.ErrInvalidRequest)
	}
	if limit <= 0 {
		return Page{}, fmt.Errorf("%w: limit must be >= 1", models.ErrInvalidRequest)
	}

	// Compare page counts before multiplying; (page-1)*limit can overflow.
	pages := len(listings)/limit + min(len(listings)%limit, 1)
	if page-1 >= pages {
		return Page{Items: []models.VendorListing{}}, nil
	}
	offset := (page - 1) * limit
	end := min(offset+limit, len(listings))
	return Page{
		Items:   listings[offset:end],
		HasMore: offset+limit < len(listings),
	}, nil
}
