package aggregate

import (
	"context"
	"errors"

	"github.com/pario-ai/vendorsearch/pkg/models"
	"github.com/pario-ai/vendorsearch/pkg/normalize"
	"github.com/pario-ai/vendorsearch/pkg/vendordb"
)

// ErrNotApplicable is returned by a source that cannot serve the query,
// e.g. a category-only source without a category mapping. The aggregator
// reports it as skipped rather than failed.
var ErrNotApplicable = errors.New("source not applicable")

// Query is the per-request input handed to every source.
type Query struct {
	Keyword  string
	Category string // empty when no category rule matched
	City     string
	State    string
}

// Source is one internal vendor collection.
type Source interface {
	Kind() models.SourceKind
	Search(ctx context.Context, q Query) ([]models.VendorListing, error)
}

// Collections is the raw query surface of the vendor database. *vendordb.DB implements it.
type Collections interface {
	SocialProfiles(ctx context.Context, f vendordb.Filter) ([]models.SocialProfile, error)
	DirectoryVendors(ctx context.Context, f vendordb.Filter) ([]models.DirectoryVendor, error)
	GenericVendors(ctx context.Context, f vendordb.Filter) ([]models.GenericVendor, error)
}

// Limits caps the rows read from each collection.
type Limits struct {
	Social    int
	Directory int
	Generic   int
}

// DefaultLimits matches the page sizes the collections were tuned for.
var DefaultLimits = Limits{Social: 20, Directory: 30, Generic: 20}

// DefaultSources returns the three collection sources in their fixed merge
// order: social, directory, generic.
func DefaultSources(c Collections, limits Limits) []Source {
	if limits.Social <= 0 {
		limits.Social = DefaultLimits.Social
	}
	if limits.Directory <= 0 {
		limits.Directory = DefaultLimits.Directory
	}
	if limits.Generic <= 0 {
		limits.Generic = DefaultLimits.Generic
	}
	return []Source{
		&socialSource{c: c, limit: limits.Social},
		&directorySource{c: c, limit: limits.Directory},
		&genericSource{c: c, limit: limits.Generic},
	}
}

type socialSource struct {
	c     Collections
	limit int
}

func (s *socialSource) Kind() models.SourceKind { return models.KindScrapedSocial }

func (s *socialSource) Search(ctx context.Context, q Query) ([]models.VendorListing, error) {
	if q.Category == "" {
		return nil, ErrNotApplicable
	}
	rows, err := s.c.SocialProfiles(ctx, vendordb.Filter{Category: q.Category, City: q.City, State: q.State, Limit: s.limit})
	if err != nil {
		return nil, err
	}
	return normalize.Map(rows, normalize.Social), nil
}

type directorySource struct {
	c     Collections
	limit int
}

func (s *directorySource) Kind() models.SourceKind { return models.KindBusinessDirectory }

func (s *directorySource) Search(ctx context.Context, q Query) ([]models.VendorListing, error) {
	f := vendordb.Filter{City: q.City, State: q.State, Limit: s.limit}
	if q.Category != "" {
		f.Category = q.Category
	} else {
		f.Text = q.Keyword
	}
	rows, err := s.c.DirectoryVendors(ctx, f)
	if err != nil {
		return nil, err
	}
	return normalize.Map(rows, normalize.Directory), nil
}

type genericSource struct {
	c     Collections
	limit int
}

func (s *genericSource) Kind() models.SourceKind { return models.KindGenericRecord }

func (s *genericSource) Search(ctx context.Context, q Query) ([]models.VendorListing, error) {
	rows, err := s.c.GenericVendors(ctx, vendordb.Filter{Text: q.Keyword, City: q.City, State: q.State, Limit: s.limit})
	if err != nil {
		return nil, err
	}
	return normalize.Map(rows, normalize.Generic), nil
}
