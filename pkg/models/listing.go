package models

// SourceKind identifies which collection produced a listing.
type SourceKind string

const (
	KindScrapedSocial     SourceKind = "scraped-social"
	KindBusinessDirectory SourceKind = "business-directory"
	KindGenericRecord     SourceKind = "generic-record"
	KindExternalProvider  SourceKind = "external-provider"
)

// Rating is an aggregate review score.
type Rating struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// VendorListing is the canonical shape every source is normalized into.
// Empty strings and nil pointers mean the field was absent at the source.
type VendorListing struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Rating       *Rating    `json:"rating,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Address      string     `json:"address,omitempty"`
	WebsiteURL   string     `json:"websiteUrl,omitempty"`
	ExternalID   string     `json:"externalId"`
	PrimaryImage string     `json:"primaryImage,omitempty"`
	Images       []string   `json:"images"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	SourceKind   SourceKind `json:"sourceKind"`

	InstagramHandle string `json:"instagramHandle,omitempty"`
	FollowerCount   *int64 `json:"followerCount,omitempty"`

	// Synthetic marks placeholder listings produced without provider credentials.
	Synthetic bool `json:"synthetic,omitempty"`
}

// SourceQueryOutcome is one source's contribution to a single aggregation.
type SourceQueryOutcome struct {
	SourceKind SourceKind
	Listings   []VendorListing
	Succeeded  bool
	// Skipped is set when the source was not applicable, e.g. no category mapping.
	Skipped  bool
	Err      error
	Duration int64
}
