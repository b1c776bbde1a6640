package models

// SocialProfile is a row from the scraped Instagram vendor collection.
type SocialProfile struct {
	ID              int64
	BusinessName    *string
	InstagramHandle *string
	Bio             *string
	Phone           *string
	Location        *string
	WebsiteURL      *string
	ProfileImageURL *string
	City            *string
	State           *string
	FollowerCount   *int64
}

// DirectoryVendor is a row from the business-directory (Google Places) collection.
type DirectoryVendor struct {
	ID           int64
	PlaceID      *string
	BusinessName *string
	Description  *string
	Rating       *float64
	ReviewCount  *int
	Phone        *string
	Address      *string
	WebsiteURL   *string
	Images       []string
	Latitude     *float64
	Longitude    *float64
	City         *string
	State        *string
}

// GenericVendor is a row from the general vendors collection.
type GenericVendor struct {
	ID           int64
	BusinessName *string
	Description  *string
	Category     *string
	Rating       *float64
	Phone        *string
	Address      *string
	Website      *string
	City         *string
	State        *string
}

// ProviderRating is the rating block of a provider item.
type ProviderRating struct {
	Value      *float64 `json:"value"`
	VotesCount *int     `json:"votes_count"`
}

// ProviderItem is one Google Maps result returned by the external provider.
type ProviderItem struct {
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Rating      *ProviderRating `json:"rating"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	URL         string          `json:"url"`
	PlaceID     string          `json:"place_id"`
	CID         string          `json:"cid"`
	MainImage   string          `json:"main_image"`
	Logo        string          `json:"logo"`
	Images      []string        `json:"images"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
}
