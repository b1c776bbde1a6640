// Package normalize maps raw collection records and provider items onto
// models.VendorListing. Every mapping is total: missing fields stay empty.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinCityState(city, state string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	default:
		return firstNonEmpty(city, state)
	}
}

// Social maps an Instagram profile.
func Social(p models.SocialProfile) models.VendorListing {
	city, state := str(p.City), str(p.State)
	handle := str(p.InstagramHandle)
	image := str(p.ProfileImageURL)

	l := models.VendorListing{
		Title:           firstNonEmpty(str(p.BusinessName), handle),
		Description:     firstNonEmpty(str(p.Bio), "Wedding vendor on Instagram"),
		Phone:           str(p.Phone),
		Address:         firstNonEmpty(str(p.Location), joinCityState(city, state)),
		WebsiteURL:      str(p.WebsiteURL),
		ExternalID:      "instagram_" + strconv.FormatInt(p.ID, 10),
		PrimaryImage:    image,
		Images:          []string{},
		City:            city,
		State:           state,
		SourceKind:      models.KindScrapedSocial,
		InstagramHandle: handle,
		FollowerCount:   p.FollowerCount,
	}
	if image != "" {
		l.Images = append(l.Images, image)
	}
	return l
}

// Directory maps a business-directory vendor.
func Directory(v models.DirectoryVendor) models.VendorListing {
	l := models.VendorListing{
		Title:       str(v.BusinessName),
		Description: str(v.Description),
		Phone:       str(v.Phone),
		Address:     str(v.Address),
		WebsiteURL:  str(v.WebsiteURL),
		ExternalID:  firstNonEmpty(str(v.PlaceID), "google_"+strconv.FormatInt(v.ID, 10)),
		Images:      images(v.Images),
		City:        str(v.City),
		State:       str(v.State),
		Latitude:    v.Latitude,
		Longitude:   v.Longitude,
		SourceKind:  models.KindBusinessDirectory,
	}
	if len(l.Images) > 0 {
		l.PrimaryImage = l.Images[0]
	}
	if v.Rating != nil {
		l.Rating = &models.Rating{Value: *v.Rating}
		if v.ReviewCount != nil {
			l.Rating.Count = *v.ReviewCount
		}
	}
	return l
}

// Generic maps a general vendor record.
func Generic(v models.GenericVendor) models.VendorListing {
	city, state := str(v.City), str(v.State)
	l := models.VendorListing{
		Title:       str(v.BusinessName),
		Description: str(v.Description),
		Phone:       str(v.Phone),
		Address:     str(v.Address),
		WebsiteURL:  str(v.Website),
		ExternalID:  "vendor_" + strconv.FormatInt(v.ID, 10),
		Images:      []string{},
		City:        city,
		State:       state,
		SourceKind:  models.KindGenericRecord,
	}
	if l.Description == "" {
		if cat := str(v.Category); cat != "" {
			l.Description = fmt.Sprintf("%s in %s", cat, joinCityState(city, state))
		}
	}
	if v.Rating != nil {
		l.Rating = &models.Rating{Value: *v.Rating}
	}
	return l
}

// Provider maps an external provider item. The provider does not return
// structured city and state, so the request's values are used.
func Provider(item models.ProviderItem, city, state string) models.VendorListing {
	l := models.VendorListing{
		Title:        strings.TrimSpace(item.Title),
		Description:  strings.TrimSpace(item.Description),
		Phone:        strings.TrimSpace(item.Phone),
		Address:      strings.TrimSpace(item.Address),
		WebsiteURL:   strings.TrimSpace(item.URL),
		ExternalID:   firstNonEmpty(item.PlaceID, item.CID),
		PrimaryImage: firstNonEmpty(item.MainImage, item.Logo),
		Images:       images(item.Images),
		City:         city,
		State:        state,
		Latitude:     item.Latitude,
		Longitude:    item.Longitude,
		SourceKind:   models.KindExternalProvider,
	}
	if l.PrimaryImage != "" && len(l.Images) == 0 {
		l.Images = append(l.Images, l.PrimaryImage)
	}
	if item.Rating != nil && item.Rating.Value != nil {
		l.Rating = &models.Rating{Value: *item.Rating.Value}
		if item.Rating.VotesCount != nil {
			l.Rating.Count = *item.Rating.VotesCount
		}
	}
	return l
}

func images(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Map applies fn to every record.
func Map[T any](records []T, fn func(T) models.VendorListing) []models.VendorListing {
	out := make([]models.VendorListing, 0, len(records))
	for _, r := range records {
		out = append(out, fn(r))
	}
	return out
}
