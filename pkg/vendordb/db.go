// Package vendordb reads the vendor collections and the provider location
// table from Postgres.
package vendordb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Filter narrows a collection query. Category selects exact category
// matching; Text selects case-insensitive substring matching.
type Filter struct {
	Category string
	Text     string
	City     string
	State    string
	Limit    int
}

// DB is a pooled connection to the vendor database.
type DB struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects to the vendor database at url.
func New(ctx context.Context, url string, maxConns int32, log *zap.Logger) (*DB, error) {
	log = logging.Named(log, "vendordb")

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse vendor database url: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create vendor pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping vendor database: %w", err)
	}

	log.Info("vendor database connection established", zap.Int32("max_conns", poolConfig.MaxConns))
	return &DB{pool: pool, log: log}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// SocialProfiles queries the scraped Instagram collection. It requires a category.
func (db *DB) SocialProfiles(ctx context.Context, f Filter) ([]models.SocialProfile, error) {
	query, args := socialQuery(f)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query instagram_vendors: %w", err)
	}
	defer rows.Close()

	var out []models.SocialProfile
	for rows.Next() {
		var p models.SocialProfile
		if err := rows.Scan(
			&p.ID, &p.BusinessName, &p.InstagramHandle, &p.Bio, &p.Phone, &p.Location,
			&p.WebsiteURL, &p.ProfileImageURL, &p.City, &p.State, &p.FollowerCount,
		); err != nil {
			return nil, fmt.Errorf("scan instagram_vendors: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DirectoryVendors queries the business-directory collection.
func (db *DB) DirectoryVendors(ctx context.Context, f Filter) ([]models.DirectoryVendor, error) {
	query, args := directoryQuery(f)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vendors_google: %w", err)
	}
	defer rows.Close()

	var out []models.DirectoryVendor
	for rows.Next() {
		var v models.DirectoryVendor
		if err := rows.Scan(
			&v.ID, &v.PlaceID, &v.BusinessName, &v.Description, &v.Rating, &v.ReviewCount,
			&v.Phone, &v.Address, &v.WebsiteURL, &v.Images, &v.Latitude, &v.Longitude,
			&v.City, &v.State,
		); err != nil {
			return nil, fmt.Errorf("scan vendors_google: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GenericVendors queries the general vendors collection.
func (db *DB) GenericVendors(ctx context.Context, f Filter) ([]models.GenericVendor, error) {
	query, args := genericQuery(f)
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	var out []models.GenericVendor
	for rows.Next() {
		var v models.GenericVendor
		if err := rows.Scan(
			&v.ID, &v.BusinessName, &v.Description, &v.Category, &v.Rating,
			&v.Phone, &v.Address, &v.Website, &v.City, &v.State,
		); err != nil {
			return nil, fmt.Errorf("scan vendors: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LocationCode looks up the provider location code for a city. The bool is
// false when the table has no matching city row.
func (db *DB) LocationCode(ctx context.Context, city, state string) (int, bool, error) {
	var code int
	err := db.pool.QueryRow(ctx, locationQuery, city, state).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query dataforseo_locations: %w", err)
	}
	return code, true, nil
}

const locationQuery = `
	SELECT location_code FROM dataforseo_locations
	WHERE lower(location_name) = lower($1)
	  AND lower(state_name) = lower($2)
	  AND lower(location_type) = 'city'
	LIMIT 1`

// args accumulates positional parameters for a pgx query.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

func locationClauses(f Filter, a *args) []string {
	if f.City == "" || f.State == "" {
		return nil
	}
	return []string{
		"city ILIKE " + a.add(likePattern(f.City)),
		"state ILIKE " + a.add(likePattern(f.State)),
	}
}

func socialQuery(f Filter) (string, []any) {
	var a args
	where := []string{"category = " + a.add(f.Category)}
	where = append(where, locationClauses(f, &a)...)
	query := `SELECT id, business_name, instagram_handle, bio, phone, location, website_url,
		profile_image_url, city, state, follower_count
		FROM instagram_vendors
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY follower_count DESC NULLS LAST
		LIMIT ` + a.add(f.Limit)
	return query, a
}

func directoryQuery(f Filter) (string, []any) {
	var a args
	var where []string
	if f.Category != "" {
		where = append(where, "category = "+a.add(f.Category))
	} else {
		p := a.add(likePattern(f.Text))
		where = append(where, "(business_name ILIKE "+p+" OR description ILIKE "+p+")")
	}
	where = append(where, locationClauses(f, &a)...)
	query := `SELECT id, place_id, business_name, description, rating, review_count, phone,
		address, website_url, images, latitude, longitude, city, state
		FROM vendors_google
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY rating DESC NULLS LAST, review_count DESC NULLS LAST
		LIMIT ` + a.add(f.Limit)
	return query, a
}

func genericQuery(f Filter) (string, []any) {
	var a args
	p := a.add(likePattern(f.Text))
	where := []string{"(business_name ILIKE " + p + " OR category ILIKE " + p + ")"}
	where = append(where, locationClauses(f, &a)...)
	query := `SELECT id, business_name, description, category, rating, phone, address,
		website, city, state
		FROM vendors
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY rating DESC NULLS LAST
		LIMIT ` + a.add(f.Limit)
	return query, a
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps s for a substring ILIKE match, escaping wildcards.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}
