// Package sqlstore is a cache generation kept in a SQL table. SQLite is the
// default; Postgres serves tables shared with other services.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/vendorsearch/pkg/cache"
	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

var (
	_ cache.Generation = (*Store)(nil)
	_ cache.Clearer    = (*Store)(nil)
	_ cache.Counter    = (*Store)(nil)
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configures a SQL cache generation.
type Options struct {
	Name   string
	Driver string
	DSN    string
	Table  string
	// Migrate creates the table and index when missing. Disable it for
	// tables owned by another deployment.
	Migrate bool
	Logger  *zap.Logger
}

// Store is one append-only cache table. Rows are never updated; readers
// pick the newest unexpired successful row per key.
type Store struct {
	name     string
	driver   string
	table    string
	db       *sql.DB
	log      *zap.Logger
	coreOnly atomic.Bool
}

// schema takes the table name and the id column definition.
const schema = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id %[2]s,
	search_key TEXT NOT NULL,
	results TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	is_successful INTEGER NOT NULL DEFAULT 1,
	created_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL,
	api_cost DOUBLE PRECISION,
	api_response_time_ms BIGINT,
	is_synthetic INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_key ON %[1]s(search_key, expires_at);
`

var idColumn = map[string]string{
	DriverSQLite:   "INTEGER PRIMARY KEY AUTOINCREMENT",
	DriverPostgres: "BIGSERIAL PRIMARY KEY",
}

// Open connects to the generation's database and optionally migrates it.
func Open(opts Options) (*Store, error) {
	if !validIdent(opts.Table) {
		return nil, fmt.Errorf("invalid cache table name %q", opts.Table)
	}
	if opts.Name == "" {
		opts.Name = opts.Table
	}

	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	id, ok := idColumn[opts.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported cache driver %q", opts.Driver)
	}

	db, err := sql.Open(opts.Driver, dsnFor(opts.Driver, opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if opts.Migrate {
		for _, stmt := range strings.Split(fmt.Sprintf(schema, opts.Table, id), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.Exec(stmt); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate cache table %s: %w", opts.Table, err)
			}
		}
	}

	return &Store{
		name:   opts.Name,
		driver: opts.Driver,
		table:  opts.Table,
		db:     db,
		log:    logging.Named(opts.Logger, "sqlstore").With(zap.String("generation", opts.Name)),
	}, nil
}

func dsnFor(driver, dsn string) string {
	if driver == DriverSQLite && !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "_pragma=busy_timeout(5000)"
	}
	return dsn
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Name returns the generation name.
func (s *Store) Name() string { return s.name }

// Lookup returns the newest successful unexpired entry for key, or nil.
// Tables that predate is_successful and the cost columns are read by key and
// expiry alone; every row in them counts as successful.
func (s *Store) Lookup(ctx context.Context, key models.CacheKey, now time.Time) (*models.CacheEntry, error) {
	if !s.coreOnly.Load() {
		entry, err := s.lookup(ctx, key, now, true)
		if !isSchemaMismatch(err) {
			return entry, err
		}
		s.log.Info("cache table lacks optional columns, reading core columns only", zap.Error(err))
		s.coreOnly.Store(true)
	}
	return s.lookup(ctx, key, now, false)
}

func (s *Store) lookup(ctx context.Context, key models.CacheKey, now time.Time, full bool) (*models.CacheEntry, error) {
	cols := "results, created_at, expires_at"
	where := "search_key = ? AND expires_at > ?"
	order := "created_at DESC"
	if full {
		cols += ", result_count, api_cost, api_response_time_ms, is_synthetic"
		where += " AND is_successful = 1"
		order += ", id DESC"
	}
	query := s.rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT 1`, cols, s.table, where, order))

	var (
		results           string
		resultCount       sql.NullInt64
		createdAt, expiry int64
		cost              sql.NullFloat64
		responseMs        sql.NullInt64
		synthetic         sql.NullInt64
	)
	dest := []any{&results, &createdAt, &expiry}
	if full {
		dest = append(dest, &resultCount, &cost, &responseMs, &synthetic)
	}

	err := s.db.QueryRowContext(ctx, query, string(key), now.UnixMilli()).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}

	entry := &models.CacheEntry{
		Key:               key,
		CreatedAt:         time.UnixMilli(createdAt),
		ExpiresAt:         time.UnixMilli(expiry),
		IsSuccessful:      true,
		Cost:              cost.Float64,
		APIResponseTimeMs: responseMs.Int64,
		Synthetic:         synthetic.Int64 != 0,
	}
	if err := json.Unmarshal([]byte(results), &entry.Results); err != nil {
		return nil, fmt.Errorf("decode cached results: %w", err)
	}
	entry.ResultCount = len(entry.Results)
	if resultCount.Valid {
		entry.ResultCount = int(resultCount.Int64)
	}
	return entry, nil
}

// Save appends entry as a new row.
func (s *Store) Save(ctx context.Context, entry models.CacheEntry, opts cache.SaveOptions) error {
	results, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	cols := "search_key, results, result_count, is_successful, created_at, expires_at"
	args := []any{
		string(entry.Key), string(results), entry.ResultCount, boolInt(entry.IsSuccessful),
		entry.CreatedAt.UnixMilli(), entry.ExpiresAt.UnixMilli(),
	}
	if !opts.SkipOptional {
		cols += ", api_cost, api_response_time_ms, is_synthetic"
		args = append(args, entry.Cost, entry.APIResponseTimeMs, boolInt(entry.Synthetic))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	query := s.rebind(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, s.table, cols, placeholders))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("cache insert: %w", classify(err))
	}
	return nil
}

// Count returns the number of stored rows, expired included.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}

// Clear removes rows. If expiredOnly is true, only rows expired at now are removed.
func (s *Store) Clear(ctx context.Context, expiredOnly bool, now time.Time) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if expiredOnly {
		res, err = s.db.ExecContext(ctx, s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, s.table)), now.UnixMilli())
	} else {
		res, err = s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	}
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// classify maps missing-column errors from either driver to cache.ErrSchemaMismatch.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42703" {
		return fmt.Errorf("%w: %v", cache.ErrSchemaMismatch, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "no such column") || strings.Contains(msg, "has no column named") {
		return fmt.Errorf("%w: %v", cache.ErrSchemaMismatch, err)
	}
	return err
}

func isSchemaMismatch(err error) bool {
	return errors.Is(err, cache.ErrSchemaMismatch)
}
