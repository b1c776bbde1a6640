package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Tracker records and queries external provider spend.
type Tracker interface {
	// Record stores one provider call.
	Record(ctx context.Context, rec models.SpendRecord) error
	// TotalSince returns the summed cost of calls since a given time.
	TotalSince(ctx context.Context, since time.Time) (float64, error)
	// Recent returns the most recent calls since a given time, newest first.
	Recent(ctx context.Context, since time.Time, limit int) ([]models.SpendRecord, error)
	// DailySummary aggregates calls per UTC day since a given time.
	DailySummary(ctx context.Context, since time.Time) ([]models.SpendSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS spend_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cache_key TEXT NOT NULL,
	query TEXT NOT NULL,
	location_code INTEGER NOT NULL,
	cost REAL NOT NULL DEFAULT 0,
	response_ms INTEGER NOT NULL DEFAULT 0,
	result_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_spend_time ON spend_records(created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	// Add status column to spend_records if missing.
	if !columnExists(db, "spend_records", "status") {
		if _, err := db.Exec(`ALTER TABLE spend_records ADD COLUMN status TEXT NOT NULL DEFAULT 'ok'`); err != nil {
			db.Close()
			return nil, fmt.Errorf("add status column: %w", err)
		}
	}

	return &SQLiteTracker{db: db}, nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

// Record stores one provider call.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.SpendRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = models.SpendOK
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO spend_records (cache_key, query, location_code, cost, response_ms, result_count, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CacheKey, rec.Query, rec.LocationCode, rec.Cost, rec.ResponseMs, rec.ResultCount, string(rec.Status), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record spend: %w", err)
	}
	return nil
}

// TotalSince returns the summed cost of calls since a given time.
func (t *SQLiteTracker) TotalSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := t.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM spend_records WHERE created_at >= ?`,
		since.UnixMilli(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total spend: %w", err)
	}
	return total, nil
}

// Recent returns the most recent calls since a given time, newest first.
func (t *SQLiteTracker) Recent(ctx context.Context, since time.Time, limit int) ([]models.SpendRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, cache_key, query, location_code, cost, response_ms, result_count, status, created_at
		 FROM spend_records WHERE created_at >= ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		since.UnixMilli(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query spend: %w", err)
	}
	defer rows.Close()

	var records []models.SpendRecord
	for rows.Next() {
		var r models.SpendRecord
		var status string
		var created int64
		if err := rows.Scan(&r.ID, &r.CacheKey, &r.Query, &r.LocationCode, &r.Cost, &r.ResponseMs, &r.ResultCount, &status, &created); err != nil {
			return nil, fmt.Errorf("scan spend: %w", err)
		}
		r.Status = models.SpendStatus(status)
		r.CreatedAt = time.UnixMilli(created).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// DailySummary aggregates calls per UTC day since a given time, newest day first.
func (t *SQLiteTracker) DailySummary(ctx context.Context, since time.Time) ([]models.SpendSummary, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT date(created_at / 1000, 'unixepoch') AS day,
		        COUNT(*),
		        SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		        COALESCE(SUM(cost), 0),
		        COALESCE(SUM(result_count), 0),
		        COALESCE(AVG(response_ms), 0)
		 FROM spend_records WHERE created_at >= ?
		 GROUP BY day ORDER BY day DESC`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("spend summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.SpendSummary
	for rows.Next() {
		var s models.SpendSummary
		if err := rows.Scan(&s.Day, &s.Calls, &s.FailedCalls, &s.TotalCost, &s.TotalResults, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
