// Package searchlog keeps a SQLite record of served searches.
package searchlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/vendorsearch/pkg/logging"
	"github.com/pario-ai/vendorsearch/pkg/models"
)

// Logger writes and queries search log entries in a dedicated SQLite database.
type Logger struct {
	db            *sql.DB
	retentionDays int
	log           *zap.Logger
	done          chan struct{}
	wg            sync.WaitGroup
	now           func() time.Time
}

// New opens the search log database, creates the schema and starts the
// hourly retention loop. A retentionDays of zero or less keeps entries forever.
func New(dbPath string, retentionDays int, log *zap.Logger) (*Logger, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open search log db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate search log db: %w", err)
	}

	l := &Logger{
		db:            db,
		retentionDays: retentionDays,
		log:           logging.Named(log, "searchlog"),
		done:          make(chan struct{}),
		now:           time.Now,
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS search_log (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id    TEXT NOT NULL,
		cache_key     TEXT NOT NULL,
		keyword       TEXT NOT NULL,
		city          TEXT NOT NULL,
		state         TEXT NOT NULL,
		subcategory   TEXT NOT NULL DEFAULT '',
		source        TEXT NOT NULL DEFAULT '',
		total_results INTEGER NOT NULL DEFAULT 0,
		cost          REAL NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		failed_stage  TEXT NOT NULL DEFAULT '',
		shared        INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_search_log_created ON search_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_search_log_request ON search_log(request_id)`)
	return err
}

// Log inserts one entry.
func (l *Logger) Log(ctx context.Context, entry models.SearchLogEntry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	shared := 0
	if entry.Shared {
		shared = 1
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO search_log
		(request_id, cache_key, keyword, city, state, subcategory, source,
		 total_results, cost, latency_ms, failed_stage, shared, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.CacheKey, entry.Keyword, entry.City, entry.State,
		entry.Subcategory, entry.Source, entry.TotalResults, entry.Cost,
		entry.LatencyMs, entry.FailedStage, shared, entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	return nil
}

// Query returns entries matching opts, newest first.
func (l *Logger) Query(ctx context.Context, opts models.SearchLogQueryOpts) ([]models.SearchLogEntry, error) {
	q := `SELECT request_id, cache_key, keyword, city, state, subcategory, source,
		total_results, cost, latency_ms, failed_stage, shared, created_at
		FROM search_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Keyword != "" {
		q += " AND lower(keyword) LIKE ?"
		args = append(args, "%"+lowerTrim(opts.Keyword)+"%")
	}
	if opts.City != "" {
		q += " AND lower(city) = ?"
		args = append(args, lowerTrim(opts.City))
	}
	if opts.Source != "" {
		q += " AND source = ?"
		args = append(args, opts.Source)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UnixMilli())
	}

	q += " ORDER BY created_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query search log: %w", err)
	}
	defer rows.Close()

	var entries []models.SearchLogEntry
	for rows.Next() {
		var e models.SearchLogEntry
		var shared int
		var created int64
		if err := rows.Scan(
			&e.RequestID, &e.CacheKey, &e.Keyword, &e.City, &e.State,
			&e.Subcategory, &e.Source, &e.TotalResults, &e.Cost,
			&e.LatencyMs, &e.FailedStage, &shared, &created,
		); err != nil {
			return nil, fmt.Errorf("scan search log row: %w", err)
		}
		e.Shared = shared == 1
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns counts and provider cost grouped by result source and UTC day.
// Failed searches are grouped under the source "failed".
func (l *Logger) Stats(ctx context.Context) ([]models.SearchLogStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT CASE WHEN failed_stage != '' THEN 'failed' ELSE source END AS src,
		        date(created_at / 1000, 'unixepoch') AS day,
		        count(*), COALESCE(SUM(cost), 0)
		 FROM search_log GROUP BY src, day ORDER BY day DESC, src`)
	if err != nil {
		return nil, fmt.Errorf("search log stats: %w", err)
	}
	defer rows.Close()

	var stats []models.SearchLogStat
	for rows.Next() {
		var s models.SearchLogStat
		var day sql.NullString
		if err := rows.Scan(&s.Source, &day, &s.Count, &s.Cost); err != nil {
			return nil, fmt.Errorf("scan search log stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -l.retentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM search_log WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("search log cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				l.log.Warn("search log cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				l.log.Info("search log entries expired", zap.Int64("deleted", n))
			}
		}
	}
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
