package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/markwatch/markwatch/pkg/models"
)

// Default freshness windows, in days. Trademark status data changes
// rarely, so successful lookups stay usable for a month; failure entries
// expire quickly so transient outages are retried the next day.
const (
	DefaultTTLDays      = 30
	DefaultErrorTTLDays = 1
)

// ErrEmptySerial is returned when a caller passes an empty serial number.
var ErrEmptySerial = errors.New("cache: empty serial number")

// Cache is a persistent, TTL-bounded store of trademark lookup results
// backed by SQLite. One row per serial number; writes are upserts.
// Safe for concurrent use within a single process.
type Cache struct {
	db       *sql.DB
	ttl      time.Duration
	errorTTL time.Duration
}

const createSchema = `
CREATE TABLE IF NOT EXISTS trademark_cache (
	serial_number TEXT PRIMARY KEY,
	mark_name TEXT NOT NULL DEFAULT '',
	filing_date TEXT NOT NULL DEFAULT '',
	mark_type INTEGER NOT NULL DEFAULT 0,
	us_classes TEXT NOT NULL DEFAULT 'null',
	international_classes TEXT NOT NULL DEFAULT 'null',
	description TEXT NOT NULL DEFAULT '',
	last_updated DATETIME NOT NULL,
	fetch_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_trademark_cache_updated ON trademark_cache(last_updated);

CREATE TABLE IF NOT EXISTS cache_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	operation TEXT NOT NULL,
	serial_number TEXT NOT NULL,
	response_time_us INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_stats_time ON cache_stats(timestamp);

CREATE TABLE IF NOT EXISTS cache_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// New opens (or creates) the cache database at dbPath. TTLs are given in
// days; zero or negative values fall back to the defaults.
func New(dbPath string, ttlDays, errorTTLDays int) (*Cache, error) {
	if ttlDays <= 0 {
		ttlDays = DefaultTTLDays
	}
	if errorTTLDays <= 0 {
		errorTTLDays = DefaultErrorTTLDays
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// One connection serializes writers and avoids SQLITE_BUSY under
	// concurrent puts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	c := &Cache{
		db:       db,
		ttl:      time.Duration(ttlDays) * 24 * time.Hour,
		errorTTL: time.Duration(errorTTLDays) * 24 * time.Hour,
	}
	if err := c.initConfig(ttlDays); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initConfig(ttlDays int) error {
	now := time.Now().UTC()
	_, err := c.db.Exec(
		`INSERT OR IGNORE INTO cache_config (key, value, updated_at) VALUES
			('ttl_days', ?, ?),
			('tsdr_calls_saved', '0', ?),
			('classifier_calls_saved', '0', ?)`,
		fmt.Sprint(ttlDays), now, now, now,
	)
	if err != nil {
		return fmt.Errorf("init cache config: %w", err)
	}
	return nil
}

const entryColumns = `serial_number, mark_name, filing_date, mark_type,
	us_classes, international_classes, description,
	last_updated, fetch_count, error_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.CacheEntry, error) {
	var (
		e        models.CacheEntry
		markType int
		usJSON   []byte
		intlJSON []byte
	)
	err := row.Scan(
		&e.SerialNumber, &e.MarkName, &e.FilingDate, &markType,
		&usJSON, &intlJSON, &e.Description,
		&e.LastUpdated, &e.FetchCount, &e.Error,
	)
	if err != nil {
		return models.CacheEntry{}, err
	}
	e.MarkType = models.MarkType(markType)
	if err := json.Unmarshal(usJSON, &e.USClasses); err != nil {
		return models.CacheEntry{}, fmt.Errorf("decode us_classes: %w", err)
	}
	if err := json.Unmarshal(intlJSON, &e.InternationalClasses); err != nil {
		return models.CacheEntry{}, fmt.Errorf("decode international_classes: %w", err)
	}
	return e, nil
}

// Get looks up the entry for a serial number. The second return value is
// true only for a fresh entry (a hit). Absent rows, rows older than the
// TTL, and storage faults all report a miss so the caller can fall back
// to the remote lookup path. A stale row is ignored, not deleted.
//
// A hit may still carry a failure: entries written with a non-empty error
// message report Failed() and use the shorter error TTL.
func (c *Cache) Get(serial string) (models.CacheEntry, bool) {
	if serial == "" {
		return models.CacheEntry{}, false
	}
	start := time.Now()

	row := c.db.QueryRow(
		`SELECT `+entryColumns+` FROM trademark_cache WHERE serial_number = ?`,
		serial,
	)
	e, err := scanEntry(row)
	if err != nil {
		c.recordStat(opMiss, serial, time.Since(start))
		return models.CacheEntry{}, false
	}

	ttl := c.ttl
	if e.Failed() {
		ttl = c.errorTTL
	}
	if time.Since(e.LastUpdated) > ttl {
		c.recordStat(opMiss, serial, time.Since(start))
		return models.CacheEntry{}, false
	}

	c.recordStat(opHit, serial, time.Since(start))
	return e, true
}

// Put upserts the entry for a serial number, replacing any previous row
// and stamping it with the current time. A non-empty lookupErr stores a
// failure entry; the payload may be zero in that case. The per-entry
// fetch count increments only on successful writes and is preserved
// across failure writes. The single INSERT OR REPLACE keeps concurrent
// readers from ever observing a partial entry.
func (c *Cache) Put(serial string, mark models.Trademark, lookupErr string) error {
	if serial == "" {
		return fmt.Errorf("cache put: %w", ErrEmptySerial)
	}
	start := time.Now()

	usJSON, err := json.Marshal(mark.USClasses)
	if err != nil {
		return fmt.Errorf("cache put: encode us_classes: %w", err)
	}
	intlJSON, err := json.Marshal(mark.InternationalClasses)
	if err != nil {
		return fmt.Errorf("cache put: encode international_classes: %w", err)
	}

	inc := 1
	if lookupErr != "" {
		inc = 0
	}

	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO trademark_cache (
			serial_number, mark_name, filing_date, mark_type,
			us_classes, international_classes, description,
			last_updated, fetch_count, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			COALESCE((SELECT fetch_count FROM trademark_cache WHERE serial_number = ?), 0) + ?,
			?)`,
		serial, mark.MarkName, mark.FilingDate, int(mark.MarkType),
		string(usJSON), string(intlJSON), mark.Description,
		time.Now().UTC(), serial, inc, lookupErr,
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	c.recordStat(opInsert, serial, time.Since(start))
	return nil
}

// ClearStale deletes every entry older than the TTL and returns the
// number deleted. Stat events and config are untouched.
func (c *Cache) ClearStale() (int64, error) {
	res, err := c.db.Exec(
		`DELETE FROM trademark_cache WHERE last_updated <= ?`,
		time.Now().UTC().Add(-c.ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("cache clear stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache clear stale: %w", err)
	}
	return n, nil
}

// ClearAll deletes every entry regardless of freshness. Stat events and
// config are untouched.
func (c *Cache) ClearAll() error {
	if _, err := c.db.Exec(`DELETE FROM trademark_cache`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Serials returns all cached serial numbers, most recently updated first.
func (c *Cache) Serials() ([]string, error) {
	rows, err := c.db.Query(
		`SELECT serial_number FROM trademark_cache ORDER BY last_updated DESC, serial_number`,
	)
	if err != nil {
		return nil, fmt.Errorf("cache serials: %w", err)
	}
	defer rows.Close()

	var serials []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan serial: %w", err)
		}
		serials = append(serials, s)
	}
	return serials, rows.Err()
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
