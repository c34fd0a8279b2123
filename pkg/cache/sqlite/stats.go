package sqlite

import (
	"fmt"
	"strconv"
	"time"

	"github.com/markwatch/markwatch/pkg/models"
)

// Stat-event operations, append-only in cache_stats.
const (
	opHit    = "hit"
	opMiss   = "miss"
	opInsert = "insert"
)

// Remote services whose calls the cache saves. Keys into the persisted
// savings counters.
const (
	ServiceTSDR       = "tsdr"
	ServiceClassifier = "classifier"
)

// statsWindow is the trailing span over which hit rate and latency
// averages are computed.
const statsWindow = 24 * time.Hour

// recordStat appends one stat event. Best effort: a failure to log must
// not fail the lookup or write that produced it.
func (c *Cache) recordStat(op, serial string, elapsed time.Duration) {
	_, _ = c.db.Exec(
		`INSERT INTO cache_stats (timestamp, operation, serial_number, response_time_us)
		 VALUES (?, ?, ?, ?)`,
		time.Now().UTC(), op, serial, elapsed.Microseconds(),
	)
}

// IncrementSavings bumps the cumulative saved-call counter for a remote
// service (ServiceTSDR or ServiceClassifier). Unlike the rolling hit/miss
// window, these counters are never reset.
func (c *Cache) IncrementSavings(service string) error {
	switch service {
	case ServiceTSDR, ServiceClassifier:
	default:
		return fmt.Errorf("increment savings: unknown service %q", service)
	}
	_, err := c.db.Exec(
		`UPDATE cache_config
		 SET value = CAST((CAST(value AS INTEGER) + 1) AS TEXT), updated_at = ?
		 WHERE key = ?`,
		time.Now().UTC(), service+"_calls_saved",
	)
	if err != nil {
		return fmt.Errorf("increment savings: %w", err)
	}
	return nil
}

// Statistics aggregates a snapshot: entry totals with a fresh/stale
// split, hit/miss counts and latency averages over the trailing 24
// hours, and the cumulative saved-call counters. All fields are zero
// when no data exists yet.
func (c *Cache) Statistics() (models.CacheStatistics, error) {
	stats := models.CacheStatistics{TTLDays: int(c.ttl / (24 * time.Hour))}
	now := time.Now().UTC()

	err := c.db.QueryRow(`SELECT COUNT(*) FROM trademark_cache`).Scan(&stats.TotalEntries)
	if err != nil {
		return models.CacheStatistics{}, fmt.Errorf("cache statistics: %w", err)
	}

	err = c.db.QueryRow(
		`SELECT COUNT(*) FROM trademark_cache WHERE last_updated <= ?`,
		now.Add(-c.ttl),
	).Scan(&stats.StaleEntries)
	if err != nil {
		return models.CacheStatistics{}, fmt.Errorf("cache statistics: %w", err)
	}
	stats.FreshEntries = stats.TotalEntries - stats.StaleEntries

	rows, err := c.db.Query(
		`SELECT operation, COUNT(*), AVG(response_time_us)
		 FROM cache_stats WHERE timestamp > ? GROUP BY operation`,
		now.Add(-statsWindow),
	)
	if err != nil {
		return models.CacheStatistics{}, fmt.Errorf("cache statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			op    string
			count int64
			avgUs float64
		)
		if err := rows.Scan(&op, &count, &avgUs); err != nil {
			return models.CacheStatistics{}, fmt.Errorf("scan stat row: %w", err)
		}
		switch op {
		case opHit:
			stats.Hits24h = count
			stats.AvgHitTime = time.Duration(avgUs) * time.Microsecond
		case opMiss:
			stats.Misses24h = count
			stats.AvgMissTime = time.Duration(avgUs) * time.Microsecond
		}
	}
	if err := rows.Err(); err != nil {
		return models.CacheStatistics{}, fmt.Errorf("cache statistics: %w", err)
	}

	if total := stats.Hits24h + stats.Misses24h; total > 0 {
		stats.HitRate24h = float64(stats.Hits24h) / float64(total) * 100
	}

	saved, err := c.savedCounters()
	if err != nil {
		return models.CacheStatistics{}, err
	}
	stats.TSDRCallsSaved = saved[ServiceTSDR+"_calls_saved"]
	stats.ClassifierCallsSaved = saved[ServiceClassifier+"_calls_saved"]

	return stats, nil
}

func (c *Cache) savedCounters() (map[string]int64, error) {
	rows, err := c.db.Query(
		`SELECT key, value FROM cache_config
		 WHERE key IN ('tsdr_calls_saved', 'classifier_calls_saved')`,
	)
	if err != nil {
		return nil, fmt.Errorf("read savings counters: %w", err)
	}
	defer rows.Close()

	saved := make(map[string]int64)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan savings counter: %w", err)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse savings counter %s: %w", key, err)
		}
		saved[key] = n
	}
	return saved, rows.Err()
}

// PruneStats deletes stat events older than the given age and returns
// the number removed. Retention is an explicit operator action; the
// cache never prunes its stat log on its own.
func (c *Cache) PruneStats(olderThan time.Duration) (int64, error) {
	res, err := c.db.Exec(
		`DELETE FROM cache_stats WHERE timestamp <= ?`,
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("prune stats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune stats: %w", err)
	}
	return n, nil
}
