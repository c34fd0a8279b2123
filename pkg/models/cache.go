package models

import (
	"sync/atomic"
	"time"
)

// CacheEntry is one cached lookup result, flat for export.
type CacheEntry struct {
	SerialNumber string `json:"serial_number"`
	Trademark
	LastUpdated time.Time `json:"last_updated"`
	FetchCount  int64     `json:"fetch_count"`
	Error       string    `json:"error,omitempty"`
}

// Failed reports whether the entry records a remote lookup failure
// rather than a usable result.
func (e CacheEntry) Failed() bool {
	return e.Error != ""
}

// CacheStatistics is a read-only snapshot of cache effectiveness.
// Hit/miss counts and latency averages cover the trailing 24 hours;
// the calls-saved counters are cumulative since the cache was created.
type CacheStatistics struct {
	TotalEntries         int64         `json:"total_entries"`
	FreshEntries         int64         `json:"fresh_entries"`
	StaleEntries         int64         `json:"stale_entries"`
	Hits24h              int64         `json:"hits_24h"`
	Misses24h            int64         `json:"misses_24h"`
	HitRate24h           float64       `json:"hit_rate_24h"`
	AvgHitTime           time.Duration `json:"avg_hit_time"`
	AvgMissTime          time.Duration `json:"avg_miss_time"`
	TSDRCallsSaved       int64         `json:"tsdr_calls_saved"`
	ClassifierCallsSaved int64         `json:"classifier_calls_saved"`
	TTLDays              int           `json:"ttl_days"`
}

// SessionStats tallies cache outcomes for one run of a caller, separate
// from the cumulative counters the cache persists.
type SessionStats struct {
	Hits       atomic.Int64
	Misses     atomic.Int64
	CallsSaved atomic.Int64
}
