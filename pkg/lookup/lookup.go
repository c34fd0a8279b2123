// Package lookup implements the cache-first retrieval protocol every
// caller must follow: check the cache, fall back to the remote pair on a
// miss, and write the result back unconditionally so concurrent callers
// and later runs see it.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/markwatch/markwatch/pkg/cache/sqlite"
	"github.com/markwatch/markwatch/pkg/models"
)

// TSDRClient fetches structured status data for one serial number from
// the USPTO TSDR API.
type TSDRClient interface {
	Status(ctx context.Context, serial string) (models.Trademark, error)
}

// MarkClassifier assigns a MarkType from the registration's mark image.
type MarkClassifier interface {
	Classify(ctx context.Context, serial string) (models.MarkType, error)
}

// ErrEmptySerial is returned for lookups with an empty serial number.
var ErrEmptySerial = errors.New("lookup: empty serial number")

// ErrCacheWrite wraps a failed write-back. The computed entry is still
// returned alongside it; only the cached savings are lost.
var ErrCacheWrite = errors.New("lookup: cache write failed")

// Service resolves serial numbers cache-first. Concurrent misses on the
// same serial may each run the remote lookups; the last write wins.
type Service struct {
	cache      *sqlite.Cache
	tsdr       TSDRClient
	classifier MarkClassifier
	stats      models.SessionStats
}

// New returns a Service over the given cache and remote clients.
func New(cache *sqlite.Cache, tsdr TSDRClient, classifier MarkClassifier) *Service {
	return &Service{cache: cache, tsdr: tsdr, classifier: classifier}
}

// Stats exposes the session-scoped hit/miss/saved tallies.
func (s *Service) Stats() *models.SessionStats {
	return &s.stats
}

// Lookup returns the entry for a serial number, from the cache when
// fresh, otherwise by running the TSDR lookup and mark classification
// and writing the result back before returning.
//
// A cached failure comes back as a normal entry with Failed() true and a
// nil error; redoing the lookup early is the caller's choice. A fresh
// remote failure is written back too, to suppress retry storms, and the
// remote error is returned with a failure entry.
func (s *Service) Lookup(ctx context.Context, serial string) (models.CacheEntry, error) {
	if serial == "" {
		return models.CacheEntry{}, ErrEmptySerial
	}

	if e, ok := s.cache.Get(serial); ok {
		s.stats.Hits.Add(1)
		s.recordSaved(e)
		return e, nil
	}
	s.stats.Misses.Add(1)

	mark, lookupErr := s.tsdr.Status(ctx, serial)
	if lookupErr == nil {
		mt, err := s.classifier.Classify(ctx, serial)
		if err != nil {
			// Classification stays pending; the structured data is
			// still worth caching.
			mt = models.MarkTypeUnknown
		}
		mark.MarkType = mt
	} else {
		mark = models.Trademark{}
	}

	errMsg := ""
	if lookupErr != nil {
		errMsg = lookupErr.Error()
	}

	// Write back before returning, success or failure, so a concurrent
	// Get on the same serial finds the result instead of recomputing.
	if perr := s.cache.Put(serial, mark, errMsg); perr != nil {
		if lookupErr != nil {
			return failureEntry(serial, errMsg), lookupErr
		}
		return entryFor(serial, mark), fmt.Errorf("%w: %v", ErrCacheWrite, perr)
	}

	if lookupErr != nil {
		return failureEntry(serial, errMsg), lookupErr
	}
	return entryFor(serial, mark), nil
}

// recordSaved tallies the remote calls a hit avoided: the TSDR lookup
// always, the classifier only when the cached entry shows a
// classification was actually performed.
func (s *Service) recordSaved(e models.CacheEntry) {
	s.stats.CallsSaved.Add(1)
	_ = s.cache.IncrementSavings(sqlite.ServiceTSDR)
	if e.MarkType != models.MarkTypeUnknown {
		s.stats.CallsSaved.Add(1)
		_ = s.cache.IncrementSavings(sqlite.ServiceClassifier)
	}
}

func entryFor(serial string, mark models.Trademark) models.CacheEntry {
	return models.CacheEntry{SerialNumber: serial, Trademark: mark}
}

func failureEntry(serial, errMsg string) models.CacheEntry {
	return models.CacheEntry{SerialNumber: serial, Error: errMsg}
}
