package lookup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/markwatch/markwatch/pkg/cache/sqlite"
	"github.com/markwatch/markwatch/pkg/models"
)

type fakeTSDR struct {
	calls int
	mark  models.Trademark
	err   error
}

func (f *fakeTSDR) Status(ctx context.Context, serial string) (models.Trademark, error) {
	f.calls++
	return f.mark, f.err
}

type fakeClassifier struct {
	calls    int
	markType models.MarkType
	err      error
}

func (f *fakeClassifier) Classify(ctx context.Context, serial string) (models.MarkType, error) {
	f.calls++
	return f.markType, f.err
}

func newTestService(t *testing.T, tsdr *fakeTSDR, cls *fakeClassifier) (*Service, *sqlite.Cache) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "lookup_test.db")
	c, err := sqlite.New(dbPath, 30, 1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return New(c, tsdr, cls), c
}

func TestLookupMissThenHit(t *testing.T) {
	tsdr := &fakeTSDR{mark: models.Trademark{MarkName: "ACME", FilingDate: "2024-01-01"}}
	cls := &fakeClassifier{markType: models.MarkTypeStylized}
	svc, c := newTestService(t, tsdr, cls)
	ctx := context.Background()

	e, err := svc.Lookup(ctx, "12345678")
	if err != nil {
		t.Fatal(err)
	}
	if e.MarkName != "ACME" || e.MarkType != models.MarkTypeStylized {
		t.Errorf("unexpected entry: %+v", e)
	}
	if tsdr.calls != 1 || cls.calls != 1 {
		t.Errorf("expected one call to each remote, got %d/%d", tsdr.calls, cls.calls)
	}

	e, err = svc.Lookup(ctx, "12345678")
	if err != nil {
		t.Fatal(err)
	}
	if e.MarkName != "ACME" || e.MarkType != models.MarkTypeStylized {
		t.Errorf("unexpected cached entry: %+v", e)
	}
	if tsdr.calls != 1 || cls.calls != 1 {
		t.Errorf("hit must not touch the remotes, got %d/%d", tsdr.calls, cls.calls)
	}

	stats := svc.Stats()
	if stats.Hits.Load() != 1 || stats.Misses.Load() != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", stats.Hits.Load(), stats.Misses.Load())
	}
	// A classified hit saves both remote calls.
	if stats.CallsSaved.Load() != 2 {
		t.Errorf("expected 2 calls saved, got %d", stats.CallsSaved.Load())
	}

	snap, err := c.Statistics()
	if err != nil {
		t.Fatal(err)
	}
	if snap.TSDRCallsSaved != 1 || snap.ClassifierCallsSaved != 1 {
		t.Errorf("persisted savings not incremented: %+v", snap)
	}
}

func TestLookupEmptySerial(t *testing.T) {
	svc, _ := newTestService(t, &fakeTSDR{}, &fakeClassifier{})

	if _, err := svc.Lookup(context.Background(), ""); !errors.Is(err, ErrEmptySerial) {
		t.Errorf("expected ErrEmptySerial, got %v", err)
	}
}

func TestLookupFailureIsCached(t *testing.T) {
	tsdr := &fakeTSDR{err: errors.New("HTTP 503")}
	cls := &fakeClassifier{}
	svc, _ := newTestService(t, tsdr, cls)
	ctx := context.Background()

	e, err := svc.Lookup(ctx, "99999999")
	if err == nil {
		t.Fatal("expected remote error")
	}
	if !e.Failed() {
		t.Errorf("expected failure entry, got %+v", e)
	}
	if cls.calls != 0 {
		t.Error("classifier must not run after a failed structured lookup")
	}

	// The failure is cached: the next lookup is a hit carrying the error,
	// with no new remote call.
	e, err = svc.Lookup(ctx, "99999999")
	if err != nil {
		t.Fatalf("cached failure should not return an error: %v", err)
	}
	if !e.Failed() || e.Error != "HTTP 503" {
		t.Errorf("expected cached failure entry, got %+v", e)
	}
	if tsdr.calls != 1 {
		t.Errorf("expected the retry to be suppressed, got %d calls", tsdr.calls)
	}

	// An unclassified hit saves only the structured lookup.
	if saved := svc.Stats().CallsSaved.Load(); saved != 1 {
		t.Errorf("expected 1 call saved, got %d", saved)
	}
}

func TestLookupClassifierFailure(t *testing.T) {
	tsdr := &fakeTSDR{mark: models.Trademark{MarkName: "ACME"}}
	cls := &fakeClassifier{err: errors.New("image unavailable")}
	svc, _ := newTestService(t, tsdr, cls)
	ctx := context.Background()

	e, err := svc.Lookup(ctx, "12345678")
	if err != nil {
		t.Fatal(err)
	}
	if e.MarkType != models.MarkTypeUnknown {
		t.Errorf("classification failure should leave the type pending, got %d", e.MarkType)
	}

	// The structured data is cached; only the classifier call is still owed.
	e, err = svc.Lookup(ctx, "12345678")
	if err != nil {
		t.Fatal(err)
	}
	if e.MarkName != "ACME" {
		t.Errorf("unexpected cached entry: %+v", e)
	}
	if tsdr.calls != 1 {
		t.Errorf("expected structured lookup to be cached, got %d calls", tsdr.calls)
	}
	if saved := svc.Stats().CallsSaved.Load(); saved != 1 {
		t.Errorf("pending classification must not count as saved, got %d", saved)
	}
}

func TestLookupCacheFaultDegradesToRemote(t *testing.T) {
	tsdr := &fakeTSDR{mark: models.Trademark{MarkName: "ACME"}}
	cls := &fakeClassifier{markType: models.MarkTypeStandard}
	svc, c := newTestService(t, tsdr, cls)

	// A broken store must degrade to "as if nothing were cached".
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	e, err := svc.Lookup(context.Background(), "12345678")
	if !errors.Is(err, ErrCacheWrite) {
		t.Fatalf("expected ErrCacheWrite, got %v", err)
	}
	if e.MarkName != "ACME" {
		t.Errorf("computed result must survive a cache write fault, got %+v", e)
	}
	if tsdr.calls != 1 {
		t.Errorf("expected the remote path to run, got %d calls", tsdr.calls)
	}
}
