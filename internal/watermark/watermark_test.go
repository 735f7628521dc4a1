package watermark

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"TenderScanner/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	want := time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC)

	if err := store.Set(ctx, domain.SourceCABA, domain.PurposeIngestion, want, nil); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, err := store.Get(ctx, domain.SourceCABA, domain.PurposeIngestion)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFileStoreDefaultsToEpoch(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	got, err := store.Get(context.Background(), domain.SourceNacion, domain.ChannelPurpose("nacion-general"))
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !got.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("expected epoch default, got %v", got)
	}
}

func TestFileStoreSeparatesPurposes(t *testing.T) {
	t.Parallel()

	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	ingest := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	notify := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Set(ctx, domain.SourceCABA, domain.PurposeIngestion, ingest, nil); err != nil {
		t.Fatalf("Set ingestion: %v", err)
	}
	if err := store.Set(ctx, domain.SourceCABA, domain.ChannelPurpose("caba-general"), notify, nil); err != nil {
		t.Fatalf("Set channel: %v", err)
	}

	got, err := store.Get(ctx, domain.SourceCABA, domain.PurposeIngestion)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Equal(ingest) {
		t.Fatalf("ingestion watermark clobbered: %v", got)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := store.Set(context.Background(), domain.SourcePBA, domain.PurposeIngestion, time.Now(), nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".txt" {
			t.Fatalf("unexpected leftover file: %s", entry.Name())
		}
	}
}

// failingStore simulates an unreachable primary.
type failingStore struct{}

func (failingStore) Get(context.Context, domain.Source, domain.Purpose) (time.Time, error) {
	return time.Time{}, errors.New("store unreachable")
}

func (failingStore) Set(context.Context, domain.Source, domain.Purpose, time.Time, map[string]string) error {
	return errors.New("store unreachable")
}

func (failingStore) Rollback(context.Context, domain.Source, domain.Purpose, time.Duration) error {
	return errors.New("store unreachable")
}

// memStore is an in-memory watermark store for tests.
type memStore struct {
	mu     sync.Mutex
	values map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{values: map[string]time.Time{}}
}

func (s *memStore) key(source domain.Source, purpose domain.Purpose) string {
	return string(source) + "/" + string(purpose)
}

func (s *memStore) Get(_ context.Context, source domain.Source, purpose domain.Purpose) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.values[s.key(source, purpose)]
	if !ok {
		return time.Unix(0, 0).UTC(), nil
	}
	return ts, nil
}

func (s *memStore) Set(_ context.Context, source domain.Source, purpose domain.Purpose, ts time.Time, _ map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[s.key(source, purpose)] = ts
	return nil
}

func (s *memStore) Rollback(ctx context.Context, source domain.Source, purpose domain.Purpose, d time.Duration) error {
	return s.Set(ctx, source, purpose, time.Now().UTC().Add(-d), nil)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMirroredFallsBackWithoutEpochReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fallback := newMemStore()
	want := time.Date(2025, time.April, 2, 8, 0, 0, 0, time.UTC)
	if err := fallback.Set(ctx, domain.SourceCABA, domain.PurposeIngestion, want, nil); err != nil {
		t.Fatalf("seed fallback: %v", err)
	}

	m := NewMirrored(failingStore{}, fallback, discardLogger())
	got, err := m.Get(ctx, domain.SourceCABA, domain.PurposeIngestion)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("expected fallback value %v, got %v", want, got)
	}
}

func TestMirroredUsesProcessCacheWhenAllStoresFail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := newMemStore()
	want := time.Date(2025, time.May, 5, 5, 5, 5, 0, time.UTC)
	if err := primary.Set(ctx, domain.SourceNacion, domain.PurposeIngestion, want, nil); err != nil {
		t.Fatalf("seed primary: %v", err)
	}

	m := NewMirrored(primary, nil, discardLogger())
	if _, err := m.Get(ctx, domain.SourceNacion, domain.PurposeIngestion); err != nil {
		t.Fatalf("warm-up Get: %v", err)
	}

	// Swap in a dead primary while keeping the cache.
	m.primary = failingStore{}
	got, err := m.Get(ctx, domain.SourceNacion, domain.PurposeIngestion)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("expected cached value %v, got %v", want, got)
	}
}

func TestMirroredSurfacesErrorWithoutAnyFallback(t *testing.T) {
	t.Parallel()

	m := NewMirrored(failingStore{}, nil, discardLogger())
	if _, err := m.Get(context.Background(), domain.SourcePBA, domain.PurposeIngestion); err == nil {
		t.Fatal("expected error when no fallback value exists")
	}
}

func TestMirroredWritesBothStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	primary := newMemStore()
	fallback := newMemStore()
	m := NewMirrored(primary, fallback, discardLogger())

	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	if err := m.Set(ctx, domain.SourceCABA, domain.ChannelPurpose("caba-general"), ts, nil); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	for name, store := range map[string]*memStore{"primary": primary, "fallback": fallback} {
		got, err := store.Get(ctx, domain.SourceCABA, domain.ChannelPurpose("caba-general"))
		if err != nil {
			t.Fatalf("%s Get: %v", name, err)
		}
		if !got.Equal(ts) {
			t.Fatalf("%s not updated: %v", name, got)
		}
	}
}
