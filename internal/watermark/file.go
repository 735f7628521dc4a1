// Package watermark holds the fallback and mirroring layers around the
// primary watermark store. The store-backed implementation lives with the
// rest of the document store in infrastructure/storage.
package watermark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// FileStore persists one ISO-8601 timestamp per (source, purpose) in plain
// text files. Writes go through a temp file and rename so readers never see
// a partial value.
type FileStore struct {
	dir string
}

var _ ports.WatermarkStore = (*FileStore)(nil)

// NewFileStore roots the store at dir, creating it on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Get reads the stored boundary, returning the epoch when the file is
// absent or empty.
func (s *FileStore) Get(ctx context.Context, source domain.Source, purpose domain.Purpose) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	raw, err := os.ReadFile(s.path(source, purpose))
	if os.IsNotExist(err) {
		return time.Unix(0, 0).UTC(), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read watermark file: %w", err)
	}

	value := strings.TrimSpace(string(raw))
	if value == "" {
		return time.Unix(0, 0).UTC(), nil
	}

	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %q: %w", value, err)
	}
	return ts.UTC(), nil
}

// Set writes the boundary atomically. Metadata is ignored: the file format
// carries only the timestamp.
func (s *FileStore) Set(ctx context.Context, source domain.Source, purpose domain.Purpose, ts time.Time, _ map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create watermark dir: %w", err)
	}

	path := s.path(source, purpose)
	tmp, err := os.CreateTemp(s.dir, ".watermark-*")
	if err != nil {
		return fmt.Errorf("create temp watermark: %w", err)
	}

	if _, err := tmp.WriteString(ts.UTC().Format(time.RFC3339)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp watermark: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace watermark file: %w", err)
	}
	return nil
}

// Rollback rewrites the boundary to now minus d.
func (s *FileStore) Rollback(ctx context.Context, source domain.Source, purpose domain.Purpose, d time.Duration) error {
	return s.Set(ctx, source, purpose, time.Now().UTC().Add(-d), nil)
}

func (s *FileStore) path(source domain.Source, purpose domain.Purpose) string {
	name := fmt.Sprintf("%s_%s.txt", source, sanitize(string(purpose)))
	return filepath.Join(s.dir, name)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
