package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// WatermarkRepository persists per (source, purpose) processing boundaries.
type WatermarkRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.WatermarkStore = (*WatermarkRepository)(nil)

// NewWatermarkRepository wires a sql.DB implementation.
func NewWatermarkRepository(db *sql.DB) *WatermarkRepository {
	return &WatermarkRepository{db: db, now: time.Now}
}

// Get returns the stored boundary, or the epoch when none exists.
func (r *WatermarkRepository) Get(ctx context.Context, source domain.Source, purpose domain.Purpose) (time.Time, error) {
	query, args, err := sq.Select("ts").
		From("watermarks").
		Where(sq.Eq{"source": string(source), "purpose": string(purpose)}).
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("build watermark select: %w", err)
	}

	var raw string
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Unix(0, 0).UTC(), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query watermark: %w", err)
	}

	ts, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %q: %w", raw, err)
	}
	return ts, nil
}

// Set upserts the boundary for one (source, purpose), leaving every other
// purpose's row untouched.
func (r *WatermarkRepository) Set(ctx context.Context, source domain.Source, purpose domain.Purpose, ts time.Time, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal watermark metadata: %w", err)
	}

	query, args, err := sq.Insert("watermarks").
		Columns("source", "purpose", "ts", "metadata", "updated_at").
		Values(string(source), string(purpose), ts.UTC().Format(timeLayout), string(meta), r.now().UTC().Format(timeLayout)).
		Suffix(`ON CONFLICT (source, purpose) DO UPDATE SET
			ts = excluded.ts,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build watermark upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert watermark: %w", err)
	}
	return nil
}

// Rollback moves the boundary to now minus d and records the previous value
// in the metadata.
func (r *WatermarkRepository) Rollback(ctx context.Context, source domain.Source, purpose domain.Purpose, d time.Duration) error {
	previous, err := r.Get(ctx, source, purpose)
	if err != nil {
		return fmt.Errorf("read watermark before rollback: %w", err)
	}

	target := r.now().Add(-d).UTC()
	metadata := map[string]string{
		"rolled_back_from": previous.UTC().Format(timeLayout),
		"rollback_minutes": fmt.Sprintf("%d", int(d.Minutes())),
	}
	if err := r.Set(ctx, source, purpose, target, metadata); err != nil {
		return fmt.Errorf("rollback watermark: %w", err)
	}
	return nil
}
