package watermark

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// Mirrored layers a durable fallback under the primary watermark store.
// Reads prefer the primary; when it is unreachable the last value from the
// fallback file, or failing that the value last seen in this process, is
// used instead of silently resetting to the epoch (a reset would trigger
// mass re-notification). Writes go to both; a fallback write failure is
// only logged.
type Mirrored struct {
	primary  ports.WatermarkStore
	fallback ports.WatermarkStore
	logger   *slog.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

var _ ports.WatermarkStore = (*Mirrored)(nil)

// NewMirrored wires the primary store with its fallback.
func NewMirrored(primary, fallback ports.WatermarkStore, logger *slog.Logger) *Mirrored {
	return &Mirrored{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		seen:     map[string]time.Time{},
	}
}

// Get reads the primary boundary, falling back to the local mirror and the
// in-process cache when the primary fails. The error of the primary is
// surfaced only when no fallback value exists at all.
func (m *Mirrored) Get(ctx context.Context, source domain.Source, purpose domain.Purpose) (time.Time, error) {
	ts, err := m.primary.Get(ctx, source, purpose)
	if err == nil {
		m.remember(source, purpose, ts)
		return ts, nil
	}

	m.logger.Warn("primary watermark store unreachable, using fallback",
		"source", source, "purpose", purpose, "error", err)

	if m.fallback != nil {
		if fts, ferr := m.fallback.Get(ctx, source, purpose); ferr == nil && !fts.Equal(time.Unix(0, 0).UTC()) {
			m.remember(source, purpose, fts)
			return fts, nil
		}
	}

	if cached, ok := m.recall(source, purpose); ok {
		return cached, nil
	}

	return time.Time{}, err
}

// Set writes the boundary to the primary and mirrors it to the fallback.
func (m *Mirrored) Set(ctx context.Context, source domain.Source, purpose domain.Purpose, ts time.Time, metadata map[string]string) error {
	err := m.primary.Set(ctx, source, purpose, ts, metadata)
	if err == nil {
		m.remember(source, purpose, ts)
	}

	if m.fallback != nil {
		if ferr := m.fallback.Set(ctx, source, purpose, ts, metadata); ferr != nil {
			m.logger.Warn("fallback watermark write failed",
				"source", source, "purpose", purpose, "error", ferr)
		}
	}

	return err
}

// Rollback delegates to the primary and mirrors the resulting value.
func (m *Mirrored) Rollback(ctx context.Context, source domain.Source, purpose domain.Purpose, d time.Duration) error {
	if err := m.primary.Rollback(ctx, source, purpose, d); err != nil {
		return err
	}

	ts, err := m.primary.Get(ctx, source, purpose)
	if err != nil {
		return nil
	}
	m.remember(source, purpose, ts)
	if m.fallback != nil {
		if ferr := m.fallback.Set(ctx, source, purpose, ts, nil); ferr != nil {
			m.logger.Warn("fallback watermark write failed after rollback",
				"source", source, "purpose", purpose, "error", ferr)
		}
	}
	return nil
}

func (m *Mirrored) remember(source domain.Source, purpose domain.Purpose, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[string(source)+"/"+string(purpose)] = ts
}

func (m *Mirrored) recall(source domain.Source, purpose domain.Purpose) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.seen[string(source)+"/"+string(purpose)]
	return ts, ok
}
