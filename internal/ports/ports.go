package ports

import (
	"context"
	"io"
	"time"

	"TenderScanner/internal/domain"
)

// PageSession is one linear conversation with a server-rendered portal
// through a browser tab. Implementations must bound every wait with the
// supplied timeout and honor context cancellation.
type PageSession interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	Text(ctx context.Context, selector string) (string, error)
	HTML(ctx context.Context, selector string) (string, error)
	Reload(ctx context.Context) error
	Close() error
}

// RecordStore persists tender records and their derived projections.
type RecordStore interface {
	Put(ctx context.Context, rec domain.Record) error
	Exists(ctx context.Context, source domain.Source, id string) (bool, error)
	Get(ctx context.Context, source domain.Source, id string) (domain.Record, error)
	// NewerThan returns records with created_at strictly after ts, oldest
	// first. Records whose stored timestamp cannot be parsed are skipped.
	NewerThan(ctx context.Context, source domain.Source, ts time.Time) ([]domain.Record, error)
	// Unprojected lists records of a source that have no dashboard
	// projection yet.
	Unprojected(ctx context.Context, source domain.Source) ([]domain.Record, error)
	PutProjection(ctx context.Context, p domain.Projection) error
	// BackfillDepartmentCodes derives the department code from the id
	// prefix for stored records missing it. Idempotent.
	BackfillDepartmentCodes(ctx context.Context, source domain.Source) (int, error)
}

// WatermarkStore persists per (source, purpose) processing boundaries.
type WatermarkStore interface {
	// Get returns the stored boundary, or the epoch when none exists.
	Get(ctx context.Context, source domain.Source, purpose domain.Purpose) (time.Time, error)
	// Set upserts the boundary atomically, touching only the addressed
	// purpose's fields.
	Set(ctx context.Context, source domain.Source, purpose domain.Purpose, ts time.Time, metadata map[string]string) error
	// Rollback moves the boundary to now minus d, recording the previous
	// value in metadata.
	Rollback(ctx context.Context, source domain.Source, purpose domain.Purpose, d time.Duration) error
}

// CandidateLister turns a downloaded listing payload into ordered candidate
// process identifiers. Deterministic and restartable per payload.
type CandidateLister interface {
	List(source domain.Source, payload io.Reader) ([]string, error)
}

// ListingProvider supplies the freshest listing payload for a source.
type ListingProvider interface {
	Fetch(ctx context.Context, source domain.Source) (io.ReadCloser, error)
}

// Notifier delivers one message to one chat. Success means the transport
// explicitly confirmed delivery.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Classifier labels a record excerpt with a category pair. Implementations
// return an error on any response-shape deviation; callers fall back to the
// unclassified sentinel.
type Classifier interface {
	Classify(ctx context.Context, excerpt string) (domain.Classification, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
