// Package usecase orchestrates the ingestion, classification and
// notification workflows over the driven adapters.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/extractor"
	"TenderScanner/internal/notify"
	"TenderScanner/internal/ports"
)

// Extractor walks the portal for single records. Satisfied by
// *extractor.Extractor; a factory indirection keeps the pipeline testable
// without a browser.
type Extractor interface {
	Open(ctx context.Context) error
	Extract(ctx context.Context, id string) (domain.Record, error)
}

// ExtractorFactory opens a fresh portal session for a source. The returned
// cleanup must always be called.
type ExtractorFactory func(ctx context.Context, source config.SourceConfig) (Extractor, func(), error)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Sources      []config.SourceConfig
	Listings     ports.ListingProvider
	Lister       ports.CandidateLister
	Records      ports.RecordStore
	Watermarks   ports.WatermarkStore
	NewExtractor ExtractorFactory
	Classifier   ports.Classifier
	Dispatcher   *notify.Dispatcher
	Reporter     *Reporter
	Logger       *slog.Logger
}

// Pipeline implements the full scan-classify-notify workflow.
type Pipeline struct {
	sources      []config.SourceConfig
	listings     ports.ListingProvider
	lister       ports.CandidateLister
	records      ports.RecordStore
	watermarks   ports.WatermarkStore
	newExtractor ExtractorFactory
	classifier   ports.Classifier
	dispatcher   *notify.Dispatcher
	reporter     *Reporter
	logger       *slog.Logger
	now          func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		sources:      deps.Sources,
		listings:     deps.Listings,
		lister:       deps.Lister,
		records:      deps.Records,
		watermarks:   deps.Watermarks,
		newExtractor: deps.NewExtractor,
		classifier:   deps.Classifier,
		dispatcher:   deps.Dispatcher,
		reporter:     deps.Reporter,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

// SourceReport summarises one source's ingestion pass.
type SourceReport struct {
	Source     domain.Source
	Candidates int
	Skipped    int
	Persisted  int
	Partial    int
	Failed     int
	Backfilled int
	Err        error
}

// RunSummary aggregates everything one pipeline run did.
type RunSummary struct {
	StartedAt time.Time
	Duration  time.Duration
	Sources   []SourceReport
	Projected int
	Channels  []notify.ChannelReport
	Err       error
}

// Run executes one full pipeline pass: ingest every source concurrently,
// project classifications, dispatch notifications, then report. Total
// failure of a critical source aborts the run before any notification.
func (p *Pipeline) Run(ctx context.Context, trigger time.Time) (RunSummary, error) {
	summary := RunSummary{StartedAt: trigger}
	defer func() {
		summary.Duration = p.now().Sub(trigger)
	}()

	summary.Sources = p.ingestAll(ctx)

	for _, report := range summary.Sources {
		if report.Err == nil {
			continue
		}
		if p.isCritical(report.Source) {
			summary.Err = fmt.Errorf("critical source %s failed: %w", report.Source, report.Err)
			p.report(ctx, summary)
			return summary, summary.Err
		}
		p.logger.Warn("source ingestion failed", "source", report.Source, "error", report.Err)
	}

	projected, err := p.projectAll(ctx)
	summary.Projected = projected
	if err != nil {
		p.logger.Error("projection pass failed", "error", err)
	}

	if p.dispatcher != nil {
		for _, src := range p.sources {
			reports, err := p.dispatcher.Run(ctx, domain.Source(src.Name))
			if err != nil {
				p.logger.Error("notification pass failed", "source", src.Name, "error", err)
			}
			summary.Channels = append(summary.Channels, reports...)
		}
	}

	p.report(ctx, summary)
	return summary, nil
}

func (p *Pipeline) isCritical(source domain.Source) bool {
	for _, src := range p.sources {
		if domain.Source(src.Name) == source {
			return src.Critical
		}
	}
	return false
}

func (p *Pipeline) report(ctx context.Context, summary RunSummary) {
	if p.reporter == nil {
		return
	}
	if err := p.reporter.Send(ctx, summary); err != nil {
		p.logger.Warn("status report failed", "error", err)
	}
}

func (p *Pipeline) ingestAll(ctx context.Context) []SourceReport {
	reports := make([]SourceReport, len(p.sources))
	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(i int, src config.SourceConfig) {
			defer wg.Done()
			reports[i] = p.ingestSource(ctx, src)
		}(i, src)
	}
	wg.Wait()
	return reports
}

// ingestSource runs the full per-source cycle: list candidates, drop the
// ones already stored, extract the rest with one retry pass, persist, and
// advance the ingestion watermark past everything persisted.
func (p *Pipeline) ingestSource(ctx context.Context, src config.SourceConfig) SourceReport {
	source := domain.Source(src.Name)
	report := SourceReport{Source: source}
	logger := p.logger.With("source", src.Name)

	payload, err := p.listings.Fetch(ctx, source)
	if err != nil {
		report.Err = fmt.Errorf("fetch listing: %w", err)
		return report
	}
	candidates, err := p.lister.List(source, payload)
	payload.Close()
	if err != nil {
		report.Err = fmt.Errorf("list candidates: %w", err)
		return report
	}
	report.Candidates = len(candidates)

	fresh := make([]string, 0, len(candidates))
	for _, id := range candidates {
		exists, err := p.records.Exists(ctx, source, id)
		if err != nil {
			report.Err = fmt.Errorf("check record %s: %w", id, err)
			return report
		}
		if exists {
			report.Skipped++
			continue
		}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		logger.Info("no new processes", "candidates", report.Candidates)
		return report
	}

	ext, cleanup, err := p.newExtractor(ctx, src)
	if err != nil {
		report.Err = fmt.Errorf("open portal session: %w", err)
		return report
	}
	defer cleanup()
	if err := ext.Open(ctx); err != nil {
		report.Err = fmt.Errorf("open portal: %w", err)
		return report
	}

	failed := p.extractBatch(ctx, ext, src, fresh, &report)
	if len(failed) > 0 {
		logger.Info("retrying failed extractions", "count", len(failed))
		failed = p.extractBatch(ctx, ext, src, failed, &report)
	}
	report.Failed = len(failed)

	if report.Persisted == 0 {
		report.Err = fmt.Errorf("no record extracted out of %d new candidates", len(fresh))
		return report
	}

	if backfilled, err := p.records.BackfillDepartmentCodes(ctx, source); err != nil {
		logger.Warn("department code backfill failed", "error", err)
	} else {
		report.Backfilled = backfilled
	}

	logger.Info("source ingested",
		"candidates", report.Candidates,
		"skipped", report.Skipped,
		"persisted", report.Persisted,
		"partial", report.Partial,
		"failed", report.Failed)
	return report
}

// extractBatch walks one list of ids through the extractor, persisting
// successes. It returns the ids that still failed. A lost session gets
// reopened once per failure before moving on.
func (p *Pipeline) extractBatch(ctx context.Context, ext Extractor, src config.SourceConfig, ids []string, report *SourceReport) []string {
	source := domain.Source(src.Name)
	logger := p.logger.With("source", src.Name)
	var (
		failed  []string
		highest time.Time
	)

	for _, id := range ids {
		rec, err := ext.Extract(ctx, id)
		if err != nil {
			var failure *extractor.Failure
			if errors.As(err, &failure) && failure.Kind == extractor.FailAborted {
				failed = append(failed, id)
				logger.Warn("extraction aborted", "record", id)
				return append(failed, remaining(ids, id)...)
			}
			logger.Warn("extraction failed", "record", id, "error", err)
			failed = append(failed, id)
			if errors.As(err, &failure) && failure.Kind == extractor.FailNavigationRecovery {
				if oerr := ext.Open(ctx); oerr != nil {
					logger.Error("portal session lost", "error", oerr)
					return append(failed, remaining(ids, id)...)
				}
			}
			continue
		}

		if err := p.records.Put(ctx, rec); err != nil {
			logger.Error("persist failed", "record", id, "error", err)
			failed = append(failed, id)
			continue
		}
		report.Persisted++
		if rec.Status == domain.StatusPartial {
			report.Partial++
		}
		if rec.CreatedAt.After(highest) {
			highest = rec.CreatedAt
		}
	}

	if !highest.IsZero() {
		metadata := map[string]string{"persisted": fmt.Sprintf("%d", report.Persisted)}
		if err := p.watermarks.Set(ctx, source, domain.PurposeIngestion, highest, metadata); err != nil {
			logger.Warn("ingestion watermark update failed", "error", err)
		}
	}
	return failed
}

// remaining returns the ids after the given one, exclusive.
func remaining(ids []string, after string) []string {
	for i, id := range ids {
		if id == after {
			return ids[i+1:]
		}
	}
	return nil
}
