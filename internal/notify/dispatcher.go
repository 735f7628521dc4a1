package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
	"TenderScanner/internal/retry"
)

// BoundChannel pairs a routing channel with its delivery transport.
type BoundChannel struct {
	Channel
	Notifier ports.Notifier
}

// ChannelReport summarises one channel's pass over a source.
type ChannelReport struct {
	Channel    string
	Detected   int
	Routed     int
	Dispatched int
	Failed     int
}

// Dispatcher runs one notification pass per channel: detect records newer
// than the channel watermark, route them, deliver each at most once, then
// advance the watermark past the whole detected batch.
type Dispatcher struct {
	channels   []BoundChannel
	records    ports.RecordStore
	watermarks ports.WatermarkStore
	policy     retry.Policy
	logger     *slog.Logger
	now        func() time.Time
}

func NewDispatcher(channels []BoundChannel, records ports.RecordStore, watermarks ports.WatermarkStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		channels:   channels,
		records:    records,
		watermarks: watermarks,
		policy:     retry.Policy{Attempts: 3, Delay: 2 * time.Second},
		logger:     logger.With("component", "dispatcher"),
		now:        time.Now,
	}
}

// Run executes one pass for every channel bound to the given source. A
// failed delivery never blocks later records and never rewinds the
// watermark: once a record's batch is consumed it will not be offered to
// that channel again.
func (d *Dispatcher) Run(ctx context.Context, source domain.Source) ([]ChannelReport, error) {
	var reports []ChannelReport
	for _, ch := range d.channels {
		if ch.Source != source {
			continue
		}
		report, err := d.runChannel(ctx, ch)
		if err != nil {
			return reports, fmt.Errorf("channel %s: %w", ch.Name, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (d *Dispatcher) runChannel(ctx context.Context, ch BoundChannel) (ChannelReport, error) {
	report := ChannelReport{Channel: ch.Name}
	purpose := domain.ChannelPurpose(ch.Name)

	since, err := d.watermarks.Get(ctx, ch.Source, purpose)
	if err != nil {
		return report, fmt.Errorf("read watermark: %w", err)
	}

	batch, err := d.records.NewerThan(ctx, ch.Source, since)
	if err != nil {
		return report, fmt.Errorf("detect new records: %w", err)
	}
	report.Detected = len(batch)
	if len(batch) == 0 {
		return report, nil
	}

	now := d.now()
	for _, rec := range batch {
		if !ch.Wants(rec, now) {
			continue
		}
		report.Routed++
		if err := d.deliver(ctx, ch, rec); err != nil {
			report.Failed++
			d.logger.Error("delivery failed",
				"channel", ch.Name, "record", rec.ID, "error", err)
			continue
		}
		report.Dispatched++
	}

	// The watermark covers the whole detected batch, routed or not, so the
	// next pass starts past it.
	latest := batch[len(batch)-1].CreatedAt
	for _, rec := range batch {
		if rec.CreatedAt.After(latest) {
			latest = rec.CreatedAt
		}
	}
	metadata := map[string]string{
		"channel":    ch.Name,
		"dispatched": fmt.Sprintf("%d", report.Dispatched),
	}
	if err := d.watermarks.Set(ctx, ch.Source, purpose, latest, metadata); err != nil {
		return report, fmt.Errorf("advance watermark: %w", err)
	}

	d.logger.Info("channel pass finished",
		"channel", ch.Name,
		"detected", report.Detected,
		"routed", report.Routed,
		"dispatched", report.Dispatched,
		"failed", report.Failed)
	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ch BoundChannel, rec domain.Record) error {
	msg := RenderMessage(rec, ch.Kind)
	for _, chatID := range ch.ChatIDs {
		err := d.policy.Do(ctx, func() error {
			return ch.Notifier.Send(ctx, chatID, msg)
		})
		if err != nil {
			return fmt.Errorf("send to chat %d: %w", chatID, err)
		}
	}
	return nil
}
