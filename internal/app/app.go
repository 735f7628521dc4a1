// Package app wires configuration to adapters, use cases and lifecycle
// orchestration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/extractor"
	"TenderScanner/internal/infrastructure/browser"
	"TenderScanner/internal/infrastructure/llm"
	"TenderScanner/internal/infrastructure/scheduler"
	"TenderScanner/internal/infrastructure/storage"
	"TenderScanner/internal/infrastructure/telegram"
	"TenderScanner/internal/lister"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/notify"
	"TenderScanner/internal/ports"
	"TenderScanner/internal/usecase"
	"TenderScanner/internal/watermark"
)

// Application owns every long-lived component of the scanner.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	pipeline   *usecase.Pipeline
	scheduler  *usecase.Scheduler
	watermarks ports.WatermarkStore
	driver     *browser.Driver
	closers    []func() error

	browserOnce sync.Once
	browserErr  error
}

// New builds a runnable application instance. Close must be called when
// done.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger}
	a.closers = append(a.closers, db.Close)

	records := storage.NewRecordRepository(db, baseLogger)
	a.watermarks = watermark.NewMirrored(
		storage.NewWatermarkRepository(db),
		watermark.NewFileStore(cfg.Watermarks.FallbackDir),
		baseLogger.With("component", "watermarks"),
	)

	a.driver = browser.NewDriver(cfg.Browser, baseLogger)
	a.closers = append(a.closers, a.driver.Close)

	var classifier ports.Classifier
	if cfg.Classifier.APIKey != "" {
		classifier = llm.NewGeminiClassifier(cfg.Classifier, baseLogger.With("component", "classifier"))
	} else {
		baseLogger.Warn("classifier API key missing, dashboard projections disabled")
	}

	dispatcher := notify.NewDispatcher(
		a.boundChannels(),
		records,
		a.watermarks,
		baseLogger.With("component", "dispatcher"),
	)

	var reporter *usecase.Reporter
	if cfg.Notifications.ReportToken != "" && cfg.Notifications.ReportChatID != 0 {
		reporter = usecase.NewReporter(
			telegram.NewNotifier(cfg.Notifications.ReportToken),
			cfg.Notifications.ReportChatID,
		)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Sources:      cfg.Sources,
		Listings:     lister.NewDirProvider(cfg.Listings.Dir),
		Lister:       lister.NewCSVLister(),
		Records:      records,
		Watermarks:   a.watermarks,
		NewExtractor: a.newExtractor,
		Classifier:   classifier,
		Dispatcher:   dispatcher,
		Reporter:     reporter,
		Logger:       baseLogger.With("component", "pipeline"),
	})

	a.scheduler = usecase.NewScheduler(
		scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
		a.pipeline,
	)
	return a, nil
}

// boundChannels pairs every configured channel carrying a bot token with
// its Telegram transport. Tokenless channels are skipped, not fatal.
func (a *Application) boundChannels() []notify.BoundChannel {
	var bound []notify.BoundChannel
	for _, c := range a.cfg.Notifications.Channels {
		if c.BotToken == "" {
			a.logger.Warn("notification channel has no bot token, skipping", "channel", c.Name)
			continue
		}
		bound = append(bound, notify.BoundChannel{
			Channel:  notify.ChannelFromConfig(c),
			Notifier: telegram.NewNotifier(c.BotToken),
		})
	}
	return bound
}

// newExtractor opens one portal session. The browser is launched lazily on
// the first source that needs it and shared afterwards.
func (a *Application) newExtractor(ctx context.Context, src config.SourceConfig) (usecase.Extractor, func(), error) {
	a.browserOnce.Do(func() {
		a.browserErr = a.driver.Start(ctx)
	})
	if a.browserErr != nil {
		return nil, nil, fmt.Errorf("start browser: %w", a.browserErr)
	}

	profile, ok := extractor.ProfileFor(domain.Source(src.Name), src.URL)
	if !ok {
		return nil, nil, fmt.Errorf("no portal profile for source %s", src.Name)
	}

	session, err := a.driver.NewSession(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open portal session: %w", err)
	}

	ext := extractor.New(session, profile, a.logger.With("source", src.Name))
	cleanup := func() {
		if err := session.Close(); err != nil {
			a.logger.Warn("closing portal session failed", "source", src.Name, "error", err)
		}
	}
	return ext, cleanup, nil
}

// RunOnce executes a single pipeline pass.
func (a *Application) RunOnce(ctx context.Context) error {
	now := time.Now().In(a.cfg.Scheduler.Location())
	_, err := a.pipeline.Run(ctx, now)
	return err
}

// RunScheduled starts the cron schedule and blocks until ctx is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// RollbackWatermark moves a watermark back by the given duration so the
// next run re-detects recent records. An empty channel targets the
// ingestion watermark.
func (a *Application) RollbackWatermark(ctx context.Context, source, channel string, d time.Duration) error {
	purpose := domain.PurposeIngestion
	if channel != "" {
		purpose = domain.ChannelPurpose(channel)
	}
	if err := a.watermarks.Rollback(ctx, domain.Source(source), purpose, d); err != nil {
		return fmt.Errorf("rollback watermark %s/%s: %w", source, purpose, err)
	}
	a.logger.Info("watermark rolled back", "source", source, "purpose", purpose, "minutes", d.Minutes())
	return nil
}

// Close releases the database and browser.
func (a *Application) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
