package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"TenderScanner/internal/app"
	"TenderScanner/internal/config"
	"TenderScanner/internal/logging"
)

type options struct {
	Config          string `short:"c" long:"config" description:"Path to the YAML configuration file"`
	Once            bool   `long:"once" description:"Run a single pipeline pass and exit"`
	Source          string `long:"source" description:"Restrict the run to one source (caba, pba, nacion)"`
	RollbackMinutes int    `long:"rollback-minutes" description:"Move a watermark back by N minutes and exit (requires --source)"`
	RollbackChannel string `long:"rollback-channel" description:"Channel whose watermark to roll back; empty targets ingestion"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		logging.New("error").Error("configuration failed", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level)

	if opts.Source != "" {
		filtered := cfg.Sources[:0]
		for _, src := range cfg.Sources {
			if src.Name == opts.Source {
				filtered = append(filtered, src)
			}
		}
		if len(filtered) == 0 {
			logger.Error("unknown source", "source", opts.Source)
			os.Exit(1)
		}
		cfg.Sources = filtered
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.RollbackMinutes > 0:
		if opts.Source == "" {
			logger.Error("--rollback-minutes requires --source")
			os.Exit(2)
		}
		d := time.Duration(opts.RollbackMinutes) * time.Minute
		err = application.RollbackWatermark(ctx, opts.Source, opts.RollbackChannel, d)
	case opts.Once:
		err = application.RunOnce(ctx)
	default:
		err = application.RunScheduled(ctx)
	}

	if err != nil {
		logger.Error("application stopped", "error", err)
		application.Close()
		os.Exit(1)
	}
}

func loadConfig(opts options) (config.Config, error) {
	if opts.Config != "" {
		return config.LoadFile(opts.Config)
	}
	return config.Load(), nil
}
