// Package browser drives the procurement portals through a real Chrome
// instance via Rod, with stealth applied so the ASP.NET frontends treat the
// session as a regular visitor.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"TenderScanner/internal/config"
)

// Driver owns the Chrome process (or the connection to a remote one) and
// hands out page sessions.
type Driver struct {
	cfg     config.BrowserConfig
	logger  *slog.Logger
	browser *rod.Browser
	lnch    *launcher.Launcher
}

func NewDriver(cfg config.BrowserConfig, logger *slog.Logger) *Driver {
	return &Driver{
		cfg:    cfg,
		logger: logger.With("component", "browser"),
	}
}

// Start launches a local Chrome, or connects to cfg.RemoteURL when set.
func (d *Driver) Start(ctx context.Context) error {
	wsURL := d.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(d.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		d.lnch = l
		wsURL = u
		d.logger.Info("launched local chrome", "headless", d.cfg.Headless)
	} else {
		d.logger.Info("connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	d.browser = b
	return nil
}

// NewSession opens a stealth page ready for portal navigation.
func (d *Driver) NewSession(ctx context.Context) (*Session, error) {
	if d.browser == nil {
		return nil, fmt.Errorf("driver not started")
	}

	page, err := stealth.Page(d.browser)
	if err != nil {
		return nil, fmt.Errorf("open stealth page: %w", err)
	}

	if d.cfg.UserAgent != "" {
		err := page.Context(ctx).SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: d.cfg.UserAgent,
		})
		if err != nil {
			page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	return &Session{page: page, logger: d.logger}, nil
}

// Close shuts down Chrome and the launcher.
func (d *Driver) Close() error {
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			return fmt.Errorf("close browser: %w", err)
		}
		d.browser = nil
	}
	if d.lnch != nil {
		d.lnch.Cleanup()
		d.lnch = nil
	}
	return nil
}
