package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"TenderScanner/internal/ports"
)

// Session is one Rod page exposed through the PageSession port. Lookups
// with no explicit timeout still wait for the element to appear, bounded by
// defaultTimeout.
type Session struct {
	page   *rod.Page
	logger *slog.Logger
}

var _ ports.PageSession = (*Session)(nil)

const defaultTimeout = 15 * time.Second

func (s *Session) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		s.logger.Warn("page load wait failed", "url", url, "error", err)
	}
	return nil
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	el, err := s.element(ctx, selector, defaultTimeout)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text in %s: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector, defaultTimeout)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := s.element(ctx, selector, timeout)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("wait visible %s: %w", selector, err)
	}
	return nil
}

func (s *Session) WaitHidden(ctx context.Context, selector string, timeout time.Duration) error {
	page := s.page.Context(ctx).Timeout(timeout)
	has, el, err := page.Has(selector)
	if err != nil {
		return fmt.Errorf("probe %s: %w", selector, err)
	}
	if !has {
		return nil
	}
	if err := el.Timeout(timeout).WaitInvisible(); err != nil {
		return fmt.Errorf("wait hidden %s: %w", selector, err)
	}
	return nil
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	el, err := s.element(ctx, selector, defaultTimeout)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", selector, err)
	}
	return text, nil
}

func (s *Session) HTML(ctx context.Context, selector string) (string, error) {
	el, err := s.element(ctx, selector, defaultTimeout)
	if err != nil {
		return "", err
	}
	html, err := el.HTML()
	if err != nil {
		return "", fmt.Errorf("read html of %s: %w", selector, err)
	}
	return html, nil
}

func (s *Session) Reload(ctx context.Context) error {
	page := s.page.Context(ctx)
	if err := page.Reload(); err != nil {
		return fmt.Errorf("reload page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		s.logger.Warn("reload wait failed", "error", err)
	}
	return nil
}

func (s *Session) Close() error {
	if s.page == nil {
		return nil
	}
	return s.page.Close()
}

func (s *Session) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	el, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	return el, nil
}
