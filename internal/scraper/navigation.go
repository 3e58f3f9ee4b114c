package scraper

import (
	"context"
	"time"

	"github.com/JustJay7/court-case-pipeline/pkg/logger"
)

// Navigator moves a page between URLs under a bounded timeout. It never
// retries on its own.
type Navigator struct {
	timeout time.Duration
	logger  *logger.Logger
}

func NewNavigator(timeout time.Duration, log *logger.Logger) *Navigator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Navigator{timeout: timeout, logger: log}
}

// Open navigates page to url.
func (n *Navigator) Open(ctx context.Context, page Page, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	n.logger.Debug("Navigating", "url", url)
	if err := page.Navigate(navCtx, url); err != nil {
		n.logger.Warn("Navigation failed", "url", url, "error", err)
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

// Reload reloads the current page. Used between captcha attempts.
func (n *Navigator) Reload(ctx context.Context, page Page) error {
	navCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := page.Reload(navCtx); err != nil {
		return &NavigationError{URL: page.URL(), Err: err}
	}
	return nil
}

// Return goes back to resultsURL after a detail page visit, preferring
// history navigation and falling back to a fresh load.
func (n *Navigator) Return(ctx context.Context, page Page, resultsURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := page.Back(navCtx); err == nil && page.URL() == resultsURL {
		return nil
	}
	return n.Open(ctx, page, resultsURL)
}
