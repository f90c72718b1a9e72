package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/shelfscan/models"
)

// PageFetcher navigates a session and captures the page once it settles.
type PageFetcher struct {
	ReadySelector     string
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
	StableQuiet       time.Duration
	StableTimeout     time.Duration
	PollInterval      time.Duration

	logger *slog.Logger
}

// NewPageFetcher creates a PageFetcher that logs to logger.
func NewPageFetcher(logger *slog.Logger) *PageFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageFetcher{
		NavigationTimeout: 30 * time.Second,
		ReadyTimeout:      10 * time.Second,
		StableQuiet:       500 * time.Millisecond,
		StableTimeout:     5 * time.Second,
		PollInterval:      defaultPollInterval,
		logger:            logger,
	}
}

// Fetch navigates to url, waits for content and returns a snapshot.
//
// A ready selector that never appears is not an error: a category with
// no products renders no item tiles, and that page must still produce
// an (empty) snapshot.
func (f *PageFetcher) Fetch(ctx context.Context, sess Session, url string) (*Snapshot, error) {
	navCtx, cancel := context.WithTimeout(ctx, f.NavigationTimeout)
	err := sess.Navigate(navCtx, url)
	cancel()
	if err != nil {
		return nil, categorizeError(err, "navigation to listing failed")
	}

	if f.ReadySelector != "" {
		err := WaitUntil(ctx, f.ReadyTimeout, f.PollInterval, func(ctx context.Context) (bool, error) {
			n, err := sess.Count(ctx, f.ReadySelector)
			return n > 0, err
		})
		if err != nil {
			f.logger.Debug("ready selector did not appear, capturing current DOM",
				"url", url, "selector", f.ReadySelector, "error", err)
		}
	}

	return f.Capture(ctx, sess, url)
}

// Capture snapshots the session's current document without navigating.
func (f *PageFetcher) Capture(ctx context.Context, sess Session, url string) (*Snapshot, error) {
	f.settle(ctx, sess)

	raw, err := sess.HTML(ctx)
	if err != nil {
		return nil, categorizeError(err, "failed to capture page HTML")
	}
	snap, err := ParseSnapshot(url, raw)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "failed to parse page HTML", err)
	}
	return snap, nil
}

// settle waits, bounded, for the DOM to stop changing.
func (f *PageFetcher) settle(ctx context.Context, sess Session) {
	if f.StableTimeout <= 0 {
		return
	}
	stableCtx, cancel := context.WithTimeout(ctx, f.StableTimeout)
	defer cancel()
	if err := sess.WaitStable(stableCtx, f.StableQuiet); err != nil {
		f.logger.Debug("DOM did not settle, proceeding with current DOM", "error", err)
	}
}

// categorizeError wraps raw session errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "scrape canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
