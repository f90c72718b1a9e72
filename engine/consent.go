package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/shelfscan/models"
)

// ConsentState tracks the cookie-banner dismissal state machine.
type ConsentState int

const (
	ConsentUnhandled ConsentState = iota
	ConsentWaiting
	ConsentDismissed
	ConsentFailed
)

func (s ConsentState) String() string {
	switch s {
	case ConsentUnhandled:
		return "unhandled"
	case ConsentWaiting:
		return "waiting_for_button"
	case ConsentDismissed:
		return "dismissed"
	case ConsentFailed:
		return "failed"
	default:
		return fmt.Sprintf("consent(%d)", int(s))
	}
}

// ConsentHandler clicks a cookie banner's accept button when one shows up.
// It never fails the scrape: a banner that cannot be dismissed is logged
// and the run continues as if no overlay were present.
type ConsentHandler struct {
	Selector     string
	Timeout      time.Duration
	PollInterval time.Duration

	logger *slog.Logger
}

// NewConsentHandler creates a handler for the accept control at selector.
func NewConsentHandler(selector string, timeout time.Duration, logger *slog.Logger) *ConsentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentHandler{
		Selector:     selector,
		Timeout:      timeout,
		PollInterval: defaultPollInterval,
		logger:       logger,
	}
}

// Dismiss waits for the accept control, clicks it and returns the terminal
// state (ConsentDismissed or ConsentFailed).
func (h *ConsentHandler) Dismiss(ctx context.Context, sess Session) (state ConsentState) {
	state = ConsentUnhandled
	defer func() {
		if r := recover(); r != nil {
			h.fail(models.NewScrapeError(models.ErrCodeConsent, "consent handling panicked", fmt.Errorf("%v", r)))
			state = ConsentFailed
		}
	}()

	state = ConsentWaiting
	err := WaitUntil(ctx, h.Timeout, h.PollInterval, func(ctx context.Context) (bool, error) {
		return sess.Visible(ctx, h.Selector)
	})
	if err != nil {
		h.fail(models.NewScrapeError(models.ErrCodeConsent, "accept control never became visible", err))
		return ConsentFailed
	}

	clickCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	err = sess.Click(clickCtx, h.Selector)
	cancel()
	if err != nil {
		h.fail(models.NewScrapeError(models.ErrCodeConsent, "accept control click failed", err))
		return ConsentFailed
	}

	err = WaitUntil(ctx, h.Timeout, h.PollInterval, func(ctx context.Context) (bool, error) {
		visible, err := sess.Visible(ctx, h.Selector)
		return !visible, err
	})
	if err != nil {
		h.logger.Debug("consent banner still visible after click", "selector", h.Selector, "error", err)
	}

	h.logger.Info("consent banner dismissed", "selector", h.Selector)
	return ConsentDismissed
}

func (h *ConsentHandler) fail(err error) {
	h.logger.Warn("consent handling failed, continuing without it",
		"selector", h.Selector,
		"error", err,
	)
}
