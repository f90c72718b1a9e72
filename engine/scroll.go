package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ScrollDriver forces lazy-loaded containers to render by scrolling the
// last container of each batch into view.
type ScrollDriver struct {
	BatchSize     int
	StableQuiet   time.Duration
	StableTimeout time.Duration

	logger *slog.Logger
}

// NewScrollDriver creates a driver that scrolls batchSize containers at a time.
func NewScrollDriver(batchSize int, logger *slog.Logger) *ScrollDriver {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize < 1 {
		batchSize = 100
	}
	return &ScrollDriver{
		BatchSize:     batchSize,
		StableQuiet:   500 * time.Millisecond,
		StableTimeout: 5 * time.Second,
		logger:        logger,
	}
}

// Run scrolls through every container matching selector and returns the
// number of batch steps taken: ceil(containers / BatchSize). The container
// list is enumerated once up front; callers must take a fresh snapshot
// afterwards rather than reuse anything observed before scrolling.
func (d *ScrollDriver) Run(ctx context.Context, sess Session, selector string) (int, error) {
	n, err := sess.Count(ctx, selector)
	if err != nil {
		return 0, fmt.Errorf("scroll: count containers: %w", err)
	}
	d.logger.Info("containers located", "count", n, "selector", selector)

	steps := 0
	for i := 0; i < n; i += d.BatchSize {
		target := min(i+d.BatchSize-1, n-1)
		if err := sess.ScrollIntoView(ctx, selector, target); err != nil {
			return steps, fmt.Errorf("scroll: container %d: %w", target, err)
		}
		steps++
		d.settle(ctx, sess)
	}
	return steps, nil
}

func (d *ScrollDriver) settle(ctx context.Context, sess Session) {
	if d.StableTimeout <= 0 {
		return
	}
	stableCtx, cancel := context.WithTimeout(ctx, d.StableTimeout)
	defer cancel()
	if err := sess.WaitStable(stableCtx, d.StableQuiet); err != nil {
		d.logger.Debug("batch did not settle before timeout", "error", err)
	}
}
