package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/shelfscan/api"
	"github.com/use-agent/shelfscan/api/handler"
	"github.com/use-agent/shelfscan/cache"
	"github.com/use-agent/shelfscan/output"
	"github.com/use-agent/shelfscan/scraper"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// ── 1. Configuration and logging ────────────────────────────────
		cfg, logger, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()
		logger.Info("shelfscan starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"mode", cfg.Server.Mode,
			"workers", cfg.Scraper.Workers,
			"sink", cfg.Output.Sink,
		)

		// ── 2. Browser ──────────────────────────────────────────────────
		browser, err := scraper.NewBrowser(cfg.Browser, logger)
		if err != nil {
			return err
		}
		defer browser.Close()

		// ── 3. Output sink and cache ────────────────────────────────────
		sink, err := output.New(cfg.Output)
		if err != nil {
			return err
		}
		defer sink.Close()

		// ── 4. Router ───────────────────────────────────────────────────
		router := api.NewRouter(cfg, api.Deps{
			Runner:    scraper.NewRunner(browser, cfg.Scraper, logger),
			Sessions:  browser,
			Sink:      sink,
			Target:    output.DefaultTarget(cfg.Output),
			Cache:     cache.New(cfg.Cache.MaxEntries),
			Store:     handler.NewJobStore(),
			Logger:    logger,
			StartTime: time.Now(),
		})

		// ── 5. HTTP server ──────────────────────────────────────────────
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		// ── 6. Graceful shutdown ────────────────────────────────────────
		select {
		case err := <-errCh:
			return fmt.Errorf("HTTP server error: %w", err)
		case <-cmd.Context().Done():
			logger.Info("shutdown signal received")
		}

		// Give in-flight requests 5 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server forced shutdown", "error", err)
		} else {
			logger.Info("HTTP server drained gracefully")
		}

		// browser.Close() runs via defer and kills Chrome.
		slog.Info("shelfscan stopped")
		return nil
	},
}
