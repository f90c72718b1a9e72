// Package commands implements the shelfscan command line.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/logging"
)

var rootCmd = &cobra.Command{
	Use:           "shelfscan",
	Short:         "shelfscan scrapes product listings from grocery retailer sites.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the command line and exits non-zero on error.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the logger. The returned func
// flushes the log file, if any.
func setup() (*config.Config, *slog.Logger, func(), error) {
	cfg := config.Load()
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, func() { _ = closeLog() }, nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
