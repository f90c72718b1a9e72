package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/output"
	"github.com/use-agent/shelfscan/scraper"
	"github.com/use-agent/shelfscan/site"
)

var runFlags struct {
	site       string
	categories []string
	workers    int
	format     string
	sink       string
	prefix     string
	folder     string
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.site, "site", "", "retailer to scrape, e.g. aldi")
	f.StringArrayVar(&runFlags.categories, "category", nil, "category as id=slug; repeat for several")
	f.IntVar(&runFlags.workers, "workers", 0, "categories scraped concurrently (default from SHELFSCAN_WORKERS)")
	f.StringVar(&runFlags.format, "format", "", "output format: csv or columnar")
	f.StringVar(&runFlags.sink, "sink", "", "output sink: file or redis")
	f.StringVar(&runFlags.prefix, "prefix", "", "output file or stream name prefix")
	f.StringVar(&runFlags.folder, "folder", "", "output sub-folder")
	_ = runCmd.MarkFlagRequired("site")
	_ = runCmd.MarkFlagRequired("category")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrapes the given categories of one site and writes the records.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()

		adapter, err := site.Lookup(runFlags.site)
		if err != nil {
			return err
		}
		categories := make([]models.Category, 0, len(runFlags.categories))
		for _, raw := range runFlags.categories {
			c, err := models.ParseCategory(raw)
			if err != nil {
				return err
			}
			categories = append(categories, c)
		}

		if runFlags.sink != "" {
			cfg.Output.Sink = runFlags.sink
		}
		target := output.DefaultTarget(cfg.Output).Merge(output.Target{
			Prefix: runFlags.prefix,
			Folder: runFlags.folder,
			Format: runFlags.format,
		})
		if err := target.Validate(); err != nil {
			return err
		}
		sink, err := output.New(cfg.Output)
		if err != nil {
			return err
		}
		defer sink.Close()

		browser, err := scraper.NewBrowser(cfg.Browser, logger)
		if err != nil {
			return err
		}
		defer browser.Close()

		start := time.Now()
		runner := scraper.NewRunner(browser, cfg.Scraper, logger)
		agg, err := runner.Run(cmd.Context(), adapter.Name(), categories, runFlags.workers, nil)
		if err != nil {
			return err
		}

		location, err := sink.Write(cmd.Context(), agg, target)
		if err != nil {
			return err
		}

		printSummary(agg)
		fmt.Printf("\n%d records from %s in %s\nwritten to %s\n",
			len(agg.Records), adapter.Name(), time.Since(start).Round(time.Second), location)
		return nil
	},
}

func printSummary(agg models.AggregateResult) {
	counts := agg.RecordCount()

	t := newTable()
	t.AppendHeader(table.Row{"Category", "Records", "Pages", "Expected", "Failure"})
	for _, c := range agg.Categories {
		expected := "-"
		if c.ExpectedCount > 0 {
			expected = fmt.Sprint(c.ExpectedCount)
		}
		t.AppendRow(table.Row{
			c.Category,
			counts[c.Category],
			fmt.Sprintf("%d/%d", c.PagesSucceeded, c.PagesAttempted),
			expected,
			c.Failure,
		})
	}
	t.AppendFooter(table.Row{"Total", len(agg.Records)})
	t.Render()
}
