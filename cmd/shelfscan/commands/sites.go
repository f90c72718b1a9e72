package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/site"
)

func init() {
	rootCmd.AddCommand(sitesCmd)
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Lists the supported retailer sites and how each is traversed.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		t := newTable()
		t.AppendHeader(table.Row{"Site", "Pagination", "Extraction", "Consent", "Weight", "Example URL"})
		for _, a := range site.All() {
			layout := a.Layout()
			t.AppendRow(table.Row{
				a.Name(),
				layout.Pagination,
				layout.Extraction,
				yesNo(layout.ConsentSelector != ""),
				yesNo(layout.HasWeight()),
				a.ListingURL(models.Category{ID: "category", Slug: "{category}"}, 1),
			})
		}
		t.Render()
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
