package site

import (
	"fmt"

	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
)

// Aldi walks numbered listing pages and pairs fields positionally.
type Aldi struct{}

func (Aldi) Name() string { return "aldi" }

func (Aldi) ListingURL(c models.Category, page int) string {
	return fmt.Sprintf("https://groceries.aldi.co.uk/en-GB/%s?&page=%d", c.PathSlug(), page)
}

func (Aldi) Layout() engine.Layout {
	return engine.Layout{
		Pagination:      engine.FixedPages,
		Extraction:      engine.Positional,
		ConsentSelector: onetrustAccept,
		ReadySelector:   "a.p.text-default-font",
		BoundSelector:   "span.d-flex-inline.pt-2",
		Name:            engine.Field{Selector: "a.p.text-default-font", Attr: "title"},
		Price:           engine.Field{Selector: "span.h4"},
		Weight:          engine.Field{Selector: "div.text-gray-small"},
	}
}
