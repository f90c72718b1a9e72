package site

import (
	"fmt"

	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
)

// Tesco walks numbered listing pages and reads each product tile on its
// own. Tiles of unavailable products carry no price element, and the
// listing exposes no weight.
type Tesco struct{}

func (Tesco) Name() string { return "tesco" }

func (Tesco) ListingURL(c models.Category, page int) string {
	return fmt.Sprintf("https://www.tesco.com/groceries/en-GB/shop/%s/all?page=%d", c.PathSlug(), page)
}

func (Tesco) Layout() engine.Layout {
	return engine.Layout{
		Pagination:        engine.FixedPages,
		Extraction:        engine.PerContainer,
		ReadySelector:     `div[class*="StyledVerticalTile"]`,
		BoundSelector:     "span.ddsweb-link__text",
		BoundMatch:        engine.BoundLast,
		ContainerSelector: `div[class*="StyledVerticalTile"]`,
		Name:              engine.Field{Selector: "span.ddsweb-link__text"},
		Price:             engine.Field{Selector: `p[class*="PriceText"]`, Sentinel: "Out of Stock"},
	}
}
