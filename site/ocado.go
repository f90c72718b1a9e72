package site

import (
	"fmt"

	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
)

// Ocado serves the whole category on one lazily rendered listing.
type Ocado struct{}

func (Ocado) Name() string { return "ocado" }

// ListingURL ignores page: display=2400 requests the largest listing the
// site will render.
func (Ocado) ListingURL(c models.Category, _ int) string {
	return fmt.Sprintf("https://www.ocado.com/browse/m-s-at-ocado-294578/%s?display=2400", c.PathSlug())
}

func (Ocado) Layout() engine.Layout {
	return engine.Layout{
		Pagination:        engine.InfiniteScroll,
		Extraction:        engine.PerContainer,
		ConsentSelector:   onetrustAccept,
		ReadySelector:     "li[class*='fops-item']",
		BoundSelector:     "div.total-product-number",
		ContainerSelector: "li[class*='fops-item']",
		Name:              engine.Field{Selector: "h4.fop-title", Attr: "title"},
		Price:             engine.Field{Selector: "span.fop-price"},
		Weight:            engine.Field{Selector: "span.fop-catch-weight"},
	}
}
