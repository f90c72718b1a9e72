package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
)

func TestListingURL(t *testing.T) {
	fruit := models.Category{ID: "fruit", Slug: "fresh-food/fruit"}
	tests := []struct {
		site string
		page int
		want string
	}{
		{"aldi", 3, "https://groceries.aldi.co.uk/en-GB/fresh-food/fruit?&page=3"},
		{"tesco", 2, "https://www.tesco.com/groceries/en-GB/shop/fresh-food/fruit/all?page=2"},
		{"ocado", 1, "https://www.ocado.com/browse/m-s-at-ocado-294578/fresh-food/fruit?display=2400"},
		{"ocado", 7, "https://www.ocado.com/browse/m-s-at-ocado-294578/fresh-food/fruit?display=2400"},
	}
	for _, tt := range tests {
		t.Run(tt.site, func(t *testing.T) {
			a, err := Lookup(tt.site)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.ListingURL(fruit, tt.page))
		})
	}
}

func TestListingURL_BareSlug(t *testing.T) {
	got := Aldi{}.ListingURL(models.Category{ID: "bakery"}, 1)
	assert.Equal(t, "https://groceries.aldi.co.uk/en-GB/bakery?&page=1", got)
}

func TestLayouts(t *testing.T) {
	for _, a := range All() {
		t.Run(a.Name(), func(t *testing.T) {
			assert.NoError(t, a.Layout().Validate())
		})
	}

	assert.Equal(t, engine.Positional, Aldi{}.Layout().Extraction)
	assert.Equal(t, engine.FixedPages, Tesco{}.Layout().Pagination)
	assert.False(t, Tesco{}.Layout().HasWeight())
	assert.Equal(t, "Out of Stock", Tesco{}.Layout().Price.Sentinel)
	assert.Empty(t, Tesco{}.Layout().ConsentSelector)
	assert.Equal(t, engine.InfiniteScroll, Ocado{}.Layout().Pagination)
}

func TestLookup(t *testing.T) {
	a, err := Lookup(" OCADO ")
	require.NoError(t, err)
	assert.Equal(t, "ocado", a.Name())

	_, err = Lookup("waitrose")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
	assert.Contains(t, err.Error(), "aldi, ocado, tesco")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"aldi", "ocado", "tesco"}, Names())
}

func TestTescoExtraction(t *testing.T) {
	html := `<html><body>
	<div class="styled__StyledVerticalTile-sc-1r1v9f3-1 iAEUS">
		<span class="styled__Text-sc-1i711qa-1 bsLJsh ddsweb-link__text">Tesco Whole Milk 2.272L</span>
		<p class="text__StyledText-sc-1jpzi8m-0 gyHOWz ddsweb-text styled__PriceText-sc-v0qv7n-1 cXlRF">£1.65</p>
	</div>
	<div class="styled__StyledVerticalTile-sc-1r1v9f3-1 iAEUS">
		<span class="styled__Text-sc-1i711qa-1 bsLJsh ddsweb-link__text">Tesco Double Cream 300Ml</span>
	</div>
	<nav><span class="styled__Text-sc-1i711qa-1 bsLJsh ddsweb-link__text">1</span>
	<span class="styled__Text-sc-1i711qa-1 bsLJsh ddsweb-link__text">4</span></nav>
	</body></html>`
	snap, err := engine.ParseSnapshot("https://www.tesco.com/", html)
	require.NoError(t, err)

	layout := Tesco{}.Layout()
	records := engine.Extract(snap, layout, "dairy")
	require.Len(t, records, 2)
	assert.Equal(t, models.ProductRecord{ProductName: "Tesco Whole Milk 2.272L", Price: "£1.65", Category: "dairy"}, records[0])
	assert.Equal(t, "Out of Stock", records[1].Price)
	assert.Equal(t, 4, engine.ResolvePageCount(snap, layout.BoundSelector, layout.BoundMatch))
}

func TestOcadoExtraction(t *testing.T) {
	html := `<html><body>
	<div class="total-product-number">2 products</div>
	<ul>
		<li class="fops-item fops-item--cluster"><h4 class="fop-title" title="Oat Milk">Oat Milk</h4><span class="fop-price">£1.80</span><span class="fop-catch-weight">1L</span></li>
		<li class="fops-item"><h4 class="fop-title" title="Butter">Butter</h4><span class="fop-price">£2.50</span></li>
	</ul>
	</body></html>`
	snap, err := engine.ParseSnapshot("https://www.ocado.com/", html)
	require.NoError(t, err)

	layout := Ocado{}.Layout()
	records := engine.Extract(snap, layout, "dairy")
	require.Len(t, records, 2)
	assert.Equal(t, "1L", records[0].Weight)
	assert.Equal(t, engine.DefaultSentinel, records[1].Weight)
	assert.Equal(t, 2, engine.ResolveItemCount(snap, layout.BoundSelector))
}

func TestAldiExtraction(t *testing.T) {
	html := `<html><body>
	<span class="d-flex-inline pt-2">Page 1 of 3</span>
	<a class="p text-default-font" title="Nature's Pick Bananas">Bananas</a><span class="h4">£0.89</span><div class="text-gray-small">5 pack</div>
	<a class="p text-default-font" title="Specially Selected Grapes">Grapes</a><span class="h4">£2.29</span><div class="text-gray-small">500g</div>
	<span class="d-flex-inline pt-2">Showing 24 of 72 products</span>
	</body></html>`
	snap, err := engine.ParseSnapshot("https://groceries.aldi.co.uk/", html)
	require.NoError(t, err)

	layout := Aldi{}.Layout()
	records := engine.Extract(snap, layout, "fruit")
	require.Len(t, records, 2)
	assert.Equal(t, models.ProductRecord{ProductName: "Specially Selected Grapes", Price: "£2.29", Weight: "500g", Category: "fruit"}, records[1])
	assert.Equal(t, 3, engine.ResolvePageCount(snap, layout.BoundSelector, layout.BoundMatch))
}
