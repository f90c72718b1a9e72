package engine

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/models"
)

// Extract turns a snapshot into records using the layout's extraction mode.
func Extract(snap *Snapshot, layout Layout, category string) []models.ProductRecord {
	if snap == nil {
		return nil
	}
	if layout.Extraction == PerContainer {
		return ExtractPerContainer(snap, layout, category)
	}
	return ExtractPositional(snap, layout, category)
}

// ExtractPositional queries name, price and weight independently over the
// whole page and pairs them by index.
//
// An element that matches but lacks the configured attribute keeps its
// slot with the field's sentinel. If an item lacks a field element
// entirely, every later value in that field's list
// shifts by one and pairs with the wrong product. The lists are still
// zipped as-is: downstream consumers depend on this exact output.
func ExtractPositional(snap *Snapshot, layout Layout, category string) []models.ProductRecord {
	names := collect(snap.Find(layout.Name.Selector), layout.Name)
	prices := collect(snap.Find(layout.Price.Selector), layout.Price)

	var weights []string
	if layout.HasWeight() {
		weights = collect(snap.Find(layout.Weight.Selector), layout.Weight)
	}
	return ZipPositional(category, names, prices, weights)
}

// ZipPositional pairs the i-th name, price and weight, truncating to the
// shortest list. A nil weights slice means the site has no weight column
// and leaves Weight empty; a non-nil empty slice truncates like any other
// column.
func ZipPositional(category string, names, prices, weights []string) []models.ProductRecord {
	n := min(len(names), len(prices))
	if weights != nil {
		n = min(n, len(weights))
	}

	records := make([]models.ProductRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := models.ProductRecord{
			ProductName: names[i],
			Price:       prices[i],
			Category:    category,
		}
		if weights != nil {
			rec.Weight = weights[i]
		}
		records = append(records, rec)
	}
	return records
}

// ExtractPerContainer reads every field from inside each item container,
// so one record never mixes values from different products. A field that
// cannot be found is replaced by its sentinel without dropping the item.
func ExtractPerContainer(snap *Snapshot, layout Layout, category string) []models.ProductRecord {
	containers := snap.Find(layout.ContainerSelector)
	records := make([]models.ProductRecord, 0, containers.Length())

	containers.Each(func(_ int, c *goquery.Selection) {
		rec := models.ProductRecord{
			ProductName: fieldValue(c, layout.Name),
			Price:       fieldValue(c, layout.Price),
			Category:    category,
		}
		if layout.HasWeight() {
			rec.Weight = fieldValue(c, layout.Weight)
		}
		records = append(records, rec)
	})
	return records
}

// collect reads f from every element of sel in document order. An element
// lacking the configured attribute yields the field's sentinel, so the
// list keeps one entry per matched element. The result is never nil.
func collect(sel *goquery.Selection, f Field) []string {
	values := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		v, ok := read(s, f)
		if !ok {
			v = f.sentinel()
		}
		values = append(values, v)
	})
	return values
}

// fieldValue reads f from the first match inside container, falling back
// to the field's sentinel.
func fieldValue(container *goquery.Selection, f Field) (value string) {
	sentinel := f.sentinel()
	defer func() {
		if r := recover(); r != nil {
			value = sentinel
		}
	}()

	match := container.Find(f.Selector).First()
	if match.Length() == 0 {
		return sentinel
	}
	v, ok := read(match, f)
	if !ok {
		return sentinel
	}
	return v
}

func read(s *goquery.Selection, f Field) (string, bool) {
	if f.Attr != "" {
		v, exists := s.Attr(f.Attr)
		return strings.TrimSpace(v), exists
	}
	return strings.TrimSpace(s.Text()), true
}
