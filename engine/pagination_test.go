package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePageCount(t *testing.T) {
	tests := []struct {
		name  string
		html  string
		match BoundMatch
		want  int
	}{
		{"page of total", `<span class="page-info">Page 1 of 7</span>`, BoundFirst, 7},
		{"bare of total", `<span class="page-info">of 12</span>`, BoundFirst, 12},
		{"thousands separator", `<span class="page-info">Page 1 of 1,204</span>`, BoundFirst, 1204},
		{"first match", `<span class="page-info">Page 1 of 5</span><span class="page-info">Showing 30 items</span>`, BoundFirst, 5},
		{"numbered links uses last", `<span class="page-info">1</span><span class="page-info">2</span><span class="page-info">9</span>`, BoundLast, 9},
		{"absent", `<div>nothing here</div>`, BoundFirst, 1},
		{"unparsable", `<span class="page-info">Next page</span>`, BoundLast, 1},
		{"zero clamps to one", `<span class="page-info">Page 0 of 0</span>`, BoundFirst, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := mustSnapshot("<html><body>" + tt.html + "</body></html>")
			assert.Equal(t, tt.want, ResolvePageCount(snap, "span.page-info", tt.match))
		})
	}
}

func TestResolvePageCount_NilOrEmptySelector(t *testing.T) {
	assert.Equal(t, 1, ResolvePageCount(nil, "span.page-info", BoundFirst))
	snap := mustSnapshot(`<span class="page-info">Page 1 of 7</span>`)
	assert.Equal(t, 1, ResolvePageCount(snap, "", BoundLast))
}

func TestResolveItemCount(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{"plain", `<div class="total">250 products</div>`, 250},
		{"thousands separator", `<div class="total">1,234 products</div>`, 1234},
		{"first integer wins", `<div class="total">Showing 48 of 250</div>`, 48},
		{"absent", `<p>empty</p>`, 1},
		{"no digits", `<div class="total">No products</div>`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := mustSnapshot("<html><body>" + tt.html + "</body></html>")
			assert.Equal(t, tt.want, ResolveItemCount(snap, "div.total"))
		})
	}
}
