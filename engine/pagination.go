package engine

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "Page 1 of 7", "of 7".
	ofTotalPattern = regexp.MustCompile(`(?i)\bof\s+(\d{1,3}(?:,\d{3})+|\d+)`)
	// First integer token, allowing thousands separators ("1,234 products").
	integerPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})+|\d+`)
)

// ResolvePageCount returns the number of pages of a fixed-pagination
// listing from the first or last element matching selector. Anything
// missing or unparsable resolves to 1.
func ResolvePageCount(snap *Snapshot, selector string, match BoundMatch) int {
	if snap == nil || selector == "" {
		return 1
	}
	matches := snap.Find(selector)
	if matches.Length() == 0 {
		return 1
	}
	el := matches.First()
	if match == BoundLast {
		el = matches.Last()
	}
	return parseBound(el.Text(), true)
}

// ResolveItemCount returns the advertised number of items of an
// infinite-scroll listing from the first element matching selector.
// Anything missing or unparsable resolves to 1.
func ResolveItemCount(snap *Snapshot, selector string) int {
	if snap == nil || selector == "" {
		return 1
	}
	matches := snap.Find(selector)
	if matches.Length() == 0 {
		return 1
	}
	return parseBound(matches.First().Text(), false)
}

// parseBound extracts a positive integer from text. With preferTotal an
// "of N" phrase wins over the first integer token.
func parseBound(text string, preferTotal bool) int {
	if preferTotal {
		if m := ofTotalPattern.FindStringSubmatch(text); m != nil {
			return atoiOrOne(m[1])
		}
	}
	token := integerPattern.FindString(text)
	if token == "" {
		return 1
	}
	return atoiOrOne(token)
}

func atoiOrOne(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
