package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Structural selectors for one search-results page. The listing container
// class is stable; pagination is a pair of prev/next controls where the
// second one is the "next page" affordance.
const (
	listingSelector    = "article.cldt-summary-full-item"
	paginationSelector = "li.prev-next"
	disabledPageClass  = "pagination-item--disabled"
)

// ParsePage builds a goquery document from raw page text
func ParsePage(pageText string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(pageText))
}

// ExtractListings enumerates the listing fragments on a results page and
// reports whether a next page exists. A page with zero fragments is the end
// of results: hasNext is forced to false regardless of the pagination markup.
func ExtractListings(doc *goquery.Document) ([]*goquery.Selection, bool) {
	var fragments []*goquery.Selection
	doc.Find(listingSelector).Each(func(i int, s *goquery.Selection) {
		fragments = append(fragments, s)
	})

	if len(fragments) == 0 {
		return nil, false
	}

	return fragments, hasNextPage(doc)
}

// hasNextPage inspects the second prev-next control; a missing or disabled
// control means the last page has been reached.
func hasNextPage(doc *goquery.Document) bool {
	controls := doc.Find(paginationSelector)
	if controls.Length() < 2 {
		return false
	}

	next := controls.Eq(1)
	return !next.HasClass(disabledPageClass)
}
