// Package extract pulls listings, descriptions and page counts out of HTML
// documents using the selectors of a crawler.Schema.
package extract

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
)

// Document is one parsed HTML page.
type Document struct {
	URL string
	doc *goquery.Document
}

// Parse builds a Document from raw HTML fetched from rawURL.
func Parse(rawURL, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &crawler.ExtractionError{URL: rawURL, Selector: "html", Reason: "parse document", Err: err}
	}
	return &Document{URL: rawURL, doc: doc}, nil
}

// Extractor applies a Schema to documents. It holds no mutable state and is
// safe for concurrent use.
type Extractor struct {
	schema crawler.Schema
	base   *url.URL
}

// New returns an Extractor resolving relative detail links against baseURL.
func New(schema crawler.Schema, baseURL string) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", baseURL)
	}
	return &Extractor{schema: schema.WithDefaults(), base: base}, nil
}

// Schema returns the selectors in use.
func (e *Extractor) Schema() crawler.Schema {
	return e.schema
}

// CountPages reads the total number of index pages from the pagination control.
// A page without one is a single-page listing.
func (e *Extractor) CountPages(doc *Document) (int, error) {
	pagination := doc.doc.Find(e.schema.Pagination).First()
	if pagination.Length() == 0 {
		return 1, nil
	}
	items := pagination.Find(e.schema.PaginationItem)
	if items.Length() < 2 {
		return 0, &crawler.ExtractionError{
			URL:      doc.URL,
			Selector: e.schema.PaginationItem,
			Reason:   fmt.Sprintf("pagination has %d items, need at least 2", items.Length()),
		}
	}
	// The last item is the "next" control; the one before it is the last page number.
	text := strings.TrimSpace(items.Eq(items.Length() - 2).Text())
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &crawler.ExtractionError{
			URL:      doc.URL,
			Selector: e.schema.PaginationItem,
			Reason:   fmt.Sprintf("last page number %q is not an integer", text),
			Err:      err,
		}
	}
	if n < 1 {
		return 0, &crawler.ExtractionError{
			URL:      doc.URL,
			Selector: e.schema.PaginationItem,
			Reason:   fmt.Sprintf("last page number %d is not positive", n),
		}
	}
	return n, nil
}

// ExtractSummaries returns the listings of an index page in document order.
// A listing missing a required element is left out and reported in the error slice.
func (e *Extractor) ExtractSummaries(doc *Document) ([]crawler.ListingSummary, []error) {
	var (
		summaries []crawler.ListingSummary
		failures  []error
	)
	doc.doc.Find(e.schema.ListingItem).Each(func(i int, item *goquery.Selection) {
		summary, err := e.summary(doc.URL, i, item)
		if err != nil {
			failures = append(failures, fmt.Errorf("listing %d: %w", i, err))
			return
		}
		summaries = append(summaries, summary)
	})
	return summaries, failures
}

func (e *Extractor) summary(docURL string, index int, item *goquery.Selection) (crawler.ListingSummary, error) {
	title := item.Find(e.schema.Title).First()
	if title.Length() == 0 {
		return crawler.ListingSummary{}, missing(docURL, e.schema.Title)
	}
	company := item.Find(e.schema.Company).First()
	if company.Length() == 0 {
		return crawler.ListingSummary{}, missing(docURL, e.schema.Company)
	}
	href, ok := item.Find(e.schema.DetailLink).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return crawler.ListingSummary{}, missing(docURL, e.schema.DetailLink)
	}
	detail, err := e.resolve(href)
	if err != nil {
		return crawler.ListingSummary{}, &crawler.ExtractionError{
			URL:      docURL,
			Selector: e.schema.DetailLink,
			Reason:   "invalid detail link",
			Err:      err,
		}
	}
	return crawler.ListingSummary{
		Index:     index,
		Title:     strings.TrimSpace(title.Text()),
		Company:   strings.TrimSpace(company.Text()),
		DetailURL: detail,
	}, nil
}

// ExtractDescription returns the full text of a detail page's description container.
func (e *Extractor) ExtractDescription(doc *Document) (string, error) {
	container := doc.doc.Find(e.schema.Description).First()
	if container.Length() == 0 {
		return "", missing(doc.URL, e.schema.Description)
	}
	return container.Text(), nil
}

func (e *Extractor) resolve(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	return e.base.ResolveReference(ref).String(), nil
}

func missing(docURL, selector string) error {
	return &crawler.ExtractionError{URL: docURL, Selector: selector, Reason: "element not found"}
}
