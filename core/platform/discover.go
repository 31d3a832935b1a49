// Package platform implements the per-platform page strategies: range
// discovery, asset addressing and output kind.
//
// Discovery navigates the reader the way an operator would, but over plain
// HTTP GETs: a navigation control is "clicked" by following its target and
// the resulting page index is read from the URL or from a form field.
package platform

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/bookpipe/core"
)

// targetAttrs are the attributes a control's navigation target is read
// from, in priority order.
var targetAttrs = []string{"href", "data-href", "data-url", "src", "data"}

// document is a fetched HTML page and the URL it was served from.
type document struct {
	doc *goquery.Document
	url *url.URL
}

// load fetches rawURL and parses it as HTML.
func load(ctx context.Context, f core.Fetcher, rawURL string) (*document, error) {
	res, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	final, err := url.Parse(res.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing final URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", res.URL, err)
	}
	return &document{doc: doc, url: final}, nil
}

// target resolves the navigation target of the first element matching
// selector.
func (d *document) target(selector string) (*url.URL, error) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("no element matches %q on %s", selector, d.url)
	}
	for _, attr := range targetAttrs {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return resolve(d.url, v)
		}
	}
	return nil, fmt.Errorf("element %q on %s has no navigation target", selector, d.url)
}

// follow navigates the control matching selector and returns the page it
// leads to.
func (d *document) follow(ctx context.Context, f core.Fetcher, selector string) (*document, error) {
	u, err := d.target(selector)
	if err != nil {
		return nil, err
	}
	return load(ctx, f, u.String())
}

// attrInt reads an integer attribute of the first element matching
// selector.
func (d *document) attrInt(selector, attr string) (int, error) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return 0, fmt.Errorf("no element matches %q on %s", selector, d.url)
	}
	raw, ok := sel.Attr(attr)
	if !ok {
		return 0, fmt.Errorf("element %q has no %s attribute", selector, attr)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s of %q: %w", attr, selector, err)
	}
	return n, nil
}

// has reports whether any element matches selector.
func (d *document) has(selector string) bool {
	return d.doc.Find(selector).Length() > 0
}

// navigateQueryPage follows a control and reads the "page" query of the
// URL it lands on.
func navigateQueryPage(ctx context.Context, f core.Fetcher, d *document, selector string) (int, *document, error) {
	next, err := d.follow(ctx, f, selector)
	if err != nil {
		return 0, nil, err
	}
	n, err := pageQuery(next.url)
	if err != nil {
		return 0, nil, err
	}
	return n, next, nil
}

// inclusiveRange validates an inclusive [first, last] range and returns it
// as a half-open PageRange.
func inclusiveRange(first, last int) (core.PageRange, error) {
	if last < first {
		return core.PageRange{}, fmt.Errorf("document has no pages (first %d, last %d)", first, last)
	}
	return core.PageRange{First: first, Last: last + 1}, nil
}

func discoveryError(p core.Platform, step string, err error) error {
	return &core.DiscoveryError{Platform: p, Step: step, Err: err}
}
