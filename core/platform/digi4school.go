package platform

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/bookpipe/core"
)

// svgShape is the address shape of a digi4school page SVG.
type svgShape int

const (
	shapeStandard svgShape = iota // ebook/{id}/{page}.svg
	shapePerPage                  // ebook/{id}/{page}/{page}.svg
	shapeFirstDir                 // ebook/{id}/1/{page}.svg
)

func (s svgShape) String() string {
	switch s {
	case shapePerPage:
		return "per-page"
	case shapeFirstDir:
		return "first-dir"
	default:
		return "standard"
	}
}

// notFoundHeading is the h3 text of digi4school's error page.
const notFoundHeading = "digi4school - Fehler"

// perPageShape matches a reader object URL that uses the per-page shape.
var perPageShape = regexp.MustCompile(`/ebook/\d+/\d+/[^/]+\.svg$`)

// bookPagePath matches the intermediate book page that precedes the reader.
var bookPagePath = regexp.MustCompile(`^/ebook/\d+/?$`)

// Digi4School is the vector-page strategy of a.digi4school.at.
type Digi4School struct {
	handle  core.DocumentHandle
	fetcher core.Fetcher
	logger  *slog.Logger

	mu    sync.Mutex
	base  string // scheme://host/
	id    string
	shape svgShape
}

// NewDigi4School creates the strategy for handle.
func NewDigi4School(handle core.DocumentHandle, f core.Fetcher, logger *slog.Logger) *Digi4School {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digi4School{
		handle:  handle,
		fetcher: f,
		logger:  logger.With("platform", core.PlatformDigi4School.String()),
		id:      handle.DocumentID,
	}
}

// DiscoverRange implements core.Strategy.
func (s *Digi4School) DiscoverRange(ctx context.Context) (core.PageRange, error) {
	const p = core.PlatformDigi4School

	reader, err := load(ctx, s.fetcher, s.handle.LandingURL)
	if err != nil {
		return core.PageRange{}, discoveryError(p, "landing page", err)
	}

	// Some books open on an intermediate page that links to the reader.
	if !reader.has("#btnLast") && bookPagePath.MatchString(reader.url.Path) {
		s.logger.Info("Following intermediate book page.", "url", reader.url.String())
		reader, err = reader.follow(ctx, s.fetcher, "body > div:nth-of-type(2) a")
		if err != nil {
			return core.PageRange{}, discoveryError(p, "book page", err)
		}
	}

	last, _, err := navigateQueryPage(ctx, s.fetcher, reader, "#btnLast")
	if err != nil {
		return core.PageRange{}, discoveryError(p, "last page", err)
	}
	first, firstDoc, err := navigateQueryPage(ctx, s.fetcher, reader, "#btnFirst")
	if err != nil {
		return core.PageRange{}, discoveryError(p, "first page", err)
	}
	rng, err := inclusiveRange(first, last)
	if err != nil {
		return core.PageRange{}, discoveryError(p, "range", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = origin(firstDoc.url)
	if s.id == "" {
		if id, ok := firstInteger(firstDoc.url.Path); ok {
			s.id = id
		}
	}
	if s.id == "" {
		return core.PageRange{}, discoveryError(p, "book id", fmt.Errorf("no book id in %s", firstDoc.url))
	}
	if obj, err := firstDoc.target("object"); err == nil && perPageShape.MatchString(obj.Path) {
		s.shape = shapePerPage
	}
	s.logger.Info("Discovered page range.", "range", rng.String(), "bookId", s.id, "shape", s.shape.String())
	return rng, nil
}

// PrimaryAssetURL implements core.Strategy.
func (s *Digi4School) PrimaryAssetURL(page int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urlFor(s.shape, page)
}

func (s *Digi4School) urlFor(shape svgShape, page int) string {
	switch shape {
	case shapePerPage:
		return fmt.Sprintf("%sebook/%s/%d/%d.svg", s.base, s.id, page, page)
	case shapeFirstDir:
		return fmt.Sprintf("%sebook/%s/1/%d.svg", s.base, s.id, page)
	default:
		return fmt.Sprintf("%sebook/%s/%d.svg", s.base, s.id, page)
	}
}

// AssetURL implements core.Strategy. Sub-assets live next to the page SVG.
func (s *Digi4School) AssetURL(page int, primaryURL string, ref core.AssetReference) (string, error) {
	return assetNextTo(primaryURL, ref)
}

// OutputKind implements core.Strategy.
func (s *Digi4School) OutputKind() core.OutputKind { return core.VectorWithAssets }

// IsNotFound implements core.ShapeFallback.
func (s *Digi4School) IsNotFound(body []byte) bool {
	if !bytes.Contains(body, []byte(notFoundHeading)) {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	found := false
	doc.Find("h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		found = strings.TrimSpace(h.Text()) == notFoundHeading
		return !found
	})
	return found
}

// FallbackURL implements core.ShapeFallback.
func (s *Digi4School) FallbackURL(page int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urlFor(shapeFirstDir, page)
}

// AdoptFallback implements core.ShapeFallback.
func (s *Digi4School) AdoptFallback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shape != shapeFirstDir {
		s.logger.Info("Switching to first-dir SVG shape for the rest of the run.", "previous", s.shape.String())
		s.shape = shapeFirstDir
	}
}

// assetNextTo resolves a sub-asset href against its page's URL.
func assetNextTo(primaryURL string, ref core.AssetReference) (string, error) {
	base, err := parseURL(primaryURL)
	if err != nil {
		return "", err
	}
	u, err := resolve(base, ref.RemoteHref)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
