package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gaurav-prasanna/bookpipe/core"
)

// rasterSuffix is the fixed tail of a scook page image path: a three-digit
// zero-padded page number plus the extension.
const rasterSuffix = "001.jpg"

// Scook is the raster-page strategy of www.scook.at. The reader runs in a
// nested frame and pages are served as numbered JPEGs.
type Scook struct {
	handle  core.DocumentHandle
	fetcher core.Fetcher
	logger  *slog.Logger

	mu      sync.RWMutex
	pattern *url.URL // first page image URL with the suffix trimmed from Path
}

// NewScook creates the strategy for handle.
func NewScook(handle core.DocumentHandle, f core.Fetcher, logger *slog.Logger) *Scook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scook{
		handle:  handle,
		fetcher: f,
		logger:  logger.With("platform", core.PlatformScook.String()),
	}
}

// DiscoverRange implements core.Strategy.
func (s *Scook) DiscoverRange(ctx context.Context) (core.PageRange, error) {
	const p = core.PlatformScook

	landing, err := load(ctx, s.fetcher, s.handle.LandingURL)
	if err != nil {
		return core.PageRange{}, discoveryError(p, "landing page", err)
	}
	frame, err := landing.follow(ctx, s.fetcher, "iframe")
	if err != nil {
		return core.PageRange{}, discoveryError(p, "reader frame", err)
	}

	lastDoc, err := frame.follow(ctx, s.fetcher, ".go-last")
	if err != nil {
		return core.PageRange{}, discoveryError(p, "last page", err)
	}
	last, err := lastDoc.attrInt("input.current-page", "placeholder")
	if err != nil {
		return core.PageRange{}, discoveryError(p, "last page", err)
	}
	firstDoc, err := frame.follow(ctx, s.fetcher, ".go-first")
	if err != nil {
		return core.PageRange{}, discoveryError(p, "first page", err)
	}
	first, err := firstDoc.attrInt("input.current-page", "placeholder")
	if err != nil {
		return core.PageRange{}, discoveryError(p, "first page", err)
	}
	rng, err := inclusiveRange(first, last)
	if err != nil {
		return core.PageRange{}, discoveryError(p, "range", err)
	}

	img, err := firstPageImage(firstDoc)
	if err != nil {
		return core.PageRange{}, discoveryError(p, "page image", err)
	}
	pattern, err := rasterPattern(img)
	if err != nil {
		return core.PageRange{}, discoveryError(p, "page image", err)
	}

	s.mu.Lock()
	s.pattern = pattern
	s.mu.Unlock()

	s.logger.Info("Discovered page range.", "range", rng.String(), "firstImage", img.String())
	return rng, nil
}

// firstPageImage returns the observed image URL of the first page.
func firstPageImage(d *document) (*url.URL, error) {
	for _, sel := range []string{`img[src$=".jpg"]`, "img"} {
		if u, err := d.target(sel); err == nil {
			return u, nil
		}
	}
	return nil, errors.New("no page image in reader frame")
}

// rasterPattern trims the fixed-length page suffix from an observed page
// image URL.
func rasterPattern(img *url.URL) (*url.URL, error) {
	if len(img.Path) < len(rasterSuffix) || !isPageSuffix(img.Path[len(img.Path)-len(rasterSuffix):]) {
		return nil, fmt.Errorf("image path %q does not end in NNN.jpg", img.Path)
	}
	pattern := *img
	pattern.Path = img.Path[:len(img.Path)-len(rasterSuffix)]
	pattern.RawPath = ""
	return &pattern, nil
}

func isPageSuffix(s string) bool {
	for _, ch := range s[:3] {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return strings.EqualFold(s[3:], ".jpg")
}

// PrimaryAssetURL implements core.Strategy.
func (s *Scook) PrimaryAssetURL(page int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pattern == nil {
		return ""
	}
	u := *s.pattern
	u.Path = fmt.Sprintf("%s%03d.jpg", s.pattern.Path, page)
	return u.String()
}

// AssetURL implements core.Strategy. Raster pages have no sub-assets.
func (s *Scook) AssetURL(page int, primaryURL string, ref core.AssetReference) (string, error) {
	return "", fmt.Errorf("page %d: raster pages have no sub-assets", page)
}

// OutputKind implements core.Strategy.
func (s *Scook) OutputKind() core.OutputKind { return core.RasterImage }
