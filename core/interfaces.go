// Package core defines the pipeline types and interfaces for bookpipe.
// Each stage of the pipeline is a clean, testable interface.
package core

import (
	"context"
	"fmt"
)

// Platform identifies the hosting backend of an e-book.
type Platform int

const (
	PlatformDigi4School Platform = iota // vector pages, shape auto-detection
	PlatformHpthek                      // vector pages, re-derived book id
	PlatformScook                       // raster pages inside a frame
)

// String returns the platform's display name.
func (p Platform) String() string {
	switch p {
	case PlatformDigi4School:
		return "digi4school"
	case PlatformHpthek:
		return "hpthek"
	case PlatformScook:
		return "scook"
	default:
		return fmt.Sprintf("platform(%d)", int(p))
	}
}

// DocumentHandle is the resolved identity of the selected book.
type DocumentHandle struct {
	Platform   Platform
	DocumentID string
	Domain     string
	Title      string
	LandingURL string
}

// PageRange is a half-open page interval [First, Last).
type PageRange struct {
	First int
	Last  int
}

// Len returns the number of pages in the range.
func (r PageRange) Len() int {
	if r.Last < r.First {
		return 0
	}
	return r.Last - r.First
}

// Pages returns the page indices in ascending order.
func (r PageRange) Pages() []int {
	pages := make([]int, 0, r.Len())
	for p := r.First; p < r.Last; p++ {
		pages = append(pages, p)
	}
	return pages
}

// String renders the range the way it is logged.
func (r PageRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.First, r.Last)
}

// AssetKind is the type of a sub-asset referenced from a page.
type AssetKind int

const (
	AssetImage AssetKind = iota
	AssetSVG
)

// AssetReference is one embedded resource of a vector page.
type AssetReference struct {
	OwnerPage  int
	LocalIndex int // 1-based, in document order
	RemoteHref string
	LocalName  string // set once the asset is written to the working directory
	Kind       AssetKind
}

// OutputKind tells how a platform delivers page content.
type OutputKind int

const (
	VectorWithAssets OutputKind = iota
	RasterImage
)

// PageArtifact is a page materialized in the working directory.
type PageArtifact struct {
	PageIndex        int
	Kind             OutputKind
	PrimaryURL       string
	PrimaryAssetPath string
	AssetRefs        []AssetReference
	Materialized     bool
	Resumed          bool // loaded from a previous run without network access
}

// ConvertedPage is the single-page PDF produced from an artifact.
type ConvertedPage struct {
	PageIndex  int
	OutputPath string
}

// FetchResult holds the raw body and response metadata from a fetch.
type FetchResult struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher retrieves raw bytes from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// Strategy encapsulates everything that differs between platforms.
type Strategy interface {
	// DiscoverRange resolves the page range of the document.
	DiscoverRange(ctx context.Context) (PageRange, error)
	// PrimaryAssetURL returns the URL of the page's primary asset.
	PrimaryAssetURL(page int) string
	// AssetURL builds the remote URL of a sub-asset. primaryURL is the URL
	// the page's primary asset was actually fetched from.
	AssetURL(page int, primaryURL string, ref AssetReference) (string, error)
	OutputKind() OutputKind
}

// ShapeFallback is implemented by strategies whose primary asset path may
// need a per-run alternative shape.
type ShapeFallback interface {
	// IsNotFound reports whether a response body is the platform's
	// "not found" marker page.
	IsNotFound(body []byte) bool
	FallbackURL(page int) string
	// AdoptFallback makes the fallback shape the primary shape for the
	// rest of the run.
	AdoptFallback()
}

// Converter turns a materialized page into a single-page PDF.
type Converter interface {
	Convert(artifact *PageArtifact) (ConvertedPage, error)
}
