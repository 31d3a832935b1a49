// Package pipeline acquires, converts and assembles the pages of a book.
//
// PageFetcher materializes one page in the working directory; Runner fans
// pages out over a bounded worker pool and assembles the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/extract"
	"github.com/gaurav-prasanna/bookpipe/core/fetch"
	"github.com/gaurav-prasanna/bookpipe/core/imaging"
	"github.com/gaurav-prasanna/bookpipe/core/output"
	"github.com/ztrue/tracerr"
)

// errNotFound means the platform answered with its "page missing" marker.
var errNotFound = errors.New("platform reports page not found")

// PageFetcher materializes single pages. Fetcher is expected to retry.
type PageFetcher struct {
	Strategy core.Strategy
	Fetcher  core.Fetcher
	WorkDir  *output.WorkDir
	Logger   *slog.Logger
}

// FetchPage returns the materialized artifact of page. A valid artifact
// left by an earlier run is returned without any network request.
func (f *PageFetcher) FetchPage(ctx context.Context, page int) (*core.PageArtifact, error) {
	logger := f.logger().With("page", page)

	if art, ok := f.resume(page, logger); ok {
		logger.Debug("Reusing page from working directory.", "path", art.PrimaryAssetPath)
		return art, nil
	}

	var (
		art *core.PageArtifact
		err error
	)
	switch f.Strategy.OutputKind() {
	case core.RasterImage:
		art, err = f.fetchRaster(ctx, page)
	default:
		art, err = f.fetchVector(ctx, page, logger)
	}
	if err != nil {
		return nil, &core.FetchError{Page: page, Err: tracerr.Wrap(err)}
	}
	logger.Info("Fetched page.", "url", art.PrimaryURL, "assets", len(art.AssetRefs))
	return art, nil
}

func (f *PageFetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// resume validates an artifact persisted by an earlier run.
func (f *PageFetcher) resume(page int, logger *slog.Logger) (*core.PageArtifact, bool) {
	kind := f.Strategy.OutputKind()
	var path string
	if kind == core.RasterImage {
		path = f.WorkDir.RasterPagePath(page)
	} else {
		path = f.WorkDir.VectorPagePath(page)
	}
	if !output.NonEmptyFile(path) {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Cannot read persisted page, refetching.", "path", path, "error", err)
		return nil, false
	}

	art := &core.PageArtifact{
		PageIndex:        page,
		Kind:             kind,
		PrimaryAssetPath: path,
		Materialized:     true,
		Resumed:          true,
	}
	if kind == core.RasterImage {
		if _, _, err := imaging.DecodeConfig(data); err != nil {
			logger.Warn("Persisted raster page is invalid, refetching.", "path", path, "error", err)
			return nil, false
		}
		return art, true
	}

	exists := func(name string) bool { return output.NonEmptyFile(f.WorkDir.Path(name)) }
	if err := extract.CheckLocalized(data, exists); err != nil {
		logger.Warn("Persisted vector page is invalid, refetching.", "path", path, "error", err)
		return nil, false
	}
	refs, _ := extract.References(data)
	k := 0
	for _, ref := range refs {
		if extract.IsEmbedded(ref.Href) {
			continue
		}
		k++
		art.AssetRefs = append(art.AssetRefs, core.AssetReference{
			OwnerPage:  page,
			LocalIndex: k,
			RemoteHref: ref.Href,
			LocalName:  ref.Href,
			Kind:       assetKind(imaging.FormatOfName(ref.Href)),
		})
	}
	return art, true
}

// fetchPrimary downloads the primary asset of page, switching to the
// strategy's fallback shape when the platform reports the page missing.
func (f *PageFetcher) fetchPrimary(ctx context.Context, page int, logger *slog.Logger) (*core.FetchResult, error) {
	primaryURL := f.Strategy.PrimaryAssetURL(page)
	res, err := f.Fetcher.Fetch(ctx, primaryURL)

	fb, ok := f.Strategy.(core.ShapeFallback)
	if !ok {
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", primaryURL, err)
		}
		return res, nil
	}
	if !reportsNotFound(fb, res, err) {
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", primaryURL, err)
		}
		return res, nil
	}

	fallbackURL := fb.FallbackURL(page)
	if fallbackURL == primaryURL {
		return nil, fmt.Errorf("fetching %s: %w", primaryURL, errNotFound)
	}
	logger.Info("Page not found, trying fallback shape.", "url", primaryURL, "fallback", fallbackURL)
	res, err = f.Fetcher.Fetch(ctx, fallbackURL)
	if err != nil {
		return nil, fmt.Errorf("fetching fallback %s: %w", fallbackURL, err)
	}
	if fb.IsNotFound(res.Body) {
		return nil, fmt.Errorf("fetching fallback %s: %w", fallbackURL, errNotFound)
	}
	fb.AdoptFallback()
	return res, nil
}

// reportsNotFound tells whether a primary response, successful or not,
// carries the platform's not-found marker.
func reportsNotFound(fb core.ShapeFallback, res *core.FetchResult, err error) bool {
	if err == nil {
		return fb.IsNotFound(res.Body)
	}
	if serr, ok := fetch.AsStatusError(err); ok {
		return fb.IsNotFound(serr.Body)
	}
	return false
}

func (f *PageFetcher) fetchVector(ctx context.Context, page int, logger *slog.Logger) (*core.PageArtifact, error) {
	res, err := f.fetchPrimary(ctx, page, logger)
	if err != nil {
		return nil, err
	}

	refs, err := extract.References(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", res.URL, err)
	}

	art := &core.PageArtifact{
		PageIndex:        page,
		Kind:             core.VectorWithAssets,
		PrimaryURL:       res.URL,
		PrimaryAssetPath: f.WorkDir.VectorPagePath(page),
	}
	names := make([]string, len(refs))
	k := 0
	for i, r := range refs {
		if extract.IsEmbedded(r.Href) {
			continue
		}
		k++
		ref := core.AssetReference{OwnerPage: page, LocalIndex: k, RemoteHref: r.Href}
		name, kind, err := f.fetchAsset(ctx, page, res.URL, ref)
		if err != nil {
			return nil, err
		}
		ref.LocalName = name
		ref.Kind = kind
		names[i] = name
		art.AssetRefs = append(art.AssetRefs, ref)
	}

	localized, err := extract.Rewrite(res.Body, refs, names)
	if err != nil {
		return nil, err
	}
	if err := output.WriteFileAtomic(art.PrimaryAssetPath, localized); err != nil {
		return nil, err
	}
	art.Materialized = true
	return art, nil
}

// fetchAsset downloads one sub-asset and stores it as {page}-{k}.{ext}.
func (f *PageFetcher) fetchAsset(ctx context.Context, page int, primaryURL string, ref core.AssetReference) (string, core.AssetKind, error) {
	assetURL, err := f.Strategy.AssetURL(page, primaryURL, ref)
	if err != nil {
		return "", 0, fmt.Errorf("addressing asset %d (%s): %w", ref.LocalIndex, ref.RemoteHref, err)
	}
	res, err := f.Fetcher.Fetch(ctx, assetURL)
	if err != nil {
		return "", 0, fmt.Errorf("fetching asset %d (%s): %w", ref.LocalIndex, assetURL, err)
	}
	data, format, err := imaging.Normalize(res.Body)
	if err != nil {
		return "", 0, fmt.Errorf("asset %d (%s): %w", ref.LocalIndex, assetURL, err)
	}
	name := output.AssetName(page, ref.LocalIndex, string(format))
	if err := output.WriteFileAtomic(f.WorkDir.Path(name), data); err != nil {
		return "", 0, err
	}
	return name, assetKind(format), nil
}

func (f *PageFetcher) fetchRaster(ctx context.Context, page int) (*core.PageArtifact, error) {
	pageURL := f.Strategy.PrimaryAssetURL(page)
	res, err := f.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	img, _, err := imaging.Decode(res.Body)
	if err != nil {
		return nil, fmt.Errorf("page image %s: %w", pageURL, err)
	}
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	path := f.WorkDir.RasterPagePath(page)
	if err := output.WriteFileAtomic(path, data); err != nil {
		return nil, err
	}
	return &core.PageArtifact{
		PageIndex:        page,
		Kind:             core.RasterImage,
		PrimaryURL:       res.URL,
		PrimaryAssetPath: path,
		Materialized:     true,
	}, nil
}

func assetKind(f imaging.Format) core.AssetKind {
	if f == imaging.FormatSVG {
		return core.AssetSVG
	}
	return core.AssetImage
}
