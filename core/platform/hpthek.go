package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gaurav-prasanna/bookpipe/core"
)

// Hpthek is the vector-page strategy of a.hpthek.at. Its numeric book id
// differs from the catalog id and is read from the reader's asset locator.
type Hpthek struct {
	handle  core.DocumentHandle
	fetcher core.Fetcher
	logger  *slog.Logger

	mu   sync.RWMutex
	base string
	id   string
}

// NewHpthek creates the strategy for handle.
func NewHpthek(handle core.DocumentHandle, f core.Fetcher, logger *slog.Logger) *Hpthek {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hpthek{
		handle:  handle,
		fetcher: f,
		logger:  logger.With("platform", core.PlatformHpthek.String()),
	}
}

// DiscoverRange implements core.Strategy.
func (s *Hpthek) DiscoverRange(ctx context.Context) (core.PageRange, error) {
	const p = core.PlatformHpthek

	reader, err := load(ctx, s.fetcher, s.handle.LandingURL)
	if err != nil {
		return core.PageRange{}, discoveryError(p, "landing page", err)
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

	locator, err := firstDoc.target("object")
	if err != nil {
		return core.PageRange{}, discoveryError(p, "asset locator", err)
	}
	// Follow the locator; redirects may land on the canonical asset path.
	res, err := s.fetcher.Fetch(ctx, locator.String())
	if err != nil {
		return core.PageRange{}, discoveryError(p, "asset locator", err)
	}
	final, err := parseURL(res.URL)
	if err != nil {
		return core.PageRange{}, discoveryError(p, "asset locator", err)
	}
	id, ok := firstInteger(final.Path)
	if !ok {
		return core.PageRange{}, discoveryError(p, "book id", fmt.Errorf("no integer in %s", final))
	}

	s.mu.Lock()
	s.base = origin(final)
	s.id = id
	s.mu.Unlock()

	s.logger.Info("Discovered page range.", "range", rng.String(), "catalogId", s.handle.DocumentID, "bookId", id)
	return rng, nil
}

// PrimaryAssetURL implements core.Strategy.
func (s *Hpthek) PrimaryAssetURL(page int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%sebook/%s/%d.svg", s.base, s.id, page)
}

// AssetURL implements core.Strategy.
func (s *Hpthek) AssetURL(page int, primaryURL string, ref core.AssetReference) (string, error) {
	return assetNextTo(primaryURL, ref)
}

// OutputKind implements core.Strategy.
func (s *Hpthek) OutputKind() core.OutputKind { return core.VectorWithAssets }
