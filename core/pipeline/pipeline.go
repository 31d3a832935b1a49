package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/assemble"
	"github.com/gaurav-prasanna/bookpipe/core/output"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner drives one document run: discovery, the page pool, assembly.
type Runner struct {
	Strategy  core.Strategy
	Pages     *PageFetcher
	Converter core.Converter
	Assembler *assemble.Assembler
	Title     string

	// Concurrency bounds the page pool. Zero means GOMAXPROCS.
	Concurrency int
	Logger      *slog.Logger
}

// Report summarizes a finished run.
type Report struct {
	RunID    string
	Range    core.PageRange
	Resumed  int
	Failed   map[int]error // terminal page errors by page index
	Document assemble.Result
	Elapsed  time.Duration
}

// Run discovers the page range, fetches and converts every page under the
// pool bound and assembles whatever pages succeeded. Only discovery and
// assembly failures are returned; page failures are reported in Failed.
//
// Cancelling ctx stops new page tasks. Assembly still runs over the pages
// that finished, and ctx.Err() is returned along with the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString(), Failed: make(map[int]error)}
	logger := r.logger().With("runId", report.RunID)

	rng, err := r.Strategy.DiscoverRange(ctx)
	if err != nil {
		return nil, err
	}
	report.Range = rng
	logger.Info("Starting page pool.", "range", rng.String(), "pages", rng.Len(), "workers", r.workers())

	var (
		mu        sync.Mutex
		converted = make(map[int]core.ConvertedPage, rng.Len())
	)
	g := new(errgroup.Group)
	g.SetLimit(r.workers())

submit:
	for _, page := range rng.Pages() {
		select {
		case <-ctx.Done():
			logger.Warn("Run cancelled, not submitting further pages.", "nextPage", page)
			break submit
		default:
		}
		g.Go(func() error {
			cp, resumed, err := r.processPage(ctx, page, logger)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[page] = err
				return nil
			}
			if resumed {
				report.Resumed++
			}
			converted[page] = cp
			return nil
		})
	}
	// Tasks never return errors; Wait is only the barrier.
	_ = g.Wait()

	for _, page := range failedPages(report.Failed) {
		logger.Error("Page failed.", "page", page, "error", report.Failed[page])
	}

	lookup := func(page int) (core.ConvertedPage, bool) {
		cp, ok := converted[page]
		return cp, ok
	}
	doc, err := r.Assembler.Assemble(rng, lookup, r.Title)
	if err != nil {
		return report, err
	}
	report.Document = doc
	report.Elapsed = time.Since(start)
	logger.Info("Run finished.",
		"path", doc.Path,
		"included", len(doc.Included),
		"missing", len(doc.Missing),
		"resumed", report.Resumed,
		"elapsed", report.Elapsed.String(),
	)
	return report, ctx.Err()
}

// processPage fetches and converts one page.
func (r *Runner) processPage(ctx context.Context, page int, logger *slog.Logger) (core.ConvertedPage, bool, error) {
	art, err := r.Pages.FetchPage(ctx, page)
	if err != nil {
		return core.ConvertedPage{}, false, err
	}
	if art.Resumed {
		pdf := r.Pages.WorkDir.ConvertedPagePath(page)
		err := assemble.ValidPage(pdf)
		if err == nil {
			return core.ConvertedPage{PageIndex: page, OutputPath: pdf}, true, nil
		}
		if output.NonEmptyFile(pdf) {
			logger.Warn("Converted page is invalid, converting again.", "page", page, "path", pdf, "error", err)
		}
	}
	cp, err := r.Converter.Convert(art)
	if err != nil {
		var cerr *core.ConversionError
		if !errors.As(err, &cerr) {
			err = &core.ConversionError{Page: page, Err: err}
		}
		return core.ConvertedPage{}, art.Resumed, err
	}
	logger.Debug("Converted page.", "page", page, "path", cp.OutputPath)
	return cp, art.Resumed, nil
}

func (r *Runner) workers() int {
	if r.Concurrency > 0 {
		return r.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func failedPages(failed map[int]error) []int {
	pages := make([]int, 0, len(failed))
	for p := range failed {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
