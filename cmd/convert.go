// Package cmd — convert command.
// This is the main command that orchestrates the pipeline:
// select book → discover range → fetch + convert pages → assemble.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/assemble"
	"github.com/gaurav-prasanna/bookpipe/core/output"
	"github.com/gaurav-prasanna/bookpipe/core/pipeline"
	"github.com/gaurav-prasanna/bookpipe/core/platform"
	"github.com/gaurav-prasanna/bookpipe/core/render"
	"github.com/gaurav-prasanna/bookpipe/core/session"
	"github.com/spf13/cobra"
	"github.com/ztrue/tracerr"
)

var convertCmd = &cobra.Command{
	Use:   "convert [landing-url]",
	Short: "Convert one e-book into a single PDF",
	Long: `Convert downloads every page of a book, converts each page into a PDF page
and merges the pages into one document named after the book.

Without a landing URL the account's catalog is listed and the book is chosen
by --index (or BOOK_INDEX), or interactively.

Examples:
  bookpipe convert --cookie "ad_session_id=..." --index 3
  bookpipe convert https://a.digi4school.at/ebook/1234/ --title "Mathe 3"
  DIGI4SCHOOL_COOKIES="..." bookpipe convert --output_dir ./books`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("workdir", output.DefaultWorkDir, "Working directory for intermediate page files")
	convertCmd.Flags().String("output_dir", ".", "Directory for the final PDF")
	convertCmd.Flags().String("title", "", "Document title (defaults to the catalog title)")
	convertCmd.Flags().Int("index", noIndex, "Catalog index of the book to convert")
	convertCmd.Flags().Int("concurrency", 0, "Pages processed in parallel (default: number of CPUs)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	f, err := cfg.fetcher(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var handle core.DocumentHandle
	if len(args) == 1 {
		handle = platform.Resolve(core.DocumentHandle{LandingURL: args[0]}, logger)
	} else {
		handle, err = chooseBook(ctx, cmd, f, cfg, logger)
		if errors.Is(err, session.ErrAbort) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
		if err != nil {
			return err
		}
	}

	title := cfg.Title
	if title == "" {
		title = handle.Title
	}

	wd, existed, err := output.NewWorkDir(cfg.WorkDir)
	if err != nil {
		return err
	}
	if existed {
		logger.Warn("resuming in existing working directory", "dir", wd.Dir)
	}

	strategy := platform.New(handle, f, logger)
	runner := &pipeline.Runner{
		Strategy: strategy,
		Pages: &pipeline.PageFetcher{
			Strategy: strategy,
			Fetcher:  f,
			WorkDir:  wd,
			Logger:   logger,
		},
		Converter:   render.NewPDFConverter(wd, logger),
		Assembler:   assemble.New(cfg.OutputDir, logger),
		Title:       title,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	}

	report, err := runner.Run(ctx)
	if report == nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), cmd.ErrOrStderr(), report)
	if cfg.Verbose {
		for _, page := range slices.Sorted(maps.Keys(report.Failed)) {
			logger.Debug("Page failure trace.", "page", page, "trace", traceOf(report.Failed[page]))
		}
	}
	return err
}

// printSummary reports the written document and every page missing from it,
// whether it failed or was never processed.
func printSummary(out, errOut io.Writer, report *pipeline.Report) {
	doc := report.Document
	if doc.Path != "" {
		fmt.Fprintf(out, "✓ Written: %s\n", doc.Path)
	}
	if len(doc.Missing) == 0 {
		return
	}
	pages := make([]string, len(doc.Missing))
	for i, p := range doc.Missing {
		pages[i] = strconv.Itoa(p)
	}
	fmt.Fprintf(errOut, "\n%d/%d pages missing: %s\n", len(doc.Missing), report.Range.Len(), strings.Join(pages, ", "))
}

// chooseBook lists the catalog and opens the selected book.
func chooseBook(ctx context.Context, cmd *cobra.Command, f core.Fetcher, cfg config, logger *slog.Logger) (core.DocumentHandle, error) {
	entries, err := session.LoadCatalog(ctx, f, cfg.ShelfURL)
	if err != nil {
		return core.DocumentHandle{}, err
	}
	s := &session.Session{Catalog: entries}
	session.PrintCatalog(cmd.OutOrStdout(), entries)

	index := cfg.Index
	if index == noIndex {
		if index, err = promptIndex(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return core.DocumentHandle{}, err
		}
	}
	entry, err := s.SelectDocument(index)
	if err != nil {
		return core.DocumentHandle{}, err
	}
	return session.Open(ctx, f, entry, logger)
}

// promptIndex reads one catalog index from in.
func promptIndex(in io.Reader, out io.Writer) (int, error) {
	fmt.Fprint(out, "Select a book: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("reading selection: %w", err)
	}
	index, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", session.ErrOutOfRange, strings.TrimSpace(line))
	}
	return index, nil
}

// traceOf renders the stack trace recorded for a page failure.
func traceOf(err error) string {
	var terr tracerr.Error
	if errors.As(err, &terr) {
		return tracerr.Sprint(terr)
	}
	return err.Error()
}
