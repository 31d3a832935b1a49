// Package assemble merges converted pages into the final document.
// Pages are appended in ascending order; missing or unreadable pages are
// logged and skipped so the output is always a best-effort document.
package assemble

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/output"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoPages is returned when no converted page survived.
var ErrNoPages = errors.New("no converted pages to assemble")

// Result describes the written document.
type Result struct {
	Path     string
	Included []int
	Missing  []int
}

// Assembler writes the merged document into OutputDir.
type Assembler struct {
	OutputDir string
	Logger    *slog.Logger
}

// New creates an Assembler writing to dir ("" means the current directory).
func New(dir string, logger *slog.Logger) *Assembler {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{OutputDir: dir, Logger: logger}
}

func config() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// ValidPage checks that path holds a readable PDF.
func ValidPage(path string) error {
	if !output.NonEmptyFile(path) {
		return fmt.Errorf("%s is missing or empty", path)
	}
	return api.ValidateFile(path, config())
}

// Assemble merges the converted pages of rng, as returned by lookup, into
// a document named after title. If that name cannot be written the
// default name is tried before giving up with a *core.AssemblyWriteError.
func (a *Assembler) Assemble(rng core.PageRange, lookup func(page int) (core.ConvertedPage, bool), title string) (Result, error) {
	logger := a.logger()
	var (
		res   Result
		files []string
	)
	for _, page := range rng.Pages() {
		cp, ok := lookup(page)
		if !ok || !output.NonEmptyFile(cp.OutputPath) {
			logger.Warn("Page missing, skipping.", "page", page)
			res.Missing = append(res.Missing, page)
			continue
		}
		if err := ValidPage(cp.OutputPath); err != nil {
			logger.Warn("Page PDF is invalid, skipping.", "page", page, "path", cp.OutputPath, "error", err)
			res.Missing = append(res.Missing, page)
			continue
		}
		logger.Debug("Merging page.", "page", page, "path", cp.OutputPath)
		res.Included = append(res.Included, page)
		files = append(files, cp.OutputPath)
	}

	target := filepath.Join(a.OutputDir, output.DocumentName(title))
	if len(files) == 0 {
		return res, &core.AssemblyWriteError{Path: target, Err: ErrNoPages}
	}

	err := a.write(target, files)
	if err != nil && filepath.Base(target) != output.DefaultDocumentName {
		logger.Warn("Cannot write document, falling back to default name.", "path", target, "error", err)
		target = filepath.Join(a.OutputDir, output.DefaultDocumentName)
		err = a.write(target, files)
	}
	if err != nil {
		return res, &core.AssemblyWriteError{Path: target, Err: err}
	}
	res.Path = target
	logger.Info("Document assembled.", "path", target, "pages", len(res.Included), "missing", len(res.Missing))
	return res, nil
}

// write merges files into a temporary file next to target and renames it
// into place.
func (a *Assembler) write(target string, files []string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(target), "."+uuid.NewString()+".pdf")
	defer os.Remove(tmp)

	if len(files) == 1 {
		data, err := os.ReadFile(files[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", files[0], err)
		}
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", tmp, err)
		}
	} else if err := api.MergeCreateFile(files, tmp, false, config()); err != nil {
		return fmt.Errorf("merging %d pages: %w", len(files), err)
	}

	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("renaming into %s: %w", target, err)
	}
	return nil
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
