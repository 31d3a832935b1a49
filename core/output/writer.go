// Package output owns the on-disk layout of a run: the working directory
// that holds per-page artifacts and the naming of the final document.
//
// Layout (must stay stable for resumability):
//
//	<workdir>/book-{page}.svg     localized vector page
//	<workdir>/book-{page}.pdf     converted page
//	<workdir>/{page}-{k}.{ext}    sub-asset k of a vector page
//	<workdir>/{page:03d}.jpg      raster page
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultWorkDir matches the layout earlier runs left behind.
const DefaultWorkDir = "./tmp"

// WorkDir is the per-run working directory.
type WorkDir struct {
	Dir string
}

// NewWorkDir creates the working directory if needed. existed reports
// whether it was already there, i.e. whether this run may resume.
func NewWorkDir(dir string) (w *WorkDir, existed bool, err error) {
	if dir == "" {
		dir = DefaultWorkDir
	}
	if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
		existed = true
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, false, fmt.Errorf("creating working directory: %w", err)
	}
	return &WorkDir{Dir: dir}, existed, nil
}

// VectorPagePath returns the path of the localized SVG of page.
func (w *WorkDir) VectorPagePath(page int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("book-%d.svg", page))
}

// ConvertedPagePath returns the path of the single-page PDF of page.
func (w *WorkDir) ConvertedPagePath(page int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("book-%d.pdf", page))
}

// RasterPagePath returns the path of the JPEG of a raster page.
func (w *WorkDir) RasterPagePath(page int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%03d.jpg", page))
}

// AssetName returns the file name of sub-asset index of page. Names are
// unique per (page, index), so concurrent page tasks never collide.
func AssetName(page, index int, ext string) string {
	return fmt.Sprintf("%d-%d.%s", page, index, strings.TrimPrefix(ext, "."))
}

// Path resolves a file name inside the working directory.
func (w *WorkDir) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// NonEmptyFile reports whether path is a regular file with content.
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// WriteFileAtomic writes data next to path and renames it into place, so
// an interrupted run never leaves a truncated file under the final name.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting mode of %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	committed = true
	return nil
}

// DefaultDocumentName is used when the title cannot name a file.
const DefaultDocumentName = "book.pdf"

// DocumentName converts a book title into the final file name.
// Example: "Mathe 3: Lösungen" → "Mathe 3_ Lösungen.pdf"
func DocumentName(title string) string {
	name := strings.TrimSpace(sanitize(title))
	name = strings.Trim(name, ". ")
	if name == "" {
		return DefaultDocumentName
	}
	return name + ".pdf"
}

// sanitize replaces characters that are not valid in file names with
// underscores. Letters outside ASCII are kept.
func sanitize(s string) string {
	var b strings.Builder
	for _, ch := range s {
		switch {
		case ch < 0x20, ch == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, ch):
			b.WriteRune('_')
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}
