package output_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gaurav-prasanna/bookpipe/core/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "tmp")

	w, existed, err := output.NewWorkDir(dir)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.DirExists(t, dir)

	_, existed, err = output.NewWorkDir(dir)
	require.NoError(t, err)
	assert.True(t, existed)

	assert.Equal(t, filepath.Join(dir, "book-7.svg"), w.VectorPagePath(7))
	assert.Equal(t, filepath.Join(dir, "book-7.pdf"), w.ConvertedPagePath(7))
	assert.Equal(t, filepath.Join(dir, "007.jpg"), w.RasterPagePath(7))
}

func TestAssetName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2-1.png", output.AssetName(2, 1, "png"))
	assert.Equal(t, "12-3.jpg", output.AssetName(12, 3, ".jpg"))
	// (1, 12) and (11, 2) must not collide.
	assert.NotEqual(t, output.AssetName(1, 12, "png"), output.AssetName(11, 2, "png"))
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "book-1.svg")

	require.NoError(t, output.WriteFileAtomic(path, []byte("<svg/>")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
	assert.True(t, output.NonEmptyFile(path))
	assert.False(t, output.NonEmptyFile(filepath.Join(dir, "missing")))
}

func TestDocumentName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  string
	}{
		{"Mathematik 2", "Mathematik 2.pdf"},
		{"Physik: Lösungen/Teil 1", "Physik_ Lösungen_Teil 1.pdf"},
		{"", "book.pdf"},
		{"   ", "book.pdf"},
		{"..", "book.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, output.DocumentName(tt.title), tt.title)
	}
}
