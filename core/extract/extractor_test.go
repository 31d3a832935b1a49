package extract_test

import (
	"testing"

	"github.com/gaurav-prasanna/bookpipe/core/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="595" height="842">
  <g transform="translate(10,10)">
    <image width="100" height="50" xlink:href="img/bg.png"/>
    <path d="M0 0 L10 10"/>
  </g>
  <image x="5" y="5" width="20" height="20" xlink:href='shade/a&amp;b.jpg'></image>
  <image href="data:image/png;base64,AAAA"/>
</svg>`

func TestReferences(t *testing.T) {
	t.Parallel()

	refs, err := extract.References([]byte(pageSVG))

	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "img/bg.png", refs[0].Href)
	assert.Equal(t, "shade/a&b.jpg", refs[1].Href)
	assert.True(t, extract.IsEmbedded(refs[2].Href))
	assert.Equal(t, "image", refs[0].Element)
}

func TestReferences_RejectsNonSVG(t *testing.T) {
	t.Parallel()

	_, err := extract.References([]byte(`<html><body><h3>digi4school - Fehler</h3></body></html>`))
	assert.ErrorIs(t, err, extract.ErrNotSVG)

	_, err = extract.References([]byte(``))
	assert.ErrorIs(t, err, extract.ErrNotSVG)
}

func TestRewrite(t *testing.T) {
	t.Parallel()

	refs, err := extract.References([]byte(pageSVG))
	require.NoError(t, err)

	out, err := extract.Rewrite([]byte(pageSVG), refs, []string{"2-1.png", "2-2.jpg", ""})
	require.NoError(t, err)

	got, err := extract.References(out)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2-1.png", got[0].Href)
	assert.Equal(t, "2-2.jpg", got[1].Href)
	assert.Equal(t, "data:image/png;base64,AAAA", got[2].Href)
	assert.Contains(t, string(out), `<path d="M0 0 L10 10"/>`, "untouched markup is preserved byte for byte")
	assert.NotContains(t, string(out), "img/bg.png")
}

func TestRewrite_LengthMismatch(t *testing.T) {
	t.Parallel()

	refs, err := extract.References([]byte(pageSVG))
	require.NoError(t, err)

	_, err = extract.Rewrite([]byte(pageSVG), refs, []string{"1-1.png"})
	assert.Error(t, err)
}

func TestCheckLocalized(t *testing.T) {
	t.Parallel()

	local := `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"><image xlink:href="3-1.png"/></svg>`
	remote := `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"><image xlink:href="https://a.digi4school.at/ebook/1/img/x.png"/></svg>`

	exists := func(name string) bool { return name == "3-1.png" }

	assert.NoError(t, extract.CheckLocalized([]byte(local), exists))
	assert.Error(t, extract.CheckLocalized([]byte(local), func(string) bool { return false }))
	assert.Error(t, extract.CheckLocalized([]byte(remote), exists))
	assert.Error(t, extract.CheckLocalized([]byte(`<svg><image`), exists))
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	assert.True(t, extract.IsRemote("https://x/y.png"))
	assert.True(t, extract.IsRemote("//cdn/y.png"))
	assert.False(t, extract.IsRemote("img/y.png"))
	assert.False(t, extract.IsRemote("2-1.png"))
}
