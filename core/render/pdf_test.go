package render

import (
	"image/color"
	"os"
	"testing"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/output"
	"github.com/gaurav-prasanna/bookpipe/core/platform/platformtest"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"
     width="595" height="842" viewBox="0 0 595 842">
  <title>Seite 2</title>
  <rect x="10" y="10" width="100" height="50" fill="#eeeeee" stroke="black"/>
  <g transform="translate(20,100) scale(1.5)">
    <path d="M0 0 L50 0 L50 50 Z" fill="red"/>
    <path d="M10 10 C20 20, 40 20, 50 10" stroke="blue" fill="none"/>
    <path d="M0 0 A10 10 0 0 1 20 20" fill="none" stroke="green"/>
  </g>
  <circle cx="300" cy="300" r="40" fill="rgb(0,128,255)"/>
  <polygon points="400,400 450,450 400,450" fill="black"/>
  <image x="200" y="500" width="120" height="80" xlink:href="2-1.png"/>
  <image x="340" y="500" width="120" height="80" xlink:href="2-2.jpg"/>
  <image x="10" y="700" width="50" height="50" xlink:href="2-3.svg"/>
  <text x="50" y="780" font-size="18">Übung <tspan font-weight="bold">3</tspan></text>
</svg>`

const assetSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect width="10" height="10" fill="#00ff00"/></svg>`

func relaxed() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

func workDir(t *testing.T) *output.WorkDir {
	t.Helper()
	wd, _, err := output.NewWorkDir(t.TempDir())
	require.NoError(t, err)
	return wd
}

func TestConvert_Vector(t *testing.T) {
	t.Parallel()

	wd := workDir(t)
	require.NoError(t, os.WriteFile(wd.VectorPagePath(2), []byte(pageSVG), 0644))
	require.NoError(t, os.WriteFile(wd.Path("2-1.png"), platformtest.PNG(12, 8, color.NRGBA{R: 200, A: 128}), 0644))
	require.NoError(t, os.WriteFile(wd.Path("2-2.jpg"), platformtest.JPEG(12, 8, color.Black), 0644))
	require.NoError(t, os.WriteFile(wd.Path("2-3.svg"), []byte(assetSVG), 0644))

	c := NewPDFConverter(wd, nil)
	cp, err := c.Convert(&core.PageArtifact{
		PageIndex:        2,
		Kind:             core.VectorWithAssets,
		PrimaryAssetPath: wd.VectorPagePath(2),
		Materialized:     true,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, cp.PageIndex)
	assert.Equal(t, wd.ConvertedPagePath(2), cp.OutputPath)
	require.NoError(t, api.ValidateFile(cp.OutputPath, relaxed()))
	n, err := api.PageCountFile(cp.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConvert_VectorMissingAssetIsSkipped(t *testing.T) {
	t.Parallel()

	wd := workDir(t)
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100"><image width="10" height="10" href="5-1.png"/></svg>`
	require.NoError(t, os.WriteFile(wd.VectorPagePath(5), []byte(svg), 0644))

	cp, err := NewPDFConverter(wd, nil).Convert(&core.PageArtifact{
		PageIndex: 5, Kind: core.VectorWithAssets, PrimaryAssetPath: wd.VectorPagePath(5), Materialized: true,
	})

	require.NoError(t, err)
	assert.FileExists(t, cp.OutputPath)
}

func TestConvert_Raster(t *testing.T) {
	t.Parallel()

	wd := workDir(t)
	require.NoError(t, os.WriteFile(wd.RasterPagePath(7), platformtest.JPEG(80, 120, color.White), 0644))

	cp, err := NewPDFConverter(wd, nil).Convert(&core.PageArtifact{
		PageIndex: 7, Kind: core.RasterImage, PrimaryAssetPath: wd.RasterPagePath(7), Materialized: true,
	})

	require.NoError(t, err)
	require.NoError(t, api.ValidateFile(cp.OutputPath, relaxed()))
}

func TestConvert_Errors(t *testing.T) {
	t.Parallel()

	wd := workDir(t)
	c := NewPDFConverter(wd, nil)

	t.Run("not materialized", func(t *testing.T) {
		_, err := c.Convert(&core.PageArtifact{PageIndex: 1})
		var cerr *core.ConversionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, 1, cerr.Page)
	})

	t.Run("not an svg", func(t *testing.T) {
		require.NoError(t, os.WriteFile(wd.VectorPagePath(3), []byte("<html><body>oops</body></html>"), 0644))
		_, err := c.Convert(&core.PageArtifact{
			PageIndex: 3, Kind: core.VectorWithAssets, PrimaryAssetPath: wd.VectorPagePath(3), Materialized: true,
		})
		var cerr *core.ConversionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, 3, cerr.Page)
		assert.NoFileExists(t, wd.ConvertedPagePath(3))
	})

	t.Run("raster that is not an image", func(t *testing.T) {
		require.NoError(t, os.WriteFile(wd.RasterPagePath(4), []byte("nope"), 0644))
		_, err := c.Convert(&core.PageArtifact{
			PageIndex: 4, Kind: core.RasterImage, PrimaryAssetPath: wd.RasterPagePath(4), Materialized: true,
		})
		var cerr *core.ConversionError
		require.ErrorAs(t, err, &cerr)
	})
}
