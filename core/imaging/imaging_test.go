package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	pngData := encodePNG(t, img)
	jpgData, err := EncodeJPEG(img)
	require.NoError(t, err)

	assert.Equal(t, FormatPNG, Sniff(pngData))
	assert.Equal(t, FormatJPEG, Sniff(jpgData))
	assert.Equal(t, FormatGIF, Sniff([]byte("GIF89a\x01\x00\x01\x00")))
	assert.Equal(t, FormatSVG, Sniff([]byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"/>`)))
	assert.Equal(t, Format(""), Sniff([]byte("plain text")))
}

func TestNormalize_TranscodesBMP(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	draw.Draw(src, src.Bounds(), &image.Uniform{C: color.RGBA{R: 255, A: 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, src))

	out, f, err := Normalize(buf.Bytes())

	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)
	cfg, name, err := DecodeConfig(out)
	require.NoError(t, err)
	assert.Equal(t, "png", name)
	assert.Equal(t, 3, cfg.Width)
	assert.Equal(t, 2, cfg.Height)
}

func TestNormalize_Unsupported(t *testing.T) {
	t.Parallel()

	_, _, err := Normalize([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	// Fully transparent pixels become white.
	src := image.NewNRGBA(image.Rect(5, 5, 7, 7))
	src.Set(5, 5, color.NRGBA{B: 255, A: 255})

	dst := Flatten(src)

	assert.Equal(t, image.Rect(0, 0, 2, 2), dst.Bounds())
	assert.Equal(t, color.RGBA{B: 255, A: 255}, dst.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, dst.RGBAAt(1, 1))
}

func TestFormatOfName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, FormatPNG, FormatOfName("2-1.PNG"))
	assert.Equal(t, FormatJPEG, FormatOfName("007.jpeg"))
	assert.Equal(t, FormatSVG, FormatOfName("3-2.svg"))
	assert.Equal(t, Format(""), FormatOfName("noext"))

	typ, ok := GofpdfType(FormatJPEG)
	assert.True(t, ok)
	assert.Equal(t, "JPG", typ)
	_, ok = GofpdfType(FormatSVG)
	assert.False(t, ok)
}
