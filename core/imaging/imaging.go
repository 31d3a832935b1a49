// Package imaging decodes, flattens and re-encodes page images.
// Besides the stdlib formats it registers the webp, bmp and tiff decoders
// from golang.org/x/image, since platforms occasionally serve those.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the quality raster pages are re-encoded with.
const JPEGQuality = 92

// Format is a file format an asset is stored in.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
	FormatGIF  Format = "gif"
	FormatSVG  Format = "svg"
)

// ErrUnsupported is returned for data that no registered decoder reads.
var ErrUnsupported = errors.New("unsupported image format")

// Sniff returns the stored format of data, or "" when data must be
// transcoded before it can be stored.
func Sniff(data []byte) Format {
	switch http.DetectContentType(data) {
	case "image/png":
		return FormatPNG
	case "image/jpeg":
		return FormatJPEG
	case "image/gif":
		return FormatGIF
	}
	if isSVG(data) {
		return FormatSVG
	}
	return ""
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// Normalize returns data in a format the working directory stores: png,
// jpg, gif and svg pass through, anything else decodable becomes png.
func Normalize(data []byte) ([]byte, Format, error) {
	if f := Sniff(data); f != "" {
		return data, f, nil
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	out, err := EncodePNG(img)
	if err != nil {
		return nil, "", err
	}
	return out, FormatPNG, nil
}

// Decode decodes data with any registered decoder.
func Decode(data []byte) (image.Image, string, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupported
		}
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	return img, name, nil
}

// DecodeConfig reads the dimensions of an encoded image.
func DecodeConfig(data []byte) (image.Config, string, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return image.Config{}, "", ErrUnsupported
		}
		return image.Config{}, "", fmt.Errorf("reading image header: %w", err)
	}
	return cfg, name, nil
}

// Flatten composites img over an opaque white background.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// EncodeJPEG flattens img and encodes it as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(img), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// GofpdfType maps a stored format to the image type name gofpdf expects.
// ok is false for formats gofpdf cannot embed.
func GofpdfType(f Format) (string, bool) {
	switch f {
	case FormatPNG:
		return "PNG", true
	case FormatJPEG:
		return "JPG", true
	case FormatGIF:
		return "GIF", true
	}
	return "", false
}

// FormatOfName returns the format implied by a stored file name.
func FormatOfName(name string) Format {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	switch strings.ToLower(name[i+1:]) {
	case "png":
		return FormatPNG
	case "jpg", "jpeg":
		return FormatJPEG
	case "gif":
		return FormatGIF
	case "svg":
		return FormatSVG
	}
	return ""
}
