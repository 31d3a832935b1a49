// Package render — PDF converter.
// Converts a materialized page into a single-page PDF using gofpdf.
// Vector pages are drawn from their SVG tree; raster pages embed their
// JPEG on a page of the same size.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/imaging"
	"github.com/gaurav-prasanna/bookpipe/core/output"
	"github.com/jung-kurt/gofpdf"
)

// maxNesting bounds how deep SVG sub-assets may embed each other.
const maxNesting = 4

// PDFConverter renders page artifacts as PDF files in the working
// directory.
type PDFConverter struct {
	WorkDir *output.WorkDir
	Logger  *slog.Logger
}

// NewPDFConverter creates a PDFConverter.
func NewPDFConverter(wd *output.WorkDir, logger *slog.Logger) *PDFConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFConverter{WorkDir: wd, Logger: logger}
}

// Convert implements core.Converter. Failures are *core.ConversionError.
func (c *PDFConverter) Convert(art *core.PageArtifact) (core.ConvertedPage, error) {
	if art == nil || !art.Materialized {
		return core.ConvertedPage{}, &core.ConversionError{Page: pageOf(art), Err: fmt.Errorf("page is not materialized")}
	}
	var (
		data []byte
		err  error
	)
	switch art.Kind {
	case core.RasterImage:
		data, err = c.raster(art)
	default:
		data, err = c.vector(art)
	}
	if err != nil {
		return core.ConvertedPage{}, &core.ConversionError{Page: art.PageIndex, Err: err}
	}
	path := c.WorkDir.ConvertedPagePath(art.PageIndex)
	if err := output.WriteFileAtomic(path, data); err != nil {
		return core.ConvertedPage{}, &core.ConversionError{Page: art.PageIndex, Err: err}
	}
	return core.ConvertedPage{PageIndex: art.PageIndex, OutputPath: path}, nil
}

func pageOf(art *core.PageArtifact) int {
	if art == nil {
		return 0
	}
	return art.PageIndex
}

// newPage starts a document with one page of the given size in points.
func newPage(wPt, hPt float64) *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: wPt, Ht: hPt},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()
	return pdf
}

func finish(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// raster places the page JPEG on a page sized 1px = 0.75pt.
func (c *PDFConverter) raster(art *core.PageArtifact) ([]byte, error) {
	data, err := os.ReadFile(art.PrimaryAssetPath)
	if err != nil {
		return nil, fmt.Errorf("reading page image: %w", err)
	}
	cfg, _, err := imaging.DecodeConfig(data)
	if err != nil {
		return nil, err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("page image has no pixels")
	}
	w, h := float64(cfg.Width)*pxPerPt, float64(cfg.Height)*pxPerPt
	pdf := newPage(w, h)
	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(data))
	pdf.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")
	return finish(pdf)
}

// canvas is the drawing state of one vector page.
type canvas struct {
	pdf      *gofpdf.Fpdf
	heightPt float64
	dir      string
	tr       func(string) string
	logger   *slog.Logger

	drawn   int
	skipped int
}

const (
	baseFont     = "Helvetica"
	baseFontSize = 12
)

// vector draws the localized SVG of art.
func (c *PDFConverter) vector(art *core.PageArtifact) ([]byte, error) {
	data, err := os.ReadFile(art.PrimaryAssetPath)
	if err != nil {
		return nil, fmt.Errorf("reading page svg: %w", err)
	}
	root, err := parseSVG(data)
	if err != nil {
		return nil, err
	}
	wPx, hPx, err := extent(root)
	if err != nil {
		return nil, err
	}

	pdf := newPage(wPx*pxPerPt, hPx*pxPerPt)
	// Font state is set once outside any transform so it survives the
	// q/Q pairs every element is drawn in.
	pdf.SetFont(baseFont, "", baseFontSize)

	cv := &canvas{
		pdf:      pdf,
		heightPt: hPx * pxPerPt,
		dir:      filepath.Dir(art.PrimaryAssetPath),
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		logger:   c.Logger.With("page", art.PageIndex),
	}
	ctm := scale(pxPerPt, pxPerPt).mul(viewport(root, wPx, hPx))
	cv.children(root, ctm, defaultStyle().inherit(root), 0)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("drawing page: %w", err)
	}
	if cv.skipped > 0 {
		cv.logger.Debug("Skipped unsupported SVG elements.", "skipped", cv.skipped, "drawn", cv.drawn)
	}
	return finish(pdf)
}

func (cv *canvas) children(n *node, ctm matrix, st style, depth int) {
	for i := range n.Children {
		cv.element(&n.Children[i], ctm, st, depth)
	}
}

func (cv *canvas) element(n *node, parent matrix, inherited style, depth int) {
	st := inherited.inherit(n)
	if st.hidden {
		return
	}
	ctm := parent.mul(parseTransform(n.attr("transform")))

	switch n.XMLName.Local {
	case "g", "a", "switch":
		cv.children(n, ctm, st, depth)
	case "svg":
		// Nested viewport.
		w, okW := parseLength(n.attr("width"))
		h, okH := parseLength(n.attr("height"))
		inner := ctm.mul(translate(n.num("x"), n.num("y")))
		if okW && okH {
			inner = inner.mul(viewport(n, w, h))
		}
		cv.children(n, inner, st, depth)
	case "path":
		cv.path(n, ctm, st)
	case "rect":
		cv.rect(n, ctm, st)
	case "circle", "ellipse":
		cv.ellipse(n, ctm, st)
	case "line":
		cv.line(n, ctm, st)
	case "polyline", "polygon":
		cv.poly(n, ctm, st)
	case "image":
		cv.image(n, ctm, st, depth)
	case "text":
		cv.text(n, ctm, st)
	case "defs", "clipPath", "mask", "pattern", "linearGradient", "radialGradient",
		"symbol", "style", "script", "title", "desc", "metadata", "filter", "marker":
		// Not rendered.
	default:
		cv.skipped++
	}
}

// pdfMatrix converts an SVG page transform (points, y down) into the
// matrix gofpdf applies on top of its own y-flipped coordinates.
func (cv *canvas) pdfMatrix(m matrix) gofpdf.TransformMatrix {
	h := cv.heightPt
	return gofpdf.TransformMatrix{
		A: m.a,
		B: -m.b,
		C: -m.c,
		D: m.d,
		E: m.c*h + m.e,
		F: h - m.d*h - m.f,
	}
}

// begin opens a transform context for drawing in the user space of ctm.
func (cv *canvas) begin(ctm matrix) {
	cv.pdf.TransformBegin()
	cv.pdf.Transform(cv.pdfMatrix(ctm))
}

func (cv *canvas) end() {
	cv.pdf.TransformEnd()
	cv.drawn++
}

func (cv *canvas) paint(st style) string {
	ds := st.drawStyle()
	if ds == "" {
		return ""
	}
	if !st.fill.none {
		cv.pdf.SetFillColor(st.fill.r, st.fill.g, st.fill.b)
	}
	if !st.stroke.none {
		cv.pdf.SetDrawColor(st.stroke.r, st.stroke.g, st.stroke.b)
		cv.pdf.SetLineWidth(st.strokeWidth)
	}
	return ds
}

func (cv *canvas) path(n *node, ctm matrix, st style) {
	d := n.attr("d")
	if d == "" {
		return
	}
	segs, err := parsePath(d)
	if err != nil {
		// The valid prefix is still drawn.
		cv.logger.Debug("Malformed SVG path data.", "error", err, "segments", len(segs))
	}
	if len(segs) == 0 {
		cv.skipped++
		return
	}
	cv.begin(ctm)
	defer cv.end()
	ds := cv.paint(st)
	if ds == "" {
		return
	}
	for _, seg := range segs {
		a := seg.pts
		switch seg.op {
		case 'M':
			cv.pdf.MoveTo(a[0], a[1])
		case 'L':
			cv.pdf.LineTo(a[0], a[1])
		case 'C':
			cv.pdf.CurveBezierCubicTo(a[0], a[1], a[2], a[3], a[4], a[5])
		case 'Z':
			cv.pdf.ClosePath()
		}
	}
	cv.pdf.DrawPath(ds)
}

func (cv *canvas) rect(n *node, ctm matrix, st style) {
	w, h := n.num("width"), n.num("height")
	if w <= 0 || h <= 0 {
		return
	}
	cv.begin(ctm)
	defer cv.end()
	if ds := cv.paint(st); ds != "" {
		cv.pdf.Rect(n.num("x"), n.num("y"), w, h, ds)
	}
}

func (cv *canvas) ellipse(n *node, ctm matrix, st style) {
	rx, ry := n.num("rx"), n.num("ry")
	if n.XMLName.Local == "circle" {
		rx = n.num("r")
		ry = rx
	}
	if rx <= 0 || ry <= 0 {
		return
	}
	cv.begin(ctm)
	defer cv.end()
	if ds := cv.paint(st); ds != "" {
		cv.pdf.Ellipse(n.num("cx"), n.num("cy"), rx, ry, 0, ds)
	}
}

func (cv *canvas) line(n *node, ctm matrix, st style) {
	if st.stroke.none {
		return
	}
	cv.begin(ctm)
	defer cv.end()
	cv.pdf.SetDrawColor(st.stroke.r, st.stroke.g, st.stroke.b)
	cv.pdf.SetLineWidth(st.strokeWidth)
	cv.pdf.Line(n.num("x1"), n.num("y1"), n.num("x2"), n.num("y2"))
}

func (cv *canvas) poly(n *node, ctm matrix, st style) {
	nums := parseNumbers(n.attr("points"))
	if len(nums) < 4 {
		return
	}
	if n.XMLName.Local == "polyline" {
		// Open shapes are stroked only.
		st.fill = rgb{none: true}
	}
	cv.begin(ctm)
	defer cv.end()
	ds := cv.paint(st)
	if ds == "" {
		return
	}
	cv.pdf.MoveTo(nums[0], nums[1])
	for i := 2; i+1 < len(nums); i += 2 {
		cv.pdf.LineTo(nums[i], nums[i+1])
	}
	if n.XMLName.Local == "polygon" {
		cv.pdf.ClosePath()
	}
	cv.pdf.DrawPath(ds)
}

func (cv *canvas) text(n *node, ctm matrix, st style) {
	x, y := n.num("x"), n.num("y")
	cv.drawText(strings.TrimSpace(n.Text), x, y, ctm, st)
	for i := range n.Children {
		child := &n.Children[i]
		if child.XMLName.Local != "tspan" {
			continue
		}
		cst := st.inherit(child)
		if cst.hidden {
			continue
		}
		if v, ok := parseLength(child.attr("x")); ok {
			x = v
		}
		if v, ok := parseLength(child.attr("y")); ok {
			y = v
		}
		cv.drawText(strings.TrimSpace(child.Text), x, y, ctm.mul(parseTransform(child.attr("transform"))), cst)
	}
}

func (cv *canvas) drawText(s string, x, y float64, ctm matrix, st style) {
	if s == "" || st.fill.none {
		return
	}
	fontStyle := ""
	if st.bold() {
		fontStyle = "B"
	}
	cv.begin(ctm)
	cv.pdf.SetFillColor(st.fill.r, st.fill.g, st.fill.b)
	cv.pdf.SetTextColor(st.fill.r, st.fill.g, st.fill.b)
	cv.pdf.SetFont(baseFont, fontStyle, st.fontSize)
	cv.pdf.Text(x, y, cv.tr(s))
	cv.end()
	// The PDF font state reverted with the transform context; bring
	// gofpdf's record of it back in line.
	cv.pdf.SetFont(baseFont, "", baseFontSize)
}

func (cv *canvas) image(n *node, ctm matrix, st style, depth int) {
	name := n.href()
	w, h := n.num("width"), n.num("height")
	if name == "" || strings.HasPrefix(name, "data:") || w <= 0 || h <= 0 {
		cv.skipped++
		return
	}
	path := filepath.Join(cv.dir, filepath.FromSlash(name))
	data, err := os.ReadFile(path)
	if err != nil {
		cv.logger.Warn("Image asset missing, skipping.", "href", name, "error", err)
		cv.skipped++
		return
	}
	// Draw at the origin; x and y go into the transform.
	place := ctm.mul(translate(n.num("x"), n.num("y")))

	if imaging.Sniff(data) == imaging.FormatSVG {
		cv.nested(data, name, place, w, h, st, depth)
		return
	}

	key, typ, err := cv.register(name, data)
	if err != nil {
		cv.logger.Warn("Image asset unreadable, skipping.", "href", name, "error", err)
		cv.skipped++
		return
	}
	cv.begin(place)
	cv.pdf.ImageOptions(key, 0, 0, w, h, false, gofpdf.ImageOptions{ImageType: typ}, 0, "")
	cv.end()
}

// register makes an image asset available to gofpdf. JPEGs are embedded
// as they are; everything else is decoded and re-encoded as 8-bit PNG,
// which gofpdf always accepts.
func (cv *canvas) register(name string, data []byte) (key, typ string, err error) {
	if imaging.Sniff(data) == imaging.FormatJPEG {
		if _, _, err := imaging.DecodeConfig(data); err != nil {
			return "", "", err
		}
		cv.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "JPG"}, bytes.NewReader(data))
		return name, "JPG", nil
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return "", "", err
	}
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	png, err := imaging.EncodePNG(nrgba)
	if err != nil {
		return "", "", err
	}
	cv.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	return name, "PNG", nil
}

// nested draws an SVG sub-asset into the w×h box at place.
func (cv *canvas) nested(data []byte, name string, place matrix, w, h float64, st style, depth int) {
	if depth >= maxNesting {
		cv.logger.Warn("SVG assets nested too deeply, skipping.", "href", name)
		cv.skipped++
		return
	}
	root, err := parseSVG(data)
	if err != nil {
		cv.logger.Warn("SVG asset unreadable, skipping.", "href", name, "error", err)
		cv.skipped++
		return
	}
	inner := place
	if iw, ih, err := extent(root); err == nil {
		if _, ok := parseViewBox(root.attr("viewBox")); ok {
			inner = inner.mul(viewport(root, w, h))
		} else {
			inner = inner.mul(scale(w/iw, h/ih))
		}
	}
	cv.children(root, inner, st.inherit(root), depth+1)
}
