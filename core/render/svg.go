// Package render — SVG model.
// Parses the subset of SVG that page documents use: the element tree,
// lengths, viewBox, transforms and paint attributes.
package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// pxPerPt converts CSS pixels to points.
const pxPerPt = 0.75

// node is one element of a parsed SVG document.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
	Text     string     `xml:",chardata"`
}

// attr returns the attribute with the given local name. Namespaced
// attributes (xlink:href) match by local name too.
func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// href prefers xlink:href over a plain href.
func (n *node) href() string {
	var plain string
	for _, a := range n.Attrs {
		if a.Name.Local != "href" {
			continue
		}
		if a.Name.Space != "" {
			return strings.TrimSpace(a.Value)
		}
		plain = strings.TrimSpace(a.Value)
	}
	return plain
}

func (n *node) num(name string) float64 {
	v, _ := parseLength(n.attr(name))
	return v
}

func parseSVG(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var root node
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("parsing svg: %w", err)
	}
	if root.XMLName.Local != "svg" {
		return nil, fmt.Errorf("document root is <%s>, not <svg>", root.XMLName.Local)
	}
	return &root, nil
}

var numberPattern = `[-+]?(?:\d*\.\d+|\d+\.?)(?:[eE][-+]?\d+)?`

var (
	lengthRe = regexp.MustCompile(`^(` + numberPattern + `)\s*(px|pt|pc|mm|cm|in|em|%)?$`)
	numberRe = regexp.MustCompile(numberPattern)
	funcRe   = regexp.MustCompile(`([a-zA-Z]+)\s*\(([^)]*)\)`)
)

// unitPx is the size of one unit in CSS pixels.
var unitPx = map[string]float64{
	"":   1,
	"px": 1,
	"pt": 4.0 / 3.0,
	"pc": 16,
	"mm": 96 / 25.4,
	"cm": 96 / 2.54,
	"in": 96,
	"em": 16,
}

// parseLength converts an absolute SVG length to pixels. Percentages and
// malformed values report false.
func parseLength(s string) (float64, bool) {
	m := lengthRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || m[2] == "%" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v * unitPx[m[2]], true
}

func parseNumbers(s string) []float64 {
	var out []float64
	for _, tok := range numberRe.FindAllString(s, -1) {
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// matrix is an affine transform [a c e; b d f; 0 0 1].
type matrix struct{ a, b, c, d, e, f float64 }

var identity = matrix{a: 1, d: 1}

// mul returns m·n, i.e. n applied first.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		a: m.a*n.a + m.c*n.b,
		b: m.b*n.a + m.d*n.b,
		c: m.a*n.c + m.c*n.d,
		d: m.b*n.c + m.d*n.d,
		e: m.a*n.e + m.c*n.f + m.e,
		f: m.b*n.e + m.d*n.f + m.f,
	}
}

func translate(tx, ty float64) matrix { return matrix{a: 1, d: 1, e: tx, f: ty} }
func scale(sx, sy float64) matrix     { return matrix{a: sx, d: sy} }

func rotate(deg float64) matrix {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return matrix{a: cos, b: sin, c: -sin, d: cos}
}

// parseTransform parses a transform attribute. Unknown functions are
// ignored.
func parseTransform(s string) matrix {
	m := identity
	for _, fn := range funcRe.FindAllStringSubmatch(s, -1) {
		args := parseNumbers(fn[2])
		arg := func(i int, def float64) float64 {
			if i < len(args) {
				return args[i]
			}
			return def
		}
		var t matrix
		switch strings.ToLower(fn[1]) {
		case "matrix":
			if len(args) != 6 {
				continue
			}
			t = matrix{args[0], args[1], args[2], args[3], args[4], args[5]}
		case "translate":
			t = translate(arg(0, 0), arg(1, 0))
		case "scale":
			sx := arg(0, 1)
			t = scale(sx, arg(1, sx))
		case "rotate":
			cx, cy := arg(1, 0), arg(2, 0)
			t = translate(cx, cy).mul(rotate(arg(0, 0))).mul(translate(-cx, -cy))
		case "skewx":
			t = matrix{a: 1, d: 1, c: math.Tan(arg(0, 0) * math.Pi / 180)}
		case "skewy":
			t = matrix{a: 1, d: 1, b: math.Tan(arg(0, 0) * math.Pi / 180)}
		default:
			continue
		}
		m = m.mul(t)
	}
	return m
}

// viewBox is the user coordinate window of an svg element.
type viewBox struct{ x, y, w, h float64 }

func parseViewBox(s string) (viewBox, bool) {
	n := parseNumbers(s)
	if len(n) != 4 || n[2] <= 0 || n[3] <= 0 {
		return viewBox{}, false
	}
	return viewBox{n[0], n[1], n[2], n[3]}, true
}

// viewport maps the viewBox of root into a width×height viewport,
// honouring preserveAspectRatio "none" and the default "xMidYMid meet".
func viewport(root *node, width, height float64) matrix {
	vb, ok := parseViewBox(root.attr("viewBox"))
	if !ok {
		return identity
	}
	sx, sy := width/vb.w, height/vb.h
	if strings.HasPrefix(root.attr("preserveAspectRatio"), "none") {
		return scale(sx, sy).mul(translate(-vb.x, -vb.y))
	}
	s := math.Min(sx, sy)
	tx := (width - vb.w*s) / 2
	ty := (height - vb.h*s) / 2
	return translate(tx, ty).mul(scale(s, s)).mul(translate(-vb.x, -vb.y))
}

// extent returns the size of an svg root in pixels, from width/height or
// the viewBox.
func extent(root *node) (w, h float64, err error) {
	vb, hasVB := parseViewBox(root.attr("viewBox"))
	w, okW := parseLength(root.attr("width"))
	h, okH := parseLength(root.attr("height"))
	switch {
	case okW && okH && w > 0 && h > 0:
		return w, h, nil
	case hasVB && okW && w > 0:
		return w, w * vb.h / vb.w, nil
	case hasVB && okH && h > 0:
		return h * vb.w / vb.h, h, nil
	case hasVB:
		return vb.w, vb.h, nil
	}
	return 0, 0, fmt.Errorf("svg has no usable size (width %q, height %q, viewBox %q)",
		root.attr("width"), root.attr("height"), root.attr("viewBox"))
}

// rgb is a paint colour. none means "do not paint".
type rgb struct {
	r, g, b int
	none    bool
}

var namedColors = map[string]rgb{
	"black":  {0, 0, 0, false},
	"white":  {255, 255, 255, false},
	"red":    {255, 0, 0, false},
	"green":  {0, 128, 0, false},
	"blue":   {0, 0, 255, false},
	"yellow": {255, 255, 0, false},
	"gray":   {128, 128, 128, false},
	"grey":   {128, 128, 128, false},
	"silver": {192, 192, 192, false},
	"orange": {255, 165, 0, false},
}

// parseColor reads a paint value. ok is false for values that should not
// change the inherited paint (inherit, currentColor, gradients).
func parseColor(s string) (rgb, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "inherit" || s == "currentcolor":
		return rgb{}, false
	case s == "none" || s == "transparent":
		return rgb{none: true}, true
	case strings.HasPrefix(s, "#"):
		return parseHex(s[1:])
	case strings.HasPrefix(s, "rgb("):
		n := parseNumbers(s)
		if len(n) < 3 {
			return rgb{}, false
		}
		if strings.Contains(s, "%") {
			return rgb{r: pct(n[0]), g: pct(n[1]), b: pct(n[2])}, true
		}
		return rgb{r: clamp(n[0]), g: clamp(n[1]), b: clamp(n[2])}, true
	}
	c, ok := namedColors[s]
	return c, ok
}

func parseHex(h string) (rgb, bool) {
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{r: int(v >> 16 & 0xff), g: int(v >> 8 & 0xff), b: int(v & 0xff)}, true
}

func clamp(v float64) int { return int(math.Max(0, math.Min(255, math.Round(v)))) }
func pct(v float64) int   { return clamp(v * 255 / 100) }

// style is the inherited presentation state of an element.
type style struct {
	fill        rgb
	stroke      rgb
	strokeWidth float64
	fontSize    float64
	fontWeight  string
	hidden      bool
}

func defaultStyle() style {
	return style{
		fill:        rgb{},
		stroke:      rgb{none: true},
		strokeWidth: 1,
		fontSize:    16,
	}
}

// declarations merges presentation attributes with the style attribute.
// The style attribute wins.
func declarations(n *node) map[string]string {
	props := make(map[string]string)
	for _, name := range []string{"fill", "stroke", "stroke-width", "font-size", "font-weight", "display", "visibility"} {
		if v := n.attr(name); v != "" {
			props[name] = v
		}
	}
	for _, decl := range strings.Split(n.attr("style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		props[strings.TrimSpace(strings.ToLower(k))] = strings.TrimSpace(v)
	}
	return props
}

// inherit computes the style of n from its parent's.
func (s style) inherit(n *node) style {
	props := declarations(n)
	if c, ok := parseColor(props["fill"]); ok {
		s.fill = c
	}
	if c, ok := parseColor(props["stroke"]); ok {
		s.stroke = c
	}
	if v, ok := parseLength(props["stroke-width"]); ok {
		s.strokeWidth = v
	}
	if v, ok := parseLength(props["font-size"]); ok && v > 0 {
		s.fontSize = v
	}
	if v := props["font-weight"]; v != "" {
		s.fontWeight = v
	}
	if props["display"] == "none" || props["visibility"] == "hidden" {
		s.hidden = true
	}
	return s
}

func (s style) bold() bool {
	switch s.fontWeight {
	case "bold", "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}

// drawStyle returns the gofpdf style string, or "" when nothing is painted.
func (s style) drawStyle() string {
	fill, stroke := !s.fill.none, !s.stroke.none && s.strokeWidth > 0
	switch {
	case fill && stroke:
		return "FD"
	case fill:
		return "F"
	case stroke:
		return "D"
	}
	return ""
}
