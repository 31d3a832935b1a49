package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func near(t *testing.T, want, got float64) {
	t.Helper()
	assert.InDelta(t, want, got, 1e-9)
}

func TestParseLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"100", 100, true},
		{"100px", 100, true},
		{"72pt", 96, true},
		{"1in", 96, true},
		{"25.4mm", 96, true},
		{" 2.54cm ", 96, true},
		{"1e2", 100, true},
		{"50%", 0, false},
		{"auto", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLength(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		near(t, tt.want, got)
	}
}

func TestParseTransform(t *testing.T) {
	t.Parallel()

	m := parseTransform("translate(10,20) scale(2)")
	x, y := m.a*1+m.c*1+m.e, m.b*1+m.d*1+m.f
	near(t, 12, x)
	near(t, 22, y)

	m = parseTransform("matrix(1 0 0 1 5 6)")
	assert.Equal(t, matrix{1, 0, 0, 1, 5, 6}, m)

	m = parseTransform("rotate(90)")
	near(t, 0, m.a)
	near(t, 1, m.b)
	near(t, -1, m.c)

	// Rotation about a centre keeps the centre fixed.
	m = parseTransform("rotate(45 10 10)")
	near(t, 10, m.a*10+m.c*10+m.e)
	near(t, 10, m.b*10+m.d*10+m.f)

	assert.Equal(t, identity, parseTransform("bogus(1,2)"))
	assert.Equal(t, identity, parseTransform(""))
}

func TestExtentAndViewport(t *testing.T) {
	t.Parallel()

	root, err := parseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="794" height="1123" viewBox="0 0 595 842"/>`))
	require.NoError(t, err)
	w, h, err := extent(root)
	require.NoError(t, err)
	near(t, 794, w)
	near(t, 1123, h)

	root, err = parseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="10 20 200 100"/>`))
	require.NoError(t, err)
	w, h, err = extent(root)
	require.NoError(t, err)
	near(t, 200, w)
	near(t, 100, h)

	// Meet scaling centres the box vertically.
	vp := viewport(root, 400, 400)
	near(t, 2, vp.a)
	near(t, 2, vp.d)
	near(t, -20, vp.e)
	near(t, 100-40, vp.f)

	root, err = parseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="100%"/>`))
	require.NoError(t, err)
	_, _, err = extent(root)
	assert.Error(t, err)
}

func TestParseSVG_RejectsNonSVG(t *testing.T) {
	t.Parallel()

	_, err := parseSVG([]byte(`<html><body/></html>`))
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	t.Parallel()

	c, ok := parseColor("#ff8000")
	require.True(t, ok)
	assert.Equal(t, rgb{r: 255, g: 128}, c)

	c, ok = parseColor("#0f0")
	require.True(t, ok)
	assert.Equal(t, rgb{g: 255}, c)

	c, ok = parseColor("rgb(10, 20, 30)")
	require.True(t, ok)
	assert.Equal(t, rgb{r: 10, g: 20, b: 30}, c)

	c, ok = parseColor("none")
	require.True(t, ok)
	assert.True(t, c.none)

	_, ok = parseColor("url(#grad)")
	assert.False(t, ok)
}

func TestStyleInheritance(t *testing.T) {
	t.Parallel()

	root, err := parseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg">
<g fill="red" stroke-width="3"><rect style="stroke: #000; fill: none" font-size="10pt"/></g></svg>`))
	require.NoError(t, err)

	g := &root.Children[0]
	rect := &g.Children[0]
	st := defaultStyle().inherit(root).inherit(g).inherit(rect)

	assert.True(t, st.fill.none)
	assert.Equal(t, rgb{}, st.stroke)
	near(t, 3, st.strokeWidth)
	assert.InDelta(t, 10*4.0/3.0, st.fontSize, 1e-9)
	assert.Equal(t, "D", st.drawStyle())
}

func TestPDFMatrix(t *testing.T) {
	t.Parallel()

	cv := &canvas{heightPt: 100}

	// Identity in SVG space leaves gofpdf's own flip in charge.
	tm := cv.pdfMatrix(identity)
	near(t, 1, tm.A)
	near(t, 1, tm.D)
	near(t, 0, tm.E)
	near(t, 0, tm.F)

	// A user-space point must land where the SVG transform puts it,
	// expressed in PDF's y-up coordinates.
	m := translate(10, 5).mul(scale(2, 2)).mul(rotate(30))
	tm = cv.pdfMatrix(m)
	ux, uy := 3.0, 4.0
	svgX, svgY := m.a*ux+m.c*uy+m.e, m.b*ux+m.d*uy+m.f
	// gofpdf emits the user point as (ux, H-uy) before applying tm.
	px, py := ux, cv.heightPt-uy
	pdfX := tm.A*px + tm.C*py + tm.E
	pdfY := tm.B*px + tm.D*py + tm.F
	near(t, svgX, pdfX)
	near(t, cv.heightPt-svgY, pdfY)
	assert.False(t, math.IsNaN(pdfX))
}

func mv(x, y float64) segment { return segment{op: 'M', pts: [6]float64{x, y}} }
func ln(x, y float64) segment { return segment{op: 'L', pts: [6]float64{x, y}} }
func cubic(x1, y1, x2, y2, x, y float64) segment {
	return segment{op: 'C', pts: [6]float64{x1, y1, x2, y2, x, y}}
}

var closePath = segment{op: 'Z'}

func assertSegments(t *testing.T, want, got []segment) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, string(want[i].op), string(got[i].op), "segment %d", i)
		for k := range want[i].pts {
			assert.InDelta(t, want[i].pts[k], got[i].pts[k], 1e-9, "segment %d value %d", i, k)
		}
	}
}

func TestParsePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    string
		want []segment
	}{
		{
			name: "relative moveto after closepath starts at the subpath origin",
			d:    "m10 10 l10 0 l0 10 z m5 5 l2 0 z",
			want: []segment{mv(10, 10), ln(20, 10), ln(20, 20), closePath, mv(15, 15), ln(17, 15), closePath},
		},
		{
			name: "sign separates numbers",
			d:    "M10-5L20 20",
			want: []segment{mv(10, -5), ln(20, 20)},
		},
		{
			name: "second decimal point separates numbers",
			d:    "M0 0L1.5.5",
			want: []segment{mv(0, 0), ln(1.5, 0.5)},
		},
		{
			name: "exponents",
			d:    "M1e1,2E-1 L-1.5e+1 0",
			want: []segment{mv(10, 0.2), ln(-15, 0)},
		},
		{
			name: "implicit linetos after moveto",
			d:    "m1 1 2 2 3 0",
			want: []segment{mv(1, 1), ln(3, 3), ln(6, 3)},
		},
		{
			name: "horizontal and vertical lines",
			d:    "M1 1 h4 v4 H0 V0",
			want: []segment{mv(1, 1), ln(5, 1), ln(5, 5), ln(0, 5), ln(0, 0)},
		},
		{
			name: "smooth cubic reflects the previous control point",
			d:    "M0 0 C0 10 10 10 10 0 S20 -10 20 0",
			want: []segment{mv(0, 0), cubic(0, 10, 10, 10, 10, 0), cubic(10, -10, 20, -10, 20, 0)},
		},
		{
			name: "smooth cubic without a previous curve uses the current point",
			d:    "M0 0S5 5 10 10",
			want: []segment{mv(0, 0), cubic(0, 0, 5, 5, 10, 10)},
		},
		{
			name: "quadratics are elevated and smooth quadratics reflect",
			d:    "M0 0 Q5 10 10 0 T20 0",
			want: []segment{
				mv(0, 0),
				cubic(10.0/3, 20.0/3, 20.0/3, 20.0/3, 10, 0),
				cubic(40.0/3, -20.0/3, 50.0/3, -20.0/3, 20, 0),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parsePath(tt.d)
			require.NoError(t, err)
			assertSegments(t, tt.want, got)
		})
	}
}

func TestParsePath_Arc(t *testing.T) {
	t.Parallel()

	// Half circle around (10,0), drawn through (10,-10).
	for _, d := range []string{"M0 0A10 10 0 0 1 20 0", "M0 0a10 10 0 0120 0"} {
		segs, err := parsePath(d)
		require.NoError(t, err, d)
		require.Len(t, segs, 3, d)
		assert.Equal(t, byte('C'), segs[1].op)
		assert.InDelta(t, 10, segs[1].pts[4], 1e-9)
		assert.InDelta(t, -10, segs[1].pts[5], 1e-9)
		assert.Equal(t, [2]float64{20, 0}, [2]float64{segs[2].pts[4], segs[2].pts[5]})
	}

	// Radii too small for the endpoints are scaled up.
	segs, err := parsePath("M0 0 A1 1 0 0 1 10 10")
	require.NoError(t, err)
	last := segs[len(segs)-1]
	assert.Equal(t, [2]float64{10, 10}, [2]float64{last.pts[4], last.pts[5]})

	// A zero radius is a straight line.
	segs, err = parsePath("M0 0 A0 5 0 0 1 10 10")
	require.NoError(t, err)
	assertSegments(t, []segment{mv(0, 0), ln(10, 10)}, segs)
}

func TestParsePath_ErrorsKeepValidPrefix(t *testing.T) {
	t.Parallel()

	segs, err := parsePath("M0 0 L10 10 L5")
	assert.Error(t, err)
	assertSegments(t, []segment{mv(0, 0), ln(10, 10)}, segs)

	_, err = parsePath("10 10")
	assert.Error(t, err)

	segs, err = parsePath("M0 0 A5 5 0 2 1 3 3")
	assert.Error(t, err)
	assertSegments(t, []segment{mv(0, 0)}, segs)
}
