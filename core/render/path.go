package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// segment is one absolute path operation: 'M' and 'L' use pts[0:2], 'C'
// uses all six values, 'Z' none.
type segment struct {
	op  byte
	pts [6]float64
}

// parsePath parses SVG path data into absolute M, L, C and Z segments.
// H and V become lines, quadratic curves and arcs become cubics. On a
// syntax error the segments before it are returned with the error, so the
// caller can draw the valid prefix.
func parsePath(d string) ([]segment, error) {
	p := &pathParser{s: d}
	err := p.parse()
	return p.segs, err
}

type pathParser struct {
	s    string
	i    int
	segs []segment

	cx, cy float64 // current point
	sx, sy float64 // start of the current subpath
	// Control points of the previous command, for S and T reflection.
	prev     byte
	c2x, c2y float64
	qx, qy   float64
}

func (p *pathParser) parse() error {
	var cmd byte
	for {
		p.skipSeparators()
		if p.i >= len(p.s) {
			return nil
		}
		switch c := p.s[p.i]; {
		case strings.IndexByte("MmLlHhVvCcSsQqTtAaZz", c) >= 0:
			cmd = c
			p.i++
		case cmd == 0:
			return fmt.Errorf("path data starts with %q instead of a command", c)
		case cmd == 'Z' || cmd == 'z':
			return fmt.Errorf("unexpected %q after closepath at offset %d", c, p.i)
		}
		if err := p.command(cmd); err != nil {
			return err
		}
		// Coordinates repeated after a moveto are implicit linetos.
		switch cmd {
		case 'M':
			cmd = 'L'
		case 'm':
			cmd = 'l'
		}
	}
}

func (p *pathParser) command(cmd byte) error {
	rel := cmd >= 'a'
	var ox, oy float64
	if rel {
		ox, oy = p.cx, p.cy
	}
	up := cmd &^ 0x20

	switch up {
	case 'M', 'L':
		v, err := p.numbers(2)
		if err != nil {
			return err
		}
		x, y := v[0]+ox, v[1]+oy
		if up == 'M' {
			p.emit(segment{op: 'M', pts: [6]float64{x, y}})
			p.sx, p.sy = x, y
		} else {
			p.lineTo(x, y)
		}
	case 'H':
		v, err := p.numbers(1)
		if err != nil {
			return err
		}
		p.lineTo(v[0]+ox, p.cy)
	case 'V':
		v, err := p.numbers(1)
		if err != nil {
			return err
		}
		p.lineTo(p.cx, v[0]+oy)
	case 'C', 'S':
		n := 6
		if up == 'S' {
			n = 4
		}
		v, err := p.numbers(n)
		if err != nil {
			return err
		}
		c1x, c1y := p.cx, p.cy
		if up == 'S' {
			if p.prev == 'C' || p.prev == 'S' {
				c1x, c1y = 2*p.cx-p.c2x, 2*p.cy-p.c2y
			}
			v = append([]float64{c1x - ox, c1y - oy}, v...)
		}
		p.curveTo(v[0]+ox, v[1]+oy, v[2]+ox, v[3]+oy, v[4]+ox, v[5]+oy)
	case 'Q', 'T':
		n := 4
		if up == 'T' {
			n = 2
		}
		v, err := p.numbers(n)
		if err != nil {
			return err
		}
		qx, qy := p.cx, p.cy
		if up == 'T' {
			if p.prev == 'Q' || p.prev == 'T' {
				qx, qy = 2*p.cx-p.qx, 2*p.cy-p.qy
			}
		} else {
			qx, qy = v[0]+ox, v[1]+oy
			v = v[2:]
		}
		x, y := v[0]+ox, v[1]+oy
		p.curveTo(
			p.cx+2.0/3.0*(qx-p.cx), p.cy+2.0/3.0*(qy-p.cy),
			x+2.0/3.0*(qx-x), y+2.0/3.0*(qy-y),
			x, y,
		)
		p.qx, p.qy = qx, qy
	case 'A':
		v, err := p.numbers(3)
		if err != nil {
			return err
		}
		large, err := p.flag()
		if err != nil {
			return err
		}
		sweep, err := p.flag()
		if err != nil {
			return err
		}
		end, err := p.numbers(2)
		if err != nil {
			return err
		}
		p.arcTo(v[0], v[1], v[2], large, sweep, end[0]+ox, end[1]+oy)
	case 'Z':
		p.emit(segment{op: 'Z'})
		p.cx, p.cy = p.sx, p.sy
	}
	p.prev = up
	return nil
}

func (p *pathParser) emit(s segment) {
	p.segs = append(p.segs, s)
	switch s.op {
	case 'M', 'L':
		p.cx, p.cy = s.pts[0], s.pts[1]
	case 'C':
		p.cx, p.cy = s.pts[4], s.pts[5]
	}
}

func (p *pathParser) lineTo(x, y float64) {
	p.emit(segment{op: 'L', pts: [6]float64{x, y}})
}

func (p *pathParser) curveTo(x1, y1, x2, y2, x, y float64) {
	p.emit(segment{op: 'C', pts: [6]float64{x1, y1, x2, y2, x, y}})
	p.c2x, p.c2y = x2, y2
}

// arcTo approximates an elliptical arc from the current point with cubics
// of at most a quarter turn each (endpoint to centre conversion).
func (p *pathParser) arcTo(rx, ry, rotation float64, large, sweep bool, x, y float64) {
	x0, y0 := p.cx, p.cy
	if x0 == x && y0 == y {
		return
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 {
		p.lineTo(x, y)
		return
	}

	sin, cos := math.Sincos(rotation * math.Pi / 180)
	dx, dy := (x0-x)/2, (y0-y)/2
	x1 := cos*dx + sin*dy
	y1 := -sin*dx + cos*dy

	if l := x1*x1/(rx*rx) + y1*y1/(ry*ry); l > 1 {
		s := math.Sqrt(l)
		rx, ry = rx*s, ry*s
	}
	num := rx*rx*ry*ry - rx*rx*y1*y1 - ry*ry*x1*x1
	den := rx*rx*y1*y1 + ry*ry*x1*x1
	var coef float64
	if num > 0 && den > 0 {
		coef = math.Sqrt(num / den)
	}
	if large == sweep {
		coef = -coef
	}
	cxp, cyp := coef*rx*y1/ry, -coef*ry*x1/rx
	cx := cos*cxp - sin*cyp + (x0+x)/2
	cy := sin*cxp + cos*cyp + (y0+y)/2

	ux, uy := (x1-cxp)/rx, (y1-cyp)/ry
	vx, vy := (-x1-cxp)/rx, (-y1-cyp)/ry
	theta := vectorAngle(1, 0, ux, uy)
	delta := vectorAngle(ux, uy, vx, vy)
	switch {
	case !sweep && delta > 0:
		delta -= 2 * math.Pi
	case sweep && delta < 0:
		delta += 2 * math.Pi
	}

	n := int(math.Ceil(math.Abs(delta)/(math.Pi/2) - 1e-9))
	if n < 1 {
		n = 1
	}
	step := delta / float64(n)
	k := 4.0 / 3.0 * math.Tan(step/4)

	at := func(t float64) (px, py, tx, ty float64) {
		st, ct := math.Sincos(t)
		px = cx + rx*ct*cos - ry*st*sin
		py = cy + rx*ct*sin + ry*st*cos
		tx = -rx*st*cos - ry*ct*sin
		ty = -rx*st*sin + ry*ct*cos
		return
	}
	for i := 0; i < n; i++ {
		p0x, p0y, t0x, t0y := at(theta)
		theta += step
		p3x, p3y, t3x, t3y := at(theta)
		if i == n-1 {
			p3x, p3y = x, y
		}
		p.curveTo(p0x+k*t0x, p0y+k*t0y, p3x-k*t3x, p3y-k*t3y, p3x, p3y)
	}
}

// vectorAngle returns the signed angle from u to v.
func vectorAngle(ux, uy, vx, vy float64) float64 {
	return math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
}

func (p *pathParser) skipSeparators() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', '\t', '\n', '\r', '\f', ',':
			p.i++
		default:
			return
		}
	}
}

func (p *pathParser) numbers(n int) ([]float64, error) {
	v := make([]float64, n)
	for k := range v {
		f, err := p.number()
		if err != nil {
			return nil, err
		}
		v[k] = f
	}
	return v, nil
}

// number scans one number. A sign or a second decimal point starts the
// next number, so "10-5" and "1.5.5" are two numbers each.
func (p *pathParser) number() (float64, error) {
	p.skipSeparators()
	start := p.i
	if p.i < len(p.s) && (p.s[p.i] == '+' || p.s[p.i] == '-') {
		p.i++
	}
	digits := p.digits()
	if p.i < len(p.s) && p.s[p.i] == '.' {
		p.i++
		digits += p.digits()
	}
	if digits == 0 {
		p.i = start
		return 0, fmt.Errorf("expected number at offset %d in path data", start)
	}
	if p.i < len(p.s) && (p.s[p.i] == 'e' || p.s[p.i] == 'E') {
		j := p.i + 1
		if j < len(p.s) && (p.s[j] == '+' || p.s[j] == '-') {
			j++
		}
		if j < len(p.s) && isDigit(p.s[j]) {
			p.i = j
			p.digits()
		}
	}
	return strconv.ParseFloat(p.s[start:p.i], 64)
}

func (p *pathParser) digits() int {
	n := 0
	for p.i < len(p.s) && isDigit(p.s[p.i]) {
		p.i++
		n++
	}
	return n
}

// flag scans an arc flag, which may be written without a separator.
func (p *pathParser) flag() (bool, error) {
	p.skipSeparators()
	if p.i < len(p.s) {
		switch p.s[p.i] {
		case '0':
			p.i++
			return false, nil
		case '1':
			p.i++
			return true, nil
		}
	}
	return false, fmt.Errorf("expected arc flag at offset %d in path data", p.i)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
