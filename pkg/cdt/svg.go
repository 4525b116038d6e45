package cdt

import (
	"io"

	svg "github.com/ajstarks/svgo"
	"github.com/golang/geo/r2"
)

const (
	svgSize = 800
	svgPad  = 20

	triStyle = "fill:rgb(240,240,250);stroke:rgb(120,120,120);stroke-width:1"
	segStyle = "stroke:rgb(200,40,40);stroke-width:2"
	ptStyle  = "fill:rgb(0,0,255)"
)

// WriteSVG draws a triangulation and its constraint segments, for
// inspecting a failed or suspicious re-triangulation.
func WriteSVG(w io.Writer, res Result, segs [][2]int) {
	canvas := svg.New(w)
	canvas.Start(svgSize, svgSize)
	canvas.Rect(0, 0, svgSize, svgSize, "fill:rgb(255,255,255)")
	if len(res.Points) == 0 {
		canvas.End()
		return
	}

	rect := r2.RectFromPoints(res.Points...)
	sz := rect.Size()
	span := sz.X
	if sz.Y > span {
		span = sz.Y
	}
	if span == 0 {
		span = 1
	}
	scale := float64(svgSize-2*svgPad) / span
	screen := func(p r2.Point) (int, int) {
		q := p.Sub(rect.Lo()).Mul(scale)
		return svgPad + int(q.X), svgSize - svgPad - int(q.Y)
	}

	valid := func(i int) bool { return i >= 0 && i < len(res.Points) }
	xs := make([]int, 3)
	ys := make([]int, 3)
	for _, t := range res.Tris {
		if !valid(t[0]) || !valid(t[1]) || !valid(t[2]) {
			continue
		}
		for k, i := range t {
			xs[k], ys[k] = screen(res.Points[i])
		}
		canvas.Polygon(xs, ys, triStyle)
	}
	for _, s := range segs {
		if !valid(s[0]) || !valid(s[1]) {
			continue
		}
		x0, y0 := screen(res.Points[s[0]])
		x1, y1 := screen(res.Points[s[1]])
		canvas.Line(x0, y0, x1, y1, segStyle)
	}
	for _, p := range res.Points {
		x, y := screen(p)
		canvas.Circle(x, y, 3, ptStyle)
	}
	canvas.End()
}
