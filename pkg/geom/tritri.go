package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultPlaneEps snaps corner-to-plane distances to zero in TriTri.
const DefaultPlaneEps = 1e-10

// Isect is a triangle/triangle intersection result.
type Isect struct {
	Coplanar bool
	P0, P1   v3.Vec
}

// Length returns the length of the intersection segment.
func (s Isect) Length() float64 {
	return s.P1.Sub(s.P0).Length()
}

// TriTri intersects two triangles using plane separation followed by an
// interval overlap along the line shared by both planes. It reports ok=false
// when the triangles do not touch. Coplanar overlap is reported with
// Coplanar set and no segment. The segment endpoints are chosen from the
// edge/plane crossings of both triangles, so swapping the arguments yields the
// same endpoints.
func TriTri(a, b Tri, eps float64) (Isect, bool) {
	na := a[1].Sub(a[0]).Cross(a[2].Sub(a[0]))
	nb := b[1].Sub(b[0]).Cross(b[2].Sub(b[0]))
	la, lb := na.Length(), nb.Length()
	if la == 0 || lb == 0 {
		return Isect{}, false
	}
	na = na.DivScalar(la)
	nb = nb.DivScalar(lb)

	var da, db [3]float64
	for i := 0; i < 3; i++ {
		da[i] = snap(nb.Dot(a[i].Sub(b[0])), eps)
	}
	if sameSide(da) {
		return Isect{}, false
	}
	for i := 0; i < 3; i++ {
		db[i] = snap(na.Dot(b[i].Sub(a[0])), eps)
	}
	if sameSide(db) {
		return Isect{}, false
	}

	if da[0] == 0 && da[1] == 0 && da[2] == 0 {
		if coplanarOverlap(a, b, na) {
			return Isect{Coplanar: true}, true
		}
		return Isect{}, false
	}

	dir := na.Cross(nb)
	if dir.Length2() == 0 {
		return Isect{}, false
	}

	a0, a1, ok := planeCrossing(a, da)
	if !ok {
		return Isect{}, false
	}
	b0, b1, ok := planeCrossing(b, db)
	if !ok {
		return Isect{}, false
	}

	ta0, ta1 := dir.Dot(a0), dir.Dot(a1)
	if ta0 > ta1 {
		ta0, ta1 = ta1, ta0
		a0, a1 = a1, a0
	}
	tb0, tb1 := dir.Dot(b0), dir.Dot(b1)
	if tb0 > tb1 {
		tb0, tb1 = tb1, tb0
		b0, b1 = b1, b0
	}
	if ta1 < tb0 || tb1 < ta0 {
		return Isect{}, false
	}

	s := Isect{P0: a0, P1: a1}
	if tb0 > ta0 {
		s.P0 = b0
	}
	if tb1 < ta1 {
		s.P1 = b1
	}
	return s, true
}

func snap(d, eps float64) float64 {
	if math.Abs(d) < eps {
		return 0
	}
	return d
}

func sameSide(d [3]float64) bool {
	return (d[0] > 0 && d[1] > 0 && d[2] > 0) || (d[0] < 0 && d[1] < 0 && d[2] < 0)
}

// planeCrossing returns the points where triangle t meets the plane whose
// signed corner distances are d. A corner touching the plane yields a
// single point, returned twice.
func planeCrossing(t Tri, d [3]float64) (p0, p1 v3.Vec, ok bool) {
	var pts [3]v3.Vec
	n := 0
	for i := 0; i < 3 && n < 3; i++ {
		j := (i + 1) % 3
		if d[i] == 0 {
			pts[n] = t[i]
			n++
			continue
		}
		if d[i]*d[j] < 0 {
			s := d[i] / (d[i] - d[j])
			pts[n] = t[i].Add(t[j].Sub(t[i]).MulScalar(s))
			n++
		}
	}
	switch n {
	case 0:
		return v3.Vec{}, v3.Vec{}, false
	case 1:
		return pts[0], pts[0], true
	default:
		return pts[0], pts[1], true
	}
}

// coplanarOverlap tests two coplanar triangles for overlap in the plane
// that drops the dominant axis of n.
func coplanarOverlap(a, b Tri, n v3.Vec) bool {
	k := DominantAxis(n)
	var pa, pb [3][2]float64
	for i := 0; i < 3; i++ {
		pa[i] = drop(a[i], k)
		pb[i] = drop(b[i], k)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if segCross2(pa[i], pa[(i+1)%3], pb[j], pb[(j+1)%3]) {
				return true
			}
		}
	}
	return inTri2(pa[0], pb) || inTri2(pb[0], pa)
}

// DominantAxis returns the axis with the largest absolute component of n.
func DominantAxis(n v3.Vec) int {
	x, y, z := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case x >= y && x >= z:
		return 0
	case y >= z:
		return 1
	default:
		return 2
	}
}

func drop(v v3.Vec, k int) [2]float64 {
	switch k {
	case 0:
		return [2]float64{v.Y, v.Z}
	case 1:
		return [2]float64{v.Z, v.X}
	default:
		return [2]float64{v.X, v.Y}
	}
}

func orient2(a, b, c [2]float64) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func segCross2(p0, p1, q0, q1 [2]float64) bool {
	d0 := orient2(p0, p1, q0)
	d1 := orient2(p0, p1, q1)
	d2 := orient2(q0, q1, p0)
	d3 := orient2(q0, q1, p1)
	return d0*d1 < 0 && d2*d3 < 0
}

func inTri2(p [2]float64, t [3][2]float64) bool {
	d0 := orient2(t[0], t[1], p)
	d1 := orient2(t[1], t[2], p)
	d2 := orient2(t[2], t[0], p)
	neg := d0 < 0 || d1 < 0 || d2 < 0
	pos := d0 > 0 || d1 > 0 || d2 > 0
	return !(neg && pos)
}

// ClipSegment clips segment p0p1, which lies in the plane of t, to the
// triangle. It reports ok=false when nothing of positive length remains.
func ClipSegment(p0, p1 v3.Vec, t Tri, eps float64) (q0, q1 v3.Vec, ok bool) {
	n := t.Normal()
	if n == (v3.Vec{}) {
		return p0, p1, false
	}
	lo, hi := 0.0, 1.0
	for i := 0; i < 3; i++ {
		a, b := t[i], t[(i+1)%3]
		in := n.Cross(b.Sub(a))
		l := in.Length()
		if l == 0 {
			return p0, p1, false
		}
		in = in.DivScalar(l)
		f0 := snap(in.Dot(p0.Sub(a)), eps)
		f1 := snap(in.Dot(p1.Sub(a)), eps)
		switch {
		case f0 < 0 && f1 < 0:
			return p0, p1, false
		case f0 < 0:
			lo = math.Max(lo, f0/(f0-f1))
		case f1 < 0:
			hi = math.Min(hi, f0/(f0-f1))
		}
	}
	if hi-lo <= 0 {
		return p0, p1, false
	}
	d := p1.Sub(p0)
	return p0.Add(d.MulScalar(lo)), p0.Add(d.MulScalar(hi)), true
}

// OnTriangle reports whether p lies within tol of the plane of t and inside
// it, with its edges widened by tol.
func OnTriangle(p v3.Vec, t Tri, tol float64) bool {
	n := t.Normal()
	if n == (v3.Vec{}) {
		return false
	}
	if math.Abs(n.Dot(p.Sub(t[0]))) > tol {
		return false
	}
	for i := 0; i < 3; i++ {
		a, b := t[i], t[(i+1)%3]
		in := n.Cross(b.Sub(a))
		if in.Dot(p.Sub(a)) < -tol*in.Length() {
			return false
		}
	}
	return true
}
