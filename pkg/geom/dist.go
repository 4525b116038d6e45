package geom

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// smallNum is the relative threshold below which segments are treated as
// parallel.
const smallNum = 1e-7

// PointSegmentDist2 returns the squared distance from p to segment ab and the
// clamped parameter of the closest point.
func PointSegmentDist2(p, a, b v3.Vec) (d2, t float64) {
	ab := b.Sub(a)
	l2 := ab.Length2()
	if l2 == 0 {
		return p.Sub(a).Length2(), 0
	}
	t = clamp(p.Sub(a).Dot(ab)/l2, 0, 1)
	return p.Sub(a.Add(ab.MulScalar(t))).Length2(), t
}

// SegSeg is the closest-point result between two segments.
type SegSeg struct {
	Dist   float64
	S, T   float64
	P0, P1 v3.Vec
}

// SegmentSegment returns the closest points between segments p0p1 and q0q1,
// with both parameters clamped to [0,1].
func SegmentSegment(p0, p1, q0, q1 v3.Vec) SegSeg {
	u := p1.Sub(p0)
	v := q1.Sub(q0)
	w := p0.Sub(q0)
	a := u.Dot(u)
	b := u.Dot(v)
	c := v.Dot(v)
	d := u.Dot(w)
	e := v.Dot(w)
	den := a*c - b*b

	var sN, sD, tN, tD = den, den, den, den
	if a == 0 || c == 0 || den < smallNum*a*c {
		sN, sD = 0, 1
		tN, tD = e, c
	} else {
		sN = b*e - c*d
		tN = a*e - b*d
		if sN < 0 {
			sN = 0
			tN, tD = e, c
		} else if sN > sD {
			sN = sD
			tN, tD = e+b, c
		}
	}

	if tN < 0 {
		tN = 0
		switch {
		case -d < 0:
			sN = 0
		case -d > a:
			sN = sD
		default:
			sN, sD = -d, a
		}
	} else if tN > tD {
		tN = tD
		switch {
		case -d+b < 0:
			sN = 0
		case -d+b > a:
			sN = sD
		default:
			sN, sD = -d+b, a
		}
	}

	var s, t float64
	if sD != 0 {
		s = sN / sD
	}
	if tD != 0 {
		t = tN / tD
	}
	s = clamp(s, 0, 1)
	t = clamp(t, 0, 1)
	c0 := p0.Add(u.MulScalar(s))
	c1 := q0.Add(v.MulScalar(t))
	return SegSeg{Dist: c0.Sub(c1).Length(), S: s, T: t, P0: c0, P1: c1}
}
