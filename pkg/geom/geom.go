// Package geom holds the pure geometric primitives the mesh engine is built
// on: triangle/triangle intersection, ray casts, and closest-point distances.
// Nothing in this package allocates or panics; degenerate input is reported
// as "no hit".
package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tri is a triangle given by its three corners.
type Tri [3]v3.Vec

// Axis returns component k (0=X, 1=Y, 2=Z) of v.
func Axis(v v3.Vec, k int) float64 {
	switch k {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// WithAxis returns v with component k replaced by x.
func WithAxis(v v3.Vec, k int, x float64) v3.Vec {
	switch k {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
	return v
}

// Unit returns the unit vector along axis k.
func Unit(k int) v3.Vec {
	return WithAxis(v3.Vec{}, k, 1)
}

// Normal returns the unit normal of the triangle (counter-clockwise winding),
// or the zero vector when the triangle is degenerate.
func (t Tri) Normal() v3.Vec {
	n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
	l := n.Length()
	if l == 0 {
		return v3.Vec{}
	}
	return n.DivScalar(l)
}

// Area returns the triangle area.
func (t Tri) Area() float64 {
	return 0.5 * t[1].Sub(t[0]).Cross(t[2].Sub(t[0])).Length()
}

// Centroid returns the average of the corners.
func (t Tri) Centroid() v3.Vec {
	return t[0].Add(t[1]).Add(t[2]).DivScalar(3)
}

// Barycentric returns the weights of p, projected onto the plane of the
// triangle, with respect to its corners. A degenerate triangle gives all the
// weight to the first corner.
func (t Tri) Barycentric(p v3.Vec) [3]float64 {
	e0, e1 := t[1].Sub(t[0]), t[2].Sub(t[0])
	d := p.Sub(t[0])
	d00, d01, d11 := e0.Dot(e0), e0.Dot(e1), e1.Dot(e1)
	d20, d21 := d.Dot(e0), d.Dot(e1)
	den := d00*d11 - d01*d01
	if den == 0 {
		return [3]float64{1, 0, 0}
	}
	v := (d11*d20 - d01*d21) / den
	w := (d00*d21 - d01*d20) / den
	return [3]float64{1 - v - w, v, w}
}

// Box returns the axis-aligned bounding box of the triangle.
func (t Tri) Box() sdf.Box3 {
	return sdf.Box3{
		Min: t[0].Min(t[1]).Min(t[2]),
		Max: t[0].Max(t[1]).Max(t[2]),
	}
}

// Angles returns the interior angles at each corner in degrees.
func (t Tri) Angles() [3]float64 {
	var a [3]float64
	for i := 0; i < 3; i++ {
		e0 := t[(i+1)%3].Sub(t[i])
		e1 := t[(i+2)%3].Sub(t[i])
		l := e0.Length() * e1.Length()
		if l == 0 {
			continue
		}
		c := clamp(e0.Dot(e1)/l, -1, 1)
		a[i] = math.Acos(c) * 180 / math.Pi
	}
	return a
}

// BoxOverlap reports whether two boxes intersect (touching counts).
func BoxOverlap(a, b sdf.Box3) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// BoxUnion returns the smallest box containing a and b.
func BoxUnion(a, b sdf.Box3) sdf.Box3 {
	return sdf.Box3{Min: a.Min.Min(b.Min), Max: a.Max.Max(b.Max)}
}

// BoxExpand grows a box by d on every side.
func BoxExpand(b sdf.Box3, d float64) sdf.Box3 {
	e := v3.Vec{X: d, Y: d, Z: d}
	return sdf.Box3{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// BoxContains reports whether p lies inside b (boundary included).
func BoxContains(b sdf.Box3, p v3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
