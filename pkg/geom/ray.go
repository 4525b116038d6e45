package geom

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	rayEps  = 1e-12
	baryEps = 1e-12 // hits this close outside an edge still count
)

// RayTriangle intersects a ray with a triangle (Möller-Trumbore). It returns
// the ray parameter t and the barycentric coordinates u, v of the hit. Hits
// behind the origin are reported; callers filter on t.
func RayTriangle(orig, dir v3.Vec, tri Tri) (t, u, v float64, ok bool) {
	e1 := tri[1].Sub(tri[0])
	e2 := tri[2].Sub(tri[0])
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < rayEps {
		return 0, 0, 0, false
	}
	inv := 1 / det
	s := orig.Sub(tri[0])
	u = s.Dot(p) * inv
	if u < -baryEps || u > 1+baryEps {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = dir.Dot(q) * inv
	if v < -baryEps || u+v > 1+baryEps {
		return 0, 0, 0, false
	}
	t = e2.Dot(q) * inv
	return t, u, v, true
}

// RayBox reports whether the ray (t >= 0) passes through the box, using the
// slab method.
func RayBox(orig, dir v3.Vec, b sdf.Box3) bool {
	tmin, tmax := 0.0, math.Inf(1)
	for k := 0; k < 3; k++ {
		o, d := Axis(orig, k), Axis(dir, k)
		lo, hi := Axis(b.Min, k), Axis(b.Max, k)
		if d == 0 {
			if o < lo || o > hi {
				return false
			}
			continue
		}
		t0 := (lo - o) / d
		t1 := (hi - o) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return false
		}
	}
	return true
}

// RayPlane intersects the line orig + t*dir with the plane through p0 with
// normal n. Negative t is allowed.
func RayPlane(orig, dir, p0, n v3.Vec) (float64, bool) {
	den := n.Dot(dir)
	if math.Abs(den) < rayEps {
		return 0, false
	}
	return n.Dot(p0.Sub(orig)) / den, true
}
