package mesh

import (
	"math"
	"sort"

	"github.com/chazu/lignin-mesh/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// HitTol merges ray hits whose parameters differ by less than this, so a ray
// through a shared edge or vertex counts once.
const HitTol = 1e-7

// RayCast returns the sorted, deduplicated parameters t > 0 at which the ray
// crosses the mesh's top-level triangles.
func (m *Mesh) RayCast(orig, dir v3.Vec) []float64 {
	var hits []float64
	m.TriTree().Ray(orig, dir, func(id int) {
		t, _, _, ok := geom.RayTriangle(orig, dir, m.Corners(&m.Tris[id]))
		if ok && t > 0 {
			hits = append(hits, t)
		}
	})
	if len(hits) < 2 {
		return hits
	}
	sort.Float64s(hits)
	out := hits[:1]
	for _, t := range hits[1:] {
		if math.Abs(t-out[len(out)-1]) > HitTol {
			out = append(out, t)
		}
	}
	return out
}

// Inside reports whether p lies inside the mesh by ray parity.
func (m *Mesh) Inside(p, dir v3.Vec) bool {
	return len(m.RayCast(p, dir))%2 == 1
}

// Project returns the closest hit of the line p + t*dir (either direction)
// with the mesh, if one lies within maxDist of p.
func (m *Mesh) Project(p, dir v3.Vec, maxDist float64) (v3.Vec, bool) {
	fwd := m.nearestHit(p, dir)
	back := m.nearestHit(p, dir.Neg())
	t := fwd
	if back < fwd {
		t = -back
	}
	if math.Abs(t) > maxDist {
		return p, false
	}
	return p.Add(dir.MulScalar(t)), true
}

// nearestHit returns the smallest t >= 0 at which the ray meets the mesh, or
// +Inf.
func (m *Mesh) nearestHit(orig, dir v3.Vec) float64 {
	best := math.Inf(1)
	m.TriTree().Ray(orig, dir, func(id int) {
		t, _, _, ok := geom.RayTriangle(orig, dir, m.Corners(&m.Tris[id]))
		if ok && t >= 0 && t < best {
			best = t
		}
	})
	return best
}
