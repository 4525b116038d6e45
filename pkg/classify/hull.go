package classify

import (
	"math"

	"github.com/chazu/lignin-mesh/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
	"github.com/markus-wa/quickhull-go/v2"
)

const hullEps = 1e-12

// plane is a hull face: points p with (p - o).n > 0 are outside it.
type plane struct {
	o, n v3.Vec
}

// hull is the convex hull of a mesh's vertices, used to skip ray casts
// from points that cannot be inside the mesh.
type hull struct {
	faces []plane
	tol   float64
}

// hull returns the cached hull of m, building it on first use. A nil hull
// means none could be built and every point must be ray cast.
func (c *Classifier) hull(m *mesh.Mesh) *hull {
	h, ok := c.hulls[m]
	if !ok {
		h = buildHull(m)
		c.hulls[m] = h
	}
	return h
}

// buildHull builds the hull over the corners of m's top-level triangles.
// Split vertices lie on those triangles and add nothing. The result is
// dropped unless every vertex of m lies on or inside it.
func buildHull(m *mesh.Mesh) *hull {
	var pts []r3.Vector
	center := v3.Vec{}
	seen := make(map[mesh.VertID]bool)
	for i := range m.Tris {
		for _, v := range m.Tris[i].V {
			if seen[v] {
				continue
			}
			seen[v] = true
			p := m.Vert(v).Pos
			pts = append(pts, r3.Vector{X: p.X, Y: p.Y, Z: p.Z})
			center = center.Add(p)
		}
	}
	if len(pts) < 4 {
		return nil
	}
	center = center.DivScalar(float64(len(pts)))

	qh := new(quickhull.QuickHull)
	ch := qh.ConvexHull(pts, true, true, hullEps)
	if len(ch.Indices) < 12 || len(ch.Indices)%3 != 0 {
		return nil
	}

	b := m.Box()
	diag := b.Max.Sub(b.Min).Length()
	h := &hull{tol: 1e-9 * (1 + diag)}
	for i := 0; i < len(ch.Indices); i += 3 {
		a, bb, cc := pts[ch.Indices[i]], pts[ch.Indices[i+1]], pts[ch.Indices[i+2]]
		o := v3.Vec{X: a.X, Y: a.Y, Z: a.Z}
		n := v3.Vec{X: bb.X, Y: bb.Y, Z: bb.Z}.Sub(o).Cross(v3.Vec{X: cc.X, Y: cc.Y, Z: cc.Z}.Sub(o))
		l := n.Length()
		if l <= 1e-12*diag*diag || math.IsNaN(l) {
			continue
		}
		n = n.DivScalar(l)
		// Orient away from the vertex centroid, which lies inside the hull.
		d := center.Sub(o).Dot(n)
		if math.Abs(d) <= h.tol {
			return nil
		}
		if d > 0 {
			n = n.Neg()
		}
		h.faces = append(h.faces, plane{o: o, n: n})
	}
	if len(h.faces) < 4 {
		return nil
	}
	for _, v := range m.Verts {
		if h.outside(v.Pos) {
			return nil
		}
	}
	return h
}

// outside reports whether p is clearly outside the hull.
func (h *hull) outside(p v3.Vec) bool {
	for _, f := range h.faces {
		if p.Sub(f.o).Dot(f.n) > h.tol {
			return true
		}
	}
	return false
}
