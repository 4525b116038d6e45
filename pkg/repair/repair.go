// Package repair improves the quality of a welded mesh around its
// intersection curves: it collapses needle triangles, swaps the long edge
// of flat triangles, relaxes curve vertices back onto the original
// surfaces, and drives those steps to a watertight result.
package repair

import (
	"github.com/chazu/lignin-mesh/pkg/mesh"
)

const (
	// DefaultMinAngle is the smallest corner angle, in degrees, before a
	// triangle is a needle candidate.
	DefaultMinAngle = 2.0
	// DefaultMinAspect is the squared ratio of the short edge to the other
	// two below which a small-angle triangle is a needle.
	DefaultMinAspect = 0.005
	// DefaultSwapAngle is the corner angle, in degrees, above which the
	// opposite edge is swapped.
	DefaultSwapAngle = 178.0
)

// TagNeedles finds needle triangles touching an intersection curve: a
// corner angle under minAngle whose opposite edge is short against the
// other two. When collapse is set the two ends of the short edge are moved
// together, to be welded by the next consolidation; otherwise the triangle
// is marked Invalid. It returns the number of needles found.
func TagNeedles(m *mesh.Mesh, minAngle, minAspect float64, collapse bool) int {
	n := 0
	for i := range m.Tris {
		t := &m.Tris[i]
		if !touchesCurve(m, t) {
			continue
		}
		c := m.Corners(t)
		ang := c.Angles()
		for k := 0; k < 3; k++ {
			a, b := (k+1)%3, (k+2)%3
			opp := c[a].Sub(c[b]).Length2()
			rest := c[k].Sub(c[a]).Length2() + c[k].Sub(c[b]).Length2()
			if ang[k] >= minAngle || !(opp/rest < minAspect) {
				continue
			}
			n++
			if collapse {
				moveTogether(m.Vert(t.V[a]), m.Vert(t.V[b]))
			} else {
				t.Invalid = true
			}
			break
		}
	}
	if n > 0 && collapse {
		m.Touch()
	}
	return n
}

func touchesCurve(m *mesh.Mesh, t *mesh.Triangle) bool {
	for _, v := range t.V {
		if m.Vert(v).Flag != mesh.Original {
			return true
		}
	}
	return false
}

// moveTogether puts both vertices at one point: a curve vertex stays put
// and pulls the other to it; otherwise both move to the midpoint.
func moveTogether(v0, v1 *mesh.Vertex) {
	c0, c1 := v0.Flag != mesh.Original, v1.Flag != mesh.Original
	switch {
	case c0 && !c1:
		v1.Pos = v0.Pos
	case c1 && !c0:
		v0.Pos = v1.Pos
	default:
		p := v0.Pos.Add(v1.Pos).MulScalar(0.5)
		v0.Pos, v1.Pos = p, p
	}
}

// SwapEdges flips the edge opposite any corner wider than maxAngle, when
// the neighbouring triangle across it can be found. Vertex triangle lists
// must be current; they are kept current, but the edge arena is cleared
// and must be rebuilt. It returns the number of swaps.
func SwapEdges(m *mesh.Mesh, maxAngle float64) int {
	n := 0
	for i := range m.Tris {
		t := &m.Tris[i]
		ang := m.Corners(t).Angles()
		for k := 0; k < 3; k++ {
			if ang[k] <= maxAngle {
				continue
			}
			if swap(m, mesh.TriID(i), k) {
				n++
			}
			break
		}
	}
	if n > 0 {
		m.Edges = nil
		for i := range m.Tris {
			m.Tris[i].E = [3]mesh.EdgeID{mesh.NoEdge, mesh.NoEdge, mesh.NoEdge}
		}
		m.Touch()
	}
	return n
}

// swap replaces the edge opposite corner k of triangle ti, and the
// triangle across it, with the other diagonal of their quad.
func swap(m *mesh.Mesh, ti mesh.TriID, k int) bool {
	t := m.Tri(ti)
	apex, a, b := t.V[k], t.V[(k+1)%3], t.V[(k+2)%3]

	oi, other := mesh.NoTri, mesh.NoVert
	for _, id := range m.Vert(a).Tris {
		if id == ti {
			continue
		}
		o := m.Tri(id)
		if !o.HasVert(b) || o.HasVert(apex) {
			continue
		}
		for _, v := range o.V {
			if v != a && v != b {
				other = v
			}
		}
		oi = id
		break
	}
	if oi == mesh.NoTri || other == mesh.NoVert {
		return false
	}
	// The new diagonal must not already exist.
	for _, id := range m.Vert(apex).Tris {
		if m.Tri(id).HasVert(other) {
			return false
		}
	}

	// The flat triangle's own normal is unreliable; judge by its neighbour.
	o := m.Tri(oi)
	ref := m.Corners(o).Normal()
	t0 := mesh.NewTriangle(apex, a, other, ref)
	t1 := mesh.NewTriangle(apex, other, b, ref)
	n0 := m.Corners(&t0).Normal()
	n1 := m.Corners(&t1).Normal()
	if n0.Dot(ref) <= 0 || n1.Dot(ref) <= 0 {
		return false
	}
	t.V, t.Norm = t0.V, n0
	o.V, o.Norm = t1.V, n1

	// a leaves o, b leaves t, apex joins o, other joins t.
	drop(m.Vert(a), oi)
	drop(m.Vert(b), ti)
	m.Vert(apex).Tris = append(m.Vert(apex).Tris, oi)
	m.Vert(other).Tris = append(m.Vert(other).Tris, ti)
	return true
}

func drop(v *mesh.Vertex, id mesh.TriID) {
	for i, t := range v.Tris {
		if t == id {
			v.Tris = append(v.Tris[:i], v.Tris[i+1:]...)
			return
		}
	}
}
