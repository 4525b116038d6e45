// Package intersect computes the intersection curves between pairs of
// meshes and records them, as segments, on the triangles of both meshes.
package intersect

import (
	"github.com/chazu/lignin-mesh/pkg/geom"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/chazu/lignin-mesh/pkg/octree"
)

// MinSegment is the shortest intersection segment that is recorded.
const MinSegment = 1e-6

// Result counts what one intersection pass found.
type Result struct {
	Candidates int // triangle pairs with overlapping boxes
	Coplanar   int // coplanar overlapping pairs
	Degenerate int // segments shorter than MinSegment
	Segments   int // segments recorded on both meshes
	Shared     int // coplanar overlap edges recorded on one mesh
}

// Add accumulates o into r.
func (r *Result) Add(o Result) {
	r.Candidates += o.Candidates
	r.Coplanar += o.Coplanar
	r.Degenerate += o.Degenerate
	r.Segments += o.Segments
	r.Shared += o.Shared
}

// Meshes intersects a against b. Candidate pairs come from a nested descent
// of a's triangle octree against b's, always in that direction, so each
// triangle pair is tested once. Every kept segment is appended to both
// triangles with freshly created on-curve vertices in each mesh.
//
// A coplanar pair yields no curve. Instead each triangle receives the edges
// of the other clipped to it, so the shared region is split the same way on
// both meshes and either copy can be kept.
func Meshes(a, b *mesh.Mesh) Result {
	var r Result
	if a == b {
		return r
	}
	octree.Pairs(a.TriTree(), b.TriTree(), func(i, j int) {
		r.Candidates++
		ta := a.Tri(mesh.TriID(i))
		tb := b.Tri(mesh.TriID(j))
		s, ok := geom.TriTri(a.Corners(ta), b.Corners(tb), geom.DefaultPlaneEps)
		if !ok {
			return
		}
		if s.Coplanar {
			r.Coplanar++
			r.Shared += clipEdges(a, ta, b.Corners(tb))
			r.Shared += clipEdges(b, tb, a.Corners(ta))
			return
		}
		if s.Length() < MinSegment {
			r.Degenerate++
			return
		}
		addSegment(a, ta, s)
		addSegment(b, tb, s)
		r.Segments++
	})
	return r
}

func addSegment(m *mesh.Mesh, t *mesh.Triangle, s geom.Isect) {
	v0 := m.AddVertexUW(s.P0, m.InterpUW(t, s.P0), mesh.OnCurve)
	v1 := m.AddVertexUW(s.P1, m.InterpUW(t, s.P1), mesh.OnCurve)
	t.Segs = append(t.Segs, mesh.Segment{V: [2]mesh.VertID{v0, v1}})
}

// clipEdges records the edges of other, clipped to t, as segments on t.
func clipEdges(m *mesh.Mesh, t *mesh.Triangle, other geom.Tri) int {
	corners := m.Corners(t)
	n := 0
	for i := 0; i < 3; i++ {
		q0, q1, ok := geom.ClipSegment(other[i], other[(i+1)%3], corners, geom.DefaultPlaneEps)
		if !ok || q1.Sub(q0).Length() < MinSegment {
			continue
		}
		addSegment(m, t, geom.Isect{P0: q0, P1: q1})
		n++
	}
	return n
}

// All intersects every unordered pair of meshes once, in list order.
func All(meshes []*mesh.Mesh) Result {
	var r Result
	for i := 0; i < len(meshes); i++ {
		for j := i + 1; j < len(meshes); j++ {
			r.Add(Meshes(meshes[i], meshes[j]))
		}
	}
	return r
}

// Clear drops every recorded segment. The on-curve vertices they created
// stay in the arena until the next consolidation.
func Clear(m *mesh.Mesh) {
	for i := range m.Tris {
		m.Tris[i].Segs = nil
	}
}
