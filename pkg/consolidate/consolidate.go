// Package consolidate welds a flattened mesh: it merges vertices that
// coincide within tolerance, drops triangles that collapse as a result,
// removes triangles with vanishing edges, and rebuilds the edge arena.
package consolidate

import (
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/samber/lo"
)

const (
	// DefaultTol is the squared distance under which two vertices merge.
	DefaultTol = 1e-12
	// DefaultMinEdge is the edge length below which a triangle is dropped.
	DefaultMinEdge = 1e-6
)

// Stats counts what a consolidation changed.
type Stats struct {
	Merged      int // vertices folded into a master
	Collapsed   int // triangles dropped for repeated corners
	ShortEdges  int // triangles dropped for an edge below the minimum
	Orphans     int // vertices dropped as unreferenced
	Edges       int // edges in the rebuilt arena
	NonManifold int // edges with more than two triangles
}

// BuildMergeMaps returns, for every vertex, the index of the vertex it
// merges into. Vertices are visited in order, so the first one found in a
// cluster becomes its master. tol is a squared distance.
func BuildMergeMaps(m *mesh.Mesh, tol float64) []mesh.VertID {
	master := make([]mesh.VertID, len(m.Verts))
	for i := range master {
		master[i] = mesh.NoVert
	}
	tree := m.VertTree(tol)
	for i := range m.Verts {
		if master[i] != mesh.NoVert {
			continue
		}
		master[i] = mesh.VertID(i)
		p := m.Verts[i].Pos
		tree.Near(p, func(j int) {
			if j <= i || master[j] != mesh.NoVert {
				return
			}
			if m.Verts[j].Pos.Sub(p).Length2() < tol {
				master[j] = mesh.VertID(i)
			}
		})
	}
	return master
}

// DeleteDuplicateVertices points every triangle corner at its master,
// drops triangles that end up with a repeated corner, and compacts the
// vertex arena to the vertices still referenced. It returns the number of
// merged vertices and collapsed triangles.
func DeleteDuplicateVertices(m *mesh.Mesh, master []mesh.VertID) (merged, collapsed int) {
	for i, to := range master {
		if to == mesh.VertID(i) {
			continue
		}
		merged++
		from, dst := m.Vert(mesh.VertID(i)), m.Vert(to)
		dst.Flag = strongest(dst.Flag, from.Flag)
	}
	for i := range m.Tris {
		t := &m.Tris[i]
		for k, v := range t.V {
			t.V[k] = master[v]
		}
	}
	before := len(m.Tris)
	m.Tris = lo.Filter(m.Tris, func(t mesh.Triangle, _ int) bool {
		return !t.Degenerate()
	})
	collapsed = before - len(m.Tris)
	compact(m)
	return merged, collapsed
}

// strongest prefers on-curve over near-curve over original.
func strongest(a, b mesh.Flag) mesh.Flag {
	rank := func(f mesh.Flag) int {
		switch f {
		case mesh.OnCurve:
			return 2
		case mesh.NearCurve:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// compact drops unreferenced vertices, renumbers the rest in order, and
// rebuilds the vertex triangle lists. It returns the number dropped.
func compact(m *mesh.Mesh) int {
	used := make([]bool, len(m.Verts))
	for i := range m.Tris {
		for _, v := range m.Tris[i].V {
			used[v] = true
		}
	}
	remap := make([]mesh.VertID, len(m.Verts))
	verts := make([]mesh.Vertex, 0, len(m.Verts))
	for i, v := range m.Verts {
		if !used[i] {
			remap[i] = mesh.NoVert
			continue
		}
		remap[i] = mesh.VertID(len(verts))
		v.Tris = nil
		v.Edges = nil
		verts = append(verts, v)
	}
	dropped := len(m.Verts) - len(verts)
	m.Verts = verts
	for i := range m.Tris {
		t := &m.Tris[i]
		for k, v := range t.V {
			t.V[k] = remap[v]
		}
		t.E = [3]mesh.EdgeID{mesh.NoEdge, mesh.NoEdge, mesh.NoEdge}
	}
	m.Edges = nil
	m.BuildVertexTris()
	m.Touch()
	return dropped
}

// RemoveDegenerate drops triangles with an edge shorter than minEdge and
// returns how many were dropped. Vertices are left in place.
func RemoveDegenerate(m *mesh.Mesh, minEdge float64) int {
	min2 := minEdge * minEdge
	before := len(m.Tris)
	m.Tris = lo.Reject(m.Tris, func(t mesh.Triangle, _ int) bool {
		c := m.Corners(&t)
		for k := 0; k < 3; k++ {
			if c[k].Sub(c[(k+1)%3]).Length2() < min2 {
				return true
			}
		}
		return false
	})
	if len(m.Tris) != before {
		m.Touch()
	}
	return before - len(m.Tris)
}

// BuildEdgeMaps rebuilds the edge arena from the triangles: one edge per
// unordered vertex pair, each with up to two triangles and a count of any
// more. It returns the number of non-manifold edges.
func BuildEdgeMaps(m *mesh.Mesh) int {
	m.Edges = m.Edges[:0]
	for i := range m.Verts {
		m.Verts[i].Edges = m.Verts[i].Edges[:0]
	}
	find := func(a, b mesh.VertID) mesh.EdgeID {
		for _, e := range m.Vert(a).Edges {
			if m.Edges[e].Has(a, b) {
				return e
			}
		}
		id := mesh.EdgeID(len(m.Edges))
		m.Edges = append(m.Edges, mesh.Edge{
			V:    [2]mesh.VertID{a, b},
			Tris: [2]mesh.TriID{mesh.NoTri, mesh.NoTri},
		})
		m.Vert(a).Edges = append(m.Vert(a).Edges, id)
		m.Vert(b).Edges = append(m.Vert(b).Edges, id)
		return id
	}
	bad := 0
	for i := range m.Tris {
		t := &m.Tris[i]
		for k := 0; k < 3; k++ {
			id := find(t.V[k], t.V[(k+1)%3])
			t.E[k] = id
			e := &m.Edges[id]
			switch {
			case e.Tris[0] == mesh.NoTri:
				e.Tris[0] = mesh.TriID(i)
			case e.Tris[1] == mesh.NoTri:
				e.Tris[1] = mesh.TriID(i)
			default:
				if e.Extra == 0 {
					bad++
				}
				e.Extra++
			}
		}
	}
	return bad
}

// Run merges within the squared distance tol, drops collapsed and
// short-edged triangles, compacts the vertices and rebuilds the edges. A
// second Run on its own output changes nothing.
func Run(m *mesh.Mesh, tol, minEdge float64) Stats {
	var st Stats
	m.Flatten(nil)
	n := len(m.Verts)
	st.Merged, st.Collapsed = DeleteDuplicateVertices(m, BuildMergeMaps(m, tol))
	st.Orphans = n - st.Merged - len(m.Verts)
	if st.ShortEdges = RemoveDegenerate(m, minEdge); st.ShortEdges > 0 {
		st.Orphans += compact(m)
	}
	st.NonManifold = BuildEdgeMaps(m)
	st.Edges = len(m.Edges)
	return st
}
