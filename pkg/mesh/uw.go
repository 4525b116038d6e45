package mesh

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// FromSoupUW is FromSoup with parametric coordinates: two floats (u, w) per
// corner, in corner order, kept as each vertex's UW.
func FromSoupUW(name string, pos, uw []float64) (*Mesh, error) {
	m, err := FromSoup(name, pos)
	if err != nil {
		return nil, err
	}
	if len(uw) != 2*len(m.Verts) {
		return nil, fmt.Errorf("%w: got %d uw values for %d corners", ErrBadSoup, len(uw), len(m.Verts))
	}
	for i := range m.Verts {
		m.Verts[i].UW = v3.Vec{X: uw[2*i], Y: uw[2*i+1]}
	}
	return m, nil
}

// AddVertexUW appends a vertex at p carrying the inactive coordinates uw.
func (m *Mesh) AddVertexUW(p, uw v3.Vec, f Flag) VertID {
	id := m.AddVertex(p, f)
	m.Verts[id].UW = uw
	return id
}

// InterpUW returns the inactive coordinates at p, a point on t, blended
// from t's corners.
func (m *Mesh) InterpUW(t *Triangle, p v3.Vec) v3.Vec {
	w := m.Corners(t).Barycentric(p)
	var uw v3.Vec
	for i, v := range t.V {
		uw = uw.Add(m.Vert(v).UW.MulScalar(w[i]))
	}
	return uw
}

// SwapUW exchanges the spatial and parametric positions of every vertex and
// recomputes the normals for the new active positions.
func (m *Mesh) SwapUW() {
	for i := range m.Verts {
		m.Verts[i].SwapUW()
	}
	m.updateNormals()
}
