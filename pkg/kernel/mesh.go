package kernel

import (
	"errors"
	"fmt"

	"github.com/chazu/lignin-mesh/pkg/mesh"
)

// ErrBadIndex is returned for an index list that is not whole triangles
// or that refers past the vertex list.
var ErrBadIndex = errors.New("kernel: bad triangle index")

// Mesh is an indexed triangle surface. Vertices has 3 floats per vertex
// (x,y,z); Indices has 3 entries per triangle, wound counter-clockwise seen
// from outside.
type Mesh struct {
	Vertices []float64 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Soup expands the indexed surface into flat per-triangle positions.
func (m *Mesh) Soup() ([]float64, error) {
	if len(m.Indices)%3 != 0 {
		return nil, fmt.Errorf("kernel: %d indices: %w", len(m.Indices), ErrBadIndex)
	}
	n := uint32(m.VertexCount())
	out := make([]float64, 0, 3*len(m.Indices))
	for _, i := range m.Indices {
		if i >= n {
			return nil, fmt.Errorf("kernel: index %d of %d vertices: %w", i, n, ErrBadIndex)
		}
		out = append(out, m.Vertices[3*i:3*i+3]...)
	}
	return out, nil
}

// Body converts the surface into an engine mesh. Shared vertices are not
// assumed; the engine welds coincident positions itself.
func (m *Mesh) Body() (*mesh.Mesh, error) {
	soup, err := m.Soup()
	if err != nil {
		return nil, err
	}
	return mesh.FromSoup(m.PartName, soup)
}

// FromBody returns the indexed surface of b's leaf triangles, sharing b's
// vertices. Unreferenced vertices are kept.
func FromBody(b *mesh.Mesh) *Mesh {
	out := &Mesh{
		Vertices: make([]float64, 0, 3*len(b.Verts)),
		Indices:  make([]uint32, 0, 3*len(b.Tris)),
		PartName: b.Name,
	}
	for _, v := range b.Verts {
		out.Vertices = append(out.Vertices, v.Pos.X, v.Pos.Y, v.Pos.Z)
	}
	b.Leaves(func(_ mesh.TriID, t *mesh.Triangle) {
		out.Indices = append(out.Indices, uint32(t.V[0]), uint32(t.V[1]), uint32(t.V[2]))
	})
	return out
}
