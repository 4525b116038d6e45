package mesh

import (
	"github.com/deadsy/sdfx/sdf"
)

// Transform applies mat to every vertex position and recomputes the
// triangle normals. Cached trees are dropped.
func (m *Mesh) Transform(mat sdf.M44) {
	for i := range m.Verts {
		m.Verts[i].Pos = mat.MulPosition(m.Verts[i].Pos)
	}
	m.updateNormals()
}

// updateNormals recomputes every triangle and child normal after the
// vertices moved, and drops the cached trees.
func (m *Mesh) updateNormals() {
	for i := range m.Tris {
		m.UpdateNormal(&m.Tris[i])
		for j := range m.Tris[i].Children {
			m.UpdateNormal(&m.Tris[i].Children[j])
		}
	}
	m.Touch()
}
