package mesh

// Merge concatenates the leaf triangles of several meshes into one new mesh.
// Triangle attributes are kept; vertices are copied, not shared.
func Merge(name string, meshes ...*Mesh) *Mesh {
	out := New(name)
	for _, m := range meshes {
		base := VertID(len(out.Verts))
		for _, v := range m.Verts {
			v.Tris = nil
			v.Edges = nil
			out.Verts = append(out.Verts, v)
		}
		m.Leaves(func(_ TriID, t *Triangle) {
			c := *t
			for i := range c.V {
				c.V[i] += base
			}
			c.Segs = nil
			c.Children = nil
			c.Inside = append([]bool(nil), t.Inside...)
			c.On = append([]Contact(nil), t.On...)
			c.E = [3]EdgeID{NoEdge, NoEdge, NoEdge}
			out.Tris = append(out.Tris, c)
		})
	}
	return out
}
