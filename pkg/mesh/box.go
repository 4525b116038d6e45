package mesh

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// boxFaces lists the twelve outward-wound triangles of a box over corners
// indexed by bit: 1 = max X, 2 = max Y, 4 = max Z.
var boxFaces = [12][3]int{
	{0, 4, 6}, {0, 6, 2}, // -X
	{1, 3, 7}, {1, 7, 5}, // +X
	{0, 1, 5}, {0, 5, 4}, // -Y
	{2, 6, 7}, {2, 7, 3}, // +Y
	{0, 2, 3}, {0, 3, 1}, // -Z
	{4, 5, 7}, {4, 7, 6}, // +Z
}

// Box returns a closed, consolidated twelve-triangle box spanning lo..hi.
func Box(name string, lo, hi v3.Vec) *Mesh {
	m := New(name)
	for i := 0; i < 8; i++ {
		p := lo
		if i&1 != 0 {
			p.X = hi.X
		}
		if i&2 != 0 {
			p.Y = hi.Y
		}
		if i&4 != 0 {
			p.Z = hi.Z
		}
		m.AddVertex(p, Original)
	}
	for _, f := range boxFaces {
		m.AddTriangle(VertID(f[0]), VertID(f[1]), VertID(f[2]))
	}
	return m
}

// BoxSoup is Box with every triangle carrying its own vertices, as an
// external generator would emit it.
func BoxSoup(name string, lo, hi v3.Vec) *Mesh {
	b := Box(name, lo, hi)
	m, _ := FromSoup(name, b.Soup())
	return m
}
