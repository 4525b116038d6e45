// Package mesh holds the per-body triangle mesh the engine mutates in place:
// flat vertex, triangle and edge arenas addressed by typed indices, plus the
// lazily built octrees that accelerate intersection, ray casting and vertex
// merging.
package mesh

import (
	"errors"
	"fmt"

	"github.com/chazu/lignin-mesh/pkg/geom"
	"github.com/chazu/lignin-mesh/pkg/octree"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrBadSoup is returned when a position array is not a whole number of
// triangles.
var ErrBadSoup = errors.New("mesh: soup length is not a multiple of 9")

// VertID indexes Mesh.Verts.
type VertID int

// TriID indexes Mesh.Tris.
type TriID int

// EdgeID indexes Mesh.Edges.
type EdgeID int

// Sentinels for unset references.
const (
	NoVert VertID = -1
	NoTri  TriID  = -1
	NoEdge EdgeID = -1
)

// Flag records how a vertex came to exist relative to intersection curves.
type Flag uint8

const (
	// Original vertices come from the input soup.
	Original Flag = iota
	// OnCurve vertices were created by an intersection computation.
	OnCurve
	// NearCurve vertices belong to a triangle touching an intersection curve.
	NearCurve
)

func (f Flag) String() string {
	switch f {
	case Original:
		return "original"
	case OnCurve:
		return "on-curve"
	case NearCurve:
		return "near-curve"
	default:
		return fmt.Sprintf("Flag(%d)", uint8(f))
	}
}

// Vertex is a mesh node. Pos is the active position; UW holds the inactive
// one (parametric surface coordinates while Pos is spatial, or the reverse
// after SwapUW).
type Vertex struct {
	Pos   v3.Vec
	UW    v3.Vec
	Flag  Flag
	Tris  []TriID
	Edges []EdgeID

	uwActive bool
}

// SwapUW exchanges the spatial and parametric positions.
func (v *Vertex) SwapUW() {
	v.Pos, v.UW = v.UW, v.Pos
	v.uwActive = !v.uwActive
}

// UWActive reports whether Pos currently holds parametric coordinates.
func (v *Vertex) UWActive() bool {
	return v.uwActive
}

// Edge joins two vertices and records up to two adjacent triangles. Extra
// counts additional triangles on a non-manifold edge.
type Edge struct {
	V     [2]VertID
	Tris  [2]TriID
	Extra int
}

// Has reports whether the edge joins a and b in either order.
func (e *Edge) Has(a, b VertID) bool {
	return (e.V[0] == a && e.V[1] == b) || (e.V[0] == b && e.V[1] == a)
}

// Segment is an intersection-curve piece recorded on a triangle.
type Segment struct {
	V [2]VertID
}

// Contact is how a leaf lies against another mesh's surface.
type Contact int8

const (
	// Off means the leaf is not on the surface.
	Off Contact = iota
	// Same means the leaf lies on the surface and faces the same way.
	Same
	// Opposite means the leaf lies on the surface and faces the other way.
	Opposite
)

// Triangle is a mesh face. When Children is non-empty the children replace
// the triangle for every geometric query.
type Triangle struct {
	V        [3]VertID
	Norm     v3.Vec
	Interior bool
	Invalid  bool
	Owner    int
	Density  float64
	Inside   []bool
	On       []Contact
	Segs     []Segment
	Children []Triangle
	E        [3]EdgeID
}

// NewTriangle returns a triangle with unset edges and no owner.
func NewTriangle(a, b, c VertID, n v3.Vec) Triangle {
	return Triangle{
		V:     [3]VertID{a, b, c},
		Norm:  n,
		Owner: -1,
		E:     [3]EdgeID{NoEdge, NoEdge, NoEdge},
	}
}

// HasVert reports whether v is a corner.
func (t *Triangle) HasVert(v VertID) bool {
	return t.V[0] == v || t.V[1] == v || t.V[2] == v
}

// Degenerate reports whether two corners share a vertex.
func (t *Triangle) Degenerate() bool {
	return t.V[0] == t.V[1] || t.V[1] == t.V[2] || t.V[0] == t.V[2]
}

// Mesh owns the geometry of one body.
type Mesh struct {
	Name     string
	Density  float64
	Priority int
	Thin     bool // never acts as a container in parity tests
	Negative bool // subtracted body

	Verts []Vertex
	Tris  []Triangle
	Edges []Edge

	triTree  *octree.TriTree
	vertTree *octree.VertTree
}

// New returns an empty mesh.
func New(name string) *Mesh {
	return &Mesh{Name: name}
}

// FromSoup builds a mesh from flat positions, nine floats per triangle.
// Every triangle gets its own three vertices; merging is the consolidator's
// job.
func FromSoup(name string, pos []float64) (*Mesh, error) {
	if len(pos)%9 != 0 {
		return nil, fmt.Errorf("%w: got %d values", ErrBadSoup, len(pos))
	}
	m := New(name)
	m.Verts = make([]Vertex, 0, len(pos)/3)
	m.Tris = make([]Triangle, 0, len(pos)/9)
	for i := 0; i < len(pos); i += 9 {
		a := m.AddVertex(v3.Vec{X: pos[i], Y: pos[i+1], Z: pos[i+2]}, Original)
		b := m.AddVertex(v3.Vec{X: pos[i+3], Y: pos[i+4], Z: pos[i+5]}, Original)
		c := m.AddVertex(v3.Vec{X: pos[i+6], Y: pos[i+7], Z: pos[i+8]}, Original)
		m.AddTriangle(a, b, c)
	}
	return m, nil
}

// FromTris builds a mesh from a list of triangles.
func FromTris(name string, tris []geom.Tri) *Mesh {
	m := New(name)
	for _, t := range tris {
		a := m.AddVertex(t[0], Original)
		b := m.AddVertex(t[1], Original)
		c := m.AddVertex(t[2], Original)
		m.AddTriangle(a, b, c)
	}
	return m
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(p v3.Vec, f Flag) VertID {
	m.Verts = append(m.Verts, Vertex{Pos: p, Flag: f})
	return VertID(len(m.Verts) - 1)
}

// AddTriangle appends a triangle over existing vertices, computing its normal.
func (m *Mesh) AddTriangle(a, b, c VertID) TriID {
	n := geom.Tri{m.Vert(a).Pos, m.Vert(b).Pos, m.Vert(c).Pos}.Normal()
	m.Tris = append(m.Tris, NewTriangle(a, b, c, n))
	return TriID(len(m.Tris) - 1)
}

// Vert returns the vertex at id. An id outside the arena is a programming
// error and panics.
func (m *Mesh) Vert(id VertID) *Vertex {
	if id < 0 || int(id) >= len(m.Verts) {
		panic(fmt.Sprintf("mesh %q: vertex %d out of range [0,%d)", m.Name, id, len(m.Verts)))
	}
	return &m.Verts[id]
}

// Tri returns the triangle at id. An id outside the arena panics.
func (m *Mesh) Tri(id TriID) *Triangle {
	if id < 0 || int(id) >= len(m.Tris) {
		panic(fmt.Sprintf("mesh %q: triangle %d out of range [0,%d)", m.Name, id, len(m.Tris)))
	}
	return &m.Tris[id]
}

// Corners returns the positions of t's corners.
func (m *Mesh) Corners(t *Triangle) geom.Tri {
	return geom.Tri{m.Vert(t.V[0]).Pos, m.Vert(t.V[1]).Pos, m.Vert(t.V[2]).Pos}
}

// UpdateNormal recomputes t's normal from its corners.
func (m *Mesh) UpdateNormal(t *Triangle) {
	t.Norm = m.Corners(t).Normal()
}

// Box returns the bounding box of every vertex referenced by a triangle.
func (m *Mesh) Box() sdf.Box3 {
	first := true
	var b sdf.Box3
	for i := range m.Tris {
		tb := m.Corners(&m.Tris[i]).Box()
		if first {
			b = tb
			first = false
			continue
		}
		b = geom.BoxUnion(b, tb)
	}
	return b
}

// Touch drops the cached octrees. Call it after mutating positions or the
// triangle list.
func (m *Mesh) Touch() {
	m.triTree = nil
	m.vertTree = nil
}

// TriTree returns the triangle octree, building it on first use.
func (m *Mesh) TriTree() *octree.TriTree {
	if m.triTree == nil {
		items := make([]octree.Item, len(m.Tris))
		for i := range m.Tris {
			c := m.Corners(&m.Tris[i])
			items[i] = octree.Item{ID: i, Box: c.Box(), Anchor: c[0]}
		}
		m.triTree = octree.NewTriTree(items)
	}
	return m.triTree
}

// VertTree returns the vertex octree for a squared-distance tolerance,
// building it on first use or when the tolerance changes.
func (m *Mesh) VertTree(tol float64) *octree.VertTree {
	pad := octree.MinSizeFor(tol)
	if m.vertTree == nil || m.vertTree.MinSize() != pad {
		pts := make([]octree.Point, len(m.Verts))
		for i := range m.Verts {
			pts[i] = octree.Point{ID: i, P: m.Verts[i].Pos}
		}
		m.vertTree = octree.NewVertTree(pts, pad)
	}
	return m.vertTree
}

// Leaves calls fn for every leaf triangle: the children of split triangles
// and every unsplit triangle. parent is the index of the top-level triangle.
func (m *Mesh) Leaves(fn func(parent TriID, t *Triangle)) {
	for i := range m.Tris {
		t := &m.Tris[i]
		if len(t.Children) == 0 {
			fn(TriID(i), t)
			continue
		}
		for j := range t.Children {
			fn(TriID(i), &t.Children[j])
		}
	}
}

// Area returns the total leaf area.
func (m *Mesh) Area() float64 {
	a := 0.0
	m.Leaves(func(_ TriID, t *Triangle) {
		a += m.Corners(t).Area()
	})
	return a
}

// Volume returns the signed volume enclosed by the leaf triangles,
// positive for a closed mesh with outward normals.
func (m *Mesh) Volume() float64 {
	vol := 0.0
	m.Leaves(func(_ TriID, t *Triangle) {
		c := m.Corners(t)
		vol += c[0].Dot(c[1].Cross(c[2]))
	})
	return vol / 6
}

// LeafCount returns the number of leaf triangles.
func (m *Mesh) LeafCount() int {
	n := 0
	m.Leaves(func(TriID, *Triangle) { n++ })
	return n
}

// Flatten replaces the triangle list with its leaves, keeping only those
// for which keep returns true (nil keeps all). Intersection segments and
// children are discarded. It returns the number of leaves dropped.
func (m *Mesh) Flatten(keep func(t *Triangle) bool) int {
	out := make([]Triangle, 0, len(m.Tris))
	dropped := 0
	m.Leaves(func(_ TriID, t *Triangle) {
		if keep != nil && !keep(t) {
			dropped++
			return
		}
		c := *t
		c.Segs = nil
		c.Children = nil
		c.E = [3]EdgeID{NoEdge, NoEdge, NoEdge}
		out = append(out, c)
	})
	m.Tris = out
	m.Edges = nil
	m.Touch()
	return dropped
}

// BuildVertexTris rebuilds every vertex's triangle list.
func (m *Mesh) BuildVertexTris() {
	for i := range m.Verts {
		m.Verts[i].Tris = m.Verts[i].Tris[:0]
	}
	for i := range m.Tris {
		for _, v := range m.Tris[i].V {
			vx := m.Vert(v)
			vx.Tris = append(vx.Tris, TriID(i))
		}
	}
}

// FlipNormals reverses the winding of every triangle, children included.
func (m *Mesh) FlipNormals() {
	for i := range m.Tris {
		flip(&m.Tris[i])
		for j := range m.Tris[i].Children {
			flip(&m.Tris[i].Children[j])
		}
	}
}

func flip(t *Triangle) {
	t.V[1], t.V[2] = t.V[2], t.V[1]
	t.Norm = t.Norm.Neg()
}

// Clone returns a deep copy of the mesh without cached trees.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Name:     m.Name,
		Density:  m.Density,
		Priority: m.Priority,
		Thin:     m.Thin,
		Negative: m.Negative,
		Verts:    make([]Vertex, len(m.Verts)),
		Tris:     make([]Triangle, len(m.Tris)),
	}
	for i, v := range m.Verts {
		v.Tris = append([]TriID(nil), v.Tris...)
		v.Edges = append([]EdgeID(nil), v.Edges...)
		c.Verts[i] = v
	}
	for i, t := range m.Tris {
		c.Tris[i] = cloneTri(t)
	}
	c.Edges = append([]Edge(nil), m.Edges...)
	return c
}

func cloneTri(t Triangle) Triangle {
	t.Inside = append([]bool(nil), t.Inside...)
	t.On = append([]Contact(nil), t.On...)
	t.Segs = append([]Segment(nil), t.Segs...)
	if t.Children != nil {
		kids := make([]Triangle, len(t.Children))
		for i, k := range t.Children {
			kids[i] = cloneTri(k)
		}
		t.Children = kids
	}
	return t
}

// Soup returns the flat positions of every leaf triangle.
func (m *Mesh) Soup() []float64 {
	out := make([]float64, 0, 9*len(m.Tris))
	m.Leaves(func(_ TriID, t *Triangle) {
		for _, v := range t.V {
			p := m.Vert(v).Pos
			out = append(out, p.X, p.Y, p.Z)
		}
	})
	return out
}
