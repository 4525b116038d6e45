// Package retri re-triangulates a mesh triangle along the intersection
// segments recorded on it. The triangle, its perimeter splits and its
// segments are flattened onto the plane that best conditions them, handed
// to a constrained Delaunay triangulator, and mapped back to 3D as child
// triangles of the original.
package retri

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chazu/lignin-mesh/pkg/cdt"
	"github.com/chazu/lignin-mesh/pkg/geom"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/golang/geo/r2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// DefaultTol is the distance under which points coincide or lie on an edge.
	DefaultTol = 1e-6
	// DefaultMaxCrossIter bounds the crossing-edge resolution loop.
	DefaultMaxCrossIter = 100
)

// ErrCrossings is returned when crossing constraint edges remain after the
// iteration bound.
var ErrCrossings = errors.New("retri: crossing edges not resolved")

// ErrTriangulation is returned when the triangulator output does not tile
// the triangle.
var ErrTriangulation = errors.New("retri: triangulation failed")

// Outcome is what Split did with a triangle.
type Outcome int

const (
	// Unsplit means no children were needed.
	Unsplit Outcome = iota
	// Split means children were attached.
	Split
	// Failed means the triangle was left without children after an error.
	Failed
)

// Stats counts the results of SplitAll.
type Stats struct {
	Split     int
	Unsplit   int
	Failed    int
	Children  int
	Rejected  int // output triangles dropped for bad indices or zero area
	Crossings int // edge splits made while resolving crossings
}

// Splitter re-triangulates triangles carrying intersection segments.
type Splitter struct {
	Triangulator cdt.Triangulator
	Tol          float64
	MaxCrossIter int

	// SVG, when set, is asked for a writer per triangle; a non-nil writer
	// receives a drawing of the planar problem and its triangulation.
	SVG func(id mesh.TriID) io.Writer

	stats Stats
}

// New returns a Splitter with default tolerances.
func New(t cdt.Triangulator) *Splitter {
	return &Splitter{Triangulator: t, Tol: DefaultTol, MaxCrossIter: DefaultMaxCrossIter}
}

// Stats returns the counters accumulated so far.
func (s *Splitter) Stats() Stats {
	return s.stats
}

// SplitAll splits every triangle of m that carries segments. Failures are
// counted, not returned: a failed triangle keeps no children.
func (s *Splitter) SplitAll(m *mesh.Mesh) Stats {
	before := s.stats
	for i := range m.Tris {
		if len(m.Tris[i].Segs) == 0 {
			continue
		}
		s.Split(m, mesh.TriID(i))
	}
	return Stats{
		Split:     s.stats.Split - before.Split,
		Unsplit:   s.stats.Unsplit - before.Unsplit,
		Failed:    s.stats.Failed - before.Failed,
		Children:  s.stats.Children - before.Children,
		Rejected:  s.stats.Rejected - before.Rejected,
		Crossings: s.stats.Crossings - before.Crossings,
	}
}

// node is a participating vertex of one triangle's planar problem.
type node struct {
	v mesh.VertID
	p v3.Vec
}

// edge is a constraint between two nodes.
type edge struct {
	a, b  int
	perim bool
}

// problem holds the planar straight-line graph for one triangle.
type problem struct {
	m     *mesh.Mesh
	tri   *mesh.Triangle
	tol   float64
	nodes []node
	edges []edge
	cross int
}

// Split re-triangulates triangle id of m and attaches the result as its
// children. The triangle's own corners and fields are not modified.
func (s *Splitter) Split(m *mesh.Mesh, id mesh.TriID) (Outcome, error) {
	out, err := s.split(m, id)
	switch out {
	case Split:
		s.stats.Split++
	case Unsplit:
		s.stats.Unsplit++
	case Failed:
		s.stats.Failed++
	}
	return out, err
}

func (s *Splitter) split(m *mesh.Mesh, id mesh.TriID) (Outcome, error) {
	tri := m.Tri(id)
	tri.Children = nil
	if len(tri.Segs) == 0 {
		return Unsplit, nil
	}
	corners := m.Corners(tri)
	if corners.Area() == 0 {
		return Unsplit, nil
	}

	pb := &problem{m: m, tri: tri, tol: s.Tol}
	for _, v := range tri.V {
		pb.nodes = append(pb.nodes, node{v: v, p: m.Vert(v).Pos})
	}
	pb.edges = []edge{{0, 1, true}, {1, 2, true}, {2, 0, true}}

	for _, seg := range dedupe(m, tri.Segs, s.Tol) {
		i0 := pb.addNode(seg.V[0])
		i1 := pb.addNode(seg.V[1])
		// A segment along a side only splits it; its endpoints already have.
		if sides(corners, pb.nodes[i0].p, s.Tol)&sides(corners, pb.nodes[i1].p, s.Tol) != 0 {
			continue
		}
		if i0 != i1 && !pb.hasEdge(i0, i1) {
			pb.edges = append(pb.edges, edge{a: i0, b: i1})
		}
	}

	err := pb.resolveCrossings(s.MaxCrossIter)
	s.stats.Crossings += pb.cross
	if err != nil {
		return Failed, fmt.Errorf("retri: triangle %d: %w", id, err)
	}
	if len(pb.nodes) < 4 || len(pb.edges) < 4 {
		return Unsplit, nil
	}

	k := flattenAxis(corners)
	pts := pb.project(k)
	segs := make([][2]int, len(pb.edges))
	hull := 0
	for i, e := range pb.edges {
		segs[i] = [2]int{e.a, e.b}
		if e.perim {
			hull++
		}
	}

	res, err := s.Triangulator.Triangulate(pts, segs)
	if s.SVG != nil {
		if w := s.SVG(id); w != nil {
			cdt.WriteSVG(w, res, segs)
		}
	}
	if err != nil {
		return Failed, fmt.Errorf("retri: triangle %d: %w", id, err)
	}

	// A triangulation of n points with h of them on the boundary has
	// 2n - h - 2 triangles.
	want := 2*len(pb.nodes) - hull - 2
	if len(res.Tris) < want {
		return Failed, fmt.Errorf("retri: triangle %d: %w: %d triangles, want %d",
			id, ErrTriangulation, len(res.Tris), want)
	}

	kids := s.children(pb, tri, res, k, corners)
	if len(kids) == 0 {
		return Failed, fmt.Errorf("retri: triangle %d: %w: no usable triangles", id, ErrTriangulation)
	}
	tri.Children = kids
	s.stats.Children += len(kids)
	return Split, nil
}

// children maps planar triangles back to 3D children of tri.
func (s *Splitter) children(pb *problem, tri *mesh.Triangle, res cdt.Result, k int, corners geom.Tri) []mesh.Triangle {
	m := pb.m
	lo, scale := normalization(pb.rawProject(k))
	steiner := map[int]mesh.VertID{}
	vertFor := func(i int) (mesh.VertID, bool) {
		if i < 0 || i >= len(res.Points) {
			return mesh.NoVert, false
		}
		if i < len(pb.nodes) {
			return pb.nodes[i].v, true
		}
		if v, ok := steiner[i]; ok {
			return v, true
		}
		q := res.Points[i].Mul(scale).Add(lo)
		p := geom.WithAxis(geom.WithAxis(v3.Vec{}, (k+1)%3, q.X), (k+2)%3, q.Y)
		t, ok := geom.RayPlane(p, geom.Unit(k), corners[0], tri.Norm)
		if !ok {
			return mesh.NoVert, false
		}
		q3 := p.Add(geom.Unit(k).MulScalar(t))
		v := m.AddVertexUW(q3, m.InterpUW(tri, q3), mesh.NearCurve)
		steiner[i] = v
		return v, true
	}

	var kids []mesh.Triangle
	for _, t := range res.Tris {
		var vs [3]mesh.VertID
		ok := true
		for j, i := range t {
			if vs[j], ok = vertFor(i); !ok {
				break
			}
		}
		if !ok {
			s.stats.Rejected++
			continue
		}
		c := geom.Tri{m.Vert(vs[0]).Pos, m.Vert(vs[1]).Pos, m.Vert(vs[2]).Pos}
		n := c.Normal()
		if n == (v3.Vec{}) {
			s.stats.Rejected++
			continue
		}
		if n.Dot(tri.Norm) < 0 {
			vs[1], vs[2] = vs[2], vs[1]
			n = n.Neg()
		}
		kid := mesh.NewTriangle(vs[0], vs[1], vs[2], n)
		kid.Owner = tri.Owner
		kid.Density = tri.Density
		kids = append(kids, kid)
	}
	return kids
}

// dedupe drops segments whose endpoints match an earlier segment's (in
// either order) within tol, snapping the kept endpoints to the midpoints.
func dedupe(m *mesh.Mesh, segs []mesh.Segment, tol float64) []mesh.Segment {
	out := make([]mesh.Segment, 0, len(segs))
	for _, s := range segs {
		p0, p1 := m.Vert(s.V[0]).Pos, m.Vert(s.V[1]).Pos
		dup := false
		for _, o := range out {
			a, b := m.Vert(o.V[0]), m.Vert(o.V[1])
			switch {
			case near(a.Pos, p0, tol) && near(b.Pos, p1, tol):
				a.Pos = mid(a.Pos, p0)
				b.Pos = mid(b.Pos, p1)
				dup = true
			case near(a.Pos, p1, tol) && near(b.Pos, p0, tol):
				a.Pos = mid(a.Pos, p1)
				b.Pos = mid(b.Pos, p0)
				dup = true
			}
			if dup {
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

// sides returns a bit per side of c that p lies within tol of.
func sides(c geom.Tri, p v3.Vec, tol float64) int {
	mask := 0
	for i := 0; i < 3; i++ {
		if d2, _ := geom.PointSegmentDist2(p, c[i], c[(i+1)%3]); d2 < tol*tol {
			mask |= 1 << i
		}
	}
	return mask
}

func near(a, b v3.Vec, tol float64) bool {
	return a.Sub(b).Length2() < tol*tol
}

func mid(a, b v3.Vec) v3.Vec {
	return a.Add(b).MulScalar(0.5)
}

// addNode returns the node for segment endpoint v: an existing node within
// tolerance, a new node splitting a perimeter edge it lies on, or a new
// interior node.
func (pb *problem) addNode(v mesh.VertID) int {
	p := pb.m.Vert(v).Pos
	if i := pb.findNode(p); i >= 0 {
		return i
	}
	for ei, e := range pb.edges {
		if !e.perim {
			continue
		}
		a, b := pb.nodes[e.a].p, pb.nodes[e.b].p
		d2, t := geom.PointSegmentDist2(p, a, b)
		if d2 >= pb.tol*pb.tol {
			continue
		}
		// Snap onto the edge so the flattened point stays collinear.
		p = a.Add(b.Sub(a).MulScalar(t))
		pb.m.Vert(v).Pos = p
		pb.nodes = append(pb.nodes, node{v: v, p: p})
		pb.splitEdge(ei, len(pb.nodes)-1)
		return len(pb.nodes) - 1
	}
	pb.nodes = append(pb.nodes, node{v: v, p: p})
	return len(pb.nodes) - 1
}

func (pb *problem) findNode(p v3.Vec) int {
	for i, n := range pb.nodes {
		if near(n.p, p, pb.tol) {
			return i
		}
	}
	return -1
}

func (pb *problem) hasEdge(a, b int) bool {
	for _, e := range pb.edges {
		if (e.a == a && e.b == b) || (e.a == b && e.b == a) {
			return true
		}
	}
	return false
}

// splitEdge replaces edge ei with two edges meeting at node n.
func (pb *problem) splitEdge(ei, n int) {
	e := pb.edges[ei]
	if n == e.a || n == e.b {
		return
	}
	pb.edges[ei] = edge{a: e.a, b: n, perim: e.perim}
	pb.edges = append(pb.edges, edge{a: n, b: e.b, perim: e.perim})
}

// newNode returns the node at p, creating a vertex if none is within
// tolerance.
func (pb *problem) newNode(p v3.Vec) int {
	if i := pb.findNode(p); i >= 0 {
		return i
	}
	v := pb.m.AddVertexUW(p, pb.m.InterpUW(pb.tri, p), mesh.OnCurve)
	pb.nodes = append(pb.nodes, node{v: v, p: p})
	return len(pb.nodes) - 1
}

// resolveCrossings splits pairs of non-adjacent edges that come within
// tolerance of each other, one split per pass, until none remain.
func (pb *problem) resolveCrossings(maxIter int) error {
	for iter := 0; iter < maxIter; iter++ {
		if !pb.splitOneCrossing() {
			return nil
		}
		pb.cross++
	}
	if pb.splitOneCrossing() {
		return ErrCrossings
	}
	return nil
}

func (pb *problem) splitOneCrossing() bool {
	for i := 0; i < len(pb.edges); i++ {
		for j := i + 1; j < len(pb.edges); j++ {
			ei, ej := pb.edges[i], pb.edges[j]
			if ei.perim && ej.perim {
				continue
			}
			if ei.a == ej.a || ei.a == ej.b || ei.b == ej.a || ei.b == ej.b {
				continue
			}
			pi0, pi1 := pb.nodes[ei.a].p, pb.nodes[ei.b].p
			pj0, pj1 := pb.nodes[ej.a].p, pb.nodes[ej.b].p
			r := geom.SegmentSegment(pi0, pi1, pj0, pj1)
			if r.Dist >= pb.tol {
				continue
			}
			atI := endNode(ei, r.P0, pi0, pi1, pb.tol)
			atJ := endNode(ej, r.P1, pj0, pj1, pb.tol)
			switch {
			case atI >= 0 && atJ >= 0:
				continue
			case atI >= 0:
				pb.splitEdge(j, atI)
			case atJ >= 0:
				pb.splitEdge(i, atJ)
			default:
				p := mid(r.P0, r.P1)
				if ei.perim {
					p = r.P0
				} else if ej.perim {
					p = r.P1
				}
				n := pb.newNode(p)
				pb.splitEdge(i, n)
				pb.splitEdge(j, n)
			}
			return true
		}
	}
	return false
}

// endNode returns the endpoint node of e that q lies within tol of, or -1.
func endNode(e edge, q, p0, p1 v3.Vec, tol float64) int {
	if near(q, p0, tol) {
		return e.a
	}
	if near(q, p1, tol) {
		return e.b
	}
	return -1
}

// flattenAxis returns the axis to drop: the one whose removal keeps the
// corners farthest apart.
func flattenAxis(c geom.Tri) int {
	best, bestD := 2, -1.0
	for k := 0; k < 3; k++ {
		d := 0.0
		for i := 0; i < 3; i++ {
			a := geom.WithAxis(c[i], k, 0)
			b := geom.WithAxis(c[(i+1)%3], k, 0)
			d += a.Sub(b).Length()
		}
		if d > bestD {
			best, bestD = k, d
		}
	}
	return best
}

func (pb *problem) rawProject(k int) []r2.Point {
	pts := make([]r2.Point, len(pb.nodes))
	for i, n := range pb.nodes {
		pts[i] = r2.Point{X: geom.Axis(n.p, (k+1)%3), Y: geom.Axis(n.p, (k+2)%3)}
	}
	return pts
}

// normalization returns the offset and scale mapping the bounding box of
// pts onto [-1,1] along its longer side.
func normalization(pts []r2.Point) (r2.Point, float64) {
	rect := r2.RectFromPoints(pts...)
	sz := rect.Size()
	scale := math.Max(sz.X, sz.Y) / 2
	if scale == 0 {
		scale = 1
	}
	return rect.Center(), scale
}

// project flattens the nodes onto the plane without axis k, centred and
// scaled by their bounding box.
func (pb *problem) project(k int) []r2.Point {
	pts := pb.rawProject(k)
	c, scale := normalization(pts)
	for i := range pts {
		pts[i] = pts[i].Sub(c).Mul(1 / scale)
	}
	return pts
}
