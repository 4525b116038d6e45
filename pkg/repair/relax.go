package repair

import (
	"math"

	"github.com/chazu/lignin-mesh/pkg/geom"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// DefaultRelaxPasses is the number of relaxation passes.
	DefaultRelaxPasses = 10
	// DefaultRelaxFract is the fraction of the averaged offset moved per pass.
	DefaultRelaxFract = 0.001
)

// SurfaceProjector snaps a point onto an exact body surface.
type SurfaceProjector interface {
	Project(p v3.Vec) (v3.Vec, bool)
}

// Curve is one recorded piece of an intersection curve.
type Curve [2]v3.Vec

// Relaxer smooths curve vertices and pins them back to where they belong:
// on-curve vertices to the nearest curve piece, near-curve vertices to the
// saved surface.
type Relaxer struct {
	Passes    int
	Fract     float64
	Saved     *mesh.Mesh
	Curves    []Curve
	Projector SurfaceProjector
	// MaxSnap bounds how far a vertex may move onto the saved surface.
	MaxSnap float64
}

// Relax runs the passes over m and returns the number of vertex moves.
// Vertex triangle lists must be current.
func (r *Relaxer) Relax(m *mesh.Mesh) int {
	passes := r.Passes
	if passes <= 0 {
		passes = DefaultRelaxPasses
	}
	fract := r.Fract
	if fract <= 0 {
		fract = DefaultRelaxFract
	}
	maxSnap := r.MaxSnap
	if maxSnap <= 0 {
		maxSnap = math.Inf(1)
	}
	moves := 0
	for pass := 0; pass < passes; pass++ {
		for i := range m.Verts {
			v := &m.Verts[i]
			if v.Flag == mesh.Original || len(v.Tris) == 0 {
				continue
			}
			off, n := r.neighbourhood(m, mesh.VertID(i))
			p := v.Pos.Add(off.MulScalar(fract))
			switch v.Flag {
			case mesh.OnCurve:
				if q, ok := r.nearestCurve(p); ok {
					p = q
				}
			case mesh.NearCurve:
				if r.Saved != nil && n != (v3.Vec{}) {
					if q, ok := r.Saved.Project(p, n, maxSnap); ok {
						p = q
					}
				}
				if r.Projector != nil {
					if q, ok := r.Projector.Project(p); ok {
						p = q
					}
				}
			}
			if p != v.Pos {
				v.Pos = p
				moves++
			}
		}
	}
	if moves > 0 {
		for i := range m.Tris {
			m.UpdateNormal(&m.Tris[i])
		}
		m.Touch()
	}
	return moves
}

// neighbourhood returns the averaged offset from vertex id to its
// neighbours and the normalized average of its triangles' normals.
func (r *Relaxer) neighbourhood(m *mesh.Mesh, id mesh.VertID) (off, n v3.Vec) {
	v := m.Vert(id)
	p := v.Pos
	count := 0
	for _, ti := range v.Tris {
		t := m.Tri(ti)
		n = n.Add(t.Norm)
		for _, w := range t.V {
			if w == id {
				continue
			}
			off = off.Add(m.Vert(w).Pos.Sub(p))
			count++
		}
	}
	if count > 0 {
		off = off.DivScalar(float64(count))
	}
	if l := n.Length(); l > 0 {
		n = n.DivScalar(l)
	}
	return off, n
}

func (r *Relaxer) nearestCurve(p v3.Vec) (v3.Vec, bool) {
	best, found := math.Inf(1), false
	var q v3.Vec
	for _, c := range r.Curves {
		d2, t := geom.PointSegmentDist2(p, c[0], c[1])
		if d2 < best {
			best, found = d2, true
			q = c[0].Add(c[1].Sub(c[0]).MulScalar(t))
		}
	}
	return q, found
}

// MarkNearCurve flags the original vertices of every triangle that touches
// an on-curve vertex as near-curve, and returns how many changed.
func MarkNearCurve(m *mesh.Mesh) int {
	n := 0
	for i := range m.Tris {
		t := &m.Tris[i]
		on := false
		for _, v := range t.V {
			if m.Vert(v).Flag == mesh.OnCurve {
				on = true
			}
		}
		if !on {
			continue
		}
		for _, v := range t.V {
			if vx := m.Vert(v); vx.Flag == mesh.Original {
				vx.Flag = mesh.NearCurve
				n++
			}
		}
	}
	return n
}
