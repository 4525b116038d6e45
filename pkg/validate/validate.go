// Package validate checks that a welded mesh is a closed 2-manifold: every
// edge shared by exactly two triangles, traversed in opposite directions.
package validate

import (
	"fmt"

	"github.com/chazu/lignin-mesh/pkg/consolidate"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/samber/lo"
)

// Severity indicates whether an issue breaks watertightness or is advisory.
type Severity int

const (
	SeverityError   Severity = iota // mesh is not watertight
	SeverityWarning                 // quality problem only
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Issue codes.
const (
	CodeOpenEdge        = "OPEN_EDGE"
	CodeNonManifoldEdge = "NON_MANIFOLD_EDGE"
	CodeWinding         = "INCONSISTENT_WINDING"
	CodeDegenerate      = "DEGENERATE_TRIANGLE"
	CodeNeedle          = "NEEDLE_TRIANGLE"
)

// Issue is a single validation finding.
type Issue struct {
	Code     string
	Message  string
	Tri      mesh.TriID // first triangle involved, or NoTri
	Edge     mesh.EdgeID
	Severity Severity
}

func (i Issue) Error() string {
	if i.Tri == mesh.NoTri {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s (triangle %d)", i.Severity, i.Code, i.Message, i.Tri)
}

// Report summarizes a mesh check.
type Report struct {
	Tris          int
	Edges         int
	Boundary      int // edges with one triangle
	NonManifold   int // edges with more than two triangles
	Flipped       int // edges traversed the same way by both triangles
	NonConforming int // triangles with at least one boundary edge
	BadTris       int // triangles touching any error edge, or degenerate
	Issues        []Issue
}

// Watertight reports whether the mesh is a closed, consistently wound
// 2-manifold.
func (r Report) Watertight() bool {
	return r.Tris > 0 && r.Boundary == 0 && r.NonManifold == 0 && r.Flipped == 0
}

// Errors returns the issues of error severity.
func (r Report) Errors() []Issue {
	return lo.Filter(r.Issues, func(i Issue, _ int) bool {
		return i.Severity == SeverityError
	})
}

// Check rebuilds the edge arena of m from its triangles and reports every
// open, non-manifold or inconsistently wound edge and every degenerate or
// needle triangle. Vertex positions and triangles are not changed.
func Check(m *mesh.Mesh) Report {
	consolidate.BuildEdgeMaps(m)
	r := Report{Tris: len(m.Tris), Edges: len(m.Edges)}

	bad := make([]bool, len(m.Tris))
	open := make([]bool, len(m.Tris))
	for id, e := range m.Edges {
		eid := mesh.EdgeID(id)
		switch {
		case e.Tris[1] == mesh.NoTri:
			r.Boundary++
			open[e.Tris[0]] = true
			bad[e.Tris[0]] = true
			r.Issues = append(r.Issues, Issue{
				Code:    CodeOpenEdge,
				Message: fmt.Sprintf("edge %d-%d has one triangle", e.V[0], e.V[1]),
				Tri:     e.Tris[0],
				Edge:    eid,
			})
		case e.Extra > 0:
			r.NonManifold++
			bad[e.Tris[0]] = true
			bad[e.Tris[1]] = true
			r.Issues = append(r.Issues, Issue{
				Code:    CodeNonManifoldEdge,
				Message: fmt.Sprintf("edge %d-%d has %d triangles", e.V[0], e.V[1], 2+e.Extra),
				Tri:     e.Tris[0],
				Edge:    eid,
			})
		case forward(m, e.Tris[0], e.V) == forward(m, e.Tris[1], e.V):
			r.Flipped++
			bad[e.Tris[0]] = true
			bad[e.Tris[1]] = true
			r.Issues = append(r.Issues, Issue{
				Code:    CodeWinding,
				Message: fmt.Sprintf("triangles %d and %d run edge %d-%d the same way", e.Tris[0], e.Tris[1], e.V[0], e.V[1]),
				Tri:     e.Tris[0],
				Edge:    eid,
			})
		}
	}

	for i := range m.Tris {
		t := &m.Tris[i]
		id := mesh.TriID(i)
		if t.Degenerate() || m.Corners(t).Area() == 0 {
			bad[i] = true
			r.Issues = append(r.Issues, Issue{
				Code:     CodeDegenerate,
				Message:  "triangle has zero area",
				Tri:      id,
				Edge:     mesh.NoEdge,
				Severity: SeverityWarning,
			})
		}
		if t.Invalid {
			r.Issues = append(r.Issues, Issue{
				Code:     CodeNeedle,
				Message:  "triangle is marked as a needle",
				Tri:      id,
				Edge:     mesh.NoEdge,
				Severity: SeverityWarning,
			})
		}
	}
	r.NonConforming = lo.Count(open, true)
	r.BadTris = lo.Count(bad, true)
	return r
}

// forward reports whether triangle ti runs from v[0] to v[1].
func forward(m *mesh.Mesh, ti mesh.TriID, v [2]mesh.VertID) bool {
	t := m.Tri(ti)
	for k := 0; k < 3; k++ {
		if t.V[k] == v[0] && t.V[(k+1)%3] == v[1] {
			return true
		}
	}
	return false
}
