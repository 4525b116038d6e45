package repair

import (
	"math"
	"testing"

	"github.com/chazu/lignin-mesh/pkg/consolidate"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/go-cmp/cmp"
)

func vec(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }

// needle returns a thin triangle a-b-c, with c on a curve, and a healthy
// neighbour a-c-d.
func needle(t *testing.T) *mesh.Mesh {
	t.Helper()
	m := mesh.New("needle")
	a := m.AddVertex(vec(0, 0, 0), mesh.Original)
	b := m.AddVertex(vec(1, 0, 0), mesh.Original)
	c := m.AddVertex(vec(1, 0.001, 0), mesh.OnCurve)
	d := m.AddVertex(vec(0, 1, 0), mesh.Original)
	m.AddTriangle(a, b, c)
	m.AddTriangle(a, c, d)
	return m
}

func TestTagNeedles(t *testing.T) {
	tests := []struct {
		name     string
		collapse bool
	}{
		{"mark", false},
		{"collapse", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := needle(t)
			if got := TagNeedles(m, DefaultMinAngle, DefaultMinAspect, tt.collapse); got != 1 {
				t.Fatalf("TagNeedles() = %d, want 1", got)
			}
			if m.Tris[1].Invalid {
				t.Error("healthy triangle marked invalid")
			}
			if tt.collapse {
				if m.Tris[0].Invalid {
					t.Error("collapsed needle also marked invalid")
				}
				// The original vertex moves onto the curve vertex.
				if m.Verts[1].Pos != vec(1, 0.001, 0) || m.Verts[2].Pos != vec(1, 0.001, 0) {
					t.Errorf("needle ends at %v and %v, want both at the curve vertex", m.Verts[1].Pos, m.Verts[2].Pos)
				}
				return
			}
			if !m.Tris[0].Invalid {
				t.Error("needle not marked invalid")
			}
		})
	}
}

func TestTagNeedlesIgnoresOffCurve(t *testing.T) {
	m := needle(t)
	m.Verts[2].Flag = mesh.Original
	if got := TagNeedles(m, DefaultMinAngle, DefaultMinAspect, false); got != 0 {
		t.Errorf("TagNeedles() = %d, want 0", got)
	}
}

func TestMoveTogether(t *testing.T) {
	tests := []struct {
		name   string
		f0, f1 mesh.Flag
		want   v3.Vec
	}{
		{"first on curve", mesh.OnCurve, mesh.Original, vec(0, 0, 0)},
		{"second on curve", mesh.Original, mesh.OnCurve, vec(2, 0, 0)},
		{"both on curve", mesh.OnCurve, mesh.NearCurve, vec(1, 0, 0)},
		{"neither", mesh.Original, mesh.Original, vec(1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v0 := &mesh.Vertex{Pos: vec(0, 0, 0), Flag: tt.f0}
			v1 := &mesh.Vertex{Pos: vec(2, 0, 0), Flag: tt.f1}
			moveTogether(v0, v1)
			if v0.Pos != tt.want || v1.Pos != tt.want {
				t.Errorf("moveTogether() = %v, %v, want both %v", v0.Pos, v1.Pos, tt.want)
			}
		})
	}
}

func TestSwapEdges(t *testing.T) {
	m := mesh.New("quad")
	a := m.AddVertex(vec(1, 0, 0), mesh.Original)
	b := m.AddVertex(vec(0, 0, 0), mesh.Original)
	apex := m.AddVertex(vec(0.5, -0.001, 0), mesh.Original)
	other := m.AddVertex(vec(0.5, 1, 0), mesh.Original)
	m.AddTriangle(apex, a, b)
	m.AddTriangle(b, a, other)
	m.BuildVertexTris()
	area := m.Area()

	if got := SwapEdges(m, DefaultSwapAngle); got != 1 {
		t.Fatalf("SwapEdges() = %d, want 1", got)
	}
	for i := range m.Tris {
		tri := &m.Tris[i]
		if tri.HasVert(a) && tri.HasVert(b) {
			t.Errorf("triangle %d still uses the swapped edge", i)
		}
		if n := m.Corners(tri).Normal(); n.Z <= 0 {
			t.Errorf("triangle %d normal %v flipped", i, n)
		}
	}
	if math.Abs(m.Area()-area) > 1e-12 {
		t.Errorf("Area() = %g, want %g", m.Area(), area)
	}
	got := map[mesh.VertID]int{}
	for i, v := range m.Verts {
		got[mesh.VertID(i)] = len(v.Tris)
	}
	want := map[mesh.VertID]int{a: 1, b: 1, apex: 2, other: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("vertex triangle counts mismatch (-want +got):\n%s", diff)
	}
}

func TestWaterTightClosedBox(t *testing.T) {
	m := mesh.BoxSoup("box", vec(0, 0, 0), vec(1, 1, 1))
	st := WaterTight(m, DefaultOptions())
	want := Stats{Iterations: 1, Merged: 28}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("WaterTight() mismatch (-want +got):\n%s", diff)
	}
	if len(m.Tris) != 12 {
		t.Errorf("len(Tris) = %d, want 12", len(m.Tris))
	}
}

func TestWaterTightCollapsesNeedle(t *testing.T) {
	m := needle(t)
	st := WaterTight(m, DefaultOptions())
	if st.Needles != 1 || st.Collapsed != 1 {
		t.Errorf("WaterTight() = %+v, want one needle collapsed", st)
	}
	if st.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", st.Iterations)
	}
	if len(m.Tris) != 1 {
		t.Fatalf("len(Tris) = %d, want 1", len(m.Tris))
	}
	if got := consolidate.Run(m, consolidate.DefaultTol, consolidate.DefaultMinEdge); got.Merged != 0 || got.Collapsed != 0 {
		t.Errorf("mesh not stable after repair: %+v", got)
	}
}

type lift struct{ calls int }

func (l *lift) Project(p v3.Vec) (v3.Vec, bool) {
	l.calls++
	return vec(p.X, p.Y, 0), true
}

// fan returns a square fan around a center vertex with the given flag and
// height.
func fan(t *testing.T, flag mesh.Flag, z float64) *mesh.Mesh {
	t.Helper()
	m := mesh.New("fan")
	c := m.AddVertex(vec(0.5, 0.6, z), flag)
	corners := []mesh.VertID{
		m.AddVertex(vec(0, 0, 0), mesh.Original),
		m.AddVertex(vec(1, 0, 0), mesh.Original),
		m.AddVertex(vec(1, 1, 0), mesh.Original),
		m.AddVertex(vec(0, 1, 0), mesh.Original),
	}
	for i := range corners {
		m.AddTriangle(c, corners[i], corners[(i+1)%4])
	}
	m.BuildVertexTris()
	return m
}

func TestRelaxOnCurve(t *testing.T) {
	m := fan(t, mesh.OnCurve, 0)
	r := &Relaxer{Curves: []Curve{{vec(0, 0.5, 0), vec(1, 0.5, 0)}}}
	if got := r.Relax(m); got == 0 {
		t.Fatal("Relax() moved nothing")
	}
	p := m.Verts[0].Pos
	if math.Abs(p.Y-0.5) > 1e-12 || math.Abs(p.Z) > 1e-12 {
		t.Errorf("curve vertex at %v, want on the curve y=0.5", p)
	}
	for i := 1; i < len(m.Verts); i++ {
		if m.Verts[i].Flag == mesh.Original && m.Verts[i].Pos.Z != 0 {
			t.Errorf("original vertex %d moved", i)
		}
	}
}

func TestRelaxNearCurve(t *testing.T) {
	saved := mesh.New("plane")
	s := []mesh.VertID{
		saved.AddVertex(vec(-1, -1, 0), mesh.Original),
		saved.AddVertex(vec(2, -1, 0), mesh.Original),
		saved.AddVertex(vec(2, 2, 0), mesh.Original),
		saved.AddVertex(vec(-1, 2, 0), mesh.Original),
	}
	saved.AddTriangle(s[0], s[1], s[2])
	saved.AddTriangle(s[0], s[2], s[3])

	tests := []struct {
		name string
		r    *Relaxer
	}{
		{"saved surface", &Relaxer{Saved: saved}},
		{"projector", &Relaxer{Projector: &lift{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := fan(t, mesh.NearCurve, 0.05)
			tt.r.Relax(m)
			if z := m.Verts[0].Pos.Z; math.Abs(z) > 1e-12 {
				t.Errorf("near-curve vertex z = %g, want 0", z)
			}
		})
	}
}

func TestMarkNearCurve(t *testing.T) {
	m := fan(t, mesh.OnCurve, 0)
	far := m.AddVertex(vec(5, 5, 5), mesh.Original)
	if got := MarkNearCurve(m); got != 4 {
		t.Errorf("MarkNearCurve() = %d, want 4", got)
	}
	if m.Vert(far).Flag != mesh.Original {
		t.Error("unconnected vertex was flagged")
	}
}
