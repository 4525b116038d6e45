package validate

import (
	"strings"
	"testing"

	"github.com/chazu/lignin-mesh/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func unitBox(t *testing.T) *mesh.Mesh {
	t.Helper()
	return mesh.Box("box", v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
}

func codes(r Report) map[string]int {
	out := map[string]int{}
	for _, i := range r.Issues {
		out[i.Code]++
	}
	return out
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		build     func(t *testing.T) *mesh.Mesh
		want      Report
		wantCodes map[string]int
		tight     bool
	}{
		{
			name:      "closed box",
			build:     unitBox,
			want:      Report{Tris: 12, Edges: 18},
			wantCodes: map[string]int{},
			tight:     true,
		},
		{
			name: "missing face",
			build: func(t *testing.T) *mesh.Mesh {
				m := unitBox(t)
				m.Tris = m.Tris[1:]
				return m
			},
			want:      Report{Tris: 11, Edges: 18, Boundary: 3, NonConforming: 3, BadTris: 3},
			wantCodes: map[string]int{CodeOpenEdge: 3},
		},
		{
			name: "flipped face",
			build: func(t *testing.T) *mesh.Mesh {
				m := unitBox(t)
				m.Tris[0].V[1], m.Tris[0].V[2] = m.Tris[0].V[2], m.Tris[0].V[1]
				return m
			},
			want:      Report{Tris: 12, Edges: 18, Flipped: 3, BadTris: 4},
			wantCodes: map[string]int{CodeWinding: 3},
		},
		{
			name: "unwelded soup",
			build: func(t *testing.T) *mesh.Mesh {
				return mesh.BoxSoup("soup", v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1})
			},
			want:      Report{Tris: 12, Edges: 36, Boundary: 36, NonConforming: 12, BadTris: 12},
			wantCodes: map[string]int{CodeOpenEdge: 36},
		},
		{
			name: "fin",
			build: func(t *testing.T) *mesh.Mesh {
				m := mesh.New("fin")
				a := m.AddVertex(v3.Vec{}, mesh.Original)
				b := m.AddVertex(v3.Vec{X: 1}, mesh.Original)
				for _, p := range []v3.Vec{{Y: 1}, {Y: -1}, {Z: 1}} {
					m.AddTriangle(a, b, m.AddVertex(p, mesh.Original))
				}
				return m
			},
			want:      Report{Tris: 3, Edges: 7, Boundary: 6, NonManifold: 1, NonConforming: 3, BadTris: 3},
			wantCodes: map[string]int{CodeOpenEdge: 6, CodeNonManifoldEdge: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.build(t))
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(Report{}, "Issues")); diff != "" {
				t.Errorf("Check() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantCodes, codes(got)); diff != "" {
				t.Errorf("issue codes mismatch (-want +got):\n%s", diff)
			}
			if got.Watertight() != tt.tight {
				t.Errorf("Watertight() = %v, want %v", got.Watertight(), tt.tight)
			}
		})
	}
}

func TestCheckWarnings(t *testing.T) {
	m := unitBox(t)
	m.Tris[3].Invalid = true
	flat := m.AddVertex(v3.Vec{X: 2}, mesh.Original)
	m.AddTriangle(0, 1, flat)

	r := Check(m)
	c := codes(r)
	if c[CodeNeedle] != 1 || c[CodeDegenerate] != 1 {
		t.Errorf("codes = %v, want one needle and one degenerate", c)
	}
	for _, i := range r.Errors() {
		if i.Severity != SeverityError {
			t.Errorf("Errors() returned %v", i)
		}
	}
	if len(r.Errors()) == len(r.Issues) {
		t.Error("Errors() kept the warnings")
	}
}

func TestIssueError(t *testing.T) {
	i := Issue{Code: CodeOpenEdge, Message: "edge 1-2 has one triangle", Tri: 4}
	if got := i.Error(); !strings.Contains(got, "OPEN_EDGE") || !strings.Contains(got, "triangle 4") {
		t.Errorf("Error() = %q", got)
	}
}
