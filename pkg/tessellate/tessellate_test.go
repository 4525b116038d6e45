package tessellate_test

import (
	"math"
	"testing"

	"github.com/chazu/lignin-mesh/pkg/engine"
	"github.com/chazu/lignin-mesh/pkg/kernel"
	"github.com/chazu/lignin-mesh/pkg/kernel/poly"
	"github.com/chazu/lignin-mesh/pkg/kernel/sdfx"
	"github.com/chazu/lignin-mesh/pkg/tessellate"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// newKernel returns a fresh exact kernel for testing.
func newKernel() kernel.Kernel {
	return poly.New()
}

// makeBoard creates a box primitive node with the given name and dimensions.
func makeBoard(name string, x, y, z float64) *tessellate.Node {
	return &tessellate.Node{
		Kind: tessellate.KindPrimitive,
		Name: name,
		Prim: &tessellate.Primitive{
			Shape: tessellate.ShapeBox,
			Size:  v3.Vec{X: x, Y: y, Z: z},
		},
	}
}

// makePlace creates a transform node with a translation.
func makePlace(name string, tx, ty, tz float64, children ...*tessellate.Node) *tessellate.Node {
	t := v3.Vec{X: tx, Y: ty, Z: tz}
	return &tessellate.Node{
		Kind:        tessellate.KindTransform,
		Name:        name,
		Translation: &t,
		Children:    children,
	}
}

// makeGroup creates a group node with children.
func makeGroup(name string, children ...*tessellate.Node) *tessellate.Node {
	return &tessellate.Node{
		Kind:     tessellate.KindGroup,
		Name:     name,
		Children: children,
	}
}

func TestSingleBox(t *testing.T) {
	bodies, err := tessellate.Tessellate([]*tessellate.Node{makeBoard("shelf", 600, 300, 18)}, newKernel())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(bodies) != 1 {
		t.Fatalf("expected 1 body, got %d", len(bodies))
	}

	b := bodies[0]
	if b.Name != "shelf" {
		t.Errorf("expected name %q, got %q", "shelf", b.Name)
	}
	if len(b.Tris) != 12 {
		t.Errorf("expected 12 triangles, got %d", len(b.Tris))
	}
	if v := b.Volume(); math.Abs(v-600*300*18) > 1e-6 {
		t.Errorf("volume = %f, want %d", v, 600*300*18)
	}
}

func TestTwoParts(t *testing.T) {
	roots := []*tessellate.Node{
		makeBoard("side-panel", 400, 300, 18),
		makeBoard("top-panel", 600, 300, 18),
	}
	bodies, err := tessellate.Tessellate(roots, newKernel())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 bodies, got %d", len(bodies))
	}
	if bodies[0].Name != "side-panel" || bodies[1].Name != "top-panel" {
		t.Errorf("names = %q, %q", bodies[0].Name, bodies[1].Name)
	}
}

func TestPartWithTransform(t *testing.T) {
	// Place the board at an offset of (200, 100, 50).
	root := makePlace("place-shelf", 200, 100, 50, makeBoard("shelf", 100, 50, 10))

	bodies, err := tessellate.Tessellate([]*tessellate.Node{root}, newKernel())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(bodies) != 1 {
		t.Fatalf("expected 1 body, got %d", len(bodies))
	}

	// Box has min-corner at origin, so a 100x50x10 board placed at
	// (200,100,50) spans (200,100,50)-(300,150,60).
	bb := bodies[0].Box()
	if bb.Min.Sub(v3.Vec{X: 200, Y: 100, Z: 50}).Length() > 1e-9 {
		t.Errorf("min = %v, expected (200,100,50)", bb.Min)
	}
	if bb.Max.Sub(v3.Vec{X: 300, Y: 150, Z: 60}).Length() > 1e-9 {
		t.Errorf("max = %v, expected (300,150,60)", bb.Max)
	}
}

func TestNestedTransforms(t *testing.T) {
	rot := v3.Vec{Z: 90}
	inner := &tessellate.Node{
		Kind:     tessellate.KindTransform,
		Name:     "turn",
		Rotation: &rot,
		Children: []*tessellate.Node{makeBoard("rail", 10, 1, 1)},
	}
	root := makePlace("shift", 5, 0, 0, inner)

	bodies, err := tessellate.Tessellate([]*tessellate.Node{root}, newKernel())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	// Rotated first, x in [-1,0], then shifted by 5.
	bb := bodies[0].Box()
	if bb.Min.Sub(v3.Vec{X: 4}).Length() > 1e-9 || bb.Max.Sub(v3.Vec{X: 5, Y: 10, Z: 1}).Length() > 1e-9 {
		t.Errorf("box = %v, want (4,0,0)-(5,10,1)", bb)
	}
}

func TestAssembly(t *testing.T) {
	assembly := makeGroup("bookshelf",
		makePlace("place-left", 0, 0, 0, makeBoard("left-side", 18, 300, 400)),
		makePlace("place-right", 582, 0, 0, makeBoard("right-side", 18, 300, 400)),
		makePlace("place-top", 0, 0, 400, makeBoard("top", 600, 300, 18)),
	)

	bodies, err := tessellate.Tessellate([]*tessellate.Node{assembly}, newKernel())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(bodies) != 3 {
		t.Fatalf("expected 3 bodies, got %d", len(bodies))
	}
	for i, want := range []string{"left-side", "right-side", "top"} {
		if bodies[i].Name != want {
			t.Errorf("body %d = %q, want %q", i, bodies[i].Name, want)
		}
	}
}

func TestEmptyTree(t *testing.T) {
	bodies, err := tessellate.Tessellate(nil, newKernel())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(bodies) != 0 {
		t.Fatalf("expected 0 bodies, got %d", len(bodies))
	}
}

func TestBadNodes(t *testing.T) {
	tests := []struct {
		name string
		node *tessellate.Node
	}{
		{"unknown kind", &tessellate.Node{Kind: tessellate.Kind(42), Name: "odd"}},
		{"missing primitive", &tessellate.Node{Kind: tessellate.KindPrimitive, Name: "bare"}},
		{"unknown shape", &tessellate.Node{Kind: tessellate.KindPrimitive, Name: "blob",
			Prim: &tessellate.Primitive{Shape: tessellate.Shape(9)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := makeGroup("g", tt.node)
			if _, err := tessellate.Tessellate([]*tessellate.Node{root}, newKernel()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAttributesReachEngine(t *testing.T) {
	frame := makeBoard("frame", 1, 1, 1)
	frame.Prim.Density = 0.7
	hole := &tessellate.Node{
		Kind: tessellate.KindPrimitive,
		Name: "hole",
		Prim: &tessellate.Primitive{
			Shape:    tessellate.ShapeBox,
			Size:     v3.Vec{X: 1, Y: 0.8, Z: 0.8},
			Negative: true,
			Priority: 2,
		},
	}
	roots := []*tessellate.Node{frame, makePlace("offset", 0.5, 0.1, 0.1, hole)}

	bodies, err := tessellate.Tessellate(roots, newKernel())
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if bodies[0].Density != 0.7 || !bodies[1].Negative || bodies[1].Priority != 2 {
		t.Fatalf("attributes lost: %+v %+v", bodies[0].Density, bodies[1])
	}

	res, err := engine.New().Run(bodies, engine.Trim)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Report.Watertight() {
		t.Fatalf("result not watertight: %+v", res.Report.Errors())
	}
	if v := res.Mesh.Volume(); math.Abs(v-0.68) > 1e-6 {
		t.Errorf("volume = %f, want 0.68", v)
	}
}

func TestSampledKernel(t *testing.T) {
	k := &sdfx.SdfxKernel{Cells: 32}
	root := makePlace("place", 200, 100, 50, makeBoard("shelf", 100, 50, 10))

	bodies, err := tessellate.Tessellate([]*tessellate.Node{root}, k)
	if err != nil {
		t.Fatalf("Tessellate failed: %v", err)
	}
	if len(bodies) != 1 || len(bodies[0].Tris) == 0 {
		t.Fatal("expected one non-empty body")
	}

	// Use a generous tolerance since marching cubes is approximate.
	c := bodies[0].Box().Center()
	const tol = 5.0
	if c.Sub(v3.Vec{X: 250, Y: 125, Z: 55}).Length() > tol {
		t.Errorf("centre = %v, expected near (250,125,55)", c)
	}
}
