package engine

import (
	"bytes"
	"errors"
	"log"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/lignin-mesh/pkg/geom"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func vec(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }

// cubeAndBar returns a unit cube and a 1 x 0.8 x 0.8 bar poking 0.5 out of
// its +X face, as triangle soups.
func cubeAndBar(t *testing.T) []*mesh.Mesh {
	t.Helper()
	return []*mesh.Mesh{
		mesh.BoxSoup("cube", vec(0, 0, 0), vec(1, 1, 1)),
		mesh.BoxSoup("bar", vec(0.5, 0.1, 0.1), vec(1.5, 0.9, 0.9)),
	}
}

func TestRunBooleans(t *testing.T) {
	tests := []struct {
		name   string
		op     Op
		area   float64
		volume float64
	}{
		{"union", Union, 7.6, 1.32},
		{"subtract", Subtract, 7.6, 0.68},
		{"intersection", Intersection, 2.88, 0.32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New().Run(cubeAndBar(t), tt.op)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !res.Report.Watertight() {
				t.Fatalf("result not watertight: %+v", res.Report.Errors())
			}
			if a := res.Mesh.Area(); math.Abs(a-tt.area) > 1e-6 {
				t.Errorf("area = %v, want %v", a, tt.area)
			}
			if v := res.Mesh.Volume(); math.Abs(v-tt.volume) > 1e-6 {
				t.Errorf("volume = %v, want %v", v, tt.volume)
			}
			if res.Stats.Intersect.Segments == 0 {
				t.Error("expected intersection segments")
			}
			if res.Stats.Split.Failed != 0 {
				t.Errorf("split failures: %d", res.Stats.Split.Failed)
			}
			if res.Stats.TrisIn != 24 {
				t.Errorf("TrisIn = %d, want 24", res.Stats.TrisIn)
			}
			if res.Stats.TrisOut != len(res.Mesh.Tris) {
				t.Errorf("TrisOut = %d, mesh has %d", res.Stats.TrisOut, len(res.Mesh.Tris))
			}
		})
	}
}

// overlappingCubes returns two unit cubes overlapping by half in X, so four
// of their faces lie pairwise in the same planes.
func overlappingCubes(t *testing.T) []*mesh.Mesh {
	t.Helper()
	return []*mesh.Mesh{
		mesh.BoxSoup("a", vec(0, 0, 0), vec(1, 1, 1)),
		mesh.BoxSoup("b", vec(0.5, 0, 0), vec(1.5, 1, 1)),
	}
}

func TestRunCoplanarCubes(t *testing.T) {
	tests := []struct {
		name   string
		op     Op
		area   float64
		volume float64
	}{
		{"trim", Trim, 8, 1.5},
		{"union", Union, 8, 1.5},
		{"intersection", Intersection, 4, 0.5},
		{"subtract", Subtract, 4, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New().Run(overlappingCubes(t), tt.op)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if !res.Report.Watertight() {
				t.Fatalf("result not watertight: %+v", res.Report.Errors())
			}
			if a := res.Mesh.Area(); math.Abs(a-tt.area) > 1e-6 {
				t.Errorf("area = %v, want %v", a, tt.area)
			}
			if v := res.Mesh.Volume(); math.Abs(v-tt.volume) > 1e-6 {
				t.Errorf("volume = %v, want %v", v, tt.volume)
			}
			if res.Stats.Intersect.Coplanar == 0 || res.Stats.Intersect.Shared == 0 {
				t.Errorf("coplanar faces not shared: %+v", res.Stats.Intersect)
			}
			if res.Stats.Classify.OnSurface == 0 {
				t.Error("no leaves found on the other surface")
			}
		})
	}
}

func TestRunDoesNotModifyInput(t *testing.T) {
	bodies := cubeAndBar(t)
	before := bodies[0].Clone()

	if _, err := New().Run(bodies, Union); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(bodies[0].Tris) != len(before.Tris) || len(bodies[0].Verts) != len(before.Verts) {
		t.Fatalf("input changed: %d tris %d verts, want %d %d",
			len(bodies[0].Tris), len(bodies[0].Verts), len(before.Tris), len(before.Verts))
	}
	for i := range bodies[0].Tris {
		if len(bodies[0].Tris[i].Segs) != 0 || len(bodies[0].Tris[i].Children) != 0 {
			t.Fatalf("input triangle %d was split", i)
		}
	}
}

func TestRunClonesBeforeReturning(t *testing.T) {
	// A run that times out must not still be reading the bodies.
	bodies := cubeAndBar(t)
	_, err := New(WithTimeout(time.Nanosecond)).Run(bodies, Union)
	if err != nil && !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run: %v", err)
	}
	for _, b := range bodies {
		for i := range b.Verts {
			b.Verts[i].Pos = vec(0, 0, 0)
		}
		b.Tris = nil
	}
}

func TestRunCountsLeaves(t *testing.T) {
	res, err := New().Run(cubeAndBar(t), Union)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Leaves <= res.Stats.TrisIn {
		t.Errorf("Leaves = %d, want more than the %d input triangles", res.Stats.Leaves, res.Stats.TrisIn)
	}
	if res.Stats.Classify.Leaves != res.Stats.Leaves {
		t.Errorf("classified %d leaves, counted %d", res.Stats.Classify.Leaves, res.Stats.Leaves)
	}
	if res.Stats.Classify.Discarded != res.Stats.Discarded {
		t.Errorf("classify discarded %d leaves, collecting dropped %d", res.Stats.Classify.Discarded, res.Stats.Discarded)
	}
}

// prism returns an n-sided prism of circumradius r and height h centred on
// the origin with its axis along Z, as a triangle soup.
func prism(name string, n int, r, h float64) *mesh.Mesh {
	ring := func(i int, z float64) v3.Vec {
		a := 2 * math.Pi * float64(i%n) / float64(n)
		return vec(r*math.Cos(a), r*math.Sin(a), z)
	}
	lo, hi := -h/2, h/2
	var tris []geom.Tri
	for i := 0; i < n; i++ {
		tris = append(tris,
			geom.Tri{vec(0, 0, lo), ring(i+1, lo), ring(i, lo)},
			geom.Tri{vec(0, 0, hi), ring(i, hi), ring(i+1, hi)},
			geom.Tri{ring(i, lo), ring(i+1, lo), ring(i+1, hi)},
			geom.Tri{ring(i, lo), ring(i+1, hi), ring(i, hi)},
		)
	}
	return mesh.FromTris(name, tris)
}

func TestRunRandomBooleans(t *testing.T) {
	const (
		trials = 6
		sides  = 6

		// Open or over-shared edges allowed across every result, as a
		// fraction of all edges.
		maxBadFraction = 0.02
	)
	r := rand.New(rand.NewSource(3))
	badEdges, edges, watertight := 0, 0, 0

	for trial := 0; trial < trials; trial++ {
		rad := 0.3 + 0.2*r.Float64()
		h := 0.6 + 0.4*r.Float64()
		rot := sdf.RotateX(r.Float64() * math.Pi).Mul(sdf.RotateY(r.Float64() * math.Pi)).Mul(sdf.RotateZ(r.Float64() * math.Pi))
		at := vec(0.9+0.2*r.Float64(), 0.4+0.2*r.Float64(), 0.4+0.2*r.Float64())
		vb := float64(sides) / 2 * rad * rad * math.Sin(2*math.Pi/sides) * h

		vol := map[Op]float64{}
		tight := true
		for _, op := range []Op{Union, Intersection, Subtract} {
			b := prism("prism", sides, rad, h)
			b.Transform(sdf.Translate3d(at).Mul(rot))
			bodies := []*mesh.Mesh{mesh.BoxSoup("cube", vec(0, 0, 0), vec(1, 1, 1)), b}

			res, err := New().Run(bodies, op)
			if err != nil {
				t.Fatalf("trial %d %s: Run: %v", trial, op, err)
			}
			rep := res.Report
			badEdges += rep.Boundary + rep.NonManifold
			edges += rep.Edges
			tight = tight && rep.Watertight()
			vol[op] = res.Mesh.Volume()
		}
		if !tight {
			continue
		}
		watertight++
		if d := vol[Union] + vol[Intersection] - (1 + vb); math.Abs(d) > 1e-2 {
			t.Errorf("trial %d: union %v + intersection %v, want %v", trial, vol[Union], vol[Intersection], 1+vb)
		}
		if d := vol[Subtract] + vol[Intersection] - 1; math.Abs(d) > 1e-2 {
			t.Errorf("trial %d: subtract %v + intersection %v, want 1", trial, vol[Subtract], vol[Intersection])
		}
	}

	if edges == 0 {
		t.Fatal("no edges in any result")
	}
	if f := float64(badEdges) / float64(edges); f > maxBadFraction {
		t.Errorf("%d of %d edges open or non-manifold (%.3f), want at most %.3f", badEdges, edges, f, maxBadFraction)
	}
	if watertight < trials/2 {
		t.Errorf("%d of %d trials watertight, want at least %d", watertight, trials, trials/2)
	}
}

func TestRunDisjoint(t *testing.T) {
	bodies := []*mesh.Mesh{
		mesh.BoxSoup("a", vec(0, 0, 0), vec(1, 1, 1)),
		mesh.BoxSoup("b", vec(3, 0, 0), vec(4, 1, 1)),
	}
	res, err := New().Run(bodies, Union)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Report.Watertight() {
		t.Fatalf("result not watertight: %+v", res.Report.Errors())
	}
	if got := len(res.Mesh.Tris); got != 24 {
		t.Errorf("triangles = %d, want 24", got)
	}
	if got := len(res.Mesh.Verts); got != 16 {
		t.Errorf("vertices = %d, want 16", got)
	}
	if v := res.Mesh.Volume(); math.Abs(v-2) > 1e-9 {
		t.Errorf("volume = %v, want 2", v)
	}
}

func TestRunMassAttribution(t *testing.T) {
	outer := mesh.BoxSoup("outer", vec(0, 0, 0), vec(4, 4, 4))
	outer.Density = 1
	inner := mesh.BoxSoup("inner", vec(1, 1, 1), vec(3, 3, 3))
	inner.Density = 5
	inner.Priority = 1

	res, err := New().Run([]*mesh.Mesh{outer, inner}, Mass)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Discarded != 0 {
		t.Errorf("Discarded = %d, want 0", res.Stats.Discarded)
	}
	// The inner body's surface lies in the outer body's material.
	for bi, b := range res.Bodies {
		for i := range b.Tris {
			tri := &b.Tris[i]
			if tri.Owner != 0 || tri.Density != 1 {
				t.Errorf("body %d triangle %d: owner %d density %v, want 0 and 1", bi, i, tri.Owner, tri.Density)
			}
			if bi == 1 && !tri.Inside[0] {
				t.Errorf("inner triangle %d not inside outer", i)
			}
		}
	}
	if got := len(res.Mesh.Tris); got != 24 {
		t.Errorf("triangles = %d, want 24", got)
	}
}

func TestRunTrimNegative(t *testing.T) {
	bodies := cubeAndBar(t)
	bodies[1].Negative = true

	res, err := New().Run(bodies, Trim)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Report.Watertight() {
		t.Fatalf("result not watertight: %+v", res.Report.Errors())
	}
	if v := res.Mesh.Volume(); math.Abs(v-0.68) > 1e-6 {
		t.Errorf("volume = %v, want 0.68", v)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		bodies []*mesh.Mesh
		want   error
	}{
		{"no meshes", nil, ErrNoMeshes},
		{"nil body", []*mesh.Mesh{nil}, ErrEmptyMesh},
		{"empty body", []*mesh.Mesh{mesh.New("empty")}, ErrEmptyMesh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Run(tt.bodies, Union)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRunLogsPhases(t *testing.T) {
	var buf bytes.Buffer
	eng := New(WithLogger(log.New(&buf, "", 0)))

	if _, err := eng.Run(cubeAndBar(t), Union); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, phase := range []string{"intersect:", "split:", "classify union:", "repair:", "watertight=true"} {
		if !strings.Contains(buf.String(), phase) {
			t.Errorf("log missing %q:\n%s", phase, buf.String())
		}
	}
}

func TestRunRelax(t *testing.T) {
	res, err := New(WithRelax(2, 0.001)).Run(cubeAndBar(t), Union)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Report.Watertight() {
		t.Fatalf("result not watertight: %+v", res.Report.Errors())
	}
	if v := res.Mesh.Volume(); math.Abs(v-1.32) > 1e-3 {
		t.Errorf("volume = %v, want about 1.32", v)
	}
}

func TestOptionsPanic(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"tolerance", func() { WithTolerance(0) }},
		{"iterations", func() { WithRepairIterations(-1) }},
		{"triangulator", func() { WithTriangulator(nil) }},
		{"ray", func() { WithRayDir(v3.Vec{}) }},
		{"logger", func() { WithLogger(nil) }},
		{"needles", func() { WithNeedleLimits(60, 0.01) }},
		{"swap", func() { WithSwapAngle(45) }},
		{"relax", func() { WithRelax(0, 0.1) }},
		{"timeout", func() { WithTimeout(-time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestWithRayDirNormalizes(t *testing.T) {
	got := New(WithRayDir(vec(0, 2, 0))).Config().RayDir
	if got != vec(0, 1, 0) {
		t.Errorf("RayDir = %v, want (0,1,0)", got)
	}
}

func TestOpString(t *testing.T) {
	if got := Subtract.String(); got != "subtract" {
		t.Errorf("Subtract.String() = %q", got)
	}
	if got := Op(99).String(); got != "unknown" {
		t.Errorf("Op(99).String() = %q", got)
	}
}

func TestWaitTimeout(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(1)
	ch := make(chan runResult) // never sends

	_, err := waitWithTimeout(ch, 10*time.Millisecond, 1, &mu, &gen)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestWaitDiscardsStale(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(2)
	ch := make(chan runResult, 1)
	ch <- runResult{res: &Result{}}

	_, err := waitWithTimeout(ch, 0, 1, &mu, &gen)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
}
