// Package engine runs the Boolean pipeline over a set of closed triangle
// meshes: intersect, split, classify, collect, merge, repair and validate.
package engine

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chazu/lignin-mesh/pkg/classify"
	"github.com/chazu/lignin-mesh/pkg/consolidate"
	"github.com/chazu/lignin-mesh/pkg/intersect"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/chazu/lignin-mesh/pkg/repair"
	"github.com/chazu/lignin-mesh/pkg/retri"
	"github.com/chazu/lignin-mesh/pkg/validate"
	"github.com/samber/lo"
)

var (
	// ErrNoMeshes is returned when Run is given no bodies.
	ErrNoMeshes = errors.New("engine: no meshes")
	// ErrEmptyMesh is returned for a nil body or one without triangles.
	ErrEmptyMesh = errors.New("engine: empty mesh")
	// ErrTimeout is returned when a Run exceeds the configured timeout.
	ErrTimeout = errors.New("engine: timed out")
	// ErrSuperseded is returned by a Run whose result arrived after a newer
	// Run had started.
	ErrSuperseded = errors.New("engine: run superseded by newer request")
)

// Op selects the Boolean combination of the bodies.
type Op int

const (
	// Trim drops every triangle inside another positive body. Bodies marked
	// Negative cut the others.
	Trim Op = iota
	// Union keeps the outer surface of all bodies.
	Union
	// Intersection keeps the surface of the region common to two bodies.
	Intersection
	// Subtract removes every body after the first from the first.
	Subtract
	// Mass keeps every triangle and attributes each to the highest-priority
	// body containing it.
	Mass
)

var opNames = map[Op]string{
	Trim:         "trim",
	Union:        "union",
	Intersection: "intersection",
	Subtract:     "subtract",
	Mass:         "mass",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

func (o Op) rule() classify.Rule {
	switch o {
	case Union:
		return classify.Union
	case Intersection:
		return classify.Intersection
	case Subtract:
		return classify.Subtract
	case Mass:
		return classify.Mass
	default:
		return classify.Plain
	}
}

// Stats records the work of every phase of a Run.
type Stats struct {
	TrisIn     int
	Leaves     int // leaf triangles after splitting
	TrisOut    int
	Intersect  intersect.Result
	Split      retri.Stats
	Classify   classify.Stats
	Discarded  int // leaves dropped while collecting
	Repair     repair.Stats
	RelaxMoves int
	Elapsed    time.Duration
}

// Result is the output of a Run.
type Result struct {
	// Mesh is the merged, repaired output surface.
	Mesh *mesh.Mesh
	// Bodies holds the kept leaves of each input body with their Inside,
	// Owner and Density attributes.
	Bodies []*mesh.Mesh
	// Curves are the intersection segments found between the bodies.
	Curves []repair.Curve
	Report validate.Report
	Stats  Stats
}

// Engine runs the pipeline. It is safe for concurrent use; a Run that
// finishes after a newer Run has started returns ErrSuperseded.
type Engine struct {
	cfg Config

	mu         sync.Mutex
	generation uint64
}

// New returns an Engine configured by DefaultConfig and the given options.
func New(setters ...Option) *Engine {
	cfg := DefaultConfig()
	for _, set := range setters {
		set(&cfg)
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run combines bodies under op. The bodies are not modified.
//
// Return semantics:
//   - On success: returns the result and nil
//   - On bad input: returns ErrNoMeshes or a wrapped ErrEmptyMesh
//   - On timeout, supersession or panic: returns nil and an error
func (e *Engine) Run(bodies []*mesh.Mesh, op Op) (*Result, error) {
	if len(bodies) == 0 {
		return nil, ErrNoMeshes
	}
	for i, b := range bodies {
		if b == nil {
			return nil, fmt.Errorf("engine: body %d: %w", i, ErrEmptyMesh)
		}
		if len(b.Tris) == 0 {
			return nil, fmt.Errorf("engine: body %d (%s): %w", i, b.Name, ErrEmptyMesh)
		}
	}

	meshes := lo.Map(bodies, func(b *mesh.Mesh, _ int) *mesh.Mesh {
		m := b.Clone()
		m.Flatten(nil)
		return m
	})

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan runResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- runResult{err: fmt.Errorf("engine: panic during run: %v", r)}
			}
		}()

		res := e.run(meshes, op)
		ch <- runResult{res: res}
	}()

	return waitWithTimeout(ch, e.cfg.Timeout, gen, &e.mu, &e.generation)
}

// run performs the pipeline on meshes, which it owns.
func (e *Engine) run(meshes []*mesh.Mesh, op Op) *Result {
	start := time.Now()
	cfg := e.cfg
	logf := cfg.Logger.Printf
	var st Stats

	st.TrisIn = lo.SumBy(meshes, func(m *mesh.Mesh) int { return len(m.Tris) })

	var saved *mesh.Mesh
	if cfg.Relax {
		saved = mesh.Merge("saved", meshes...)
	}

	st.Intersect = intersect.All(meshes)
	logf("engine: intersect: %d candidate pairs, %d segments, %d coplanar (%d shared edges), %d degenerate",
		st.Intersect.Candidates, st.Intersect.Segments, st.Intersect.Coplanar, st.Intersect.Shared, st.Intersect.Degenerate)

	curves := collectCurves(meshes)

	sp := retri.New(cfg.Triangulator)
	sp.Tol = cfg.SplitTol
	for bi, m := range meshes {
		if cfg.SVG != nil {
			sp.SVG = func(id mesh.TriID) io.Writer { return cfg.SVG(bi, id) }
		}
		sp.SplitAll(m)
	}
	st.Split = sp.Stats()
	st.Leaves = lo.SumBy(meshes, (*mesh.Mesh).LeafCount)
	logf("engine: split: %d split, %d unsplit, %d failed, %d children, %d crossings, %d leaves",
		st.Split.Split, st.Split.Unsplit, st.Split.Failed, st.Split.Children, st.Split.Crossings, st.Leaves)

	cl := classify.New(cfg.RayDir)
	st.Classify = cl.Run(meshes, op.rule())
	logf("engine: classify %s: %d leaves, %d rays, %d hull rejects, %d on surface, %d discarded, %d flipped",
		op, st.Classify.Leaves, st.Classify.Rays, st.Classify.HullRejects, st.Classify.OnSurface,
		st.Classify.Discarded, st.Classify.Flipped)

	for _, m := range meshes {
		st.Discarded += m.Flatten(func(t *mesh.Triangle) bool { return !t.Interior })
	}

	out := mesh.Merge(outputName(meshes, op), meshes...)
	if op == Mass {
		// Overlapping bodies stay overlapping; only weld.
		c := consolidate.Run(out, cfg.Tolerance, cfg.MinEdge)
		st.Repair.Merged = c.Merged
		st.Repair.Collapsed = c.Collapsed
		st.Repair.ShortEdges = c.ShortEdges
	} else {
		st.Repair = repair.WaterTight(out, repair.Options{
			Iterations: cfg.Iterations,
			MinAngle:   cfg.MinAngle,
			MinAspect:  cfg.MinAspect,
			SwapAngle:  cfg.SwapAngle,
			MergeTol:   cfg.Tolerance,
			MinEdge:    cfg.MinEdge,
		})
	}
	logf("engine: repair: %d iterations, %d merged, %d needles, %d swaps, %d short edges",
		st.Repair.Iterations, st.Repair.Merged, st.Repair.Needles, st.Repair.Swaps, st.Repair.ShortEdges)

	if cfg.Relax && op != Mass {
		near := repair.MarkNearCurve(out)
		r := repair.Relaxer{
			Passes:    cfg.RelaxPasses,
			Fract:     cfg.RelaxFract,
			Saved:     saved,
			Curves:    curves,
			Projector: cfg.Projector,
		}
		st.RelaxMoves = r.Relax(out)
		consolidate.Run(out, cfg.Tolerance, cfg.MinEdge)
		logf("engine: relax: %d near-curve vertices, %d moves", near, st.RelaxMoves)
	}

	report := validate.Check(out)
	st.TrisOut = len(out.Tris)
	st.Elapsed = time.Since(start)
	logf("engine: %s: %d triangles in, %d out, %d boundary edges, %d non-manifold, watertight=%t, %s",
		op, st.TrisIn, st.TrisOut, report.Boundary, report.NonManifold, report.Watertight(), st.Elapsed)

	return &Result{
		Mesh:   out,
		Bodies: meshes,
		Curves: curves,
		Report: report,
		Stats:  st,
	}
}

// collectCurves returns every intersection segment. Each appears once per
// body that carries it.
func collectCurves(meshes []*mesh.Mesh) []repair.Curve {
	var out []repair.Curve
	for _, m := range meshes {
		for i := range m.Tris {
			for _, s := range m.Tris[i].Segs {
				out = append(out, repair.Curve{m.Vert(s.V[0]).Pos, m.Vert(s.V[1]).Pos})
			}
		}
	}
	return out
}

func outputName(bodies []*mesh.Mesh, op Op) string {
	names := lo.Map(bodies, func(b *mesh.Mesh, _ int) string { return b.Name })
	return op.String() + "(" + strings.Join(names, ",") + ")"
}
