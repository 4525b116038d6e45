package engine

import (
	"io"
	"log"
	"time"

	"github.com/chazu/lignin-mesh/pkg/cdt"
	"github.com/chazu/lignin-mesh/pkg/classify"
	"github.com/chazu/lignin-mesh/pkg/consolidate"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/chazu/lignin-mesh/pkg/repair"
	"github.com/chazu/lignin-mesh/pkg/retri"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Config holds the settings of an Engine.
type Config struct {
	Tolerance  float64 // squared vertex merge distance
	MinEdge    float64
	SplitTol   float64 // node snapping distance in the re-triangulator
	Iterations int     // repair loop bound
	MinAngle   float64 // degrees
	MinAspect  float64
	SwapAngle  float64 // degrees
	RayDir     v3.Vec

	Triangulator cdt.Triangulator
	Projector    repair.SurfaceProjector
	Logger       *log.Logger

	Relax       bool
	RelaxPasses int
	RelaxFract  float64

	// Timeout bounds a Run; zero waits forever.
	Timeout time.Duration

	// SVG, when set, is asked for a writer per split triangle of body.
	SVG func(body int, id mesh.TriID) io.Writer
}

// DefaultConfig returns the standard settings: Delaunay triangulation, a
// +X classification ray, ten repair iterations and no relaxation.
func DefaultConfig() Config {
	return Config{
		Tolerance:    consolidate.DefaultTol,
		MinEdge:      consolidate.DefaultMinEdge,
		SplitTol:     retri.DefaultTol,
		Iterations:   repair.DefaultIterations,
		MinAngle:     repair.DefaultMinAngle,
		MinAspect:    repair.DefaultMinAspect,
		SwapAngle:    repair.DefaultSwapAngle,
		RayDir:       classify.DefaultDir,
		Triangulator: cdt.New(),
		Logger:       log.New(io.Discard, "", 0),
		RelaxPasses:  repair.DefaultRelaxPasses,
		RelaxFract:   repair.DefaultRelaxFract,
	}
}

// Option sets a field of Config.
type Option func(*Config)

// WithTolerance sets the squared distance under which vertices are merged.
func WithTolerance(tol float64) Option {
	if tol <= 0 {
		panic("WithTolerance: tol must be positive")
	}
	return func(c *Config) {
		c.Tolerance = tol
	}
}

// WithMinEdge sets the edge length under which triangles are dropped.
func WithMinEdge(l float64) Option {
	if l < 0 {
		panic("WithMinEdge: length must not be negative")
	}
	return func(c *Config) {
		c.MinEdge = l
	}
}

// WithRepairIterations bounds the repair loop. Zero leaves only the
// initial weld.
func WithRepairIterations(n int) Option {
	if n < 0 {
		panic("WithRepairIterations: n must not be negative")
	}
	return func(c *Config) {
		c.Iterations = n
	}
}

// WithTriangulator replaces the planar triangulator used when splitting.
func WithTriangulator(t cdt.Triangulator) Option {
	if t == nil {
		panic("WithTriangulator: triangulator is nil")
	}
	return func(c *Config) {
		c.Triangulator = t
	}
}

// WithRayDir sets the classification ray direction. It is normalized.
func WithRayDir(d v3.Vec) Option {
	if d.Length() == 0 {
		panic("WithRayDir: direction is zero")
	}
	d = d.Normalize()
	return func(c *Config) {
		c.RayDir = d
	}
}

// WithLogger sends phase summaries to l.
func WithLogger(l *log.Logger) Option {
	if l == nil {
		panic("WithLogger: logger is nil")
	}
	return func(c *Config) {
		c.Logger = l
	}
}

// WithProjector sets the surface projector used by relaxation to pin
// near-curve vertices to the true surface.
func WithProjector(p repair.SurfaceProjector) Option {
	return func(c *Config) {
		c.Projector = p
	}
}

// WithNeedleLimits sets the smallest corner angle, in degrees, and the
// aspect ratio below which a triangle is a needle.
func WithNeedleLimits(minAngle, minAspect float64) Option {
	if minAngle < 0 || minAngle >= 60 {
		panic("WithNeedleLimits: minAngle must be in [0, 60)")
	}
	if minAspect < 0 {
		panic("WithNeedleLimits: minAspect must not be negative")
	}
	return func(c *Config) {
		c.MinAngle = minAngle
		c.MinAspect = minAspect
	}
}

// WithSwapAngle sets the corner angle, in degrees, above which the opposite
// edge is swapped.
func WithSwapAngle(a float64) Option {
	if a <= 90 || a > 180 {
		panic("WithSwapAngle: angle must be in (90, 180]")
	}
	return func(c *Config) {
		c.SwapAngle = a
	}
}

// WithRelax enables curve relaxation with the given passes and step
// fraction.
func WithRelax(passes int, fract float64) Option {
	if passes <= 0 {
		panic("WithRelax: passes must be positive")
	}
	if fract <= 0 || fract > 1 {
		panic("WithRelax: fract must be in (0, 1]")
	}
	return func(c *Config) {
		c.Relax = true
		c.RelaxPasses = passes
		c.RelaxFract = fract
	}
}

// WithTimeout bounds the duration of a Run.
func WithTimeout(d time.Duration) Option {
	if d < 0 {
		panic("WithTimeout: duration must not be negative")
	}
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithSVG installs a debug hook that receives a drawing of every planar
// split problem.
func WithSVG(fn func(body int, id mesh.TriID) io.Writer) Option {
	return func(c *Config) {
		c.SVG = fn
	}
}
