// Package poly implements kernel.Kernel with exact faceted solids. Boolean
// operations run through the mesh Boolean engine.
package poly

import (
	"fmt"
	"math"

	"github.com/chazu/lignin-mesh/pkg/engine"
	"github.com/chazu/lignin-mesh/pkg/kernel"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var _ kernel.Kernel = (*Kernel)(nil)

// MinSegments is the fewest facets around a cylinder.
const MinSegments = 3

// Solid is a closed faceted surface. A failed Boolean yields a Solid that
// carries the error; ToMesh returns it.
type Solid struct {
	m   *mesh.Mesh
	err error
}

// BoundingBox returns the axis-aligned bounding box.
func (s *Solid) BoundingBox() sdf.Box3 {
	if s.m == nil {
		return sdf.Box3{}
	}
	return s.m.Box()
}

// Mesh returns the solid's surface, or the error that produced it.
func (s *Solid) Mesh() (*mesh.Mesh, error) {
	return s.m, s.err
}

// Err returns the error carried by the solid, if any.
func (s *Solid) Err() error {
	return s.err
}

// Kernel builds faceted solids.
type Kernel struct {
	eng *engine.Engine
}

// New returns a Kernel whose Booleans run on an engine configured by opts.
func New(opts ...engine.Option) *Kernel {
	return &Kernel{eng: engine.New(opts...)}
}

func unwrap(s kernel.Solid) *Solid {
	return s.(*Solid)
}

// Box creates a box with its minimum corner at the origin.
func (k *Kernel) Box(x, y, z float64) kernel.Solid {
	return &Solid{m: mesh.Box("box", v3.Vec{}, v3.Vec{X: x, Y: y, Z: z})}
}

// Cylinder creates a prism of segments sides along Z, centered at the
// origin, inscribed in the circle of the given radius.
func (k *Kernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	if segments < MinSegments {
		segments = MinSegments
	}
	m := mesh.New("cylinder")
	h := height / 2
	bot := m.AddVertex(v3.Vec{Z: -h}, mesh.Original)
	top := m.AddVertex(v3.Vec{Z: h}, mesh.Original)
	ring := make([][2]mesh.VertID, segments)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(segments)
		x, y := radius*math.Cos(a), radius*math.Sin(a)
		ring[i] = [2]mesh.VertID{
			m.AddVertex(v3.Vec{X: x, Y: y, Z: -h}, mesh.Original),
			m.AddVertex(v3.Vec{X: x, Y: y, Z: h}, mesh.Original),
		}
	}
	for i := range ring {
		j := (i + 1) % segments
		m.AddTriangle(bot, ring[j][0], ring[i][0])
		m.AddTriangle(top, ring[i][1], ring[j][1])
		m.AddTriangle(ring[i][0], ring[j][0], ring[j][1])
		m.AddTriangle(ring[i][0], ring[j][1], ring[i][1])
	}
	return &Solid{m: m}
}

// Union returns the union of two solids.
func (k *Kernel) Union(a, b kernel.Solid) kernel.Solid {
	return k.boolean(a, b, engine.Union)
}

// Difference returns the difference a - b.
func (k *Kernel) Difference(a, b kernel.Solid) kernel.Solid {
	return k.boolean(a, b, engine.Subtract)
}

// Intersection returns the intersection of two solids.
func (k *Kernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return k.boolean(a, b, engine.Intersection)
}

func (k *Kernel) boolean(a, b kernel.Solid, op engine.Op) kernel.Solid {
	sa, sb := unwrap(a), unwrap(b)
	if sa.err != nil {
		return sa
	}
	if sb.err != nil {
		return sb
	}
	if empty(sa) || empty(sb) {
		return emptyBoolean(sa, sb, op)
	}
	res, err := k.eng.Run([]*mesh.Mesh{sa.m, sb.m}, op)
	if err != nil {
		return &Solid{err: fmt.Errorf("poly: %s: %w", op, err)}
	}
	if len(res.Mesh.Tris) == 0 {
		return &Solid{m: res.Mesh}
	}
	if errs := res.Report.Errors(); len(errs) > 0 {
		return &Solid{m: res.Mesh, err: fmt.Errorf("poly: %s: %d errors, first: %w", op, len(errs), errs[0])}
	}
	return &Solid{m: res.Mesh}
}

func empty(s *Solid) bool {
	return s.m == nil || len(s.m.Tris) == 0
}

// emptyBoolean combines two solids when at least one has no surface.
func emptyBoolean(a, b *Solid, op engine.Op) *Solid {
	switch op {
	case engine.Union:
		if empty(a) {
			return b
		}
		return a
	case engine.Subtract:
		return a
	default:
		return &Solid{m: mesh.New(op.String())}
	}
}

// Translate moves a solid by (x, y, z).
func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	return transform(s, sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *Kernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	return transform(s, sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad)))
}

func transform(s kernel.Solid, mat sdf.M44) kernel.Solid {
	src := unwrap(s)
	if src.err != nil {
		return src
	}
	m := src.m.Clone()
	m.Transform(mat)
	return &Solid{m: m}
}

// ToMesh returns the indexed surface of a solid.
func (k *Kernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	src := unwrap(s)
	if src.err != nil {
		return nil, src.err
	}
	return kernel.FromBody(src.m), nil
}
