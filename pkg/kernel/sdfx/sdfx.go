// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library. Surfaces are sampled by
// marching cubes, so they approximate the solid; Projector pins vertices
// back onto the exact zero set.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/lignin-mesh/pkg/kernel"
	"github.com/chazu/lignin-mesh/pkg/repair"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var (
	_ kernel.Kernel           = (*SdfxKernel)(nil)
	_ repair.SurfaceProjector = (*Surface)(nil)
)

// DefaultMeshCells controls marching cubes tessellation resolution along
// the longest axis.
const DefaultMeshCells = 200

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() sdf.Box3 {
	return s.s.BoundingBox()
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	// Cells is the marching cubes resolution along the longest axis.
	Cells int
}

// New returns a new SdfxKernel at DefaultMeshCells resolution.
func New() *SdfxKernel {
	return &SdfxKernel{Cells: DefaultMeshCells}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Solid.
func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

// wrap creates a kernel.Solid from an sdf.SDF3.
func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Box creates a box with the given dimensions and its minimum corner at
// the origin. sdf.Box3D centers the box, so it is shifted by half the
// dimensions.
func (k *SdfxKernel) Box(x, y, z float64) kernel.Solid {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Box3D: %v", err))
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return wrap(sdf.Transform3D(s, m))
}

// Cylinder creates a cylinder along Z centered at the origin. The segments
// parameter is ignored since SDF represents smooth surfaces.
func (k *SdfxKernel) Cylinder(height, radius float64, segments int) kernel.Solid {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		panic(fmt.Sprintf("sdfx.Cylinder3D: %v", err))
	}
	return wrap(s)
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by (x, y, z).
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) kernel.Solid {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z axes.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	xRad := x * math.Pi / 180.0
	yRad := y * math.Pi / 180.0
	zRad := z * math.Pi / 180.0

	m := sdf.RotateZ(zRad).Mul(sdf.RotateY(yRad)).Mul(sdf.RotateX(xRad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh samples a solid with marching cubes. Every triangle carries its
// own three vertices.
func (k *SdfxKernel) ToMesh(s kernel.Solid) (*kernel.Mesh, error) {
	cells := k.Cells
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(unwrap(s), renderer)

	vertices := make([]float64, 0, len(triangles)*9)
	indices := make([]uint32, 0, len(triangles)*3)

	for i, tri := range triangles {
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, v.X, v.Y, v.Z)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Indices:  indices,
	}, nil
}

// Surface projects points onto the zero set of a distance field.
type Surface struct {
	s     sdf.SDF3
	step  float64 // finite difference step
	tol   float64
	iters int
}

// Projector returns a Surface for s. Steps and tolerances scale with the
// solid's bounding box.
func (k *SdfxKernel) Projector(s kernel.Solid) *Surface {
	f := unwrap(s)
	diag := f.BoundingBox().Size().Length()
	return &Surface{s: f, step: 1e-6 * diag, tol: 1e-9 * diag, iters: 16}
}

// Project moves p along the field gradient until it lies on the surface.
// It reports false if the iteration does not converge.
func (sf *Surface) Project(p v3.Vec) (v3.Vec, bool) {
	for i := 0; i < sf.iters; i++ {
		d := sf.s.Evaluate(p)
		if math.Abs(d) <= sf.tol {
			return p, true
		}
		g := sf.gradient(p)
		l2 := g.Length2()
		if l2 == 0 {
			return p, false
		}
		p = p.Sub(g.MulScalar(d / l2))
	}
	return p, math.Abs(sf.s.Evaluate(p)) <= sf.tol
}

func (sf *Surface) gradient(p v3.Vec) v3.Vec {
	h := sf.step
	dx := v3.Vec{X: h}
	dy := v3.Vec{Y: h}
	dz := v3.Vec{Z: h}
	return v3.Vec{
		X: sf.s.Evaluate(p.Add(dx)) - sf.s.Evaluate(p.Sub(dx)),
		Y: sf.s.Evaluate(p.Add(dy)) - sf.s.Evaluate(p.Sub(dy)),
		Z: sf.s.Evaluate(p.Add(dz)) - sf.s.Evaluate(p.Sub(dz)),
	}.DivScalar(2 * h)
}
