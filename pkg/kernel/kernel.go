// Package kernel defines the body generators that feed the Boolean engine.
// A Kernel builds solids, combines them and tessellates them into the
// indexed triangle surfaces the engine consumes.
package kernel

import "github.com/deadsy/sdfx/sdf"

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() sdf.Box3
}

// Kernel builds and combines solids. Implementations are exact faceted
// (poly) or sampled from a distance field (sdfx).
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
