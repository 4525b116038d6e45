// Package tessellate walks an assembly tree of placed primitives and
// produces one engine body per primitive using a geometry kernel.
package tessellate

import (
	"errors"
	"fmt"

	"github.com/chazu/lignin-mesh/pkg/kernel"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrEmptyPart is returned when a primitive tessellates to no triangles.
var ErrEmptyPart = errors.New("tessellate: part has no triangles")

// Kind is the role of a node in the assembly tree.
type Kind int

const (
	KindPrimitive Kind = iota
	KindTransform
	KindGroup
)

// Shape selects a primitive solid.
type Shape int

const (
	ShapeBox Shape = iota
	ShapeCylinder
)

func (s Shape) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapeCylinder:
		return "cylinder"
	}
	return "unknown"
}

// Primitive describes one solid body and the attributes it carries into
// the engine.
type Primitive struct {
	Shape    Shape
	Size     v3.Vec // box dimensions
	Height   float64
	Radius   float64
	Segments int

	Density  float64
	Priority int
	Negative bool
	Thin     bool
}

// Node is an assembly tree node. Primitive nodes carry Prim; transform
// nodes carry Translation and Rotation (Euler degrees) applied to their
// children; group nodes only collect children.
type Node struct {
	Kind        Kind
	Name        string
	Prim        *Primitive
	Translation *v3.Vec
	Rotation    *v3.Vec
	Children    []*Node
}

// placement is one level of the transform stack.
type placement struct {
	translation v3.Vec
	rotation    v3.Vec
}

// transformStack accumulates spatial transforms during tree traversal.
type transformStack struct {
	levels []placement
}

func (ts *transformStack) push(p placement) {
	ts.levels = append(ts.levels, p)
}

func (ts *transformStack) pop() {
	if len(ts.levels) > 0 {
		ts.levels = ts.levels[:len(ts.levels)-1]
	}
}

// apply places s by every level, innermost first: rotate, then translate.
func (ts *transformStack) apply(k kernel.Kernel, s kernel.Solid) kernel.Solid {
	for i := len(ts.levels) - 1; i >= 0; i-- {
		l := ts.levels[i]
		if l.rotation != (v3.Vec{}) {
			s = k.Rotate(s, l.rotation.X, l.rotation.Y, l.rotation.Z)
		}
		if l.translation != (v3.Vec{}) {
			s = k.Translate(s, l.translation.X, l.translation.Y, l.translation.Z)
		}
	}
	return s
}

// Tessellate walks the tree and produces one body per primitive using the
// provided geometry kernel, in depth-first order. The tree is not mutated.
func Tessellate(roots []*Node, k kernel.Kernel) ([]*mesh.Mesh, error) {
	var bodies []*mesh.Mesh
	ts := &transformStack{}

	for i, root := range roots {
		if root == nil {
			continue
		}
		collected, err := walkNode(k, root, ts)
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %d: %w", i, err)
		}
		bodies = append(bodies, collected...)
	}

	return bodies, nil
}

// walkNode recursively traverses a node and its children, collecting bodies.
func walkNode(k kernel.Kernel, n *Node, ts *transformStack) ([]*mesh.Mesh, error) {
	switch n.Kind {
	case KindPrimitive:
		return handlePrimitive(k, n, ts)

	case KindTransform:
		var p placement
		if n.Translation != nil {
			p.translation = *n.Translation
		}
		if n.Rotation != nil {
			p.rotation = *n.Rotation
		}
		ts.push(p)
		defer ts.pop()
		return walkChildren(k, n, ts)

	case KindGroup:
		return walkChildren(k, n, ts)

	default:
		return nil, fmt.Errorf("node %q: unknown node kind: %v", n.Name, n.Kind)
	}
}

func walkChildren(k kernel.Kernel, n *Node, ts *transformStack) ([]*mesh.Mesh, error) {
	var bodies []*mesh.Mesh
	for _, child := range n.Children {
		collected, err := walkNode(k, child, ts)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, collected...)
	}
	return bodies, nil
}

// handlePrimitive creates the body of a primitive node.
func handlePrimitive(k kernel.Kernel, n *Node, ts *transformStack) ([]*mesh.Mesh, error) {
	p := n.Prim
	if p == nil {
		return nil, fmt.Errorf("primitive node %q has no primitive", n.Name)
	}

	var solid kernel.Solid
	switch p.Shape {
	case ShapeBox:
		solid = k.Box(p.Size.X, p.Size.Y, p.Size.Z)
	case ShapeCylinder:
		solid = k.Cylinder(p.Height, p.Radius, p.Segments)
	default:
		return nil, fmt.Errorf("primitive node %q has unsupported shape %v", n.Name, p.Shape)
	}
	solid = ts.apply(k, solid)

	km, err := k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for node %q: %w", n.Name, err)
	}
	km.PartName = n.Name
	if km.PartName == "" {
		km.PartName = p.Shape.String()
	}

	body, err := km.Body()
	if err != nil {
		return nil, fmt.Errorf("tessellate: node %q: %w", km.PartName, err)
	}
	if len(body.Tris) == 0 {
		return nil, fmt.Errorf("tessellate: node %q: %w", km.PartName, ErrEmptyPart)
	}
	body.Density = p.Density
	body.Priority = p.Priority
	body.Negative = p.Negative
	body.Thin = p.Thin

	return []*mesh.Mesh{body}, nil
}
