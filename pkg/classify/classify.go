// Package classify decides, by ray parity, which leaf triangles lie inside
// the other bodies of a run, and turns those answers into keep or discard
// decisions for the Boolean operations.
package classify

import (
	"github.com/chazu/lignin-mesh/pkg/geom"
	"github.com/chazu/lignin-mesh/pkg/mesh"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Rule selects how inside flags become discard decisions.
type Rule int

const (
	// Plain discards a triangle inside any other positive body. Triangles
	// of negative bodies survive only inside a positive body and have their
	// normals flipped.
	Plain Rule = iota
	// Mass keeps every triangle; only the priority attribution matters.
	Mass
	// Union discards a triangle inside any other body.
	Union
	// Intersection discards a triangle unless it is inside exactly one other
	// body.
	Intersection
	// Subtract treats every body after the first as negative.
	Subtract
)

var ruleNames = map[Rule]string{
	Plain:        "plain",
	Mass:         "mass",
	Union:        "union",
	Intersection: "intersection",
	Subtract:     "subtract",
}

func (r Rule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return "unknown"
}

// DefaultDir is the ray direction used when none is given.
var DefaultDir = v3.Vec{X: 1}

// Stats counts classification work.
type Stats struct {
	Leaves      int // leaf triangles classified
	Rays        int // ray casts made
	HullRejects int // ray casts skipped by the convex hull test
	OnSurface   int // leaves lying on another mesh's surface
	Discarded   int // leaves marked Interior
	Flipped     int // leaves whose normals were flipped
}

// Classifier casts centroid rays from the leaves of each mesh against every
// other thick mesh.
type Classifier struct {
	Dir v3.Vec
	// Tol is the distance within which a centroid lies on a surface.
	Tol float64

	hulls map[*mesh.Mesh]*hull
	stats Stats
}

// New returns a Classifier casting along dir, or DefaultDir when dir is zero.
func New(dir v3.Vec) *Classifier {
	if dir == (v3.Vec{}) {
		dir = DefaultDir
	}
	return &Classifier{Dir: dir.Normalize(), Tol: mesh.HitTol, hulls: map[*mesh.Mesh]*hull{}}
}

// Stats returns the counters accumulated so far.
func (c *Classifier) Stats() Stats {
	return c.stats
}

// Inside reports, for each mesh, whether p lies inside it. Entry self and
// thin meshes are always false.
func (c *Classifier) Inside(meshes []*mesh.Mesh, self int, p v3.Vec) []bool {
	in := make([]bool, len(meshes))
	for i, m := range meshes {
		if i == self || m.Thin || len(m.Tris) == 0 {
			continue
		}
		if h := c.hull(m); h != nil && h.outside(p) {
			c.stats.HullRejects++
			continue
		}
		c.stats.Rays++
		in[i] = m.Inside(p, c.Dir)
	}
	return in
}

// Contacts reports, for each mesh, whether p lies on its surface and how a
// face with normal n at p is oriented against it. Entry self and thin meshes
// are always Off.
func (c *Classifier) Contacts(meshes []*mesh.Mesh, self int, p, n v3.Vec) []mesh.Contact {
	on := make([]mesh.Contact, len(meshes))
	box := geom.BoxExpand(sdf.Box3{Min: p, Max: p}, c.Tol)
	for i, m := range meshes {
		if i == self || m.Thin || len(m.Tris) == 0 {
			continue
		}
		m.TriTree().Query(box, func(id int) {
			if on[i] != mesh.Off {
				return
			}
			corners := m.Corners(m.Tri(mesh.TriID(id)))
			if !geom.OnTriangle(p, corners, c.Tol) {
				return
			}
			on[i] = mesh.Same
			if corners.Normal().Dot(n) < 0 {
				on[i] = mesh.Opposite
			}
		})
	}
	return on
}

// Classify fills Inside and On for every leaf triangle of every mesh and
// attributes each leaf to the highest-priority mesh containing it. A leaf
// inside no mesh belongs to its own. Equal priorities keep the earliest
// mesh. A leaf on a surface it faces the same way as counts as inside that
// mesh only when the mesh comes first.
func (c *Classifier) Classify(meshes []*mesh.Mesh) {
	for mi, m := range meshes {
		m.Leaves(func(_ mesh.TriID, t *mesh.Triangle) {
			c.stats.Leaves++
			t.Interior = false
			p := m.Corners(t).Centroid()
			t.Inside = c.Inside(meshes, mi, p)
			t.On = c.Contacts(meshes, mi, p, t.Norm)
			touching := false
			for i, on := range t.On {
				if on != mesh.Off {
					t.Inside[i] = on == mesh.Same && i < mi
					touching = true
				}
			}
			if touching {
				c.stats.OnSurface++
			}
			t.Owner = mi
			t.Density = m.Density
			prior := -1
			for i, in := range t.Inside {
				if in && meshes[i].Priority > prior {
					t.Owner = i
					t.Density = meshes[i].Density
					prior = meshes[i].Priority
				}
			}
		})
	}
}

// Apply turns the Inside flags left by Classify into Interior decisions
// under rule r, flipping the normals of kept negative leaves.
func (c *Classifier) Apply(meshes []*mesh.Mesh, r Rule) {
	for mi, m := range meshes {
		negative := isNegative(r, meshes, mi)
		m.Leaves(func(_ mesh.TriID, t *mesh.Triangle) {
			t.Interior = discard(r, meshes, mi, t.Inside, t.On)
			if t.Interior {
				c.stats.Discarded++
				return
			}
			if negative && (r == Plain || r == Subtract) {
				t.V[1], t.V[2] = t.V[2], t.V[1]
				t.Norm = t.Norm.Neg()
				c.stats.Flipped++
			}
		})
	}
}

// Run classifies every mesh and applies rule r.
func (c *Classifier) Run(meshes []*mesh.Mesh, r Rule) Stats {
	before := c.stats
	c.Classify(meshes)
	c.Apply(meshes, r)
	return Stats{
		Leaves:      c.stats.Leaves - before.Leaves,
		Rays:        c.stats.Rays - before.Rays,
		HullRejects: c.stats.HullRejects - before.HullRejects,
		OnSurface:   c.stats.OnSurface - before.OnSurface,
		Discarded:   c.stats.Discarded - before.Discarded,
		Flipped:     c.stats.Flipped - before.Flipped,
	}
}

func isNegative(r Rule, meshes []*mesh.Mesh, i int) bool {
	return meshes[i].Negative || (r == Subtract && i > 0)
}

// discard decides whether a leaf of meshes[self] is dropped under rule r.
func discard(r Rule, meshes []*mesh.Mesh, self int, inside []bool, on []mesh.Contact) bool {
	if r == Mass {
		return false
	}
	negative := isNegative(r, meshes, self)
	count, inPositive := 0, false
	for i, in := range inside {
		if i < len(on) && on[i] != mesh.Off {
			in = shared(r, on[i], i < self, negative, isNegative(r, meshes, i))
		}
		if !in {
			continue
		}
		count++
		if r == Union || r == Intersection {
			continue
		}
		if isNegative(r, meshes, i) {
			return true
		}
		inPositive = true
	}
	switch r {
	case Union:
		return count > 0
	case Intersection:
		return count != 1
	}
	if negative {
		return !inPositive
	}
	return inPositive
}

// shared reports whether a leaf lying on another body's surface counts as
// inside that body. Of two coincident faces of like bodies facing the same
// way only the earlier body's survives; facing each other, both go. A
// positive face on a negative body goes only when they face the same way,
// and a negative face on a positive body never counts as inside it.
func shared(r Rule, c mesh.Contact, earlier, negative, otherNegative bool) bool {
	switch {
	case negative == otherNegative:
		if c == mesh.Same {
			return earlier
		}
		return r != Intersection
	case otherNegative:
		return c == mesh.Same
	default:
		return false
	}
}
