package octree

import (
	"github.com/chazu/lignin-mesh/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// MaxTriItems is the leaf capacity of a TriTree node before it splits.
const MaxTriItems = 32

// Item is one triangle entry in a TriTree.
type Item struct {
	ID     int
	Box    sdf.Box3
	Anchor v3.Vec // point used to pick the octant, usually the first corner
}

// TriTree is an octree over triangle bounding boxes.
type TriTree struct {
	root  *triNode
	count int
}

type triNode struct {
	box   sdf.Box3
	kids  []*triNode
	items []Item
}

// NewTriTree builds a tree over the given items.
func NewTriTree(items []Item) *TriTree {
	t := &TriTree{count: len(items)}
	if len(items) == 0 {
		return t
	}
	t.root = buildTri(items)
	return t
}

// Len returns the number of indexed items.
func (t *TriTree) Len() int {
	return t.count
}

// Box returns the bounds of every indexed item.
func (t *TriTree) Box() sdf.Box3 {
	if t.root == nil {
		return sdf.Box3{}
	}
	return t.root.box
}

func itemsBox(items []Item) sdf.Box3 {
	b := items[0].Box
	for _, it := range items[1:] {
		b = geom.BoxUnion(b, it.Box)
	}
	return b
}

func buildTri(items []Item) *triNode {
	n := &triNode{box: itemsBox(items)}
	if len(items) <= MaxTriItems {
		n.items = items
		return n
	}

	mid := n.box.Center()
	var oct [8][]Item
	for _, it := range items {
		k := 0
		if it.Anchor.X > mid.X {
			k += 1
		}
		if it.Anchor.Y > mid.Y {
			k += 2
		}
		if it.Anchor.Z > mid.Z {
			k += 4
		}
		oct[k] = append(oct[k], it)
	}
	for _, o := range oct {
		// No progress: everything landed in one octant.
		if len(o) == len(items) {
			n.items = items
			return n
		}
	}
	for _, o := range oct {
		if len(o) > 0 {
			n.kids = append(n.kids, buildTri(o))
		}
	}
	return n
}

// Pairs calls fn for every pair of items (one from a, one from b) whose
// boxes overlap. Descent is nested: internal nodes are expanded against each
// other until both sides are leaves.
func Pairs(a, b *TriTree, fn func(i, j int)) {
	if a.root == nil || b.root == nil {
		return
	}
	pairs(a.root, b.root, fn)
}

func pairs(a, b *triNode, fn func(i, j int)) {
	if !geom.BoxOverlap(a.box, b.box) {
		return
	}
	switch {
	case len(a.kids) > 0 && len(b.kids) > 0:
		for _, ka := range a.kids {
			for _, kb := range b.kids {
				pairs(ka, kb, fn)
			}
		}
	case len(a.kids) > 0:
		for _, ka := range a.kids {
			pairs(ka, b, fn)
		}
	case len(b.kids) > 0:
		for _, kb := range b.kids {
			pairs(a, kb, fn)
		}
	default:
		for _, ia := range a.items {
			for _, ib := range b.items {
				if geom.BoxOverlap(ia.Box, ib.Box) {
					fn(ia.ID, ib.ID)
				}
			}
		}
	}
}

// Ray calls fn for every item whose box is crossed by the ray.
func (t *TriTree) Ray(orig, dir v3.Vec, fn func(id int)) {
	if t.root == nil {
		return
	}
	t.root.ray(orig, dir, fn)
}

func (n *triNode) ray(orig, dir v3.Vec, fn func(id int)) {
	if !geom.RayBox(orig, dir, n.box) {
		return
	}
	for _, k := range n.kids {
		k.ray(orig, dir, fn)
	}
	for _, it := range n.items {
		if geom.RayBox(orig, dir, it.Box) {
			fn(it.ID)
		}
	}
}

// Query calls fn for every item whose box overlaps b.
func (t *TriTree) Query(b sdf.Box3, fn func(id int)) {
	if t.root == nil {
		return
	}
	t.root.query(b, fn)
}

func (n *triNode) query(b sdf.Box3, fn func(id int)) {
	if !geom.BoxOverlap(n.box, b) {
		return
	}
	for _, k := range n.kids {
		k.query(b, fn)
	}
	for _, it := range n.items {
		if geom.BoxOverlap(it.Box, b) {
			fn(it.ID)
		}
	}
}
