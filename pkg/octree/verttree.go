package octree

import (
	"math"

	"github.com/chazu/lignin-mesh/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// MaxVertItems is the leaf capacity of a VertTree node before it splits.
const MaxVertItems = 64

// Point is one vertex entry in a VertTree.
type Point struct {
	ID int
	P  v3.Vec
}

// VertTree is an octree over points with leaf boxes padded by a minimum
// size, so that a point near a leaf boundary is found from either side.
type VertTree struct {
	root    *vertNode
	minSize float64
}

type vertNode struct {
	box  sdf.Box3
	kids []*vertNode
	pts  []Point
}

// NewVertTree builds a tree over pts. Nodes stop splitting once their
// diagonal falls below minSize; leaf boxes are expanded by minSize.
func NewVertTree(pts []Point, minSize float64) *VertTree {
	t := &VertTree{minSize: minSize}
	if len(pts) > 0 {
		t.root = t.build(pts)
	}
	return t
}

// MinSize returns the leaf padding.
func (t *VertTree) MinSize() float64 {
	return t.minSize
}

func pointsBox(pts []Point) sdf.Box3 {
	b := sdf.Box3{Min: pts[0].P, Max: pts[0].P}
	for _, p := range pts[1:] {
		b.Min = b.Min.Min(p.P)
		b.Max = b.Max.Max(p.P)
	}
	return b
}

func (t *VertTree) build(pts []Point) *vertNode {
	box := pointsBox(pts)
	diag := box.Max.Sub(box.Min).Length()
	if len(pts) <= MaxVertItems || diag <= t.minSize {
		return &vertNode{box: geom.BoxExpand(box, t.minSize), pts: pts}
	}

	mid := box.Center()
	var oct [8][]Point
	for _, p := range pts {
		k := 0
		if p.P.X > mid.X {
			k += 1
		}
		if p.P.Y > mid.Y {
			k += 2
		}
		if p.P.Z > mid.Z {
			k += 4
		}
		oct[k] = append(oct[k], p)
	}
	for _, o := range oct {
		if len(o) == len(pts) {
			return &vertNode{box: geom.BoxExpand(box, t.minSize), pts: pts}
		}
	}

	n := &vertNode{}
	for _, o := range oct {
		if len(o) == 0 {
			continue
		}
		k := t.build(o)
		if len(n.kids) == 0 {
			n.box = k.box
		} else {
			n.box = geom.BoxUnion(n.box, k.box)
		}
		n.kids = append(n.kids, k)
	}
	return n
}

// Near calls fn for every point stored in a leaf whose padded box contains p.
// Callers apply the exact distance test.
func (t *VertTree) Near(p v3.Vec, fn func(id int)) {
	if t.root == nil {
		return
	}
	t.root.near(p, fn)
}

func (n *vertNode) near(p v3.Vec, fn func(id int)) {
	if !geom.BoxContains(n.box, p) {
		return
	}
	if len(n.kids) == 0 {
		for _, q := range n.pts {
			fn(q.ID)
		}
		return
	}
	for _, k := range n.kids {
		k.near(p, fn)
	}
}

// MinSizeFor returns the leaf padding used for a squared-distance merge
// tolerance.
func MinSizeFor(tol float64) float64 {
	return math.Sqrt(tol)
}
