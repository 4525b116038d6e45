// Package cdt is a small constrained Delaunay triangulator for the planar
// point sets produced when a triangle is flattened for re-triangulation.
//
// Points are inserted one at a time into a bounding super-triangle with
// Lawson flips, constraint segments are recovered by flipping the edges
// that cross them, and a final bounded pass restores the Delaunay property
// away from constraints. Every loop has an explicit flip budget.
package cdt

import (
	"errors"
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

const (
	defaultEps      = 1e-10
	defaultMaxFlips = 10000

	// superSize is the half-width of the super-triangle in normalized units.
	superSize = 100.0
)

var (
	// ErrBadSegment is returned for a constraint that references a point
	// outside the input.
	ErrBadSegment = errors.New("cdt: segment index out of range")
	// ErrConstraint is returned when a constraint cannot be recovered within
	// the flip budget, usually because it crosses another constraint.
	ErrConstraint = errors.New("cdt: constraint could not be recovered")
)

// Result is a triangulation. Points holds the input points followed by any
// Steiner points the triangulator introduced; Tris are counter-clockwise
// index triples into Points.
type Result struct {
	Points []r2.Point
	Tris   [][3]int
}

// Triangulator triangulates a planar point set subject to constraint
// segments given as index pairs.
type Triangulator interface {
	Triangulate(pts []r2.Point, segs [][2]int) (Result, error)
}

// Options configures a Delaunay triangulator.
type Options struct {
	Eps      float64
	MaxFlips int
}

// Option sets a field of Options.
type Option func(*Options)

// WithEps sets the orientation tolerance, in units of the normalized
// point-set extent.
func WithEps(eps float64) Option {
	if eps <= 0 {
		panic("WithEps: eps must be positive")
	}
	return func(o *Options) {
		o.Eps = eps
	}
}

// WithMaxFlips bounds the number of edge flips per phase.
func WithMaxFlips(n int) Option {
	if n <= 0 {
		panic("WithMaxFlips: n must be positive")
	}
	return func(o *Options) {
		o.MaxFlips = n
	}
}

// Delaunay is the incremental constrained Delaunay triangulator.
type Delaunay struct {
	opts Options
}

var _ Triangulator = (*Delaunay)(nil)

// New returns a triangulator configured by setters.
func New(setters ...Option) *Delaunay {
	opts := Options{Eps: defaultEps, MaxFlips: defaultMaxFlips}
	for _, set := range setters {
		set(&opts)
	}
	return &Delaunay{opts: opts}
}

// Triangulate implements Triangulator. Fewer than three points yield an
// empty result. Exact duplicate points are merged onto their first
// occurrence. The error is non-nil only for out-of-range segments or an
// unrecoverable constraint; in the latter case the returned result still
// holds a valid, unconstrained triangulation.
func (d *Delaunay) Triangulate(pts []r2.Point, segs [][2]int) (Result, error) {
	res := Result{Points: pts}
	for _, s := range segs {
		if s[0] < 0 || s[0] >= len(pts) || s[1] < 0 || s[1] >= len(pts) {
			return res, ErrBadSegment
		}
	}
	if len(pts) < 3 {
		return res, nil
	}

	s := newState(pts, d.opts)
	for i := range pts {
		if s.alias[i] == i {
			s.insert(i)
		}
	}

	var cerr error
	for _, seg := range segs {
		a, b := s.alias[seg[0]], s.alias[seg[1]]
		if a == b {
			continue
		}
		if err := s.constrain(a, b); err != nil {
			cerr = err
		}
	}
	s.restore()

	for _, t := range s.tris {
		if t[0] >= s.n || t[1] >= s.n || t[2] >= s.n {
			continue
		}
		if s.orient(t[0], t[1], t[2]) <= 0 {
			continue
		}
		res.Tris = append(res.Tris, t)
	}
	return res, cerr
}

// state is the working triangulation over normalized points plus three
// super-triangle vertices at indices n, n+1, n+2.
type state struct {
	n      int
	p      []r2.Point
	alias  []int
	tris   [][3]int
	fixed  map[[2]int]bool
	eps    float64
	budget int
}

func newState(pts []r2.Point, opts Options) *state {
	n := len(pts)
	rect := r2.RectFromPoints(pts...)
	c := rect.Center()
	sz := rect.Size()
	scale := math.Max(sz.X, sz.Y) / 2
	if scale == 0 {
		scale = 1
	}

	s := &state{
		n:      n,
		p:      make([]r2.Point, n, n+3),
		alias:  make([]int, n),
		fixed:  map[[2]int]bool{},
		eps:    opts.Eps,
		budget: opts.MaxFlips,
	}
	first := map[r2.Point]int{}
	for i, p := range pts {
		s.p[i] = p.Sub(c).Mul(1 / scale)
		if j, ok := first[p]; ok {
			s.alias[i] = j
			continue
		}
		first[p] = i
		s.alias[i] = i
	}
	s.p = append(s.p,
		r2.Point{X: -superSize, Y: -superSize},
		r2.Point{X: superSize, Y: -superSize},
		r2.Point{X: 0, Y: superSize},
	)
	s.tris = [][3]int{{n, n + 1, n + 2}}
	return s
}

func key(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func (s *state) orient(a, b, c int) float64 {
	pa, pb, pc := s.p[a], s.p[b], s.p[c]
	return pb.Sub(pa).Cross(pc.Sub(pa))
}

// inCircle is positive when d lies inside the circumcircle of the
// counter-clockwise triangle abc.
func (s *state) inCircle(a, b, c, d int) float64 {
	pd := s.p[d]
	ad, bd, cd := s.p[a].Sub(pd), s.p[b].Sub(pd), s.p[c].Sub(pd)
	return ad.Dot(ad)*bd.Cross(cd) + bd.Dot(bd)*cd.Cross(ad) + cd.Dot(cd)*ad.Cross(bd)
}

// find returns the triangle holding the directed edge a->b and its apex.
func (s *state) find(a, b int) (ti, apex int) {
	for i, t := range s.tris {
		for k := 0; k < 3; k++ {
			if t[k] == a && t[(k+1)%3] == b {
				return i, t[(k+2)%3]
			}
		}
	}
	return -1, -1
}

func (s *state) hasEdge(a, b int) bool {
	if ti, _ := s.find(a, b); ti >= 0 {
		return true
	}
	ti, _ := s.find(b, a)
	return ti >= 0
}

// insert adds point i, splitting the containing triangle or, when the
// point lies on an edge, the two triangles sharing it.
func (s *state) insert(i int) {
	for ti, t := range s.tris {
		var o [3]float64
		outside := false
		for k := 0; k < 3; k++ {
			a, b := t[k], t[(k+1)%3]
			o[k] = s.orient(a, b, i) / s.p[b].Sub(s.p[a]).Norm()
			if o[k] < -s.eps {
				outside = true
				break
			}
		}
		if outside {
			continue
		}
		onEdge := -1
		for k := 0; k < 3; k++ {
			if math.Abs(o[k]) <= s.eps {
				if onEdge >= 0 {
					// On the vertex shared by both edges.
					if t[(onEdge+1)%3] == t[k] {
						s.alias[i] = t[k]
					} else {
						s.alias[i] = t[onEdge]
					}
					return
				}
				onEdge = k
			}
		}
		if onEdge >= 0 {
			s.splitEdge(ti, onEdge, i)
		} else {
			s.split3(ti, i)
		}
		return
	}
}

func (s *state) split3(ti, p int) {
	a, b, c := s.tris[ti][0], s.tris[ti][1], s.tris[ti][2]
	s.tris[ti] = [3]int{a, b, p}
	s.tris = append(s.tris, [3]int{b, c, p}, [3]int{c, a, p})
	s.legalize(p, a, b)
	s.legalize(p, b, c)
	s.legalize(p, c, a)
}

func (s *state) splitEdge(ti, k, p int) {
	t := s.tris[ti]
	a, b, c := t[k], t[(k+1)%3], t[(k+2)%3]
	tj, d := s.find(b, a)

	s.tris[ti] = [3]int{a, p, c}
	s.tris = append(s.tris, [3]int{p, b, c})
	if tj >= 0 {
		s.tris[tj] = [3]int{b, p, d}
		s.tris = append(s.tris, [3]int{p, a, d})
	}
	if s.fixed[key(a, b)] {
		delete(s.fixed, key(a, b))
		s.fixed[key(a, p)] = true
		s.fixed[key(p, b)] = true
	}
	s.legalize(p, c, a)
	s.legalize(p, b, c)
	if tj >= 0 {
		s.legalize(p, d, b)
		s.legalize(p, a, d)
	}
}

// legalize restores the Delaunay property across edge u->v of the triangle
// (u, v, p), flipping and recursing while the opposite apex is inside the
// circumcircle.
func (s *state) legalize(p, u, v int) {
	type edge struct{ u, v int }
	stack := []edge{{u, v}}
	for len(stack) > 0 && s.budget > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.fixed[key(e.u, e.v)] {
			continue
		}
		ti, apex := s.find(e.u, e.v)
		if ti < 0 || apex != p {
			continue
		}
		tj, w := s.find(e.v, e.u)
		if tj < 0 {
			continue
		}
		if s.inCircle(e.u, e.v, p, w) <= s.eps {
			continue
		}
		s.tris[ti] = [3]int{p, e.u, w}
		s.tris[tj] = [3]int{p, w, e.v}
		s.budget--
		stack = append(stack, edge{e.u, w}, edge{w, e.v})
	}
}

// crosses reports whether segment ab properly crosses segment uv.
func (s *state) crosses(a, b, u, v int) bool {
	if a == u || a == v || b == u || b == v {
		return false
	}
	o1 := s.orient(a, b, u)
	o2 := s.orient(a, b, v)
	o3 := s.orient(u, v, a)
	o4 := s.orient(u, v, b)
	return ((o1 > s.eps && o2 < -s.eps) || (o1 < -s.eps && o2 > s.eps)) &&
		((o3 > s.eps && o4 < -s.eps) || (o3 < -s.eps && o4 > s.eps))
}

// onSegment returns the points other than a and b lying on segment ab,
// ordered from a to b.
func (s *state) onSegment(a, b int) []int {
	ab := s.p[b].Sub(s.p[a])
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return nil
	}
	l := math.Sqrt(l2)
	type hit struct {
		i int
		t float64
	}
	var hits []hit
	for i := 0; i < s.n; i++ {
		if i == a || i == b || s.alias[i] != i {
			continue
		}
		if math.Abs(s.orient(a, b, i))/l > s.eps {
			continue
		}
		t := s.p[i].Sub(s.p[a]).Dot(ab) / l2
		if t > 0 && t < 1 {
			hits = append(hits, hit{i, t})
		}
	}
	sort.Slice(hits, func(x, y int) bool { return hits[x].t < hits[y].t })
	out := make([]int, len(hits))
	for k, h := range hits {
		out[k] = h.i
	}
	return out
}

// constrain forces segment ab into the triangulation. A point lying on the
// segment splits it into sub-constraints.
func (s *state) constrain(a, b int) error {
	if mid := s.onSegment(a, b); len(mid) > 0 {
		chain := append(append([]int{a}, mid...), b)
		var err error
		for k := 0; k+1 < len(chain); k++ {
			if e := s.constrain(chain[k], chain[k+1]); e != nil {
				err = e
			}
		}
		return err
	}
	if s.hasEdge(a, b) {
		s.fixed[key(a, b)] = true
		return nil
	}

	// Sloan's method: flip crossing edges whose quads are convex, requeueing
	// those that still cross.
	var queue [][2]int
	seen := map[[2]int]bool{}
	for _, t := range s.tris {
		for k := 0; k < 3; k++ {
			u, v := t[k], t[(k+1)%3]
			if seen[key(u, v)] {
				continue
			}
			seen[key(u, v)] = true
			if s.crosses(a, b, u, v) {
				if s.fixed[key(u, v)] {
					return ErrConstraint
				}
				queue = append(queue, [2]int{u, v})
			}
		}
	}

	stalls := 0
	for len(queue) > 0 && s.budget > 0 {
		e := queue[0]
		queue = queue[1:]
		u, v := e[0], e[1]
		ti, x := s.find(u, v)
		tj, y := s.find(v, u)
		if ti < 0 || tj < 0 {
			return ErrConstraint
		}
		if !s.convex(u, y, v, x) {
			queue = append(queue, e)
			stalls++
			if stalls > len(queue) {
				return ErrConstraint
			}
			continue
		}
		stalls = 0
		s.tris[ti] = [3]int{x, u, y}
		s.tris[tj] = [3]int{y, v, x}
		s.budget--
		if s.crosses(a, b, x, y) {
			queue = append(queue, [2]int{x, y})
		}
	}
	if !s.hasEdge(a, b) {
		return ErrConstraint
	}
	s.fixed[key(a, b)] = true
	return nil
}

// convex reports whether the counter-clockwise quad abcd is strictly convex.
func (s *state) convex(a, b, c, d int) bool {
	return s.orient(a, b, c) > 0 && s.orient(b, c, d) > 0 &&
		s.orient(c, d, a) > 0 && s.orient(d, a, b) > 0
}

// restore flips non-constrained, locally non-Delaunay edges until none
// remain or the budget runs out.
func (s *state) restore() {
	for changed := true; changed && s.budget > 0; {
		changed = false
		for ti := range s.tris {
			t := s.tris[ti]
			for k := 0; k < 3; k++ {
				u, v, p := t[k], t[(k+1)%3], t[(k+2)%3]
				if s.fixed[key(u, v)] {
					continue
				}
				tj, w := s.find(v, u)
				if tj < 0 || s.inCircle(u, v, p, w) <= s.eps || !s.convex(u, w, v, p) {
					continue
				}
				s.tris[ti] = [3]int{p, u, w}
				s.tris[tj] = [3]int{p, w, v}
				s.budget--
				changed = true
				break
			}
			if s.budget <= 0 {
				return
			}
		}
	}
}
