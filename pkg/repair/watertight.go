package repair

import (
	"github.com/chazu/lignin-mesh/pkg/consolidate"
	"github.com/chazu/lignin-mesh/pkg/mesh"
)

// DefaultIterations bounds the WaterTight loop.
const DefaultIterations = 10

// Options tunes WaterTight.
type Options struct {
	Iterations int
	MinAngle   float64
	MinAspect  float64
	SwapAngle  float64
	MergeTol   float64 // squared distance
	MinEdge    float64
}

// DefaultOptions returns the standard repair settings.
func DefaultOptions() Options {
	return Options{
		Iterations: DefaultIterations,
		MinAngle:   DefaultMinAngle,
		MinAspect:  DefaultMinAspect,
		SwapAngle:  DefaultSwapAngle,
		MergeTol:   consolidate.DefaultTol,
		MinEdge:    consolidate.DefaultMinEdge,
	}
}

// Stats totals the work of a WaterTight run.
type Stats struct {
	Iterations int
	Needles    int
	Swaps      int
	Merged     int
	Collapsed  int
	ShortEdges int
}

func (s *Stats) add(c consolidate.Stats) {
	s.Merged += c.Merged
	s.Collapsed += c.Collapsed
	s.ShortEdges += c.ShortEdges
}

// WaterTight welds m, then repeats needle collapse, consolidation, edge
// swapping, needle collapse and consolidation until an iteration changes
// nothing or the iteration bound is reached.
func WaterTight(m *mesh.Mesh, o Options) Stats {
	var st Stats
	weld := func() int {
		c := consolidate.Run(m, o.MergeTol, o.MinEdge)
		st.add(c)
		return c.Merged + c.Collapsed + c.ShortEdges
	}
	weld()
	for st.Iterations < o.Iterations {
		st.Iterations++
		changed := 0
		n := TagNeedles(m, o.MinAngle, o.MinAspect, true)
		changed += n + weld()
		s := SwapEdges(m, o.SwapAngle)
		n2 := TagNeedles(m, o.MinAngle, o.MinAspect, true)
		changed += s + n2 + weld()
		st.Needles += n + n2
		st.Swaps += s
		if changed == 0 {
			break
		}
	}
	return st
}
