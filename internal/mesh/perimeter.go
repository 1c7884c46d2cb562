package mesh

import (
	"sort"

	"github.com/philipparndt/smithforge/internal/geometry"
)

// perimeterTolerance is how close to the XY hull boundary a vertex must be
// to count as a perimeter vertex, in millimeters
const perimeterTolerance = 0.5

// PerimeterSource tells which strategy found the perimeter heights
type PerimeterSource string

const (
	PerimeterBoundaryEdges PerimeterSource = "boundary-edges"
	PerimeterHull          PerimeterSource = "hull"
	PerimeterTopBand       PerimeterSource = "top-band"
	PerimeterMaxZ          PerimeterSource = "max-z"
)

// PerimeterResult describes a background height estimate
type PerimeterResult struct {
	Height  float64
	Source  PerimeterSource
	Found   int // perimeter vertices before subsampling
	Sampled int
	MinZ    float64
	MaxZ    float64
}

// BoundaryVertices returns the sorted indices of vertices that lie on an edge
// used by exactly one face
func (m *Mesh) BoundaryVertices() []int {
	type edge struct{ a, b int }
	counts := make(map[edge]int, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			a, b := f[i], f[(i+1)%3]
			if a > b {
				a, b = b, a
			}
			counts[edge{a, b}]++
		}
	}

	seen := make(map[int]struct{})
	for e, n := range counts {
		if n == 1 {
			seen[e.a] = struct{}{}
			seen[e.b] = struct{}{}
		}
	}

	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// PerimeterHeight estimates the background height of a relief by sampling the
// Z values along its outline and taking the most common one.
func (m *Mesh) PerimeterHeight(samples int) (PerimeterResult, error) {
	box, err := m.Bounds()
	if err != nil {
		return PerimeterResult{}, err
	}

	var (
		heights []float64
		source  PerimeterSource
	)

	if boundary := m.BoundaryVertices(); len(boundary) > 0 {
		source = PerimeterBoundaryEdges
		for _, i := range boundary {
			heights = append(heights, m.Vertices[i].Z)
		}
	} else if hull := m.Hull(); !hull.Empty() {
		source = PerimeterHull
		for i, p := range m.XY() {
			if hull.DistanceToBoundary(p) < perimeterTolerance {
				heights = append(heights, m.Vertices[i].Z)
			}
		}
	} else {
		source = PerimeterTopBand
		threshold := box.MaxZ - 0.1*box.Depth()
		for _, v := range m.Vertices {
			if v.Z > threshold {
				heights = append(heights, v.Z)
			}
		}
	}

	if len(heights) == 0 {
		return PerimeterResult{Height: box.MaxZ, Source: PerimeterMaxZ}, nil
	}

	res := PerimeterResult{Source: source, Found: len(heights)}
	heights = geometry.Subsample(heights, samples)
	res.Sampled = len(heights)
	res.MinZ, res.MaxZ = heights[0], heights[0]
	for _, h := range heights {
		res.MinZ = min(res.MinZ, h)
		res.MaxZ = max(res.MaxZ, h)
	}
	res.Height = geometry.ModeHeight(heights)
	return res, nil
}

// BoundaryLoops returns the closed loops of open edges, each in the winding
// order of the faces next to it. Loops passing a vertex with more than one
// open edge leaving it are skipped.
func (m *Mesh) BoundaryLoops() [][]int {
	type edge struct{ a, b int }
	directed := make(map[edge]int, len(m.Faces)*3)
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			directed[edge{f[i], f[(i+1)%3]}]++
		}
	}

	next := make(map[int][]int)
	for e, n := range directed {
		if n == 1 && directed[edge{e.b, e.a}] == 0 {
			next[e.a] = append(next[e.a], e.b)
		}
	}

	starts := make([]int, 0, len(next))
	for v := range next {
		starts = append(starts, v)
	}
	sort.Ints(starts)

	used := make(map[int]bool, len(next))
	var loops [][]int
	for _, start := range starts {
		if used[start] {
			continue
		}
		loop := []int{start}
		closed := false
		for v := start; ; {
			out := next[v]
			if len(out) != 1 {
				break
			}
			v = out[0]
			if v == start {
				closed = true
				break
			}
			if used[v] || len(loop) > len(next) {
				break
			}
			loop = append(loop, v)
		}
		for _, v := range loop {
			used[v] = true
		}
		if closed && len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}
