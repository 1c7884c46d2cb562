package geometry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultPerimeterSamples is how many perimeter heights feed the background estimate
const DefaultPerimeterSamples = 40

// Subsample picks n evenly spaced values (including first and last) when
// there are more than n.
func Subsample(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	if n == 1 {
		return []float64{values[0]}
	}
	out := make([]float64, n)
	step := float64(len(values)-1) / float64(n-1)
	for i := range out {
		out[i] = values[int(float64(i)*step)]
	}
	return out
}

// ModeHeight bins the heights into min(10, n/2) equal-width bins and returns
// the center of the fullest bin. The first bin wins ties.
func ModeHeight(heights []float64) float64 {
	if len(heights) == 0 {
		return math.NaN()
	}

	x := make([]float64, len(heights))
	copy(x, heights)
	sort.Float64s(x)

	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	bins := min(10, len(x)/2)
	if bins < 1 {
		bins = 1
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)

	// The last bin is closed on the right
	dividers := make([]float64, len(edges))
	copy(dividers, edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, x, nil)
	best := floats.MaxIdx(counts)
	return (edges[best] + edges[best+1]) / 2.0
}
