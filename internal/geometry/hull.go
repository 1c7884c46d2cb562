package geometry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Polygon is a closed 2D polygon given by its vertices in counter-clockwise order.
// The closing edge from the last to the first vertex is implicit.
type Polygon []r2.Vec

// ConvexHull returns the convex hull of the points using Andrew's monotone chain.
// Collinear points on the hull boundary are dropped. Fewer than three
// non-collinear points yield an empty polygon.
func ConvexHull(points []r2.Vec) Polygon {
	if len(points) < 3 {
		return nil
	}

	pts := make([]r2.Vec, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]r2.Vec, 0, 2*len(pts))

	// Lower hull
	for _, p := range pts {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Upper hull
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// The last point equals the first one
	hull = hull[:len(hull)-1]
	if len(hull) < 3 {
		return nil
	}
	return Polygon(hull)
}

// turn is positive for a counter-clockwise turn o->a->b
func turn(o, a, b r2.Vec) float64 {
	return r2.Cross(r2.Sub(a, o), r2.Sub(b, o))
}

// Empty reports whether the polygon encloses no area
func (p Polygon) Empty() bool {
	return len(p) < 3 || p.Area() == 0
}

// Area returns the enclosed area (shoelace formula)
func (p Polygon) Area() float64 {
	if len(p) < 3 {
		return 0
	}
	var sum float64
	for i := range p {
		sum += r2.Cross(p[i], p[(i+1)%len(p)])
	}
	return math.Abs(sum) / 2
}

// Contains reports whether pt lies inside or on the boundary of the convex polygon
func (p Polygon) Contains(pt r2.Vec) bool {
	if len(p) < 3 {
		return false
	}
	const eps = 1e-9
	for i := range p {
		if turn(p[i], p[(i+1)%len(p)], pt) < -eps {
			return false
		}
	}
	return true
}

// ContainsPolygon reports whether every vertex of o lies inside p
func (p Polygon) ContainsPolygon(o Polygon) bool {
	if len(o) == 0 {
		return false
	}
	for _, v := range o {
		if !p.Contains(v) {
			return false
		}
	}
	return true
}

// DistanceToBoundary returns the distance from pt to the closest polygon edge
func (p Polygon) DistanceToBoundary(pt r2.Vec) float64 {
	best := math.Inf(1)
	for i := range p {
		best = math.Min(best, segmentDistance(p[i], p[(i+1)%len(p)], pt))
	}
	return best
}

func segmentDistance(a, b, pt r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Norm2(ab)
	if l2 == 0 {
		return r2.Norm(r2.Sub(pt, a))
	}
	t := r2.Dot(r2.Sub(pt, a), ab) / l2
	t = math.Max(0, math.Min(1, t))
	closest := r2.Add(a, r2.Scale(t, ab))
	return r2.Norm(r2.Sub(pt, closest))
}

// Bounds returns the min and max corners of the polygon
func (p Polygon) Bounds() (min, max r2.Vec) {
	if len(p) == 0 {
		return r2.Vec{}, r2.Vec{}
	}
	min, max = p[0], p[0]
	for _, v := range p[1:] {
		min.X = math.Min(min.X, v.X)
		min.Y = math.Min(min.Y, v.Y)
		max.X = math.Max(max.X, v.X)
		max.Y = math.Max(max.Y, v.Y)
	}
	return min, max
}

// Points returns the vertices as [x, y] pairs
func (p Polygon) Points() [][2]float64 {
	out := make([][2]float64, len(p))
	for i, v := range p {
		out[i] = [2]float64{v.X, v.Y}
	}
	return out
}
