package geometry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestConvexHull(t *testing.T) {
	tests := []struct {
		name     string
		points   []r2.Vec
		vertices int
		area     float64
	}{
		{
			name:     "square with interior point",
			points:   []r2.Vec{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 5, Y: 5}},
			vertices: 4,
			area:     100,
		},
		{
			name:     "collinear edge points are dropped",
			points:   []r2.Vec{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
			vertices: 4,
			area:     100,
		},
		{
			name:     "duplicates",
			points:   []r2.Vec{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 3}, {X: 4, Y: 0}},
			vertices: 3,
			area:     6,
		},
		{
			name:     "all collinear",
			points:   []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}},
			vertices: 0,
			area:     0,
		},
		{
			name:     "too few points",
			points:   []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 1}},
			vertices: 0,
			area:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hull := ConvexHull(tt.points)
			if len(hull) != tt.vertices {
				t.Fatalf("ConvexHull() has %d vertices, want %d: %v", len(hull), tt.vertices, hull)
			}
			if math.Abs(hull.Area()-tt.area) > 1e-9 {
				t.Errorf("Area() = %v, want %v", hull.Area(), tt.area)
			}
		})
	}
}

func TestConvexHullIsCounterClockwise(t *testing.T) {
	hull := ConvexHull([]r2.Vec{{X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}})
	var signed float64
	for i := range hull {
		signed += r2.Cross(hull[i], hull[(i+1)%len(hull)])
	}
	if signed <= 0 {
		t.Errorf("hull is not counter-clockwise: %v", hull)
	}
}

func TestPolygonContainsAndDistance(t *testing.T) {
	square := ConvexHull([]r2.Vec{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}})

	if !square.Contains(r2.Vec{X: 5, Y: 5}) {
		t.Error("center should be inside")
	}
	if !square.Contains(r2.Vec{X: 10, Y: 5}) {
		t.Error("edge point should be inside")
	}
	if square.Contains(r2.Vec{X: 11, Y: 5}) {
		t.Error("outside point reported inside")
	}

	if d := square.DistanceToBoundary(r2.Vec{X: 5, Y: 2}); math.Abs(d-2) > 1e-12 {
		t.Errorf("DistanceToBoundary() = %v, want 2", d)
	}
	if d := square.DistanceToBoundary(r2.Vec{X: 13, Y: 14}); math.Abs(d-5) > 1e-12 {
		t.Errorf("DistanceToBoundary() = %v, want 5", d)
	}

	inner := ConvexHull([]r2.Vec{{X: 2, Y: 2}, {X: 8, Y: 2}, {X: 8, Y: 8}, {X: 2, Y: 8}})
	if !square.ContainsPolygon(inner) {
		t.Error("inner square should be contained")
	}
	if inner.ContainsPolygon(square) {
		t.Error("outer square should not be contained in inner")
	}
}

func TestComputeScale(t *testing.T) {
	base := BoundingBox{MinX: 0, MinY: 0, MinZ: 0, MaxX: 100, MaxY: 50, MaxZ: 5}

	tests := []struct {
		name    string
		overlay BoundingBox
		params  PlacementParams
		scale   float64
		clamped bool
	}{
		{
			name:    "scale up to cover the larger ratio",
			overlay: BoundingBox{MaxX: 50, MaxY: 50, MaxZ: 2},
			scale:   2,
		},
		{
			name:    "scale down is clamped by default",
			overlay: BoundingBox{MaxX: 200, MaxY: 200, MaxZ: 2},
			scale:   1,
			clamped: true,
		},
		{
			name:    "scale down allowed",
			overlay: BoundingBox{MaxX: 200, MaxY: 200, MaxZ: 2},
			params:  PlacementParams{AllowScaleDown: true},
			scale:   0.5,
		},
		{
			name:    "forced scale wins",
			overlay: BoundingBox{MaxX: 50, MaxY: 50, MaxZ: 2},
			params:  PlacementParams{ForceScale: 0.75},
			scale:   0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ComputeScale(base, tt.overlay, tt.params)
			if err != nil {
				t.Fatalf("ComputeScale() error = %v", err)
			}
			if math.Abs(p.Scale-tt.scale) > 1e-12 {
				t.Errorf("Scale = %v, want %v", p.Scale, tt.scale)
			}
			if p.Clamped != tt.clamped {
				t.Errorf("Clamped = %v, want %v", p.Clamped, tt.clamped)
			}
		})
	}
}

func TestComputeScaleDegenerateOverlay(t *testing.T) {
	base := BoundingBox{MaxX: 10, MaxY: 10, MaxZ: 1}
	if _, err := ComputeScale(base, BoundingBox{MaxX: 10, MaxZ: 1}, PlacementParams{}); err != ErrDegenerateOverlay {
		t.Errorf("expected ErrDegenerateOverlay, got %v", err)
	}
	// A forced scale does not need the overlay extent
	if _, err := ComputeScale(base, BoundingBox{MaxX: 10, MaxZ: 1}, PlacementParams{ForceScale: 2}); err != nil {
		t.Errorf("unexpected error with forced scale: %v", err)
	}
}

func TestComputeTranslation(t *testing.T) {
	base := BoundingBox{MinX: -10, MinY: -10, MinZ: 0, MaxX: 10, MaxY: 10, MaxZ: 5}
	overlay := BoundingBox{MinX: 0, MinY: 0, MinZ: 1, MaxX: 20, MaxY: 20, MaxZ: 3}

	params := PlacementParams{EmbedOverlap: DefaultEmbedOverlap, Shift: r3.Vec{X: 1, Y: -1, Z: 0.5}}
	tr, top, zOffset := ComputeTranslation(base, overlay, params)

	if math.Abs(tr.X-(-10+1)) > 1e-12 || math.Abs(tr.Y-(-10-1)) > 1e-12 {
		t.Errorf("XY translation = %v", tr)
	}
	// bottom (1) moves to 5 - 0.1 + 0.5
	if math.Abs(tr.Z-(5-1-0.1+0.5)) > 1e-12 {
		t.Errorf("Z translation = %v", tr.Z)
	}
	if top != 5 {
		t.Errorf("base top = %v, want 5", top)
	}
	if math.Abs(zOffset-5.4) > 1e-12 {
		t.Errorf("z offset = %v, want 5.4", zOffset)
	}
}

func TestModeHeight(t *testing.T) {
	tests := []struct {
		name    string
		heights []float64
		want    float64
		tol     float64
	}{
		{
			name:    "background dominates",
			heights: []float64{1, 1, 1, 1, 1, 1, 1, 3, 3, 2},
			want:    1.2, // first of five bins over [1, 3]
			tol:     1e-9,
		},
		{
			name:    "single value",
			heights: []float64{2.4},
			want:    2.4,
			tol:     1e-9,
		},
		{
			name:    "constant values",
			heights: []float64{0.8, 0.8, 0.8, 0.8},
			want:    0.8,
			tol:     0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ModeHeight(tt.heights)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("ModeHeight() = %v, want %v", got, tt.want)
			}
		})
	}

	if !math.IsNaN(ModeHeight(nil)) {
		t.Error("ModeHeight(nil) should be NaN")
	}
}

func TestSubsample(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}

	got := Subsample(values, 40)
	if len(got) != 40 {
		t.Fatalf("len = %d, want 40", len(got))
	}
	if got[0] != 0 || got[39] != 99 {
		t.Errorf("endpoints = %v, %v", got[0], got[39])
	}

	short := []float64{1, 2, 3}
	if len(Subsample(short, 40)) != 3 {
		t.Error("short input should be returned unchanged")
	}
}

func TestBoundsOf(t *testing.T) {
	box, err := BoundsOf([]r3.Vec{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 5, Z: 0}})
	if err != nil {
		t.Fatalf("BoundsOf() error = %v", err)
	}
	if box.Width() != 2 || box.Height() != 3 || box.Depth() != 3 {
		t.Errorf("BoundsOf() = %+v", box)
	}
	if c := box.Center(); c.X != 0 || c.Y != 3.5 || c.Z != 1.5 {
		t.Errorf("Center() = %v", c)
	}
	if _, err := BoundsOf(nil); err == nil {
		t.Error("expected error for empty input")
	}
}
