package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// BoundingBox represents a 3D bounding box
type BoundingBox struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Width returns the width (X dimension) of the bounding box
func (b BoundingBox) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the height (Y dimension) of the bounding box
func (b BoundingBox) Height() float64 {
	return b.MaxY - b.MinY
}

// Depth returns the depth (Z dimension) of the bounding box
func (b BoundingBox) Depth() float64 {
	return b.MaxZ - b.MinZ
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() r3.Vec {
	return r3.Vec{
		X: (b.MinX + b.MaxX) / 2.0,
		Y: (b.MinY + b.MaxY) / 2.0,
		Z: (b.MinZ + b.MaxZ) / 2.0,
	}
}

// Box converts the bounding box into a gonum box
func (b BoundingBox) Box() r3.Box {
	return r3.Box{
		Min: r3.Vec{X: b.MinX, Y: b.MinY, Z: b.MinZ},
		Max: r3.Vec{X: b.MaxX, Y: b.MaxY, Z: b.MaxZ},
	}
}

// Union returns the smallest box containing both boxes
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MinZ: math.Min(b.MinZ, o.MinZ),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
		MaxZ: math.Max(b.MaxZ, o.MaxZ),
	}
}

// String formats the box extents in millimeters
func (b BoundingBox) String() string {
	return fmt.Sprintf("W=%.2f, H=%.2f, D=%.2f", b.Width(), b.Height(), b.Depth())
}

// BoundsOf calculates the bounding box of a set of points
func BoundsOf(points []r3.Vec) (BoundingBox, error) {
	if len(points) == 0 {
		return BoundingBox{}, fmt.Errorf("no vertices")
	}

	// Initialize with first vertex
	first := points[0]
	bbox := BoundingBox{
		MinX: first.X,
		MinY: first.Y,
		MinZ: first.Z,
		MaxX: first.X,
		MaxY: first.Y,
		MaxZ: first.Z,
	}

	for _, p := range points[1:] {
		bbox.MinX = math.Min(bbox.MinX, p.X)
		bbox.MinY = math.Min(bbox.MinY, p.Y)
		bbox.MinZ = math.Min(bbox.MinZ, p.Z)
		bbox.MaxX = math.Max(bbox.MaxX, p.X)
		bbox.MaxY = math.Max(bbox.MaxY, p.Y)
		bbox.MaxZ = math.Max(bbox.MaxZ, p.Z)
	}

	return bbox, nil
}

// ParseTransform parses a 3MF transform attribute.
// Transform format: "m11 m12 m13 m21 m22 m23 m31 m32 m33 dx dy dz"
func ParseTransform(transform string) ([12]float64, error) {
	var parts [12]float64
	fields := strings.Fields(transform)
	if len(fields) != 12 {
		return parts, fmt.Errorf("transform must have 12 values, got %d", len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return parts, fmt.Errorf("invalid transform value %q: %w", f, err)
		}
		parts[i] = v
	}
	return parts, nil
}

// TransformOffset extracts the translation (dx, dy, dz) from a transform matrix
func TransformOffset(transform string) (dx, dy, dz float64, ok bool) {
	parts, err := ParseTransform(transform)
	if err != nil {
		return 0, 0, 0, false
	}
	return parts[9], parts[10], parts[11], true
}
