package geometry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultEmbedOverlap is how far the overlay sinks into the base so the
// boolean union has a real overlap to work with.
const DefaultEmbedOverlap = 0.1

// ErrDegenerateOverlay is returned when the overlay has no XY extent to scale
var ErrDegenerateOverlay = errors.New("overlay has zero width or height")

// PlacementParams controls how the overlay is positioned on the base
type PlacementParams struct {
	RotateBase     float64 // degrees around Z applied to the base
	ForceScale     float64 // explicit uniform XY scale, 0 computes it
	AllowScaleDown bool
	Shift          r3.Vec
	EmbedOverlap   float64
}

// Placement is the result of positioning the overlay
type Placement struct {
	Scale       float64
	ScaleX      float64 // base width / overlay width before clamping
	ScaleY      float64 // base height / overlay height before clamping
	Clamped     bool
	Translation r3.Vec // applied to the overlay after scaling
	BaseTopZ    float64
	// ZOffset is where layer 0 of the overlay ends up: base top minus overlap plus zshift
	ZOffset float64
}

// ComputeScale returns the uniform XY scale for the overlay so it covers at
// least one base dimension. Scales below 1 are clamped unless scale-down is allowed.
func ComputeScale(base, overlay BoundingBox, params PlacementParams) (Placement, error) {
	if params.ForceScale != 0 {
		return Placement{Scale: params.ForceScale}, nil
	}

	if overlay.Width() <= 0 || overlay.Height() <= 0 {
		return Placement{}, ErrDegenerateOverlay
	}

	p := Placement{
		ScaleX: base.Width() / overlay.Width(),
		ScaleY: base.Height() / overlay.Height(),
	}
	p.Scale = max(p.ScaleX, p.ScaleY)
	if p.Scale < 1.0 && !params.AllowScaleDown {
		p.Scale = 1.0
		p.Clamped = true
	}
	return p, nil
}

// ComputeTranslation centers the already scaled overlay on the base in XY,
// rests it on the base top minus the overlap and applies the user shift.
func ComputeTranslation(base, scaledOverlay BoundingBox, params PlacementParams) (r3.Vec, float64, float64) {
	overlap := params.EmbedOverlap
	baseCenter := base.Center()
	overlayCenter := scaledOverlay.Center()

	t := r3.Vec{
		X: baseCenter.X - overlayCenter.X + params.Shift.X,
		Y: baseCenter.Y - overlayCenter.Y + params.Shift.Y,
		Z: base.MaxZ - scaledOverlay.MinZ - overlap + params.Shift.Z,
	}
	zOffset := base.MaxZ - overlap + params.Shift.Z
	return t, base.MaxZ, zOffset
}

// Describe renders the scale decision the way the forge log reports it
func (p Placement) Describe(base, overlay BoundingBox, forced bool) []string {
	lines := []string{
		"=== Scale overlay ===",
		fmt.Sprintf(" - overlay original dims: W=%.2f, H=%.2f", overlay.Width(), overlay.Height()),
		fmt.Sprintf(" - base dims:             W=%.2f, H=%.2f", base.Width(), base.Height()),
	}
	if forced {
		lines = append(lines, fmt.Sprintf(" - using forced scale value: %g", p.Scale))
	} else {
		lines = append(lines, fmt.Sprintf(" - scale_x=%.3f, scale_y=%.3f", p.ScaleX, p.ScaleY))
		if p.Clamped {
			lines = append(lines, fmt.Sprintf(" - computed scale=%.3f < 1.0, clamping to 1.0", max(p.ScaleX, p.ScaleY)))
		}
	}
	lines = append(lines, fmt.Sprintf(" - final uniform_scale=%.3f", p.Scale))
	return lines
}
