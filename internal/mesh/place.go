package mesh

import (
	"fmt"

	"github.com/philipparndt/smithforge/internal/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Place rotates the base, then scales and moves the overlay so it sits
// centered on the base top, sunk by the embed overlap. Both meshes are
// modified in place.
func Place(base, overlay *Mesh, params geometry.PlacementParams) (geometry.Placement, error) {
	if base.Empty() || overlay.Empty() {
		return geometry.Placement{}, ErrEmpty
	}

	base.RotateZ(params.RotateBase)

	baseBox, err := base.Bounds()
	if err != nil {
		return geometry.Placement{}, fmt.Errorf("base bounds: %w", err)
	}
	overlayBox, err := overlay.Bounds()
	if err != nil {
		return geometry.Placement{}, fmt.Errorf("overlay bounds: %w", err)
	}

	p, err := geometry.ComputeScale(baseBox, overlayBox, params)
	if err != nil {
		return geometry.Placement{}, err
	}
	overlay.Scale(r3.Vec{X: p.Scale, Y: p.Scale, Z: 1})

	scaledBox, err := overlay.Bounds()
	if err != nil {
		return geometry.Placement{}, err
	}
	p.Translation, p.BaseTopZ, p.ZOffset = geometry.ComputeTranslation(baseBox, scaledBox, params)
	overlay.Translate(p.Translation)
	return p, nil
}
