package forge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/preview"
)

func (o Options) placement(settings models.ForgeConfig) geometry.PlacementParams {
	return geometry.PlacementParams{
		RotateBase:     o.RotateBase,
		ForceScale:     o.Scale,
		AllowScaleDown: o.ScaleDown,
		Shift:          r3.Vec{X: o.XShift, Y: o.YShift, Z: o.ZShift},
		EmbedOverlap:   settings.EmbedOverlapMM,
	}
}

// loadPair loads the overlay and the base concurrently
func loadPair(ctx context.Context, hueforge, base string) (*mesh.Mesh, *mesh.Mesh, error) {
	var overlayMesh, baseMesh *mesh.Mesh

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := mesh.Load(hueforge)
		if err != nil {
			return fmt.Errorf("hueforge: %w", err)
		}
		overlayMesh = m
		return ctx.Err()
	})
	g.Go(func() error {
		m, err := mesh.Load(base)
		if err != nil {
			return fmt.Errorf("base: %w", err)
		}
		baseMesh = m
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return overlayMesh, baseMesh, nil
}

// PreviewGLB places the overlay on the base the way a run would, without
// clipping or union, and returns both meshes as binary glTF.
func PreviewGLB(ctx context.Context, opts Options, settings models.ForgeConfig) ([]byte, geometry.Placement, error) {
	settings = withDefaults(settings)

	overlay, base, err := loadPair(ctx, opts.Hueforge, opts.Base)
	if err != nil {
		return nil, geometry.Placement{}, err
	}
	placement, err := mesh.Place(base, overlay, opts.placement(settings))
	if err != nil {
		return nil, geometry.Placement{}, err
	}
	data, err := preview.GLB(base, overlay)
	if err != nil {
		return nil, geometry.Placement{}, err
	}
	return data, placement, nil
}
