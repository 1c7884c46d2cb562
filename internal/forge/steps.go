package forge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/philipparndt/smithforge/internal/engine"
	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/preconditions"
	"github.com/philipparndt/smithforge/internal/preview"
	"github.com/philipparndt/smithforge/internal/repair"
	"github.com/philipparndt/smithforge/internal/threemf"
)

// validateInputsStep checks that the input files exist and the output is writable
type validateInputsStep struct{}

func (s *validateInputsStep) Name() string {
	return "Validate inputs"
}

func (s *validateInputsStep) Execute(ctx context.Context, st *state) error {
	if err := preconditions.ValidateFiles(st.opts.Hueforge, st.opts.Base); err != nil {
		return err
	}
	if st.opts.InjectColorsText != "" {
		if err := preconditions.ValidateFile(st.opts.InjectColorsText); err != nil {
			return err
		}
	}
	if err := preconditions.ValidateOutputPath(st.opts.Output); err != nil {
		return err
	}
	st.info("Validated input files")
	return nil
}

// checkEngineStep makes sure the boolean engine can run
type checkEngineStep struct{}

func (s *checkEngineStep) Name() string {
	return "Check engine"
}

func (s *checkEngineStep) Execute(ctx context.Context, st *state) error {
	if err := preconditions.Check(ctx, st.engine); err != nil {
		return err
	}
	st.info("Engine %s is available", st.engine.Name())
	return nil
}

// resolveColorsStep reads the colour swaps from the HueForge archive or from swap instruction text
type resolveColorsStep struct{}

func (s *resolveColorsStep) Name() string {
	return "Resolve colors"
}

func (s *resolveColorsStep) Execute(ctx context.Context, st *state) error {
	if st.opts.PreserveColors {
		return s.preserve(st)
	}

	st.info("Parsing color layer information from text...")
	text := st.opts.InjectColorsContent
	if st.opts.InjectColorsText != "" {
		raw, err := os.ReadFile(st.opts.InjectColorsText)
		if err != nil {
			return fmt.Errorf("error reading text file: %w", err)
		}
		text = string(raw)
	}

	data, err := layers.ParseSwapInstructions(text)
	if err != nil {
		return fmt.Errorf("failed to parse swap instructions text: %w", err)
	}
	for _, w := range data.Warnings {
		st.warn("%s", w)
	}
	st.colors = data
	st.success("Parsed %d color layers from text", len(data.Layers))
	return nil
}

func (s *resolveColorsStep) preserve(st *state) error {
	st.info("Extracting color layer information from Hueforge...")
	if strings.ToLower(filepath.Ext(st.opts.Hueforge)) != ".3mf" {
		st.warn("Color preservation needs a 3MF HueForge file, proceeding without color preservation")
		return nil
	}

	data, err := layers.ExtractColorLayers(st.opts.Hueforge)
	if err != nil {
		st.warn("Could not read color layer data: %v", err)
		return nil
	}
	if data.Empty() {
		st.warn("No color layer data found, proceeding without color preservation")
		return nil
	}
	st.colors = data
	st.success("Found %d color layers, %d filament colors", len(data.Layers), len(data.FilamentColours))
	return nil
}

// loadMeshesStep loads overlay and base concurrently
type loadMeshesStep struct{}

func (s *loadMeshesStep) Name() string {
	return "Load meshes"
}

func (s *loadMeshesStep) Execute(ctx context.Context, st *state) error {
	st.info("Loading Hueforge: %s", st.opts.Hueforge)
	st.info("Loading base: %s", st.opts.Base)

	overlay, base, err := loadPair(ctx, st.opts.Hueforge, st.opts.Base)
	if err != nil {
		return err
	}
	st.overlay, st.base = overlay, base

	st.info("Hueforge: %d vertices, %d faces", len(st.overlay.Vertices), st.overlay.FaceCount())
	st.info("Base: %d vertices, %d faces", len(st.base.Vertices), st.base.FaceCount())
	return nil
}

// repairStep validates and repairs both meshes before the boolean operations
type repairStep struct{}

func (s *repairStep) Name() string {
	return "Repair meshes"
}

func (s *repairStep) Execute(ctx context.Context, st *state) error {
	allOK := true
	for _, part := range []struct {
		label string
		mesh  **mesh.Mesh
	}{
		{"Hueforge", &st.overlay},
		{"base", &st.base},
	} {
		st.info("Checking %s mesh...", part.label)
		repaired, report := repair.AutoRepair(*part.mesh)
		for _, line := range strings.Split(report.String(), "\n") {
			st.info("%s", line)
		}
		*part.mesh = repaired
		allOK = allOK && report.Success
	}
	if !allOK {
		st.warn("Some mesh repairs were not fully successful. Boolean operations may still fail.")
	}
	return nil
}

// placeStep rotates the base and scales, centers and embeds the overlay
type placeStep struct{}

func (s *placeStep) Name() string {
	return "Place overlay"
}

func (s *placeStep) Execute(ctx context.Context, st *state) error {
	params := st.opts.placement(st.settings)

	if params.RotateBase != 0 {
		st.info("Rotating base by %g degrees around Z-axis.", params.RotateBase)
	}

	overlayBox, err := st.overlay.Bounds()
	if err != nil {
		return err
	}
	p, err := mesh.Place(st.base, st.overlay, params)
	if err != nil {
		return err
	}
	baseBox, err := st.base.Bounds()
	if err != nil {
		return err
	}

	for _, line := range p.Describe(baseBox, overlayBox, params.ForceScale != 0) {
		st.info("%s", line)
	}
	st.info("Center Hueforge => shift=(%.2f, %.2f)", p.Translation.X-params.Shift.X, p.Translation.Y-params.Shift.Y)
	st.info("Embedding Hueforge by %g mm into base for overlap.", params.EmbedOverlap)
	if params.Shift != (r3.Vec{}) {
		st.info("Applying user shifts => X=%g, Y=%g, Z=%g", params.Shift.X, params.Shift.Y, params.Shift.Z)
	}

	st.placement = p
	st.summary.Scale = p.Scale
	st.summary.ZOffset = p.ZOffset
	return nil
}

// hullStep computes the XY convex hull of the base used to clip the overlay
type hullStep struct{}

func (s *hullStep) Name() string {
	return "Compute base hull"
}

func (s *hullStep) Execute(ctx context.Context, st *state) error {
	hull := st.base.Hull()
	if hull.Empty() {
		return engine.ErrEmptyHull
	}
	st.hull = hull
	st.info("Base hull: %d vertices, area %.2f mm²", len(hull), hull.Area())
	return nil
}

// gapFillStep estimates the overlay background height for the gap fill
type gapFillStep struct{}

func (s *gapFillStep) Name() string {
	return "Gap fill"
}

func (s *gapFillStep) Execute(ctx context.Context, st *state) error {
	res, err := st.overlay.PerimeterHeight(st.settings.PerimeterSamples)
	if err != nil {
		return err
	}

	switch res.Source {
	case mesh.PerimeterBoundaryEdges:
		st.info("Found %d boundary vertices", res.Found)
	case mesh.PerimeterHull:
		st.info("Found %d perimeter vertices using 2D hull", res.Found)
	case mesh.PerimeterTopBand:
		st.warn("Could not detect perimeter, using top layer sampling")
	case mesh.PerimeterMaxZ:
		st.warn("No perimeter points found, using mesh maximum Z")
	}
	st.info("Sampled %d Z-heights from perimeter", res.Sampled)
	st.info("Detected background height: %.3f mm", res.Height)
	st.info("Height range: %.3f to %.3f mm", res.MinZ, res.MaxZ)

	st.fill = &engine.FillSpec{Height: res.Height, BaseTopZ: st.placement.BaseTopZ}
	if res.Height <= st.placement.BaseTopZ {
		st.info("Background height is not above the base top, using minimum fill of %.1f mm", engine.MinFillThickness)
	}
	st.info("Fill thickness: %.3f mm", st.fill.Thickness())
	return nil
}

// combineStep clips the overlay and unions everything through the engine
type combineStep struct{}

func (s *combineStep) Name() string {
	return "Combine"
}

func (s *combineStep) Execute(ctx context.Context, st *state) error {
	st.info("Union clipped Hueforge + base => final mesh...")
	res, err := st.engine.Combine(ctx, engine.Job{
		Base:          st.base,
		Overlay:       st.overlay,
		Hull:          st.hull,
		ExtrudeHeight: st.settings.ExtrudeHeightMM,
		Fill:          st.fill,
		WorkDir:       st.workDir,
	})
	if err != nil {
		var failure *engine.Failure
		if errors.As(err, &failure) {
			st.summary.Log = append(st.summary.Log, failure.Log...)
		}
		return err
	}

	for _, line := range res.Log {
		st.info("%s", line)
	}
	st.combined = res.Mesh
	st.summary.Faces = res.Mesh.FaceCount()
	return nil
}

// exportStep writes the combined mesh as 3MF
type exportStep struct{}

func (s *exportStep) Name() string {
	return "Export"
}

func (s *exportStep) Execute(ctx context.Context, st *state) error {
	st.info("Exporting final mesh to %s", st.opts.Output)
	if st.opts.Format == threemf.FormatBambu {
		st.info("Using Bambu Studio project layout")
	} else {
		st.info("Using standard 3MF export")
	}

	name := strings.TrimSuffix(filepath.Base(st.opts.Output), filepath.Ext(st.opts.Output))
	res, err := threemf.NewWriter().Write(st.opts.Output, st.combined, threemf.Options{
		Format:      st.opts.Format,
		Name:        name,
		ZOffset:     st.placement.ZOffset,
		PlateSize:   st.settings.BuildPlateMM,
		LayerHeight: st.settings.LayerHeightMM,
	})
	if err != nil {
		return err
	}
	if res.Format == threemf.FormatBambu {
		st.info("Centered mesh at origin, build transform %s", res.Transform)
	}

	st.written = res
	st.summary.Faces = res.Faces
	st.summary.ZOffset = res.ZOffset
	st.success("Wrote %s (%d faces)", st.opts.Output, res.Faces)
	return nil
}

// injectColorsStep writes the colour swaps into the exported archive.
// Failures only produce warnings.
type injectColorsStep struct{}

func (s *injectColorsStep) Name() string {
	return "Inject colors"
}

func (s *injectColorsStep) Execute(ctx context.Context, st *state) error {
	if st.colors.Empty() {
		st.info("No color layers to inject")
		return nil
	}

	zOffset := st.written.ZOffset
	if st.opts.injectsText() {
		bounds, err := st.combined.Bounds()
		if err != nil {
			return err
		}
		// Heights in the coordinates of the written mesh
		maxHeight := bounds.MaxZ + zOffset - st.placement.ZOffset
		st.info("Validating layer heights against final model height (%.3f mm)...", maxHeight)
		warnings := layers.ValidateHeights(st.colors, zOffset, maxHeight)
		for _, w := range warnings {
			st.warn("%s", w)
		}
		if len(warnings) > 0 {
			st.warn("Some layer heights may be out of bounds")
		}
	}

	st.info("Injecting color layer metadata (Z-offset: %.3f mm)...", zOffset)
	ranges, err := threemf.InjectColorMetadata(st.opts.Output, st.colors, zOffset, st.settings.LayerHeightMM)
	if err != nil {
		st.warn("Error injecting color metadata: %v", err)
		return nil
	}
	for i, r := range ranges {
		st.info("Range %d: %s", i+1, r)
	}

	st.summary.Ranges = ranges
	st.summary.ColorsSet = true
	st.success("Injected color metadata with Z-offset %.3f mm", zOffset)
	return nil
}

// previewStep renders the footprint image
type previewStep struct{}

func (s *previewStep) Name() string {
	return "Preview"
}

func (s *previewStep) Execute(ctx context.Context, st *state) error {
	if err := preview.Footprint(st.base, st.overlay, st.hull, st.opts.Preview); err != nil {
		st.warn("Could not render preview: %v", err)
		return nil
	}
	st.success("Wrote footprint preview to %s", st.opts.Preview)
	return nil
}
