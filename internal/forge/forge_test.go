package forge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/philipparndt/smithforge/internal/engine"
	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/stl"
	"github.com/philipparndt/smithforge/internal/threemf"
)

const swapText = `
Filaments Used:
PLA BambuLab Basic Black
PLA BambuLab Basic White

Swap Instructions:
Start with Black
At layer #5 (0.40mm) swap to White
`

func box(min, max r3.Vec) *mesh.Mesh {
	m := &mesh.Mesh{}
	for i := 0; i < 8; i++ {
		v := min
		if i&1 != 0 {
			v.X = max.X
		}
		if i&2 != 0 {
			v.Y = max.Y
		}
		if i&4 != 0 {
			v.Z = max.Z
		}
		m.Vertices = append(m.Vertices, v)
	}
	m.Faces = [][3]int{
		{0, 2, 1}, {1, 2, 3}, {4, 5, 6}, {5, 7, 6},
		{0, 1, 4}, {1, 5, 4}, {2, 6, 3}, {3, 6, 7},
		{0, 4, 2}, {2, 4, 6}, {1, 3, 5}, {3, 7, 5},
	}
	return m
}

func writeSTL(t *testing.T, dir, name string, m *mesh.Mesh) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, stl.NewWriter().WriteBinary(m.ToSTL(), path))
	return path
}

func inputs(t *testing.T) (string, Options) {
	t.Helper()
	dir := t.TempDir()
	return dir, Options{
		Hueforge: writeSTL(t, dir, "overlay.stl", box(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 2})),
		Base:     writeSTL(t, dir, "base.stl", box(r3.Vec{}, r3.Vec{X: 40, Y: 20, Z: 5})),
		Output:   filepath.Join(dir, "combined.3mf"),
	}
}

func run(t *testing.T, eng engine.Engine, opts Options) (*Summary, error) {
	t.Helper()
	plan, err := NewPlanner(eng, models.ForgeConfig{}, nil).CreatePlan(opts)
	require.NoError(t, err)
	return plan.Execute(context.Background())
}

func TestForgeStandard(t *testing.T) {
	_, opts := inputs(t)

	summary, err := run(t, &engine.AssembleEngine{}, opts)
	require.NoError(t, err)

	assert.InDelta(t, 4, summary.Scale, 1e-12)
	assert.InDelta(t, 4.9, summary.ZOffset, 1e-12)
	assert.Equal(t, 24, summary.Faces)
	assert.Equal(t, engine.KindAssemble, summary.Engine)
	assert.Contains(t, summary.Log, "=== Place overlay ===")

	out, err := mesh.Load(opts.Output)
	require.NoError(t, err)
	bounds, err := out.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, 6.9, bounds.MaxZ, 1e-5)
	// overlay is 40x40 after scaling, centered on the 40x20 base
	assert.InDelta(t, -10, bounds.MinY, 1e-5)
}

func TestForgeInjectsTextColors(t *testing.T) {
	dir, opts := inputs(t)
	opts.InjectColorsText = filepath.Join(dir, "swaps.txt")
	require.NoError(t, os.WriteFile(opts.InjectColorsText, []byte(swapText), 0o644))
	opts.Format = threemf.FormatBambu

	summary, err := run(t, &engine.AssembleEngine{}, opts)
	require.NoError(t, err)
	assert.True(t, summary.ColorsSet)
	require.Len(t, summary.Ranges, 1)
	assert.InDelta(t, 4.9, summary.Ranges[0].MinZ, 1e-9)
	assert.InDelta(t, 5.3, summary.Ranges[0].MaxZ-1000, 1e-9)

	set := layers.ParseLayers(opts.Output)
	assert.Equal(t, layers.FormatBambu, set.Format)
	assert.Equal(t, 1, set.LayerCount)
}

func TestForgeInlineSwapText(t *testing.T) {
	_, opts := inputs(t)
	opts.InjectColorsContent = "nothing useful here"

	_, err := run(t, &engine.AssembleEngine{}, opts)
	assert.ErrorIs(t, err, layers.ErrNoSwaps)
}

func TestForgePreserveColorsWithoutData(t *testing.T) {
	_, opts := inputs(t)
	opts.PreserveColors = true

	summary, err := run(t, &engine.AssembleEngine{}, opts)
	require.NoError(t, err)
	assert.False(t, summary.ColorsSet)
	assert.NotEmpty(t, summary.Warnings)
}

const customGCode = `<?xml version="1.0" encoding="utf-8"?>
<custom_gcodes_per_layer>
<plate>
<plate_info id="1"/>
<layer top_z="0.72" type="2" extruder="2" color="#0047AB" extra="" gcode="tool_change"/>
<layer top_z="1.28" type="2" extruder="3" color="#FFDA03" extra="" gcode="tool_change"/>
</plate>
</custom_gcodes_per_layer>`

// hueforge3MF writes the overlay as a 3MF carrying HueForge colour swaps
func hueforge3MF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "overlay.3mf")
	_, err := threemf.NewWriter().Write(path, box(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 2}), threemf.Options{Name: "overlay"})
	require.NoError(t, err)
	require.NoError(t, threemf.Repack(path, map[string][]byte{
		layers.CustomGCodeEntry:     []byte(customGCode),
		layers.ProjectSettingsEntry: []byte(`{"filament_colour": ["#000000", "#0047AB", "#FFDA03"]}`),
	}))
	return path
}

func TestForgePreserveColors(t *testing.T) {
	dir, opts := inputs(t)
	opts.Hueforge = hueforge3MF(t, dir)
	opts.PreserveColors = true
	opts.Format = threemf.FormatBambu

	summary, err := run(t, &engine.AssembleEngine{}, opts)
	require.NoError(t, err)
	assert.True(t, summary.ColorsSet)
	assert.InDelta(t, 4.9, summary.ZOffset, 1e-9)

	require.Len(t, summary.Ranges, 2)
	assert.InDelta(t, 4.9, summary.Ranges[0].MinZ, 1e-9)
	assert.InDelta(t, 5.62, summary.Ranges[0].MaxZ, 1e-9)
	assert.Equal(t, "2", summary.Ranges[0].Extruder)
	assert.InDelta(t, 5.62, summary.Ranges[1].MinZ, 1e-9)
	assert.Equal(t, "3", summary.Ranges[1].Extruder)

	set := layers.ParseLayers(opts.Output)
	assert.Equal(t, layers.FormatBambu, set.Format)
	require.Equal(t, 2, set.LayerCount)
	assert.InDelta(t, 5.62, set.Layers[0].ZHeight, 1e-9)

	settings, err := (&threemf.Reader{}).ReadModelSettings(opts.Output)
	require.NoError(t, err)
	require.NotNil(t, settings)
	require.Len(t, settings.Objects, 1)
	assert.Equal(t, "combined", settings.Objects[0].Metadata[0].Value)
	require.NotNil(t, settings.Objects[0].Parts[0].MeshStat)
	assert.Equal(t, summary.Faces, settings.Objects[0].Parts[0].MeshStat.FaceCount)

	project, ok, err := threemf.ReadEntry(opts.Output, threemf.ProjectSettingsEntry)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(project), "#FFDA03")
}

// recordingEngine keeps the last job and assembles it
type recordingEngine struct {
	engine.AssembleEngine
	job engine.Job
}

func (e *recordingEngine) Combine(ctx context.Context, job engine.Job) (*engine.Result, error) {
	e.job = job
	return e.AssembleEngine.Combine(ctx, job)
}

func TestForgeGapFill(t *testing.T) {
	tests := []struct {
		name      string
		zShift    float64
		thickness func(fill *engine.FillSpec) float64
	}{
		{"overlay below base top", -3, func(*engine.FillSpec) float64 { return engine.MinFillThickness }},
		{"overlay above base top", 2, func(fill *engine.FillSpec) float64 { return fill.Height - 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, opts := inputs(t)
			opts.FillGaps = true
			opts.ZShift = tt.zShift

			eng := &recordingEngine{}
			_, err := run(t, eng, opts)
			require.NoError(t, err)

			fill := eng.job.Fill
			require.NotNil(t, fill)
			assert.InDelta(t, 5, fill.BaseTopZ, 1e-9)
			assert.InDelta(t, tt.thickness(fill), fill.Thickness(), 1e-9)
			assert.GreaterOrEqual(t, fill.Thickness(), engine.MinFillThickness)
		})
	}

	_, opts := inputs(t)
	eng := &recordingEngine{}
	_, err := run(t, eng, opts)
	require.NoError(t, err)
	assert.Nil(t, eng.job.Fill)
}

func TestForgeWritesPreview(t *testing.T) {
	dir, opts := inputs(t)
	opts.Preview = filepath.Join(dir, "footprint.png")
	opts.FillGaps = true
	opts.AutoRepair = true

	_, err := run(t, &engine.AssembleEngine{}, opts)
	require.NoError(t, err)
	_, err = os.Stat(opts.Preview)
	assert.NoError(t, err)
}

func TestCreatePlan(t *testing.T) {
	p := NewPlanner(&engine.AssembleEngine{}, models.ForgeConfig{}, nil)

	_, err := p.CreatePlan(Options{Hueforge: "a.3mf", Base: "b.stl", PreserveColors: true, InjectColorsContent: "x"})
	assert.ErrorIs(t, err, ErrConflictingColorSources)

	_, err = p.CreatePlan(Options{Hueforge: "a.3mf"})
	assert.ErrorContains(t, err, "no base model provided")

	_, err = p.CreatePlan(Options{Hueforge: "a.3mf", Base: "b.stl", Format: "obj"})
	assert.Error(t, err)

	plan, err := p.CreatePlan(Options{Hueforge: "a.3mf", Base: "b.stl", FillGaps: true, PreserveColors: true})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Validate inputs", "Check engine", "Resolve colors", "Load meshes", "Place overlay",
		"Compute base hull", "Gap fill", "Combine", "Export", "Inject colors",
	}, plan.StepNames())
	assert.Equal(t, "combined.3mf", plan.opts.Output)
}

func TestNewPlannerDefaults(t *testing.T) {
	p := NewPlanner(&engine.AssembleEngine{}, models.ForgeConfig{EmbedOverlapMM: 0.2}, nil)
	assert.Equal(t, 0.2, p.Settings.EmbedOverlapMM)
	assert.Equal(t, engine.DefaultExtrudeHeight, p.Settings.ExtrudeHeightMM)
	assert.Equal(t, [2]float64{256, 256}, p.Settings.BuildPlateMM)
	assert.Equal(t, layers.DefaultLayerHeight, p.Settings.LayerHeightMM)
	assert.Equal(t, 40, p.Settings.PerimeterSamples)
}

type failingEngine struct {
	engine.AssembleEngine
	checkErr error
}

func (e *failingEngine) Check(ctx context.Context) error {
	return e.checkErr
}

func (e *failingEngine) Combine(ctx context.Context, job engine.Job) (*engine.Result, error) {
	return nil, engine.ErrEmptyClip
}

func TestForgeEngineFailures(t *testing.T) {
	_, opts := inputs(t)

	_, err := run(t, &failingEngine{checkErr: engine.ErrEngineUnavailable}, opts)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)

	summary, err := run(t, &failingEngine{}, opts)
	assert.ErrorIs(t, err, engine.ErrEmptyClip)
	require.NotNil(t, summary)
	_, statErr := os.Stat(opts.Output)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestForgeCancelled(t *testing.T) {
	_, opts := inputs(t)
	plan, err := NewPlanner(&engine.AssembleEngine{}, models.ForgeConfig{}, nil).CreatePlan(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = plan.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCaptureReporter(t *testing.T) {
	r := NewCaptureReporter(nil)
	r.Step(1, 2, "Load")
	r.Info("hello")
	r.Warning("careful")
	assert.Equal(t, []string{"=== Step 1/2: Load ===", "hello", "Warning: careful"}, r.Lines())
}

func TestPreviewGLB(t *testing.T) {
	dir, opts := inputs(t)
	opts.XShift = 1

	data, placement, err := PreviewGLB(context.Background(), opts, models.ForgeConfig{})
	require.NoError(t, err)
	assert.Equal(t, "glTF", string(data[:4]))
	assert.InDelta(t, 4.9, placement.ZOffset, 1e-9)

	_, _, err = PreviewGLB(context.Background(), Options{Hueforge: filepath.Join(dir, "missing.stl"), Base: opts.Base}, models.ForgeConfig{})
	assert.ErrorContains(t, err, "hueforge")
}
