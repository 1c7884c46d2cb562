package forge

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/philipparndt/smithforge/internal/engine"
	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/threemf"
)

// BuildStep is a single step in the build plan
type BuildStep interface {
	Name() string
	Execute(ctx context.Context, s *state) error
}

// BuildPlan contains all steps of one forge run
type BuildPlan struct {
	Steps []BuildStep

	opts     Options
	settings models.ForgeConfig
	engine   engine.Engine
	reporter Reporter
}

// Planner creates build plans
type Planner struct {
	Engine   engine.Engine
	Settings models.ForgeConfig
	Reporter Reporter
}

// NewPlanner creates a planner combining meshes with eng
func NewPlanner(eng engine.Engine, settings models.ForgeConfig, reporter Reporter) *Planner {
	if reporter == nil {
		reporter = NewCaptureReporter(nil)
	}
	return &Planner{Engine: eng, Settings: withDefaults(settings), Reporter: reporter}
}

func withDefaults(s models.ForgeConfig) models.ForgeConfig {
	if s.EmbedOverlapMM == 0 {
		s.EmbedOverlapMM = geometry.DefaultEmbedOverlap
	}
	if s.ExtrudeHeightMM == 0 {
		s.ExtrudeHeightMM = engine.DefaultExtrudeHeight
	}
	if s.BuildPlateMM == [2]float64{} {
		s.BuildPlateMM = geometry.DefaultPlateSize
	}
	if s.LayerHeightMM == 0 {
		s.LayerHeightMM = layers.DefaultLayerHeight
	}
	if s.PerimeterSamples == 0 {
		s.PerimeterSamples = geometry.DefaultPerimeterSamples
	}
	return s
}

// CreatePlan checks the options and lays out the steps of the run
func (p *Planner) CreatePlan(opts Options) (*BuildPlan, error) {
	if opts.Hueforge == "" {
		return nil, errors.New("no HueForge file given")
	}
	if opts.Base == "" {
		return nil, errors.New("no base model provided")
	}
	if opts.Output == "" {
		opts.Output = "combined.3mf"
	}
	if opts.PreserveColors && opts.injectsText() {
		return nil, ErrConflictingColorSources
	}
	format, err := threemf.ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	opts.Format = format

	plan := &BuildPlan{
		opts:     opts,
		settings: p.Settings,
		engine:   p.Engine,
		reporter: p.Reporter,
	}

	plan.Steps = append(plan.Steps, &validateInputsStep{}, &checkEngineStep{})
	if opts.PreserveColors || opts.injectsText() {
		plan.Steps = append(plan.Steps, &resolveColorsStep{})
	}
	plan.Steps = append(plan.Steps, &loadMeshesStep{})
	if opts.AutoRepair {
		plan.Steps = append(plan.Steps, &repairStep{})
	}
	plan.Steps = append(plan.Steps, &placeStep{}, &hullStep{})
	if opts.FillGaps {
		plan.Steps = append(plan.Steps, &gapFillStep{})
	}
	plan.Steps = append(plan.Steps, &combineStep{}, &exportStep{})
	if opts.PreserveColors || opts.injectsText() {
		plan.Steps = append(plan.Steps, &injectColorsStep{})
	}
	if opts.Preview != "" {
		plan.Steps = append(plan.Steps, &previewStep{})
	}
	return plan, nil
}

// StepNames lists the steps in execution order
func (p *BuildPlan) StepNames() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the plan
func (p *BuildPlan) Execute(ctx context.Context) (*Summary, error) {
	s := &state{
		opts:     p.opts,
		settings: p.settings,
		engine:   p.engine,
		reporter: p.reporter,
		summary:  Summary{Output: p.opts.Output, Engine: p.engine.Name(), Format: p.opts.Format},
	}

	if s.opts.WorkDir == "" {
		dir, err := os.MkdirTemp("", "smithforge-*")
		if err != nil {
			return nil, fmt.Errorf("error creating work directory: %w", err)
		}
		defer os.RemoveAll(dir)
		s.workDir = dir
	} else {
		s.workDir = s.opts.WorkDir
	}

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return &s.summary, err
		}
		s.reporter.Step(i+1, len(p.Steps), step.Name())
		s.summary.Log = append(s.summary.Log, fmt.Sprintf("=== %s ===", step.Name()))
		if err := step.Execute(ctx, s); err != nil {
			return &s.summary, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	s.success("Done! Rotation, user shift, scaling, centering, clipping, embedding, and union complete.")
	return &s.summary, nil
}

// state is shared between the steps of one run
type state struct {
	opts     Options
	settings models.ForgeConfig
	engine   engine.Engine
	reporter Reporter
	workDir  string

	colors    *layers.ColorData
	base      *mesh.Mesh
	overlay   *mesh.Mesh
	placement geometry.Placement
	hull      geometry.Polygon
	fill      *engine.FillSpec
	combined  *mesh.Mesh
	written   *threemf.Result
	summary   Summary
}

func (s *state) info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.summary.Log = append(s.summary.Log, msg)
	s.reporter.Info(msg)
}

func (s *state) success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.summary.Log = append(s.summary.Log, msg)
	s.reporter.Success(msg)
}

func (s *state) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.summary.Log = append(s.summary.Log, "Warning: "+msg)
	s.summary.Warnings = append(s.summary.Warnings, msg)
	s.reporter.Warning(msg)
}
