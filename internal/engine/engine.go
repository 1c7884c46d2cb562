// Package engine performs the boolean part of a forge run: clipping the
// overlay to the base footprint, adding gap fill and merging everything into
// one mesh.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
	"go.uber.org/zap"
)

// Engine kinds accepted in the configuration
const (
	KindPython   = "python"
	KindAssemble = "assemble"
)

// DefaultExtrudeHeight is the height of the prism used to clip the overlay
const DefaultExtrudeHeight = 500.0

// MinFillThickness is the thinnest gap fill that is generated
const MinFillThickness = 0.2

var (
	ErrNotWatertight     = errors.New("not watertight")
	ErrEngineUnavailable = errors.New("boolean engine is not available")
	ErrEmptyClip         = errors.New("intersection is empty, possibly no overlap or base not a volume")
	ErrEmptyHull         = errors.New("base hull is empty, check your base geometry")
	ErrCombineFailed     = errors.New("combine failed")
)

// FillSpec asks for gap fill geometry between the overlay footprint and the base hull
type FillSpec struct {
	Height   float64 `json:"height"`
	BaseTopZ float64 `json:"base_top_z"`
}

// Thickness of the fill slab on top of the base
func (f FillSpec) Thickness() float64 {
	return max(f.Height-f.BaseTopZ, MinFillThickness)
}

// Job is one boolean combine request. Meshes are already placed.
type Job struct {
	Base          *mesh.Mesh
	Overlay       *mesh.Mesh
	Hull          geometry.Polygon
	ExtrudeHeight float64
	Fill          *FillSpec
	// WorkDir receives intermediate files, a temporary directory is used when empty
	WorkDir string
}

// Result of a combine
type Result struct {
	Mesh *mesh.Mesh
	Log  []string
}

// Engine combines placed meshes
type Engine interface {
	Name() string
	Check(ctx context.Context) error
	Combine(ctx context.Context, job Job) (*Result, error)
}

// New creates the engine selected in the configuration
func New(cfg models.EngineConfig, logger *zap.Logger) (Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Kind {
	case KindPython, "":
		timeout := time.Duration(0)
		if cfg.Timeout != "" {
			d, err := time.ParseDuration(cfg.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid engine timeout %q: %w", cfg.Timeout, err)
			}
			timeout = d
		}
		return &PythonEngine{
			Python:  cfg.Python,
			Script:  cfg.Script,
			Timeout: timeout,
			Logger:  logger,
		}, nil
	case KindAssemble:
		return &AssembleEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
	}
}

func (j Job) validate() error {
	if j.Base.Empty() {
		return fmt.Errorf("base: %w", mesh.ErrEmpty)
	}
	if j.Overlay.Empty() {
		return fmt.Errorf("overlay: %w", mesh.ErrEmpty)
	}
	if j.Hull.Empty() {
		return ErrEmptyHull
	}
	return nil
}
