// Package forge runs the SmithForge pipeline: it places a HueForge overlay on
// a base model, clips and unions them through an engine and writes the
// result as 3MF, carrying the overlay's colour swaps along.
package forge

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/threemf"
)

// ErrConflictingColorSources is returned when colours should be both preserved and injected
var ErrConflictingColorSources = errors.New("--preserve-colors and --inject-colors-text are mutually exclusive")

// Options are the parameters of one forge run
type Options struct {
	Hueforge string
	Base     string
	Output   string

	RotateBase float64
	// Scale forces the uniform XY scale, 0 computes it
	Scale     float64
	ScaleDown bool
	XShift    float64
	YShift    float64
	ZShift    float64

	PreserveColors bool
	// InjectColorsText is a file with HueForge swap instructions
	InjectColorsText string
	// InjectColorsContent holds swap instructions directly, e.g. from a form field
	InjectColorsContent string

	AutoRepair bool
	FillGaps   bool
	Format     threemf.Format
	// Preview writes a footprint PNG to this path when set
	Preview string

	// WorkDir keeps intermediate engine files, a temporary directory is used when empty
	WorkDir string
}

func (o Options) injectsText() bool {
	return o.InjectColorsText != "" || o.InjectColorsContent != ""
}

// Summary describes a finished run
type Summary struct {
	Output    string         `json:"output"`
	Scale     float64        `json:"scale"`
	ZOffset   float64        `json:"z_offset"`
	Faces     int            `json:"faces"`
	Ranges    []layers.Range `json:"-"`
	Warnings  []string       `json:"warnings"`
	Log       []string       `json:"log"`
	Engine    string         `json:"engine"`
	Format    threemf.Format `json:"format"`
	ColorsSet bool           `json:"colors"`
}

// Reporter receives progress while a plan executes
type Reporter interface {
	Step(index, total int, name string)
	Info(message string)
	Success(message string)
	Warning(message string)
}

// CaptureReporter records every line and mirrors it to a zap logger
type CaptureReporter struct {
	Logger *zap.Logger

	mu    sync.Mutex
	lines []string
}

// NewCaptureReporter creates a reporter logging to logger (may be nil)
func NewCaptureReporter(logger *zap.Logger) *CaptureReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureReporter{Logger: logger}
}

func (r *CaptureReporter) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *CaptureReporter) Step(index, total int, name string) {
	r.add(fmt.Sprintf("=== Step %d/%d: %s ===", index, total, name))
	r.Logger.Debug("forge step", zap.Int("index", index), zap.Int("total", total), zap.String("step", name))
}

func (r *CaptureReporter) Info(message string) {
	r.add(message)
	r.Logger.Debug(message)
}

func (r *CaptureReporter) Success(message string) {
	r.add(message)
	r.Logger.Info(message)
}

func (r *CaptureReporter) Warning(message string) {
	r.add("Warning: " + message)
	r.Logger.Warn(message)
}

// Lines returns a copy of the recorded lines
func (r *CaptureReporter) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
