package engine

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/stl"
	"go.uber.org/zap"
)

//go:embed helper/combine.py
var helperScript []byte

// Exit codes of the helper script
const (
	exitEmptyClip = 3
	exitEmptyHull = 4
)

const (
	helperName  = "smithforge_combine.py"
	requestName = "request.json"
	baseName    = "base.stl"
	overlayName = "overlay.stl"
	resultName  = "combined.stl"
)

// requiredModules must be importable by the interpreter
var requiredModules = []string{"trimesh", "shapely", "manifold3d"}

// PythonEngine runs the boolean operations in a Python subprocess using
// trimesh, shapely and manifold3d.
type PythonEngine struct {
	Python  string // interpreter, defaults to python3
	Script  string // helper script, the embedded one is used when empty
	Timeout time.Duration
	Logger  *zap.Logger
}

// Failure describes a failed helper run
type Failure struct {
	ExitCode int
	Stderr   string
	Log      []string
	err      error
}

func (f *Failure) Error() string {
	msg := strings.TrimSpace(f.Stderr)
	if i := strings.LastIndex(msg, "\n"); i >= 0 {
		msg = msg[i+1:]
	}
	if msg == "" {
		return fmt.Sprintf("%v (exit code %d)", f.err, f.ExitCode)
	}
	return fmt.Sprintf("%v (exit code %d): %s", f.err, f.ExitCode, msg)
}

func (f *Failure) Unwrap() error {
	return f.err
}

type request struct {
	Base          string       `json:"base"`
	Overlay       string       `json:"overlay"`
	Output        string       `json:"output"`
	Hull          [][2]float64 `json:"hull"`
	ExtrudeHeight float64      `json:"extrude_height"`
	Fill          *FillSpec    `json:"fill,omitempty"`
}

func (e *PythonEngine) Name() string {
	return KindPython
}

func (e *PythonEngine) python() string {
	if e.Python == "" {
		return "python3"
	}
	return e.Python
}

func (e *PythonEngine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Check verifies that the interpreter exists and can import the mesh libraries
func (e *PythonEngine) Check(ctx context.Context) error {
	if _, err := exec.LookPath(e.python()); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrEngineUnavailable, e.python())
	}

	code := "import " + strings.Join(requiredModules, ", ")
	cmd := exec.CommandContext(ctx, e.python(), "-c", code)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", ErrEngineUnavailable, lastLine(stderr.String(), err))
	}
	return nil
}

// Combine writes the meshes and a request into the work directory, runs the
// helper and reads back the combined mesh.
func (e *PythonEngine) Combine(ctx context.Context, job Job) (*Result, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}

	workDir := job.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "smithforge-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}

	script, err := e.scriptPath(workDir)
	if err != nil {
		return nil, err
	}

	extrude := job.ExtrudeHeight
	if extrude <= 0 {
		extrude = DefaultExtrudeHeight
	}

	req := request{
		Base:          filepath.Join(workDir, baseName),
		Overlay:       filepath.Join(workDir, overlayName),
		Output:        filepath.Join(workDir, resultName),
		Hull:          job.Hull.Points(),
		ExtrudeHeight: extrude,
		Fill:          job.Fill,
	}

	writer := stl.NewWriter()
	if err := writer.WriteBinary(job.Base.ToSTL(), req.Base); err != nil {
		return nil, fmt.Errorf("failed to write base mesh: %w", err)
	}
	if err := writer.WriteBinary(job.Overlay.ToSTL(), req.Overlay); err != nil {
		return nil, fmt.Errorf("failed to write overlay mesh: %w", err)
	}

	reqPath := filepath.Join(workDir, requestName)
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if err := os.WriteFile(reqPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.python(), "-u", script, "--request", reqPath)
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	e.logger().Debug("running boolean helper",
		zap.String("python", e.python()),
		zap.String("script", script),
		zap.String("work_dir", workDir))

	runErr := cmd.Run()
	log := CompactLog(stdout.String())

	e.logger().Debug("boolean helper finished",
		zap.Duration("duration", time.Since(started)),
		zap.Error(runErr))

	if runErr != nil {
		return nil, e.failure(ctx, runErr, stderr.String(), log)
	}

	combined, err := stl.NewParser().Parse(req.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to read combined mesh: %w", err)
	}
	m := mesh.FromSTL(combined)
	m.Name = job.Base.Name
	if m.Empty() {
		return nil, fmt.Errorf("combined mesh: %w", mesh.ErrEmpty)
	}
	return &Result{Mesh: m, Log: log}, nil
}

func (e *PythonEngine) failure(ctx context.Context, runErr error, stderr string, log []string) error {
	f := &Failure{ExitCode: -1, Stderr: stderr, Log: log, err: ErrCombineFailed}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		f.ExitCode = exitErr.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		f.err = fmt.Errorf("%w: %w", ErrCombineFailed, ctx.Err())
	case f.ExitCode == exitEmptyClip:
		f.err = ErrEmptyClip
	case f.ExitCode == exitEmptyHull:
		f.err = ErrEmptyHull
	case ClassifyFailure(stderr) == MessageNotWatertight:
		f.err = ErrNotWatertight
	case errors.Is(runErr, exec.ErrNotFound):
		f.err = fmt.Errorf("%w: %w", ErrEngineUnavailable, runErr)
	}
	return f
}

func (e *PythonEngine) scriptPath(workDir string) (string, error) {
	if e.Script != "" {
		return e.Script, nil
	}
	path := filepath.Join(workDir, helperName)
	if err := os.WriteFile(path, helperScript, 0o644); err != nil {
		return "", fmt.Errorf("failed to write helper script: %w", err)
	}
	return path, nil
}

func lastLine(output string, fallback error) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return fallback.Error()
	}
	if i := strings.LastIndex(output, "\n"); i >= 0 {
		return output[i+1:]
	}
	return output
}
