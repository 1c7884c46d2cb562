package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/philipparndt/smithforge/internal/engine"
	"github.com/philipparndt/smithforge/internal/models"
)

// DefaultFile is read from the working directory when no --config is given
const DefaultFile = "smithforge.yaml"

// Default returns the configuration used when no file is present
func Default() *models.Config {
	return &models.Config{
		Server: models.ServerConfig{
			Addr:              ":8000",
			InputsDir:         "inputs",
			BasesDir:          filepath.Join("inputs", "bases"),
			OutputsDir:        "outputs",
			MaxUploadMB:       200,
			MaxConcurrentJobs: 2,
			JobDB:             filepath.Join("outputs", "jobs.db"),
		},
		Engine: models.EngineConfig{
			Kind:    engine.KindPython,
			Python:  "python3",
			Timeout: "120s",
		},
		Forge: models.ForgeConfig{
			EmbedOverlapMM:   0.1,
			ExtrudeHeightMM:  engine.DefaultExtrudeHeight,
			BuildPlateMM:     [2]float64{256, 256},
			LayerHeightMM:    0.08,
			PerimeterSamples: 40,
		},
	}
}

// Loader handles loading and validating YAML configuration files
type Loader struct{}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses a YAML configuration file on top of the defaults.
// An empty path returns the defaults. Relative paths in the file are
// resolved against the directory of the file.
func (l *Loader) Load(configPath string) (*models.Config, error) {
	config := Default()
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	absConfigDir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path of config directory: %w", err)
	}

	for _, p := range []*string{
		&config.Server.InputsDir,
		&config.Server.BasesDir,
		&config.Server.OutputsDir,
		&config.Server.JobDB,
		&config.Engine.Script,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(absConfigDir, *p)
		}
	}

	return config, nil
}

// LoadOptional loads configPath, falling back to the defaults when the
// file does not exist and optional is set
func (l *Loader) LoadOptional(configPath string, optional bool) (*models.Config, error) {
	config, err := l.Load(configPath)
	if err != nil && optional && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return config, err
}

// Validate checks if the configuration is valid
func (l *Loader) Validate(config *models.Config) error {
	s := config.Server
	if s.Addr == "" {
		return fmt.Errorf("server.addr must be specified")
	}
	if s.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", s.MaxUploadMB)
	}
	if s.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("server.max_concurrent_jobs must be positive, got %d", s.MaxConcurrentJobs)
	}

	e := config.Engine
	switch e.Kind {
	case engine.KindPython, engine.KindAssemble:
	default:
		return fmt.Errorf("engine.kind must be %q or %q, got %q", engine.KindPython, engine.KindAssemble, e.Kind)
	}
	if e.Timeout != "" {
		d, err := time.ParseDuration(e.Timeout)
		if err != nil {
			return fmt.Errorf("engine.timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("engine.timeout must not be negative")
		}
	}

	f := config.Forge
	if f.EmbedOverlapMM < 0 {
		return fmt.Errorf("forge.embed_overlap_mm must not be negative")
	}
	if f.ExtrudeHeightMM <= 0 {
		return fmt.Errorf("forge.extrude_height_mm must be positive")
	}
	if f.BuildPlateMM[0] <= 0 || f.BuildPlateMM[1] <= 0 {
		return fmt.Errorf("forge.build_plate_mm must be two positive sizes, got %v", f.BuildPlateMM)
	}
	if f.LayerHeightMM <= 0 {
		return fmt.Errorf("forge.layer_height_mm must be positive")
	}
	if f.PerimeterSamples <= 0 {
		return fmt.Errorf("forge.perimeter_samples must be positive")
	}
	return nil
}
