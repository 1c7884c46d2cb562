package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/stl"
	"github.com/philipparndt/smithforge/internal/threemf"
	"github.com/philipparndt/smithforge/internal/ui"
)

// ErrNoMeshes is returned when a 3MF file contains no mesh objects
var ErrNoMeshes = errors.New("no mesh objects found in 3MF file")

// Extractor extracts 3D models from 3MF files
type Extractor struct {
	reader    *threemf.Reader
	stlWriter *stl.Writer
}

// NewExtractor creates a new Extractor
func NewExtractor() *Extractor {
	return &Extractor{
		reader:    &threemf.Reader{},
		stlWriter: stl.NewWriter(),
	}
}

// Options controls what Extract writes
type Options struct {
	OutputDir string
	// ASCII writes text STL instead of binary
	ASCII bool
	// Merged writes the whole build as one STL with all transforms applied
	Merged bool
}

// Extract writes the meshes of a 3MF file as STL files and returns their paths
func (e *Extractor) Extract(filename string, opts Options) ([]string, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}

	if opts.Merged {
		m, err := mesh.Load(filename)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		m.Name = name
		out := filepath.Join(opts.OutputDir, cleanName(name)+".stl")
		if err := e.write(m, out, opts.ASCII); err != nil {
			return nil, err
		}
		return []string{out}, nil
	}

	model, err := e.reader.Read(filename)
	if err != nil {
		return nil, err
	}
	settings, _ := e.reader.ReadModelSettings(filename)
	names := objectNames(settings)

	var written []string
	for _, obj := range model.Resources.Objects {
		name := obj.Name
		if n := names[obj.ID]; n != "" {
			name = n
		}

		if obj.Mesh != nil {
			out, err := e.extractMesh(name, obj.ID, obj.Mesh, opts, len(written))
			if err != nil {
				ui.PrintError(fmt.Sprintf("Error extracting mesh for object %s (ID: %s): %v", name, obj.ID, err))
				continue
			}
			written = append(written, out)
			continue
		}

		if obj.Components == nil {
			continue
		}
		for idx, comp := range obj.Components.Component {
			// Components without a path point into this model and are extracted on their own
			if comp.Path == "" {
				continue
			}
			part, err := e.reader.ReadObject(filename, strings.TrimPrefix(comp.Path, "/"))
			if err != nil {
				ui.PrintError(fmt.Sprintf("Error reading external model %s: %v", comp.Path, err))
				continue
			}
			partMesh := findMesh(part, comp.ObjectID)
			if partMesh == nil {
				ui.PrintError(fmt.Sprintf("No mesh for object %s in %s", comp.ObjectID, comp.Path))
				continue
			}

			partName := name
			if n := names[comp.ObjectID]; n != "" && len(obj.Components.Component) > 1 {
				partName = n
			} else if partName == "" {
				partName = fmt.Sprintf("object_%s_component_%d", obj.ID, idx)
			} else if len(obj.Components.Component) > 1 {
				partName = fmt.Sprintf("%s_part_%d", partName, idx+1)
			}

			out, err := e.extractMesh(partName, obj.ID, partMesh, opts, len(written))
			if err != nil {
				ui.PrintError(fmt.Sprintf("Error extracting component mesh: %v", err))
				continue
			}
			written = append(written, out)
		}
	}

	if len(written) == 0 {
		return nil, ErrNoMeshes
	}
	return written, nil
}

func (e *Extractor) extractMesh(name, id string, xm *models.Mesh, opts Options, index int) (string, error) {
	m, err := threemf.MeshFromXML(name, xm)
	if err != nil {
		return "", fmt.Errorf("error parsing mesh: %w", err)
	}
	out := filename(name, id, opts.OutputDir, index)
	if err := e.write(m, out, opts.ASCII); err != nil {
		return "", err
	}
	return out, nil
}

func (e *Extractor) write(m *mesh.Mesh, path string, ascii bool) error {
	var err error
	if ascii {
		err = e.stlWriter.WriteASCII(m.ToSTL(), path)
	} else {
		err = e.stlWriter.WriteBinary(m.ToSTL(), path)
	}
	if err != nil {
		return fmt.Errorf("error writing STL file: %w", err)
	}
	return nil
}

// findMesh returns the mesh of object id, or the first mesh when id is not found
func findMesh(model *models.Model, id string) *models.Mesh {
	var first *models.Mesh
	for _, obj := range model.Resources.Objects {
		if obj.Mesh == nil {
			continue
		}
		if obj.ID == id {
			return obj.Mesh
		}
		if first == nil {
			first = obj.Mesh
		}
	}
	return first
}

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")

func cleanName(name string) string {
	return nameReplacer.Replace(name)
}

// filename generates an output filename for an extracted model
func filename(name, id, outputDir string, index int) string {
	clean := cleanName(name)
	if clean == "" {
		clean = "object_" + id
	}

	base := fmt.Sprintf("%s_%s.stl", clean, id)
	if index > 0 {
		base = fmt.Sprintf("%s_%s_%d.stl", clean, id, index)
	}
	return filepath.Join(outputDir, base)
}

// objectNames reads object and part names from model_settings.config
func objectNames(settings *models.ModelSettings) map[string]string {
	names := make(map[string]string)
	if settings == nil {
		return names
	}
	for _, obj := range settings.Objects {
		for _, meta := range obj.Metadata {
			if meta.Key == "name" && meta.Value != "" {
				names[obj.ID] = strings.TrimSuffix(meta.Value, ".stl")
				break
			}
		}
		for _, part := range obj.Parts {
			for _, meta := range part.Metadata {
				if meta.Key == "name" && meta.Value != "" {
					if _, taken := names[part.ID]; !taken {
						names[part.ID] = strings.TrimSuffix(meta.Value, ".stl")
					}
					break
				}
			}
		}
	}
	return names
}
