package threemf

import (
	"encoding/xml"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
)

// Reader reads 3MF files
type Reader struct{}

// Read reads and parses the root model part of a 3MF file
func (r *Reader) Read(filename string) (*models.Model, error) {
	data, ok, err := ReadEntry(filename, ModelEntry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoModel
	}
	return parseModel(data)
}

// ReadObject parses a model part referenced by path, e.g. 3D/Objects/object_1.model
func (r *Reader) ReadObject(filename, part string) (*models.Model, error) {
	data, ok, err := ReadEntry(filename, part)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", part)
	}
	return parseModel(data)
}

func parseModel(data []byte) (*models.Model, error) {
	var model models.Model
	if err := xml.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("error parsing XML: %w", err)
	}
	return &model, nil
}

// ReadModelSettings parses Metadata/model_settings.config if present
func (r *Reader) ReadModelSettings(filename string) (*models.ModelSettings, error) {
	data, ok, err := ReadEntry(filename, ModelSettingsEntry)
	if err != nil || !ok {
		return nil, err
	}
	var settings models.ModelSettings
	if err := xml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", ModelSettingsEntry, err)
	}
	return &settings, nil
}

// MeshFromXML converts a parsed <mesh> element, transforms are not applied
func MeshFromXML(name string, m *models.Mesh) (*mesh.Mesh, error) {
	if m == nil || len(m.Triangles.Triangle) == 0 {
		return nil, mesh.ErrEmpty
	}
	out := &mesh.Mesh{
		Name:     name,
		Vertices: make([]r3.Vec, len(m.Vertices.Vertex)),
		Faces:    make([][3]int, len(m.Triangles.Triangle)),
	}
	for i, v := range m.Vertices.Vertex {
		out.Vertices[i] = r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
	}
	for i, t := range m.Triangles.Triangle {
		out.Faces[i] = [3]int{t.V1, t.V2, t.V3}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
