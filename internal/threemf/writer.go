package threemf

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hpinc/go3mf"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
)

// Format selects the 3MF flavour written
type Format string

const (
	FormatStandard Format = "standard"
	FormatBambu    Format = "bambu"
)

// ParseFormat validates an output format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatStandard:
		return FormatStandard, nil
	case FormatBambu:
		return FormatBambu, nil
	}
	return "", fmt.Errorf("unknown output format %q (use standard or bambu)", s)
}

// Options controls how a mesh is written
type Options struct {
	Format Format
	Name   string
	// Colors are written as height range modifiers when present
	Colors      *layers.ColorData
	ZOffset     float64
	PlateSize   [2]float64
	LayerHeight float64
}

// Result describes a written archive
type Result struct {
	Path      string
	Format    Format
	Faces     int
	Transform string
	// ZOffset is the colour offset in the coordinates of the written mesh
	ZOffset float64
	Ranges  []layers.Range
}

// Writer writes meshes as 3MF files
type Writer struct{}

// NewWriter creates a new 3MF writer
func NewWriter() *Writer {
	return &Writer{}
}

// Write writes the mesh to path in the requested format
func (w *Writer) Write(path string, m *mesh.Mesh, opts Options) (*Result, error) {
	if m.Empty() {
		return nil, mesh.ErrEmpty
	}
	if opts.Name == "" {
		opts.Name = m.Name
	}
	if opts.Name == "" {
		opts.Name = "SmithForge"
	}
	if opts.PlateSize == [2]float64{} {
		opts.PlateSize = geometry.DefaultPlateSize
	}

	switch opts.Format {
	case FormatBambu:
		return w.writeBambu(path, m, opts)
	case FormatStandard, "":
		return w.writeStandard(path, m, opts)
	}
	return nil, fmt.Errorf("unknown output format %q", opts.Format)
}

func (w *Writer) writeStandard(path string, m *mesh.Mesh, opts Options) (*Result, error) {
	gm := &go3mf.Mesh{}
	gm.Vertices.Vertex = make([]go3mf.Point3D, len(m.Vertices))
	for i, v := range m.Vertices {
		gm.Vertices.Vertex[i] = go3mf.Point3D{float32(v.X), float32(v.Y), float32(v.Z)}
	}
	gm.Triangles.Triangle = make([]go3mf.Triangle, len(m.Faces))
	for i, f := range m.Faces {
		gm.Triangles.Triangle[i] = go3mf.Triangle{V1: uint32(f[0]), V2: uint32(f[1]), V3: uint32(f[2])}
	}

	model := go3mf.Model{Units: go3mf.UnitMillimeter}
	model.Resources.Objects = append(model.Resources.Objects, &go3mf.Object{ID: 1, Name: opts.Name, Mesh: gm})
	model.Build.Items = append(model.Build.Items, &go3mf.Item{ObjectID: 1})

	out, err := go3mf.CreateWriter(path)
	if err != nil {
		return nil, fmt.Errorf("error creating 3MF: %w", err)
	}
	if err := out.Encode(&model); err != nil {
		out.Close()
		return nil, fmt.Errorf("error encoding 3MF: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("error closing 3MF: %w", err)
	}

	res := &Result{Path: path, Format: FormatStandard, Faces: m.FaceCount(), ZOffset: opts.ZOffset}
	if !opts.Colors.Empty() {
		ranges, err := InjectColorMetadata(path, opts.Colors, opts.ZOffset, opts.LayerHeight)
		if err != nil {
			return res, fmt.Errorf("error injecting color metadata: %w", err)
		}
		res.Ranges = ranges
	}
	return res, nil
}

// writeBambu writes the project layout Bambu Studio produces itself: the mesh
// lives in 3D/Objects/object_1.model, the root model references it through a
// components object, and the build item centers it on the plate.
func (w *Writer) writeBambu(path string, m *mesh.Mesh, opts Options) (*Result, error) {
	bounds, err := m.Bounds()
	if err != nil {
		return nil, err
	}

	// Center in XY, bottom on Z=0
	local := m.Clone()
	center := bounds.Center()
	local.Translate(r3.Vec{X: -center.X, Y: -center.Y, Z: -bounds.MinZ})
	zOffset := opts.ZOffset - bounds.MinZ

	const meshID = 1
	transform := geometry.PlateTransform(opts.PlateSize, 0)

	object := models.Model{
		Xmlns: models.NamespaceCore,
		Unit:  "millimeter",
		Lang:  "en-US",
		Resources: models.Resources{
			Objects: []models.Object{{
				ID:   fmt.Sprint(meshID),
				UUID: uuid.NewString(),
				Type: "model",
				Mesh: xmlMesh(local),
			}},
		},
	}
	AddBambuMetadata(&object, false)

	root := models.Model{
		Xmlns: models.NamespaceCore,
		Unit:  "millimeter",
		Lang:  "en-US",
		Resources: models.Resources{
			Objects: []models.Object{{
				ID:   SettingsObjectID,
				Name: opts.Name,
				UUID: uuid.NewString(),
				Type: "model",
				Components: &models.Components{Component: []models.Component{{
					Path:      "/" + objectPart(meshID),
					ObjectID:  fmt.Sprint(meshID),
					UUID:      uuid.NewString(),
					Transform: geometry.BuildTranslationTransform(0, 0, 0),
				}}},
			}},
		},
		Build: models.Build{
			UUID: uuid.NewString(),
			Items: []models.Item{{
				ObjectID:  SettingsObjectID,
				UUID:      uuid.NewString(),
				Transform: transform,
				Printable: "1",
			}},
		},
	}
	AddBambuMetadata(&root, true)

	parts := []struct {
		name string
		v    any
	}{
		{ContentTypesEntry, contentTypes()},
		{RootRelsEntry, modelRelationships("/" + ModelEntry)},
		{ModelEntry, root},
		{ModelRelsEntry, modelRelationships("/" + objectPart(meshID))},
		{objectPart(meshID), object},
		{ModelSettingsEntry, BuildModelSettings(opts.Name, transform, local.FaceCount())},
		{ModelSettingsRelsEntry, models.Relationships{Xmlns: models.NamespaceRelationships}},
	}

	entries := make([]Entry, 0, len(parts)+2)
	for _, p := range parts {
		indent := "  "
		if strings.HasSuffix(p.name, ".model") {
			indent = " "
		}
		data, err := marshalXML(p.v, indent)
		if err != nil {
			return nil, fmt.Errorf("error writing %s: %w", p.name, err)
		}
		entries = append(entries, Entry{Name: p.name, Data: data})
	}

	res := &Result{Path: path, Format: FormatBambu, Faces: local.FaceCount(), Transform: transform, ZOffset: zOffset}
	if !opts.Colors.Empty() {
		colors, ranges, err := colorParts(entries, opts.Colors, zOffset, opts.LayerHeight)
		if err != nil {
			return nil, fmt.Errorf("error building color metadata: %w", err)
		}
		// Keep the named model settings, the rest is appended
		delete(colors, ModelSettingsEntry)
		delete(colors, ModelSettingsRelsEntry)
		for _, name := range []string{ProjectSettingsEntry, LayerConfigRangesEntry} {
			entries = append(entries, Entry{Name: name, Data: colors[name]})
		}
		res.Ranges = ranges
	}

	if err := WriteArchive(path, entries); err != nil {
		return nil, err
	}
	return res, nil
}

func xmlMesh(m *mesh.Mesh) *models.Mesh {
	out := &models.Mesh{}
	out.Vertices.Vertex = make([]models.Vertex, len(m.Vertices))
	for i, v := range m.Vertices {
		out.Vertices.Vertex[i] = models.Vertex{X: v.X, Y: v.Y, Z: v.Z}
	}
	out.Triangles.Triangle = make([]models.Triangle, len(m.Faces))
	for i, f := range m.Faces {
		out.Triangles.Triangle[i] = models.Triangle{V1: f[0], V2: f[1], V3: f[2]}
	}
	return out
}

func contentTypes() models.ContentTypes {
	return models.ContentTypes{
		Xmlns: models.NamespaceContentTypes,
		Defaults: []models.ContentTypeDefault{
			{Extension: "rels", ContentType: "application/vnd.openxmlformats-package.relationships+xml"},
			{Extension: "model", ContentType: "application/vnd.ms-package.3dmanufacturing-3dmodel+xml"},
			{Extension: "png", ContentType: "image/png"},
		},
	}
}

func modelRelationships(target string) models.Relationships {
	return models.Relationships{
		Xmlns: models.NamespaceRelationships,
		Relationships: []models.Relationship{
			{ID: "rel-1", Target: target, Type: models.RelationshipType3DModel},
		},
	}
}
