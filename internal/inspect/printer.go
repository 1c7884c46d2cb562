package inspect

import (
	"fmt"
	"strings"

	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/ui"
)

// ModelPrinter handles printing model hierarchy and details
type ModelPrinter struct{}

// NewModelPrinter creates a new ModelPrinter
func NewModelPrinter() *ModelPrinter {
	return &ModelPrinter{}
}

// Lines renders the object hierarchy, one entry per line
func (p *ModelPrinter) Lines(model *models.Model, settings *models.ModelSettings) []string {
	names := settingsNames(settings)

	// Objects only referenced as components are printed below their parent
	componentIDs := make(map[string]bool)
	for _, obj := range model.Resources.Objects {
		if obj.Components == nil {
			continue
		}
		for _, comp := range obj.Components.Component {
			if comp.Path == "" {
				componentIDs[comp.ObjectID] = true
			}
		}
	}

	var lines []string
	for idx := range model.Resources.Objects {
		obj := &model.Resources.Objects[idx]
		if obj.Components == nil && componentIDs[obj.ID] {
			continue
		}
		lines = append(lines, p.object(model, obj, names)...)
	}
	return lines
}

// PrintObjectHierarchy prints the object hierarchy with components and parts
func (p *ModelPrinter) PrintObjectHierarchy(model *models.Model, settings *models.ModelSettings) {
	lines := p.Lines(model, settings)
	if len(lines) == 0 {
		ui.PrintStep("No objects found")
		return
	}
	for _, line := range lines {
		ui.PrintStep(line)
	}
}

func (p *ModelPrinter) object(model *models.Model, obj *models.Object, names map[string]string) []string {
	name := obj.Name
	if n, ok := names[obj.ID]; ok {
		name = n
	}
	if name == "" {
		name = "(unnamed)"
	}

	meshInfo := ""
	if obj.Mesh != nil {
		meshInfo = fmt.Sprintf(" [%d vertices, %d triangles]", len(obj.Mesh.Vertices.Vertex), len(obj.Mesh.Triangles.Triangle))
	}

	if obj.Components == nil || len(obj.Components.Component) == 0 {
		return []string{fmt.Sprintf("• %s (ID: %s)%s", name, obj.ID, meshInfo)}
	}

	lines := []string{fmt.Sprintf("• %s (ID: %s) - %d part(s)%s", name, obj.ID, len(obj.Components.Component), meshInfo)}
	for _, comp := range obj.Components.Component {
		lines = append(lines, p.component(model, comp, names))
	}
	return lines
}

func (p *ModelPrinter) component(model *models.Model, comp models.Component, names map[string]string) string {
	indent := "  "

	name := names[comp.ObjectID]
	if name == "" && comp.Path == "" {
		name = objectName(model, comp.ObjectID)
	}
	if name == "" {
		name = "(unnamed)"
	}

	location := ""
	if comp.Path != "" {
		location = " in " + strings.TrimPrefix(comp.Path, "/")
	}

	offsetInfo := ""
	if x, y, z, ok := geometry.TransformOffset(comp.Transform); ok && (x != 0 || y != 0 || z != 0) {
		offsetInfo = fmt.Sprintf(" [offset: %.2f, %.2f, %.2f]", x, y, z)
	}

	return fmt.Sprintf("%s- %s (ID: %s)%s%s", indent, name, comp.ObjectID, location, offsetInfo)
}

// settingsNames maps object and part IDs to the names in model_settings.config
func settingsNames(settings *models.ModelSettings) map[string]string {
	names := make(map[string]string)
	if settings == nil {
		return names
	}
	for _, obj := range settings.Objects {
		if n := metadataValue(obj.Metadata, "name"); n != "" {
			names[obj.ID] = n
		}
		for _, part := range obj.Parts {
			if n := metadataValue(part.Metadata, "name"); n != "" {
				names[part.ID] = n
			}
		}
	}
	return names
}

func metadataValue(meta []models.SettingsMetadata, key string) string {
	for _, m := range meta {
		if m.Key == key {
			return m.Value
		}
	}
	return ""
}
