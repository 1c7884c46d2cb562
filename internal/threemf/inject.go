package threemf

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/models"
)

// InjectColorMetadata writes the colour swaps of data into an existing 3MF
// as Bambu Studio height range modifiers. The swap heights are shifted by
// zOffset. Returns the ranges that were written.
func InjectColorMetadata(path string, data *layers.ColorData, zOffset, layerHeight float64) ([]layers.Range, error) {
	if data.Empty() {
		return nil, nil
	}

	entries, err := ReadEntries(path)
	if err != nil {
		return nil, err
	}

	parts, ranges, err := colorParts(entries, data, zOffset, layerHeight)
	if err != nil {
		return nil, err
	}

	if err := Repack(path, parts); err != nil {
		return nil, fmt.Errorf("error repacking 3MF: %w", err)
	}
	return ranges, nil
}

// colorParts builds the metadata parts carrying the colour swaps for the
// archive described by entries
func colorParts(entries []Entry, data *layers.ColorData, zOffset, layerHeight float64) (map[string][]byte, []layers.Range, error) {
	objectID := DetectObjectID(entries)
	ranges := layers.Ranges(data, zOffset, layerHeight)

	rangesXML, err := RangesXML(objectID, ranges)
	if err != nil {
		return nil, nil, err
	}

	project, err := MergeProjectSettings(findEntry(entries, ProjectSettingsEntry), data.FilamentColours)
	if err != nil {
		return nil, nil, err
	}

	transform, faceCount := archivePlacement(entries, objectID)
	settings, err := marshalXML(BuildModelSettings(objectName(entries, objectID), transform, faceCount), "  ")
	if err != nil {
		return nil, nil, err
	}

	rels, err := emptyRelationships()
	if err != nil {
		return nil, nil, err
	}

	return map[string][]byte{
		LayerConfigRangesEntry: rangesXML,
		ProjectSettingsEntry:   project,
		ModelSettingsEntry:     settings,
		ModelSettingsRelsEntry: rels,
	}, ranges, nil
}

// archivePlacement returns the transform of the first build item and the
// triangle count of the object part
func archivePlacement(entries []Entry, objectID int) (string, int) {
	transform := defaultBuildTransform
	if model, err := parseModel(findEntry(entries, ModelEntry)); err == nil {
		if len(model.Build.Items) > 0 && model.Build.Items[0].Transform != "" {
			transform = model.Build.Items[0].Transform
		}
	}

	faceCount := 0
	if raw := findEntry(entries, objectPart(objectID)); raw != nil {
		if model, err := parseModel(raw); err == nil {
			for _, obj := range model.Resources.Objects {
				if obj.Mesh != nil {
					faceCount += len(obj.Mesh.Triangles.Triangle)
				}
			}
		}
	}
	return transform, faceCount
}

// objectName returns the name of the object from an existing
// model_settings.config, else from the model parts, else ""
func objectName(entries []Entry, objectID int) string {
	var settings models.ModelSettings
	if ok, err := unmarshalEntry(entries, ModelSettingsEntry, &settings); ok && err == nil {
		for _, obj := range settings.Objects {
			for _, md := range obj.Metadata {
				if md.Key == "name" && md.Value != "" {
					return md.Value
				}
			}
		}
	}

	id := strconv.Itoa(objectID)
	for _, part := range []string{objectPart(objectID), ModelEntry} {
		model, err := parseModel(findEntry(entries, part))
		if err != nil {
			continue
		}
		for _, obj := range model.Resources.Objects {
			if obj.Name != "" && (obj.ID == id || part == ModelEntry) {
				return obj.Name
			}
		}
	}
	return ""
}

func objectPart(id int) string {
	return fmt.Sprintf("%sobject_%d.model", ObjectsDir, id)
}

func findEntry(entries []Entry, name string) []byte {
	for _, e := range entries {
		if e.Name == name {
			return e.Data
		}
	}
	return nil
}

// unmarshalEntry decodes an XML part, reporting whether it exists
func unmarshalEntry(entries []Entry, name string, v any) (bool, error) {
	raw := findEntry(entries, name)
	if raw == nil {
		return false, nil
	}
	if err := xml.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("error parsing %s: %w", name, err)
	}
	return true, nil
}
