package threemf

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/version"
)

// SettingsObjectID is the object id Bambu Studio uses for the combined model
const SettingsObjectID = "2"

const (
	defaultBuildTransform = "1 0 0 0 1 0 0 0 1 128 128 0"
	identityMatrix        = "1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1"
	sourceFile            = "SmithForge/combined_model.3mf"
)

var objectPartPattern = regexp.MustCompile(`^3D/Objects/object_(\d+)\.model$`)

// BuildModelSettings creates Metadata/model_settings.config for a single
// combined object placed with the given build transform
func BuildModelSettings(name, transform string, faceCount int) models.ModelSettings {
	if name == "" {
		name = "SmithForge"
	}
	if transform == "" {
		transform = defaultBuildTransform
	}

	obj := models.SettingsObject{
		ID: SettingsObjectID,
		Metadata: []models.SettingsMetadata{
			{Key: "name", Value: name},
			{Key: "extruder", Value: "1"},
		},
	}
	if faceCount > 0 {
		obj.Metadata = append(obj.Metadata, models.SettingsMetadata{FaceCount: faceCount})
	}

	part := models.Part{
		ID:      "1",
		Subtype: "normal_part",
		Metadata: []models.SettingsMetadata{
			{Key: "name", Value: name},
			{Key: "matrix", Value: identityMatrix},
			{Key: "source_file", Value: sourceFile},
			{Key: "source_object_id", Value: "0"},
			{Key: "source_volume_id", Value: "0"},
			{Key: "source_offset_x", Value: "0"},
			{Key: "source_offset_y", Value: "0"},
			{Key: "source_offset_z", Value: "0"},
		},
	}
	if faceCount > 0 {
		part.MeshStat = &models.MeshStat{FaceCount: faceCount}
	}
	obj.Parts = []models.Part{part}

	return models.ModelSettings{
		Objects: []models.SettingsObject{obj},
		Plate: models.Plate{
			Metadata: []models.SettingsMetadata{
				{Key: "plater_id", Value: "1"},
				{Key: "plater_name", Value: ""},
				{Key: "locked", Value: "false"},
			},
			ModelInstances: []models.ModelInstance{{
				Metadata: []models.SettingsMetadata{
					{Key: "object_id", Value: SettingsObjectID},
					{Key: "instance_id", Value: "0"},
					{Key: "identify_id", Value: SettingsObjectID},
				},
			}},
		},
		Assemble: models.Assemble{
			Items: []models.AssembleItem{{
				ObjectID:   SettingsObjectID,
				InstanceID: "0",
				Transform:  transform,
				Offset:     "0 0 0",
			}},
		},
	}
}

// AddBambuMetadata adds the namespaces and metadata Bambu Studio expects on a model part
func AddBambuMetadata(model *models.Model, withDates bool) {
	model.XmlnsBambuStudio = models.NamespaceBambuStudio
	model.XmlnsP = models.NamespaceProduction
	model.RequiredExtensions = "p"

	model.Metadata = append(model.Metadata,
		models.Metadata{Name: "Application", Value: "SmithForge-" + version.Get().Version},
		models.Metadata{Name: "BambuStudio:3mfVersion", Value: "1"},
	)
	if withDates {
		today := time.Now().Format("2006-01-02")
		model.Metadata = append(model.Metadata,
			models.Metadata{Name: "CreationDate", Value: today},
			models.Metadata{Name: "ModificationDate", Value: today},
		)
	}
}

// RangesXML renders Metadata/layer_config_ranges.xml for one object
func RangesXML(objectID int, ranges []layers.Range) ([]byte, error) {
	obj := models.RangeObject{ID: strconv.Itoa(objectID)}
	for _, r := range ranges {
		obj.Ranges = append(obj.Ranges, models.LayerRange{
			MinZ: layers.FormatZ(r.MinZ),
			MaxZ: layers.FormatZ(r.MaxZ),
			Options: []models.RangeOption{
				{Key: "extruder", Value: r.Extruder},
				{Key: "layer_height", Value: layers.FormatLayerHeight(r.LayerHeight)},
			},
		})
	}
	return marshalXML(models.LayerConfigRanges{Objects: []models.RangeObject{obj}}, " ")
}

// MergeProjectSettings sets the filament settings for the colours on top of
// an existing project_settings.config (which may be empty)
func MergeProjectSettings(existing []byte, colours []string) ([]byte, error) {
	settings := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &settings); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", ProjectSettingsEntry, err)
		}
	}

	if len(colours) > 0 {
		types := make([]string, len(colours))
		for i := range types {
			types[i] = "PLA"
		}
		settings["filament_colour"] = colours
		settings["filament_type"] = types
		settings["enable_prime_tower"] = "1"
		settings["single_extruder_multi_material"] = "1"
	}

	return json.MarshalIndent(settings, "", "    ")
}

// DetectObjectID finds the id of the mesh object the height ranges refer to:
// the first 3D/Objects/object_N.model part, otherwise the first object of
// the root model, otherwise 1.
func DetectObjectID(entries []Entry) int {
	for _, e := range entries {
		if m := objectPartPattern.FindStringSubmatch(e.Name); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil {
				return id
			}
		}
	}
	for _, e := range entries {
		if e.Name != ModelEntry {
			continue
		}
		model, err := parseModel(e.Data)
		if err != nil || len(model.Resources.Objects) == 0 {
			break
		}
		if id, err := strconv.Atoi(model.Resources.Objects[0].ID); err == nil {
			return id
		}
	}
	return 1
}

// emptyRelationships is written for Metadata/_rels/model_settings.config.rels
func emptyRelationships() ([]byte, error) {
	return marshalXML(models.Relationships{Xmlns: models.NamespaceRelationships}, "  ")
}

func marshalXML(v any, indent string) ([]byte, error) {
	data, err := xml.MarshalIndent(v, "", indent)
	if err != nil {
		return nil, fmt.Errorf("error marshaling XML: %w", err)
	}
	var b strings.Builder
	b.WriteString(xml.Header)
	b.Write(data)
	b.WriteString("\n")
	return []byte(b.String()), nil
}
