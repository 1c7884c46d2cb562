package layers

import (
	"archive/zip"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/philipparndt/smithforge/internal/models"
)

// Archive entries holding colour information
const (
	CustomGCodeEntry       = "Metadata/custom_gcode_per_layer.xml"
	ProjectSettingsEntry   = "Metadata/project_settings.config"
	LayerConfigRangesEntry = "Metadata/layer_config_ranges.xml"
	ModelEntry             = "3D/3dmodel.model"
)

// colorChangeType marks a colour change in custom_gcode_per_layer.xml
const colorChangeType = "2"

func readEntry(zr *zip.ReadCloser, name string) ([]byte, bool, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, true, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, true, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, true, nil
	}
	return nil, false, nil
}

// ExtractColorLayers reads the colour changes stored in a HueForge 3MF export.
// It returns nil without error when the archive carries no colour changes.
func ExtractColorLayers(path string) (*ColorData, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open 3MF file: %w", err)
	}
	defer zr.Close()

	raw, ok, err := readEntry(zr, CustomGCodeEntry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var gcodes models.CustomGCodePerLayer
	if err := xml.Unmarshal(raw, &gcodes); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", CustomGCodeEntry, err)
	}

	data := &ColorData{}
	all := gcodes.Layers
	for _, plate := range gcodes.Plates {
		all = append(all, plate.Layers...)
	}
	for _, l := range all {
		if l.Type != colorChangeType || l.TopZ == "" || l.Extruder == "" || l.Color == "" {
			continue
		}
		z, err := strconv.ParseFloat(l.TopZ, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid top_z %q: %w", l.TopZ, err)
		}
		data.Layers = append(data.Layers, SwapLayer{TopZ: z, Extruder: l.Extruder, Color: l.Color})
	}

	if settings, ok, err := readEntry(zr, ProjectSettingsEntry); err != nil {
		return nil, err
	} else if ok {
		var cfg struct {
			FilamentColour []string `json:"filament_colour"`
		}
		if err := json.Unmarshal(settings, &cfg); err != nil {
			data.Warnings = append(data.Warnings, fmt.Sprintf("Could not extract filament colors: %v", err))
		} else {
			data.FilamentColours = cfg.FilamentColour
		}
	}

	if ranges, ok, err := readEntry(zr, LayerConfigRangesEntry); err != nil {
		return nil, err
	} else if ok {
		data.LayerConfigRangesXML = string(ranges)
	}

	if len(data.Layers) == 0 {
		return nil, nil
	}
	return data, nil
}
