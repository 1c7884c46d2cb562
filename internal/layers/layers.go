// Package layers handles colour change information of HueForge models:
// swap instruction text, colour metadata stored in 3MF archives and the
// height range modifiers written for Bambu Studio.
package layers

import (
	"errors"
	"fmt"
)

// ErrNoSwaps is returned when swap instruction text contains no colour swaps
var ErrNoSwaps = errors.New("no swap instructions found in text")

// SwapLayer is a colour change at the top of a layer
type SwapLayer struct {
	TopZ     float64 `json:"top_z"`
	Extruder string  `json:"extruder"`
	Color    string  `json:"color"`
}

// ColorData is the colour information of an overlay
type ColorData struct {
	Layers          []SwapLayer `json:"layers"`
	FilamentColours []string    `json:"filament_colours"`
	// LayerConfigRangesXML is the raw height range file found in the source archive
	LayerConfigRangesXML string `json:"layer_config_ranges_xml,omitempty"`
	// Warnings collected while mapping colour names
	Warnings []string `json:"warnings,omitempty"`
}

// Empty reports whether there are no colour changes
func (d *ColorData) Empty() bool {
	return d == nil || len(d.Layers) == 0
}

// ValidateHeights checks the swap heights, shifted by offset, against the
// model height and returns one warning per offending layer.
func ValidateHeights(data *ColorData, offset, maxHeight float64) []string {
	if data.Empty() {
		return nil
	}

	var warnings []string
	for i, layer := range data.Layers {
		z := layer.TopZ + offset
		if z < 0 {
			warnings = append(warnings, fmt.Sprintf("Layer %d has negative Z-height: %.3fmm", i+1, z))
		}
		if z > maxHeight {
			warnings = append(warnings, fmt.Sprintf("Layer %d Z-height (%.3fmm) exceeds model height (%.3fmm)", i+1, z, maxHeight))
		}
	}
	return warnings
}
