package layers

import (
	"fmt"
	"strconv"
)

// DefaultLayerHeight is the layer height set on every colour range, in millimeters
const DefaultLayerHeight = 0.08

// lastRangeExtension keeps the last colour active up to the top of the model
const lastRangeExtension = 1000.0

// Range is a height range modifier assigning an extruder to [MinZ, MaxZ)
type Range struct {
	MinZ        float64
	MaxZ        float64
	Extruder    string
	LayerHeight float64
}

// Ranges converts colour swaps into sequential, non-overlapping height
// ranges. The first range starts at zOffset, every following range starts at
// the previous swap, each ends at its own swap height. The last range
// extends far above the model.
func Ranges(data *ColorData, zOffset, layerHeight float64) []Range {
	if data.Empty() {
		return nil
	}
	if layerHeight <= 0 {
		layerHeight = DefaultLayerHeight
	}

	out := make([]Range, len(data.Layers))
	for i, layer := range data.Layers {
		minZ := zOffset
		if i > 0 {
			minZ = data.Layers[i-1].TopZ + zOffset
		}
		maxZ := layer.TopZ + zOffset
		if i == len(data.Layers)-1 {
			maxZ += lastRangeExtension
		}
		out[i] = Range{MinZ: minZ, MaxZ: maxZ, Extruder: layer.Extruder, LayerHeight: layerHeight}
	}
	return out
}

// FormatZ prints a height with full float64 round-trip precision
func FormatZ(z float64) string {
	return fmt.Sprintf("%.17g", z)
}

// FormatLayerHeight prints a layer height in its shortest form, e.g. 0.08
func FormatLayerHeight(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// String renders the range the way it is reported while writing metadata
func (r Range) String() string {
	return fmt.Sprintf("extruder %s, Z=[%.2f, %.2f]mm", r.Extruder, r.MinZ, r.MaxZ)
}
