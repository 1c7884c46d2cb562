package layers

import (
	"archive/zip"
	"encoding/xml"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/philipparndt/smithforge/internal/models"
)

// Format names reported by ParseLayers
const (
	FormatBambu   = "bambu"
	FormatGeneric = "generic"
	FormatUnknown = "unknown"
)

// LayerInfo is a layer boundary for visualisation
type LayerInfo struct {
	ZHeight     float64 `json:"z_height"`
	Color       *string `json:"color"`
	LayerNumber *int    `json:"layer_number"`
}

// LayerSet is the layer overview of a 3MF file
type LayerSet struct {
	Layers      []LayerInfo `json:"layers"`
	TotalHeight float64     `json:"total_height"`
	LayerCount  int         `json:"layer_count"`
	HasColors   bool        `json:"has_colors"`
	Format      string      `json:"format"`
	Error       string      `json:"error,omitempty"`
}

// ParseLayers reads the layer ranges of a 3MF for visualisation. Problems are
// reported in the Error field rather than returned.
func ParseLayers(path string) LayerSet {
	set := LayerSet{Layers: []LayerInfo{}, Format: FormatUnknown}

	if _, err := os.Stat(path); err != nil {
		return set
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		set.Error = err.Error()
		return set
	}
	defer zr.Close()

	if raw, ok, err := readEntry(zr, LayerConfigRangesEntry); err != nil {
		set.Error = err.Error()
		return set
	} else if ok {
		set = bambuLayers(raw)
		set.Format = FormatBambu
	}

	if set.LayerCount == 0 {
		if raw, ok, _ := readEntry(zr, ModelEntry); ok {
			if generic := genericLayers(raw); generic.LayerCount > 0 {
				set = generic
				set.Format = FormatGeneric
			}
		}
	}
	return set
}

func bambuLayers(raw []byte) LayerSet {
	set := LayerSet{Layers: []LayerInfo{}}

	var ranges models.LayerConfigRanges
	if err := xml.Unmarshal(raw, &ranges); err != nil {
		return set
	}

	for _, obj := range ranges.Objects {
		for _, r := range obj.Ranges {
			maxZ := rangeTop(r)
			if maxZ <= 0 {
				continue
			}
			info := LayerInfo{ZHeight: maxZ}
			if c := strings.TrimSpace(r.FilamentColour); c != "" {
				info.Color = &c
			}
			set.Layers = append(set.Layers, info)
		}
	}

	sort.SliceStable(set.Layers, func(i, j int) bool {
		return set.Layers[i].ZHeight < set.Layers[j].ZHeight
	})
	for i := range set.Layers {
		n := i + 1
		set.Layers[i].LayerNumber = &n
		if set.Layers[i].Color != nil {
			set.HasColors = true
		}
	}

	set.LayerCount = len(set.Layers)
	if set.LayerCount > 0 {
		set.TotalHeight = set.Layers[set.LayerCount-1].ZHeight
	}
	return set
}

// rangeTop reads max_z, or maxZ as written by older exporters
func rangeTop(r models.LayerRange) float64 {
	v := r.MaxZ
	if v == "" {
		v = r.LegacyMaxZ
	}
	z, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return z
}

func genericLayers(raw []byte) LayerSet {
	set := LayerSet{Layers: []LayerInfo{}}

	var model models.Model
	if err := xml.Unmarshal(raw, &model); err != nil {
		return set
	}

	for _, group := range model.Resources.BaseMaterials {
		for _, base := range group.Bases {
			if base.DisplayColor == "" {
				continue
			}
			c := base.DisplayColor
			set.Layers = append(set.Layers, LayerInfo{Color: &c})
		}
	}
	set.LayerCount = len(set.Layers)
	set.HasColors = set.LayerCount > 0
	return set
}

// AdjustForZShift returns copies of the layers moved up by shift
func AdjustForZShift(layers []LayerInfo, shift float64) []LayerInfo {
	out := make([]LayerInfo, len(layers))
	for i, l := range layers {
		l.ZHeight += shift
		out[i] = l
	}
	return out
}
