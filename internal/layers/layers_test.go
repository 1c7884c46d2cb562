package layers

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const swapText = `
Filaments Used:
PLA BambuLab Basic Black
PLA BambuLab Basic Cobalt Blue
PLA BambuLab Basic Sunflower Yellow
PLA BambuLab Matte Ivory White

Swap Instructions:
Start with Black
At layer #8 (0.72mm) swap to Cobalt Blue
At layer #15 (1.28mm) swap to Sunflower Yellow
At layer #22 (2.00mm) swap to Ivory White
`

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.3mf")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestColorNameToHex(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Black", "#000000"},
		{"PLA BambuLab Basic Cobalt Blue", "#0047AB"},
		{"PLA Bambu Lab Matte Ivory White", "#FFFFF0"},
		{"petg Prusament Galaxy Black", "#000000"},
		{"Sunflower Yellow", "#FFDA03"},
		{"Dusty Violet", "#8A2BE2"},
		{"Mystery", FallbackColor},
		{"clear", "#FFFFFF80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColorNameToHex(tt.name))
		})
	}
}

func TestNormalizeColorName(t *testing.T) {
	assert.Equal(t, "cobalt blue", NormalizeColorName("PLA BambuLab Basic Cobalt Blue"))
	assert.Equal(t, "ivory white", NormalizeColorName("  Matte Ivory White "))
	assert.Equal(t, "galaxy black", NormalizeColorName("PETG Prusament Galaxy Black"))
}

func TestLookupColorNotes(t *testing.T) {
	_, note := LookupColor("Black")
	assert.Empty(t, note)

	hex, note := LookupColor("Dusty Violet")
	assert.Equal(t, "#8A2BE2", hex)
	assert.Contains(t, note, "generic violet")

	hex, note = LookupColor("Mystery")
	assert.Equal(t, FallbackColor, hex)
	assert.Contains(t, note, "using gray")
}

func TestParseSwapInstructions(t *testing.T) {
	data, err := ParseSwapInstructions(swapText)
	require.NoError(t, err)

	assert.Equal(t, []string{"#000000", "#0047AB", "#FFDA03", "#FFFFF0"}, data.FilamentColours)
	require.Len(t, data.Layers, 3)
	assert.Equal(t, SwapLayer{TopZ: 0.72, Extruder: "2", Color: "#0047AB"}, data.Layers[0])
	assert.Equal(t, SwapLayer{TopZ: 1.28, Extruder: "3", Color: "#FFDA03"}, data.Layers[1])
	assert.Equal(t, SwapLayer{TopZ: 2.00, Extruder: "4", Color: "#FFFFF0"}, data.Layers[2])
}

func TestParseSwapInstructionsWithoutFilaments(t *testing.T) {
	data, err := ParseSwapInstructions("swap instructions:\nAt layer #3 (0.4mm) swap to Red\nat LAYER #9 (1.2mm) swap to blue")
	require.NoError(t, err)

	// no "Start with" line, so extruder numbering starts at 1
	assert.Equal(t, "1", data.Layers[0].Extruder)
	assert.Equal(t, "2", data.Layers[1].Extruder)
	assert.Equal(t, []string{"#FF0000", "#0000FF"}, data.FilamentColours)
	assert.NotEmpty(t, data.Warnings)
}

func TestParseSwapInstructionsNoSwaps(t *testing.T) {
	_, err := ParseSwapInstructions("Filaments Used:\nPLA Black\n")
	assert.ErrorIs(t, err, ErrNoSwaps)

	_, err = ParseSwapInstructions("")
	assert.ErrorIs(t, err, ErrNoSwaps)
}

func TestValidateHeights(t *testing.T) {
	data := &ColorData{Layers: []SwapLayer{{TopZ: -0.5}, {TopZ: 1}, {TopZ: 12}}}

	warnings := ValidateHeights(data, 0.2, 10)
	require.Len(t, warnings, 2)
	assert.Equal(t, "Layer 1 has negative Z-height: -0.300mm", warnings[0])
	assert.Equal(t, "Layer 3 Z-height (12.200mm) exceeds model height (10.000mm)", warnings[1])

	assert.Nil(t, ValidateHeights(nil, 0, 10))
}

func TestRanges(t *testing.T) {
	data := &ColorData{Layers: []SwapLayer{
		{TopZ: 0.72, Extruder: "2"},
		{TopZ: 1.28, Extruder: "3"},
		{TopZ: 2.0, Extruder: "4"},
	}}

	ranges := Ranges(data, 5, 0)
	require.Len(t, ranges, 3)

	assert.InDelta(t, 5, ranges[0].MinZ, 1e-12)
	assert.InDelta(t, 5.72, ranges[0].MaxZ, 1e-12)
	assert.InDelta(t, 5.72, ranges[1].MinZ, 1e-12)
	assert.InDelta(t, 6.28, ranges[1].MaxZ, 1e-12)
	assert.InDelta(t, 6.28, ranges[2].MinZ, 1e-12)
	assert.InDelta(t, 1007, ranges[2].MaxZ, 1e-9)
	assert.Equal(t, "4", ranges[2].Extruder)
	assert.Equal(t, DefaultLayerHeight, ranges[0].LayerHeight)

	assert.Nil(t, Ranges(&ColorData{}, 0, 0))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "4.9000000000000004", FormatZ(4.9))
	assert.Equal(t, "5", FormatZ(5))
	assert.Equal(t, "0.08", FormatLayerHeight(0.08))
}

func TestExtractColorLayers(t *testing.T) {
	path := writeArchive(t, map[string]string{
		CustomGCodeEntry: `<?xml version="1.0" encoding="utf-8"?>
<custom_gcodes_per_layer>
<plate>
<plate_info id="1"/>
<layer top_z="0.72" type="2" extruder="2" color="#0047AB" extra="" gcode="tool_change"/>
<layer top_z="0.9" type="0" extruder="1" color="" extra="" gcode="M600"/>
<layer top_z="1.28" type="2" extruder="3" color="#FFDA03" extra="" gcode="tool_change"/>
</plate>
</custom_gcodes_per_layer>`,
		ProjectSettingsEntry:   `{"filament_colour": ["#000000", "#0047AB", "#FFDA03"], "other": "x"}`,
		LayerConfigRangesEntry: `<objects/>`,
	})

	data, err := ExtractColorLayers(path)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, []SwapLayer{
		{TopZ: 0.72, Extruder: "2", Color: "#0047AB"},
		{TopZ: 1.28, Extruder: "3", Color: "#FFDA03"},
	}, data.Layers)
	assert.Equal(t, []string{"#000000", "#0047AB", "#FFDA03"}, data.FilamentColours)
	assert.Equal(t, "<objects/>", data.LayerConfigRangesXML)
}

func TestExtractColorLayersMissing(t *testing.T) {
	data, err := ExtractColorLayers(writeArchive(t, map[string]string{ModelEntry: "<model/>"}))
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = ExtractColorLayers(writeArchive(t, map[string]string{
		CustomGCodeEntry: `<custom_gcodes_per_layer><plate><layer top_z="1" type="0" extruder="1" color="#000"/></plate></custom_gcodes_per_layer>`,
	}))
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = ExtractColorLayers(filepath.Join(t.TempDir(), "missing.3mf"))
	assert.Error(t, err)
}

func TestParseLayersBambu(t *testing.T) {
	path := writeArchive(t, map[string]string{
		LayerConfigRangesEntry: `<?xml version="1.0" encoding="utf-8"?>
<objects>
 <object id="1">
  <range min_z="5.72" max_z="6.28"><option opt_key="extruder">3</option></range>
  <range min_z="5" max_z="5.72"><option opt_key="extruder">2</option></range>
  <range minZ="6.28" maxZ="1007"><filament_colour> #FFFFF0 </filament_colour></range>
  <range min_z="0" max_z="0"/>
 </object>
</objects>`,
	})

	set := ParseLayers(path)
	assert.Equal(t, FormatBambu, set.Format)
	require.Equal(t, 3, set.LayerCount)
	assert.InDelta(t, 5.72, set.Layers[0].ZHeight, 1e-12)
	assert.Equal(t, 1, *set.Layers[0].LayerNumber)
	assert.InDelta(t, 1007, set.TotalHeight, 1e-12)
	assert.True(t, set.HasColors)
	assert.Equal(t, "#FFFFF0", *set.Layers[2].Color)
}

func TestParseLayersGeneric(t *testing.T) {
	path := writeArchive(t, map[string]string{
		ModelEntry: `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter" xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02" xmlns:m="http://schemas.microsoft.com/3dmanufacturing/material/2015/02">
 <resources>
  <m:basematerials id="1">
   <m:base name="Black" displaycolor="#000000FF"/>
   <m:base name="White" displaycolor="#FFFFFFFF"/>
  </m:basematerials>
 </resources>
 <build/>
</model>`,
	})

	set := ParseLayers(path)
	assert.Equal(t, FormatGeneric, set.Format)
	assert.Equal(t, 2, set.LayerCount)
	assert.True(t, set.HasColors)
	assert.Zero(t, set.TotalHeight)
}

func TestParseLayersUnknown(t *testing.T) {
	set := ParseLayers(filepath.Join(t.TempDir(), "missing.3mf"))
	assert.Equal(t, FormatUnknown, set.Format)
	assert.Empty(t, set.Error)

	bad := filepath.Join(t.TempDir(), "bad.3mf")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0o644))
	set = ParseLayers(bad)
	assert.Equal(t, FormatUnknown, set.Format)
	assert.NotEmpty(t, set.Error)
}

func TestLayerSetJSON(t *testing.T) {
	color := "#FF0000"
	n := 1
	set := LayerSet{
		Layers:      AdjustForZShift([]LayerInfo{{ZHeight: 1, Color: &color, LayerNumber: &n}}, 0.5),
		TotalHeight: 1,
		LayerCount:  1,
		HasColors:   true,
		Format:      FormatBambu,
	}

	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `{"layers":[{"z_height":1.5,"color":"#FF0000","layer_number":1}],"total_height":1,"layer_count":1,"has_colors":true,"format":"bambu"}`, string(raw))
}
