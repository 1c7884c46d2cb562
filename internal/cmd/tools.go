package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/philipparndt/smithforge/internal/extract"
	"github.com/philipparndt/smithforge/internal/inspect"
	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/repair"
	"github.com/philipparndt/smithforge/internal/stl"
	"github.com/philipparndt/smithforge/internal/threemf"
	"github.com/philipparndt/smithforge/internal/ui"
)

type InspectCmd struct {
	File      string `arg:"" help:"3MF or STL file to inspect" type:"existingfile"`
	Raw       string `help:"Print one archive entry with syntax highlighting, e.g. Metadata/model_settings.config" placeholder:"ENTRY"`
	Formatter string `help:"Highlighting formatter for --raw (terminal256, terminal16m, noop)" default:"terminal256"`
	Style     string `help:"Highlighting style for --raw" default:"monokai"`
}

func (c *InspectCmd) Run() error {
	if c.Raw != "" {
		return inspect.Raw(os.Stdout, c.File, c.Raw, c.Formatter, c.Style)
	}
	inspector := inspect.NewInspector()
	return inspector.Inspect(c.File)
}

type LayersCmd struct {
	File   string  `arg:"" help:"3MF file" type:"existingfile"`
	ZShift float64 `help:"Move all layers up by this amount (mm)" name:"zshift"`
	JSON   bool    `help:"Print the layers as JSON"`
}

func (c *LayersCmd) Run() error {
	set := layers.ParseLayers(c.File)
	if c.ZShift != 0 {
		set.Layers = layers.AdjustForZShift(set.Layers, c.ZShift)
		set.TotalHeight += c.ZShift
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	}

	ui.PrintHeader(fmt.Sprintf("Layers: %s", c.File))
	if set.Error != "" {
		return fmt.Errorf("%s", set.Error)
	}
	ui.PrintKeyValue("Format", set.Format)
	ui.PrintKeyValue("Layers", fmt.Sprintf("%d", set.LayerCount))
	ui.PrintKeyValue("Total height", fmt.Sprintf("%.2fmm", set.TotalHeight))
	if set.LayerCount == 0 {
		ui.PrintStep("No layer information found")
		return nil
	}

	table := ui.NewTable(8, 12, 10)
	table.Header("Layer", "Z (mm)", "Color")
	for _, l := range set.Layers {
		number, color := "-", "-"
		if l.LayerNumber != nil {
			number = fmt.Sprintf("%d", *l.LayerNumber)
		}
		if l.Color != nil {
			color = *l.Color
		}
		table.Row(number, fmt.Sprintf("%.3f", l.ZHeight), color)
	}
	return nil
}

type SwapsCmd struct {
	File        string  `arg:"" help:"Text file with swap instructions, - reads stdin"`
	ZOffset     float64 `help:"Height of HueForge layer 0 in the combined model (mm)" name:"zoffset"`
	LayerHeight float64 `help:"Layer height of the generated ranges (mm)" default:"0.08"`
	MaxHeight   float64 `help:"Warn about swaps above this height (mm)" name:"max-height"`
	JSON        bool    `help:"Print the parsed swaps as JSON"`
}

func (c *SwapsCmd) Run() error {
	var (
		text []byte
		err  error
	)
	if c.File == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(c.File)
	}
	if err != nil {
		return fmt.Errorf("error reading swap instructions: %w", err)
	}

	data, err := layers.ParseSwapInstructions(string(text))
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	ui.PrintHeader("Filaments")
	for i, colour := range data.FilamentColours {
		ui.PrintItem(fmt.Sprintf("%d: %s", i+1, colour))
	}

	ui.PrintHeader("Swaps")
	table := ui.NewTable(10, 10, 10)
	table.Header("Top Z", "Extruder", "Color")
	for _, l := range data.Layers {
		table.Row(layers.FormatZ(l.TopZ), l.Extruder, l.Color)
	}

	ui.PrintHeader("Height ranges")
	for _, r := range layers.Ranges(data, c.ZOffset, c.LayerHeight) {
		ui.PrintItem(r.String())
	}

	for _, w := range data.Warnings {
		ui.PrintWarning(w)
	}
	if c.MaxHeight > 0 {
		for _, w := range layers.ValidateHeights(data, c.ZOffset, c.MaxHeight) {
			ui.PrintWarning(w)
		}
	}
	return nil
}

type RepairCmd struct {
	File   string `arg:"" help:"3MF or STL file to repair" type:"existingfile"`
	Output string `help:"Output file, .stl or .3mf (default: <name>_repaired.stl)" short:"o" type:"path"`
	Check  bool   `help:"Only validate, do not write a repaired mesh"`
}

func (c *RepairCmd) Run() error {
	m, err := mesh.Load(c.File)
	if err != nil {
		return err
	}

	if c.Check {
		report := repair.Validate(m)
		fmt.Fprintln(ui.Output, report.String())
		if !report.Success || len(report.IssuesFound) > 0 {
			return fmt.Errorf("%s has %d issue(s)", c.File, len(report.IssuesFound))
		}
		return nil
	}

	repaired, report := repair.AutoRepair(m)
	fmt.Fprintln(ui.Output, report.String())
	if !report.Success {
		return fmt.Errorf("repair of %s failed", c.File)
	}

	out := c.Output
	if out == "" {
		out = defaultRepairedName(c.File)
	}
	if strings.EqualFold(filepath.Ext(out), ".3mf") {
		_, err = threemf.NewWriter().Write(out, repaired, threemf.Options{
			Format: threemf.FormatStandard,
			Name:   strings.TrimSuffix(filepath.Base(c.File), filepath.Ext(c.File)),
		})
	} else {
		err = stl.NewWriter().WriteBinary(repaired.ToSTL(), out)
	}
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Repaired mesh written to %s", out))
	return nil
}

type ExtractCmd struct {
	File   string `arg:"" help:"3MF file to extract models from" type:"existingfile"`
	Output string `help:"Output directory for extracted STL files" short:"o" default:"." type:"path"`
	ASCII  bool   `help:"Write ASCII STL instead of binary"`
	Merged bool   `help:"Write the whole build as a single STL"`
}

func (c *ExtractCmd) Run() error {
	ui.PrintHeader(fmt.Sprintf("Extracting models from: %s", c.File))
	written, err := extract.NewExtractor().Extract(c.File, extract.Options{
		OutputDir: c.Output,
		ASCII:     c.ASCII,
		Merged:    c.Merged,
	})
	if err != nil {
		return err
	}
	for _, path := range written {
		ui.PrintSuccess(fmt.Sprintf("Extracted %s", path))
	}
	ui.PrintHighlight(fmt.Sprintf("Extracted %d model(s) to %s", len(written), c.Output))
	return nil
}

type FixCmd struct {
	File          string    `arg:"" help:"3MF file to fix in place" type:"existingfile"`
	Plate         []float64 `help:"Build plate size in mm, width,depth (default from configuration)" sep:","`
	SkipTransform bool      `help:"Only fix namespaces" name:"skip-transform"`
}

func (c *FixCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	plate := cfg.Forge.BuildPlateMM
	if len(c.Plate) > 0 {
		if len(c.Plate) != 2 {
			return fmt.Errorf("--plate needs width and depth, got %d value(s)", len(c.Plate))
		}
		plate = [2]float64{c.Plate[0], c.Plate[1]}
	}

	ui.PrintHeader(fmt.Sprintf("Fixing: %s", c.File))
	changes, err := threemf.FixNamespaces(c.File)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		ui.PrintStep("Namespaces are fine")
	}
	for _, change := range changes {
		ui.PrintSuccess(change)
	}

	if c.SkipTransform {
		return nil
	}
	transform, err := threemf.FixBuildPlateTransform(c.File, plate)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Build item transform set to %s", transform))
	return nil
}
