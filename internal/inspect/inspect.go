package inspect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/philipparndt/smithforge/internal/layers"
	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/philipparndt/smithforge/internal/models"
	"github.com/philipparndt/smithforge/internal/threemf"
	"github.com/philipparndt/smithforge/internal/ui"
)

// Report is everything inspect knows about a model file
type Report struct {
	Path    string
	Entries []string
	// Model and Settings are only set for 3MF files
	Model    *models.Model
	Settings *models.ModelSettings
	Layers   layers.LayerSet
	Colors   *layers.ColorData

	Faces    int
	Vertices int
	Bounds   string
}

// Inspector provides functionality to inspect 3MF and STL files
type Inspector struct {
	reader  *threemf.Reader
	printer *ModelPrinter
}

// NewInspector creates a new Inspector
func NewInspector() *Inspector {
	return &Inspector{
		reader:  &threemf.Reader{},
		printer: NewModelPrinter(),
	}
}

// Collect gathers the report for filename without printing anything
func (i *Inspector) Collect(filename string) (*Report, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("file not found: %s", filename)
	}

	r := &Report{Path: filename}

	m, err := mesh.Load(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading mesh: %w", err)
	}
	r.Faces = m.FaceCount()
	r.Vertices = len(m.Vertices)
	if box, err := m.Bounds(); err == nil {
		r.Bounds = box.String()
	}

	if !strings.EqualFold(filepath.Ext(filename), ".3mf") {
		return r, nil
	}

	if r.Entries, err = threemf.List(filename); err != nil {
		return nil, err
	}
	if r.Model, err = i.reader.Read(filename); err != nil {
		return nil, fmt.Errorf("error reading 3MF file: %w", err)
	}
	// Bambu Studio specific, missing or broken settings only lose names
	r.Settings, _ = i.reader.ReadModelSettings(filename)
	r.Layers = layers.ParseLayers(filename)
	if r.Colors, err = layers.ExtractColorLayers(filename); err != nil {
		return nil, err
	}
	return r, nil
}

// Inspect reads and displays the contents of a model file
func (i *Inspector) Inspect(filename string) error {
	r, err := i.Collect(filename)
	if err != nil {
		return err
	}

	ui.PrintHeader(fmt.Sprintf("Inspecting: %s", filename))
	ui.PrintKeyValue("Vertices", fmt.Sprintf("%d", r.Vertices))
	ui.PrintKeyValue("Faces", fmt.Sprintf("%d", r.Faces))
	if r.Bounds != "" {
		ui.PrintKeyValue("Bounds", r.Bounds)
	}

	if r.Model == nil {
		return nil
	}

	ui.PrintStep(fmt.Sprintf("Unit: %s", r.Model.Unit))
	if r.Model.Lang != "" {
		ui.PrintStep(fmt.Sprintf("Language: %s", r.Model.Lang))
	}
	if len(r.Model.Metadata) > 0 {
		ui.PrintStep("Metadata:")
		for _, meta := range r.Model.Metadata {
			ui.PrintStep(fmt.Sprintf("  - %s: %s", meta.Name, meta.Value))
		}
	}

	ui.PrintHeader("Archive Parts:")
	ui.PrintList("Entries", r.Entries)

	ui.PrintHeader("Build Plate Items:")
	if len(r.Model.Build.Items) == 0 {
		ui.PrintStep("No items on build plate")
	}
	for idx, item := range r.Model.Build.Items {
		printable := "yes"
		if item.Printable == "0" {
			printable = "no"
		}
		ui.PrintStep(fmt.Sprintf("%d. Object ID %s: %s (printable: %s)", idx+1, item.ObjectID, objectName(r.Model, item.ObjectID), printable))
	}

	ui.PrintHeader("Objects in Model:")
	i.printer.PrintObjectHierarchy(r.Model, r.Settings)

	printLayers(r)
	return nil
}

func printLayers(r *Report) {
	ui.PrintHeader("Colour Layers:")
	if r.Layers.Error != "" {
		ui.PrintWarning(r.Layers.Error)
	}
	if r.Layers.LayerCount == 0 && r.Colors.Empty() {
		ui.PrintStep("No layer information found")
		return
	}

	if r.Layers.LayerCount > 0 {
		ui.PrintKeyValue("Format", r.Layers.Format)
		ui.PrintKeyValue("Total height", fmt.Sprintf("%.2fmm", r.Layers.TotalHeight))
		table := ui.NewTable(8, 12, 10)
		table.Header("Layer", "Z (mm)", "Color")
		for _, l := range r.Layers.Layers {
			number, color := "-", "-"
			if l.LayerNumber != nil {
				number = fmt.Sprintf("%d", *l.LayerNumber)
			}
			if l.Color != nil {
				color = *l.Color
			}
			table.Row(number, fmt.Sprintf("%.3f", l.ZHeight), color)
		}
	}

	if !r.Colors.Empty() {
		ui.PrintStep(fmt.Sprintf("%d colour change(s) in custom G-code", len(r.Colors.Layers)))
		if len(r.Colors.FilamentColours) > 0 {
			ui.PrintKeyValue("Filaments", strings.Join(r.Colors.FilamentColours, ", "))
		}
	}
}

// objectName returns the name of an object by ID
func objectName(model *models.Model, objectID string) string {
	for _, obj := range model.Resources.Objects {
		if obj.ID == objectID {
			if obj.Name != "" {
				return obj.Name
			}
			return "(unnamed)"
		}
	}
	return "(not found)"
}
