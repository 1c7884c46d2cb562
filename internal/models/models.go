package models

import (
	"encoding/xml"
	"strconv"
)

// Namespaces used by the 3MF parts SmithForge writes
const (
	NamespaceCore           = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
	NamespaceProduction     = "http://schemas.microsoft.com/3dmanufacturing/production/2015/06"
	NamespaceBambuStudio    = "http://schemas.bambulab.com/package/2021"
	NamespaceRelationships  = "http://schemas.openxmlformats.org/package/2006/relationships"
	NamespaceContentTypes   = "http://schemas.openxmlformats.org/package/2006/content-types"
	RelationshipType3DModel = "http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"
)

// Model represents a 3MF model structure
type Model struct {
	XMLName            xml.Name   `xml:"model"`
	Xmlns              string     `xml:"xmlns,attr"`
	XmlnsBambuStudio   string     `xml:"xmlns:BambuStudio,attr,omitempty"`
	XmlnsP             string     `xml:"xmlns:p,attr,omitempty"`
	RequiredExtensions string     `xml:"requiredextensions,attr,omitempty"`
	Unit               string     `xml:"unit,attr"`
	Lang               string     `xml:"xml:lang,attr,omitempty"`
	Metadata           []Metadata `xml:"metadata"`
	Resources          Resources  `xml:"resources"`
	Build              Build      `xml:"build"`
}

type Metadata struct {
	Name     string `xml:"name,attr"`
	Preserve string `xml:"preserve,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type Resources struct {
	BaseMaterials []BaseMaterials `xml:"basematerials"`
	Objects       []Object        `xml:"object"`
}

type BaseMaterials struct {
	ID    string `xml:"id,attr"`
	Bases []Base `xml:"base"`
}

type Base struct {
	Name         string `xml:"name,attr"`
	DisplayColor string `xml:"displaycolor,attr"`
}

type Object struct {
	ID         string      `xml:"id,attr"`
	Name       string      `xml:"name,attr,omitempty"`
	Type       string      `xml:"type,attr,omitempty"`
	UUID       string      `xml:"p:UUID,attr,omitempty"`
	PID        string      `xml:"pid,attr,omitempty"`
	PIndex     string      `xml:"pindex,attr,omitempty"`
	Mesh       *Mesh       `xml:"mesh"`
	Components *Components `xml:"components"`
}

type Mesh struct {
	Vertices  Vertices  `xml:"vertices"`
	Triangles Triangles `xml:"triangles"`
}

type Vertices struct {
	Vertex []Vertex `xml:"vertex"`
}

type Vertex struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
	Z float64 `xml:"z,attr"`
}

type Triangles struct {
	Triangle []Triangle `xml:"triangle"`
}

type Triangle struct {
	V1 int `xml:"v1,attr"`
	V2 int `xml:"v2,attr"`
	V3 int `xml:"v3,attr"`
}

type Components struct {
	Component []Component `xml:"component"`
}

type Component struct {
	Path      string `xml:"p:path,attr,omitempty"`
	ObjectID  string `xml:"objectid,attr"`
	UUID      string `xml:"p:UUID,attr,omitempty"`
	Transform string `xml:"transform,attr,omitempty"`
}

type Build struct {
	UUID  string `xml:"p:UUID,attr,omitempty"`
	Items []Item `xml:"item"`
}

type Item struct {
	ObjectID  string `xml:"objectid,attr"`
	UUID      string `xml:"p:UUID,attr,omitempty"`
	Transform string `xml:"transform,attr,omitempty"`
	Printable string `xml:"printable,attr,omitempty"`
}

// ModelSettings represents Metadata/model_settings.config of a Bambu Studio project
type ModelSettings struct {
	XMLName  xml.Name         `xml:"config"`
	Objects  []SettingsObject `xml:"object"`
	Plate    Plate            `xml:"plate"`
	Assemble Assemble         `xml:"assemble"`
}

type SettingsObject struct {
	ID       string             `xml:"id,attr"`
	Metadata []SettingsMetadata `xml:"metadata"`
	Parts    []Part             `xml:"part"`
}

// SettingsMetadata is either a key/value entry or a bare face_count entry
type SettingsMetadata struct {
	Key       string `xml:"key,attr"`
	Value     string `xml:"value,attr"`
	FaceCount int    `xml:"face_count,attr"`
}

// MarshalXML writes face_count entries without key and value attributes
func (m SettingsMetadata) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if m.FaceCount > 0 && m.Key == "" {
		start.Attr = []xml.Attr{{Name: xml.Name{Local: "face_count"}, Value: strconv.Itoa(m.FaceCount)}}
	} else {
		start.Attr = []xml.Attr{
			{Name: xml.Name{Local: "key"}, Value: m.Key},
			{Name: xml.Name{Local: "value"}, Value: m.Value},
		}
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type Part struct {
	ID       string             `xml:"id,attr"`
	Subtype  string             `xml:"subtype,attr"`
	Metadata []SettingsMetadata `xml:"metadata"`
	MeshStat *MeshStat          `xml:"mesh_stat"`
}

type MeshStat struct {
	FaceCount        int `xml:"face_count,attr"`
	EdgesFixed       int `xml:"edges_fixed,attr"`
	DegenerateFacets int `xml:"degenerate_facets,attr"`
	FacetsRemoved    int `xml:"facets_removed,attr"`
	FacetsReversed   int `xml:"facets_reversed,attr"`
	BackwardsEdges   int `xml:"backwards_edges,attr"`
}

type Plate struct {
	Metadata       []SettingsMetadata `xml:"metadata"`
	ModelInstances []ModelInstance    `xml:"model_instance"`
}

type ModelInstance struct {
	Metadata []SettingsMetadata `xml:"metadata"`
}

type Assemble struct {
	Items []AssembleItem `xml:"assemble_item"`
}

type AssembleItem struct {
	ObjectID   string `xml:"object_id,attr"`
	InstanceID string `xml:"instance_id,attr"`
	Transform  string `xml:"transform,attr"`
	Offset     string `xml:"offset,attr"`
}

// LayerConfigRanges represents Metadata/layer_config_ranges.xml (height range modifiers)
type LayerConfigRanges struct {
	XMLName xml.Name      `xml:"objects"`
	Objects []RangeObject `xml:"object"`
}

type RangeObject struct {
	ID     string       `xml:"id,attr"`
	Ranges []LayerRange `xml:"range"`
}

// LayerRange is one height range. Older exports use minZ/maxZ instead of min_z/max_z.
type LayerRange struct {
	MinZ           string        `xml:"min_z,attr,omitempty"`
	MaxZ           string        `xml:"max_z,attr,omitempty"`
	LegacyMinZ     string        `xml:"minZ,attr,omitempty"`
	LegacyMaxZ     string        `xml:"maxZ,attr,omitempty"`
	Options        []RangeOption `xml:"option"`
	FilamentColour string        `xml:"filament_colour,omitempty"`
}

type RangeOption struct {
	Key   string `xml:"opt_key,attr"`
	Value string `xml:",chardata"`
}

// CustomGCodePerLayer represents Metadata/custom_gcode_per_layer.xml.
// The root element name is not checked.
type CustomGCodePerLayer struct {
	Plates []GCodePlate `xml:"plate"`
	Layers []GCodeLayer `xml:"layer"`
}

type GCodePlate struct {
	Layers []GCodeLayer `xml:"layer"`
}

type GCodeLayer struct {
	TopZ     string `xml:"top_z,attr"`
	Type     string `xml:"type,attr"`
	Extruder string `xml:"extruder,attr"`
	Color    string `xml:"color,attr"`
	Extra    string `xml:"extra,attr,omitempty"`
	GCode    string `xml:"gcode,attr,omitempty"`
}

// Relationships represents an OPC .rels part
type Relationships struct {
	XMLName       xml.Name       `xml:"Relationships"`
	Xmlns         string         `xml:"xmlns,attr"`
	Relationships []Relationship `xml:"Relationship"`
}

type Relationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
	Type   string `xml:"Type,attr"`
}

// ContentTypes represents [Content_Types].xml
type ContentTypes struct {
	XMLName  xml.Name             `xml:"Types"`
	Xmlns    string               `xml:"xmlns,attr"`
	Defaults []ContentTypeDefault `xml:"Default"`
}

type ContentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Config is the smithforge.yaml configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Forge  ForgeConfig  `yaml:"forge"`
}

type ServerConfig struct {
	Addr              string `yaml:"addr"`
	InputsDir         string `yaml:"inputs_dir"`
	BasesDir          string `yaml:"bases_dir"`
	OutputsDir        string `yaml:"outputs_dir"`
	MaxUploadMB       int64  `yaml:"max_upload_mb"`
	MaxConcurrentJobs int64  `yaml:"max_concurrent_jobs"`
	JobDB             string `yaml:"job_db"`
}

type EngineConfig struct {
	Kind    string `yaml:"kind"`
	Python  string `yaml:"python"`
	Script  string `yaml:"script"`
	Timeout string `yaml:"timeout"`
}

type ForgeConfig struct {
	EmbedOverlapMM   float64    `yaml:"embed_overlap_mm"`
	ExtrudeHeightMM  float64    `yaml:"extrude_height_mm"`
	BuildPlateMM     [2]float64 `yaml:"build_plate_mm"`
	LayerHeightMM    float64    `yaml:"layer_height_mm"`
	PerimeterSamples int        `yaml:"perimeter_samples"`
}
