// Package preview renders quick visual checks of a placement: a binary glTF
// for the browser viewer and a top-down PNG of the footprints.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/mesh"
)

var (
	baseColor    = [4]float32{0.62, 0.62, 0.66, 1}
	overlayColor = [4]float32{0.96, 0.55, 0.16, 1}
)

// GLB encodes base and overlay as two colored nodes of a binary glTF. Faces
// get flat normals. Coordinates are converted from Z-up to glTF's Y-up.
func GLB(base, overlay *mesh.Mesh) ([]byte, error) {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "SmithForge preview"

	pbr := &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float32{1, 1, 1, 1}, MetallicFactor: gltf.Float(0), RoughnessFactor: gltf.Float(1)}
	doc.Materials = []*gltf.Material{{PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}}

	for _, part := range []struct {
		name  string
		mesh  *mesh.Mesh
		color [4]float32
	}{
		{"base", base, baseColor},
		{"overlay", overlay, overlayColor},
	} {
		if part.mesh.Empty() {
			continue
		}
		positions, normals, colors, indices := flatten(part.mesh, part.color)

		prim := &gltf.Primitive{
			Attributes: map[string]uint32{
				gltf.POSITION: uint32(modeler.WritePosition(doc, positions)),
				gltf.NORMAL:   uint32(modeler.WriteNormal(doc, normals)),
				gltf.COLOR_0:  uint32(modeler.WriteColor(doc, colors)),
			},
			Indices:  gltf.Index(uint32(modeler.WriteIndices(doc, indices))),
			Material: gltf.Index(0),
		}

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: part.name, Primitives: []*gltf.Primitive{prim}})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: part.name, Mesh: gltf.Index(uint32(len(doc.Meshes) - 1))})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}

	if len(doc.Nodes) == 0 {
		return nil, mesh.ErrEmpty
	}

	var out bytes.Buffer
	enc := gltf.NewEncoder(&out)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("error encoding GLB: %w", err)
	}
	return out.Bytes(), nil
}

// flatten duplicates the vertices of every face so each face carries its own normal
func flatten(m *mesh.Mesh, color [4]float32) ([][3]float32, [][3]float32, [][4]float32, []uint32) {
	n := 3 * len(m.Faces)
	positions := make([][3]float32, 0, n)
	normals := make([][3]float32, 0, n)
	colors := make([][4]float32, 0, n)
	indices := make([]uint32, 0, n)

	for _, tri := range m.Triangles() {
		normal := yUp(tri.Normal())
		if l := r3.Norm(normal); l > 0 {
			normal = r3.Scale(1/l, normal)
		}
		for _, v := range tri {
			indices = append(indices, uint32(len(positions)))
			positions = append(positions, vec32(yUp(v)))
			normals = append(normals, vec32(normal))
			colors = append(colors, color)
		}
	}
	return positions, normals, colors, indices
}

func yUp(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Z, Z: -v.Y}
}

func vec32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// FootprintSize is the edge length of the footprint image in pixels
const FootprintSize = 512

// FootprintImage draws the base hull (computed from base when hull is empty) filled and the overlay footprint outlined, seen from above
func FootprintImage(base, overlay *mesh.Mesh, hull geometry.Polygon) (image.Image, error) {
	if hull.Empty() {
		hull = base.Hull()
	}
	overlayHull := overlay.Hull()
	if hull.Empty() && overlayHull.Empty() {
		return nil, fmt.Errorf("nothing to draw: %w", mesh.ErrEmpty)
	}

	lo, hi := extent(hull, overlayHull)
	span := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	if span == 0 {
		span = 1
	}
	const margin = 24.0
	scale := (FootprintSize - 2*margin) / span

	project := func(p r2.Vec) (float64, float64) {
		// Image Y grows downwards
		return margin + (p.X-lo.X)*scale, FootprintSize - margin - (p.Y-lo.Y)*scale
	}

	dc := gg.NewContext(FootprintSize, FootprintSize)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	tracePolygon(dc, hull, project)
	dc.SetRGB(0.62, 0.62, 0.66)
	dc.Fill()

	tracePolygon(dc, overlayHull, project)
	dc.SetRGB(0.96, 0.55, 0.16)
	dc.SetLineWidth(2)
	dc.Stroke()

	return dc.Image(), nil
}

// Footprint renders FootprintImage into a PNG file
func Footprint(base, overlay *mesh.Mesh, hull geometry.Polygon, path string) error {
	img, err := FootprintImage(base, overlay, hull)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}

func tracePolygon(dc *gg.Context, p geometry.Polygon, project func(r2.Vec) (float64, float64)) {
	if len(p) < 3 {
		return
	}
	dc.NewSubPath()
	for _, v := range p {
		dc.LineTo(project(v))
	}
	dc.ClosePath()
}

func extent(polys ...geometry.Polygon) (r2.Vec, r2.Vec) {
	lo := r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range polys {
		if len(p) == 0 {
			continue
		}
		pmin, pmax := p.Bounds()
		lo.X, lo.Y = math.Min(lo.X, pmin.X), math.Min(lo.Y, pmin.Y)
		hi.X, hi.Y = math.Max(hi.X, pmax.X), math.Max(hi.Y, pmax.Y)
	}
	return lo, hi
}
