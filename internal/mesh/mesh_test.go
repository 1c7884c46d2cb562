package mesh

import (
	"path/filepath"
	"testing"

	"github.com/hpinc/go3mf"
	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/stl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// cube returns a closed axis aligned box from min to max
func cube(min, max r3.Vec) *Mesh {
	v := []r3.Vec{
		{X: min.X, Y: min.Y, Z: min.Z}, {X: max.X, Y: min.Y, Z: min.Z},
		{X: max.X, Y: max.Y, Z: min.Z}, {X: min.X, Y: max.Y, Z: min.Z},
		{X: min.X, Y: min.Y, Z: max.Z}, {X: max.X, Y: min.Y, Z: max.Z},
		{X: max.X, Y: max.Y, Z: max.Z}, {X: min.X, Y: max.Y, Z: max.Z},
	}
	f := [][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4},
		{1, 2, 6}, {1, 6, 5},
		{2, 3, 7}, {2, 7, 6},
		{3, 0, 4}, {3, 4, 7},
	}
	return &Mesh{Name: "cube", Vertices: v, Faces: f}
}

// relief returns an open 3x3 grid at z=1 whose center vertex is raised to z=3
func relief() *Mesh {
	m := &Mesh{Name: "relief"}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			z := 1.0
			if x == 1 && y == 1 {
				z = 3
			}
			m.Vertices = append(m.Vertices, r3.Vec{X: float64(x) * 10, Y: float64(y) * 10, Z: z})
		}
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			i := y*3 + x
			m.Faces = append(m.Faces, [3]int{i, i + 1, i + 4}, [3]int{i, i + 4, i + 3})
		}
	}
	return m
}

func TestTransforms(t *testing.T) {
	m := cube(r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 3})

	m.Scale(r3.Vec{X: 2, Y: 2, Z: 1})
	m.Translate(r3.Vec{X: -1, Y: 1, Z: 0.5})

	box, err := m.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, -1, box.MinX, 1e-12)
	assert.InDelta(t, 1, box.MaxX, 1e-12)
	assert.InDelta(t, 1, box.MinY, 1e-12)
	assert.InDelta(t, 5, box.MaxY, 1e-12)
	assert.InDelta(t, 0.5, box.MinZ, 1e-12)
	assert.InDelta(t, 3.5, box.MaxZ, 1e-12)
}

func TestRotateZ(t *testing.T) {
	m := &Mesh{Vertices: []r3.Vec{{X: 1}}, Faces: [][3]int{{0, 0, 0}}}
	m.RotateZ(90)

	assert.InDelta(t, 0, m.Vertices[0].X, 1e-12)
	assert.InDelta(t, 1, m.Vertices[0].Y, 1e-12)
}

func TestCloneIsIndependent(t *testing.T) {
	m := cube(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	c := m.Clone()
	c.Translate(r3.Vec{X: 5})

	assert.Equal(t, 0.0, m.Vertices[0].X)
	assert.Equal(t, 5.0, c.Vertices[0].X)
}

func TestConcat(t *testing.T) {
	a := cube(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	b := cube(r3.Vec{X: 2}, r3.Vec{X: 3, Y: 1, Z: 1})

	m := Concat("both", a, nil, b)
	assert.Equal(t, 16, len(m.Vertices))
	assert.Equal(t, 24, m.FaceCount())
	assert.Equal(t, [3]int{8, 10, 9}, m.Faces[12])
	require.NoError(t, m.Validate())
}

func TestSTLRoundTripWeldsVertices(t *testing.T) {
	m := cube(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 10})
	path := filepath.Join(t.TempDir(), "cube.stl")
	require.NoError(t, stl.NewWriter().WriteBinary(m.ToSTL(), path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cube", loaded.Name)
	assert.Equal(t, 8, len(loaded.Vertices))
	assert.Equal(t, 12, loaded.FaceCount())
	assert.Empty(t, loaded.BoundaryVertices())
}

func TestLoad3MFAppliesTransforms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.3mf")

	box := cube(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	gm := &go3mf.Mesh{}
	for _, v := range box.Vertices {
		gm.Vertices.Vertex = append(gm.Vertices.Vertex, go3mf.Point3D{float32(v.X), float32(v.Y), float32(v.Z)})
	}
	for _, f := range box.Faces {
		gm.Triangles.Triangle = append(gm.Triangles.Triangle, go3mf.Triangle{V1: uint32(f[0]), V2: uint32(f[1]), V3: uint32(f[2])})
	}

	model := go3mf.Model{Units: go3mf.UnitMillimeter}
	model.Resources.Objects = append(model.Resources.Objects,
		&go3mf.Object{ID: 1, Name: "part", Mesh: gm},
		&go3mf.Object{ID: 2, Name: "assembly", Components: &go3mf.Components{Component: []*go3mf.Component{
			{ObjectID: 1, Transform: go3mf.Matrix{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 10, 0, 0, 1}},
			{ObjectID: 1, Transform: go3mf.Matrix{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 1}},
		}}},
	)
	model.Build.Items = append(model.Build.Items, &go3mf.Item{
		ObjectID:  2,
		Transform: go3mf.Matrix{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 5, 1},
	})

	w, err := go3mf.CreateWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Encode(&model))
	require.NoError(t, w.Close())

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, len(m.Vertices))
	assert.Equal(t, 24, m.FaceCount())

	bounds, err := m.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, 0, bounds.MinX, 1e-6)
	assert.InDelta(t, 11, bounds.MaxX, 1e-6)
	assert.InDelta(t, 5, bounds.MinZ, 1e-6)
	assert.InDelta(t, 7, bounds.MaxZ, 1e-6)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	_, err := Load("model.obj")
	assert.ErrorContains(t, err, "unsupported mesh format")
}

func TestBoundaryLoops(t *testing.T) {
	assert.Equal(t, [][]int{{0, 1, 2, 5, 8, 7, 6, 3}}, relief().BoundaryLoops())
	assert.Empty(t, cube(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}).BoundaryLoops())

	open := cube(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	open.Faces = open.Faces[2:]
	assert.Equal(t, [][]int{{0, 1, 2, 3}}, open.BoundaryLoops())
}

func TestBoundaryVertices(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3, 5, 6, 7, 8}, relief().BoundaryVertices())
	assert.Empty(t, cube(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}).BoundaryVertices())
}

func TestPerimeterHeight(t *testing.T) {
	res, err := relief().PerimeterHeight(geometry.DefaultPerimeterSamples)
	require.NoError(t, err)
	assert.Equal(t, PerimeterBoundaryEdges, res.Source)
	assert.Equal(t, 8, res.Found)
	assert.InDelta(t, 1.0, res.Height, 0.2)

	res, err = cube(r3.Vec{}, r3.Vec{X: 4, Y: 4, Z: 2}).PerimeterHeight(geometry.DefaultPerimeterSamples)
	require.NoError(t, err)
	assert.Equal(t, PerimeterHull, res.Source)
	assert.Equal(t, 8, res.Found)

	_, err = (&Mesh{}).PerimeterHeight(10)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPlace(t *testing.T) {
	base := cube(r3.Vec{X: -50, Y: -25}, r3.Vec{X: 50, Y: 25, Z: 5})
	overlay := relief() // 20 x 20, z 1..3

	p, err := Place(base, overlay, geometry.PlacementParams{
		EmbedOverlap: geometry.DefaultEmbedOverlap,
		Shift:        r3.Vec{X: 2},
	})
	require.NoError(t, err)
	assert.InDelta(t, 5, p.Scale, 1e-12)
	assert.InDelta(t, 4.9, p.ZOffset, 1e-12)

	box, err := overlay.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, 100, box.Width(), 1e-9)
	assert.InDelta(t, 2, box.Center().X, 1e-9)
	assert.InDelta(t, 0, box.Center().Y, 1e-9)
	assert.InDelta(t, 4.9, box.MinZ, 1e-9)
	assert.InDelta(t, 6.9, box.MaxZ, 1e-9)
}

func TestPlaceRotatesBase(t *testing.T) {
	base := cube(r3.Vec{X: -50, Y: -25}, r3.Vec{X: 50, Y: 25, Z: 5})
	overlay := relief()

	_, err := Place(base, overlay, geometry.PlacementParams{RotateBase: 90})
	require.NoError(t, err)

	box, err := base.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, 50, box.Width(), 1e-9)
	assert.InDelta(t, 100, box.Height(), 1e-9)
}
