package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/philipparndt/smithforge/internal/geometry"
	"github.com/philipparndt/smithforge/internal/stl"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmpty is returned when a mesh has no faces
var ErrEmpty = errors.New("mesh has no faces")

// Mesh is an indexed triangle mesh
type Mesh struct {
	Name     string
	Vertices []r3.Vec
	Faces    [][3]int
}

// FaceCount returns the number of triangles
func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// Empty reports whether the mesh has no faces
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Faces) == 0
}

// Clone returns a deep copy of the mesh
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Name:     m.Name,
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Faces, m.Faces)
	return c
}

// Bounds returns the axis aligned bounding box of all vertices
func (m *Mesh) Bounds() (geometry.BoundingBox, error) {
	if len(m.Vertices) == 0 {
		return geometry.BoundingBox{}, ErrEmpty
	}
	return geometry.BoundsOf(m.Vertices)
}

// Translate moves every vertex by v
func (m *Mesh) Translate(v r3.Vec) {
	for i := range m.Vertices {
		m.Vertices[i] = r3.Add(m.Vertices[i], v)
	}
}

// Scale scales every vertex component-wise around the origin
func (m *Mesh) Scale(s r3.Vec) {
	for i, p := range m.Vertices {
		m.Vertices[i] = r3.Vec{X: p.X * s.X, Y: p.Y * s.Y, Z: p.Z * s.Z}
	}
}

// RotateZ rotates the mesh around the Z axis through the origin
func (m *Mesh) RotateZ(degrees float64) {
	if degrees == 0 {
		return
	}
	rot := r3.NewRotation(degrees*math.Pi/180, r3.Vec{Z: 1})
	for i, p := range m.Vertices {
		m.Vertices[i] = rot.Rotate(p)
	}
}

// Concat merges meshes into a single mesh. Vertex indices are shifted, no welding is done.
func Concat(name string, meshes ...*Mesh) *Mesh {
	out := &Mesh{Name: name}
	for _, m := range meshes {
		if m == nil {
			continue
		}
		offset := len(out.Vertices)
		out.Vertices = append(out.Vertices, m.Vertices...)
		for _, f := range m.Faces {
			out.Faces = append(out.Faces, [3]int{f[0] + offset, f[1] + offset, f[2] + offset})
		}
	}
	return out
}

// Triangles returns the faces as coordinate triples
func (m *Mesh) Triangles() []r3.Triangle {
	tris := make([]r3.Triangle, len(m.Faces))
	for i, f := range m.Faces {
		tris[i] = r3.Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
	}
	return tris
}

// XY projects the vertices onto the XY plane
func (m *Mesh) XY() []r2.Vec {
	pts := make([]r2.Vec, len(m.Vertices))
	for i, v := range m.Vertices {
		pts[i] = r2.Vec{X: v.X, Y: v.Y}
	}
	return pts
}

// Hull returns the convex hull of the mesh footprint
func (m *Mesh) Hull() geometry.Polygon {
	return geometry.ConvexHull(m.XY())
}

// Validate checks that all face indices point at existing vertices
func (m *Mesh) Validate() error {
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("face %d references vertex %d of %d", i, idx, len(m.Vertices))
			}
		}
	}
	return nil
}

// ToSTL converts the mesh to an STL mesh with per-face normals
func (m *Mesh) ToSTL() *stl.Mesh {
	out := &stl.Mesh{Name: m.Name, Triangles: make([]stl.Triangle, len(m.Faces))}
	for i, tri := range m.Triangles() {
		var n r3.Vec
		if normal := tri.Normal(); r3.Norm(normal) > 0 {
			n = r3.Unit(normal)
		}
		out.Triangles[i] = stl.Triangle{
			Normal: toSTLVector(n),
			V1:     toSTLVector(tri[0]),
			V2:     toSTLVector(tri[1]),
			V3:     toSTLVector(tri[2]),
		}
	}
	return out
}

// FromSTL builds an indexed mesh from STL triangles, welding vertices at identical positions
func FromSTL(s *stl.Mesh) *Mesh {
	m := &Mesh{Name: s.Name, Faces: make([][3]int, 0, len(s.Triangles))}
	index := make(map[stl.Vector3]int, len(s.Triangles))

	vertex := func(v stl.Vector3) int {
		if i, ok := index[v]; ok {
			return i
		}
		i := len(m.Vertices)
		index[v] = i
		m.Vertices = append(m.Vertices, r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)})
		return i
	}

	for _, t := range s.Triangles {
		m.Faces = append(m.Faces, [3]int{vertex(t.V1), vertex(t.V2), vertex(t.V3)})
	}
	return m
}

func toSTLVector(v r3.Vec) stl.Vector3 {
	return stl.Vector3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}
