package mesh

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hpinc/go3mf"
	_ "github.com/hpinc/go3mf/production"
	"github.com/philipparndt/smithforge/internal/stl"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxComponentDepth guards against cyclic component references
const maxComponentDepth = 16

// Load reads a mesh file. 3MF scenes are flattened into one mesh with all
// build item and component transforms applied.
func Load(path string) (*Mesh, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var (
		m   *Mesh
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".3mf":
		m, err = load3MF(path)
	case ".stl":
		m, err = loadSTL(path)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	m.Name = name
	if m.Empty() {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return m, nil
}

func loadSTL(path string) (*Mesh, error) {
	s, err := stl.NewParser().Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL %s: %w", path, err)
	}
	return FromSTL(s), nil
}

func load3MF(path string) (*Mesh, error) {
	r, err := go3mf.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open 3MF %s: %w", path, err)
	}
	defer r.Close()

	var model go3mf.Model
	if err := r.Decode(&model); err != nil {
		return nil, fmt.Errorf("failed to decode 3MF %s: %w", path, err)
	}

	out := &Mesh{}
	for _, item := range model.Build.Items {
		obj, ok := model.FindObject(item.ObjectPath(), item.ObjectID)
		if !ok {
			return nil, fmt.Errorf("build item references unknown object %d", item.ObjectID)
		}
		if err := appendObject(out, &model, item.ObjectPath(), obj, matrixOf(item.Transform), 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendObject(out *Mesh, model *go3mf.Model, path string, obj *go3mf.Object, t affine, depth int) error {
	if depth > maxComponentDepth {
		return fmt.Errorf("component nesting deeper than %d levels at object %d", maxComponentDepth, obj.ID)
	}

	if obj.Mesh != nil {
		offset := len(out.Vertices)
		for _, v := range obj.Mesh.Vertices.Vertex {
			out.Vertices = append(out.Vertices, t.apply(r3.Vec{X: float64(v.X()), Y: float64(v.Y()), Z: float64(v.Z())}))
		}
		for _, tri := range obj.Mesh.Triangles.Triangle {
			out.Faces = append(out.Faces, [3]int{
				offset + int(tri.V1),
				offset + int(tri.V2),
				offset + int(tri.V3),
			})
		}
	}

	if obj.Components != nil {
		for _, c := range obj.Components.Component {
			child, childPath, ok := findComponentObject(model, path, c.ObjectID)
			if !ok {
				return fmt.Errorf("object %d references unknown component object %d", obj.ID, c.ObjectID)
			}
			if err := appendObject(out, model, childPath, child, matrixOf(c.Transform).then(t), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// findComponentObject looks in the current model part first, then the root
// model, then every attached child model.
func findComponentObject(model *go3mf.Model, path string, id uint32) (*go3mf.Object, string, bool) {
	if obj, ok := model.FindObject(path, id); ok {
		return obj, path, true
	}
	if obj, ok := model.FindObject("", id); ok {
		return obj, "", true
	}
	for childPath, child := range model.Childs {
		for _, obj := range child.Resources.Objects {
			if obj.ID == id {
				return obj, childPath, true
			}
		}
	}
	return nil, "", false
}

// affine is a 3MF row-vector transform: p' = p*M + T
type affine struct {
	m [3][3]float64
	t r3.Vec
}

var identity = affine{m: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}

func matrixOf(m go3mf.Matrix) affine {
	if m == (go3mf.Matrix{}) {
		return identity
	}
	return affine{
		m: [3][3]float64{
			{float64(m[0]), float64(m[1]), float64(m[2])},
			{float64(m[4]), float64(m[5]), float64(m[6])},
			{float64(m[8]), float64(m[9]), float64(m[10])},
		},
		t: r3.Vec{X: float64(m[12]), Y: float64(m[13]), Z: float64(m[14])},
	}
}

func (a affine) apply(p r3.Vec) r3.Vec {
	return r3.Vec{
		X: p.X*a.m[0][0] + p.Y*a.m[1][0] + p.Z*a.m[2][0] + a.t.X,
		Y: p.X*a.m[0][1] + p.Y*a.m[1][1] + p.Z*a.m[2][1] + a.t.Y,
		Z: p.X*a.m[0][2] + p.Y*a.m[1][2] + p.Z*a.m[2][2] + a.t.Z,
	}
}

// then returns the transform that applies a first and b second
func (a affine) then(b affine) affine {
	var out affine
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out.m[i][j] += a.m[i][k] * b.m[k][j]
			}
		}
	}
	out.t = b.apply(a.t)
	return out
}
