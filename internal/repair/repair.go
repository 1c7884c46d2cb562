// Package repair validates meshes before boolean operations and fixes the
// common defects of exported relief models.
package repair

import (
	"math"
	"sort"

	"github.com/philipparndt/smithforge/internal/mesh"
	"github.com/unixpickle/model3d/model3d"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// degenerateArea is the face area below which a face counts as degenerate
	degenerateArea = 1e-10
	// weldEpsilon is the distance at which vertices are merged
	weldEpsilon = 1e-6
	// normalsEpsilon is passed to the normal repair of model3d
	normalsEpsilon = 1e-8
)

// Validate inspects the mesh without changing it
func Validate(m *mesh.Mesh) *Report {
	report := newReport()

	if m == nil || len(m.Vertices) == 0 || len(m.Faces) == 0 {
		report.issue("Mesh is empty (no vertices or faces)")
		report.Success = false
		return report
	}

	solid := toModel3D(m)
	if solid.NeedsRepair() {
		report.issue("Mesh is not watertight (has holes or non-manifold edges)")
	}

	if n := countDegenerate(m); n > 0 {
		report.issue("Found %d degenerate faces (zero or near-zero area)", n)
	}

	if n := len(m.Vertices) - countUnique(m.Vertices); n > 0 {
		report.issue("Found %d duplicate vertices", n)
	}

	if n := len(m.Faces) - len(uniqueFaces(m.Faces)); n > 0 {
		report.issue("Found %d duplicate faces", n)
	}

	if v := solid.Volume(); v <= 0 {
		report.issue("Mesh has invalid volume: %g", v)
	}

	if n := len(solid.SingularVertices()); n > 0 {
		report.issue("Found %d singular vertices", n)
	}

	if len(report.IssuesFound) == 0 {
		report.repaired("Mesh validation passed - no issues detected")
	}
	return report
}

// AutoRepair fixes duplicate and degenerate geometry and face orientation.
// The input mesh is not modified.
func AutoRepair(m *mesh.Mesh) (*mesh.Mesh, *Report) {
	report := newReport()

	validation := Validate(m)
	report.IssuesFound = validation.IssuesFound
	if !validation.Success {
		report.Success = false
		return m, report
	}
	if len(validation.IssuesFound) == 0 {
		report.repaired("No repairs needed")
		return m, report
	}

	out := m.Clone()

	if report.hasIssue("duplicate vertices") {
		before := len(out.Vertices)
		out = weld(out, weldEpsilon)
		if n := before - len(out.Vertices); n > 0 {
			report.repaired("Merged %d duplicate vertices", n)
		}
	}

	if report.hasIssue("duplicate faces") {
		before := len(out.Faces)
		out.Faces = uniqueFaces(out.Faces)
		if n := before - len(out.Faces); n > 0 {
			report.repaired("Removed %d duplicate faces", n)
		}
	}

	if report.hasIssue("degenerate faces") {
		before := len(out.Faces)
		out.Faces = removeDegenerate(out)
		if n := before - len(out.Faces); n > 0 {
			report.repaired("Removed %d degenerate faces", n)
		}
	}

	watertight := !toModel3D(out).NeedsRepair()
	if !watertight {
		if n := fillHoles(out); n > 0 {
			report.repaired("Filled %d holes", n)
			watertight = !toModel3D(out).NeedsRepair()
		}
	}
	if report.hasIssue("not watertight") {
		if watertight {
			report.repaired("Mesh is now watertight")
		} else {
			report.warn("Mesh is still not watertight, some holes could not be closed")
		}
	}

	if watertight {
		fixed, flipped := toModel3D(out).RepairNormals(normalsEpsilon)
		if flipped > 0 || report.hasIssue("invalid volume") {
			out = fromModel3D(out.Name, fixed)
		}
		if fixed.Volume() < 0 {
			flipAll(out)
		}
		report.repaired("Fixed face normals for consistent winding (%d flipped)", flipped)
	} else {
		report.warn("Could not fix normals: mesh is not watertight")
	}

	before := len(out.Vertices)
	out = removeUnreferenced(out)
	if n := before - len(out.Vertices); n > 0 {
		report.repaired("Removed %d unreferenced vertices", n)
	}

	final := Validate(out)
	var remaining []string
	for _, issue := range final.IssuesFound {
		if !contains(report.IssuesFound, issue) {
			remaining = append(remaining, issue)
		}
	}
	if len(remaining) > 0 {
		report.warn("Some issues remain after repair:")
		for _, issue := range remaining {
			report.warn("  - %s", issue)
		}
	}

	solid := toModel3D(out)
	if len(out.Faces) > 0 && !solid.NeedsRepair() && solid.Volume() > 0 {
		report.Success = true
		report.repaired("Mesh is now ready for boolean operations")
	} else {
		report.Success = false
		report.warn("Mesh may still have issues that could cause boolean operation failures")
	}
	return out, report
}

// fillHoles closes every open edge loop with a triangle fan from its first
// vertex and returns the number of loops closed
func fillHoles(m *mesh.Mesh) int {
	loops := m.BoundaryLoops()
	for _, loop := range loops {
		for i := 1; i+1 < len(loop); i++ {
			// reverse of the loop direction so the new faces match their neighbours
			m.Faces = append(m.Faces, [3]int{loop[0], loop[i+1], loop[i]})
		}
	}
	return len(loops)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toModel3D(m *mesh.Mesh) *model3d.Mesh {
	tris := make([]*model3d.Triangle, 0, len(m.Faces))
	for _, f := range m.Faces {
		a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
		tris = append(tris, &model3d.Triangle{
			model3d.XYZ(a.X, a.Y, a.Z),
			model3d.XYZ(b.X, b.Y, b.Z),
			model3d.XYZ(c.X, c.Y, c.Z),
		})
	}
	return model3d.NewMeshTriangles(tris)
}

func fromModel3D(name string, solid *model3d.Mesh) *mesh.Mesh {
	out := &mesh.Mesh{Name: name}
	index := make(map[model3d.Coord3D]int)
	vertex := func(c model3d.Coord3D) int {
		if i, ok := index[c]; ok {
			return i
		}
		i := len(out.Vertices)
		index[c] = i
		out.Vertices = append(out.Vertices, r3.Vec{X: c.X, Y: c.Y, Z: c.Z})
		return i
	}

	tris := solid.TriangleSlice()
	// model3d keeps triangles in a set; sort for a stable face order
	sort.Slice(tris, func(i, j int) bool {
		return lessCoord(tris[i].Min(), tris[j].Min())
	})
	for _, t := range tris {
		out.Faces = append(out.Faces, [3]int{vertex(t[0]), vertex(t[1]), vertex(t[2])})
	}
	return out
}

func lessCoord(a, b model3d.Coord3D) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

func countDegenerate(m *mesh.Mesh) int {
	n := 0
	for _, t := range m.Triangles() {
		if t.Area() < degenerateArea {
			n++
		}
	}
	return n
}

func removeDegenerate(m *mesh.Mesh) [][3]int {
	out := make([][3]int, 0, len(m.Faces))
	for i, t := range m.Triangles() {
		if t.Area() >= degenerateArea {
			out = append(out, m.Faces[i])
		}
	}
	return out
}

func countUnique(vertices []r3.Vec) int {
	seen := make(map[r3.Vec]struct{}, len(vertices))
	for _, v := range vertices {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// uniqueFaces drops faces using the same three vertices as an earlier face,
// regardless of winding
func uniqueFaces(faces [][3]int) [][3]int {
	seen := make(map[[3]int]struct{}, len(faces))
	out := make([][3]int, 0, len(faces))
	for _, f := range faces {
		key := f
		sort.Ints(key[:])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// weld merges vertices closer than eps by snapping them to a grid
func weld(m *mesh.Mesh, eps float64) *mesh.Mesh {
	type cell [3]int64
	snap := func(v r3.Vec) cell {
		return cell{int64(math.Round(v.X / eps)), int64(math.Round(v.Y / eps)), int64(math.Round(v.Z / eps))}
	}

	out := &mesh.Mesh{Name: m.Name}
	index := make(map[cell]int, len(m.Vertices))
	remap := make([]int, len(m.Vertices))
	for i, v := range m.Vertices {
		c := snap(v)
		j, ok := index[c]
		if !ok {
			j = len(out.Vertices)
			index[c] = j
			out.Vertices = append(out.Vertices, v)
		}
		remap[i] = j
	}
	out.Faces = make([][3]int, len(m.Faces))
	for i, f := range m.Faces {
		out.Faces[i] = [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
	}
	return out
}

func removeUnreferenced(m *mesh.Mesh) *mesh.Mesh {
	remap := make([]int, len(m.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	out := &mesh.Mesh{Name: m.Name, Faces: make([][3]int, len(m.Faces))}
	for i, f := range m.Faces {
		for k, idx := range f {
			if remap[idx] < 0 {
				remap[idx] = len(out.Vertices)
				out.Vertices = append(out.Vertices, m.Vertices[idx])
			}
			out.Faces[i][k] = remap[idx]
		}
	}
	return out
}

func flipAll(m *mesh.Mesh) {
	for i, f := range m.Faces {
		m.Faces[i] = [3]int{f[0], f[2], f[1]}
	}
}
