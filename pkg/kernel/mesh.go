package kernel

import "github.com/chazu/ablation/pkg/geom"

// Mesh is a triangle mesh.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // which solid this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Point returns vertex i.
func (m *Mesh) Point(i int) geom.Point3 {
	return geom.Point3{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// Normal returns the normal stored for vertex i.
func (m *Mesh) Normal(i int) geom.Vec3 {
	return geom.Vec3{
		X: float64(m.Normals[3*i]),
		Y: float64(m.Normals[3*i+1]),
		Z: float64(m.Normals[3*i+2]),
	}
}

// Triangle returns the corners of triangle t.
func (m *Mesh) Triangle(t int) [3]geom.Point3 {
	return [3]geom.Point3{
		m.Point(int(m.Indices[3*t])),
		m.Point(int(m.Indices[3*t+1])),
		m.Point(int(m.Indices[3*t+2])),
	}
}

// UniquePoints returns the distinct vertex positions in first-seen order.
// Marching cubes output repeats each shared corner once per triangle.
func (m *Mesh) UniquePoints() []geom.Point3 {
	type key [3]float32
	seen := make(map[key]struct{}, m.VertexCount()/3)
	out := make([]geom.Point3, 0, m.VertexCount()/3)
	for i := 0; i < m.VertexCount(); i++ {
		k := key{m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2]}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m.Point(i))
	}
	return out
}
