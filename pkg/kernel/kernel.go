// Package kernel defines the abstract geometry kernel interface.
// Implementations (currently sdfx) provide solid modeling, boolean
// operations, rigid transforms, signed distance queries and meshing behind
// this interface, so the placement pipeline never touches a backend type.
package kernel

import "github.com/chazu/ablation/pkg/geom"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation. Solids are immutable:
// every operation returns a new Solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Cylinder(height, radius, round float64) Solid
	Sphere(radius float64) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Transform(s Solid, m geom.Mat4) Solid

	// Queries
	SignedDistance(s Solid, p geom.Point3) float64

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
