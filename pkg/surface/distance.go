// Package surface computes point-wise signed distances from one triangle
// mesh to the surface of another.
package surface

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/kernel"
)

// Array names attached to a ScalarField.
const (
	SignedArray   = "Signed"
	AbsoluteArray = "Absolute"
)

// R-tree fan-out.
const (
	minChildren = 25
	maxChildren = 50
)

// ScalarField is a set of named per-point arrays over the vertices of a
// mesh.
type ScalarField struct {
	Points []geom.Point3        `json:"points"`
	Arrays map[string][]float64 `json:"arrays"`
}

// Array returns the named array.
func (f *ScalarField) Array(name string) ([]float64, bool) {
	a, ok := f.Arrays[name]
	return a, ok
}

// Len returns the number of points.
func (f *ScalarField) Len() int {
	return len(f.Points)
}

// face is one non-degenerate triangle of the reference mesh.
type face struct {
	corner [3]geom.Point3
	normal geom.Vec3
	bounds rtreego.Rect
}

func (f *face) Bounds() rtreego.Rect {
	return f.bounds
}

func newFace(tri [3]geom.Point3) (*face, bool) {
	n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
	if n.Norm() < geom.Epsilon {
		return nil, false
	}
	lo := rtreego.Point{
		math.Min(tri[0].X, math.Min(tri[1].X, tri[2].X)),
		math.Min(tri[0].Y, math.Min(tri[1].Y, tri[2].Y)),
		math.Min(tri[0].Z, math.Min(tri[1].Z, tri[2].Z)),
	}
	hi := rtreego.Point{
		math.Max(tri[0].X, math.Max(tri[1].X, tri[2].X)),
		math.Max(tri[0].Y, math.Max(tri[1].Y, tri[2].Y)),
		math.Max(tri[0].Z, math.Max(tri[1].Z, tri[2].Z)),
	}
	r, err := rtreego.NewRectFromPoints(lo, hi)
	if err != nil {
		return nil, false
	}
	return &face{corner: tri, normal: n.Scale(1 / n.Norm()), bounds: r}, true
}

// Index accelerates closest-point queries against one mesh.
type Index struct {
	tree  *rtreego.Rtree
	faces int
}

// NewIndex builds an R-tree over the triangles of m. Zero-area triangles
// are skipped.
func NewIndex(m *kernel.Mesh) (*Index, error) {
	if m == nil || m.TriangleCount() == 0 {
		return nil, fmt.Errorf("surface: reference mesh has no triangles")
	}
	objs := make([]rtreego.Spatial, 0, m.TriangleCount())
	for t := 0; t < m.TriangleCount(); t++ {
		if f, ok := newFace(m.Triangle(t)); ok {
			objs = append(objs, f)
		}
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("surface: reference mesh has only degenerate triangles")
	}
	return &Index{tree: rtreego.NewTree(3, minChildren, maxChildren, objs...), faces: len(objs)}, nil
}

// Faces returns the number of indexed triangles.
func (ix *Index) Faces() int {
	return ix.faces
}

// SignedDistance returns the distance from p to the indexed surface,
// positive when p lies on the side the face normals point to (outside a
// closed mesh).
//
// The nearest bounding box gives an upper bound d0 on the distance. Every
// face that could beat it intersects the cube of half-size d0 around p,
// so the exact minimum is taken over that candidate set.
func (ix *Index) SignedDistance(p geom.Point3) float64 {
	q := rtreego.Point{p.X, p.Y, p.Z}
	first := ix.tree.NearestNeighbor(q).(*face)
	_, d0 := closestPointOnTriangle(p, first.corner)

	candidates := ix.tree.SearchIntersect(q.ToRect(d0 + geom.Epsilon))

	best := d0
	for _, c := range candidates {
		if _, d := closestPointOnTriangle(p, c.(*face).corner); d < best {
			best = d
		}
	}

	// Faces sharing the closest point (edges and corners) vote on the side.
	tie := best + 1e-9*math.Max(1, best)
	var n geom.Vec3
	var at geom.Point3
	for _, c := range candidates {
		f := c.(*face)
		cp, d := closestPointOnTriangle(p, f.corner)
		if d <= tie {
			n = n.Add(f.normal)
			at = cp
		}
	}
	if n.IsZero() {
		cp, _ := closestPointOnTriangle(p, first.corner)
		n, at = first.normal, cp
	}

	if p.Sub(at).Dot(n) < 0 {
		return -best
	}
	return best
}

// SignedClosestPointDistance evaluates, for each distinct vertex of a, the
// signed distance to the closest point on b's surface. The result carries
// the signed values under SignedArray and their magnitudes under
// AbsoluteArray. The ordering is fixed: distances are signed relative to b.
func SignedClosestPointDistance(a, b *kernel.Mesh) (*ScalarField, error) {
	if a == nil || a.IsEmpty() {
		return nil, fmt.Errorf("surface: source mesh is empty")
	}
	ix, err := NewIndex(b)
	if err != nil {
		return nil, err
	}

	points := a.UniquePoints()
	signed := make([]float64, len(points))
	abs := make([]float64, len(points))
	for i, p := range points {
		d := ix.SignedDistance(p)
		signed[i] = d
		abs[i] = math.Abs(d)
	}

	return &ScalarField{
		Points: points,
		Arrays: map[string][]float64{
			SignedArray:   signed,
			AbsoluteArray: abs,
		},
	}, nil
}
