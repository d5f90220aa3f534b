package kernel

import (
	"math"
	"testing"

	"github.com/chazu/ablation/pkg/geom"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		m := &Mesh{Vertices: []float32{1, 2, 3}}
		if m.IsEmpty() {
			t.Error("IsEmpty() = true for non-empty mesh, want false")
		}
	})
}

func TestMeshTriangleAndUniquePoints(t *testing.T) {
	// Two triangles sharing an edge, stored unindexed as marching cubes does.
	m := &Mesh{
		Vertices: []float32{
			0, 0, 0, 1, 0, 0, 1, 1, 0,
			0, 0, 0, 1, 1, 0, 0, 1, 0,
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
	tri := m.Triangle(1)
	if tri[1] != (geom.Point3{X: 1, Y: 1}) {
		t.Errorf("Triangle(1)[1] = %v, want (1,1,0)", tri[1])
	}
	if got := len(m.UniquePoints()); got != 4 {
		t.Errorf("UniquePoints() returned %d points, want 4", got)
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubSolid is a sphere, enough to exercise distance-driven helpers.
type stubSolid struct {
	center geom.Point3
	radius float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	c, r := s.center, s.radius
	return [3]float64{c.X - r, c.Y - r, c.Z - r}, [3]float64{c.X + r, c.Y + r, c.Z + r}
}

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable. Everything is a sphere.
type stubKernel struct{}

func (k *stubKernel) Box(x, y, z float64) Solid {
	return &stubSolid{radius: math.Max(x, math.Max(y, z)) / 2}
}

func (k *stubKernel) Cylinder(height, radius, _ float64) Solid {
	return &stubSolid{radius: math.Max(height/2, radius)}
}

func (k *stubKernel) Sphere(radius float64) Solid { return &stubSolid{radius: radius} }

func (k *stubKernel) Union(a, _ Solid) Solid        { return a }
func (k *stubKernel) Difference(a, _ Solid) Solid   { return a }
func (k *stubKernel) Intersection(a, _ Solid) Solid { return a }

func (k *stubKernel) Translate(s Solid, x, y, z float64) Solid {
	ss := s.(*stubSolid)
	return &stubSolid{center: ss.center.Add(geom.Vec3{X: x, Y: y, Z: z}), radius: ss.radius}
}

func (k *stubKernel) Transform(s Solid, m geom.Mat4) Solid {
	ss := s.(*stubSolid)
	return &stubSolid{center: m.MulPoint(ss.center), radius: ss.radius}
}

func (k *stubKernel) SignedDistance(s Solid, p geom.Point3) float64 {
	ss := s.(*stubSolid)
	return p.Distance(ss.center) - ss.radius
}

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

// Compile-time checks that the stubs implement the interfaces.
var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelTranslate(t *testing.T) {
	var k Kernel = &stubKernel{}
	s := k.Translate(k.Sphere(2), 10, 0, 0)
	min, max := s.BoundingBox()
	if min != [3]float64{8, -2, -2} {
		t.Errorf("min = %v, want [8 -2 -2]", min)
	}
	if max != [3]float64{12, 2, 2} {
		t.Errorf("max = %v, want [12 2 2]", max)
	}
}

func TestVoxelizeSphereVolume(t *testing.T) {
	var k Kernel = &stubKernel{}
	s := k.Sphere(10)

	g, err := Voxelize(k, s, 0.5)
	if err != nil {
		t.Fatalf("Voxelize: %v", err)
	}
	want := 4.0 / 3.0 * math.Pi * 1000
	if got := g.Volume(); math.Abs(got-want)/want > 0.05 {
		t.Errorf("Volume() = %.1f, want within 5%% of %.1f", got, want)
	}
	if g.Dims[0] != g.Dims[1] || g.Dims[1] != g.Dims[2] {
		t.Errorf("expected cubic dims for a sphere, got %v", g.Dims)
	}
}

func TestVoxelizeRejectsBadSpacing(t *testing.T) {
	k := &stubKernel{}
	if _, err := Voxelize(k, k.Sphere(1), 0); err == nil {
		t.Error("expected error for zero spacing")
	}
	if _, err := Voxelize(k, k.Sphere(1000), 0.01); err == nil {
		t.Error("expected error when cell count exceeds MaxVoxels")
	}
}

func TestResampleSharesLattice(t *testing.T) {
	var k Kernel = &stubKernel{}
	g, err := Voxelize(k, k.Sphere(4), 1)
	if err != nil {
		t.Fatalf("Voxelize: %v", err)
	}

	// A sphere outside the lattice occupies nothing on it.
	far := Resample(k, k.Translate(k.Sphere(1), 100, 0, 0), g)
	if far.Dims != g.Dims || far.Origin != g.Origin {
		t.Fatalf("lattice changed: %v %v", far.Dims, far.Origin)
	}
	if far.Count() != 0 {
		t.Errorf("Count() = %d, want 0", far.Count())
	}

	same := Resample(k, k.Sphere(4), g)
	if same.Count() != g.Count() {
		t.Errorf("resampling the same solid: %d cells, want %d", same.Count(), g.Count())
	}
}
