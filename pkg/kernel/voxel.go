package kernel

import (
	"fmt"
	"math"

	"github.com/chazu/ablation/pkg/geom"
)

// MaxVoxels caps the number of cells Voxelize will sample.
const MaxVoxels = 8_000_000

// VoxelGrid is a binary occupancy grid sampled at cell centers.
// Cell (i,j,k) has index i + Dims[0]*(j + Dims[1]*k).
type VoxelGrid struct {
	Origin   geom.Point3 `json:"origin"` // corner of cell (0,0,0)
	Spacing  float64     `json:"spacing"`
	Dims     [3]int      `json:"dims"`
	Occupied []bool      `json:"occupied"`
}

// Count returns the number of occupied cells.
func (g *VoxelGrid) Count() int {
	n := 0
	for _, o := range g.Occupied {
		if o {
			n++
		}
	}
	return n
}

// Volume returns the occupied volume in mm³.
func (g *VoxelGrid) Volume() float64 {
	return float64(g.Count()) * g.Spacing * g.Spacing * g.Spacing
}

// Center returns the center of cell (i,j,k).
func (g *VoxelGrid) Center(i, j, k int) geom.Point3 {
	return geom.Point3{
		X: g.Origin.X + (float64(i)+0.5)*g.Spacing,
		Y: g.Origin.Y + (float64(j)+0.5)*g.Spacing,
		Z: g.Origin.Z + (float64(k)+0.5)*g.Spacing,
	}
}

// Voxelize samples s on a grid with the given spacing covering its
// bounding box. A cell is occupied when the signed distance at its center
// is not positive.
func Voxelize(k Kernel, s Solid, spacing float64) (*VoxelGrid, error) {
	if spacing <= 0 {
		return nil, fmt.Errorf("voxelize: spacing must be positive, got %g", spacing)
	}
	min, max := s.BoundingBox()

	var dims [3]int
	total := 1
	for a := 0; a < 3; a++ {
		extent := max[a] - min[a]
		if extent < 0 || math.IsNaN(extent) || math.IsInf(extent, 0) {
			return nil, fmt.Errorf("voxelize: invalid bounding box %v..%v", min, max)
		}
		dims[a] = int(math.Ceil(extent/spacing)) + 1
		total *= dims[a]
	}
	if total > MaxVoxels {
		return nil, fmt.Errorf("voxelize: %d cells exceeds limit of %d, increase spacing", total, MaxVoxels)
	}

	g := &VoxelGrid{
		Origin:   geom.Point3{X: min[0], Y: min[1], Z: min[2]},
		Spacing:  spacing,
		Dims:     dims,
		Occupied: make([]bool, total),
	}
	g.sample(k, s)
	return g, nil
}

// Resample samples s on the lattice of like. Volumes of solids sampled on
// the same lattice can be compared cell for cell.
func Resample(k Kernel, s Solid, like *VoxelGrid) *VoxelGrid {
	g := &VoxelGrid{
		Origin:   like.Origin,
		Spacing:  like.Spacing,
		Dims:     like.Dims,
		Occupied: make([]bool, len(like.Occupied)),
	}
	g.sample(k, s)
	return g
}

func (g *VoxelGrid) sample(k Kernel, s Solid) {
	dims := g.Dims
	idx := 0
	for kk := 0; kk < dims[2]; kk++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				g.Occupied[idx] = k.SignedDistance(s, g.Center(i, j, kk)) <= 0
				idx++
			}
		}
	}
}
