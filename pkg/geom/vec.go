// Package geom holds the small fixed-size vector and matrix types used by
// the placement pipeline, and the rotation that aligns one direction with
// another.
package geom

import (
	"fmt"
	"math"
)

// Epsilon is the magnitude below which a vector is treated as zero.
const Epsilon = 1e-9

// Vec3 is a direction or displacement in mm.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v.X, -v.Y, -v.Z}
}

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// IsZero reports whether the length is below Epsilon.
func (v Vec3) IsZero() bool {
	return v.Norm() < Epsilon
}

// Array returns the components as an array.
func (v Vec3) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

// Point3 is a position in mm. Landmark positions are Point3 values and are
// never modified after they are read.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns the displacement p - o.
func (p Point3) Sub(o Point3) Vec3 {
	return Vec3{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

// Add returns p displaced by v.
func (p Point3) Add(v Vec3) Point3 {
	return Point3{p.X + v.X, p.Y + v.Y, p.Z + v.Z}
}

// Vec returns the displacement of p from the origin.
func (p Point3) Vec() Vec3 {
	return Vec3{p.X, p.Y, p.Z}
}

// Distance returns the Euclidean distance between p and o.
func (p Point3) Distance(o Point3) float64 {
	return p.Sub(o).Norm()
}

func (p Point3) String() string {
	return fmt.Sprintf("[%.3f, %.3f, %.3f]", p.X, p.Y, p.Z)
}

// UnitVec3 is a Vec3 of length 1. The zero value is not valid; obtain one
// from Normalize or MustNormalize.
type UnitVec3 struct {
	v Vec3
}

// Normalize scales v to unit length. It fails with a *DegenerateVectorError
// when v is shorter than Epsilon.
func Normalize(v Vec3) (UnitVec3, error) {
	n := v.Norm()
	if n < Epsilon {
		return UnitVec3{}, &DegenerateVectorError{Vector: v}
	}
	return UnitVec3{v: v.Scale(1 / n)}, nil
}

// MustNormalize is Normalize for literal directions. It panics on a
// degenerate vector.
func MustNormalize(v Vec3) UnitVec3 {
	u, err := Normalize(v)
	if err != nil {
		panic(err)
	}
	return u
}

// Vec returns the underlying vector.
func (u UnitVec3) Vec() Vec3 {
	return u.v
}

// Neg returns the opposite direction.
func (u UnitVec3) Neg() UnitVec3 {
	return UnitVec3{v: u.v.Neg()}
}

// Valid reports whether u was produced by Normalize.
func (u UnitVec3) Valid() bool {
	return math.Abs(u.v.Norm()-1) < 1e-6
}

func (u UnitVec3) String() string {
	return u.v.String()
}

// Common axes.
var (
	AxisX    = UnitVec3{v: Vec3{1, 0, 0}}
	AxisY    = UnitVec3{v: Vec3{0, 1, 0}}
	AxisZ    = UnitVec3{v: Vec3{0, 0, 1}}
	AxisNegZ = UnitVec3{v: Vec3{0, 0, -1}}
)

// DegenerateVectorError is returned when a zero-length vector is normalized.
type DegenerateVectorError struct {
	Vector Vec3
}

func (e *DegenerateVectorError) Error() string {
	return fmt.Sprintf("degenerate vector %s: magnitude below %g", e.Vector, Epsilon)
}
