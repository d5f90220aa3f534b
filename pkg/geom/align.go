package geom

import "math"

// ParallelTolerance is the sine below which two unit vectors are treated as
// parallel or anti-parallel.
const ParallelTolerance = 1e-9

// AlignmentRotation returns the smallest rotation R with R·src = dst, using
// Rodrigues' formula R = I + K + K²·(1−c)/s², where K is the cross-product
// matrix of v = src × dst, c = src·dst and s = ‖v‖.
//
// Parallel inputs return the identity. Anti-parallel inputs have no unique
// minimal rotation; the result is the half turn about HalfTurnAxis(src).
func AlignmentRotation(src, dst UnitVec3) Mat3 {
	a, b := src.Vec(), dst.Vec()
	v := a.Cross(b)
	c := a.Dot(b)
	s := v.Norm()

	if s < ParallelTolerance {
		if c > 0 {
			return Identity3()
		}
		return HalfTurn(HalfTurnAxis(src))
	}

	k := Skew(v)
	return Identity3().Add(k).Add(k.Mul(k).Scale((1 - c) / (s * s)))
}

// HalfTurnAxis picks the axis used to flip src onto -src: src crossed with
// the world axis along which src has its smallest absolute component, ties
// broken in X, Y, Z order. The choice is deterministic and always orthogonal
// to src.
func HalfTurnAxis(src UnitVec3) UnitVec3 {
	a := src.Vec()
	ax, ay, az := math.Abs(a.X), math.Abs(a.Y), math.Abs(a.Z)

	var e Vec3
	switch {
	case ax <= ay && ax <= az:
		e = AxisX.Vec()
	case ay <= az:
		e = AxisY.Vec()
	default:
		e = AxisZ.Vec()
	}
	// src is unit length and e is its least aligned axis, so the cross
	// product has length at least sqrt(2/3).
	return MustNormalize(a.Cross(e))
}

// HalfTurn returns the 180° rotation 2uuᵀ − I about u.
func HalfTurn(u UnitVec3) Mat3 {
	v := u.Vec()
	return Outer(v, v).Scale(2).Add(Identity3().Scale(-1))
}

// AlignVectors normalizes both inputs and returns AlignmentRotation. It fails
// with a *DegenerateVectorError if either has near-zero magnitude.
func AlignVectors(src, dst Vec3) (Mat3, error) {
	a, err := Normalize(src)
	if err != nil {
		return Mat3{}, err
	}
	b, err := Normalize(dst)
	if err != nil {
		return Mat3{}, err
	}
	return AlignmentRotation(a, b), nil
}
