package geom

import "math"

// Mat3 is a row-major 3×3 matrix.
type Mat3 [3][3]float64

// Identity3 returns the 3×3 identity.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Skew returns the cross-product matrix K of v, so that K·x = v × x.
func Skew(v Vec3) Mat3 {
	return Mat3{
		{0, -v.Z, v.Y},
		{v.Z, 0, -v.X},
		{-v.Y, v.X, 0},
	}
}

// Outer returns a·bᵀ.
func Outer(a, b Vec3) Mat3 {
	av, bv := a.Array(), b.Array()
	var m Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = av[i] * bv[j]
		}
	}
	return m
}

// Add returns m + o.
func (m Mat3) Add(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] + o[i][j]
		}
	}
	return r
}

// Scale returns m * s.
func (m Mat3) Scale(s float64) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] * s
		}
	}
	return r
}

// Mul returns m·o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return r
}

// MulVec returns m·v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Transpose returns mᵀ.
func (m Mat3) Transpose() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Det returns the determinant.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Trace returns the sum of the diagonal.
func (m Mat3) Trace() float64 {
	return m[0][0] + m[1][1] + m[2][2]
}

// HasNaN reports whether any element is NaN or infinite.
func (m Mat3) HasNaN() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return true
			}
		}
	}
	return false
}

// ApproxEqual compares element-wise within tol.
func (m Mat3) ApproxEqual(o Mat3, tol float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(m[i][j]-o[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// IsRotation reports whether m is orthogonal with determinant +1.
func (m Mat3) IsRotation(tol float64) bool {
	if m.HasNaN() {
		return false
	}
	if !m.Mul(m.Transpose()).ApproxEqual(Identity3(), tol) {
		return false
	}
	return math.Abs(m.Det()-1) <= tol
}

// AxisAngle decomposes a rotation into a unit axis and an angle in radians
// in [0, π]. The identity decomposes to (+Z, 0).
func (m Mat3) AxisAngle() (Vec3, float64) {
	cos := (m.Trace() - 1) / 2
	cos = math.Max(-1, math.Min(1, cos))
	angle := math.Acos(cos)

	if angle < 1e-9 {
		return AxisZ.Vec(), 0
	}

	anti := Vec3{
		X: m[2][1] - m[1][2],
		Y: m[0][2] - m[2][0],
		Z: m[1][0] - m[0][1],
	}

	if math.Pi-angle > 1e-3 {
		return anti.Scale(1 / (2 * math.Sin(angle))), angle
	}

	// Near a half turn the antisymmetric part vanishes; read the axis from
	// the symmetric part (R + I)/2 = uuᵀ using its largest diagonal entry.
	s := m.Add(Identity3()).Scale(0.5)
	i := 0
	for k := 1; k < 3; k++ {
		if s[k][k] > s[i][i] {
			i = k
		}
	}
	col := [3]float64{s[0][i], s[1][i], s[2][i]}
	axis := Vec3{col[0], col[1], col[2]}.Scale(1 / math.Sqrt(s[i][i]))
	if axis.Dot(anti) < 0 {
		axis = axis.Neg()
	}
	return axis.Scale(1 / axis.Norm()), angle
}

// Mat4 is a row-major 4×4 homogeneous transform.
type Mat4 [4][4]float64

// Identity4 returns the 4×4 identity.
func Identity4() Mat4 {
	return Mat4{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// Homogeneous builds a transform whose upper-left 3×3 block is rot and whose
// translation column is t.
func Homogeneous(rot Mat3, t Vec3) Mat4 {
	return Mat4{
		{rot[0][0], rot[0][1], rot[0][2], t.X},
		{rot[1][0], rot[1][1], rot[1][2], t.Y},
		{rot[2][0], rot[2][1], rot[2][2], t.Z},
		{0, 0, 0, 1},
	}
}

// Rotation returns the upper-left 3×3 block.
func (m Mat4) Rotation() Mat3 {
	return Mat3{
		{m[0][0], m[0][1], m[0][2]},
		{m[1][0], m[1][1], m[1][2]},
		{m[2][0], m[2][1], m[2][2]},
	}
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[0][3], m[1][3], m[2][3]}
}

// Mul returns m·o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				r[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return r
}

// MulPoint applies m to a position.
func (m Mat4) MulPoint(p Point3) Point3 {
	v := m.Rotation().MulVec(p.Vec()).Add(m.Translation())
	return Point3{v.X, v.Y, v.Z}
}

// MulDir applies the rotation part of m to a direction.
func (m Mat4) MulDir(v Vec3) Vec3 {
	return m.Rotation().MulVec(v)
}

// ApproxEqual compares element-wise within tol.
func (m Mat4) ApproxEqual(o Mat4, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(m[i][j]-o[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// IsIdentity reports whether m is the identity within tol.
func (m Mat4) IsIdentity(tol float64) bool {
	return m.ApproxEqual(Identity4(), tol)
}
