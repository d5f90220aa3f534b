// Package register solves rigid landmark registration: the rotation and
// translation that best map one ordered point set onto another.
package register

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/chazu/ablation/pkg/geom"
)

// MinPoints is the smallest point count that fixes a rigid transform.
const MinPoints = 3

// Result is a fitted rigid transform.
type Result struct {
	// Transform maps moving points onto fixed points.
	Transform geom.Mat4 `json:"transform"`
	// RMS is the root mean square residual distance after the fit.
	RMS float64 `json:"rms"`
}

// Apply maps p with the fitted transform.
func (r *Result) Apply(p geom.Point3) geom.Point3 {
	return r.Transform.MulPoint(p)
}

// Rigid finds the least-squares rigid transform taking moving[i] to
// fixed[i] (Kabsch). The rotation is proper: a reflection in the SVD
// solution is flipped out through the smallest singular vector.
func Rigid(fixed, moving []geom.Point3) (*Result, error) {
	if len(fixed) != len(moving) {
		return nil, fmt.Errorf("register: %d fixed points for %d moving points", len(fixed), len(moving))
	}
	if len(fixed) < MinPoints {
		return nil, fmt.Errorf("register: need at least %d point pairs, got %d", MinPoints, len(fixed))
	}

	cf := centroid(fixed)
	cm := centroid(moving)

	// Cross-covariance of the centered sets.
	h := mat.NewDense(3, 3, nil)
	for i := range fixed {
		m := moving[i].Sub(cm).Array()
		f := fixed[i].Sub(cf).Array()
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+m[r]*f[c])
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return nil, fmt.Errorf("register: SVD did not converge")
	}
	values := svd.Values(nil)
	if values[0] < geom.Epsilon || values[1] < 1e-9*values[0] {
		return nil, fmt.Errorf("register: points are coincident or collinear")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}

	// R = V · diag(1, 1, d) · Uᵀ
	corr := mat.NewDiagDense(3, []float64{1, 1, d})
	var vc, r mat.Dense
	vc.Mul(&v, corr)
	r.Mul(&vc, u.T())

	var rot geom.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot[i][j] = r.At(i, j)
		}
	}
	t := cf.Vec().Sub(rot.MulVec(cm.Vec()))
	res := &Result{Transform: geom.Homogeneous(rot, t)}

	var sum float64
	for i := range fixed {
		e := res.Apply(moving[i]).Distance(fixed[i])
		sum += e * e
	}
	res.RMS = math.Sqrt(sum / float64(len(fixed)))
	return res, nil
}

func centroid(pts []geom.Point3) geom.Point3 {
	var s geom.Vec3
	for _, p := range pts {
		s = s.Add(p.Vec())
	}
	s = s.Scale(1 / float64(len(pts)))
	return geom.Point3{X: s.X, Y: s.Y, Z: s.Z}
}
