// Package trajectory turns an ordered landmark list into probe insertion
// trajectories. Landmarks are consumed in pairs: the first of each pair is
// the entry point, the second the target.
package trajectory

import (
	"fmt"

	"github.com/chazu/ablation/pkg/geom"
)

// Trajectory is a straight insertion path from Entry to Target. It is a
// value: when landmarks move, a new Trajectory replaces the old one.
type Trajectory struct {
	Entry  geom.Point3 `json:"entry"`
	Target geom.Point3 `json:"target"`
}

// Direction returns Target - Entry.
func (t Trajectory) Direction() geom.Vec3 {
	return t.Target.Sub(t.Entry)
}

// Anchor returns the point the probe's canonical origin is moved to.
func (t Trajectory) Anchor() geom.Point3 {
	return t.Entry
}

// Length returns the entry-to-target distance.
func (t Trajectory) Length() float64 {
	return t.Direction().Norm()
}

// UnitDirection returns the normalized direction, or a
// *geom.DegenerateVectorError when entry and target coincide.
func (t Trajectory) UnitDirection() (geom.UnitVec3, error) {
	return geom.Normalize(t.Direction())
}

func (t Trajectory) String() string {
	return fmt.Sprintf("%s -> %s", t.Entry, t.Target)
}

// OddLandmarkCountError is returned by Extract when landmarks cannot be
// paired. It is a validation error; callers may ask for more points.
type OddLandmarkCountError struct {
	Count int
}

func (e *OddLandmarkCountError) Error() string {
	return fmt.Sprintf("odd number of landmarks (%d): landmarks must be given as entry/target pairs", e.Count)
}

// Extract pairs landmarks (2i, 2i+1) into trajectory i. An empty input
// yields no trajectories.
func Extract(landmarks []geom.Point3) ([]Trajectory, error) {
	if len(landmarks)%2 != 0 {
		return nil, &OddLandmarkCountError{Count: len(landmarks)}
	}

	out := make([]Trajectory, 0, len(landmarks)/2)
	for i := 0; i < len(landmarks); i += 2 {
		out = append(out, Trajectory{
			Entry:  landmarks[i],
			Target: landmarks[i+1],
		})
	}
	return out, nil
}

// Equal reports whether two trajectory lists are identical point for point.
func Equal(a, b []Trajectory) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
