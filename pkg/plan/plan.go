// Package plan holds a treatment plan: the landmarks that define probe
// trajectories, the probe and tumor geometry, margin band thresholds and
// the fiducials used for registration.
package plan

import (
	"fmt"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/trajectory"
)

// ProbeSpec describes the ablation probe template. The probe is a
// cylinder whose canonical pose starts at the origin and runs Length
// along Axis.
type ProbeSpec struct {
	Name   string    `json:"name"`
	Length float64   `json:"length"`
	Radius float64   `json:"radius"`
	Round  float64   `json:"round"`
	Axis   geom.Vec3 `json:"axis"`
}

// TumorShape selects the tumor primitive.
type TumorShape int

const (
	TumorSphere TumorShape = iota
	TumorBox
)

func (s TumorShape) String() string {
	switch s {
	case TumorSphere:
		return "sphere"
	case TumorBox:
		return "box"
	default:
		return fmt.Sprintf("TumorShape(%d)", int(s))
	}
}

// TumorSpec describes the target solid.
type TumorSpec struct {
	Name   string      `json:"name"`
	Shape  TumorShape  `json:"shape"`
	Center geom.Point3 `json:"center"`
	// Radius is used by TumorSphere.
	Radius float64 `json:"radius,omitempty"`
	// Size is the full edge lengths of a TumorBox.
	Size geom.Vec3 `json:"size,omitempty"`
}

// Plan is the output of evaluating a plan script.
type Plan struct {
	// Landmarks are consumed in entry/target pairs.
	Landmarks []geom.Point3 `json:"landmarks"`
	// Probe is nil when the script leaves the probe to configuration.
	Probe *ProbeSpec `json:"probe,omitempty"`
	Tumor *TumorSpec `json:"tumor,omitempty"`
	// Thresholds are the ascending band boundaries, nil for none.
	Thresholds []float64 `json:"thresholds,omitempty"`

	NativeFiducials []geom.Point3 `json:"nativeFiducials,omitempty"`
	TableFiducials  []geom.Point3 `json:"tableFiducials,omitempty"`
}

// New returns an empty plan.
func New() *Plan {
	return &Plan{}
}

// AddLandmark appends one landmark.
func (p *Plan) AddLandmark(pt geom.Point3) {
	p.Landmarks = append(p.Landmarks, pt)
}

// AddTrajectory appends an entry/target landmark pair.
func (p *Plan) AddTrajectory(entry, target geom.Point3) {
	p.Landmarks = append(p.Landmarks, entry, target)
}

// Trajectories pairs the landmarks.
func (p *Plan) Trajectories() ([]trajectory.Trajectory, error) {
	return trajectory.Extract(p.Landmarks)
}

// HasFiducials reports whether either fiducial set was given.
func (p *Plan) HasFiducials() bool {
	return len(p.NativeFiducials) > 0 || len(p.TableFiducials) > 0
}
