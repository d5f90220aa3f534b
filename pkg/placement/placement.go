// Package placement moves probe instances from their canonical pose onto
// their trajectories.
package placement

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/probe"
	"github.com/chazu/ablation/pkg/store"
	"github.com/chazu/ablation/pkg/trajectory"
)

// DegenerateTrajectoryError reports a trajectory whose entry and target
// coincide, so it has no direction.
type DegenerateTrajectoryError struct {
	Index      int
	Trajectory trajectory.Trajectory
}

func (e *DegenerateTrajectoryError) Error() string {
	return fmt.Sprintf("trajectory %d is degenerate: entry %s equals target", e.Index, e.Trajectory.Entry)
}

// Error wraps a store failure with the instance index it happened at.
type Error struct {
	Index int
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("placement of instance %d: %s: %v", e.Index, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transform returns the homogeneous transform taking a probe from its
// canonical pose (tip at the origin, pointing along axis) onto t: rotation
// aligning axis with t's direction, translation to t's anchor.
func Transform(t trajectory.Trajectory, axis geom.UnitVec3) (geom.Mat4, error) {
	dir, err := t.UnitDirection()
	if err != nil {
		return geom.Mat4{}, err
	}
	rot := geom.AlignmentRotation(axis, dir)
	return geom.Homogeneous(rot, t.Anchor().Vec()), nil
}

// Engine applies placement transforms through a solid store.
type Engine struct {
	store  store.Store
	logger *log.Logger
}

// NewEngine returns an engine mutating st.
func NewEngine(st store.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{store: st, logger: logger}
}

// PlaceAll places instances[i] on trajectories[i], in order. Each placement
// starts from the canonical pose, so placing twice with the same trajectory
// gives the same result.
//
// Placement stops at the first failure. Instances before the failing index
// keep their new pose and instances after it are untouched; the returned
// error carries the index (*DegenerateTrajectoryError or *Error).
func (e *Engine) PlaceAll(instances []probe.Instance, trajectories []trajectory.Trajectory, axis geom.UnitVec3) error {
	if len(instances) != len(trajectories) {
		return fmt.Errorf("placement: %d instances for %d trajectories", len(instances), len(trajectories))
	}
	if !axis.Valid() {
		return fmt.Errorf("placement: canonical axis is not a unit vector")
	}

	for i, inst := range instances {
		if err := e.place(i, inst, trajectories[i], axis); err != nil {
			e.logger.Warn("placement aborted", "index", i, "placed", i, "remaining", len(instances)-i, "err", err)
			return err
		}
	}
	e.logger.Debug("placed probe instances", "count", len(instances))
	return nil
}

func (e *Engine) place(i int, inst probe.Instance, t trajectory.Trajectory, axis geom.UnitVec3) error {
	m, err := Transform(t, axis)
	if err != nil {
		return &DegenerateTrajectoryError{Index: i, Trajectory: t}
	}

	if err := e.store.ResetPose(inst.Handle); err != nil {
		return &Error{Index: i, Op: "reset pose", Err: err}
	}
	if err := e.store.ApplyTransform(inst.Handle, m); err != nil {
		return &Error{Index: i, Op: "apply transform", Err: err}
	}
	if err := e.store.HardenTransform(inst.Handle); err != nil {
		return &Error{Index: i, Op: "harden transform", Err: err}
	}

	e.logger.Debug("placed probe", "name", inst.Name, "entry", t.Entry, "target", t.Target)
	return nil
}
