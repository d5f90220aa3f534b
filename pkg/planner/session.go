// Package planner runs the probe placement pipeline for one planning
// session: plan script to trajectories, probe instances, placement, the
// combined ablation zone and margin evaluation against the tumor.
//
// A Session owns every pipeline intermediate. Nothing is kept in package
// state, and stages run sequentially on the caller's goroutine.
package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/chazu/ablation/pkg/combine"
	"github.com/chazu/ablation/pkg/config"
	"github.com/chazu/ablation/pkg/engine"
	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/kernel"
	"github.com/chazu/ablation/pkg/margin"
	"github.com/chazu/ablation/pkg/placement"
	"github.com/chazu/ablation/pkg/plan"
	"github.com/chazu/ablation/pkg/probe"
	"github.com/chazu/ablation/pkg/register"
	"github.com/chazu/ablation/pkg/store"
	"github.com/chazu/ablation/pkg/tessellate"
	"github.com/chazu/ablation/pkg/trajectory"
)

// ErrNoResult is returned by banding calls made before EvaluateMargins.
var ErrNoResult = errors.New("planner: no margin result; evaluate margins first")

// ErrNoTumor is returned by RegisterTumor when no tumor is loaded.
var ErrNoTumor = errors.New("planner: no tumor loaded")

// ScriptError wraps the evaluation errors of a plan script.
type ScriptError struct {
	Errors []engine.EvalError
}

func (e *ScriptError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ee := range e.Errors {
		msgs[i] = ee.Error()
	}
	return "plan script: " + strings.Join(msgs, "; ")
}

// InvalidPlanError is returned when a plan fails validation.
type InvalidPlanError struct {
	Result plan.ValidationResult
}

func (e *InvalidPlanError) Error() string {
	msgs := make([]string, len(e.Result.Errors))
	for i, ve := range e.Result.Errors {
		msgs[i] = ve.Error()
	}
	return "invalid plan: " + strings.Join(msgs, "; ")
}

// Session is one planning session.
type Session struct {
	cfg    *config.Config
	k      kernel.Kernel
	st     *store.Memory
	logger *log.Logger

	engine    *engine.Engine
	manager   *probe.Manager
	placer    *placement.Engine
	combiner  *combine.Combiner
	evaluator *margin.Evaluator

	probe    plan.ProbeSpec
	axis     geom.UnitVec3
	template store.Handle

	landmarks    []geom.Point3
	trajectories []trajectory.Trajectory

	combined      *combine.CombinedSolid
	combinedFrom  []trajectory.Trajectory
	combinedProbe plan.ProbeSpec

	tumor        store.Handle
	registration *register.Result

	thresholds []float64
	result     *margin.Result
	snapshot   *margin.Snapshot
}

// NewSession returns a session whose probe template comes from cfg. A nil
// cfg selects config.Default().
func NewSession(k kernel.Kernel, cfg *config.Config, logger *log.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Default()
	}
	st := store.NewMemory(k, cfg.Voxel.Spacing)
	s := &Session{
		cfg:        cfg,
		k:          k,
		st:         st,
		logger:     logger,
		engine:     engine.NewEngine(engine.WithTimeout(cfg.Engine.Timeout)),
		manager:    probe.NewManager(st, logger),
		placer:     placement.NewEngine(st, logger),
		combiner:   combine.NewCombiner(st, st, logger),
		evaluator:  margin.NewEvaluator(st, k, cfg.Voxel.Spacing, logger),
		thresholds: append([]float64(nil), cfg.Margin.Thresholds...),
	}
	if err := s.SetProbe(s.probeFromConfig(nil)); err != nil {
		return nil, err
	}
	return s, nil
}

// probeFromConfig fills the zero fields of p from the configured probe.
func (s *Session) probeFromConfig(p *plan.ProbeSpec) plan.ProbeSpec {
	c := s.cfg.Probe
	out := plan.ProbeSpec{Name: c.Name, Length: c.Length, Radius: c.Radius, Round: c.Round, Axis: c.AxisVec()}
	if p == nil {
		return out
	}
	if p.Name != "" {
		out.Name = p.Name
	}
	if p.Length != 0 {
		out.Length = p.Length
	}
	if p.Radius != 0 {
		out.Radius = p.Radius
	}
	if p.Round != 0 {
		out.Round = p.Round
	}
	if !p.Axis.IsZero() {
		out.Axis = p.Axis
	}
	return out
}

// Store returns the session's solid store.
func (s *Session) Store() store.Store { return s.st }

// Probe returns the probe template in use.
func (s *Session) Probe() plan.ProbeSpec { return s.probe }

// Template returns the handle of the hidden probe template.
func (s *Session) Template() store.Handle { return s.template }

// Trajectories returns the current trajectories.
func (s *Session) Trajectories() []trajectory.Trajectory {
	return append([]trajectory.Trajectory(nil), s.trajectories...)
}

// Instances returns the current probe instances.
func (s *Session) Instances() []probe.Instance { return s.manager.Instances() }

// Combined returns the latest combination, or nil.
func (s *Session) Combined() *combine.CombinedSolid { return s.combined }

// Tumor returns the tumor handle, zero when none is loaded.
func (s *Session) Tumor() store.Handle { return s.tumor }

// Registration returns the last fiducial registration, or nil.
func (s *Session) Registration() *register.Result { return s.registration }

// Result returns the last margin evaluation, or nil.
func (s *Session) Result() *margin.Result { return s.result }

// Thresholds returns the band thresholds in use.
func (s *Session) Thresholds() []float64 {
	return append([]float64(nil), s.thresholds...)
}

// LoadPlan evaluates a plan script and replaces the session's probe,
// tumor, thresholds and landmarks with it. Fiducials, when present,
// register the tumor into table space. Validation warnings are returned
// alongside a nil error; validation errors leave the session untouched.
func (s *Session) LoadPlan(source string) (plan.ValidationResult, error) {
	p, evalErrs, err := s.engine.Evaluate(source)
	if err != nil {
		return plan.ValidationResult{}, fmt.Errorf("plan script: %w", err)
	}
	if len(evalErrs) > 0 {
		return plan.ValidationResult{}, &ScriptError{Errors: evalErrs}
	}
	return s.Apply(p)
}

// Apply validates p and replaces the session state with it.
func (s *Session) Apply(p *plan.Plan) (plan.ValidationResult, error) {
	probeSpec := s.probeFromConfig(p.Probe)
	vr := plan.Validate(p, probeSpec)
	if !vr.OK() {
		return vr, &InvalidPlanError{Result: vr}
	}
	for _, w := range vr.Warnings {
		s.logger.Warn("plan", "warning", w.Error())
	}

	s.clearCombination()
	if err := s.removeTumor(); err != nil {
		return vr, err
	}
	if err := s.setTemplate(probeSpec); err != nil {
		return vr, err
	}
	if p.Thresholds != nil {
		s.thresholds = append([]float64(nil), p.Thresholds...)
	}
	if p.Tumor != nil {
		if _, err := s.SetTumor(*p.Tumor); err != nil {
			return vr, err
		}
		if p.HasFiducials() {
			if _, err := s.RegisterTumor(p.NativeFiducials, p.TableFiducials); err != nil {
				return vr, err
			}
		}
	}
	if err := s.SetLandmarks(p.Landmarks); err != nil {
		return vr, err
	}
	s.logger.Info("loaded plan", "trajectories", len(s.trajectories), "probe", s.probe.Name)
	return vr, nil
}

// SetProbe replaces the probe template and re-places the current
// trajectories with the new probe. An existing combination is rebuilt or
// goes stale as in SetLandmarks.
func (s *Session) SetProbe(spec plan.ProbeSpec) error {
	if err := s.setTemplate(spec); err != nil {
		return err
	}
	if len(s.landmarks) == 0 {
		if s.Stale() {
			s.logger.Warn("combined ablation zone is stale", "generation", s.combined.Generation)
		}
		return nil
	}
	return s.SetLandmarks(s.landmarks)
}

func (s *Session) setTemplate(spec plan.ProbeSpec) error {
	solid, axis, err := ProbeSolid(s.k, spec)
	if err != nil {
		return err
	}
	// Instances are copies of the template; they go before it does.
	if err := s.manager.DiscardAll(); err != nil {
		return err
	}
	if !s.template.IsZero() {
		if err := s.st.Remove(s.template); err != nil {
			return fmt.Errorf("planner: remove probe template: %w", err)
		}
	}
	s.template = s.st.Add(spec.Name, solid)
	if err := s.st.SetVisible(s.template, false); err != nil {
		return err
	}
	s.probe = spec
	s.axis = axis
	s.logger.Debug("probe template", "name", spec.Name, "length", spec.Length, "radius", spec.Radius, "axis", axis)
	return nil
}

// ProbeSolid builds the probe template: a cylinder starting at the origin
// and running spec.Length along spec.Axis.
func ProbeSolid(k kernel.Kernel, spec plan.ProbeSpec) (kernel.Solid, geom.UnitVec3, error) {
	if spec.Length <= 0 || spec.Radius <= 0 {
		return nil, geom.UnitVec3{}, fmt.Errorf("planner: probe %q needs positive length and radius", spec.Name)
	}
	axis, err := geom.Normalize(spec.Axis)
	if err != nil {
		return nil, geom.UnitVec3{}, fmt.Errorf("planner: probe axis: %w", err)
	}
	// The kernel cylinder is centered on the origin along +Z.
	m := geom.Homogeneous(geom.AlignmentRotation(geom.AxisZ, axis), axis.Vec().Scale(spec.Length/2))
	return k.Transform(k.Cylinder(spec.Length, spec.Radius, spec.Round), m), axis, nil
}

// SetLandmarks recomputes the trajectories from pts, replaces the probe
// instances and places one per trajectory. An odd landmark count leaves the
// session unchanged. A placement failure keeps the placements made before
// the failing index.
//
// With auto_recombine set, an existing combination is rebuilt afterwards;
// otherwise it goes stale until Combine is called again.
func (s *Session) SetLandmarks(pts []geom.Point3) error {
	trs, err := trajectory.Extract(pts)
	if err != nil {
		return err
	}

	instances, err := s.manager.CreateInstances(len(trs), s.template)
	if err != nil {
		return err
	}
	s.landmarks = append([]geom.Point3(nil), pts...)
	s.trajectories = trs

	if err := s.placer.PlaceAll(instances, trs, s.axis); err != nil {
		return err
	}
	s.logger.Info("placed probes", "count", len(instances))

	if s.combined != nil {
		if s.cfg.Planner.AutoRecombine && len(instances) > 0 {
			_, err := s.Combine()
			return err
		}
		if s.Stale() {
			s.logger.Warn("combined ablation zone is stale", "generation", s.combined.Generation)
		}
	}
	return nil
}

// Combine unions the current probe instances into a new ablation zone,
// replacing any earlier combination.
func (s *Session) Combine() (*combine.CombinedSolid, error) {
	cs, err := s.combiner.Combine(s.manager.Instances())
	if err != nil {
		return nil, err
	}
	s.clearCombination()
	s.combined = cs
	s.combinedFrom = append([]trajectory.Trajectory(nil), s.trajectories...)
	s.combinedProbe = s.probe
	s.manager.MarkConsumed()
	return cs, nil
}

// clearCombination removes the current combination and everything derived
// from it.
func (s *Session) clearCombination() {
	if s.combined != nil {
		if err := s.st.Remove(s.combined.Handle); err != nil {
			s.logger.Warn("could not remove previous combination", "err", err)
		}
	}
	s.combined = nil
	s.combinedFrom = nil
	s.combinedProbe = plan.ProbeSpec{}
	s.clearResult()
}

func (s *Session) clearResult() {
	s.result = nil
	s.snapshot = nil
}

// Stale reports whether the trajectories or the probe changed after the
// last Combine.
func (s *Session) Stale() bool {
	if s.combined == nil {
		return false
	}
	return s.combinedProbe != s.probe || !trajectory.Equal(s.combinedFrom, s.trajectories)
}

// SetTumor builds the tumor solid and replaces any loaded tumor.
func (s *Session) SetTumor(spec plan.TumorSpec) (store.Handle, error) {
	solid, err := TumorSolid(s.k, spec)
	if err != nil {
		return "", err
	}
	if err := s.removeTumor(); err != nil {
		return "", err
	}
	s.tumor = s.st.Add(spec.Name, solid)
	s.logger.Debug("tumor", "name", spec.Name, "shape", spec.Shape, "center", spec.Center)
	return s.tumor, nil
}

func (s *Session) removeTumor() error {
	if s.tumor.IsZero() {
		return nil
	}
	if err := s.st.Remove(s.tumor); err != nil {
		return fmt.Errorf("planner: remove tumor: %w", err)
	}
	s.tumor = ""
	s.registration = nil
	s.clearResult()
	return nil
}

// TumorSolid builds the tumor primitive at its center.
func TumorSolid(k kernel.Kernel, spec plan.TumorSpec) (kernel.Solid, error) {
	var solid kernel.Solid
	switch spec.Shape {
	case plan.TumorSphere:
		if spec.Radius <= 0 {
			return nil, fmt.Errorf("planner: tumor sphere radius must be positive, got %g", spec.Radius)
		}
		solid = k.Sphere(spec.Radius)
	case plan.TumorBox:
		if spec.Size.X <= 0 || spec.Size.Y <= 0 || spec.Size.Z <= 0 {
			return nil, fmt.Errorf("planner: tumor box size must be positive, got %s", spec.Size)
		}
		solid = k.Box(spec.Size.X, spec.Size.Y, spec.Size.Z)
	default:
		return nil, fmt.Errorf("planner: unknown tumor shape %s", spec.Shape)
	}
	c := spec.Center
	return k.Translate(solid, c.X, c.Y, c.Z), nil
}

// RegisterTumor fits the rigid transform taking the native fiducials onto
// the table fiducials and moves the tumor with it. The tumor is reset to
// its loaded pose first, so registering again replaces the earlier fit.
func (s *Session) RegisterTumor(native, table []geom.Point3) (*register.Result, error) {
	if s.tumor.IsZero() {
		return nil, ErrNoTumor
	}
	res, err := register.Rigid(table, native)
	if err != nil {
		return nil, err
	}
	if err := s.st.ResetPose(s.tumor); err != nil {
		return nil, err
	}
	if err := s.st.ApplyTransform(s.tumor, res.Transform); err != nil {
		return nil, err
	}
	if err := s.st.HardenTransform(s.tumor); err != nil {
		return nil, err
	}
	s.registration = res
	s.clearResult()
	s.logger.Info("registered tumor", "fiducials", len(native), "rms", res.RMS)
	return res, nil
}

// EvaluateMargins measures the combined zone against the tumor and keeps
// an undo snapshot of the signed distances for banding.
func (s *Session) EvaluateMargins() (*margin.Result, error) {
	var zone store.Handle
	if s.combined != nil {
		zone = s.combined.Handle
	}
	if s.Stale() {
		s.logger.Warn("evaluating a stale ablation zone; combine again to include landmark or probe edits")
	}
	res, err := s.evaluator.Evaluate(zone, s.tumor)
	if err != nil {
		return nil, err
	}
	snap, err := margin.TakeSnapshot(res.Field)
	if err != nil {
		return nil, err
	}
	s.result = res
	s.snapshot = snap
	return res, nil
}

// Band replaces the signed distances with band indices and returns the
// point count per band. Nil thresholds select the session thresholds.
// Banding an already banded field starts from the original distances.
func (s *Session) Band(thresholds []float64) ([]int, error) {
	if s.result == nil {
		return nil, ErrNoResult
	}
	if thresholds == nil {
		thresholds = s.thresholds
	}
	if err := margin.ValidateThresholds(thresholds); err != nil {
		return nil, err
	}
	if err := margin.Restore(s.result.Field, s.snapshot); err != nil {
		return nil, err
	}
	if err := margin.Band(s.result.Field, thresholds); err != nil {
		return nil, err
	}
	return margin.Histogram(s.snapshot.Values, thresholds), nil
}

// RestoreBands puts the original signed distances back.
func (s *Session) RestoreBands() error {
	if s.result == nil {
		return ErrNoResult
	}
	return margin.Restore(s.result.Field, s.snapshot)
}

// Meshes tessellates every visible solid: the tumor, the combined zone and
// any probe instances not yet combined.
func (s *Session) Meshes() ([]*kernel.Mesh, error) {
	meshes, err := tessellate.Tessellate(s.st, nil)
	if err != nil {
		return nil, err
	}
	return tessellate.NonEmpty(meshes), nil
}
