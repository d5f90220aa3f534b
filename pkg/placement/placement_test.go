package placement

import (
	"errors"
	"testing"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/kernel"
	"github.com/chazu/ablation/pkg/kernel/sdfx"
	"github.com/chazu/ablation/pkg/probe"
	"github.com/chazu/ablation/pkg/store"
	"github.com/chazu/ablation/pkg/trajectory"
)

const tol = 1e-6

func pt(x, y, z float64) geom.Point3 {
	return geom.Point3{X: x, Y: y, Z: z}
}

type fixture struct {
	k    kernel.Kernel
	st   *store.Memory
	mgr  *probe.Manager
	eng  *Engine
	tmpl store.Handle
}

// newFixture builds a 20 mm probe whose canonical pose runs from the origin
// down -Z.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	k := sdfx.New(sdfx.WithMeshCells(32))
	st := store.NewMemory(k, 1)
	tmpl := st.Add("probe", k.Translate(k.Cylinder(20, 1, 0), 0, 0, -10))
	return &fixture{k: k, st: st, mgr: probe.NewManager(st, nil), eng: NewEngine(st, nil), tmpl: tmpl}
}

func TestTransformMapsCanonicalOntoTrajectory(t *testing.T) {
	tr := trajectory.Trajectory{Entry: pt(10, 20, 30), Target: pt(10, 40, 30)}
	m, err := Transform(tr, geom.AxisNegZ)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got := m.MulPoint(geom.Point3{}); got != tr.Entry {
		t.Errorf("origin maps to %v, want entry %v", got, tr.Entry)
	}
	// A point 20 mm down the canonical axis lands on the target.
	if got := m.MulPoint(pt(0, 0, -20)); got.Distance(tr.Target) > tol {
		t.Errorf("canonical tip maps to %v, want target %v", got, tr.Target)
	}
	if !m.Rotation().IsRotation(tol) {
		t.Error("rotation block is not a proper rotation")
	}
}

func TestTransformDegenerate(t *testing.T) {
	tr := trajectory.Trajectory{Entry: pt(1, 1, 1), Target: pt(1, 1, 1)}
	if _, err := Transform(tr, geom.AxisNegZ); err == nil {
		t.Fatal("expected error for zero-length trajectory")
	}
}

func TestPlaceAll(t *testing.T) {
	f := newFixture(t)
	trs := []trajectory.Trajectory{
		{Entry: pt(0, 0, 0), Target: pt(0, 0, -10)},
		{Entry: pt(50, 0, 0), Target: pt(50, 0, 10)},
		{Entry: pt(0, 50, 0), Target: pt(10, 50, 0)},
	}
	insts, err := f.mgr.CreateInstances(len(trs), f.tmpl)
	if err != nil {
		t.Fatalf("CreateInstances: %v", err)
	}
	if err := f.eng.PlaceAll(insts, trs, geom.AxisNegZ); err != nil {
		t.Fatalf("PlaceAll: %v", err)
	}

	for i, inst := range insts {
		s, _ := f.st.Solid(inst.Handle)
		mid := trs[i].Entry.Add(trs[i].Direction())
		if d := f.k.SignedDistance(s, mid); d >= 0 {
			t.Errorf("instance %d: point %v on trajectory is outside the probe (%f)", i, mid, d)
		}
		pose, _ := f.st.Pose(inst.Handle)
		want, _ := Transform(trs[i], geom.AxisNegZ)
		if !pose.ApproxEqual(want, tol) {
			t.Errorf("instance %d pose = %v, want %v", i, pose, want)
		}
	}
}

func TestPlaceAllIsIdempotent(t *testing.T) {
	f := newFixture(t)
	trs := []trajectory.Trajectory{{Entry: pt(5, 5, 5), Target: pt(5, 15, 5)}}
	insts, _ := f.mgr.CreateInstances(1, f.tmpl)

	for i := 0; i < 3; i++ {
		if err := f.eng.PlaceAll(insts, trs, geom.AxisNegZ); err != nil {
			t.Fatalf("PlaceAll #%d: %v", i, err)
		}
	}
	pose, _ := f.st.Pose(insts[0].Handle)
	want, _ := Transform(trs[0], geom.AxisNegZ)
	if !pose.ApproxEqual(want, tol) {
		t.Errorf("pose after repeated placement = %v, want %v", pose, want)
	}
}

func TestPlaceAllDegenerateKeepsEarlierPlacements(t *testing.T) {
	f := newFixture(t)
	trs := []trajectory.Trajectory{
		{Entry: pt(0, 0, 0), Target: pt(0, 10, 0)},
		{Entry: pt(3, 3, 3), Target: pt(3, 3, 3)},
		{Entry: pt(20, 0, 0), Target: pt(20, 0, -10)},
	}
	insts, _ := f.mgr.CreateInstances(len(trs), f.tmpl)

	err := f.eng.PlaceAll(insts, trs, geom.AxisNegZ)
	var de *DegenerateTrajectoryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DegenerateTrajectoryError, got %v", err)
	}
	if de.Index != 1 {
		t.Errorf("failing index = %d, want 1", de.Index)
	}

	first, _ := f.st.Pose(insts[0].Handle)
	want, _ := Transform(trs[0], geom.AxisNegZ)
	if !first.ApproxEqual(want, tol) {
		t.Errorf("instance 0 lost its placement: %v", first)
	}
	for _, i := range []int{1, 2} {
		pose, _ := f.st.Pose(insts[i].Handle)
		if !pose.IsIdentity(0) {
			t.Errorf("instance %d was modified: %v", i, pose)
		}
	}
}

func TestPlaceAllLengthMismatch(t *testing.T) {
	f := newFixture(t)
	insts, _ := f.mgr.CreateInstances(2, f.tmpl)
	trs := []trajectory.Trajectory{{Entry: pt(0, 0, 0), Target: pt(1, 0, 0)}}
	if err := f.eng.PlaceAll(insts, trs, geom.AxisNegZ); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestPlaceAllMissingInstance(t *testing.T) {
	f := newFixture(t)
	insts := []probe.Instance{{Handle: store.NewHandle(), Name: "ghost"}}
	trs := []trajectory.Trajectory{{Entry: pt(0, 0, 0), Target: pt(1, 0, 0)}}

	err := f.eng.PlaceAll(insts, trs, geom.AxisNegZ)
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected placement Error, got %v", err)
	}
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected wrapped NotFoundError, got %v", err)
	}
}
