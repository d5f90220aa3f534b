package plan

import (
	"strings"
	"testing"

	"github.com/chazu/ablation/pkg/geom"
)

func pt(x, y, z float64) geom.Point3 {
	return geom.Point3{X: x, Y: y, Z: z}
}

func defaultProbe() ProbeSpec {
	return ProbeSpec{Name: "probe", Length: 30, Radius: 2.5, Axis: geom.Vec3{Z: -1}}
}

func validPlan() *Plan {
	p := New()
	p.AddTrajectory(pt(0, 0, 0), pt(0, 0, -20))
	p.AddTrajectory(pt(10, 0, 0), pt(10, 0, -20))
	p.Tumor = &TumorSpec{Name: "tumor", Shape: TumorSphere, Center: pt(5, 0, -15), Radius: 8}
	p.Thresholds = []float64{-10, -5, -2}
	return p
}

// hasFinding reports whether any finding mentions substr.
func hasFinding(findings []ValidationError, substr string) bool {
	for _, f := range findings {
		if strings.Contains(f.Error(), substr) {
			return true
		}
	}
	return false
}

func TestValidateValidPlan(t *testing.T) {
	res := Validate(validPlan(), defaultProbe())
	if !res.OK() {
		t.Fatalf("expected no errors, got %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", res.Warnings)
	}
}

func TestValidateFindings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *Plan, probe *ProbeSpec)
		wantErr  string
		wantWarn string
	}{
		{
			name:    "odd landmarks",
			mutate:  func(p *Plan, _ *ProbeSpec) { p.AddLandmark(pt(1, 2, 3)) },
			wantErr: "odd number of landmarks (5)",
		},
		{
			name:    "degenerate trajectory",
			mutate:  func(p *Plan, _ *ProbeSpec) { p.AddTrajectory(pt(4, 4, 4), pt(4, 4, 4)) },
			wantErr: "trajectory[2]: entry",
		},
		{
			name:     "trajectory longer than probe",
			mutate:   func(p *Plan, _ *ProbeSpec) { p.AddTrajectory(pt(0, 0, 0), pt(0, 0, -50)) },
			wantWarn: "stops short",
		},
		{
			name:     "no landmarks",
			mutate:   func(p *Plan, _ *ProbeSpec) { p.Landmarks = nil },
			wantWarn: "no landmarks",
		},
		{
			name:    "zero probe length",
			mutate:  func(_ *Plan, pr *ProbeSpec) { pr.Length = 0 },
			wantErr: "length is 0.0000",
		},
		{
			name:    "negative radius",
			mutate:  func(_ *Plan, pr *ProbeSpec) { pr.Radius = -1 },
			wantErr: "radius is -1.0000",
		},
		{
			name:    "zero axis",
			mutate:  func(_ *Plan, pr *ProbeSpec) { pr.Axis = geom.Vec3{} },
			wantErr: "zero length",
		},
		{
			name:     "no tumor",
			mutate:   func(p *Plan, _ *ProbeSpec) { p.Tumor = nil },
			wantWarn: "margins cannot be evaluated",
		},
		{
			name:    "bad sphere",
			mutate:  func(p *Plan, _ *ProbeSpec) { p.Tumor.Radius = 0 },
			wantErr: "sphere radius",
		},
		{
			name: "flat box",
			mutate: func(p *Plan, _ *ProbeSpec) {
				p.Tumor = &TumorSpec{Shape: TumorBox, Size: geom.Vec3{X: 10, Y: 10}}
			},
			wantErr: "must be positive on every axis",
		},
		{
			name:    "descending bands",
			mutate:  func(p *Plan, _ *ProbeSpec) { p.Thresholds = []float64{-2, -5} },
			wantErr: "bands[1]",
		},
		{
			name: "fiducial count mismatch",
			mutate: func(p *Plan, _ *ProbeSpec) {
				p.NativeFiducials = []geom.Point3{pt(0, 0, 0), pt(1, 0, 0), pt(0, 1, 0)}
				p.TableFiducials = []geom.Point3{pt(0, 0, 0)}
			},
			wantErr: "3 native fiducials for 1 table",
		},
		{
			name: "too few fiducials",
			mutate: func(p *Plan, _ *ProbeSpec) {
				p.NativeFiducials = []geom.Point3{pt(0, 0, 0), pt(1, 0, 0)}
				p.TableFiducials = []geom.Point3{pt(0, 0, 0), pt(1, 0, 0)}
			},
			wantErr: "needs at least 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			probe := defaultProbe()
			tt.mutate(p, &probe)
			res := Validate(p, probe)

			if tt.wantErr != "" && !hasFinding(res.Errors, tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, res.Errors)
			}
			if tt.wantErr == "" && !res.OK() {
				t.Errorf("unexpected errors: %v", res.Errors)
			}
			if tt.wantWarn != "" && !hasFinding(res.Warnings, tt.wantWarn) {
				t.Errorf("expected warning containing %q, got %v", tt.wantWarn, res.Warnings)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	p := validPlan()
	p.AddLandmark(pt(9, 9, 9))
	before := len(p.Landmarks)
	_ = Validate(p, defaultProbe())
	if len(p.Landmarks) != before {
		t.Error("Validate changed the landmark list")
	}
}

func TestTrajectories(t *testing.T) {
	p := validPlan()
	trs, err := p.Trajectories()
	if err != nil {
		t.Fatalf("Trajectories: %v", err)
	}
	if len(trs) != 2 {
		t.Fatalf("expected 2 trajectories, got %d", len(trs))
	}
	if trs[1].Entry != pt(10, 0, 0) || trs[1].Target != pt(10, 0, -20) {
		t.Errorf("trajectory 1 = %v", trs[1])
	}
}

func TestSeverityString(t *testing.T) {
	if SeverityError.String() != "error" || SeverityWarning.String() != "warning" {
		t.Error("unexpected severity names")
	}
	if got := ValidationSeverity(7).String(); got != "ValidationSeverity(7)" {
		t.Errorf("got %q", got)
	}
}
