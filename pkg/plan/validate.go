package plan

import (
	"fmt"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/register"
)

// ValidationSeverity indicates whether a finding blocks planning or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks planning
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Field    string             // plan section: "landmarks", "probe", ...
	Index    int                // element index within Field, -1 if none
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s[%d]: %s", e.Severity, e.Field, e.Index, e.Message)
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether there are no blocking errors.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate checks p against the probe it will be planned with. probe is the
// effective probe (the plan's own, or the configured default). Validate
// never mutates the plan.
func Validate(p *Plan, probe ProbeSpec) ValidationResult {
	var findings []ValidationError
	findings = append(findings, validateLandmarks(p, probe)...)
	findings = append(findings, validateProbe(probe)...)
	findings = append(findings, validateTumor(p.Tumor)...)
	findings = append(findings, validateThresholds(p.Thresholds)...)
	findings = append(findings, validateFiducials(p)...)

	var res ValidationResult
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			res.Warnings = append(res.Warnings, f)
		} else {
			res.Errors = append(res.Errors, f)
		}
	}
	return res
}

func validateLandmarks(p *Plan, probe ProbeSpec) []ValidationError {
	var out []ValidationError
	if len(p.Landmarks) == 0 {
		return []ValidationError{{
			Field:    "landmarks",
			Index:    -1,
			Message:  "no landmarks; nothing will be placed",
			Severity: SeverityWarning,
		}}
	}
	if len(p.Landmarks)%2 != 0 {
		return []ValidationError{{
			Field:    "landmarks",
			Index:    -1,
			Message:  fmt.Sprintf("odd number of landmarks (%d); landmarks pair as entry/target", len(p.Landmarks)),
			Severity: SeverityError,
		}}
	}

	trs, _ := p.Trajectories()
	for i, t := range trs {
		l := t.Length()
		if l < geom.Epsilon {
			out = append(out, ValidationError{
				Field:    "trajectory",
				Index:    i,
				Message:  fmt.Sprintf("entry %s equals target", t.Entry),
				Severity: SeverityError,
			})
			continue
		}
		if probe.Length > 0 && l > probe.Length {
			out = append(out, ValidationError{
				Field:    "trajectory",
				Index:    i,
				Message:  fmt.Sprintf("path is %.1f mm but the probe is %.1f mm; the tip stops short of the target", l, probe.Length),
				Severity: SeverityWarning,
			})
		}
	}
	return out
}

func validateProbe(probe ProbeSpec) []ValidationError {
	var out []ValidationError
	add := func(msg string) {
		out = append(out, ValidationError{Field: "probe", Index: -1, Message: msg, Severity: SeverityError})
	}
	if probe.Length <= 0 {
		add(fmt.Sprintf("length is %.4f, must be positive", probe.Length))
	}
	if probe.Radius <= 0 {
		add(fmt.Sprintf("radius is %.4f, must be positive", probe.Radius))
	}
	if probe.Round < 0 || probe.Round > probe.Radius {
		add(fmt.Sprintf("round is %.4f, must be between 0 and the radius", probe.Round))
	}
	if probe.Axis.Norm() < geom.Epsilon {
		add("canonical axis has zero length")
	}
	return out
}

func validateTumor(t *TumorSpec) []ValidationError {
	if t == nil {
		return []ValidationError{{
			Field:    "tumor",
			Index:    -1,
			Message:  "no tumor; margins cannot be evaluated",
			Severity: SeverityWarning,
		}}
	}
	bad := func(msg string) []ValidationError {
		return []ValidationError{{Field: "tumor", Index: -1, Message: msg, Severity: SeverityError}}
	}
	switch t.Shape {
	case TumorSphere:
		if t.Radius <= 0 {
			return bad(fmt.Sprintf("sphere radius is %.4f, must be positive", t.Radius))
		}
	case TumorBox:
		if t.Size.X <= 0 || t.Size.Y <= 0 || t.Size.Z <= 0 {
			return bad(fmt.Sprintf("box size %s must be positive on every axis", t.Size))
		}
	default:
		return bad(fmt.Sprintf("unknown shape %s", t.Shape))
	}
	return nil
}

func validateThresholds(th []float64) []ValidationError {
	for i := 1; i < len(th); i++ {
		if th[i] <= th[i-1] {
			return []ValidationError{{
				Field:    "bands",
				Index:    i,
				Message:  fmt.Sprintf("threshold %g does not exceed %g; thresholds must ascend", th[i], th[i-1]),
				Severity: SeverityError,
			}}
		}
	}
	return nil
}

func validateFiducials(p *Plan) []ValidationError {
	if !p.HasFiducials() {
		return nil
	}
	n, t := len(p.NativeFiducials), len(p.TableFiducials)
	if n != t {
		return []ValidationError{{
			Field:    "fiducials",
			Index:    -1,
			Message:  fmt.Sprintf("%d native fiducials for %d table fiducials", n, t),
			Severity: SeverityError,
		}}
	}
	if n < register.MinPoints {
		return []ValidationError{{
			Field:    "fiducials",
			Index:    -1,
			Message:  fmt.Sprintf("%d fiducial pairs; registration needs at least %d", n, register.MinPoints),
			Severity: SeverityError,
		}}
	}
	return nil
}
