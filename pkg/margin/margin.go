// Package margin measures how far the ablation zone surface lies from the
// tumor surface, and bands the resulting distance field for display.
package margin

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chazu/ablation/pkg/kernel"
	"github.com/chazu/ablation/pkg/store"
	"github.com/chazu/ablation/pkg/surface"
)

// Roles reported by MissingSolidError.
const (
	RoleZone  = "ablation zone"
	RoleTumor = "tumor"
)

// MissingSolidError is returned when a solid needed for evaluation is not
// in the store.
type MissingSolidError struct {
	Role   string
	Handle store.Handle
}

func (e *MissingSolidError) Error() string {
	if e.Handle.IsZero() {
		return fmt.Sprintf("margin: no %s solid", e.Role)
	}
	return fmt.Sprintf("margin: %s solid %s not found", e.Role, e.Handle.Short())
}

// Summary holds order statistics of the signed distances.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P20    float64 `json:"p20"`
	P80    float64 `json:"p80"`
}

// Summarize computes the summary of values. Quantiles use the empirical
// CDF, so each one is an element of values.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, errors.New("margin: no distance values")
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P20:    stat.Quantile(0.2, stat.Empirical, sorted, nil),
		P80:    stat.Quantile(0.8, stat.Empirical, sorted, nil),
	}, nil
}

// Coverage describes how much of the tumor the zone encloses, estimated
// on the tumor's voxel lattice.
type Coverage struct {
	TumorVolume    float64 `json:"tumorVolume"`
	CoveredVolume  float64 `json:"coveredVolume"`
	ResidualVolume float64 `json:"residualVolume"`
	// Fraction is CoveredVolume / TumorVolume.
	Fraction float64 `json:"fraction"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Field    *surface.ScalarField `json:"field"`
	Summary  Summary              `json:"summary"`
	Coverage Coverage             `json:"coverage"`
	// AbsoluteRange is the [min, max] of the unsigned distances; its lower
	// end is the closest approach of the two surfaces.
	AbsoluteRange [2]float64 `json:"absoluteRange"`
}

// Signed returns the signed distance array of the field.
func (r *Result) Signed() []float64 {
	a, _ := r.Field.Array(surface.SignedArray)
	return a
}

// Evaluator computes margins between solids held in a store.
type Evaluator struct {
	store   store.Store
	k       kernel.Kernel
	spacing float64
	logger  *log.Logger
}

// NewEvaluator returns an evaluator. k must be the kernel st's solids were
// built with; spacing <= 0 selects store.DefaultVoxelSpacing.
func NewEvaluator(st store.Store, k kernel.Kernel, spacing float64, logger *log.Logger) *Evaluator {
	if spacing <= 0 {
		spacing = store.DefaultVoxelSpacing
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{store: st, k: k, spacing: spacing, logger: logger}
}

func (e *Evaluator) solid(role string, h store.Handle) (kernel.Solid, error) {
	if h.IsZero() {
		return nil, &MissingSolidError{Role: role}
	}
	s, err := e.store.Solid(h)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			return nil, &MissingSolidError{Role: role, Handle: h}
		}
		return nil, err
	}
	return s, nil
}

// Evaluate meshes the zone and the tumor, computes the signed distance
// from every zone surface point to the tumor surface (positive outside the
// tumor) and summarizes it. The ordering is fixed: zone points, tumor
// surface.
func (e *Evaluator) Evaluate(zone, tumor store.Handle) (*Result, error) {
	zs, err := e.solid(RoleZone, zone)
	if err != nil {
		return nil, err
	}
	ts, err := e.solid(RoleTumor, tumor)
	if err != nil {
		return nil, err
	}

	zoneMesh, err := store.Mesh(e.store, zone)
	if err != nil {
		return nil, fmt.Errorf("margin: mesh %s: %w", RoleZone, err)
	}
	tumorMesh, err := store.Mesh(e.store, tumor)
	if err != nil {
		return nil, fmt.Errorf("margin: mesh %s: %w", RoleTumor, err)
	}

	field, err := surface.SignedClosestPointDistance(zoneMesh, tumorMesh)
	if err != nil {
		return nil, fmt.Errorf("margin: distance: %w", err)
	}
	signed, _ := field.Array(surface.SignedArray)
	summary, err := Summarize(signed)
	if err != nil {
		return nil, err
	}

	cov, err := e.coverage(zs, ts)
	if err != nil {
		return nil, err
	}

	res := &Result{Field: field, Summary: summary, Coverage: cov}
	if abs, ok := field.Array(surface.AbsoluteArray); ok && len(abs) > 0 {
		res.AbsoluteRange = [2]float64{floats.Min(abs), floats.Max(abs)}
	}

	e.logger.Info("evaluated margins",
		"points", summary.Count,
		"closest", res.AbsoluteRange[0],
		"mean", summary.Mean,
		"median", summary.Median,
		"coverage", cov.Fraction,
	)
	return res, nil
}

func (e *Evaluator) coverage(zone, tumor kernel.Solid) (Coverage, error) {
	tg, err := kernel.Voxelize(e.k, tumor, e.spacing)
	if err != nil {
		return Coverage{}, fmt.Errorf("margin: voxelize tumor: %w", err)
	}
	cov := Coverage{TumorVolume: tg.Volume()}

	cov.CoveredVolume = kernel.Resample(e.k, e.k.Intersection(tumor, zone), tg).Volume()
	cov.ResidualVolume = kernel.Resample(e.k, e.k.Difference(tumor, zone), tg).Volume()

	if cov.TumorVolume > 0 {
		cov.Fraction = cov.CoveredVolume / cov.TumorVolume
	}
	return cov, nil
}
