package margin

import (
	"fmt"

	"github.com/chazu/ablation/pkg/surface"
)

// Region returns the bin index of v: the index of the first threshold
// strictly greater than v, or len(thresholds) when none is.
func Region(v float64, thresholds []float64) int {
	for j, t := range thresholds {
		if v < t {
			return j
		}
	}
	return len(thresholds)
}

// ValidateThresholds checks that thresholds are non-empty and strictly
// ascending.
func ValidateThresholds(thresholds []float64) error {
	if len(thresholds) == 0 {
		return fmt.Errorf("margin: no band thresholds")
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return fmt.Errorf("margin: thresholds must be strictly ascending: %g follows %g", thresholds[i], thresholds[i-1])
		}
	}
	return nil
}

// Snapshot is a saved copy of one field array, taken before banding.
type Snapshot struct {
	Array  string
	Values []float64
}

// TakeSnapshot copies the signed array of f.
func TakeSnapshot(f *surface.ScalarField) (*Snapshot, error) {
	values, ok := f.Array(surface.SignedArray)
	if !ok {
		return nil, fmt.Errorf("margin: field has no %q array", surface.SignedArray)
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	return &Snapshot{Array: surface.SignedArray, Values: cp}, nil
}

// Band replaces every signed value of f with its region index under
// thresholds. Take a snapshot first to be able to undo it.
func Band(f *surface.ScalarField, thresholds []float64) error {
	if err := ValidateThresholds(thresholds); err != nil {
		return err
	}
	values, ok := f.Array(surface.SignedArray)
	if !ok {
		return fmt.Errorf("margin: field has no %q array", surface.SignedArray)
	}
	for i, v := range values {
		values[i] = float64(Region(v, thresholds))
	}
	return nil
}

// Restore overwrites the snapshotted array of f point for point.
func Restore(f *surface.ScalarField, snap *Snapshot) error {
	values, ok := f.Array(snap.Array)
	if !ok {
		return fmt.Errorf("margin: field has no %q array", snap.Array)
	}
	if len(values) != len(snap.Values) {
		return fmt.Errorf("margin: snapshot has %d values, field has %d", len(snap.Values), len(values))
	}
	copy(values, snap.Values)
	return nil
}

// Histogram counts values in each of the len(thresholds)+1 regions.
func Histogram(values, thresholds []float64) []int {
	counts := make([]int, len(thresholds)+1)
	for _, v := range values {
		counts[Region(v, thresholds)]++
	}
	return counts
}
