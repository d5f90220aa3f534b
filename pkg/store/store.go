// Package store keeps named solids behind opaque handles. It plays the part
// of the host scene: callers create, transform, harden, rename and remove
// solids through handles returned by creation calls, never by looking names
// up.
package store

import (
	"fmt"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/kernel"
	"github.com/google/uuid"
)

// Handle is an opaque reference to a stored solid.
type Handle string

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.NewString())
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == ""
}

// Short returns the first 8 characters, for log lines.
func (h Handle) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// RepresentationKind selects the geometry form returned by Representation.
type RepresentationKind int

const (
	RepresentationMesh  RepresentationKind = iota // closed surface triangles
	RepresentationVoxel                           // binary occupancy grid
)

func (k RepresentationKind) String() string {
	switch k {
	case RepresentationMesh:
		return "mesh"
	case RepresentationVoxel:
		return "voxel-grid"
	default:
		return "unknown"
	}
}

// Geometry is raw geometry read out of the store: a *kernel.Mesh or a
// *kernel.VoxelGrid.
type Geometry interface{}

// Store is the solid store the pipeline mutates. Implementations are not
// required to be safe for concurrent mutation.
type Store interface {
	// Add registers a solid under name and returns its handle.
	Add(name string, s kernel.Solid) Handle
	// CreateFromTemplate copies the template's current solid into a new
	// entry named after the template.
	CreateFromTemplate(template Handle) (Handle, error)
	// ApplyTransform sets the pending transform, replacing any earlier one.
	ApplyTransform(h Handle, m geom.Mat4) error
	// HardenTransform bakes the pending transform into the solid.
	HardenTransform(h Handle) error
	// ResetPose returns the solid to the geometry it was created with.
	ResetPose(h Handle) error
	Remove(h Handle) error
	Rename(h Handle, name string) error
	Name(h Handle) (string, error)
	Solid(h Handle) (kernel.Solid, error)
	// Pose returns the cumulative hardened transform since creation.
	Pose(h Handle) (geom.Mat4, error)
	SetVisible(h Handle, visible bool) error
	Visible(h Handle) (bool, error)
	Representation(h Handle, kind RepresentationKind) (Geometry, error)
	// Handles lists live handles in creation order.
	Handles() []Handle
	Len() int
}

// BooleanCombiner merges solids in place.
type BooleanCombiner interface {
	// Union replaces target's solid with target ∪ modifier.
	Union(target, modifier Handle) error
}

// NotFoundError is returned for handles that do not exist (never created,
// or already removed).
type NotFoundError struct {
	Handle Handle
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: no solid with handle %s", e.Handle)
}

// NoPendingTransformError is returned by HardenTransform when nothing was
// applied.
type NoPendingTransformError struct {
	Handle Handle
}

func (e *NoPendingTransformError) Error() string {
	return fmt.Sprintf("store: solid %s has no pending transform to harden", e.Handle.Short())
}
