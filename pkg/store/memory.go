package store

import (
	"fmt"
	"sync"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/kernel"
)

// DefaultVoxelSpacing is the grid spacing in mm for voxel representations.
const DefaultVoxelSpacing = 1.0

// entry is one stored solid.
type entry struct {
	name    string
	origin  kernel.Solid // geometry at creation, target of ResetPose
	solid   kernel.Solid // current hardened geometry
	pose    geom.Mat4
	pending *geom.Mat4
	visible bool
}

// Memory is an in-process Store backed by a geometry kernel.
// A mutex guards the maps, but callers still run pipeline stages
// sequentially; see the planner package.
type Memory struct {
	mu      sync.Mutex
	k       kernel.Kernel
	spacing float64
	entries map[Handle]*entry
	order   []Handle
}

// Compile-time interface checks.
var (
	_ Store           = (*Memory)(nil)
	_ BooleanCombiner = (*Memory)(nil)
)

// NewMemory returns an empty store. voxelSpacing <= 0 selects
// DefaultVoxelSpacing.
func NewMemory(k kernel.Kernel, voxelSpacing float64) *Memory {
	if voxelSpacing <= 0 {
		voxelSpacing = DefaultVoxelSpacing
	}
	return &Memory{
		k:       k,
		spacing: voxelSpacing,
		entries: make(map[Handle]*entry),
	}
}

// Kernel returns the kernel the store transforms solids with.
func (m *Memory) Kernel() kernel.Kernel {
	return m.k
}

func (m *Memory) get(h Handle) (*entry, error) {
	e, ok := m.entries[h]
	if !ok {
		return nil, &NotFoundError{Handle: h}
	}
	return e, nil
}

func (m *Memory) insert(e *entry) Handle {
	h := NewHandle()
	m.entries[h] = e
	m.order = append(m.order, h)
	return h
}

// Add registers s under name.
func (m *Memory) Add(name string, s kernel.Solid) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(&entry{
		name:    name,
		origin:  s,
		solid:   s,
		pose:    geom.Identity4(),
		visible: true,
	})
}

// CreateFromTemplate copies the template. Kernel solids are immutable, so
// sharing the value gives the copy independent geometry; the copy's pose
// and origin start from the template's current hardened state.
func (m *Memory) CreateFromTemplate(template Handle) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.get(template)
	if err != nil {
		return "", err
	}
	return m.insert(&entry{
		name:    t.name,
		origin:  t.solid,
		solid:   t.solid,
		pose:    geom.Identity4(),
		visible: true,
	}), nil
}

// ApplyTransform replaces the pending transform.
func (m *Memory) ApplyTransform(h Handle, mat geom.Mat4) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return err
	}
	p := mat
	e.pending = &p
	return nil
}

// HardenTransform bakes the pending transform into the solid and clears it.
func (m *Memory) HardenTransform(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return err
	}
	if e.pending == nil {
		return &NoPendingTransformError{Handle: h}
	}
	e.solid = m.k.Transform(e.solid, *e.pending)
	e.pose = e.pending.Mul(e.pose)
	e.pending = nil
	return nil
}

// ResetPose discards hardened and pending transforms.
func (m *Memory) ResetPose(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return err
	}
	e.solid = e.origin
	e.pose = geom.Identity4()
	e.pending = nil
	return nil
}

// Remove deletes the entry.
func (m *Memory) Remove(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(h); err != nil {
		return err
	}
	delete(m.entries, h)
	for i, o := range m.order {
		if o == h {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rename changes the display name.
func (m *Memory) Rename(h Handle, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return err
	}
	e.name = name
	return nil
}

// Name returns the display name.
func (m *Memory) Name(h Handle) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return "", err
	}
	return e.name, nil
}

// Solid returns the current hardened solid.
func (m *Memory) Solid(h Handle) (kernel.Solid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return nil, err
	}
	return e.solid, nil
}

// Pose returns the cumulative hardened transform.
func (m *Memory) Pose(h Handle) (geom.Mat4, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return geom.Mat4{}, err
	}
	return e.pose, nil
}

// SetVisible marks a solid shown or hidden.
func (m *Memory) SetVisible(h Handle, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return err
	}
	e.visible = visible
	return nil
}

// Visible reports whether a solid is shown.
func (m *Memory) Visible(h Handle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.get(h)
	if err != nil {
		return false, err
	}
	return e.visible, nil
}

// Representation meshes or voxelizes the current solid. The returned
// geometry is a fresh value owned by the caller.
func (m *Memory) Representation(h Handle, kind RepresentationKind) (Geometry, error) {
	s, err := m.Solid(h)
	if err != nil {
		return nil, err
	}
	switch kind {
	case RepresentationMesh:
		mesh, err := m.k.ToMesh(s)
		if err != nil {
			return nil, fmt.Errorf("store: mesh %s: %w", h.Short(), err)
		}
		if name, err := m.Name(h); err == nil {
			mesh.PartName = name
		}
		return mesh, nil
	case RepresentationVoxel:
		g, err := kernel.Voxelize(m.k, s, m.spacing)
		if err != nil {
			return nil, fmt.Errorf("store: voxelize %s: %w", h.Short(), err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("store: unknown representation kind %v", kind)
	}
}

// Union replaces target's solid with target ∪ modifier. The modifier is
// left untouched. The union is hardened immediately and becomes the
// target's new origin, so a later ResetPose does not undo it.
func (m *Memory) Union(target, modifier Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.get(target)
	if err != nil {
		return err
	}
	mod, err := m.get(modifier)
	if err != nil {
		return err
	}
	t.solid = m.k.Union(t.solid, mod.solid)
	t.origin = t.solid
	t.pose = geom.Identity4()
	return nil
}

// Handles returns live handles in creation order.
func (m *Memory) Handles() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Handle, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Mesh is a typed helper around Representation.
func Mesh(s Store, h Handle) (*kernel.Mesh, error) {
	g, err := s.Representation(h, RepresentationMesh)
	if err != nil {
		return nil, err
	}
	mesh, ok := g.(*kernel.Mesh)
	if !ok {
		return nil, fmt.Errorf("store: mesh representation of %s has type %T", h.Short(), g)
	}
	return mesh, nil
}

// Voxels is a typed helper around Representation.
func Voxels(s Store, h Handle) (*kernel.VoxelGrid, error) {
	g, err := s.Representation(h, RepresentationVoxel)
	if err != nil {
		return nil, err
	}
	grid, ok := g.(*kernel.VoxelGrid)
	if !ok {
		return nil, fmt.Errorf("store: voxel representation of %s has type %T", h.Short(), g)
	}
	return grid, nil
}
