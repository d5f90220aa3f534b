// Package tessellate walks the solid store and produces triangle meshes
// for export. One mesh is produced per visible solid.
package tessellate

import (
	"fmt"

	"github.com/chazu/ablation/pkg/kernel"
	"github.com/chazu/ablation/pkg/store"
)

// Part pairs a mesh with the handle it was produced from.
type Part struct {
	Handle store.Handle
	Mesh   *kernel.Mesh
}

// Tessellate produces one triangle mesh per visible solid in handles. A nil
// handles slice selects every solid in the store, in creation order. The
// tessellator is read-only and never mutates the store.
func Tessellate(st store.Store, handles []store.Handle) ([]*kernel.Mesh, error) {
	parts, err := Parts(st, handles)
	if err != nil {
		return nil, err
	}
	meshes := make([]*kernel.Mesh, 0, len(parts))
	for _, p := range parts {
		meshes = append(meshes, p.Mesh)
	}
	return meshes, nil
}

// Parts is Tessellate keeping the source handle of every mesh.
func Parts(st store.Store, handles []store.Handle) ([]Part, error) {
	if st == nil {
		return nil, nil
	}
	if handles == nil {
		handles = st.Handles()
	}

	var parts []Part
	for _, h := range handles {
		visible, err := st.Visible(h)
		if err != nil {
			return nil, fmt.Errorf("tessellate: %w", err)
		}
		if !visible {
			continue
		}
		mesh, err := store.Mesh(st, h)
		if err != nil {
			return nil, fmt.Errorf("tessellate: solid %s: %w", h.Short(), err)
		}
		// Fall back to the short handle when the solid is unnamed.
		if mesh.PartName == "" {
			mesh.PartName = h.Short()
		}
		parts = append(parts, Part{Handle: h, Mesh: mesh})
	}
	return parts, nil
}

// NonEmpty drops meshes without geometry, such as a solid that lies
// entirely outside the meshing bounds.
func NonEmpty(meshes []*kernel.Mesh) []*kernel.Mesh {
	out := meshes[:0:0]
	for _, m := range meshes {
		if m != nil && !m.IsEmpty() {
			out = append(out, m)
		}
	}
	return out
}
