package probe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chazu/ablation/pkg/kernel/sdfx"
	"github.com/chazu/ablation/pkg/store"
)

func setup(t *testing.T) (*store.Memory, store.Handle, *Manager) {
	t.Helper()
	k := sdfx.New(sdfx.WithMeshCells(32))
	st := store.NewMemory(k, 1)
	tmpl := st.Add("probe", k.Cylinder(30, 2, 0))
	return st, tmpl, NewManager(st, nil)
}

func TestCreateInstancesNamesAndCount(t *testing.T) {
	st, tmpl, m := setup(t)

	got, err := m.CreateInstances(3, tmpl)
	if err != nil {
		t.Fatalf("CreateInstances: %v", err)
	}
	if len(got) != 3 || m.Len() != 3 {
		t.Fatalf("expected 3 instances, got %d (Len %d)", len(got), m.Len())
	}
	seen := map[store.Handle]bool{}
	for i, inst := range got {
		want := fmt.Sprintf("probe_%d", i)
		if inst.Name != want {
			t.Errorf("instance %d name = %q, want %q", i, inst.Name, want)
		}
		if name, _ := st.Name(inst.Handle); name != want {
			t.Errorf("store name = %q, want %q", name, want)
		}
		if inst.Handle == tmpl {
			t.Errorf("instance %d reuses the template handle", i)
		}
		if seen[inst.Handle] {
			t.Errorf("duplicate handle %s", inst.Handle)
		}
		seen[inst.Handle] = true
	}
	// Template + 3 copies.
	if st.Len() != 4 {
		t.Errorf("store holds %d solids, want 4", st.Len())
	}
}

func TestCreateInstancesDiscardsPrevious(t *testing.T) {
	st, tmpl, m := setup(t)

	first, err := m.CreateInstances(3, tmpl)
	if err != nil {
		t.Fatalf("CreateInstances: %v", err)
	}
	second, err := m.CreateInstances(2, tmpl)
	if err != nil {
		t.Fatalf("CreateInstances: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(second))
	}
	for _, inst := range first {
		if _, err := st.Name(inst.Handle); err == nil {
			t.Errorf("stale instance %s still in store", inst.Name)
		}
	}
	if st.Len() != 3 {
		t.Errorf("store holds %d solids, want template + 2", st.Len())
	}
}

func TestDiscardAll(t *testing.T) {
	st, tmpl, m := setup(t)
	if _, err := m.CreateInstances(4, tmpl); err != nil {
		t.Fatalf("CreateInstances: %v", err)
	}
	m.MarkConsumed()

	if err := m.DiscardAll(); err != nil {
		t.Fatalf("DiscardAll: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after DiscardAll", m.Len())
	}
	if m.Consumed() {
		t.Error("Consumed should reset after DiscardAll")
	}
	if st.Len() != 1 {
		t.Errorf("store holds %d solids, want only the template", st.Len())
	}
}

func TestDiscardAllSkipsAlreadyRemoved(t *testing.T) {
	st, tmpl, m := setup(t)
	got, _ := m.CreateInstances(2, tmpl)
	_ = st.Remove(got[0].Handle)

	if err := m.DiscardAll(); err != nil {
		t.Fatalf("DiscardAll: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("store holds %d solids, want 1", st.Len())
	}
}

func TestCreateInstancesMissingTemplate(t *testing.T) {
	_, _, m := setup(t)
	_, err := m.CreateInstances(2, store.NewHandle())
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after failed create", m.Len())
	}
}

func TestCreateZeroInstances(t *testing.T) {
	_, tmpl, m := setup(t)
	got, err := m.CreateInstances(0, tmpl)
	if err != nil {
		t.Fatalf("CreateInstances(0): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no instances, got %d", len(got))
	}
	if _, err := m.CreateInstances(-1, tmpl); err == nil {
		t.Error("expected error for negative count")
	}
}

// failingRemove wraps a store and refuses to remove one handle.
type failingRemove struct {
	store.Store
	deny store.Handle
}

func (f *failingRemove) Remove(h store.Handle) error {
	if h == f.deny {
		return errors.New("locked")
	}
	return f.Store.Remove(h)
}

func TestDiscardAllStopsOnStoreError(t *testing.T) {
	st, tmpl, _ := setup(t)
	fs := &failingRemove{Store: st}
	m := NewManager(fs, nil)

	got, err := m.CreateInstances(3, tmpl)
	if err != nil {
		t.Fatalf("CreateInstances: %v", err)
	}
	fs.deny = got[1].Handle

	if err := m.DiscardAll(); err == nil {
		t.Fatal("expected DiscardAll to fail")
	}
	// The first instance went, the rest are still tracked so a retry can
	// finish the job.
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2 tracked after partial discard", m.Len())
	}
	fs.deny = ""
	if err := m.DiscardAll(); err != nil {
		t.Fatalf("retry DiscardAll: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("store holds %d solids, want 1", st.Len())
	}
}
