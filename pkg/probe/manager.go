// Package probe manages the duplicated probe solids, one per trajectory.
package probe

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/chazu/ablation/pkg/store"
)

// Instance is one placed copy of the probe template.
type Instance struct {
	Handle store.Handle `json:"handle"`
	Name   string       `json:"name"`
	Index  int          `json:"index"`
}

// Manager owns the probe instances. It is the only component that creates
// or removes them, so the instance set always matches the last trajectory
// set it was sized for.
type Manager struct {
	store     store.Store
	logger    *log.Logger
	instances []Instance
	consumed  bool
}

// NewManager returns a manager creating instances in st.
func NewManager(st store.Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{store: st, logger: logger}
}

// CreateInstances discards every existing instance and then copies template
// n times, naming the copies <templateName>_<index>. On failure the copies
// made so far are removed and the manager is left empty.
func (m *Manager) CreateInstances(n int, template store.Handle) ([]Instance, error) {
	if n < 0 {
		return nil, fmt.Errorf("probe: negative instance count %d", n)
	}
	if err := m.DiscardAll(); err != nil {
		return nil, err
	}

	base, err := m.store.Name(template)
	if err != nil {
		return nil, fmt.Errorf("probe: template: %w", err)
	}

	created := make([]Instance, 0, n)
	for i := 0; i < n; i++ {
		h, err := m.store.CreateFromTemplate(template)
		if err != nil {
			m.instances = created
			_ = m.DiscardAll()
			return nil, fmt.Errorf("probe: copy %d: %w", i, err)
		}
		name := fmt.Sprintf("%s_%d", base, i)
		if err := m.store.Rename(h, name); err != nil {
			m.instances = append(created, Instance{Handle: h, Name: name, Index: i})
			_ = m.DiscardAll()
			return nil, fmt.Errorf("probe: name copy %d: %w", i, err)
		}
		created = append(created, Instance{Handle: h, Name: name, Index: i})
		m.logger.Debug("created probe instance", "name", name, "handle", h.Short())
	}

	m.instances = created
	m.consumed = false
	return m.Instances(), nil
}

// DiscardAll removes every instance from the store. Instances already gone
// from the store are skipped; any other failure stops the sweep and leaves
// the remaining instances tracked.
func (m *Manager) DiscardAll() error {
	for i, inst := range m.instances {
		err := m.store.Remove(inst.Handle)
		if err == nil {
			m.logger.Debug("discarded probe instance", "name", inst.Name)
			continue
		}
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			continue
		}
		m.instances = m.instances[i:]
		return fmt.Errorf("probe: discard %s: %w", inst.Name, err)
	}
	m.instances = nil
	m.consumed = false
	return nil
}

// Instances returns a copy of the current instance list.
func (m *Manager) Instances() []Instance {
	out := make([]Instance, len(m.instances))
	copy(out, m.instances)
	return out
}

// Len returns the instance count.
func (m *Manager) Len() int {
	return len(m.instances)
}

// MarkConsumed records that the current instances were folded into a
// combined solid.
func (m *Manager) MarkConsumed() {
	m.consumed = true
}

// Consumed reports whether the current instances were combined.
func (m *Manager) Consumed() bool {
	return m.consumed
}
