package mon

import (
	"fmt"

	"github.com/rdtkit/pqosgo/capability"
)

// Manager is the engine-agnostic half of the monitoring subsystem: it
// validates event sets, owns the set of live groups, and drives
// Start/Poll/Stop/Reset against whichever Engine the context selected
// (spec §4.F operations 1-5).
type Manager struct {
	engine Engine
	groups map[*Group]struct{}
}

// NewManager builds a Manager bound to a backend Engine.
func NewManager(engine Engine) *Manager {
	return &Manager{engine: engine, groups: make(map[*Group]struct{})}
}

// Start validates the event set, allocates a group handle, and binds
// it to the backend (spec §4.F.1-2).
func (m *Manager) Start(kind TargetKind, targets []int, events []capability.EventKind, clusters []int) (*Group, error) {
	if err := ValidateEvents(events); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("mon: param: at least one target must be given")
	}
	g := newGroup(kind, targets, events, clusters)
	if err := m.engine.Bind(g); err != nil {
		return nil, fmt.Errorf("mon: %w", err)
	}
	g.markStarted()
	m.groups[g] = struct{}{}
	return g, nil
}

// Poll is legal only on a started group (spec §8 property 8).
func (m *Manager) Poll(g *Group) ([]Value, error) {
	if err := g.requireValid(); err != nil {
		return nil, err
	}
	return m.engine.Poll(g)
}

// Stop un-binds the group and forgets it. Idempotent double-stop is
// rejected by the valid marker.
func (m *Manager) Stop(g *Group) error {
	if err := g.requireValid(); err != nil {
		return err
	}
	if err := m.engine.Unbind(g); err != nil {
		return fmt.Errorf("mon: %w", err)
	}
	g.valid = 0
	delete(m.groups, g)
	return nil
}

// Reset tears down every live group and releases every backend
// resource (spec §4.F.5).
func (m *Manager) Reset() error {
	for g := range m.groups {
		g.valid = 0
		delete(m.groups, g)
	}
	if err := m.engine.Reset(); err != nil {
		return fmt.Errorf("mon: %w", err)
	}
	return nil
}

// Groups returns the set of currently live group handles, for tests
// and diagnostics.
func (m *Manager) Groups() []*Group {
	out := make([]*Group, 0, len(m.groups))
	for g := range m.groups {
		out = append(out, g)
	}
	return out
}
