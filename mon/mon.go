// Package mon is the monitoring engine: starting and stopping groups
// of cores/tasks/channels/sockets, assigning and recycling RMIDs (or
// resctrl monitoring-group directories), polling counters with
// wrap-safe delta semantics, and reclaiming resources eagerly once the
// kernel reports them idle.
package mon

import (
	"fmt"

	"github.com/rdtkit/pqosgo/capability"
)

// validMarker guards a Group against use after Stop (spec §9: "a
// move-on-stop handle type that can only be used while it exists" —
// approximated here with an explicit sentinel since Go has no linear
// types, matching the original's magic-number guard in spirit).
const validMarker = 0x0ADDC0DE

// TargetKind names what a monitoring group watches.
type TargetKind int

const (
	TargetCores TargetKind = iota
	TargetTasks
	TargetChannels
	TargetUncoreSockets
)

// Group is a live monitoring-group handle (spec §3 MonitoringGroup).
type Group struct {
	valid   int
	Kind    TargetKind
	Targets []int
	Events  []capability.EventKind

	clusters []int

	prior map[capability.EventKind]uint64
	accum map[capability.EventKind]uint64
	last  map[capability.EventKind]uint64

	rmidByCluster map[int]uint32
	resctrlPath   string
}

// ValidateEvents checks the requested event set against spec §4.F.1:
// PMU-only events may only be selected alongside at least one
// RDT-hardware event.
func ValidateEvents(events []capability.EventKind) error {
	if len(events) == 0 {
		return fmt.Errorf("mon: param: at least one event must be requested")
	}
	hasHW := false
	for _, e := range events {
		if !e.IsPMUOnly() {
			hasHW = true
		}
	}
	if !hasHW {
		for _, e := range events {
			if e.IsPMUOnly() {
				return fmt.Errorf("mon: param: event %v requires an accompanying RDT-hardware event", e)
			}
		}
	}
	return nil
}

// newGroup builds an unstarted Group. Manager.Start stamps the valid
// marker once backend bind (direct RMID allocation or resctrl mon-group
// creation) succeeds.
func newGroup(kind TargetKind, targets []int, events []capability.EventKind, clusters []int) *Group {
	return &Group{
		Kind:          kind,
		Targets:       append([]int(nil), targets...),
		Events:        append([]capability.EventKind(nil), events...),
		clusters:      clusters,
		prior:         make(map[capability.EventKind]uint64),
		accum:         make(map[capability.EventKind]uint64),
		last:          make(map[capability.EventKind]uint64),
		rmidByCluster: make(map[int]uint32),
	}
}

func (g *Group) markStarted() { g.valid = validMarker }

// IsValid reports whether the group is currently started.
func (g *Group) IsValid() bool { return g.valid == validMarker }

func (g *Group) requireValid() error {
	if !g.IsValid() {
		return fmt.Errorf("mon: param: operation on a group that is not started")
	}
	return nil
}

// Value is one event's current aggregate reading: a point value for
// occupancy, or a cumulative count plus the delta since the prior poll
// for bandwidth counters.
type Value struct {
	Kind    capability.EventKind
	Current uint64
	Delta   uint64
}

// WrapSafeDelta computes (cur - prev) mod 2^64 (spec §8 property 6 and
// §3 "Counter delta semantics").
func WrapSafeDelta(prev, cur uint64) uint64 {
	return cur - prev
}

// recordPoll updates a group's prior/accumulated state for one event
// reading and returns the Value to report.
func (g *Group) recordPoll(kind capability.EventKind, current uint64, isCounter bool) Value {
	if !isCounter {
		g.last[kind] = current
		return Value{Kind: kind, Current: current}
	}
	prev, seen := g.prior[kind]
	var delta uint64
	if seen {
		delta = WrapSafeDelta(prev, current)
	}
	g.prior[kind] = current
	g.accum[kind] += delta
	g.last[kind] = current
	return Value{Kind: kind, Current: g.accum[kind], Delta: delta}
}

// Values returns the most recently polled value for every event.
func (g *Group) Values() []Value {
	out := make([]Value, 0, len(g.Events))
	for _, e := range g.Events {
		out = append(out, Value{Kind: e, Current: g.last[e], Delta: 0})
	}
	return out
}
