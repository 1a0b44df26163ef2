package mon

// Engine is the backend-specific half of the monitoring engine: bind a
// group to hardware/kernel resources, poll its counters, and release
// those resources on stop. Group lifecycle, delta accounting, and the
// empty-group purge in Poll are implemented against this interface so
// they are identical across the direct and resctrl backends.
type Engine interface {
	// Bind allocates RMIDs (direct) or a mon_groups directory (resctrl)
	// for g and installs the binding on every target.
	Bind(g *Group) error

	// Poll reads every event in g once, updates g's accumulators, and
	// returns the values to report. It also performs the "empty group
	// purge" (spec §4.F.3): any backing sub-group left with no targets
	// and occupancy below threshold has its residual counters folded
	// into g and its kernel resources released.
	Poll(g *Group) ([]Value, error)

	// Unbind reverses Bind: re-associates g's targets with their
	// pre-start state and releases RMIDs/directories subject to the
	// occupancy-decay rule.
	Unbind(g *Group) error

	// Reset tears down every monitoring-group directory/RMID the engine
	// currently owns (spec §4.F.5).
	Reset() error
}
