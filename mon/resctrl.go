package mon

import (
	"fmt"
	"os"

	"github.com/rdtkit/pqosgo/capability"
	"github.com/rdtkit/pqosgo/resctrl"
)

// eventFile names the mon_data file backing one event (spec §6:
// "mon_data/mon_L3_<id>/{llc_occupancy,mbm_local_bytes,mbm_total_bytes}").
func eventFile(kind capability.EventKind) (string, bool) {
	switch kind {
	case capability.EventLLCOccupancy:
		return "llc_occupancy", true
	case capability.EventLocalMemBW:
		return "mbm_local_bytes", true
	case capability.EventTotalMemBW:
		return "mbm_total_bytes", true
	default:
		return "", false
	}
}

// ResctrlEngine implements Engine over resctrl mon_groups directories
// (spec §4.F.2: "pick an existing monitoring group that (a) does not
// overlap the requested L3 clusters and (b) has LLC occupancy below
// the platform's max_threshold_occupancy; or create a fresh
// mon_groups/pqos-<pid>-<counter> directory").
type ResctrlEngine struct {
	root            string
	pid             int
	counter         int
	maxThresholdOcc uint64
	groupPaths      map[*Group]string
	groupRefs       map[string]int
	clusterOwners   map[string][]int
}

// NewResctrlEngine builds a ResctrlEngine rooted at the mounted
// resctrl filesystem's default control group.
func NewResctrlEngine(root string, pid int, maxThresholdOccupancy uint64) *ResctrlEngine {
	return &ResctrlEngine{
		root:            root,
		pid:             pid,
		maxThresholdOcc: maxThresholdOccupancy,
		groupPaths:      make(map[*Group]string),
		groupRefs:       make(map[string]int),
		clusterOwners:   make(map[string][]int),
	}
}

func (e *ResctrlEngine) newGroupPath() string {
	e.counter++
	return fmt.Sprintf("%s/mon_groups/pqos-%d-%d", e.root, e.pid, e.counter)
}

// Bind implements spec §4.F.2's reuse-or-create heuristic: pick an
// existing monitoring group that does not overlap the requested L3
// clusters and whose LLC occupancy is below max_threshold_occupancy,
// sharing its directory (and its finite mon-group slot) instead of
// burning a fresh one.
func (e *ResctrlEngine) Bind(g *Group) error {
	if path, ok := e.findReusableGroup(g.clusters); ok {
		if err := e.attachTargets(path, g); err != nil {
			return err
		}
		e.groupPaths[g] = path
		e.groupRefs[path]++
		e.clusterOwners[path] = mergeClusters(e.clusterOwners[path], g.clusters)
		return nil
	}

	path := e.newGroupPath()
	grp := resctrl.NewGroup(path)
	if err := grp.Create(); err != nil {
		return fmt.Errorf("busy: creating monitoring group: %w", err)
	}
	if err := e.attachTargets(path, g); err != nil {
		return err
	}
	e.groupPaths[g] = path
	e.groupRefs[path] = 1
	e.clusterOwners[path] = g.clusters
	return nil
}

// findReusableGroup scans the groups this engine already owns for one
// that can absorb clusters without colliding with what it already
// monitors.
func (e *ResctrlEngine) findReusableGroup(clusters []int) (string, bool) {
	for path, owned := range e.clusterOwners {
		if clustersOverlap(owned, clusters) {
			continue
		}
		var occupancy uint64
		for _, cluster := range owned {
			v, err := resctrl.MonDataValue(path, cluster, "llc_occupancy")
			if err == nil {
				occupancy += v
			}
		}
		if occupancy > e.maxThresholdOcc {
			continue
		}
		return path, true
	}
	return "", false
}

// attachTargets writes g's cores or tasks into path's backing
// directory, merging with whatever it already holds when path is a
// reused group rather than a freshly created one.
func (e *ResctrlEngine) attachTargets(path string, g *Group) error {
	grp := resctrl.NewGroup(path)
	switch g.Kind {
	case TargetCores:
		existing, err := grp.Cpus()
		if err != nil {
			return fmt.Errorf("reading monitoring group cpus: %w", err)
		}
		if err := grp.SetCpus(mergeInts(existing, g.Targets)); err != nil {
			return fmt.Errorf("writing monitoring group cpus: %w", err)
		}
	case TargetTasks:
		for _, pid := range g.Targets {
			if err := grp.AddTask(pid); err != nil {
				return fmt.Errorf("writing monitoring group tasks: %w", err)
			}
		}
	default:
		return fmt.Errorf("backend mismatch: resctrl monitoring does not model this target kind")
	}
	return nil
}

func clustersOverlap(a, b []int) bool {
	seen := make(map[int]bool, len(a))
	for _, x := range a {
		seen[x] = true
	}
	for _, x := range b {
		if seen[x] {
			return true
		}
	}
	return false
}

func mergeClusters(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, x := range a {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	for _, x := range b {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

func mergeInts(a, b []int) []int {
	seen := make(map[int]bool, len(a))
	out := append([]int(nil), a...)
	for _, x := range a {
		seen[x] = true
	}
	for _, x := range b {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

func (e *ResctrlEngine) Poll(g *Group) ([]Value, error) {
	path, ok := e.groupPaths[g]
	if !ok {
		return nil, fmt.Errorf("param: group has no backing resctrl directory")
	}
	var values []Value
	for _, kind := range g.Events {
		file, ok := eventFile(kind)
		if !ok {
			continue
		}
		var sum uint64
		for _, cluster := range g.clusters {
			v, err := resctrl.MonDataValue(path, cluster, file)
			if err != nil {
				return nil, fmt.Errorf("%w", err)
			}
			sum += v
		}
		isCounter := kind != capability.EventLLCOccupancy
		values = append(values, g.recordPoll(kind, sum, isCounter))
	}
	if err := e.purgeEmptySubgroups(g); err != nil {
		return nil, err
	}
	return values, nil
}

// purgeEmptySubgroups implements spec §4.F.3's "empty group purge":
// for every backing sub-group whose cpus, tasks, and LLC occupancy are
// all empty, capture its residuals and delete the directory. A single
// pqos-<pid>-<counter> directory per Group makes this, for this
// implementation, a check of the group's own directory rather than a
// scan of sibling directories.
func (e *ResctrlEngine) purgeEmptySubgroups(g *Group) error {
	path := e.groupPaths[g]
	grp := resctrl.NewGroup(path)
	cpus, err := grp.Cpus()
	if err != nil {
		return nil
	}
	tasks, err := grp.Tasks()
	if err != nil {
		return nil
	}
	if len(cpus) != 0 || len(tasks) != 0 {
		return nil
	}
	var occupancy uint64
	for _, cluster := range g.clusters {
		v, err := resctrl.MonDataValue(path, cluster, "llc_occupancy")
		if err == nil {
			occupancy += v
		}
	}
	if occupancy > e.maxThresholdOcc {
		return nil
	}
	if e.groupRefs[path] > 1 {
		return nil
	}
	if err := grp.Remove(); err != nil && !os.IsNotExist(err) {
		return err
	}
	delete(e.groupRefs, path)
	delete(e.clusterOwners, path)
	return nil
}

func (e *ResctrlEngine) Unbind(g *Group) error {
	path, ok := e.groupPaths[g]
	if !ok {
		return nil
	}
	e.groupRefs[path]--
	if e.groupRefs[path] <= 0 {
		grp := resctrl.NewGroup(path)
		if err := grp.Remove(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing monitoring group: %w", err)
		}
		delete(e.groupRefs, path)
	}
	delete(e.groupPaths, g)
	delete(e.clusterOwners, path)
	return nil
}

func (e *ResctrlEngine) Reset() error {
	for g, path := range e.groupPaths {
		grp := resctrl.NewGroup(path)
		_ = grp.Remove()
		delete(e.groupPaths, g)
	}
	e.groupRefs = make(map[string]int)
	e.clusterOwners = make(map[string][]int)
	return nil
}
