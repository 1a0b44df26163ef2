package pqos

import (
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rdtkit/pqosgo/alloc"
	"github.com/rdtkit/pqosgo/capability"
	"github.com/rdtkit/pqosgo/mon"
	"github.com/rdtkit/pqosgo/resctrl"
)

// Public type aliases re-export the backend-agnostic value types from
// alloc/mon/capability so callers never import those packages directly
// (spec §6: one flat public surface).
type (
	COS             = alloc.COS
	Technology      = alloc.Technology
	CacheMask       = alloc.CacheMask
	Throttle        = alloc.Throttle
	EventKind       = capability.EventKind
	TargetKind      = mon.TargetKind
	MonitoringGroup = mon.Group
	MonValue        = mon.Value
)

const (
	TechL3CA  = alloc.TechL3CA
	TechL2CA  = alloc.TechL2CA
	TechMBA   = alloc.TechMBA
	TechSMBA  = alloc.TechSMBA

	TargetCores         = mon.TargetCores
	TargetTasks         = mon.TargetTasks
	TargetChannels      = mon.TargetChannels
	TargetUncoreSockets = mon.TargetUncoreSockets

	EventLLCOccupancy = capability.EventLLCOccupancy
	EventLocalMemBW   = capability.EventLocalMemBW
	EventTotalMemBW   = capability.EventTotalMemBW
	EventRemoteMemBW  = capability.EventRemoteMemBW
	EventIPC          = capability.EventIPC
)

// Capability returns the immutable snapshot Init discovered (and any
// Reset call since reconfigured).
func (ctx *Context) Capability() *capability.Set {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.cap
}

func (ctx *Context) checkReady() error {
	if !initialized.Load() {
		return ErrNotInitialized
	}
	return nil
}

// L3caGet reads the L3 cache mask a COS is currently programmed with on
// the given L3 cluster.
func (ctx *Context) L3caGet(l3ID int, cos COS) (mask CacheMask, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		if e := ctx.dispatch(opL3CA); e != nil {
			return e
		}
		var e error
		mask, e = ctx.allocEngine.GetL3Mask(l3ID, cos)
		return e
	})
	return
}

// L3caSet programs an L3 cache mask for a COS on the given L3 cluster.
func (ctx *Context) L3caSet(l3ID int, cos COS, mask CacheMask) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.dispatch(opL3CA); err != nil {
			return err
		}
		return ctx.allocEngine.SetL3Mask(l3ID, cos, mask)
	})
}

// L2caGet is L3caGet for L2 CAT.
func (ctx *Context) L2caGet(l2ID int, cos COS) (mask CacheMask, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		if e := ctx.dispatch(opL2CA); e != nil {
			return e
		}
		var e error
		mask, e = ctx.allocEngine.GetL2Mask(l2ID, cos)
		return e
	})
	return
}

// L2caSet is L3caSet for L2 CAT.
func (ctx *Context) L2caSet(l2ID int, cos COS, mask CacheMask) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.dispatch(opL2CA); err != nil {
			return err
		}
		return ctx.allocEngine.SetL2Mask(l2ID, cos, mask)
	})
}

// MbaGet reads the memory-bandwidth throttle a COS is currently
// programmed with on the given MBA domain.
func (ctx *Context) MbaGet(mbaID int, cos COS) (t Throttle, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		if e := ctx.dispatch(opMBA); e != nil {
			return e
		}
		var e error
		t, e = ctx.allocEngine.GetMBA(mbaID, cos)
		return e
	})
	return
}

// MbaSet programs a memory-bandwidth throttle for a COS.
func (ctx *Context) MbaSet(mbaID int, cos COS, t Throttle) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.dispatch(opMBA); err != nil {
			return err
		}
		return ctx.allocEngine.SetMBA(mbaID, cos, t)
	})
}

// SmbaGet is MbaGet for Slow Memory Bandwidth Allocation.
func (ctx *Context) SmbaGet(smbaID int, cos COS) (t Throttle, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		if e := ctx.dispatch(opSMBA); e != nil {
			return e
		}
		var e error
		t, e = ctx.allocEngine.GetSMBA(smbaID, cos)
		return e
	})
	return
}

// SmbaSet is MbaSet for Slow Memory Bandwidth Allocation.
func (ctx *Context) SmbaSet(smbaID int, cos COS, t Throttle) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.dispatch(opSMBA); err != nil {
			return err
		}
		return ctx.allocEngine.SetSMBA(smbaID, cos, t)
	})
}

// AssocGet reads the class of service a core is currently associated
// with.
func (ctx *Context) AssocGet(core int) (cos COS, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		if e := ctx.dispatch(opCoreAssoc); e != nil {
			return e
		}
		var e error
		cos, e = ctx.allocEngine.CoreCOS(core)
		return e
	})
	return
}

// AssocSet associates a core with a class of service directly.
func (ctx *Context) AssocSet(core int, cos COS) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.dispatch(opCoreAssoc); err != nil {
			return err
		}
		return ctx.allocEngine.AssocCore(core, cos)
	})
}

// TaskAssocSet associates a pid with a class of service (resctrl only).
func (ctx *Context) TaskAssocSet(pid int, cos COS) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.dispatch(opTaskAssoc); err != nil {
			return err
		}
		return ctx.allocEngine.AssocTask(pid, cos)
	})
}

// ChannelAssocSet associates an I/O RDT device channel with a class of
// service.
func (ctx *Context) ChannelAssocSet(channel int, cos COS) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.dispatch(opChannelAssoc); err != nil {
			return err
		}
		return ctx.allocEngine.AssocChannel(channel, cos)
	})
}

// AssignRequest names the targets and technologies Assign must find a
// common free class of service for (spec §4.E.7).
type AssignRequest struct {
	Tech     Technology
	Cores    []int
	Tasks    []int
	Channels []int
}

// Assign finds a class of service free across every requested
// technology for req.Cores, programs it onto every target, and returns
// the chosen class. It never returns COS 0.
func (ctx *Context) Assign(req AssignRequest) (cos COS, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		if e := ctx.dispatch(opAssign); e != nil {
			return e
		}
		var e error
		cos, e = alloc.Assign(ctx.allocEngine, alloc.AssignRequest{
			Tech:        req.Tech,
			Cores:       req.Cores,
			Tasks:       req.Tasks,
			Channels:    req.Channels,
			L3ClusterOf: ctx.l3ClusterOf,
			MBADomainOf: ctx.mbaDomainOf,
			L2ClusterOf: ctx.l2ClusterOf,
			NumClasses:  ctx.allocEngine.NumClasses,
			CoreCOS:     ctx.allocEngine.CoreCOS,
		})
		return e
	})
	return
}

// Release re-associates every target with COS 0.
func (ctx *Context) Release(cores, tasks, channels []int) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		return alloc.Release(ctx.allocEngine, cores, tasks, channels)
	})
}

func (ctx *Context) l3ClusterOf(core int) int {
	lc, ok := ctx.topo.Core(core)
	if !ok {
		return -1
	}
	return lc.L3ID
}

func (ctx *Context) l2ClusterOf(core int) int {
	lc, ok := ctx.topo.Core(core)
	if !ok {
		return -1
	}
	return lc.L2ID
}

func (ctx *Context) mbaDomainOf(core int) int {
	lc, ok := ctx.topo.Core(core)
	if !ok {
		return -1
	}
	return lc.MBAID
}

// ResetRequest names the feature toggles Reset may flip (spec §4.E.9).
type ResetRequest struct {
	L3CDP    *bool
	L2CDP    *bool
	L3IORDT  *bool
	MBACTRL  *bool
	SMBACTRL *bool
	MBA40    *bool
}

// Reset reconfigures CDP/MBA-CTRL/I-O-RDT/MBA4.0 and restores every COS
// to its default (full-access) mask, matching the original library's
// "reset" entry point (spec §4.E.9). It is rejected with
// ErrMonitoringActive if any monitoring group is currently live and the
// request would flip CDP or MBA-CTRL, since that changes the register
// layout counters are bound against.
func (ctx *Context) Reset(req ResetRequest) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if ctx.monitoring > 0 && (req.L3CDP != nil || req.L2CDP != nil || req.MBACTRL != nil) {
			return ErrMonitoringActive
		}
		if ctx.backend == BackendDirect && req.MBACTRL != nil {
			return errf(CodeResource, "MBA-CTRL toggle is not supported on the direct MSR backend")
		}

		next := ctx.cap
		if req.L3CDP != nil {
			next = next.WithL3CDP(*req.L3CDP)
		}
		if req.L2CDP != nil {
			next = next.WithL2CDP(*req.L2CDP)
		}
		if req.L3IORDT != nil {
			next = next.WithIORDT(*req.L3IORDT)
		}
		if req.MBACTRL != nil {
			next = next.WithMBACTRL(*req.MBACTRL)
		}
		if req.SMBACTRL != nil {
			next = next.WithSMBACTRL(*req.SMBACTRL)
		}
		if req.MBA40 != nil {
			next = next.WithMBA40(*req.MBA40)
		}

		switch ctx.backend {
		case BackendDirect:
			if err := ctx.applyDirectToggles(req); err != nil {
				return err
			}
		case BackendResctrl:
			if requiresFullReset(req) {
				if err := ctx.resctrlFullReset(next); err != nil {
					return err
				}
			}
		}

		ctx.cap = next
		if err := ctx.buildEngines(); err != nil {
			return err
		}
		if err := ctx.resetAllClasses(); err != nil {
			return err
		}
		return ctx.resetAllAssociations()
	})
}

// requiresFullReset reports whether req changes CDP or MBA-CTRL mode,
// the resctrl "full reset" trigger of spec §4.E.9 ("Resctrl 'full
// reset' (CDP or MBA-CTRL change): full unmount + remount with new
// options, then recreate the COS directories").
func requiresFullReset(req ResetRequest) bool {
	return req.L3CDP != nil || req.L2CDP != nil || req.MBACTRL != nil
}

// applyDirectToggles issues the representative-core MSR writes the
// direct backend needs before the capability snapshot swaps over:
// CDP's QOS_CFG enable bit and I/O-RDT's L3_IO_QOS_CFG enable bit (spec
// §4.E.9).
func (ctx *Context) applyDirectToggles(req ResetRequest) error {
	de, ok := ctx.allocEngine.(*alloc.DirectEngine)
	if !ok {
		return errf(CodeError, "direct backend selected but allocation engine is not a DirectEngine")
	}
	if req.L3CDP != nil {
		if err := de.SetL3QosCfg(*req.L3CDP); err != nil {
			return fmt.Errorf("reset: flipping L3 CDP: %w", err)
		}
	}
	if req.L2CDP != nil {
		if err := de.SetL2QosCfg(*req.L2CDP); err != nil {
			return fmt.Errorf("reset: flipping L2 CDP: %w", err)
		}
	}
	if req.L3IORDT != nil {
		if err := de.SetL3IOQosCfg(*req.L3IORDT); err != nil {
			return fmt.Errorf("reset: flipping I/O-RDT: %w", err)
		}
	}
	return nil
}

// resctrlFullReset unmounts and remounts the resctrl filesystem with
// the mount options next's CDP/CDPL2/MBA-CTRL state implies (spec
// §4.E.9's "full reset"). The remount destroys every existing COS
// directory; buildEngines recreates COS1..COS(n-1) against the new
// capability snapshot once this returns.
func (ctx *Context) resctrlFullReset(next *capability.Set) error {
	if err := resctrl.Unmount(ctx.resctrlRoot); err != nil {
		return fmt.Errorf("reset: unmounting resctrl: %w", err)
	}
	opts := resctrl.MountOptions{
		CDP:     next.L3CA != nil && next.L3CA.CDPEnabled,
		CDPL2:   next.L2CA != nil && next.L2CA.CDPEnabled,
		MBAMBps: next.MBA != nil && next.MBA.CTRLEnabled,
	}
	if err := resctrl.Mount(ctx.resctrlRoot, opts); err != nil {
		return fmt.Errorf("reset: remounting resctrl: %w", err)
	}
	ctx.mountedByUs = true
	return nil
}

// resetAllAssociations re-associates every core (and, on the resctrl
// backend, every still-assigned task) with COS 0, the association half
// of spec §4.E.9's reset algorithm ("re-associate every core/channel
// with COS 0"). Channel re-association is skipped: dispatch's
// opChannelAssoc is false on both backends (neither models a
// clos_tagging write), so there is nothing to re-associate.
func (ctx *Context) resetAllAssociations() error {
	for _, lc := range ctx.topo.Cores() {
		if err := ctx.allocEngine.AssocCore(lc.ID, 0); err != nil {
			return fmt.Errorf("resetting core %d association: %w", lc.ID, err)
		}
	}
	if ctx.backend == BackendResctrl {
		if err := ctx.resetResctrlTasks(); err != nil {
			return err
		}
	}
	return nil
}

// resetResctrlTasks moves every pid still associated with a non-zero
// COS back to COS 0 (spec §4.E.9: "move every pid to COS 0").
func (ctx *Context) resetResctrlTasks() error {
	re, ok := ctx.allocEngine.(*alloc.ResctrlEngine)
	if !ok {
		return errf(CodeError, "resctrl backend selected but allocation engine is not a ResctrlEngine")
	}
	coses, err := re.ExistingCOSes()
	if err != nil {
		return err
	}
	for _, cos := range coses {
		if cos == 0 {
			continue
		}
		pids, err := re.Tasks(cos)
		if err != nil {
			return err
		}
		for _, pid := range pids {
			if err := re.AssocTask(pid, 0); err != nil {
				return fmt.Errorf("resetting task %d association: %w", pid, err)
			}
		}
	}
	return nil
}

// resetAllClasses restores every COS on every resource to the
// platform's widest available mask/throttle, the allocation half of
// spec §4.E.9's reset algorithm.
func (ctx *Context) resetAllClasses() error {
	if ctx.cap.L3CA != nil {
		full := (uint64(1) << uint(ctx.cap.L3CA.NumWays)) - 1
		for _, id := range ctx.topo.L3IDs() {
			for cos := 0; cos < ctx.cap.L3CA.NumClasses; cos++ {
				m := CacheMask{Mask: full}
				if ctx.cap.L3CA.CDPEnabled {
					m = CacheMask{CDP: true, DataMask: full, CodeMask: full}
				}
				if err := ctx.allocEngine.SetL3Mask(id, COS(cos), m); err != nil {
					return fmt.Errorf("resetting L3 COS%d on cluster %d: %w", cos, id, err)
				}
			}
		}
	}
	if ctx.cap.L2CA != nil {
		full := (uint64(1) << uint(ctx.cap.L2CA.NumWays)) - 1
		for _, id := range ctx.topo.L2IDs() {
			for cos := 0; cos < ctx.cap.L2CA.NumClasses; cos++ {
				m := CacheMask{Mask: full}
				if ctx.cap.L2CA.CDPEnabled {
					m = CacheMask{CDP: true, DataMask: full, CodeMask: full}
				}
				if err := ctx.allocEngine.SetL2Mask(id, COS(cos), m); err != nil {
					return fmt.Errorf("resetting L2 COS%d on cluster %d: %w", cos, id, err)
				}
			}
		}
	}
	if ctx.cap.MBA != nil {
		for _, id := range ctx.topo.MBAIDs() {
			for cos := 0; cos < ctx.cap.MBA.NumClasses; cos++ {
				t := Throttle{Percent: ctx.cap.MBA.ThrottleMax, CTRL: ctx.cap.MBA.CTRLEnabled}
				if err := ctx.allocEngine.SetMBA(id, COS(cos), t); err != nil {
					return fmt.Errorf("resetting MBA COS%d on domain %d: %w", cos, id, err)
				}
			}
		}
	}
	if ctx.cap.SMBA != nil {
		for _, id := range ctx.topo.SMBAIDs() {
			for cos := 0; cos < ctx.cap.SMBA.NumClasses; cos++ {
				t := Throttle{Percent: ctx.cap.SMBA.ThrottleMax, CTRL: ctx.cap.SMBA.CTRLEnabled}
				if err := ctx.allocEngine.SetSMBA(id, COS(cos), t); err != nil {
					return fmt.Errorf("resetting SMBA COS%d on domain %d: %w", cos, id, err)
				}
			}
		}
	}
	return nil
}

// ProbeMinCBM discovers the narrowest contiguous cache mask the
// platform's hardware will actually accept for a technology, by writing
// successively wider 1-bit-rooted masks to the resource's highest class
// of service (the class least likely to be in active use for a running
// workload) and reading back what the hardware programmed, restoring
// the class's original mask before returning (spec §4.E notes a
// probe-only read path with no caller-visible side effect).
func (ctx *Context) ProbeMinCBM(tech Technology, resourceID int) (width int, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		var numClasses, numWays int
		var get func(int, COS) (CacheMask, error)
		var set func(int, COS, CacheMask) error
		switch tech {
		case TechL3CA:
			if ctx.cap.L3CA == nil {
				return errf(CodeResource, "L3 CAT not present")
			}
			numClasses, numWays = ctx.cap.L3CA.NumClasses, ctx.cap.L3CA.NumWays
			get, set = ctx.allocEngine.GetL3Mask, ctx.allocEngine.SetL3Mask
		case TechL2CA:
			if ctx.cap.L2CA == nil {
				return errf(CodeResource, "L2 CAT not present")
			}
			numClasses, numWays = ctx.cap.L2CA.NumClasses, ctx.cap.L2CA.NumWays
			get, set = ctx.allocEngine.GetL2Mask, ctx.allocEngine.SetL2Mask
		default:
			return errf(CodeParam, "ProbeMinCBM only supports L3CA/L2CA")
		}
		if numClasses < 1 {
			return errf(CodeResource, "no class of service available to probe with")
		}

		probeCOS := COS(numClasses - 1)
		original, err := get(resourceID, probeCOS)
		if err != nil {
			return err
		}
		defer set(resourceID, probeCOS, original)

		for w := 1; w <= numWays; w++ {
			trial := (uint64(1) << uint(w)) - 1
			if err := set(resourceID, probeCOS, CacheMask{Mask: trial}); err != nil {
				continue
			}
			got, err := get(resourceID, probeCOS)
			if err != nil {
				continue
			}
			if bits.OnesCount64(got.Mask) == w && got.Mask == trial {
				width = w
				return nil
			}
		}
		return errf(CodeError, "hardware rejected every probed mask width")
	})
	return
}

func (ctx *Context) clustersForTargets(kind TargetKind, targets []int) []int {
	switch kind {
	case TargetCores:
		seen := make(map[int]bool)
		var out []int
		for _, core := range targets {
			lc, ok := ctx.topo.Core(core)
			if !ok {
				continue
			}
			if !seen[lc.L3ID] {
				seen[lc.L3ID] = true
				out = append(out, lc.L3ID)
			}
		}
		return out
	case TargetChannels:
		seen := make(map[int]bool)
		var out []int
		for _, ch := range targets {
			c, ok := ctx.topo.Channel(ch)
			if !ok {
				continue
			}
			if !seen[c.L3ID] {
				seen[c.L3ID] = true
				out = append(out, c.L3ID)
			}
		}
		return out
	default:
		// Tasks (and uncore sockets) are not pinned to a known L3
		// cluster ahead of time; monitor every cluster so Poll
		// aggregates wherever the kernel schedules the pid.
		return ctx.topo.L3IDs()
	}
}

// StartGroup begins monitoring events on the given targets, returning a
// live group handle (spec §4.F.1-2).
func (ctx *Context) StartGroup(kind TargetKind, targets []int, events []EventKind) (g *MonitoringGroup, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		clusters := ctx.clustersForTargets(kind, targets)
		var e error
		g, e = ctx.monManager.Start(kind, targets, events, clusters)
		if e == nil {
			ctx.monitoring++
		}
		return e
	})
	return
}

// PollGroup reads every event in g once, returning the updated values.
func (ctx *Context) PollGroup(g *MonitoringGroup) (vals []MonValue, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		var e error
		vals, e = ctx.monManager.Poll(g)
		return e
	})
	return
}

// StopGroup ends monitoring on g, releasing its backend resources.
func (ctx *Context) StopGroup(g *MonitoringGroup) error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.monManager.Stop(g); err != nil {
			return err
		}
		ctx.monitoring--
		return nil
	})
}

// ResetMonitoring tears down every live monitoring group.
func (ctx *Context) ResetMonitoring() error {
	return ctx.withLock(func() error {
		if err := ctx.checkReady(); err != nil {
			return err
		}
		if err := ctx.monManager.Reset(); err != nil {
			return err
		}
		ctx.monitoring = 0
		return nil
	})
}

// CoreAssoc is one entry in PidGetPidAssoc's result: a core the pid's
// threads were found on, and the class of service that core's resctrl
// control group reports.
type CoreAssoc struct {
	Core int
	COS  COS
}

// PidGetPidAssoc is the one public call that allocates a caller-visible
// slice (spec §6): it walks the resctrl control groups looking for pid
// in each group's tasks file, and reports the class of service plus
// every core in the owning group. It requires the resctrl backend,
// since the direct backend has no pid-level association.
func (ctx *Context) PidGetPidAssoc(pid int) (assocs []CoreAssoc, err error) {
	err = ctx.withLock(func() error {
		if e := ctx.checkReady(); e != nil {
			return e
		}
		if e := ctx.dispatch(opTaskAssoc); e != nil {
			return e
		}
		result, e := pidAssocFromResctrl(ctx.resctrlRoot, pid)
		assocs = result
		return e
	})
	return
}

func pidAssocFromResctrl(root string, pid int) ([]CoreAssoc, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("pqos: listing %s: %w", root, err)
	}
	groups := []string{root}
	for _, ent := range entries {
		if ent.IsDir() && strings.HasPrefix(ent.Name(), "COS") {
			groups = append(groups, filepath.Join(root, ent.Name()))
		}
	}
	for _, dir := range groups {
		g := resctrl.NewGroup(dir)
		tasks, err := g.Tasks()
		if err != nil {
			continue
		}
		if !containsPid(tasks, pid) {
			continue
		}
		cos := COS(0)
		if base := filepath.Base(dir); strings.HasPrefix(base, "COS") {
			if n, err := strconv.Atoi(strings.TrimPrefix(base, "COS")); err == nil {
				cos = COS(n)
			}
		}
		cores, err := g.Cpus()
		if err != nil {
			return nil, fmt.Errorf("pqos: reading %s cpus: %w", dir, err)
		}
		out := make([]CoreAssoc, 0, len(cores))
		for _, c := range cores {
			out = append(out, CoreAssoc{Core: c, COS: cos})
		}
		return out, nil
	}
	return nil, errf(CodeParam, "pid %d not found in any resctrl group", pid)
}

func containsPid(tasks []int, pid int) bool {
	for _, t := range tasks {
		if t == pid {
			return true
		}
	}
	return false
}
