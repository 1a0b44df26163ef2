package mon

import (
	"fmt"

	"github.com/rdtkit/pqosgo/capability"
	"github.com/rdtkit/pqosgo/hw"
	"github.com/rdtkit/pqosgo/topology"
)

// DirectRegisterCatalog is the opaque MSR layout the direct monitoring
// backend programs against (spec §6: event-select and event-counter
// registers for the monitoring path, treated as an opaque constant
// table).
type DirectRegisterCatalog struct {
	PQRAssocBase     func(core int) uint32
	PQRAssocCOSShift uint
	PQRAssocCOSMask  uint64
	PQRAssocRMIDMask uint64

	EventSelectReg  uint32
	EventCounterReg uint32
	EventSelectIDs  map[capability.EventKind]uint64
}

// DirectEngine implements Engine over per-core RMID assignment and the
// IA32_QM_EVTSEL/QM_CTR-style monitoring registers (spec §4.F.2:
// "Direct backend ... allocate an RMID per involved L3 cluster from
// that cluster's free pool. For each core in the group, RMW the
// PQR_ASSOC register to install the chosen RMID").
type DirectEngine struct {
	msr     *hw.MSR
	topo    *topology.Topology
	regs    DirectRegisterCatalog
	pools   map[int]*RMIDPool
	maxOcc  uint64
	priorRMID map[*Group]map[int]uint32
}

// NewDirectEngine builds a DirectEngine. maxRMID and maxThresholdOccupancy
// come from the MON capability descriptor.
func NewDirectEngine(msr *hw.MSR, topo *topology.Topology, regs DirectRegisterCatalog, maxRMID uint32, maxThresholdOccupancy uint64) *DirectEngine {
	pools := make(map[int]*RMIDPool)
	for _, l3 := range topo.L3IDs() {
		pools[l3] = NewRMIDPool(l3, maxRMID)
	}
	return &DirectEngine{
		msr:       msr,
		topo:      topo,
		regs:      regs,
		pools:     pools,
		maxOcc:    maxThresholdOccupancy,
		priorRMID: make(map[*Group]map[int]uint32),
	}
}

func (e *DirectEngine) coreRMID(core int) (uint32, error) {
	raw, err := e.msr.Read(core, e.regs.PQRAssocBase(core))
	if err != nil {
		return 0, fmt.Errorf("reading PQR_ASSOC on core %d: %w", core, err)
	}
	return uint32(raw & e.regs.PQRAssocRMIDMask), nil
}

func (e *DirectEngine) setCoreRMID(core int, rmid uint32) error {
	addr := e.regs.PQRAssocBase(core)
	return e.msr.ReadModifyWrite(core, addr, func(cur uint64) uint64 {
		cur &^= e.regs.PQRAssocRMIDMask
		cur |= uint64(rmid) & e.regs.PQRAssocRMIDMask
		return cur
	})
}

func (e *DirectEngine) Bind(g *Group) error {
	if g.Kind != TargetCores {
		return fmt.Errorf("backend mismatch: direct monitoring only supports core targets")
	}
	prior := make(map[int]uint32)
	clusterOf := make(map[int]int)
	for _, core := range g.Targets {
		lc, ok := e.topo.Core(core)
		if !ok {
			return fmt.Errorf("param: unknown core %d", core)
		}
		clusterOf[core] = lc.L3ID
		rmid, err := e.coreRMID(core)
		if err != nil {
			return err
		}
		// Prior assignment is saved so the core can be returned to its
		// previous monitoring group on stop (spec §4.F.2).
		prior[core] = rmid
	}

	assignedByCluster := make(map[int]uint32)
	for _, cluster := range g.clusters {
		pool, ok := e.pools[cluster]
		if !ok {
			return fmt.Errorf("param: unknown L3 cluster %d", cluster)
		}
		rmid, err := pool.Assign()
		if err != nil {
			return err
		}
		assignedByCluster[cluster] = rmid
		g.rmidByCluster[cluster] = rmid
	}

	for _, core := range g.Targets {
		rmid := assignedByCluster[clusterOf[core]]
		if err := e.setCoreRMID(core, rmid); err != nil {
			return fmt.Errorf("installing RMID on core %d: %w", core, err)
		}
	}
	e.priorRMID[g] = prior
	return nil
}

// reapplyAssignment re-installs the group's RMID on every core it owns
// before polling, in case the kernel moved tracking elsewhere (spec
// §4.F.3: "before polling, re-apply the group's monitoring-group
// assignment for every core the group owns").
func (e *DirectEngine) reapplyAssignment(g *Group) error {
	for _, core := range g.Targets {
		lc, ok := e.topo.Core(core)
		if !ok {
			continue
		}
		rmid, ok := g.rmidByCluster[lc.L3ID]
		if !ok {
			continue
		}
		cur, err := e.coreRMID(core)
		if err != nil {
			return err
		}
		if cur != rmid {
			if err := e.setCoreRMID(core, rmid); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *DirectEngine) readEventCounter(cluster int, rmid uint32, kind capability.EventKind) (uint64, error) {
	evID, ok := e.regs.EventSelectIDs[kind]
	if !ok {
		return 0, fmt.Errorf("no event-select id configured for %v", kind)
	}
	lc, ok := e.topo.RepresentativeCore(topology.DomainL3, cluster)
	if !ok {
		return 0, fmt.Errorf("no core found in L3 cluster %d", cluster)
	}
	core := lc.ID
	selector := (uint64(rmid) << 32) | evID
	if err := e.msr.Write(core, e.regs.EventSelectReg, selector); err != nil {
		return 0, fmt.Errorf("writing event select: %w", err)
	}
	raw, err := e.msr.Read(core, e.regs.EventCounterReg)
	if err != nil {
		return 0, fmt.Errorf("reading event counter: %w", err)
	}
	return raw, nil
}

func (e *DirectEngine) Poll(g *Group) ([]Value, error) {
	if err := e.reapplyAssignment(g); err != nil {
		return nil, err
	}
	var values []Value
	for _, kind := range g.Events {
		if kind.IsPMUOnly() {
			continue
		}
		var sum uint64
		for _, cluster := range g.clusters {
			rmid := g.rmidByCluster[cluster]
			v, err := e.readEventCounter(cluster, rmid, kind)
			if err != nil {
				return nil, err
			}
			sum += v
		}
		isCounter := kind != capability.EventLLCOccupancy
		values = append(values, g.recordPoll(kind, sum, isCounter))
	}

	// Drain every cluster's pending-decay queue: a released RMID rejoins
	// the free list once its occupancy reads at or below threshold.
	for cluster, pool := range e.pools {
		for rmid := range pool.pending {
			occ, err := e.readEventCounter(cluster, rmid, capability.EventLLCOccupancy)
			if err == nil {
				pool.ObserveOccupancy(rmid, occ, e.maxOcc)
			}
		}
	}
	return values, nil
}

func (e *DirectEngine) Unbind(g *Group) error {
	prior := e.priorRMID[g]
	for _, core := range g.Targets {
		rmid := prior[core]
		if err := e.setCoreRMID(core, rmid); err != nil {
			return fmt.Errorf("restoring prior RMID on core %d: %w", core, err)
		}
	}
	delete(e.priorRMID, g)
	for cluster, rmid := range g.rmidByCluster {
		e.pools[cluster].Release(rmid)
	}
	return nil
}

func (e *DirectEngine) Reset() error {
	for _, pool := range e.pools {
		*pool = *NewRMIDPool(pool.clusterID, pool.maxRMID)
	}
	return nil
}
