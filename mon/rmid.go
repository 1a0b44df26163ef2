package mon

import "fmt"

// RMIDPool is one L3 cluster's free list of hardware RMIDs, with a
// deferred reclamation queue for RMIDs whose LLC occupancy has not yet
// decayed below the platform's max_threshold_occupancy (spec §3 RMID,
// §4.F.4: "Free RMIDs subject to the occupancy-decay rule").
type RMIDPool struct {
	clusterID int
	maxRMID   uint32
	free      []uint32
	assigned  map[uint32]bool
	pending   map[uint32]bool
}

// NewRMIDPool builds a pool with RMIDs [1, maxRMID] free; RMID 0 is the
// platform default and is never handed out by Assign.
func NewRMIDPool(clusterID int, maxRMID uint32) *RMIDPool {
	p := &RMIDPool{
		clusterID: clusterID,
		maxRMID:   maxRMID,
		assigned:  make(map[uint32]bool),
		pending:   make(map[uint32]bool),
	}
	for r := uint32(1); r <= maxRMID; r++ {
		p.free = append(p.free, r)
	}
	return p
}

// Assign pops the RMID at the head of the free list: ascending at first,
// with reclaimed RMIDs rejoining at the tail. RMIDs in the pending-decay queue
// are not eligible (spec §8 property from S6: "start during this
// window must not return that RMID").
func (p *RMIDPool) Assign() (uint32, error) {
	if len(p.free) == 0 {
		return 0, fmt.Errorf("mon: resource: no free RMID in L3 cluster %d", p.clusterID)
	}
	r := p.free[0]
	p.free = p.free[1:]
	p.assigned[r] = true
	return r, nil
}

// Release moves an assigned RMID into the pending-decay queue rather
// than returning it to the free list immediately (spec §4.F.4).
func (p *RMIDPool) Release(rmid uint32) {
	if !p.assigned[rmid] {
		return
	}
	delete(p.assigned, rmid)
	p.pending[rmid] = true
}

// ObserveOccupancy is called once per poll with an RMID's current LLC
// occupancy; an RMID in the pending queue whose occupancy has decayed
// at or below threshold is returned to the free list (spec §4.F.4,
// "RMID: free -> assigned(group) -> pending_decay -> free").
func (p *RMIDPool) ObserveOccupancy(rmid uint32, occupancy, threshold uint64) {
	if !p.pending[rmid] {
		return
	}
	if occupancy <= threshold {
		delete(p.pending, rmid)
		p.free = append(p.free, rmid)
	}
}

// Pending reports whether rmid is currently in the pending-decay queue.
func (p *RMIDPool) Pending(rmid uint32) bool { return p.pending[rmid] }
