package alloc

import "fmt"

// AssignRequest names the targets and the technologies that must all
// have a free class on those targets simultaneously (spec §4.E.7).
type AssignRequest struct {
	Tech        Technology
	Cores       []int
	Tasks       []int
	Channels    []int
	L3ClusterOf func(core int) int
	MBADomainOf func(core int) int
	L2ClusterOf func(core int) int
	NumClasses  func(tech Technology, resourceID int) (int, error)
	CoreCOS     func(core int) (COS, error)
}

// Assign finds a class of service free across every requested
// technology for the given cores, then programs it onto every core,
// task, and channel in the request. It never returns COS 0.
func Assign(e Engine, req AssignRequest) (COS, error) {
	if req.Tech == 0 {
		return 0, fmt.Errorf("alloc: assign requires at least one technology")
	}

	resourceIDs, err := effectiveResourceIDs(req)
	if err != nil {
		return 0, err
	}

	n, err := minNumClasses(req, resourceIDs)
	if err != nil {
		return 0, err
	}
	if n < 2 {
		return 0, fmt.Errorf("alloc: resource: no usable class of service beyond 0")
	}

	used := make([]bool, n)
	for _, core := range req.Cores {
		cos, err := req.CoreCOS(core)
		if err != nil {
			return 0, fmt.Errorf("alloc: reading current COS of core %d: %w", core, err)
		}
		if int(cos) < n {
			used[cos] = true
		}
	}

	// Scan from N-1 down to 1; COS 0 is the platform default and is
	// never handed out.
	chosen := COS(-1)
	for k := n - 1; k >= 1; k-- {
		if !used[k] {
			chosen = COS(k)
			break
		}
	}
	if chosen < 0 {
		return 0, fmt.Errorf("alloc: resource: no free class of service in the requested cluster(s)")
	}

	for _, core := range req.Cores {
		if err := e.AssocCore(core, chosen); err != nil {
			return 0, fmt.Errorf("alloc: associating core %d with COS %d: %w", core, chosen, err)
		}
	}
	for _, pid := range req.Tasks {
		if err := e.AssocTask(pid, chosen); err != nil {
			return 0, fmt.Errorf("alloc: associating task %d with COS %d: %w", pid, chosen, err)
		}
	}
	for _, ch := range req.Channels {
		if err := e.AssocChannel(ch, chosen); err != nil {
			return 0, fmt.Errorf("alloc: associating channel %d with COS %d: %w", ch, chosen, err)
		}
	}
	return chosen, nil
}

// Release re-associates every target with COS 0 (spec §4.E.8).
func Release(e Engine, cores, tasks, channels []int) error {
	for _, core := range cores {
		if err := e.AssocCore(core, 0); err != nil {
			return fmt.Errorf("alloc: releasing core %d: %w", core, err)
		}
	}
	for _, pid := range tasks {
		if err := e.AssocTask(pid, 0); err != nil {
			return fmt.Errorf("alloc: releasing task %d: %w", pid, err)
		}
	}
	for _, ch := range channels {
		if err := e.AssocChannel(ch, 0); err != nil {
			return fmt.Errorf("alloc: releasing channel %d: %w", ch, err)
		}
	}
	return nil
}

// effectiveResourceIDs determines, per requested technology, the
// single resource id all cores must share (spec §4.E.7: "all cores
// must share the same L3 cluster ... mismatch -> Param").
func effectiveResourceIDs(req AssignRequest) (map[Technology]int, error) {
	ids := make(map[Technology]int)
	if req.Tech.Has(TechL3CA) {
		id, err := singleResourceID("L3 cluster", req.Cores, req.L3ClusterOf)
		if err != nil {
			return nil, err
		}
		ids[TechL3CA] = id
	}
	if req.Tech.Has(TechMBA) {
		id, err := singleResourceID("MBA domain", req.Cores, req.MBADomainOf)
		if err != nil {
			return nil, err
		}
		ids[TechMBA] = id
	}
	if req.Tech.Has(TechL2CA) {
		id, err := singleResourceID("L2 cluster", req.Cores, req.L2ClusterOf)
		if err != nil {
			return nil, err
		}
		ids[TechL2CA] = id
	}
	return ids, nil
}

func singleResourceID(label string, cores []int, of func(int) int) (int, error) {
	if len(cores) == 0 || of == nil {
		return 0, fmt.Errorf("alloc: param: no cores given to determine %s", label)
	}
	id := of(cores[0])
	for _, c := range cores[1:] {
		if of(c) != id {
			return 0, fmt.Errorf("alloc: param: cores span more than one %s", label)
		}
	}
	return id, nil
}

func minNumClasses(req AssignRequest, resourceIDs map[Technology]int) (int, error) {
	n := -1
	for tech, id := range resourceIDs {
		c, err := req.NumClasses(tech, id)
		if err != nil {
			return 0, fmt.Errorf("alloc: reading class count: %w", err)
		}
		if n == -1 || c < n {
			n = c
		}
	}
	if n == -1 {
		return 0, fmt.Errorf("alloc: param: no technology requested")
	}
	return n, nil
}
