package alloc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rdtkit/pqosgo/capability"
	"github.com/rdtkit/pqosgo/resctrl"
	"github.com/rdtkit/pqosgo/topology"
)

// ResctrlEngine implements Engine over the kernel's resctrl filesystem
// (spec §4.E.1: "read the current schemata file, patch the single
// resource's entry, write the schemata back").
type ResctrlEngine struct {
	root string
	topo *topology.Topology
	cap  *capability.Set
}

// NewResctrlEngine builds a ResctrlEngine rooted at the mounted resctrl
// filesystem (normally resctrl.DefaultRoot).
func NewResctrlEngine(root string, topo *topology.Topology, cap *capability.Set) *ResctrlEngine {
	return &ResctrlEngine{root: root, topo: topo, cap: cap}
}

func (e *ResctrlEngine) groupPath(cos COS) string {
	if cos == 0 {
		return e.root
	}
	return filepath.Join(e.root, fmt.Sprintf("COS%d", cos))
}

func (e *ResctrlEngine) NumClasses(tech Technology, resourceID int) (int, error) {
	switch tech {
	case TechL3CA:
		if e.cap.L3CA == nil {
			return 0, fmt.Errorf("alloc: resource: L3 CAT not present")
		}
		return e.cap.L3CA.NumClasses, nil
	case TechL2CA:
		if e.cap.L2CA == nil {
			return 0, fmt.Errorf("alloc: resource: L2 CAT not present")
		}
		return e.cap.L2CA.NumClasses, nil
	case TechMBA:
		if e.cap.MBA == nil {
			return 0, fmt.Errorf("alloc: resource: MBA not present")
		}
		return e.cap.MBA.NumClasses, nil
	case TechSMBA:
		if e.cap.SMBA == nil {
			return 0, fmt.Errorf("alloc: resource: SMBA not present")
		}
		return e.cap.SMBA.NumClasses, nil
	default:
		return 0, fmt.Errorf("alloc: param: unknown technology %v", tech)
	}
}

func (e *ResctrlEngine) GetL3Mask(resourceID int, cos COS) (CacheMask, error) {
	return e.getCacheMask("L3", "L3CODE", "L3DATA", e.cap.L3CA != nil && e.cap.L3CA.CDPEnabled, resourceID, cos)
}

func (e *ResctrlEngine) SetL3Mask(resourceID int, cos COS, mask CacheMask) error {
	if e.cap.L3CA == nil {
		return fmt.Errorf("alloc: resource: L3 CAT not present")
	}
	if err := ValidateCacheMask(effectiveMask(mask), e.cap.L3CA.NumWays, e.cap.L3CA.CDPEnabled, mask.CDP, !e.cap.L3CA.NonContiguousCBMSupported); err != nil {
		return err
	}
	return e.setCacheMask("L3", "L3CODE", "L3DATA", e.cap.L3CA.CDPEnabled, resourceID, cos, mask)
}

func (e *ResctrlEngine) GetL2Mask(resourceID int, cos COS) (CacheMask, error) {
	return e.getCacheMask("L2", "L2CODE", "L2DATA", e.cap.L2CA != nil && e.cap.L2CA.CDPEnabled, resourceID, cos)
}

func (e *ResctrlEngine) SetL2Mask(resourceID int, cos COS, mask CacheMask) error {
	if e.cap.L2CA == nil {
		return fmt.Errorf("alloc: resource: L2 CAT not present")
	}
	if err := ValidateCacheMask(effectiveMask(mask), e.cap.L2CA.NumWays, e.cap.L2CA.CDPEnabled, mask.CDP, !e.cap.L2CA.NonContiguousCBMSupported); err != nil {
		return err
	}
	return e.setCacheMask("L2", "L2CODE", "L2DATA", e.cap.L2CA.CDPEnabled, resourceID, cos, mask)
}

func (e *ResctrlEngine) getCacheMask(plain, code, data string, cdp bool, resourceID int, cos COS) (CacheMask, error) {
	g := resctrl.NewGroup(e.groupPath(cos))
	s, err := g.Schemata()
	if err != nil {
		return CacheMask{}, fmt.Errorf("alloc: %w", err)
	}
	if cdp {
		return CacheMask{CDP: true, DataMask: s.HexEntry(data, resourceID), CodeMask: s.HexEntry(code, resourceID)}, nil
	}
	return CacheMask{Mask: s.HexEntry(plain, resourceID)}, nil
}

func (e *ResctrlEngine) setCacheMask(plain, code, data string, cdp bool, resourceID int, cos COS, mask CacheMask) error {
	g := resctrl.NewGroup(e.groupPath(cos))
	s, err := g.Schemata()
	if err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	if cdp {
		d, c := mask.DataMask, mask.CodeMask
		if !mask.CDP {
			d, c = mask.Mask, mask.Mask
		}
		s.SetHexEntry(data, resourceID, d)
		s.SetHexEntry(code, resourceID, c)
	} else {
		s.SetHexEntry(plain, resourceID, mask.Mask)
	}
	if err := g.SetSchemata(s); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	return nil
}

func (e *ResctrlEngine) GetMBA(resourceID int, cos COS) (Throttle, error) {
	if e.cap.MBA == nil {
		return Throttle{}, fmt.Errorf("alloc: resource: MBA not present")
	}
	g := resctrl.NewGroup(e.groupPath(cos))
	s, err := g.Schemata()
	if err != nil {
		return Throttle{}, fmt.Errorf("alloc: %w", err)
	}
	return Throttle{Percent: s.MB[resourceID], CTRL: e.cap.MBA.CTRLEnabled}, nil
}

func (e *ResctrlEngine) SetMBA(resourceID int, cos COS, t Throttle) error {
	if e.cap.MBA == nil {
		return fmt.Errorf("alloc: resource: MBA not present")
	}
	if err := ValidateThrottle(t.Percent, e.cap.MBA.ThrottleMax, e.cap.MBA.CTRLEnabled, t.CTRL); err != nil {
		return err
	}
	g := resctrl.NewGroup(e.groupPath(cos))
	s, err := g.Schemata()
	if err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	s.SetDecEntry("MB", resourceID, t.Percent)
	if err := g.SetSchemata(s); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	return nil
}

func (e *ResctrlEngine) GetSMBA(resourceID int, cos COS) (Throttle, error) {
	if e.cap.SMBA == nil {
		return Throttle{}, fmt.Errorf("alloc: resource: SMBA not present")
	}
	g := resctrl.NewGroup(e.groupPath(cos))
	s, err := g.Schemata()
	if err != nil {
		return Throttle{}, fmt.Errorf("alloc: %w", err)
	}
	return Throttle{Percent: s.SMBA[resourceID], CTRL: e.cap.SMBA.CTRLEnabled}, nil
}

func (e *ResctrlEngine) SetSMBA(resourceID int, cos COS, t Throttle) error {
	if e.cap.SMBA == nil {
		return fmt.Errorf("alloc: resource: SMBA not present")
	}
	if err := ValidateThrottle(t.Percent, e.cap.SMBA.ThrottleMax, e.cap.SMBA.CTRLEnabled, t.CTRL); err != nil {
		return err
	}
	g := resctrl.NewGroup(e.groupPath(cos))
	s, err := g.Schemata()
	if err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	s.SetDecEntry("SMBA", resourceID, t.Percent)
	if err := g.SetSchemata(s); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	return nil
}

// existingGroupCOSes lists COS 0 plus every existing COS<k> directory
// under root, the full set of control groups a core can currently
// belong to.
func (e *ResctrlEngine) existingGroupCOSes() ([]COS, error) {
	entries, err := os.ReadDir(e.root)
	if err != nil {
		return nil, fmt.Errorf("alloc: listing %s: %w", e.root, err)
	}
	coses := []COS{0}
	for _, ent := range entries {
		if !ent.IsDir() || !strings.HasPrefix(ent.Name(), "COS") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(ent.Name(), "COS"))
		if err != nil {
			continue
		}
		coses = append(coses, COS(n))
	}
	return coses, nil
}

// EnsureCOSDirs creates the COS1..COS(n-1) control-group directories
// under root if they are not already present (spec §6 state machine:
// COS directory "absent -> created (on library init if num_classes>1)").
// COS 0 is the kernel-provisioned default group and is never created
// here.
func (e *ResctrlEngine) EnsureCOSDirs(n int) error {
	for cos := 1; cos < n; cos++ {
		g := resctrl.NewGroup(e.groupPath(COS(cos)))
		if err := g.Create(); err != nil {
			return fmt.Errorf("alloc: %w", err)
		}
	}
	return nil
}

// ExistingCOSes exports existingGroupCOSes for reset orchestration that
// lives outside this package.
func (e *ResctrlEngine) ExistingCOSes() ([]COS, error) {
	return e.existingGroupCOSes()
}

// Tasks reads the pid list currently associated with cos.
func (e *ResctrlEngine) Tasks(cos COS) ([]int, error) {
	g := resctrl.NewGroup(e.groupPath(cos))
	pids, err := g.Tasks()
	if err != nil {
		return nil, fmt.Errorf("alloc: %w", err)
	}
	return pids, nil
}

func (e *ResctrlEngine) CoreCOS(core int) (COS, error) {
	coses, err := e.existingGroupCOSes()
	if err != nil {
		return 0, err
	}
	for _, cos := range coses {
		g := resctrl.NewGroup(e.groupPath(cos))
		cores, err := g.Cpus()
		if err != nil {
			return 0, fmt.Errorf("alloc: %w", err)
		}
		if containsCore(cores, core) {
			return cos, nil
		}
	}
	return 0, fmt.Errorf("alloc: core %d not found in any COS group", core)
}

func (e *ResctrlEngine) AssocCore(core int, cos COS) error {
	coses, err := e.existingGroupCOSes()
	if err != nil {
		return err
	}
	// Remove the core from every other group's cpus file before adding
	// it to the target, since a core belongs to exactly one CTRL group.
	for _, k := range coses {
		if k == cos {
			continue
		}
		g := resctrl.NewGroup(e.groupPath(k))
		cores, err := g.Cpus()
		if err != nil {
			return fmt.Errorf("alloc: %w", err)
		}
		if removed, changed := removeCore(cores, core); changed {
			if err := g.SetCpus(removed); err != nil {
				return fmt.Errorf("alloc: %w", err)
			}
		}
	}
	g := resctrl.NewGroup(e.groupPath(cos))
	cores, err := g.Cpus()
	if err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	if containsCore(cores, core) {
		return nil
	}
	if err := g.SetCpus(append(cores, core)); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	return nil
}

func removeCore(cores []int, core int) ([]int, bool) {
	out := cores[:0]
	changed := false
	for _, c := range cores {
		if c == core {
			changed = true
			continue
		}
		out = append(out, c)
	}
	return out, changed
}

func containsCore(cores []int, core int) bool {
	for _, c := range cores {
		if c == core {
			return true
		}
	}
	return false
}

func (e *ResctrlEngine) AssocTask(pid int, cos COS) error {
	g := resctrl.NewGroup(e.groupPath(cos))
	if err := g.AddTask(pid); err != nil {
		return fmt.Errorf("alloc: %w", err)
	}
	return nil
}

func (e *ResctrlEngine) AssocChannel(channel int, cos COS) error {
	if e.cap.L3CA == nil || !e.cap.L3CA.IORDTEnabled {
		return fmt.Errorf("alloc: resource: I/O-RDT is not enabled")
	}
	ch, ok := e.topo.Channel(channel)
	if !ok {
		return fmt.Errorf("alloc: param: unknown I/O channel %d", channel)
	}
	if !ch.ClosTagging {
		return fmt.Errorf("alloc: param: channel %d does not support clos_tagging", channel)
	}
	return fmt.Errorf("alloc: channel association requires a kernel interface not modeled by this resctrl tree")
}

func (e *ResctrlEngine) Reset(cfg ResetConfig) error {
	return fmt.Errorf("alloc: reset is orchestrated by the context, not the resctrl engine directly")
}
