package alloc

import (
	"fmt"

	"github.com/rdtkit/pqosgo/capability"
	"github.com/rdtkit/pqosgo/hw"
	"github.com/rdtkit/pqosgo/topology"
)

// RegisterCatalog is the opaque per-platform MSR address table the
// direct backend programs against (spec §6: "Hardware register layout
// (MSR backend). Treated as an opaque constant table."). PQRAssoc is
// per-core; the rest are base addresses indexed by COS.
type RegisterCatalog struct {
	PQRAssocBase    func(core int) uint32
	PQRAssocCOSShift uint
	PQRAssocCOSMask  uint64
	PQRAssocRMIDMask uint64

	L3MaskBase uint32
	L2MaskBase uint32
	MBAMaskBase uint32
	SMBAMaskBase uint32

	L3QosCfg   func(clusterID int) uint32
	L2QosCfg   func(clusterID int) uint32
	L3IOQosCfg func(clusterID int) uint32

	VendorAMD bool
}

// DirectEngine implements Engine over raw MSR access, matching spec
// §4.E.1's direct-backend description: "pick a representative core for
// the resource; issue one MSR write per COS (two writes per COS when
// CDP is enabled ... to consecutive registers)".
type DirectEngine struct {
	msr   *hw.MSR
	topo  *topology.Topology
	cap   *capability.Set
	regs  RegisterCatalog
}

// NewDirectEngine builds a DirectEngine bound to the given MSR device,
// topology, capability snapshot, and register catalog.
func NewDirectEngine(msr *hw.MSR, topo *topology.Topology, cap *capability.Set, regs RegisterCatalog) *DirectEngine {
	return &DirectEngine{msr: msr, topo: topo, cap: cap, regs: regs}
}

func (e *DirectEngine) representativeCore(domain topology.Domain, resourceID int) (int, error) {
	core, ok := e.topo.RepresentativeCore(domain, resourceID)
	if !ok {
		return 0, fmt.Errorf("alloc: no core found in %v %d", domain, resourceID)
	}
	return core.ID, nil
}

func (e *DirectEngine) NumClasses(tech Technology, resourceID int) (int, error) {
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

func (e *DirectEngine) GetL3Mask(resourceID int, cos COS) (CacheMask, error) {
	return e.getCacheMask(topology.DomainL3, e.regs.L3MaskBase, e.cap.L3CA != nil && e.cap.L3CA.CDPEnabled, resourceID, cos)
}

func (e *DirectEngine) SetL3Mask(resourceID int, cos COS, mask CacheMask) error {
	if e.cap.L3CA == nil {
		return fmt.Errorf("alloc: resource: L3 CAT not present")
	}
	if err := ValidateCacheMask(effectiveMask(mask), e.cap.L3CA.NumWays, e.cap.L3CA.CDPEnabled, mask.CDP, true); err != nil {
		return err
	}
	return e.setCacheMask(topology.DomainL3, e.regs.L3MaskBase, e.cap.L3CA.CDPEnabled, resourceID, cos, mask)
}

func (e *DirectEngine) GetL2Mask(resourceID int, cos COS) (CacheMask, error) {
	return e.getCacheMask(topology.DomainL2, e.regs.L2MaskBase, e.cap.L2CA != nil && e.cap.L2CA.CDPEnabled, resourceID, cos)
}

func (e *DirectEngine) SetL2Mask(resourceID int, cos COS, mask CacheMask) error {
	if e.cap.L2CA == nil {
		return fmt.Errorf("alloc: resource: L2 CAT not present")
	}
	if err := ValidateCacheMask(effectiveMask(mask), e.cap.L2CA.NumWays, e.cap.L2CA.CDPEnabled, mask.CDP, true); err != nil {
		return err
	}
	return e.setCacheMask(topology.DomainL2, e.regs.L2MaskBase, e.cap.L2CA.CDPEnabled, resourceID, cos, mask)
}

func effectiveMask(m CacheMask) uint64 {
	if m.CDP {
		return m.DataMask | m.CodeMask
	}
	return m.Mask
}

func (e *DirectEngine) getCacheMask(domain topology.Domain, base uint32, cdp bool, resourceID int, cos COS) (CacheMask, error) {
	core, err := e.representativeCore(domain, resourceID)
	if err != nil {
		return CacheMask{}, err
	}
	if cdp {
		dataAddr := base + uint32(2*int(cos))
		codeAddr := base + uint32(2*int(cos)+1)
		data, err := e.msr.Read(core, dataAddr)
		if err != nil {
			return CacheMask{}, fmt.Errorf("alloc: reading L3/L2 data mask: %w", err)
		}
		code, err := e.msr.Read(core, codeAddr)
		if err != nil {
			return CacheMask{}, fmt.Errorf("alloc: reading L3/L2 code mask: %w", err)
		}
		return CacheMask{CDP: true, DataMask: data, CodeMask: code}, nil
	}
	addr := base + uint32(cos)
	v, err := e.msr.Read(core, addr)
	if err != nil {
		return CacheMask{}, fmt.Errorf("alloc: reading cache mask: %w", err)
	}
	return CacheMask{Mask: v}, nil
}

func (e *DirectEngine) setCacheMask(domain topology.Domain, base uint32, cdp bool, resourceID int, cos COS, mask CacheMask) error {
	core, err := e.representativeCore(domain, resourceID)
	if err != nil {
		return err
	}
	if cdp {
		data, code := mask.DataMask, mask.CodeMask
		if !mask.CDP {
			// A non-CDP set while CDP is on applies the same value to
			// both halves (spec §8.2).
			data, code = mask.Mask, mask.Mask
		}
		if err := e.msr.Write(core, base+uint32(2*int(cos)), data); err != nil {
			return fmt.Errorf("alloc: writing data mask: %w", err)
		}
		if err := e.msr.Write(core, base+uint32(2*int(cos)+1), code); err != nil {
			return fmt.Errorf("alloc: writing code mask: %w", err)
		}
		return nil
	}
	if err := e.msr.Write(core, base+uint32(cos), mask.Mask); err != nil {
		return fmt.Errorf("alloc: writing cache mask: %w", err)
	}
	return nil
}

func (e *DirectEngine) GetMBA(resourceID int, cos COS) (Throttle, error) {
	if e.cap.MBA == nil {
		return Throttle{}, fmt.Errorf("alloc: resource: MBA not present")
	}
	core, err := e.representativeCore(topology.DomainMBA, resourceID)
	if err != nil {
		return Throttle{}, err
	}
	raw, err := e.msr.Read(core, e.regs.MBAMaskBase+uint32(cos))
	if err != nil {
		return Throttle{}, fmt.Errorf("alloc: reading MBA register: %w", err)
	}
	if e.cap.MBA.IsLinear {
		percent := e.cap.MBA.ThrottleMax - int(raw)
		return Throttle{Percent: percent, CTRL: e.cap.MBA.CTRLEnabled}, nil
	}
	return Throttle{Percent: int(raw), CTRL: e.cap.MBA.CTRLEnabled}, nil
}

func (e *DirectEngine) SetMBA(resourceID int, cos COS, t Throttle) error {
	if e.cap.MBA == nil {
		return fmt.Errorf("alloc: resource: MBA not present")
	}
	if err := ValidateThrottle(t.Percent, e.cap.MBA.ThrottleMax, e.cap.MBA.CTRLEnabled, t.CTRL); err != nil {
		return err
	}
	core, err := e.representativeCore(topology.DomainMBA, resourceID)
	if err != nil {
		return err
	}
	var reg int
	if e.cap.MBA.IsLinear {
		reg = LinearMBARegister(e.cap.MBA.ThrottleMax, e.cap.MBA.ThrottleStep, t.Percent)
	} else {
		reg = t.Percent
	}
	if err := e.msr.Write(core, e.regs.MBAMaskBase+uint32(cos), uint64(reg)); err != nil {
		return fmt.Errorf("alloc: writing MBA register: %w", err)
	}
	return nil
}

func (e *DirectEngine) GetSMBA(resourceID int, cos COS) (Throttle, error) {
	if e.cap.SMBA == nil {
		return Throttle{}, fmt.Errorf("alloc: resource: SMBA not present")
	}
	core, err := e.representativeCore(topology.DomainSMBA, resourceID)
	if err != nil {
		return Throttle{}, err
	}
	raw, err := e.msr.Read(core, e.regs.SMBAMaskBase+uint32(cos))
	if err != nil {
		return Throttle{}, fmt.Errorf("alloc: reading SMBA register: %w", err)
	}
	return Throttle{Percent: int(raw), CTRL: e.cap.SMBA.CTRLEnabled}, nil
}

func (e *DirectEngine) SetSMBA(resourceID int, cos COS, t Throttle) error {
	if e.cap.SMBA == nil {
		return fmt.Errorf("alloc: resource: SMBA not present")
	}
	if err := ValidateThrottle(t.Percent, e.cap.SMBA.ThrottleMax, e.cap.SMBA.CTRLEnabled, t.CTRL); err != nil {
		return err
	}
	core, err := e.representativeCore(topology.DomainSMBA, resourceID)
	if err != nil {
		return err
	}
	// SMBA is always a direct (non-linear) write on AMD.
	if err := e.msr.Write(core, e.regs.SMBAMaskBase+uint32(cos), uint64(t.Percent)); err != nil {
		return fmt.Errorf("alloc: writing SMBA register: %w", err)
	}
	return nil
}

func (e *DirectEngine) CoreCOS(core int) (COS, error) {
	raw, err := e.msr.Read(core, e.regs.PQRAssocBase(core))
	if err != nil {
		return 0, fmt.Errorf("alloc: reading PQR_ASSOC: %w", err)
	}
	return COS((raw >> e.regs.PQRAssocCOSShift) & e.regs.PQRAssocCOSMask), nil
}

func (e *DirectEngine) AssocCore(core int, cos COS) error {
	addr := e.regs.PQRAssocBase(core)
	err := e.msr.ReadModifyWrite(core, addr, func(cur uint64) uint64 {
		cur &^= e.regs.PQRAssocCOSMask << e.regs.PQRAssocCOSShift
		cur |= (uint64(cos) & e.regs.PQRAssocCOSMask) << e.regs.PQRAssocCOSShift
		return cur
	})
	if err != nil {
		return fmt.Errorf("alloc: associating core %d with COS %d: %w", core, cos, err)
	}
	return nil
}

// SetL3QosCfg flips the CDP-enable bit of L3_QOS_CFG on a representative
// core of every L3 cluster (spec §4.E.9: "set the L3_QOS_CFG ... CDP bit
// on a representative core of every cluster").
func (e *DirectEngine) SetL3QosCfg(enabled bool) error {
	return e.setQosCfgBit(topology.DomainL3, e.topo.L3IDs(), e.regs.L3QosCfg, enabled)
}

// SetL2QosCfg is SetL3QosCfg for L2_QOS_CFG.
func (e *DirectEngine) SetL2QosCfg(enabled bool) error {
	return e.setQosCfgBit(topology.DomainL2, e.topo.L2IDs(), e.regs.L2QosCfg, enabled)
}

// SetL3IOQosCfg flips the I/O-RDT enable bit of L3_IO_QOS_CFG on a
// representative core of every L3 cluster (spec §4.E.9: "set the
// L3_IO_QOS_CFG bit per cluster").
func (e *DirectEngine) SetL3IOQosCfg(enabled bool) error {
	return e.setQosCfgBit(topology.DomainL3, e.topo.L3IDs(), e.regs.L3IOQosCfg, enabled)
}

func (e *DirectEngine) setQosCfgBit(domain topology.Domain, clusterIDs []int, reg func(int) uint32, enabled bool) error {
	if reg == nil {
		return fmt.Errorf("alloc: resource: QOS_CFG register not present in this catalog")
	}
	for _, id := range clusterIDs {
		core, err := e.representativeCore(domain, id)
		if err != nil {
			return err
		}
		addr := reg(id)
		err = e.msr.ReadModifyWrite(core, addr, func(cur uint64) uint64 {
			if enabled {
				return cur | 1
			}
			return cur &^ 1
		})
		if err != nil {
			return fmt.Errorf("alloc: writing QOS_CFG on cluster %d: %w", id, err)
		}
	}
	return nil
}

func (e *DirectEngine) AssocTask(pid int, cos COS) error {
	return fmt.Errorf("alloc: backend mismatch: task association requires the resctrl backend")
}

func (e *DirectEngine) AssocChannel(channel int, cos COS) error {
	if e.cap.L3CA == nil || !e.cap.L3CA.IORDTEnabled {
		return fmt.Errorf("alloc: resource: I/O-RDT is not enabled")
	}
	return fmt.Errorf("alloc: channel association requires a channel-tagging register not modeled by this catalog")
}

func (e *DirectEngine) Reset(cfg ResetConfig) error {
	return fmt.Errorf("alloc: reset is orchestrated by the context, not the direct engine directly")
}
