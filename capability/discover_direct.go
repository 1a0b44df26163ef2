package capability

import "fmt"

// PlatformCatalog is the opaque, per-platform constant table the direct
// (MSR) backend discovery reads from: CPUID leaf 0x10 sub-leaf layouts,
// vendor (Intel/AMD) dispatch, and which feature families exist at all.
// Spec §1 treats this catalog as an external collaborator ("Per-platform
// MSR/MMIO address catalogs, treated as an opaque constant table
// consumed by the core"); this package only consumes it, it never probes
// CPUID itself. Every field here is exactly what CPUID leaf 0x10 (or the
// AMD equivalent) reports — num_classes and num_ways are independent
// fields on real hardware, never derived from one another.
type PlatformCatalog struct {
	VendorAMD bool

	L3CAPresent                bool
	L3CANumClasses             int
	L3CANumWays                int
	L3CAWayContentionMask      uint64
	L3CACDPSupported           bool
	L3CAIORDTSupported         bool
	L3CANonContiguousSupported bool

	L2CAPresent                bool
	L2CANumClasses             int
	L2CANumWays                int
	L2CAWayContentionMask      uint64
	L2CACDPSupported           bool
	L2CANonContiguousSupported bool

	MBAPresent     bool
	MBANumClasses  int
	MBAThrottleMax int
	MBAStep        int
	MBACTRLSupport bool
	MBA40Support   bool

	SMBAPresent     bool
	SMBANumClasses  int
	SMBAThrottleMax int
	SMBAStep        int
	SMBACTRLSupport bool

	MONPresent bool
	MaxRMID    uint32
	L3Size     uint64
	MONEvents  []MonEvent
	SNCNum     int
}

// DiscoverDirect builds a Set from a platform catalog for the direct
// (MSR/MMIO) backend. Each feature family is independently absent
// ("not supported", spec §4.C) rather than failing the whole call; the
// overall call only fails if literally nothing was detected, matching
// "the overall init fails only if no feature was detected at all".
func DiscoverDirect(cat PlatformCatalog) (*Set, error) {
	set := &Set{}

	if cat.L3CAPresent {
		set.L3CA = &L3CA{
			NumClasses:                cat.L3CANumClasses,
			NumWays:                   cat.L3CANumWays,
			WayContentionMask:         cat.L3CAWayContentionMask,
			CDPSupported:              cat.L3CACDPSupported,
			IORDTSupported:            cat.L3CAIORDTSupported,
			NonContiguousCBMSupported: cat.L3CANonContiguousSupported,
		}
	}
	if cat.L2CAPresent {
		set.L2CA = &L2CA{
			NumClasses:                cat.L2CANumClasses,
			NumWays:                   cat.L2CANumWays,
			WayContentionMask:         cat.L2CAWayContentionMask,
			CDPSupported:              cat.L2CACDPSupported,
			NonContiguousCBMSupported: cat.L2CANonContiguousSupported,
		}
	}
	if cat.MBAPresent {
		set.MBA = &MBA{
			NumClasses:     cat.MBANumClasses,
			ThrottleMax:    cat.MBAThrottleMax,
			ThrottleStep:   cat.MBAStep,
			IsLinear:       !cat.VendorAMD,
			CTRLSupported:  cat.MBACTRLSupport,
			MBA40Supported: cat.MBA40Support,
		}
	}
	if cat.SMBAPresent {
		set.SMBA = &SMBA{
			NumClasses:    cat.SMBANumClasses,
			ThrottleMax:   cat.SMBAThrottleMax,
			ThrottleStep:  cat.SMBAStep,
			IsLinear:      false,
			CTRLSupported: cat.SMBACTRLSupport,
		}
	}
	if cat.MONPresent {
		set.MON = &MON{
			MaxRMID: cat.MaxRMID,
			L3Size:  cat.L3Size,
			Events:  append([]MonEvent(nil), cat.MONEvents...),
			SNCNum:  cat.SNCNum,
			SNCMode: SNCOff,
		}
	}

	if set.L3CA == nil && set.L2CA == nil && set.MBA == nil && set.SMBA == nil && set.MON == nil {
		return nil, fmt.Errorf("capability: no RDT feature detected on this platform")
	}
	return set, nil
}
