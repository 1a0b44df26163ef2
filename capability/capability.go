// Package capability discovers, for each RDT feature family, whether the
// platform (and, on the resctrl backend, the kernel) supports it, and
// builds the immutable descriptor the rest of the library validates
// every allocation/monitoring call against.
//
// Capability is modeled as a Go discriminated union — an interface
// implemented by five value types, one per feature family — rather than
// the tagged union the original C library uses for the same purpose
// (spec §9: "Sum type over capability variants"). Set is the snapshot a
// Context holds; reconfiguration (CDP on/off, MBA-CTRL on/off, ...)
// produces a new Set rather than mutating fields in place, so a reader
// mid-call never observes a torn mix of old and new feature state.
package capability

// EventKind names one monitorable counter.
type EventKind int

const (
	EventLLCOccupancy EventKind = iota
	EventLocalMemBW
	EventTotalMemBW
	EventRemoteMemBW
	EventLLCMisses
	EventLLCReferences
	EventIPC
	EventUncoreLLCMissRead
	EventUncoreLLCMissWrite
	EventUncoreLLCRefRead
	EventUncoreLLCRefWrite
)

func (k EventKind) String() string {
	switch k {
	case EventLLCOccupancy:
		return "llc_occupancy"
	case EventLocalMemBW:
		return "local_mem_bw"
	case EventTotalMemBW:
		return "total_mem_bw"
	case EventRemoteMemBW:
		return "remote_mem_bw"
	case EventLLCMisses:
		return "llc_misses"
	case EventLLCReferences:
		return "llc_references"
	case EventIPC:
		return "ipc"
	case EventUncoreLLCMissRead:
		return "uncore_llc_miss_read"
	case EventUncoreLLCMissWrite:
		return "uncore_llc_miss_write"
	case EventUncoreLLCRefRead:
		return "uncore_llc_ref_read"
	case EventUncoreLLCRefWrite:
		return "uncore_llc_ref_write"
	default:
		return "unknown"
	}
}

// IsPMUOnly reports whether an event requires a companion RDT-hardware
// event to be selected alongside it (spec §4.F.1): IPC and the plain LLC
// miss/reference counters are perf-subsystem events with no RMID of
// their own.
func (k EventKind) IsPMUOnly() bool {
	switch k {
	case EventIPC, EventLLCMisses, EventLLCReferences:
		return true
	default:
		return false
	}
}

// MonEvent describes one monitorable event and its hardware scaling.
type MonEvent struct {
	Kind        EventKind
	ScaleFactor uint64
	MaxRMID     uint32
}

// SNCMode names a sub-NUMA-clustering mode, which affects how monitoring
// totals are aggregated across L3 clusters within one socket.
type SNCMode int

const (
	SNCOff SNCMode = iota
	SNCLocal
	SNCTotal
)

// Capability is implemented by each feature family's descriptor. The
// marker method keeps it a closed sum type: only the five types in this
// package may implement it.
type Capability interface {
	capabilityMarker()
}

// L3CA describes L3 Cache Allocation Technology support.
type L3CA struct {
	NumClasses                int
	NumWays                   int
	WaySize                   uint64
	WayContentionMask         uint64
	CDPSupported              bool
	CDPEnabled                bool
	IORDTSupported            bool
	IORDTEnabled              bool
	NonContiguousCBMSupported bool
}

func (L3CA) capabilityMarker() {}

// L2CA describes L2 Cache Allocation Technology support.
type L2CA struct {
	NumClasses                int
	NumWays                   int
	WaySize                   uint64
	WayContentionMask         uint64
	CDPSupported              bool
	CDPEnabled                bool
	NonContiguousCBMSupported bool
}

func (L2CA) capabilityMarker() {}

// MBA describes Memory Bandwidth Allocation support.
type MBA struct {
	NumClasses     int
	ThrottleMax    int
	ThrottleStep   int
	IsLinear       bool
	CTRLSupported  bool
	CTRLEnabled    bool
	MBA40Supported bool
	MBA40Enabled   bool
}

func (MBA) capabilityMarker() {}

// SMBA describes Slow Memory Bandwidth Allocation support (AMD).
type SMBA struct {
	NumClasses    int
	ThrottleMax   int
	ThrottleStep  int
	IsLinear      bool
	CTRLSupported bool
	CTRLEnabled   bool
}

func (SMBA) capabilityMarker() {}

// MON describes monitoring (CMT/MBM) support.
type MON struct {
	MaxRMID uint32
	L3Size  uint64
	Events  []MonEvent
	SNCNum  int
	SNCMode SNCMode
	IORDTOn bool
}

func (MON) capabilityMarker() {}

// HasEvent reports whether kind is among the platform's monitorable
// events.
func (m MON) HasEvent(kind EventKind) bool {
	for _, e := range m.Events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Set is the immutable snapshot a Context holds. A nil field means the
// feature family was not detected at all (spec §4.C: "either produces a
// populated descriptor or reports not present").
type Set struct {
	L3CA *L3CA
	L2CA *L2CA
	MBA  *MBA
	SMBA *SMBA
	MON  *MON
}

// Clone returns a deep copy, so reconfiguration entry points can build a
// new Set to swap in without aliasing the previous snapshot's event
// slice or struct fields (spec §9: "reset produces a new capability
// snapshot; context swaps to the new snapshot atomically").
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	out := &Set{}
	if s.L3CA != nil {
		c := *s.L3CA
		out.L3CA = &c
	}
	if s.L2CA != nil {
		c := *s.L2CA
		out.L2CA = &c
	}
	if s.MBA != nil {
		c := *s.MBA
		out.MBA = &c
	}
	if s.SMBA != nil {
		c := *s.SMBA
		out.SMBA = &c
	}
	if s.MON != nil {
		c := *s.MON
		c.Events = append([]MonEvent(nil), s.MON.Events...)
		out.MON = &c
	}
	return out
}

// WithL3CDP returns a clone with L3CA's CDPEnabled flipped and
// NumClasses halved (enabling) or doubled (disabling), the capability
// side of CDP toggling (spec §3: "reported num_classes is halved").
// It is a no-op clone if L3CA is absent or CDP is unsupported.
func (s *Set) WithL3CDP(enabled bool) *Set {
	out := s.Clone()
	if out == nil || out.L3CA == nil || !out.L3CA.CDPSupported || out.L3CA.CDPEnabled == enabled {
		return out
	}
	if enabled {
		out.L3CA.NumClasses /= 2
	} else {
		out.L3CA.NumClasses *= 2
	}
	out.L3CA.CDPEnabled = enabled
	return out
}

// WithL2CDP is WithL3CDP for L2CA.
func (s *Set) WithL2CDP(enabled bool) *Set {
	out := s.Clone()
	if out == nil || out.L2CA == nil || !out.L2CA.CDPSupported || out.L2CA.CDPEnabled == enabled {
		return out
	}
	if enabled {
		out.L2CA.NumClasses /= 2
	} else {
		out.L2CA.NumClasses *= 2
	}
	out.L2CA.CDPEnabled = enabled
	return out
}

// WithIORDT returns a clone with L3CA's IORDTEnabled flipped.
func (s *Set) WithIORDT(enabled bool) *Set {
	out := s.Clone()
	if out == nil || out.L3CA == nil || !out.L3CA.IORDTSupported {
		return out
	}
	out.L3CA.IORDTEnabled = enabled
	if out.MON != nil {
		out.MON.IORDTOn = enabled
	}
	return out
}

// WithMBACTRL returns a clone with MBA's CTRLEnabled flipped.
func (s *Set) WithMBACTRL(enabled bool) *Set {
	out := s.Clone()
	if out == nil || out.MBA == nil || !out.MBA.CTRLSupported {
		return out
	}
	out.MBA.CTRLEnabled = enabled
	return out
}

// WithSMBACTRL returns a clone with SMBA's CTRLEnabled flipped.
func (s *Set) WithSMBACTRL(enabled bool) *Set {
	out := s.Clone()
	if out == nil || out.SMBA == nil || !out.SMBA.CTRLSupported {
		return out
	}
	out.SMBA.CTRLEnabled = enabled
	return out
}

// WithMBA40 returns a clone with MBA's MBA40Enabled flipped.
func (s *Set) WithMBA40(enabled bool) *Set {
	out := s.Clone()
	if out == nil || out.MBA == nil || !out.MBA.MBA40Supported {
		return out
	}
	out.MBA.MBA40Enabled = enabled
	return out
}
