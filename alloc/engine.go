package alloc

// ResetConfig names the feature toggles a Reset call may flip (spec
// §4.E.9). A nil pointer means "leave as-is"; non-nil means "set to
// this value". Neither engine implements Reset (both return an error);
// the reset sequence is Context.Reset in package pqos, which does not
// check these toggles against the platform's support bits.
type ResetConfig struct {
	L3CDP    *bool
	L2CDP    *bool
	L3IORDT  *bool
	MBACTRL  *bool
	SMBACTRL *bool
	MBA40    *bool
}

// Engine is the backend-specific half of the allocation engine: raw
// per-class reads/writes and associations. Assign, Release, and the
// unused-COS search in assign.go are written only against this
// interface, so they work identically over DirectEngine and
// ResctrlEngine (spec §9: "replace function-pointer dispatch ... with a
// capability-set interface and two concrete implementations").
type Engine interface {
	// NumClasses returns the class count currently available for tech
	// on the given resource id (L3/L2 cluster, MBA/SMBA domain).
	NumClasses(tech Technology, resourceID int) (int, error)

	GetL3Mask(resourceID int, cos COS) (CacheMask, error)
	SetL3Mask(resourceID int, cos COS, mask CacheMask) error
	GetL2Mask(resourceID int, cos COS) (CacheMask, error)
	SetL2Mask(resourceID int, cos COS, mask CacheMask) error
	GetMBA(resourceID int, cos COS) (Throttle, error)
	SetMBA(resourceID int, cos COS, t Throttle) error
	GetSMBA(resourceID int, cos COS) (Throttle, error)
	SetSMBA(resourceID int, cos COS, t Throttle) error

	// CoreCOS and AssocCore read/write a core's current class of
	// service (spec §4.E.4).
	CoreCOS(core int) (COS, error)
	AssocCore(core int, cos COS) error

	// AssocTask associates a pid with a class (resctrl only; the direct
	// backend returns an ErrBackendMismatch-shaped error).
	AssocTask(pid int, cos COS) error

	// AssocChannel associates an I/O channel with a class; only legal
	// when I/O-RDT is enabled and the channel supports clos_tagging.
	AssocChannel(channel int, cos COS) error

	Reset(cfg ResetConfig) error
}
