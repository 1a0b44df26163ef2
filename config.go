package pqos

import (
	"os"

	"github.com/rdtkit/pqosgo/topology"
)

// Backend names one of the two mutually exclusive control paths.
type Backend int

const (
	// BackendAuto lets the arbiter pick: prefer resctrl, mounting it if
	// it is not mounted yet, and fall back to direct MSR/MMIO only when
	// that mount fails.
	BackendAuto Backend = iota
	BackendDirect
	BackendResctrl
)

func (b Backend) String() string {
	switch b {
	case BackendDirect:
		return "MSR"
	case BackendResctrl:
		return "OS"
	default:
		return "Auto"
	}
}

// Config is the caller's request at Init. Every field is optional; the
// zero value requests auto-detection with every optional feature off.
type Config struct {
	// Interface requests a backend. RDT_IFACE in the environment
	// overrides this (spec §6: "pins the backend choice and overrides
	// the caller's request").
	Interface Backend

	// RequestL3CDP, RequestL2CDP, RequestMBACTRL, RequestSMBACTRL,
	// RequestIORDT, and RequestMBA40 ask the arbiter to enable the
	// corresponding feature at Init, subject to capability support.
	RequestL3CDP    bool
	RequestL2CDP    bool
	RequestMBACTRL  bool
	RequestSMBACTRL bool
	RequestIORDT    bool
	RequestMBA40    bool

	// ResctrlRoot overrides the resctrl mount point (default
	// resctrl.DefaultRoot); tests point this at a scratch directory.
	ResctrlRoot string

	// LockPath overrides the process-wide lock file path (default
	// lock.DefaultPath); tests point this at a scratch file.
	LockPath string

	// ChannelCatalog is the opaque, platform-supplied I/O RDT channel
	// table (spec §1); nil means no I/O RDT channels are known.
	ChannelCatalog []topology.Channel

	// Logger receives structured log lines; nopLogger if nil.
	Logger Logger
}

// resolveInterface applies the RDT_IFACE environment override on top
// of the caller's requested backend (spec §6).
func (c Config) resolveInterface() Backend {
	switch os.Getenv("RDT_IFACE") {
	case "OS":
		return BackendResctrl
	case "MSR", "MMIO":
		return BackendDirect
	default:
		return c.Interface
	}
}

func (c Config) logger() Logger {
	if c.Logger == nil {
		return nopLogger{}
	}
	return c.Logger
}
