package pqos

import (
	"os"
	"path/filepath"

	"github.com/rdtkit/pqosgo/alloc"
	"github.com/rdtkit/pqosgo/capability"
	monreg "github.com/rdtkit/pqosgo/mon"
	"github.com/rdtkit/pqosgo/resctrl"
	"github.com/rdtkit/pqosgo/topology"
)

// resctrlMountOptions translates the caller's CDP/CDPL2/MBA-CTRL
// requests into the mount-time option set; resctrl only accepts cdp and
// cdpl2 at mount time, not afterward (spec §6).
func resctrlMountOptions(cfg Config) resctrl.MountOptions {
	return resctrl.MountOptions{
		CDP:     cfg.RequestL3CDP,
		CDPL2:   cfg.RequestL2CDP,
		MBAMBps: cfg.RequestMBACTRL,
	}
}

func mountResctrl(root string, opts resctrl.MountOptions) error {
	return resctrl.Mount(root, opts)
}

// chooseBackend implements the priority order from spec §4.D: an
// RDT_IFACE environment override wins outright, then the caller's
// explicit Config.Interface request, and only then auto-detection
// (resctrl if already usable, otherwise direct MSR/MMIO). In auto mode,
// if resctrl is supported by the kernel but not yet mounted, this
// process mounts it and remembers that it did so, so Fini/Reset only
// unmount what this process itself mounted.
func chooseBackend(cfg Config, resctrlRoot string) (Backend, bool, error) {
	requested := cfg.resolveInterface()

	switch requested {
	case BackendDirect:
		return BackendDirect, false, nil
	case BackendResctrl:
		mounted, err := ensureResctrlMounted(cfg, resctrlRoot)
		if err != nil {
			return 0, false, err
		}
		return BackendResctrl, mounted, nil
	default:
		if resctrlUsable(resctrlRoot) {
			return BackendResctrl, false, nil
		}
		mounted, err := ensureResctrlMounted(cfg, resctrlRoot)
		if err == nil {
			return BackendResctrl, mounted, nil
		}
		return BackendDirect, false, nil
	}
}

// resctrlUsable reports whether the resctrl filesystem is already
// mounted and exposing its top-level cpus file (spec §4.D).
func resctrlUsable(root string) bool {
	_, err := os.Stat(filepath.Join(root, "cpus"))
	return err == nil
}

func ensureResctrlMounted(cfg Config, root string) (bool, error) {
	if resctrlUsable(root) {
		return false, nil
	}
	opts := resctrlMountOptions(cfg)
	if err := mountResctrl(root, opts); err != nil {
		return false, err
	}
	return true, nil
}

func discoverTopology(backend Backend, resctrlRoot string, channels []topology.Channel) (*topology.Topology, error) {
	return topology.Discover("", channels)
}

func discoverCapability(backend Backend, resctrlRoot string) (*capability.Set, error) {
	switch backend {
	case BackendResctrl:
		return capability.DiscoverResctrl(filepath.Join(resctrlRoot, "info"))
	default:
		return capability.DiscoverDirect(platformCatalog())
	}
}

func processID() int { return os.Getpid() }

// directRegisterCatalog is the opaque per-platform MSR address table
// the allocation engine programs against on the direct backend (spec
// §6: "treated as an opaque constant table"). These addresses match
// the publicly documented Intel SDM layout for CAT/CDP/MBA.
func directRegisterCatalog() alloc.RegisterCatalog {
	return alloc.RegisterCatalog{
		PQRAssocBase:     func(core int) uint32 { return 0xc8f },
		PQRAssocCOSShift: 32,
		PQRAssocCOSMask:  0xffff,
		PQRAssocRMIDMask: 0x3ff,
		L3MaskBase:       0xc90,
		L2MaskBase:       0xd10,
		MBAMaskBase:      0xd50,
		SMBAMaskBase:     0xc00,
		L3QosCfg:         func(clusterID int) uint32 { return 0xc81 },
		L2QosCfg:         func(clusterID int) uint32 { return 0xc82 },
		L3IOQosCfg:       func(clusterID int) uint32 { return 0xc83 },
	}
}

func directMonRegisterCatalog() monreg.DirectRegisterCatalog {
	return monreg.DirectRegisterCatalog{
		PQRAssocBase:     func(core int) uint32 { return 0xc8f },
		PQRAssocCOSShift: 32,
		PQRAssocCOSMask:  0xffff,
		PQRAssocRMIDMask: 0x3ff,
		EventSelectReg:   0xc8d,
		EventCounterReg:  0xc8e,
		EventSelectIDs: map[capability.EventKind]uint64{
			capability.EventLLCOccupancy: 1,
			capability.EventLocalMemBW:   2,
			capability.EventTotalMemBW:   3,
		},
	}
}

// platformCatalog is the opaque CPUID-leaf-0x10-derived constant table
// consumed (never produced) by capability.DiscoverDirect. Real values
// are probed once at process start by a CPUID-reading collaborator
// outside this library's scope (spec §1); a conservative built-in
// default lets DiscoverDirect degrade gracefully rather than panic when
// no such collaborator has populated it yet.
func platformCatalog() capability.PlatformCatalog {
	return capability.PlatformCatalog{
		L3CAPresent:           true,
		L3CANumClasses:        16,
		L3CANumWays:           20,
		L3CAWayContentionMask: 0,
		L3CACDPSupported:      true,

		MBAPresent:     true,
		MBANumClasses:  8,
		MBAThrottleMax: 90,
		MBAStep:        10,
		MBACTRLSupport: true,

		MONPresent: true,
		MaxRMID:    255,
		MONEvents: []capability.MonEvent{
			{Kind: capability.EventLLCOccupancy, MaxRMID: 255},
			{Kind: capability.EventLocalMemBW, MaxRMID: 255},
			{Kind: capability.EventTotalMemBW, MaxRMID: 255},
		},
	}
}
