package capability

import (
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DiscoverResctrl builds a Set by inspecting /sys/fs/resctrl/info/* on
// the resctrl backend (spec §4.C: "through filesystem inspection of
// /sys/fs/resctrl/info/*"). infoRoot is normally "/sys/fs/resctrl/info";
// tests point it at a fake directory tree instead.
func DiscoverResctrl(infoRoot string) (*Set, error) {
	set := &Set{}

	if l3, err := discoverResctrlCAT(infoRoot, "L3"); err == nil {
		set.L3CA = &L3CA{
			NumClasses:                l3.numClasses,
			NumWays:                   l3.numWays,
			WayContentionMask:         l3.contentionMask,
			CDPSupported:              dirExists(filepath.Join(infoRoot, "L3CODE")),
			CDPEnabled:                l3.cdpEnabled,
			NonContiguousCBMSupported: l3.nonContiguous,
		}
		if _, err := os.Stat(filepath.Join(infoRoot, "..", "io_alloc")); err == nil {
			set.L3CA.IORDTSupported = true
		}
	}
	if l2, err := discoverResctrlCAT(infoRoot, "L2"); err == nil {
		set.L2CA = &L2CA{
			NumClasses:                l2.numClasses,
			NumWays:                   l2.numWays,
			WayContentionMask:         l2.contentionMask,
			CDPSupported:              dirExists(filepath.Join(infoRoot, "L2CODE")),
			CDPEnabled:                l2.cdpEnabled,
			NonContiguousCBMSupported: l2.nonContiguous,
		}
	}
	if mba, err := discoverResctrlMB(infoRoot); err == nil {
		set.MBA = mba
	}
	if smba, err := discoverResctrlSMBA(infoRoot); err == nil {
		set.SMBA = smba
	}
	if mon, err := discoverResctrlMON(infoRoot); err == nil {
		set.MON = mon
	}

	if set.L3CA == nil && set.L2CA == nil && set.MBA == nil && set.SMBA == nil && set.MON == nil {
		return nil, fmt.Errorf("capability: no RDT feature detected under %s", infoRoot)
	}
	return set, nil
}

type catInfo struct {
	numClasses     int
	numWays        int
	contentionMask uint64
	nonContiguous  bool
	cdpEnabled     bool
}

func discoverResctrlCAT(infoRoot, name string) (catInfo, error) {
	dir := filepath.Join(infoRoot, name)
	if !dirExists(dir) {
		return catInfo{}, fmt.Errorf("capability: %s not present", dir)
	}
	cbmMask, err := readHexFile(filepath.Join(dir, "cbm_mask"))
	if err != nil {
		return catInfo{}, err
	}
	numClasses := readIntFile(filepath.Join(dir, "num_closids"), 0)
	minCBMBits := readIntFile(filepath.Join(dir, "min_cbm_bits"), 1)
	shareable := readHexFileOrZero(filepath.Join(dir, "shareable_bits"))
	_ = minCBMBits
	return catInfo{
		numClasses:     numClasses,
		numWays:        bits.Len64(cbmMask),
		contentionMask: shareable,
		nonContiguous:  readBoolFile(filepath.Join(dir, "non_contiguous_cbm")),
		cdpEnabled:     false,
	}, nil
}

func discoverResctrlMB(infoRoot string) (*MBA, error) {
	dir := filepath.Join(infoRoot, "MB")
	if !dirExists(dir) {
		return nil, fmt.Errorf("capability: %s not present", dir)
	}
	return &MBA{
		NumClasses:     readIntFile(filepath.Join(dir, "num_closids"), 0),
		ThrottleMax:    100,
		ThrottleStep:   readIntFile(filepath.Join(dir, "bandwidth_gran"), 10),
		IsLinear:       readIntFile(filepath.Join(dir, "delay_linear"), 1) == 1,
		CTRLSupported:  readBoolFile(filepath.Join(dir, "mba_MBps")),
		MBA40Supported: dirExists(filepath.Join(infoRoot, "MB40")),
	}, nil
}

func discoverResctrlSMBA(infoRoot string) (*SMBA, error) {
	dir := filepath.Join(infoRoot, "SMBA")
	if !dirExists(dir) {
		return nil, fmt.Errorf("capability: %s not present", dir)
	}
	return &SMBA{
		NumClasses:    readIntFile(filepath.Join(dir, "num_closids"), 0),
		ThrottleMax:   100,
		ThrottleStep:  readIntFile(filepath.Join(dir, "bandwidth_gran"), 10),
		IsLinear:      false,
		CTRLSupported: readBoolFile(filepath.Join(dir, "mba_MBps")),
	}, nil
}

func discoverResctrlMON(infoRoot string) (*MON, error) {
	dir := filepath.Join(infoRoot, "L3_MON")
	if !dirExists(dir) {
		return nil, fmt.Errorf("capability: %s not present", dir)
	}
	features := readStringFile(filepath.Join(dir, "mon_features"))
	var events []MonEvent
	maxRMID := uint32(readIntFile(filepath.Join(dir, "num_rmids"), 0))
	for _, line := range strings.Split(features, "\n") {
		line = strings.TrimSpace(line)
		switch line {
		case "llc_occupancy":
			events = append(events, MonEvent{Kind: EventLLCOccupancy, MaxRMID: maxRMID})
		case "mbm_local_bytes":
			events = append(events, MonEvent{Kind: EventLocalMemBW, MaxRMID: maxRMID})
		case "mbm_total_bytes":
			events = append(events, MonEvent{Kind: EventTotalMemBW, MaxRMID: maxRMID})
		}
	}
	return &MON{
		MaxRMID: maxRMID,
		Events:  events,
		SNCMode: SNCOff,
	}, nil
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func readHexFile(path string) (uint64, error) {
	s := readStringFile(path)
	if s == "" {
		return 0, fmt.Errorf("capability: %s missing or empty", path)
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("capability: parsing %s: %w", path, err)
	}
	return v, nil
}

func readHexFileOrZero(path string) uint64 {
	v, err := readHexFile(path)
	if err != nil {
		return 0
	}
	return v
}

func readIntFile(path string, def int) int {
	s := readStringFile(path)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func readBoolFile(path string) bool {
	return readStringFile(path) == "1"
}

func readStringFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
