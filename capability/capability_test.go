package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func directCatalog() PlatformCatalog {
	return PlatformCatalog{
		L3CAPresent:           true,
		L3CANumClasses:        16,
		L3CANumWays:           20,
		L3CAWayContentionMask: 0,
		L3CACDPSupported:      true,
		MBAPresent:            true,
		MBANumClasses:         8,
		MBAThrottleMax:        100,
		MBAStep:               10,
		MONPresent:            true,
		MaxRMID:               256,
		L3Size:                42 * 1024 * 1024,
		MONEvents: []MonEvent{
			{Kind: EventLLCOccupancy, MaxRMID: 256},
			{Kind: EventLocalMemBW, MaxRMID: 256},
		},
	}
}

func TestDiscoverDirectPopulatesPresentFamilies(t *testing.T) {
	set, err := DiscoverDirect(directCatalog())
	if err != nil {
		t.Fatalf("DiscoverDirect: %v", err)
	}
	if set.L3CA == nil || set.L3CA.NumClasses != 16 {
		t.Fatalf("L3CA not populated correctly: %+v", set.L3CA)
	}
	if set.L2CA != nil {
		t.Fatalf("L2CA should be absent, got %+v", set.L2CA)
	}
	if set.MBA == nil || set.MBA.NumClasses != 8 {
		t.Fatalf("MBA not populated correctly: %+v", set.MBA)
	}
	if set.SMBA != nil {
		t.Fatalf("SMBA should be absent, got %+v", set.SMBA)
	}
	if set.MON == nil || !set.MON.HasEvent(EventLLCOccupancy) {
		t.Fatalf("MON not populated correctly: %+v", set.MON)
	}
}

func TestDiscoverDirectFailsWhenNothingPresent(t *testing.T) {
	if _, err := DiscoverDirect(PlatformCatalog{}); err == nil {
		t.Fatal("expected an error when no feature family is present")
	}
}

func TestDiscoverDirectNumClassesIndependentOfNumWays(t *testing.T) {
	// num_classes and num_ways must not be cross-derived: a platform can
	// report 16 ways but only 4 usable classes.
	cat := directCatalog()
	cat.L3CANumWays = 16
	cat.L3CANumClasses = 4
	set, err := DiscoverDirect(cat)
	if err != nil {
		t.Fatalf("DiscoverDirect: %v", err)
	}
	if set.L3CA.NumWays != 16 || set.L3CA.NumClasses != 4 {
		t.Fatalf("got NumWays=%d NumClasses=%d, want 16/4", set.L3CA.NumWays, set.L3CA.NumClasses)
	}
}

func writeInfoFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s/%s: %v", dir, name, err)
	}
}

func fakeResctrlInfoRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	l3 := filepath.Join(root, "L3")
	writeInfoFile(t, l3, "cbm_mask", "fffff\n")
	writeInfoFile(t, l3, "num_closids", "16\n")
	writeInfoFile(t, l3, "min_cbm_bits", "2\n")
	writeInfoFile(t, l3, "shareable_bits", "0\n")
	writeInfoFile(t, l3, "non_contiguous_cbm", "0\n")

	mb := filepath.Join(root, "MB")
	writeInfoFile(t, mb, "num_closids", "8\n")
	writeInfoFile(t, mb, "bandwidth_gran", "10\n")
	writeInfoFile(t, mb, "delay_linear", "1\n")
	writeInfoFile(t, mb, "mba_MBps", "0\n")

	mon := filepath.Join(root, "L3_MON")
	writeInfoFile(t, mon, "num_rmids", "256\n")
	writeInfoFile(t, mon, "mon_features", "llc_occupancy\nmbm_local_bytes\nmbm_total_bytes\n")

	return root
}

func TestDiscoverResctrlParsesInfoFiles(t *testing.T) {
	root := fakeResctrlInfoRoot(t)
	set, err := DiscoverResctrl(root)
	if err != nil {
		t.Fatalf("DiscoverResctrl: %v", err)
	}
	if set.L3CA == nil || set.L3CA.NumClasses != 16 || set.L3CA.NumWays != 20 {
		t.Fatalf("L3CA: %+v", set.L3CA)
	}
	if set.MBA == nil || set.MBA.NumClasses != 8 || !set.MBA.IsLinear {
		t.Fatalf("MBA: %+v", set.MBA)
	}
	if set.MON == nil || set.MON.MaxRMID != 256 {
		t.Fatalf("MON: %+v", set.MON)
	}
	for _, k := range []EventKind{EventLLCOccupancy, EventLocalMemBW, EventTotalMemBW} {
		if !set.MON.HasEvent(k) {
			t.Fatalf("expected event %v to be present", k)
		}
	}
}

func TestDiscoverResctrlFailsOnEmptyRoot(t *testing.T) {
	if _, err := DiscoverResctrl(t.TempDir()); err == nil {
		t.Fatal("expected an error for an info root with no feature directories")
	}
}

func TestSetCloneIsIndependentOfOriginal(t *testing.T) {
	set, err := DiscoverDirect(directCatalog())
	if err != nil {
		t.Fatalf("DiscoverDirect: %v", err)
	}
	clone := set.Clone()
	clone.L3CA.NumClasses = 999
	clone.MON.Events[0].Kind = EventIPC

	if set.L3CA.NumClasses == 999 {
		t.Fatal("mutating clone.L3CA leaked into original")
	}
	if set.MON.Events[0].Kind == EventIPC {
		t.Fatal("mutating clone.MON.Events leaked into original")
	}
	if diff := cmp.Diff(directCatalogExpectedL3CA(), *set.L3CA); diff != "" {
		t.Fatalf("original L3CA mutated (-want +got):\n%s", diff)
	}
}

func directCatalogExpectedL3CA() L3CA {
	return L3CA{
		NumClasses:    16,
		NumWays:       20,
		CDPSupported:  true,
		WaySize:       0,
		WayContentionMask: 0,
	}
}

func TestWithL3CDPHalvesAndRestoresNumClasses(t *testing.T) {
	set, err := DiscoverDirect(directCatalog())
	if err != nil {
		t.Fatalf("DiscoverDirect: %v", err)
	}
	enabled := set.WithL3CDP(true)
	if !enabled.L3CA.CDPEnabled || enabled.L3CA.NumClasses != 8 {
		t.Fatalf("WithL3CDP(true): %+v", enabled.L3CA)
	}
	disabled := enabled.WithL3CDP(false)
	if disabled.L3CA.CDPEnabled || disabled.L3CA.NumClasses != 16 {
		t.Fatalf("WithL3CDP(false): %+v", disabled.L3CA)
	}
	if set.L3CA.NumClasses != 16 {
		t.Fatalf("original Set mutated: %+v", set.L3CA)
	}
}

func TestWithL3CDPUnsupportedIsNoOp(t *testing.T) {
	cat := directCatalog()
	cat.L3CACDPSupported = false
	set, err := DiscoverDirect(cat)
	if err != nil {
		t.Fatalf("DiscoverDirect: %v", err)
	}
	out := set.WithL3CDP(true)
	if out.L3CA.CDPEnabled || out.L3CA.NumClasses != 16 {
		t.Fatalf("expected no-op clone, got %+v", out.L3CA)
	}
}

func TestWithMBACTRLNoOpWhenUnsupported(t *testing.T) {
	cat := directCatalog()
	cat.MBACTRLSupport = false
	set, err := DiscoverDirect(cat)
	if err != nil {
		t.Fatalf("DiscoverDirect: %v", err)
	}
	out := set.WithMBACTRL(true)
	if out.MBA.CTRLEnabled {
		t.Fatal("expected CTRLEnabled to remain false when unsupported")
	}
}
