package mon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rdtkit/pqosgo/capability"
	"github.com/rdtkit/pqosgo/hw"
	"github.com/rdtkit/pqosgo/topology"
)

func fakeMSR(t *testing.T) *hw.MSR {
	t.Helper()
	dir := t.TempDir()
	pathFunc := func(core int) string {
		path := filepath.Join(dir, "msr")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			t.Fatalf("create fake msr file: %v", err)
		}
		f.Truncate(1 << 16)
		f.Close()
		return path
	}
	return hw.NewMSRWithPath(pathFunc)
}

func directTestTopology(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.New([]topology.LogicalCore{
		{ID: 0, L3ID: 0},
		{ID: 1, L3ID: 0},
	}, nil)
	if err != nil {
		t.Fatalf("topology.New: %v", err)
	}
	return topo
}

func TestDirectEngineBindAssignsRMIDAndPreservesOnUnbind(t *testing.T) {
	msr := fakeMSR(t)
	topo := directTestTopology(t)
	regs := DirectRegisterCatalog{
		PQRAssocBase:     func(core int) uint32 { return 0xc8f },
		PQRAssocRMIDMask: 0x3ff,
		EventSelectReg:   0xc8d,
		EventCounterReg:  0xc8e,
		EventSelectIDs:   map[capability.EventKind]uint64{capability.EventLLCOccupancy: 1},
	}
	// Seed core 0 with a pre-existing monitoring RMID of 7.
	if err := msr.Write(0, 0xc8f, 7); err != nil {
		t.Fatalf("seed PQR_ASSOC: %v", err)
	}

	e := NewDirectEngine(msr, topo, regs, 16, 1000)
	m := NewManager(e)

	g, err := m.Start(TargetCores, []int{0, 1}, []capability.EventKind{capability.EventLLCOccupancy}, []int{0})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	raw, err := msr.Read(0, 0xc8f)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if raw == 7 {
		t.Fatal("expected core 0's RMID to change after Bind")
	}

	if err := m.Stop(g); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	raw, err = msr.Read(0, 0xc8f)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if raw != 7 {
		t.Fatalf("expected core 0's RMID restored to 7 after Stop, got %d", raw)
	}
}

func TestDirectEngineRMIDExhaustion(t *testing.T) {
	msr := fakeMSR(t)
	topo := directTestTopology(t)
	regs := DirectRegisterCatalog{
		PQRAssocBase:     func(core int) uint32 { return 0xc8f },
		PQRAssocRMIDMask: 0x3ff,
		EventSelectReg:   0xc8d,
		EventCounterReg:  0xc8e,
		EventSelectIDs:   map[capability.EventKind]uint64{capability.EventLLCOccupancy: 1},
	}
	e := NewDirectEngine(msr, topo, regs, 1, 1000)
	m := NewManager(e)

	if _, err := m.Start(TargetCores, []int{0}, []capability.EventKind{capability.EventLLCOccupancy}, []int{0}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := m.Start(TargetCores, []int{1}, []capability.EventKind{capability.EventLLCOccupancy}, []int{0}); err == nil {
		t.Fatal("expected resource-exhausted error on the second Start with only one RMID")
	}
}
