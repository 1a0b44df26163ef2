package topology

import "testing"

func testTopo(t *testing.T) *Topology {
	t.Helper()
	cores := []LogicalCore{
		{ID: 0, Socket: 0, L2ID: 0, L3ID: 0, MBAID: 0, SMBAID: 0},
		{ID: 1, Socket: 0, L2ID: 0, L3ID: 0, MBAID: 0, SMBAID: 0},
		{ID: 2, Socket: 0, L2ID: 1, L3ID: 0, MBAID: 0, SMBAID: 0},
		{ID: 3, Socket: 1, L2ID: 2, L3ID: 1, MBAID: 1, SMBAID: 1},
		{ID: 4, Socket: 1, L2ID: 2, L3ID: 1, MBAID: 1, SMBAID: 1},
	}
	topo, err := New(cores, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return topo
}

func TestCoreLookup(t *testing.T) {
	topo := testTopo(t)
	c, ok := topo.Core(3)
	if !ok {
		t.Fatal("expected core 3 to exist")
	}
	if c.L3ID != 1 || c.Socket != 1 {
		t.Fatalf("unexpected core: %+v", c)
	}
	if _, ok := topo.Core(99); ok {
		t.Fatal("expected core 99 to be absent")
	}
}

func TestUniqueIDs(t *testing.T) {
	topo := testTopo(t)
	if got := topo.L3IDs(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("L3IDs = %v, want [0 1]", got)
	}
	if got := topo.SocketIDs(); len(got) != 2 {
		t.Fatalf("SocketIDs = %v, want 2 entries", got)
	}
}

func TestRepresentativeCoreIsDeterministic(t *testing.T) {
	topo := testTopo(t)
	rep, ok := topo.RepresentativeCore(DomainL3, 0)
	if !ok || rep.ID != 0 {
		t.Fatalf("RepresentativeCore(L3, 0) = %+v, ok=%v, want core 0", rep, ok)
	}
	rep, ok = topo.RepresentativeCore(DomainL3, 1)
	if !ok || rep.ID != 3 {
		t.Fatalf("RepresentativeCore(L3, 1) = %+v, ok=%v, want core 3", rep, ok)
	}
	if _, ok := topo.RepresentativeCore(DomainL3, 99); ok {
		t.Fatal("expected no representative for unknown cluster")
	}
}

func TestCoresInL3(t *testing.T) {
	topo := testTopo(t)
	cores := topo.CoresInL3(0)
	if len(cores) != 3 {
		t.Fatalf("CoresInL3(0) = %v, want 3 cores", cores)
	}
}

func TestDuplicateCoreIDRejected(t *testing.T) {
	_, err := New([]LogicalCore{{ID: 0}, {ID: 0}}, nil)
	if err == nil {
		t.Fatal("expected error for duplicate core id")
	}
}
