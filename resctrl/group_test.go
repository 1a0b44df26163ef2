package resctrl

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newTestGroup(t *testing.T) *Group {
	t.Helper()
	dir := t.TempDir()
	for _, f := range []string{"cpus", "tasks", "schemata"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0644); err != nil {
			t.Fatalf("seed %s: %v", f, err)
		}
	}
	return NewGroup(dir)
}

func TestGroupCpusRoundTrip(t *testing.T) {
	g := newTestGroup(t)
	if err := g.SetCpus([]int{0, 1, 2}); err != nil {
		t.Fatalf("SetCpus: %v", err)
	}
	got, err := g.Cpus()
	if err != nil {
		t.Fatalf("Cpus: %v", err)
	}
	sort.Ints(got)
	want := []int{0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Cpus = %v, want %v", got, want)
		}
	}
}

func TestGroupSchemataRoundTrip(t *testing.T) {
	g := newTestGroup(t)
	s := &Schemata{L3: map[int]uint64{0: 0xff, 1: 0x0f}}
	if err := g.SetSchemata(s); err != nil {
		t.Fatalf("SetSchemata: %v", err)
	}
	got, err := g.Schemata()
	if err != nil {
		t.Fatalf("Schemata: %v", err)
	}
	if got.L3[0] != 0xff || got.L3[1] != 0x0f {
		t.Fatalf("Schemata round trip = %v", got.L3)
	}
}

func TestGroupCreateRemove(t *testing.T) {
	base := t.TempDir()
	g := NewGroup(filepath.Join(base, "COS1"))
	if err := g.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := g.Create(); err != nil {
		t.Fatalf("Create (idempotent): %v", err)
	}
	if err := g.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := g.Remove(); err != nil {
		t.Fatalf("Remove (idempotent): %v", err)
	}
}

func TestMonGroupsListsSubdirectoriesOnly(t *testing.T) {
	base := t.TempDir()
	g := NewGroup(base)
	monDir := filepath.Join(base, "mon_groups")
	if err := os.MkdirAll(filepath.Join(monDir, "pqos-100-0"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(monDir, "not-a-dir"), nil, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	names, err := g.MonGroups()
	if err != nil {
		t.Fatalf("MonGroups: %v", err)
	}
	if len(names) != 1 || names[0] != "pqos-100-0" {
		t.Fatalf("MonGroups = %v, want [pqos-100-0]", names)
	}
}

func TestMonGroupsEmptyWhenAbsent(t *testing.T) {
	g := NewGroup(t.TempDir())
	names, err := g.MonGroups()
	if err != nil {
		t.Fatalf("MonGroups: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("MonGroups = %v, want empty", names)
	}
}
