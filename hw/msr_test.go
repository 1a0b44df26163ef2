package hw

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeMSRFile creates a regular file big enough to back pread/pwrite at
// the given register offset, standing in for /dev/cpu/<n>/msr.
func fakeMSRFile(t *testing.T, dir string, core int) string {
	t.Helper()
	path := filepath.Join(dir, "msr-fake")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fake msr file: %v", err)
	}
	defer f.Close()
	if err := f.Truncate(0x10000); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return path
}

func TestMSRReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := fakeMSRFile(t, dir, 0)
	m := NewMSRWithPath(func(core int) string { return path })

	if err := m.Write(0, 0x100, 0xDEADBEEFCAFEBABE); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := m.Read(0, 0x100)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 0xDEADBEEFCAFEBABE {
		t.Fatalf("Read = 0x%x, want 0xDEADBEEFCAFEBABE", got)
	}
}

func TestMSRReadModifyWrite(t *testing.T) {
	dir := t.TempDir()
	path := fakeMSRFile(t, dir, 0)
	m := NewMSRWithPath(func(core int) string { return path })

	if err := m.Write(0, 0x200, 0x0F); err != nil {
		t.Fatalf("Write: %v", err)
	}
	err := m.ReadModifyWrite(0, 0x200, func(cur uint64) uint64 {
		return (cur &^ 0xFF00) | 0x3300
	})
	if err != nil {
		t.Fatalf("ReadModifyWrite: %v", err)
	}
	got, err := m.Read(0, 0x200)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 0x330F {
		t.Fatalf("Read after RMW = 0x%x, want 0x330F", got)
	}
}

func TestMSRFdIsCachedPerCore(t *testing.T) {
	dir := t.TempDir()
	path := fakeMSRFile(t, dir, 0)
	opens := 0
	m := NewMSRWithPath(func(core int) string {
		opens++
		return path
	})
	if _, err := m.Read(0, 0x0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := m.Read(0, 0x8); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if opens != 1 {
		t.Fatalf("pathFunc called %d times, want 1 (fd should be cached)", opens)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
