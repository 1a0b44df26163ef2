// Package hw is the single point of syscall contact with RDT hardware:
// reading and writing 64-bit MSR registers scoped to a logical core, and
// reading/writing MMIO registers scoped to a device channel. Every
// higher-level component (allocation, monitoring, capability discovery
// on the direct backend) treats this package as the only path to
// hardware; it does not itself interpret register layouts.
package hw

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// IoError wraps a failed MSR or MMIO access. The engines wrap it with
// %w, and package pqos returns that chain as it is, without a Code.
type IoError struct {
	Op   string
	Core int
	Reg  uint32
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("hw: %s core=%d reg=0x%x: %v", e.Op, e.Core, e.Reg, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// MSRDevicePath returns the /dev/cpu/<n>/msr path the MSR type opens for
// core n. Exposed so capability discovery can stat it to decide whether
// the msr kernel module is loaded before attempting the direct backend.
func MSRDevicePath(core int) string {
	return fmt.Sprintf("/dev/cpu/%d/msr", core)
}

// MSR gives pinned, atomic read/write access to 64-bit MSR registers on
// a set of logical cores. File descriptors are opened lazily and cached
// for the lifetime of the MSR value, matching the original C
// implementation's per-core fd cache (original_source/lib/api.c) rather
// than reopening /dev/cpu/<n>/msr on every call.
type MSR struct {
	mu       sync.Mutex
	fds      map[int]*os.File
	pathFunc func(core int) string
}

// NewMSR returns a ready-to-use MSR accessor. No file descriptors are
// opened until the first Read/Write for a given core.
func NewMSR() *MSR {
	return &MSR{fds: make(map[int]*os.File), pathFunc: MSRDevicePath}
}

// NewMSRWithPath returns an MSR accessor that resolves each core's
// device file via pathFunc instead of the default /dev/cpu/<n>/msr.
// Used by tests to point the accessor at fake regular files.
func NewMSRWithPath(pathFunc func(core int) string) *MSR {
	return &MSR{fds: make(map[int]*os.File), pathFunc: pathFunc}
}

func (m *MSR) fd(core int) (*os.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.fds[core]; ok {
		return f, nil
	}
	f, err := os.OpenFile(m.pathFunc(core), os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	m.fds[core] = f
	return f, nil
}

// Read performs an atomic 64-bit read of MSR register reg, pinned to the
// given logical core.
func (m *MSR) Read(core int, reg uint32) (uint64, error) {
	f, err := m.fd(core)
	if err != nil {
		return 0, &IoError{Op: "msr_read(open)", Core: core, Reg: reg, Err: err}
	}
	var buf [8]byte
	n, err := unix.Pread(int(f.Fd()), buf[:], int64(reg))
	if err != nil {
		return 0, &IoError{Op: "msr_read", Core: core, Reg: reg, Err: err}
	}
	if n != 8 {
		return 0, &IoError{Op: "msr_read", Core: core, Reg: reg, Err: fmt.Errorf("short read: %d bytes", n)}
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Write performs an atomic 64-bit write of value to MSR register reg,
// pinned to the given logical core.
func (m *MSR) Write(core int, reg uint32, value uint64) error {
	f, err := m.fd(core)
	if err != nil {
		return &IoError{Op: "msr_write(open)", Core: core, Reg: reg, Err: err}
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	n, err := unix.Pwrite(int(f.Fd()), buf[:], int64(reg))
	if err != nil {
		return &IoError{Op: "msr_write", Core: core, Reg: reg, Err: err}
	}
	if n != 8 {
		return &IoError{Op: "msr_write", Core: core, Reg: reg, Err: fmt.Errorf("short write: %d bytes", n)}
	}
	return nil
}

// ReadModifyWrite reads reg on core, applies f to the current value, and
// writes the result back. It is not atomic across the two syscalls
// (spec §5: writes are best-effort synchronous, no hidden retries), so
// callers relying on RMW semantics (e.g. the PQR_ASSOC COS field) must
// already hold the library lock.
func (m *MSR) ReadModifyWrite(core int, reg uint32, f func(uint64) uint64) error {
	cur, err := m.Read(core, reg)
	if err != nil {
		return err
	}
	return m.Write(core, reg, f(cur))
}

// Close releases every cached file descriptor. Called from Context.Fini.
func (m *MSR) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for core, f := range m.fds {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing msr fd for core %d: %w", core, err)
		}
		delete(m.fds, core)
	}
	return firstErr
}
