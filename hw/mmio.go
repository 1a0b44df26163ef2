package hw

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MMIOChannel identifies one device channel's memory-mapped register
// window (a PCI BAR region) by the sysfs resource file the kernel
// exposes for it.
type MMIOChannel struct {
	ID           int
	ResourcePath string // e.g. /sys/bus/pci/devices/<bdf>/resource0
	Size         int64
}

// MMIO gives read/write access to memory-mapped device-channel registers
// via mmap, for I/O RDT channel-level operations (spec §4.A).
type MMIO struct {
	mu      sync.Mutex
	regions map[int][]byte
	files   map[int]*os.File
}

// NewMMIO returns a ready-to-use MMIO accessor. Regions are mapped
// lazily on first access to a given channel.
func NewMMIO() *MMIO {
	return &MMIO{regions: make(map[int][]byte), files: make(map[int]*os.File)}
}

func (m *MMIO) mapping(ch MMIOChannel) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.regions[ch.ID]; ok {
		return r, nil
	}
	f, err := os.OpenFile(ch.ResourcePath, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	region, err := unix.Mmap(int(f.Fd()), 0, int(ch.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	m.files[ch.ID] = f
	m.regions[ch.ID] = region
	return region, nil
}

// Read reads a 32-bit register at offset within the channel's MMIO
// region.
func (m *MMIO) Read(ch MMIOChannel, offset uint32) (uint32, error) {
	region, err := m.mapping(ch)
	if err != nil {
		return 0, &IoError{Op: "mmio_read(map)", Core: ch.ID, Reg: offset, Err: err}
	}
	if int64(offset)+4 > int64(len(region)) {
		return 0, &IoError{Op: "mmio_read", Core: ch.ID, Reg: offset, Err: fmt.Errorf("offset out of range (region size %d)", len(region))}
	}
	return binary.LittleEndian.Uint32(region[offset : offset+4]), nil
}

// Write writes a 32-bit register at offset within the channel's MMIO
// region.
func (m *MMIO) Write(ch MMIOChannel, offset uint32, value uint32) error {
	region, err := m.mapping(ch)
	if err != nil {
		return &IoError{Op: "mmio_write(map)", Core: ch.ID, Reg: offset, Err: err}
	}
	if int64(offset)+4 > int64(len(region)) {
		return &IoError{Op: "mmio_write", Core: ch.ID, Reg: offset, Err: fmt.Errorf("offset out of range (region size %d)", len(region))}
	}
	binary.LittleEndian.PutUint32(region[offset:offset+4], value)
	return nil
}

// Close unmaps every region and closes every backing file descriptor.
func (m *MMIO) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, region := range m.regions {
		if err := unix.Munmap(region); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmapping channel %d: %w", id, err)
		}
		delete(m.regions, id)
	}
	for id, f := range m.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing channel %d fd: %w", id, err)
		}
		delete(m.files, id)
	}
	return firstErr
}
