//go:build linux

package resctrl

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// MountOptions selects the comma-joined subset of mount data resctrl
// understands (spec §6: "Mount data string is the comma-joined subset
// of {\"\", \"cdp\", \"cdpl2\", \"mba_MBps\"}").
type MountOptions struct {
	CDP     bool
	CDPL2   bool
	MBAMBps bool
}

func (o MountOptions) data() string {
	var parts []string
	if o.CDP {
		parts = append(parts, "cdp")
	}
	if o.CDPL2 {
		parts = append(parts, "cdpl2")
	}
	if o.MBAMBps {
		parts = append(parts, "mba_MBps")
	}
	return strings.Join(parts, ",")
}

// Mount mounts the resctrl filesystem at root with the given options.
func Mount(root string, opts MountOptions) error {
	if err := unix.Mount("resctrl", root, "resctrl", 0, opts.data()); err != nil {
		return fmt.Errorf("resctrl: mount %s: %w", root, err)
	}
	return nil
}

// Unmount unmounts the resctrl filesystem at root.
func Unmount(root string) error {
	if err := unix.Unmount(root, 0); err != nil {
		return fmt.Errorf("resctrl: unmount %s: %w", root, err)
	}
	return nil
}
