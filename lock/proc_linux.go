//go:build linux

package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// processAlive reports whether pid currently identifies a live process.
// It uses kill(pid, 0), the standard liveness probe: no signal is
// delivered, only the existence/permission check is performed.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}

// processStartTime returns the kernel's recorded start time (field 22 of
// /proc/<pid>/stat, in clock ticks since boot) for pid. Combined with the
// pid itself this uniquely identifies a process instance even across pid
// reuse, which bare pid comparison cannot.
func processStartTime(pid int) (int64, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	// The second field is "(comm)" and may itself contain spaces or
	// parentheses, so split on the last ')' rather than by field index.
	s := string(data)
	end := strings.LastIndexByte(s, ')')
	if end < 0 || end+2 >= len(s) {
		return 0, fmt.Errorf("lock: unexpected /proc/%d/stat format", pid)
	}
	fields := strings.Fields(s[end+2:])
	// Fields after comm start at original field 3; field 22 (starttime)
	// is therefore index 22-3=19 in this slice.
	const startTimeIndex = 19
	if len(fields) <= startTimeIndex {
		return 0, fmt.Errorf("lock: /proc/%d/stat has too few fields", pid)
	}
	return strconv.ParseInt(fields[startTimeIndex], 10, 64)
}
