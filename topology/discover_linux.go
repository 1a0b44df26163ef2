//go:build linux

package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var cpuDirRe = regexp.MustCompile(`^cpu(\d+)$`)

// Discover enumerates every online logical core under
// /sys/devices/system/cpu and builds the process-wide Topology. The I/O
// RDT channels are taken as given from channelCatalog; no device
// directory is scanned for them.
//
// MBA and SMBA domain ids are not exposed directly by generic cache
// topology files; both are set to the core's socket id, the granularity
// RDT throttles at on Intel. Nothing overrides this per platform.
func Discover(root string, channelCatalog []Channel) (*Topology, error) {
	if root == "" {
		root = "/sys/devices/system/cpu"
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("topology: reading %s: %w", root, err)
	}

	var cores []LogicalCore
	for _, e := range entries {
		m := cpuDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		cpuDir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(cpuDir, "topology")); err != nil {
			// Offline cores often lack a topology/ subdirectory.
			continue
		}
		socket := readIntFile(filepath.Join(cpuDir, "topology", "physical_package_id"), 0)
		l2 := readCacheClusterID(cpuDir, 2, id)
		l3 := readCacheClusterID(cpuDir, 3, id)
		cores = append(cores, LogicalCore{
			ID:     id,
			Socket: socket,
			L2ID:   l2,
			L3ID:   l3,
			MBAID:  socket,
			SMBAID: socket,
		})
	}
	if len(cores) == 0 {
		return nil, fmt.Errorf("topology: no online logical cores found under %s", root)
	}
	sort.Slice(cores, func(i, j int) bool { return cores[i].ID < cores[j].ID })
	return New(cores, channelCatalog)
}

// readCacheClusterID returns the shared_cpu_list-derived cluster id for
// cache level `level` (2 or 3) that core `fallbackID` belongs to, using
// the lowest cpu id sharing the cache as the cluster id — consistent
// with RepresentativeCore's "lowest id wins" rule.
func readCacheClusterID(cpuDir string, level, fallbackID int) int {
	cacheDir := filepath.Join(cpuDir, "cache")
	indices, err := os.ReadDir(cacheDir)
	if err != nil {
		return fallbackID
	}
	for _, idx := range indices {
		lvl := readIntFile(filepath.Join(cacheDir, idx.Name(), "level"), -1)
		if lvl != level {
			continue
		}
		list := readStringFile(filepath.Join(cacheDir, idx.Name(), "shared_cpu_list"))
		if list == "" {
			return fallbackID
		}
		return lowestInCPUList(list, fallbackID)
	}
	return fallbackID
}

func lowestInCPUList(list string, fallback int) int {
	best := fallback
	first := true
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo := part
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo = part[:i]
		}
		v, err := strconv.Atoi(lo)
		if err != nil {
			continue
		}
		if first || v < best {
			best = v
			first = false
		}
	}
	return best
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

func readStringFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
