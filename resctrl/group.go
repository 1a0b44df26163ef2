package resctrl

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is the resctrl mount point (spec §6: "Root directory:
// /sys/fs/resctrl").
const DefaultRoot = "/sys/fs/resctrl"

// Group is one COS (or monitoring) directory under the resctrl mount.
type Group struct {
	Path string
}

// NewGroup addresses the directory name under root (or under a parent
// group's mon_groups/ for a monitoring subgroup).
func NewGroup(path string) *Group {
	return &Group{Path: path}
}

// Create makes the directory if it does not already exist. Creating
// the top-level "CTRL_MON" default group is never needed: the kernel
// provisions it at mount time.
func (g *Group) Create() error {
	if err := os.Mkdir(g.Path, 0755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("resctrl: creating group %s: %w", g.Path, err)
	}
	return nil
}

// Remove deletes the group directory. Resctrl refuses to rmdir a
// directory holding schemata writes in flight, but once cpus/tasks are
// both emptied this always succeeds.
func (g *Group) Remove() error {
	if err := os.Remove(g.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("resctrl: removing group %s: %w", g.Path, err)
	}
	return nil
}

// Cpus reads the group's core list.
func (g *Group) Cpus() ([]int, error) {
	data, err := os.ReadFile(filepath.Join(g.Path, "cpus"))
	if err != nil {
		return nil, fmt.Errorf("resctrl: reading %s/cpus: %w", g.Path, err)
	}
	return ParseCPUMask(string(data))
}

// SetCpus writes the group's core list.
func (g *Group) SetCpus(cores []int) error {
	if err := os.WriteFile(filepath.Join(g.Path, "cpus"), []byte(FormatCPUMask(cores)), 0644); err != nil {
		return fmt.Errorf("resctrl: writing %s/cpus: %w", g.Path, err)
	}
	return nil
}

// Tasks reads the group's pid list.
func (g *Group) Tasks() ([]int, error) {
	data, err := os.ReadFile(filepath.Join(g.Path, "tasks"))
	if err != nil {
		return nil, fmt.Errorf("resctrl: reading %s/tasks: %w", g.Path, err)
	}
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("resctrl: parsing %s/tasks: %w", g.Path, err)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// AddTask appends a pid to the group's tasks file (spec §4.E.5:
// "append the pid to COS<k>/tasks").
func (g *Group) AddTask(pid int) error {
	f, err := os.OpenFile(filepath.Join(g.Path, "tasks"), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("resctrl: opening %s/tasks: %w", g.Path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		return fmt.Errorf("resctrl: writing %s/tasks: %w", g.Path, err)
	}
	return nil
}

// Schemata reads and parses the group's schemata file.
func (g *Group) Schemata() (*Schemata, error) {
	data, err := os.ReadFile(filepath.Join(g.Path, "schemata"))
	if err != nil {
		return nil, fmt.Errorf("resctrl: reading %s/schemata: %w", g.Path, err)
	}
	return ParseSchemata(string(data))
}

// SetSchemata writes s back to the group's schemata file.
func (g *Group) SetSchemata(s *Schemata) error {
	if err := os.WriteFile(filepath.Join(g.Path, "schemata"), []byte(s.Format()), 0644); err != nil {
		return fmt.Errorf("resctrl: writing %s/schemata: %w", g.Path, err)
	}
	return nil
}

// MonGroupPath returns the path of a named monitoring subgroup under
// this group's mon_groups directory.
func (g *Group) MonGroupPath(name string) string {
	return filepath.Join(g.Path, "mon_groups", name)
}

// MonGroups lists the names of existing monitoring subgroups.
func (g *Group) MonGroups() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(g.Path, "mon_groups"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("resctrl: listing %s/mon_groups: %w", g.Path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// MonDataValue reads one counter file under
// mon_data/mon_L3_<clusterID>/<file> (spec §6).
func MonDataValue(groupPath string, clusterID int, file string) (uint64, error) {
	path := filepath.Join(groupPath, "mon_data", fmt.Sprintf("mon_L3_%02d", clusterID), file)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("resctrl: reading %s: %w", path, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("resctrl: parsing %s: %w", path, err)
	}
	return v, nil
}
