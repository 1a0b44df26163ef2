// Package lock implements the library's process-wide reentrant lock:
// an advisory file lock at /var/lock/<libname>, so that two separate
// processes driving the same RDT hardware serialize against each other,
// with an in-process mutex guarding the lock's nesting depth and file
// handle.
//
// The lock file holds "<pid> <starttime>". On acquire, a stale file
// (whose owner pid is dead, or whose pid has been reused since the file
// was written — detected by a process-start-time mismatch) is reclaimed
// automatically rather than treated as a live holder.
package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// DefaultPath is the lock file path used when Config.LockPath is empty,
// matching the original C library's /var/lock/libpqos (spec §5).
const DefaultPath = "/var/lock/libpqos"

// Lock is the process-wide reentrant lock described in spec §4.D: a file
// lock for other processes, plus an in-process mutex that guards depth
// and file.
type Lock struct {
	path  string
	mu    sync.Mutex
	file  *flock.Flock
	depth int
}

// New returns a Lock backed by the file at path. path defaults to
// DefaultPath when empty.
func New(path string) *Lock {
	if path == "" {
		path = DefaultPath
	}
	return &Lock{path: path}
}

// Acquire takes the lock, blocking until no other process holds the
// file lock. It is reentrant: while the lock is held, a further Acquire
// only increments the nesting depth, and the file lock is given up when
// the matching number of Release calls has been made. The in-process
// mutex is held only while depth and file are read or changed, not
// between Acquire and Release.
func (l *Lock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.depth > 0 {
		l.depth++
		return nil
	}
	if err := reclaimStale(l.path); err != nil {
		return fmt.Errorf("lock: reclaiming stale lock file %s: %w", l.path, err)
	}
	f := flock.New(l.path)
	if err := f.Lock(); err != nil {
		return fmt.Errorf("lock: acquiring %s: %w", l.path, err)
	}
	if err := writeOwner(l.path); err != nil {
		f.Unlock()
		return fmt.Errorf("lock: writing owner record to %s: %w", l.path, err)
	}
	l.file = f
	l.depth = 1
	return nil
}

// Release gives up the lock. It is the caller's responsibility to call
// Release exactly once per successful Acquire.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.depth--
	if l.depth > 0 {
		return nil
	}
	if l.file == nil {
		return nil
	}
	err := l.file.Unlock()
	l.file = nil
	return err
}

func ownerRecordPath(lockPath string) string { return lockPath }

func writeOwner(path string) error {
	pid := os.Getpid()
	start, err := processStartTime(pid)
	if err != nil {
		// Not every platform exposes a start time; record the pid alone
		// rather than failing acquisition outright.
		start = 0
	}
	content := fmt.Sprintf("%d %d\n", pid, start)
	return os.WriteFile(ownerRecordPath(path), []byte(content), 0644)
}

// reclaimStale inspects the lock file's recorded owner. If the owner pid
// is no longer alive, or its start time no longer matches (the pid was
// reused by an unrelated process), the file is removed so the flock
// acquisition below can't be mistaken for contention with a live holder.
// A live, still-running owner is left untouched; the subsequent
// flock(2) call is what actually serializes against it.
func reclaimStale(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	fields := strings.Fields(string(b))
	if len(fields) != 2 {
		// Unrecognized content; leave it for flock to arbitrate.
		return nil
	}
	pid, err1 := strconv.Atoi(fields[0])
	recordedStart, err2 := strconv.ParseInt(fields[1], 10, 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	if !processAlive(pid) {
		return os.Remove(path)
	}
	if recordedStart == 0 {
		return nil
	}
	actualStart, err := processStartTime(pid)
	if err != nil {
		return nil
	}
	if actualStart != recordedStart {
		return os.Remove(path)
	}
	return nil
}
