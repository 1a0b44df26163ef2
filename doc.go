// Package pqos programs Intel/AMD Resource Director Technology (RDT) on a
// running host: cache and memory-bandwidth partitioning (L3/L2 CAT, MBA,
// SMBA) plus occupancy and bandwidth monitoring (CMT/MBM).
//
// The package exposes a small, C-ABI-shaped surface over two mutually
// exclusive backends — direct MSR/MMIO register access and the kernel's
// resctrl filesystem — selected once at Init and held fixed for the life
// of a Context. Callers classify cores, tasks, or I/O channels into
// Classes of Service, program each class with a cache way-mask or a
// memory-bandwidth throttle, and observe per-group counters.
//
// Every exported method on Context takes the Context's mutex before
// touching hardware or the resctrl filesystem, so concurrent callers are
// serialized rather than racing; the file lock of package lock, held
// from Init to Fini, keeps other processes out.
package pqos
