package pqos

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rdtkit/pqosgo/alloc"
	"github.com/rdtkit/pqosgo/capability"
	"github.com/rdtkit/pqosgo/hw"
	"github.com/rdtkit/pqosgo/lock"
	"github.com/rdtkit/pqosgo/mon"
	"github.com/rdtkit/pqosgo/resctrl"
	"github.com/rdtkit/pqosgo/topology"
)

// initialized guards against concurrent/double Init the way the
// original C library's single global state does, without a second
// mutex doing double duty alongside Context.mu (spec §4.D).
var initialized atomic.Bool

// Context is the library handle every public API call is a method on.
// It is built by Init and torn down by Fini; no exported field is safe
// to read or write concurrently with a call on the Context without
// going through mu, which every api.go entry point does.
type Context struct {
	mu sync.Mutex

	cfg     Config
	log     Logger
	backend Backend

	topo *topology.Topology
	cap  *capability.Set

	msr  *hw.MSR
	lock *lock.Lock

	allocEngine alloc.Engine
	monManager  *mon.Manager

	resctrlRoot string
	mountedByUs bool
	monitoring  int // live monitoring-group count; blocks CDP/MBA-CTRL flips
}

// Init discovers the platform, picks a backend, and builds a ready-to-use
// Context. Calling Init again before Fini returns ErrAlreadyInitialized
// (spec §4.D: "operations before init or after fini fail with InitState").
func Init(cfg Config) (*Context, error) {
	if !initialized.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}

	ctx, err := newContext(cfg)
	if err != nil {
		initialized.Store(false)
		return nil, err
	}
	return ctx, nil
}

func newContext(cfg Config) (*Context, error) {
	log := cfg.logger()
	resctrlRoot := cfg.ResctrlRoot
	if resctrlRoot == "" {
		resctrlRoot = resctrl.DefaultRoot
	}

	backend, mountedByUs, err := chooseBackend(cfg, resctrlRoot)
	if err != nil {
		return nil, wrapf(CodeInit, err, "selecting backend")
	}
	log.Debugf("pqos: selected backend %s", backend)

	topo, err := discoverTopology(backend, resctrlRoot, cfg.ChannelCatalog)
	if err != nil {
		return nil, wrapf(CodeResource, err, "discovering topology")
	}

	cap, err := discoverCapability(backend, resctrlRoot)
	if err != nil {
		return nil, wrapf(CodeResource, err, "discovering capability")
	}

	l := lock.New(cfg.LockPath)
	if err := l.Acquire(); err != nil {
		return nil, wrapf(CodeResource, err, "acquiring process lock")
	}

	ctx := &Context{
		cfg:         cfg,
		log:         log,
		backend:     backend,
		topo:        topo,
		cap:         cap,
		lock:        l,
		resctrlRoot: resctrlRoot,
		mountedByUs: mountedByUs,
	}

	if err := ctx.applyInitialRequests(cfg); err != nil {
		l.Release()
		return nil, err
	}

	if err := ctx.buildEngines(); err != nil {
		l.Release()
		return nil, err
	}

	return ctx, nil
}

func (ctx *Context) buildEngines() error {
	switch ctx.backend {
	case BackendDirect:
		ctx.msr = hw.NewMSR()
		ctx.allocEngine = alloc.NewDirectEngine(ctx.msr, ctx.topo, ctx.cap, directRegisterCatalog())
		maxRMID := uint32(0)
		if ctx.cap.MON != nil {
			maxRMID = ctx.cap.MON.MaxRMID
		}
		monEngine := mon.NewDirectEngine(ctx.msr, ctx.topo, directMonRegisterCatalog(), maxRMID, maxThresholdOccupancy(ctx.cap))
		ctx.monManager = mon.NewManager(monEngine)
	case BackendResctrl:
		re := alloc.NewResctrlEngine(ctx.resctrlRoot, ctx.topo, ctx.cap)
		if err := re.EnsureCOSDirs(maxAllocClasses(ctx.cap)); err != nil {
			return err
		}
		ctx.allocEngine = re
		monEngine := mon.NewResctrlEngine(ctx.resctrlRoot, processID(), maxThresholdOccupancy(ctx.cap))
		ctx.monManager = mon.NewManager(monEngine)
	default:
		return errf(CodeInit, "unresolved backend")
	}
	return nil
}

// maxAllocClasses is the widest COS namespace any present resource
// reports, the count of control-group directories the resctrl backend
// must keep on disk (COS 0 plus COS1..COS(n-1)).
func maxAllocClasses(cap *capability.Set) int {
	n := 1
	if cap.L3CA != nil && cap.L3CA.NumClasses > n {
		n = cap.L3CA.NumClasses
	}
	if cap.L2CA != nil && cap.L2CA.NumClasses > n {
		n = cap.L2CA.NumClasses
	}
	if cap.MBA != nil && cap.MBA.NumClasses > n {
		n = cap.MBA.NumClasses
	}
	if cap.SMBA != nil && cap.SMBA.NumClasses > n {
		n = cap.SMBA.NumClasses
	}
	return n
}

func maxThresholdOccupancy(cap *capability.Set) uint64 {
	// The L3 size stands in for max_threshold_occupancy. Only direct
	// discovery fills it in; on resctrl it is 0, so a pending RMID or a
	// reusable group needs an occupancy of 0.
	if cap.MON == nil {
		return 0
	}
	return cap.MON.L3Size
}

// applyInitialRequests honors the CDP/MBA-CTRL/SMBA-CTRL/I-O-RDT/MBA4.0
// toggles a caller asked for at Init (spec §4.D init sequencing).
func (ctx *Context) applyInitialRequests(cfg Config) error {
	next := ctx.cap
	if cfg.RequestL3CDP {
		next = next.WithL3CDP(true)
	}
	if cfg.RequestL2CDP {
		next = next.WithL2CDP(true)
	}
	if cfg.RequestMBACTRL {
		next = next.WithMBACTRL(true)
	}
	if cfg.RequestSMBACTRL {
		next = next.WithSMBACTRL(true)
	}
	if cfg.RequestIORDT {
		next = next.WithIORDT(true)
	}
	if cfg.RequestMBA40 {
		next = next.WithMBA40(true)
	}
	ctx.cap = next
	return nil
}

// Fini releases every resource Init acquired: the process lock, cached
// MSR file descriptors, and (if this process mounted it) the resctrl
// filesystem.
func (ctx *Context) Fini() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if !initialized.Load() {
		return ErrNotInitialized
	}

	var firstErr error
	if ctx.monManager != nil {
		if err := ctx.monManager.Reset(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if ctx.msr != nil {
		if err := ctx.msr.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if ctx.mountedByUs {
		if err := resctrl.Unmount(ctx.resctrlRoot); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmounting resctrl: %w", err)
		}
	}
	if err := ctx.lock.Release(); err != nil && firstErr == nil {
		firstErr = err
	}

	initialized.Store(false)
	if firstErr != nil {
		return wrapf(CodeError, firstErr, "fini")
	}
	return nil
}

// withLock serializes one public API call against every other call on
// this Context by taking ctx.mu. Other processes are kept out by the
// file lock that Init acquires and Fini releases, not by withLock.
func (ctx *Context) withLock(f func() error) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return f()
}
