package pqos

// opKind names one public-API operation for the purposes of backend
// support checking (spec §9: "function-pointer dispatch table" — here
// rendered as a typed set lookup rather than a nil function-pointer
// call, so a missing implementation is a compile-time-checked map key
// rather than a crash).
type opKind int

const (
	opL3CA opKind = iota
	opL2CA
	opMBA
	opSMBA
	opCoreAssoc
	opTaskAssoc
	opChannelAssoc
	opAssign
	opMonitorCores
	opMonitorTasks
	opMonitorChannels
	opMonitorUncoreSockets
)

// supportedOps maps each backend to the set of operations it actually
// implements. AssocTask, for instance, exists only on resctrl, and
// channel association is implemented by neither backend; dispatch consults this
// table before calling into the engine so the caller gets
// ErrBackendMismatch instead of a backend-specific error string.
var supportedOps = map[Backend]map[opKind]bool{
	BackendDirect: {
		opL3CA:         true,
		opL2CA:         true,
		opMBA:          true,
		opSMBA:         true,
		opCoreAssoc:    true,
		opTaskAssoc:    false,
		opChannelAssoc: false,
		opAssign:       true,
		opMonitorCores: true,
	},
	BackendResctrl: {
		opL3CA:                 true,
		opL2CA:                 true,
		opMBA:                  true,
		opSMBA:                 true,
		opCoreAssoc:            true,
		opTaskAssoc:            true,
		opChannelAssoc:         false,
		opAssign:               true,
		opMonitorCores:         true,
		opMonitorTasks:         true,
		opMonitorChannels:      false,
		opMonitorUncoreSockets: false,
	},
}

// dispatch reports whether op is implemented by ctx's selected backend,
// returning ErrBackendMismatch when it is not.
func (ctx *Context) dispatch(op opKind) error {
	if supportedOps[ctx.backend][op] {
		return nil
	}
	return ErrBackendMismatch
}
