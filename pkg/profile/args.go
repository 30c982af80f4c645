package profile

import "sync/atomic"

// Arguments is the single-slot configuration record the controlling
// collaborator writes before or during operation. A pid of zero means
// no target was configured.
type Arguments struct {
	Pid uint32
}

// ArgsSlot is the process-wide cell holding the Arguments value. It is
// written once by the loader and read on every trigger; today the
// handlers read it inertly, the value is reserved for pid scoping.
type ArgsSlot struct {
	pid atomic.Uint32
}

func (a *ArgsSlot) Store(args Arguments) {
	a.pid.Store(args.Pid)
}

func (a *ArgsSlot) Load() Arguments {
	return Arguments{Pid: a.pid.Load()}
}
