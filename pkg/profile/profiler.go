package profile

import (
	"os"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/stackprof/internal/metrics"
	"github.com/maxgio92/stackprof/pkg/aggmap"
	"github.com/maxgio92/stackprof/pkg/pidns"
	"github.com/maxgio92/stackprof/pkg/ring"
	"github.com/maxgio92/stackprof/pkg/stackstore"
	"github.com/maxgio92/stackprof/pkg/unwind"
)

// Profiler owns the four shared structures at the boundary with the
// loader and the consumer: the arguments slot, the stack trace store,
// the aggregation table and the streaming channel. Its handlers are the
// entry points a sampling trigger invokes on every tick; each
// invocation is a stateless transaction over those structures.
type Profiler struct {
	args   ArgsSlot
	stacks *stackstore.Store
	counts *aggmap.Table
	events *ring.Ring[StacktraceEvent]

	*ProfilerOptions
}

func NewProfiler(opts ...ProfilerOption) (*Profiler, error) {
	p := &Profiler{
		ProfilerOptions: &ProfilerOptions{},
	}
	for _, f := range opts {
		f(p)
	}

	if p.logger == nil {
		logger := log.New(log.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		p.logger = &logger
	}
	if p.unwinder == nil {
		p.unwinder = unwind.NewCallersUnwinder(0)
	}
	if p.metrics == nil {
		p.metrics = metrics.New(nil)
	}
	if p.pidTgidFn == nil {
		p.pidTgidFn = currentPidTgid
	}
	if p.cpuFn == nil {
		p.cpuFn = currentCPU
	}
	if p.commFn == nil {
		p.commFn = currentComm
	}

	if p.stacks == nil {
		p.stacks = stackstore.NewStore()
	}
	if p.counts == nil {
		p.counts = aggmap.NewTable()
	}
	if p.events == nil {
		events, err := ring.New[StacktraceEvent](EventsByteCapacity)
		if err != nil {
			return nil, err
		}
		p.events = events
	}

	return p, nil
}

// Configure writes the arguments slot. The loader calls it before the
// first trigger; the value is treated as configuration, not as mutable
// shared state.
func (p *Profiler) Configure(args Arguments) {
	p.args.Store(args)
	p.logger.Debug().Uint32("pid", args.Pid).Msg("arguments slot written")
}

// Args returns the current arguments slot value.
func (p *Profiler) Args() Arguments {
	return p.args.Load()
}

// Stacks exposes the stack trace store for consumer-side symbolization.
func (p *Profiler) Stacks() *stackstore.Store {
	return p.stacks
}

// Counts exposes the aggregation table for the periodic drain.
func (p *Profiler) Counts() *aggmap.Table {
	return p.counts
}

// Events exposes the streaming channel's read side.
func (p *Profiler) Events() *ring.Ring[StacktraceEvent] {
	return p.events
}

// Namespace resolves the profiler task's innermost PID namespace inode.
// The inode is computed and logged only: no filtering policy consumes
// it yet.
// TODO: scope sampling to the namespace selected via the arguments slot.
func (p *Profiler) Namespace() (uint64, error) {
	return pidns.Self()
}
