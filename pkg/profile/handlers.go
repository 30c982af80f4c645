package profile

import (
	"github.com/maxgio92/stackprof/pkg/aggmap"
	"github.com/maxgio92/stackprof/pkg/stackstore"
	"github.com/maxgio92/stackprof/pkg/unwind"
)

// HandleCountEvent drives the counting path for one sampling trigger:
// it captures the triggering thread's identity and user stack and bumps
// the aggregation counter for the resulting key. It always reports
// success to the trigger source; a sample lost to capacity is invisible
// at this layer and only accounted for in metrics.
func (p *Profiler) HandleCountEvent() error {
	p.metrics.SamplesHandled.Inc()

	// Read inertly, reserved for pid scoping.
	_ = p.args.Load()

	id := p.pidTgidFn()
	tgid := uint32(id >> 32)

	var key aggmap.Key
	key.Pid = collapsedPid
	if p.resolvePids {
		key.Pid = tgid
	}

	// A failed read leaves the comm field's prior contents in place.
	_ = p.commFn(&key.Comm)

	key.StackID = p.stacks.ResolveOrCreate(p.unwinder, unwind.FlagUserStack|unwind.FlagFastCmp)
	if key.StackID == stackstore.StackIDFailure {
		p.metrics.LostStackUnwind.Inc()
	}

	if !p.counts.IncrementOrInsert(key) {
		p.metrics.LostTableFull.Inc()
	}

	return nil
}

// HandleStreamEvent drives the streaming path for one sampling trigger:
// it reserves a slot in the events channel, fills it with the full raw
// sample and submits it. When the channel is saturated the reservation
// fails immediately and ErrEventsRingFull is reported; the handler
// never waits and never retries. Kernel and user captures fail
// independently: a record with one negative size field is still
// submitted.
func (p *Profiler) HandleStreamEvent() error {
	p.metrics.SamplesHandled.Inc()

	pid := uint32(p.pidTgidFn() >> 32)
	cpuID := p.cpuFn()

	res, err := p.events.Reserve()
	if err != nil {
		p.metrics.LostRingFull.Inc()
		return ErrEventsRingFull
	}

	event := res.Record()
	event.Pid = pid
	event.CPUID = cpuID

	if err := p.commFn(&event.Comm); err != nil {
		event.Comm = [TaskCommLen]byte{}
	}

	event.KstackSz = int32(p.unwinder.Kernel(event.Kstack[:]))
	event.UstackSz = int32(p.unwinder.User(event.Ustack[:]))

	res.Submit()
	p.metrics.EventsSubmitted.Inc()

	return nil
}
