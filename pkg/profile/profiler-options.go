package profile

import (
	log "github.com/rs/zerolog"

	"github.com/maxgio92/stackprof/internal/metrics"
	"github.com/maxgio92/stackprof/pkg/aggmap"
	"github.com/maxgio92/stackprof/pkg/ring"
	"github.com/maxgio92/stackprof/pkg/stackstore"
	"github.com/maxgio92/stackprof/pkg/unwind"
)

type ProfilerOptions struct {
	logger   *log.Logger
	unwinder unwind.Unwinder
	metrics  *metrics.Metrics

	// resolvePids stores the resolved thread-group id in the
	// aggregation key instead of the constant placeholder.
	resolvePids bool

	// Ambient identity of the triggering context, swappable for tests.
	pidTgidFn func() uint64
	cpuFn     func() uint32
	commFn    func(*[TaskCommLen]byte) error
}

type ProfilerOption func(*Profiler)

func WithLogger(logger *log.Logger) ProfilerOption {
	return func(p *Profiler) {
		p.logger = logger
	}
}

func WithUnwinder(u unwind.Unwinder) ProfilerOption {
	return func(p *Profiler) {
		p.unwinder = u
	}
}

func WithMetrics(m *metrics.Metrics) ProfilerOption {
	return func(p *Profiler) {
		p.metrics = m
	}
}

// WithResolvePids keys aggregated samples by the resolved thread-group
// id. The default keeps the original placeholder behavior, collapsing
// all processes into a single pid bucket.
func WithResolvePids(resolve bool) ProfilerOption {
	return func(p *Profiler) {
		p.resolvePids = resolve
	}
}

func WithStackStore(s *stackstore.Store) ProfilerOption {
	return func(p *Profiler) {
		p.stacks = s
	}
}

func WithCountsTable(t *aggmap.Table) ProfilerOption {
	return func(p *Profiler) {
		p.counts = t
	}
}

func WithEventsRing(r *ring.Ring[StacktraceEvent]) ProfilerOption {
	return func(p *Profiler) {
		p.events = r
	}
}

func WithPidTgidFunc(f func() uint64) ProfilerOption {
	return func(p *Profiler) {
		p.pidTgidFn = f
	}
}

func WithCPUFunc(f func() uint32) ProfilerOption {
	return func(p *Profiler) {
		p.cpuFn = f
	}
}

func WithCommFunc(f func(*[TaskCommLen]byte) error) ProfilerOption {
	return func(p *Profiler) {
		p.commFn = f
	}
}
