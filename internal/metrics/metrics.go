package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the sample-loss accounting the handlers themselves
// keep silent about: every drop path has a counter, so saturation is
// observable without touching the hot paths' return values.
type Metrics struct {
	SamplesHandled  prometheus.Counter
	LostTableFull   prometheus.Counter
	LostStackUnwind prometheus.Counter
	LostRingFull    prometheus.Counter
	EventsSubmitted prometheus.Counter
	EventsConsumed  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackprof_samples_handled_total",
			Help: "Total number of sampling triggers handled",
		}),
		LostTableFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackprof_samples_lost_table_full_total",
			Help: "Samples lost because the aggregation table was at capacity",
		}),
		LostStackUnwind: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackprof_samples_lost_stack_unwind_total",
			Help: "Samples aggregated under the failure stack id because no trace could be stored",
		}),
		LostRingFull: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackprof_samples_lost_ring_full_total",
			Help: "Samples lost because the streaming channel was saturated",
		}),
		EventsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackprof_events_submitted_total",
			Help: "Stack trace records submitted to the streaming channel",
		}),
		EventsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stackprof_events_consumed_total",
			Help: "Stack trace records drained from the streaming channel",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.SamplesHandled,
			m.LostTableFull,
			m.LostStackUnwind,
			m.LostRingFull,
			m.EventsSubmitted,
			m.EventsConsumed,
		)
	}

	return m
}
