package probe

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultFrequency is the per-execution-unit sampling rate in Hz.
const DefaultFrequency = 20

// Probe is the sampling trigger source: one ticker per online execution
// unit, each firing independently at the configured frequency and
// invoking every attached handler synchronously. Handler failures are
// logged per tick and never stop the trigger.
type Probe struct {
	cpus     []uint
	handlers []func() error

	*Options
}

func NewProbe(opts ...Option) *Probe {
	probe := &Probe{
		Options: &Options{},
	}
	for _, opt := range opts {
		opt(probe)
	}
	if probe.frequency <= 0 {
		probe.frequency = DefaultFrequency
	}

	return probe
}

// Attach registers a handler to be invoked on every sampling tick.
// All handlers must be attached before Run.
func (p *Probe) Attach(handler func() error) {
	p.handlers = append(p.handlers, handler)
}

// Init discovers the online execution units the triggers will fire on.
func (p *Probe) Init(_ context.Context) error {
	cpus, err := onlineCPUs()
	if err != nil {
		return errors.Wrap(err, "error discovering online cpus")
	}
	if len(cpus) == 0 {
		return ErrNoExecutionUnits
	}
	p.cpus = cpus
	p.logger.Debug().Int("cpus", len(cpus)).Int("frequency", p.frequency).Msg("sampling trigger initialized")

	return nil
}

// Run fires the triggers until the context is cancelled. Each execution
// unit gets its own goroutine and ticker so that ticks land with the
// parallelism of the underlying hardware.
func (p *Probe) Run(ctx context.Context) error {
	if len(p.handlers) == 0 {
		return ErrNoHandlers
	}
	if p.cpus == nil {
		if err := p.Init(ctx); err != nil {
			return err
		}
	}

	interval := time.Second / time.Duration(p.frequency)

	wg, ctx := errgroup.WithContext(ctx)
	for range p.cpus {
		wg.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					for _, handler := range p.handlers {
						if err := handler(); err != nil {
							p.logger.Debug().Err(err).Msg("handler failed for this tick")
						}
					}
				}
			}
		})
	}

	return wg.Wait()
}

const cpuOnline = "/sys/devices/system/cpu/online"

// onlineCPUs returns the online execution units, for example [0 2 3].
func onlineCPUs() ([]uint, error) {
	buf, err := os.ReadFile(cpuOnline)
	if err != nil {
		return nil, err
	}
	return ReadCPURange(string(buf))
}
