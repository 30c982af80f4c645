package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	gprofile "github.com/google/pprof/profile"

	"github.com/maxgio92/stackprof/pkg/aggmap"
)

const (
	// ReportFileName is the default run report output file.
	ReportFileName = "stackprof-report.json"

	// FoldedFileName is the default collapsed-stack output file.
	FoldedFileName = "stackprof.folded"
)

// Sample is one drained aggregation entry joined with its stored trace.
// Frames is nil when the stack could not be captured for that key.
type Sample struct {
	Key    aggmap.Key
	Count  uint32
	Frames []uint64
}

// Collect drains the aggregation table, resetting its counters, and
// joins each key with the trace stored under its stack identifier.
func (p *Profiler) Collect() []Sample {
	samples := make([]Sample, 0, p.counts.Len())
	p.counts.IterateAndReset(func(key aggmap.Key, count uint32) {
		sample := Sample{Key: key, Count: count}
		if trace, depth, ok := p.stacks.Lookup(key.StackID); ok {
			sample.Frames = make([]uint64, depth)
			copy(sample.Frames, trace[:depth])
		}
		samples = append(samples, sample)
	})
	p.logger.Debug().Int("samples", len(samples)).Msg("aggregation table drained")

	return samples
}

// WriteFolded emits one line per sample in collapsed-stack format,
// leaf-last hex addresses separated by semicolons. Symbolization is the
// reader's concern, raw addresses are the boundary.
func WriteFolded(w io.Writer, samples []Sample) error {
	for _, s := range samples {
		frames := make([]string, 0, len(s.Frames))
		for i := len(s.Frames) - 1; i >= 0; i-- {
			if s.Frames[i] == 0 {
				continue
			}
			frames = append(frames, fmt.Sprintf("%#016x", s.Frames[i]))
		}
		comm := string(cleanComm(s.Key.Comm))
		if comm == "" {
			comm = "unknown"
		}
		if len(frames) == 0 {
			frames = append(frames, "[no stack]")
		}
		if _, err := fmt.Fprintf(w, "%s;%s %d\n", comm, strings.Join(frames, ";"), s.Count); err != nil {
			return err
		}
	}

	return nil
}

// WriteProfile encodes the samples as a gzipped pprof proto, one
// location per distinct address, counts as the sample value.
func WriteProfile(w io.Writer, samples []Sample, period time.Duration) error {
	prof := &gprofile.Profile{
		SampleType: []*gprofile.ValueType{{Type: "samples", Unit: "count"}},
		PeriodType: &gprofile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:     period.Nanoseconds(),
		TimeNanos:  time.Now().UnixNano(),
	}

	locs := make(map[uint64]*gprofile.Location)
	for _, s := range samples {
		if len(s.Frames) == 0 {
			continue
		}
		sample := &gprofile.Sample{
			Value: []int64{int64(s.Count)},
			Label: map[string][]string{
				"comm": {string(cleanComm(s.Key.Comm))},
			},
		}
		for _, addr := range s.Frames {
			if addr == 0 {
				continue
			}
			loc, ok := locs[addr]
			if !ok {
				loc = &gprofile.Location{
					ID:      uint64(len(locs) + 1),
					Address: addr,
				}
				locs[addr] = loc
				prof.Location = append(prof.Location, loc)
			}
			sample.Location = append(sample.Location, loc)
		}
		prof.Sample = append(prof.Sample, sample)
	}

	return prof.Write(w)
}

// DrainEvents consumes submitted records from the streaming channel
// until the context is cancelled, invoking f for each. It polls: the
// producers never block, so neither does the reader wait on them.
func (p *Profiler) DrainEvents(ctx context.Context, f func(*StacktraceEvent)) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				event, ok := p.events.Read()
				if !ok {
					break
				}
				p.metrics.EventsConsumed.Inc()
				f(&event)
			}
		}
	}
}

// RunReport summarizes one profiling run.
type RunReport struct {
	TotalSamples   uint64 `json:"total_samples"`
	DistinctStacks int    `json:"distinct_stacks"`
	DistinctKeys   int    `json:"distinct_keys"`
	SamplingHz     int    `json:"sampling_hz"`
	NamespaceInode uint64 `json:"namespace_inode,omitempty"`
}

type RunReportOption func(*RunReport)

func NewRunReport(opts ...RunReportOption) *RunReport {
	report := new(RunReport)
	for _, opt := range opts {
		opt(report)
	}

	return report
}

func WithReportTotalSamples(total uint64) RunReportOption {
	return func(o *RunReport) {
		o.TotalSamples = total
	}
}

func WithReportDistinctStacks(stacks int) RunReportOption {
	return func(o *RunReport) {
		o.DistinctStacks = stacks
	}
}

func WithReportDistinctKeys(keys int) RunReportOption {
	return func(o *RunReport) {
		o.DistinctKeys = keys
	}
}

func WithReportSamplingHz(hz int) RunReportOption {
	return func(o *RunReport) {
		o.SamplingHz = hz
	}
}

func WithReportNamespaceInode(inode uint64) RunReportOption {
	return func(o *RunReport) {
		o.NamespaceInode = inode
	}
}

func (r *RunReport) WriteReport(w io.Writer) error {
	encoder := json.NewEncoder(w)
	return encoder.Encode(r)
}
