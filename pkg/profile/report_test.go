package profile_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	gprofile "github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/stackprof/pkg/aggmap"
	"github.com/maxgio92/stackprof/pkg/profile"
)

func newSample(comm string, count uint32, frames ...uint64) profile.Sample {
	key := aggmap.Key{Pid: 1, StackID: 7}
	copy(key.Comm[:], comm)

	return profile.Sample{Key: key, Count: count, Frames: frames}
}

func TestCollect_ResetsCounters(t *testing.T) {
	p := newTestProfiler(t)

	require.NoError(t, p.HandleCountEvent())
	require.NoError(t, p.HandleCountEvent())

	samples := p.Collect()
	require.Len(t, samples, 1)
	require.Equal(t, uint32(2), samples[0].Count)

	// A second drain sees nothing new.
	require.Empty(t, p.Collect())
}

func TestWriteFolded(t *testing.T) {
	samples := []profile.Sample{
		newSample("worker-1", 3, 0x1000, 0x2000),
	}

	var buf bytes.Buffer
	require.NoError(t, profile.WriteFolded(&buf, samples))

	// Leaf-last: the deepest frame closes the line.
	expected := fmt.Sprintf("worker-1;%#016x;%#016x 3\n", uint64(0x2000), uint64(0x1000))
	require.Equal(t, expected, buf.String())
}

func TestWriteFolded_NoStack(t *testing.T) {
	samples := []profile.Sample{
		newSample("worker-1", 2),
	}

	var buf bytes.Buffer
	require.NoError(t, profile.WriteFolded(&buf, samples))
	require.Equal(t, "worker-1;[no stack] 2\n", buf.String())
}

func TestWriteProfile_RoundTrip(t *testing.T) {
	samples := []profile.Sample{
		newSample("worker-1", 3, 0x1000, 0x2000),
		newSample("worker-2", 1, 0x1000, 0x3000),
		newSample("worker-3", 5),
	}

	var buf bytes.Buffer
	require.NoError(t, profile.WriteProfile(&buf, samples, 10*time.Millisecond))

	prof, err := gprofile.Parse(&buf)
	require.NoError(t, err)
	require.NoError(t, prof.CheckValid())

	// Stack-less samples are skipped, shared addresses share a location.
	require.Len(t, prof.Sample, 2)
	require.Len(t, prof.Location, 3)
	require.Equal(t, int64(10*time.Millisecond), prof.Period)
	require.Equal(t, []int64{3}, prof.Sample[0].Value)
	require.Equal(t, []string{"worker-1"}, prof.Sample[0].Label["comm"])
}

func TestDrainEvents(t *testing.T) {
	p := newTestProfiler(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.HandleStreamEvent())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen atomic.Int32
	go p.DrainEvents(ctx, func(event *profile.StacktraceEvent) {
		require.Equal(t, uint32(1234), event.Pid)
		seen.Add(1)
	})

	require.Eventually(t, func() bool { return seen.Load() == 5 }, time.Second, 10*time.Millisecond)
	cancel()

	_, ok := p.Events().Read()
	require.False(t, ok)
}

func TestRunReport_WriteReport(t *testing.T) {
	report := profile.NewRunReport(
		profile.WithReportTotalSamples(120),
		profile.WithReportDistinctStacks(4),
		profile.WithReportDistinctKeys(6),
		profile.WithReportSamplingHz(20),
		profile.WithReportNamespaceInode(4026531836),
	)

	var buf bytes.Buffer
	require.NoError(t, report.WriteReport(&buf))

	var decoded profile.RunReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, *report, decoded)
}
