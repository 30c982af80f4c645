package probe_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/stackprof/pkg/probe"
)

func TestReadCPURange(t *testing.T) {
	testCases := []struct {
		rangeStr string
		expected []uint
		wantErr  bool
	}{
		{rangeStr: "0", expected: []uint{0}},
		{rangeStr: "0-3", expected: []uint{0, 1, 2, 3}},
		{rangeStr: "0-1,4", expected: []uint{0, 1, 4}},
		{rangeStr: "0,2-3,5\n", expected: []uint{0, 2, 3, 5}},
		{rangeStr: "x", wantErr: true},
		{rangeStr: "0-x", wantErr: true},
	}

	for _, tc := range testCases {
		cpus, err := probe.ReadCPURange(tc.rangeStr)
		if tc.wantErr {
			require.Error(t, err, tc.rangeStr)
			continue
		}
		require.NoError(t, err, tc.rangeStr)
		require.Equal(t, tc.expected, cpus, tc.rangeStr)
	}
}

func TestProbe_RunWithoutHandlers(t *testing.T) {
	p := probe.NewProbe(probe.WithLogger(log.Nop()))

	require.ErrorIs(t, p.Run(context.Background()), probe.ErrNoHandlers)
}

func TestProbe_RunInvokesHandlersEachTick(t *testing.T) {
	p := probe.NewProbe(
		probe.WithFrequency(100),
		probe.WithLogger(log.Nop()),
	)

	var first, second atomic.Uint64
	p.Attach(func() error {
		first.Add(1)
		return nil
	})
	p.Attach(func() error {
		second.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	// Both handlers fire on every tick.
	require.Greater(t, first.Load(), uint64(0))
	require.Equal(t, first.Load(), second.Load())
}

func TestProbe_HandlerErrorsDoNotStopTheTrigger(t *testing.T) {
	p := probe.NewProbe(
		probe.WithFrequency(100),
		probe.WithLogger(log.Nop()),
	)

	var calls atomic.Uint64
	p.Attach(func() error {
		calls.Add(1)
		return context.DeadlineExceeded
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Greater(t, calls.Load(), uint64(1))
}

func TestProbe_Init(t *testing.T) {
	p := probe.NewProbe(probe.WithLogger(log.Nop()))

	require.NoError(t, p.Init(context.Background()))
}
