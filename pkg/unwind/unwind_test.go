package unwind_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/stackprof/pkg/unwind"
)

func TestCallersUnwinder_User(t *testing.T) {
	u := unwind.NewCallersUnwinder(0)
	frames := make([]uint64, unwind.MaxFrames)

	sz := u.User(frames)
	require.Greater(t, sz, 0)
	require.Zero(t, sz%unwind.WordSize)

	depth := sz / unwind.WordSize
	for i := 0; i < depth; i++ {
		require.NotZero(t, frames[i])
	}
}

func TestCallersUnwinder_UserDeterministic(t *testing.T) {
	u := unwind.NewCallersUnwinder(0)

	capture := func() []uint64 {
		frames := make([]uint64, unwind.MaxFrames)
		sz := u.User(frames)
		require.Greater(t, sz, 0)
		return frames[:sz/unwind.WordSize]
	}

	// Identical call sites produce bit-identical chains.
	var captures [][]uint64
	for i := 0; i < 2; i++ {
		captures = append(captures, capture())
	}
	require.Equal(t, captures[0], captures[1])
}

func TestCallersUnwinder_SmallBuffer(t *testing.T) {
	u := unwind.NewCallersUnwinder(0)
	frames := make([]uint64, 2)

	sz := u.User(frames)
	require.Greater(t, sz, 0)
	require.LessOrEqual(t, sz/unwind.WordSize, 2)
}

func TestCallersUnwinder_Kernel(t *testing.T) {
	u := unwind.NewCallersUnwinder(0)
	frames := make([]uint64, unwind.MaxFrames)

	// Kernel stacks are not reachable from user space.
	require.Negative(t, u.Kernel(frames))
}
