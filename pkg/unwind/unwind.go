package unwind

import (
	"runtime"
)

// Flags select how a stack is captured and compared by the stack store.
type Flags uint32

const (
	// FlagUserStack captures the user-space return-address chain.
	FlagUserStack Flags = 1 << iota

	// FlagFastCmp deduplicates traces by hash only, without comparing
	// the full frame sequence. Hash collisions collapse distinct stacks.
	FlagFastCmp
)

const (
	// WordSize is the byte width of a single captured frame address.
	WordSize = 8

	// MaxFrames bounds a single capture.
	MaxFrames = 128
)

// Unwinder captures the calling context's stack into a caller-provided
// frame buffer. Both methods return the number of bytes written, or a
// negative value when no trace could be produced. They never block.
type Unwinder interface {
	User(frames []uint64) int
	Kernel(frames []uint64) int
}

// CallersUnwinder walks the current goroutine's return-address chain
// with the runtime's frame-pointer unwinder.
type CallersUnwinder struct {
	// Skip drops the innermost frames, so that the sampling machinery
	// itself does not appear in every captured trace.
	Skip int
}

func NewCallersUnwinder(skip int) *CallersUnwinder {
	return &CallersUnwinder{Skip: skip}
}

func (u *CallersUnwinder) User(frames []uint64) int {
	var pcs [MaxFrames]uintptr
	buf := pcs[:]
	if len(frames) < len(buf) {
		buf = pcs[:len(frames)]
	}
	n := runtime.Callers(2+u.Skip, buf)
	if n == 0 {
		return -1
	}
	for i := 0; i < n; i++ {
		frames[i] = uint64(pcs[i])
	}

	return n * WordSize
}

// Kernel stacks are not reachable from user space: the capture always
// reports the failure sentinel, and callers record it as such.
func (u *CallersUnwinder) Kernel(_ []uint64) int {
	return -1
}
