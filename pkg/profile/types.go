package profile

import (
	"github.com/maxgio92/stackprof/pkg/aggmap"
)

const (
	// TaskCommLen is the fixed length of a thread short name.
	TaskCommLen = aggmap.TaskCommLen

	// MaxFrames bounds the frame arrays embedded in a StacktraceEvent.
	MaxFrames = 128

	// EventsByteCapacity bounds the streaming channel.
	EventsByteCapacity = 256 * 1024

	// collapsedPid is the constant stored in the aggregation key's pid
	// field when processes are collapsed into a single bucket.
	collapsedPid = 1
)

// StacktraceEvent is one full raw stack sample streamed to the external
// reader. The record is fixed-size: the two stack size fields hold the
// byte length actually written into the corresponding frame array, or a
// negative sentinel when that capture failed, in which case the array's
// contents must not be trusted.
type StacktraceEvent struct {
	IP       uint64
	Pid      uint32
	CPUID    uint32
	Tgid     uint32
	Comm     [TaskCommLen]byte
	UstackSz int32
	Ustack   [MaxFrames]uint64
	KstackSz int32
	Kstack   [MaxFrames]uint64
}

// UserFrames returns the valid user-space frames, nil on capture failure.
func (e *StacktraceEvent) UserFrames() []uint64 {
	return frames(e.Ustack[:], e.UstackSz)
}

// KernelFrames returns the valid kernel frames, nil on capture failure.
func (e *StacktraceEvent) KernelFrames() []uint64 {
	return frames(e.Kstack[:], e.KstackSz)
}

func frames(stack []uint64, size int32) []uint64 {
	if size < 0 {
		return nil
	}
	depth := int(size) / 8
	if depth > len(stack) {
		depth = len(stack)
	}

	return stack[:depth]
}
