package stackstore

import (
	"sync/atomic"
	"unsafe"

	"github.com/zeebo/xxh3"

	"github.com/maxgio92/stackprof/pkg/unwind"
)

const (
	// MaxStackDepth is the deepest trace the store records, as for the
	// default PERF_MAX_STACK_DEPTH.
	MaxStackDepth = 127

	// MaxEntries is the default store-wide bound on distinct traces.
	MaxEntries = 16384

	// StackIDFailure is returned when no identifier could be produced.
	StackIDFailure = int64(-1)
)

// Trace is an ordered sequence of instruction pointers.
type Trace [MaxStackDepth]uint64

const (
	bucketEmpty uint32 = iota
	bucketClaimed
	bucketReady
)

type bucket struct {
	state atomic.Uint32
	hash  uint64
	depth int32
	trace Trace
}

// Store deduplicates captured stack traces into a bounded set of
// buckets and hands out the bucket index as a stable stack identifier.
// Identity is hash-based: with FlagFastCmp two distinct traces hashing
// to the same value share an identifier, trading collision tolerance
// for speed.
type Store struct {
	buckets []bucket
	len     atomic.Int64
}

type Option func(*Store)

// WithCapacity overrides the default bucket count.
func WithCapacity(n int) Option {
	return func(s *Store) {
		s.buckets = make([]bucket, n)
	}
}

func NewStore(opts ...Option) *Store {
	store := new(Store)
	for _, f := range opts {
		f(store)
	}
	if store.buckets == nil {
		store.buckets = make([]bucket, MaxEntries)
	}

	return store
}

// ResolveOrCreate captures the calling context's stack through the
// unwinder and returns its stable identifier. It returns StackIDFailure
// when the unwinder produces no trace, when the target bucket is held
// by a different trace, or when a concurrent claim does not settle.
// The caller must treat the sentinel as "stack unavailable" and go on.
func (s *Store) ResolveOrCreate(u unwind.Unwinder, flags unwind.Flags) int64 {
	var frames Trace

	var sz int
	if flags&unwind.FlagUserStack != 0 {
		sz = u.User(frames[:])
	} else {
		sz = u.Kernel(frames[:])
	}
	if sz <= 0 {
		return StackIDFailure
	}

	depth := sz / unwind.WordSize
	if depth > MaxStackDepth {
		depth = MaxStackDepth
	}

	return s.resolve(&frames, int32(depth), flags)
}

func (s *Store) resolve(frames *Trace, depth int32, flags unwind.Flags) int64 {
	hash := hashFrames(frames, depth)
	id := int64(hash % uint64(len(s.buckets)))
	b := &s.buckets[id]

	for spin := 0; spin < 2; spin++ {
		switch b.state.Load() {
		case bucketReady:
			if b.hash != hash {
				// Bucket collision. No eviction, the sample is lost.
				return StackIDFailure
			}
			if flags&unwind.FlagFastCmp == 0 && !tracesEqual(&b.trace, frames, depth, b.depth) {
				return StackIDFailure
			}
			return id
		case bucketEmpty:
			if b.state.CompareAndSwap(bucketEmpty, bucketClaimed) {
				b.hash = hash
				b.depth = depth
				copy(b.trace[:], frames[:depth])
				b.state.Store(bucketReady)
				s.len.Add(1)
				return id
			}
		}
		// Another unit holds the claim: re-check once, then give up.
	}

	return StackIDFailure
}

// Lookup returns a copy of the trace stored under id and its depth.
func (s *Store) Lookup(id int64) (Trace, int, bool) {
	var trace Trace
	if id < 0 || id >= int64(len(s.buckets)) {
		return trace, 0, false
	}
	b := &s.buckets[id]
	if b.state.Load() != bucketReady {
		return trace, 0, false
	}
	copy(trace[:], b.trace[:])

	return trace, int(b.depth), true
}

// Len returns the number of distinct traces currently stored.
func (s *Store) Len() int {
	return int(s.len.Load())
}

func hashFrames(frames *Trace, depth int32) uint64 {
	view := unsafe.Slice((*byte)(unsafe.Pointer(&frames[0])), int(depth)*unwind.WordSize)
	return xxh3.Hash(view)
}

func tracesEqual(a, b *Trace, depthA, depthB int32) bool {
	if depthA != depthB {
		return false
	}
	for i := int32(0); i < depthA; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
