package aggmap

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

const (
	// TaskCommLen is the fixed length of a thread short name.
	TaskCommLen = 16

	// MaxEntries is the default bound on distinct keys.
	MaxEntries = 16384
)

// Key identifies one aggregated sample population. Equality is exact
// field-wise equality; the stack identifier may be negative to record
// samples whose stack could not be captured.
type Key struct {
	Pid     uint32
	StackID int64
	Comm    [TaskCommLen]byte
}

const (
	slotEmpty uint32 = iota
	slotClaimed
	slotReady
)

type slot struct {
	state atomic.Uint32
	key   Key
	count atomic.Uint32
}

// Table is a bounded concurrent map from Key to an occurrence counter.
// Single-key increment and insert-if-absent are atomic; the compound
// lookup-then-insert is not, so two concurrent first observations of a
// key may lose one count. That undercount is an accepted trade-off.
type Table struct {
	slots []slot
	len   atomic.Int64
}

type Option func(*Table)

// WithCapacity overrides the default slot count.
func WithCapacity(n int) Option {
	return func(t *Table) {
		t.slots = make([]slot, n)
	}
}

func NewTable(opts ...Option) *Table {
	table := new(Table)
	for _, f := range opts {
		f(table)
	}
	if table.slots == nil {
		table.slots = make([]slot, MaxEntries)
	}

	return table
}

// Get returns the current counter for key.
func (t *Table) Get(key Key) (uint32, bool) {
	n := len(t.slots)
	idx := int(key.hash() % uint64(n))
	for i := 0; i < n; i++ {
		s := &t.slots[(idx+i)%n]
		switch s.state.Load() {
		case slotEmpty:
			return 0, false
		case slotReady:
			if s.key == key {
				return s.count.Load(), true
			}
		}
	}

	return 0, false
}

// IncrementOrInsert bumps the counter for key, inserting it with an
// initial count of one on first observation. It returns false when the
// table is at capacity and the observation is lost. It never blocks:
// slots mid-claim by another unit are probed past, not waited on.
func (t *Table) IncrementOrInsert(key Key) bool {
	n := len(t.slots)
	idx := int(key.hash() % uint64(n))
	for i := 0; i < n; i++ {
		s := &t.slots[(idx+i)%n]
		switch s.state.Load() {
		case slotReady:
			if s.key == key {
				s.count.Add(1)
				return true
			}
		case slotEmpty:
			if s.state.CompareAndSwap(slotEmpty, slotClaimed) {
				s.key = key
				s.count.Store(1)
				s.state.Store(slotReady)
				t.len.Add(1)
				return true
			}
			// Lost the claim race. If the winner settled this slot with
			// a key, resolve against it; if it is still mid-claim the
			// observation is dropped, probing past an unsettled slot
			// could duplicate the key.
			if s.state.Load() == slotReady {
				if s.key == key {
					s.count.Add(1)
					return true
				}
				continue
			}
			return false
		}
	}

	return false
}

// IterateAndReset calls f for every key with a non-zero counter and
// atomically resets the counter to zero. Keys stay resident: the table
// never shrinks, only its counters are drained.
func (t *Table) IterateAndReset(f func(Key, uint32)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.state.Load() != slotReady {
			continue
		}
		if c := s.count.Swap(0); c > 0 {
			f(s.key, c)
		}
	}
}

// Len returns the number of distinct keys observed so far.
func (t *Table) Len() int {
	return int(t.len.Load())
}

func (k *Key) hash() uint64 {
	var buf [4 + 8 + TaskCommLen]byte
	binary.LittleEndian.PutUint32(buf[0:], k.Pid)
	binary.LittleEndian.PutUint64(buf[4:], uint64(k.StackID))
	copy(buf[12:], k.Comm[:])

	return xxh3.Hash(buf[:])
}
