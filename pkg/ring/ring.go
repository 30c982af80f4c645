package ring

import (
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrRingFull is returned by Reserve when no free slot is left. The
// producer must drop its sample: the ring never blocks and never
// overwrites records the consumer has not read yet.
var ErrRingFull = errors.New("ring is full")

// DefaultByteCapacity bounds the ring at 256 KiB of records.
const DefaultByteCapacity = 256 * 1024

type slot[T any] struct {
	// seq drives the slot's lifecycle relative to the cursors:
	// seq == pos      free, a producer may claim it,
	// seq == pos+1    submitted, the consumer may read it,
	// anything else   owned by a reservation or a lagging consumer.
	seq atomic.Uint64
	rec T
}

// Ring is a bounded multi-producer transport of fixed-size records.
// Reserve claims exactly one slot by compare-and-swap on the head
// cursor; the reservation owns the slot's bytes until Submit publishes
// them with a release-ordered sequence store. Producers contend only
// over reservation, never over written bytes.
type Ring[T any] struct {
	slots []slot[T]
	head  atomic.Uint64
	tail  atomic.Uint64
}

// New sizes the ring so that its records fit in byteCapacity: the slot
// count is byteCapacity divided by the record size.
func New[T any](byteCapacity int) (*Ring[T], error) {
	var rec T
	recSize := int(unsafe.Sizeof(rec))
	n := byteCapacity / recSize
	if n < 1 {
		return nil, errors.Errorf("byte capacity %d below record size %d", byteCapacity, recSize)
	}

	r := &Ring[T]{slots: make([]slot[T], n)}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}

	return r, nil
}

// Reservation is an exclusive claim on one slot, valid until Submit.
type Reservation[T any] struct {
	s   *slot[T]
	pos uint64
}

// Record exposes the reserved slot for the producer to fill. The slot
// keeps whatever a previous occupant wrote; producers set every field
// they publish.
func (r *Reservation[T]) Record() *T {
	return &r.s.rec
}

// Submit publishes the record to the consumer. Submission is
// irrevocable and must happen exactly once per reservation.
func (r *Reservation[T]) Submit() {
	r.s.seq.Store(r.pos + 1)
}

// Reserve claims the next free slot, or fails with ErrRingFull.
func (r *Ring[T]) Reserve() (*Reservation[T], error) {
	n := uint64(len(r.slots))
	pos := r.head.Load()
	for {
		s := &r.slots[pos%n]
		switch seq := s.seq.Load(); {
		case seq == pos:
			if r.head.CompareAndSwap(pos, pos+1) {
				return &Reservation[T]{s: s, pos: pos}, nil
			}
			pos = r.head.Load()
		case seq < pos:
			// The consumer has not recycled this slot yet.
			return nil, ErrRingFull
		default:
			pos = r.head.Load()
		}
	}
}

// Read consumes the oldest submitted record, if any. Records become
// visible in claim order: a reservation that was claimed earlier but
// not submitted yet hides every later one.
func (r *Ring[T]) Read() (T, bool) {
	var rec T
	n := uint64(len(r.slots))
	pos := r.tail.Load()
	for {
		s := &r.slots[pos%n]
		switch seq := s.seq.Load(); {
		case seq == pos+1:
			if r.tail.CompareAndSwap(pos, pos+1) {
				rec = s.rec
				s.seq.Store(pos + n)
				return rec, true
			}
			pos = r.tail.Load()
		case seq <= pos:
			return rec, false
		default:
			pos = r.tail.Load()
		}
	}
}

// Len reports the number of outstanding records, submitted or claimed.
func (r *Ring[T]) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if head < tail {
		return 0
	}

	return int(head - tail)
}

// Cap returns the slot count.
func (r *Ring[T]) Cap() int {
	return len(r.slots)
}
