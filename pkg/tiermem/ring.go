package tiermem

import "sync/atomic"

// Ring is a fixed-capacity, lock-free single-producer/single-consumer FIFO
// of AccessMsg-sized slots. Capacity must be a power of two so the head/tail
// cursors can be masked instead of taken modulo, the classic Lamport SPSC
// ring layout. There is no off-the-shelf lock-free MPSC queue reached for
// here, so the multi-producer case is built out of N of these per-producer
// rings instead of a single CAS-loop queue (see Lanes below).
type Ring struct {
	mask uint64
	buf  []ringSlot

	head atomic.Uint64 // next slot to write
	tail atomic.Uint64 // next slot to read
}

type ringSlot struct {
	valid atomic.Uint32
	msg   AccessMsg
}

// NewRing creates a Ring of the given capacity, which must be a power of
// two (1 included).
func NewRing(capacity int) *Ring {
	if capacity < 1 || capacity&(capacity-1) != 0 {
		panic("tiermem: ring capacity must be a power of two")
	}
	return &Ring{
		mask: uint64(capacity - 1),
		buf:  make([]ringSlot, capacity),
	}
}

// TryPush attempts to enqueue msg, returning false if the ring is full.
func (r *Ring) TryPush(msg AccessMsg) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		return false
	}
	slot := &r.buf[head&r.mask]
	slot.msg = msg
	slot.valid.Store(1)
	r.head.Store(head + 1)
	return true
}

// TryPop attempts to dequeue the oldest message, returning ok=false if the
// ring is empty.
func (r *Ring) TryPop() (msg AccessMsg, ok bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		return AccessMsg{}, false
	}
	slot := &r.buf[tail&r.mask]
	if slot.valid.Load() == 0 {
		return AccessMsg{}, false
	}
	msg = slot.msg
	slot.valid.Store(0)
	r.tail.Store(tail + 1)
	return msg, true
}

// MigrationRing is the scanner-to-migration-worker analogue of Ring, sized
// for MigrationMsg instead of AccessMsg. Kept as a distinct type rather than
// a generic ring.
type MigrationRing struct {
	mask uint64
	buf  []migrationSlot

	head atomic.Uint64
	tail atomic.Uint64
}

type migrationSlot struct {
	valid atomic.Uint32
	msg   MigrationMsg
}

// NewMigrationRing creates a MigrationRing of the given power-of-two
// capacity.
func NewMigrationRing(capacity int) *MigrationRing {
	if capacity < 1 || capacity&(capacity-1) != 0 {
		panic("tiermem: ring capacity must be a power of two")
	}
	return &MigrationRing{
		mask: uint64(capacity - 1),
		buf:  make([]migrationSlot, capacity),
	}
}

func (r *MigrationRing) TryPush(msg MigrationMsg) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		return false
	}
	slot := &r.buf[head&r.mask]
	slot.msg = msg
	slot.valid.Store(1)
	r.head.Store(head + 1)
	return true
}

func (r *MigrationRing) TryPop() (msg MigrationMsg, ok bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		return MigrationMsg{}, false
	}
	slot := &r.buf[tail&r.mask]
	if slot.valid.Load() == 0 {
		return MigrationMsg{}, false
	}
	msg = slot.msg
	slot.valid.Store(0)
	r.tail.Store(tail + 1)
	return msg, true
}

// Lanes multiplexes N per-client SPSC Rings behind a single TryPop that
// round-robins across them, giving the access worker one consumption point
// while every client keeps its own lock-free, wait-free producer path and
// its own FIFO ordering guarantee.
type Lanes struct {
	rings []*Ring
	next  int
}

// NewLanes creates one Ring of the given capacity per client.
func NewLanes(numClients, capacityPerClient int) *Lanes {
	rings := make([]*Ring, numClients)
	for i := range rings {
		rings[i] = NewRing(capacityPerClient)
	}
	return &Lanes{rings: rings}
}

// Lane returns the dedicated ring for the given client id, for producers.
func (l *Lanes) Lane(clientID int) *Ring {
	return l.rings[clientID]
}

// TryPop scans the lanes starting after the last lane it served, returning
// the first available message. Round-robining the start point instead of
// always starting at lane 0 keeps one busy client from starving the rest.
func (l *Lanes) TryPop() (msg AccessMsg, ok bool) {
	n := len(l.rings)
	for i := 0; i < n; i++ {
		idx := (l.next + i) % n
		if msg, ok = l.rings[idx].TryPop(); ok {
			l.next = (idx + 1) % n
			return msg, true
		}
	}
	return AccessMsg{}, false
}
