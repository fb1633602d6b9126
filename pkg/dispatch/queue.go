// Package dispatch implements the double-buffered message queue that
// decouples producer goroutines from the per-tick consumer drain.
//
// The queue holds two fixed-capacity message lists. At any instant one is
// the read list and one the write list. Producers append to the write list
// under a shared hold of the queue's reader/writer spin lock, so any number
// of producers enqueue concurrently while sinks drain a read-only view of
// the read list. Only the exclusive operations (flip, sort, and the
// combined sync lock) stop the world, and only for the duration of a few
// array operations.
package dispatch

import (
	"cmp"
	"slices"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/logcore"
	"github.com/hyp3rd/logcore/internal/spinlock"
)

// Queue is the double-buffered dispatch queue of one logger.
type Queue struct {
	rw spinlock.RWMutex

	lists [2][]logcore.LogMessage
	sizes [2]atomic.Int64

	// readIdx selects the list consumers drain; producers append to the
	// other one. Flipped only under the exclusive lock.
	readIdx atomic.Int32

	enqueued atomic.Uint64
	dropped  atomic.Uint64
}

// Stats is a point-in-time snapshot of the queue's counters.
type Stats struct {
	Enqueued uint64
	Dropped  uint64
}

// New creates a queue whose two lists each hold capacity messages.
// Capacity is a hard bound: an enqueue against a full write list drops the
// message.
func New(capacity int) *Queue {
	capacity = logcore.QueueConfig{Capacity: capacity}.Normalized().Capacity

	q := &Queue{}
	q.lists[0] = make([]logcore.LogMessage, capacity)
	q.lists[1] = make([]logcore.LogMessage, capacity)

	return q
}

// Capacity returns the fixed per-list capacity.
func (q *Queue) Capacity() int {
	return len(q.lists[0])
}

// Enqueue appends msg to the current write list, stamping the current time
// when the caller did not supply a timestamp. Safe for any number of
// concurrent producers; the shared hold only excludes flips and sorts,
// never other producers or readers. Returns false when the write list is
// full: the caller owns the dropped payload.
func (q *Queue) Enqueue(msg logcore.LogMessage) bool {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}

	q.rw.RLock()
	defer q.rw.RUnlock()

	w := 1 - q.readIdx.Load()

	pos := q.sizes[w].Add(1) - 1
	if pos >= int64(len(q.lists[w])) {
		q.sizes[w].Add(-1)
		q.dropped.Add(1)

		return false
	}

	q.lists[w][pos] = msg
	q.enqueued.Add(1)

	return true
}

// BeginRead returns a read-only view of the current read list under a
// shared hold. Producers keep enqueueing into the write list while the
// view is held. Every BeginRead must be paired with EndRead.
func (q *Queue) BeginRead() []logcore.LogMessage {
	q.rw.RLock()

	r := q.readIdx.Load()

	return q.lists[r][:q.sizes[r].Load()]
}

// EndRead releases the shared hold taken by BeginRead.
func (q *Queue) EndRead() {
	q.rw.RUnlock()
}

// BeginReadExclusive locks out every producer and reader and returns the
// read list for destructive processing. Must be paired with
// EndReadExclusiveClearAndFlip.
func (q *Queue) BeginReadExclusive() []logcore.LogMessage {
	q.rw.Lock()

	r := q.readIdx.Load()

	return q.lists[r][:q.sizes[r].Load()]
}

// EndReadExclusiveClearAndFlip clears the just-processed read list and
// flips the buffers: the cleared list becomes the new write list and the
// old write list becomes the next read list.
func (q *Queue) EndReadExclusiveClearAndFlip() {
	r := q.readIdx.Load()
	q.sizes[r].Store(0)
	q.readIdx.Store(1 - r)

	q.rw.Unlock()
}

// Sort orders the read list by timestamp under the exclusive lock.
// Concurrent producers append out of order across goroutines; consumers
// that need temporal order sort before draining.
func (q *Queue) Sort() {
	q.rw.Lock()

	r := q.readIdx.Load()
	sortByTimestamp(q.lists[r][:q.sizes[r].Load()])

	q.rw.Unlock()
}

// LockAndSortForSyncAccess takes the exclusive lock across both lists and
// returns them sorted: first the older (read) list, then the newer (write)
// list. The caller processes both in order and must finish with
// EndLockAfterSyncAccess, which clears both lists and releases the lock.
func (q *Queue) LockAndSortForSyncAccess() (older, newer []logcore.LogMessage) {
	q.rw.Lock()

	r := q.readIdx.Load()
	w := 1 - r

	older = q.lists[r][:q.sizes[r].Load()]
	newer = q.lists[w][:q.sizes[w].Load()]

	sortByTimestamp(older)
	sortByTimestamp(newer)

	return older, newer
}

// EndLockAfterSyncAccess clears both lists and releases the exclusive lock
// taken by LockAndSortForSyncAccess.
func (q *Queue) EndLockAfterSyncAccess() {
	q.sizes[0].Store(0)
	q.sizes[1].Store(0)

	q.rw.Unlock()
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued: q.enqueued.Load(),
		Dropped:  q.dropped.Load(),
	}
}

func sortByTimestamp(msgs []logcore.LogMessage) {
	slices.SortFunc(msgs, func(a, b logcore.LogMessage) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
}
