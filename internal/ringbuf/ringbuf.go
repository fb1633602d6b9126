// Package ringbuf implements the circular byte arena backing payload
// storage: variable-sized, header-prefixed blocks addressed by versioned
// handles, allocated at the head and reclaimed strictly from the tail.
//
// Each block carries an 8-byte header (payload size, control word, total
// block size) followed by the payload, aligned to 8 bytes. The control word
// holds the block's version stamp while it is live and the released
// sentinel once it has been released but not yet reclaimed. Handles embed
// the version they were minted with; every access re-validates the handle
// against the live header, so a stale handle fails softly instead of
// reading reused memory.
package ringbuf

import (
	"encoding/binary"

	"github.com/hyp3rd/logcore"
	"github.com/hyp3rd/logcore/internal/spinlock"
)

const (
	// HeaderSize is the per-block bookkeeping prefix: payload size (u16),
	// control word (u16), total block size (u32).
	HeaderSize = 8

	// blockAlignment keeps every block 8-byte aligned.
	blockAlignment = 8

	// releasedSentinel in the control word marks a block released but not
	// yet reclaimed. Never a valid version.
	releasedSentinel = 0xFFFF

	// maxVersion bounds stamped versions so they stay clear of both zero
	// and the released sentinel: stamps cycle through [1, maxVersion+1].
	maxVersion = 0xFFD
)

// Align rounds n up to the arena's block alignment.
func Align(n int32) int32 {
	return (n + blockAlignment - 1) &^ (blockAlignment - 1)
}

// Buffer is one circular byte arena. Every mutating operation takes the
// internal allocation lock, so each call is atomic with respect to other
// allocations and frees on the same buffer. Reclaim must additionally be
// confined to the single maintenance goroutine.
type Buffer struct {
	mu   spinlock.Mutex
	data []byte

	// head is the next allocation offset, tail the oldest live block, and
	// fence the last usable offset before the wrap point. Blocks are never
	// split across the physical end of the arena: when the space between
	// head and the fence cannot hold a request, the remainder is fenced
	// off and allocation wraps to offset zero.
	head  int32
	tail  int32
	fence int32

	allocated int32
	highWater int32

	// version increments on every successful allocation; the stamp written
	// to the block header is derived from it.
	version uint64

	id uint8
}

// New creates an arena of the given capacity. Capacity is clamped to the
// supported range and rounded to the block alignment.
func New(capacity int32, id uint8) *Buffer {
	if capacity < logcore.MinimumBufferCapacity {
		capacity = logcore.MinimumBufferCapacity
	}

	if capacity > logcore.MaximumBufferCapacity {
		capacity = logcore.MaximumBufferCapacity
	}

	capacity = Align(capacity)

	return &Buffer{
		data:  make([]byte, capacity),
		fence: capacity - 1,
		id:    id,
	}
}

// ID returns the buffer id stamped into every handle minted here.
func (b *Buffer) ID() uint8 {
	return b.id
}

// Capacity returns the arena capacity in bytes.
func (b *Buffer) Capacity() int32 {
	return int32(len(b.data))
}

// BytesAllocated returns the number of bytes currently occupied by live and
// released-but-unreclaimed blocks, headers included.
func (b *Buffer) BytesAllocated() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.allocated
}

// HighWater returns the highest BytesAllocated observed since creation.
func (b *Buffer) HighWater() int32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.highWater
}

// Allocate carves a block for size payload bytes and returns its handle
// plus a mutable view over the payload region. A zero handle means the
// request could not be satisfied; allocation never blocks waiting for
// space.
func (b *Buffer) Allocate(size int32) (logcore.PayloadHandle, []byte) {
	if size < logcore.MinimumPayloadSize || size > logcore.MaximumPayloadSize {
		return 0, nil
	}

	total := Align(size) + HeaderSize

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := int32(len(b.data))

	var offset int32

	switch {
	case b.allocated == 0:
		// Empty arena: reset the cursors so the block lands at zero.
		b.head = 0
		b.tail = 0
		b.fence = capacity - 1

		if total > capacity {
			return 0, nil
		}
	case b.head > b.tail:
		switch {
		case b.head+total <= b.fence+1:
			offset = b.head
		case total <= b.tail:
			// No contiguous room before the wrap point: fence off the
			// remainder and continue from offset zero. The fenced bytes
			// stay wasted until reclamation passes them.
			b.fence = b.head - 1
			offset = 0
		default:
			return 0, nil
		}
	default:
		// head <= tail with live data: free space is [head, tail).
		if b.head == b.tail || b.head+total > b.tail {
			return 0, nil
		}

		offset = b.head
	}

	b.version++
	stamp := uint16(b.version%(maxVersion+1)) + 1

	binary.LittleEndian.PutUint16(b.data[offset:], uint16(size))
	binary.LittleEndian.PutUint16(b.data[offset+2:], stamp)
	binary.LittleEndian.PutUint32(b.data[offset+4:], uint32(total))

	b.head = offset + total
	b.allocated += total

	if b.allocated > b.highWater {
		b.highWater = b.allocated
	}

	handle := logcore.NewPayloadHandle(uint32(offset), stamp, b.id, false)

	return handle, b.data[offset+HeaderSize : offset+HeaderSize+size]
}

// Release stamps the block referenced by h as eligible for reclamation.
// The memory is not reused until the reclaim walk reaches the block from
// the tail.
func (b *Buffer) Release(h logcore.PayloadHandle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	offset, ok := b.validate(h)
	if !ok {
		return false
	}

	binary.LittleEndian.PutUint16(b.data[offset+2:], releasedSentinel)

	return true
}

// Retrieve re-validates h and returns a view over the block's payload
// bytes. The view is only safe to use while the block stays live.
func (b *Buffer) Retrieve(h logcore.PayloadHandle) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	offset, ok := b.validate(h)
	if !ok {
		return nil, false
	}

	size := int32(binary.LittleEndian.Uint16(b.data[offset:]))

	return b.data[offset+HeaderSize : offset+HeaderSize+size], true
}

// IsValid reports whether h still references a live block in this arena.
func (b *Buffer) IsValid(h logcore.PayloadHandle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.validate(h)

	return ok
}

// Reclaim advances the tail past released blocks, wrapping at the fence.
// Reclamation is strictly tail-first: a released block behind a live one
// stays occupied until the live block is released too. Must only be called
// from the single maintenance goroutine.
func (b *Buffer) Reclaim() {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := int32(len(b.data))

	for b.allocated > 0 {
		control := binary.LittleEndian.Uint16(b.data[b.tail+2:])
		if control != releasedSentinel {
			return
		}

		total := int32(binary.LittleEndian.Uint32(b.data[b.tail+4:]))
		b.allocated -= total
		b.tail += total

		if b.tail > b.fence {
			// Crossed the fenced remainder; continue from offset zero and
			// restore the full arena.
			b.tail = 0
			b.fence = capacity - 1
		}

		if b.allocated == 0 {
			b.head = 0
			b.tail = 0
			b.fence = capacity - 1
		}
	}
}

// validate cross-checks every handle field against the live block header:
// buffer id, offset bounds, payload size sanity, and the version stamp.
func (b *Buffer) validate(h logcore.PayloadHandle) (int32, bool) {
	if !h.IsValid() || h.BufferID() != b.id {
		return 0, false
	}

	capacity := int32(len(b.data))

	offset := int32(h.Offset())
	if offset < 0 || offset+HeaderSize > capacity {
		return 0, false
	}

	size := int32(binary.LittleEndian.Uint16(b.data[offset:]))
	if size < logcore.MinimumPayloadSize || size > logcore.MaximumPayloadSize || offset+HeaderSize+size > capacity {
		return 0, false
	}

	control := binary.LittleEndian.Uint16(b.data[offset+2:])
	if control == releasedSentinel || control != h.Version() {
		return 0, false
	}

	return offset, true
}

// cursors exposes the ring control values for tests.
func (b *Buffer) cursors() (head, tail, fence int32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.head, b.tail, b.fence
}
