// Package memory implements the payload memory manager: one or two ring
// buffers (two only during a live resize) plus an optional overflow buffer,
// allocation routing, disjointed-buffer composition, reference-counted
// payload locking, deferred release, and the periodic maintenance cycle
// that reclaims memory and adapts capacity to the observed load.
package memory

import (
	"math/bits"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/hyp3rd/logcore"
	"github.com/hyp3rd/logcore/internal/ringbuf"
	"github.com/hyp3rd/logcore/internal/spinlock"
	"github.com/hyp3rd/logcore/internal/stats"
)

// Buffer ids stay fixed across resizes so in-flight handles keep routing to
// the buffer they were minted from.
const (
	bufferIDA        = 1
	bufferIDB        = 2
	overflowBufferID = 3
)

// Manager owns the payload memory of one logger. Producers allocate and
// retrieve concurrently through the per-buffer allocation locks; Update
// runs the maintenance cycle and must be confined to a single goroutine.
type Manager struct {
	cfg logcore.MemoryConfig

	// active receives new allocations. standby is non-nil only while a
	// resize drains the previous buffer; its payloads stay retrievable
	// until naturally released and reclaimed.
	active   atomic.Pointer[ringbuf.Buffer]
	standby  atomic.Pointer[ringbuf.Buffer]
	overflow *ringbuf.Buffer

	usage *stats.MovingAverage

	// locks tracks the lock-context bitmask pinning each handle.
	locksMu spinlock.Mutex
	locks   map[logcore.PayloadHandle]uint64

	// deferred holds the two release lists flipped every maintenance
	// cycle, guaranteeing one to two full cycles between a deferred
	// release request and the actual release.
	deferredMu  spinlock.Mutex
	deferred    [2][]logcore.PayloadHandle
	deferredCur int

	// update guards the maintenance cycle; it is not reentrant.
	update spinlock.Mutex

	lastOverflowHighWater int32

	failureLimiter *rate.Limiter

	allocations         atomic.Uint64
	allocationFailures  atomic.Uint64
	overflowAllocations atomic.Uint64
	releases            atomic.Uint64
	deferredRequests    atomic.Uint64
	resizes             atomic.Uint64

	initialized atomic.Bool
}

// Stats is a point-in-time snapshot of the manager's counters.
type Stats struct {
	Allocations         uint64
	AllocationFailures  uint64
	OverflowAllocations uint64
	Releases            uint64
	DeferredRequests    uint64
	Resizes             uint64
	Capacity            int32
	BytesAllocated      int32
	ResizeInProgress    bool
}

// NewManager builds a manager from the given configuration. Out-of-range
// values are silently replaced with defaults.
func NewManager(cfg logcore.MemoryConfig) *Manager {
	cfg = cfg.Normalized()

	m := &Manager{
		cfg:            cfg,
		usage:          stats.NewMovingAverage(cfg.MovingAverageWindow),
		locks:          make(map[logcore.PayloadHandle]uint64),
		failureLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}

	m.active.Store(ringbuf.New(cfg.InitialBufferCapacity, bufferIDA))

	if cfg.OverflowBufferCapacity > 0 {
		m.overflow = ringbuf.New(cfg.OverflowBufferCapacity, overflowBufferID)
	}

	m.initialized.Store(true)

	return m
}

// IsInitialized reports whether the manager is usable.
func (m *Manager) IsInitialized() bool {
	return m.initialized.Load()
}

// Capacity returns the capacity of the active default buffer.
func (m *Manager) Capacity() int32 {
	if b := m.active.Load(); b != nil {
		return b.Capacity()
	}

	return 0
}

// BytesAllocated returns the bytes occupied in the active default buffer.
func (m *Manager) BytesAllocated() int32 {
	if b := m.active.Load(); b != nil {
		return b.BytesAllocated()
	}

	return 0
}

// AllocatePayloadBuffer carves size bytes out of the active default buffer,
// falling back to the overflow buffer when the default one is full. On
// total exhaustion it reports through the allocation-failure hook (rate
// limited) and returns an invalid handle. It never blocks waiting for
// space and never panics: callers treat an invalid handle as "drop".
func (m *Manager) AllocatePayloadBuffer(size int) (logcore.PayloadHandle, []byte) {
	if !m.initialized.Load() || size < 0 || size > logcore.MaximumPayloadSize {
		return 0, nil
	}

	if active := m.active.Load(); active != nil {
		if handle, view := active.Allocate(int32(size)); handle.IsValid() {
			m.allocations.Add(1)

			return handle, view
		}
	}

	if m.overflow != nil {
		if handle, view := m.overflow.Allocate(int32(size)); handle.IsValid() {
			m.allocations.Add(1)
			m.overflowAllocations.Add(1)

			return handle, view
		}
	}

	m.allocationFailures.Add(1)
	m.reportAllocationFailure(size)

	return 0, nil
}

// RetrievePayloadBuffer re-validates h and returns a view over the payload
// bytes. The view must not be retained past the block's release.
func (m *Manager) RetrievePayloadBuffer(h logcore.PayloadHandle) ([]byte, bool) {
	if !m.initialized.Load() {
		return nil, false
	}

	buf := m.bufferFor(h)
	if buf == nil {
		return nil, false
	}

	return buf.Retrieve(h)
}

// IsPayloadHandleValid reports whether h still references a live block.
func (m *Manager) IsPayloadHandleValid(h logcore.PayloadHandle) bool {
	if !m.initialized.Load() {
		return false
	}

	buf := m.bufferFor(h)

	return buf != nil && buf.IsValid(h)
}

// ReleasePayloadBuffer releases the payload referenced by h. A payload
// pinned by outstanding lock contexts is refused unless force is set.
// Disjointed payloads cascade into their content blocks first; if any
// content release fails the head is kept so the call can be retried,
// unless force is set.
func (m *Manager) ReleasePayloadBuffer(h logcore.PayloadHandle, force bool) (bool, ReleaseResult) {
	if !m.initialized.Load() {
		return false, ReleaseNotInitialized
	}

	if !h.IsValid() {
		return false, ReleaseInvalidHandle
	}

	locked := m.lockMask(h) != 0
	if locked && !force {
		return false, ReleaseBufferLocked
	}

	result := ReleaseSuccess

	if h.IsDisjointed() {
		ok, res := m.releaseDisjointed(h, force)
		if !ok {
			return false, res
		}

		result = res
	} else {
		buf := m.bufferFor(h)
		if buf == nil || !buf.Release(h) {
			return false, ReleaseInvalidHandle
		}
	}

	m.dropLockEntry(h)
	m.releases.Add(1)

	if locked && result == ReleaseSuccess {
		result = ReleaseForced
	}

	return true, result
}

// ReleasePayloadBufferDeferred queues h for release one to two maintenance
// cycles from now. Deferred release exists for payloads that may still be
// read by a consumer that picked them up before the release request; log
// decorations referenced by in-flight messages are the canonical case.
// By the time the deferred list is processed, any consumer that was
// mid-read has completed its cycle.
func (m *Manager) ReleasePayloadBufferDeferred(h logcore.PayloadHandle) bool {
	if !m.initialized.Load() || !h.IsValid() {
		return false
	}

	m.deferredMu.Lock()
	m.deferred[m.deferredCur] = append(m.deferred[m.deferredCur], h)
	m.deferredMu.Unlock()

	m.deferredRequests.Add(1)

	return true
}

// Update runs one maintenance cycle: deferred releases, reclamation of all
// buffers, overflow pressure tracking, and the resize state machine. It
// must be called from a single maintenance goroutine, once per tick, never
// concurrently with itself.
func (m *Manager) Update() {
	if !m.initialized.Load() {
		return
	}

	m.update.Lock()
	defer m.update.Unlock()

	m.processDeferredReleases()

	active := m.active.Load()
	if active == nil {
		return
	}

	active.Reclaim()

	standby := m.standby.Load()
	if standby != nil {
		standby.Reclaim()
	}

	overflowTriggered := false

	if m.overflow != nil {
		m.overflow.Reclaim()

		// A rising overflow high-water mark signals default-buffer
		// pressure before the moving average reacts.
		if highWater := m.overflow.HighWater(); highWater > m.lastOverflowHighWater {
			m.lastOverflowHighWater = highWater
			overflowTriggered = true
		}
	}

	if standby == nil {
		// Idle samples are skipped so quiet periods don't drag the
		// average toward a shrink.
		if used := active.BytesAllocated(); used > 0 {
			m.usage.Add(float64(used))
		}

		m.maybeStartResize(active, overflowTriggered)

		return
	}

	if standby.BytesAllocated() == 0 {
		// The old buffer has fully drained; the resize is complete.
		m.standby.Store(nil)
	}
}

// Shutdown tears the manager down. Subsequent operations degrade to
// not-initialized results. It must run after all producers and consumers
// have quiesced.
func (m *Manager) Shutdown() {
	if !m.initialized.CompareAndSwap(true, false) {
		return
	}

	m.update.Lock()
	defer m.update.Unlock()

	m.active.Store(nil)
	m.standby.Store(nil)
	m.overflow = nil

	m.locksMu.Lock()
	m.locks = make(map[logcore.PayloadHandle]uint64)
	m.locksMu.Unlock()

	m.deferredMu.Lock()
	m.deferred[0] = nil
	m.deferred[1] = nil
	m.deferredMu.Unlock()
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Allocations:         m.allocations.Load(),
		AllocationFailures:  m.allocationFailures.Load(),
		OverflowAllocations: m.overflowAllocations.Load(),
		Releases:            m.releases.Load(),
		DeferredRequests:    m.deferredRequests.Load(),
		Resizes:             m.resizes.Load(),
		Capacity:            m.Capacity(),
		BytesAllocated:      m.BytesAllocated(),
		ResizeInProgress:    m.standby.Load() != nil,
	}
}

// bufferFor routes a handle to the ring buffer it was minted from.
func (m *Manager) bufferFor(h logcore.PayloadHandle) *ringbuf.Buffer {
	id := h.BufferID()

	if buf := m.active.Load(); buf != nil && buf.ID() == id {
		return buf
	}

	if buf := m.standby.Load(); buf != nil && buf.ID() == id {
		return buf
	}

	if m.overflow != nil && m.overflow.ID() == id {
		return m.overflow
	}

	return nil
}

// processDeferredReleases handles the other deferred list, then flips so
// new requests land on the just-cleared list. A handle still pinned when
// its turn comes is pushed back for a later cycle instead of force-freed.
func (m *Manager) processDeferredReleases() {
	m.deferredMu.Lock()
	other := 1 - m.deferredCur
	pending := m.deferred[other]
	m.deferred[other] = nil
	m.deferredCur = other
	m.deferredMu.Unlock()

	for _, h := range pending {
		ok, res := m.ReleasePayloadBuffer(h, false)
		if !ok && res == ReleaseBufferLocked {
			m.ReleasePayloadBufferDeferred(h)
		}
	}
}

// maybeStartResize decides whether to start growing or shrinking the
// default buffer. A decision is only made once a full sample window exists
// or overflow pressure was observed this cycle; the standby buffer is
// already known to be empty.
func (m *Manager) maybeStartResize(active *ringbuf.Buffer, overflowTriggered bool) {
	if !m.usage.Full() && !overflowTriggered {
		return
	}

	capacity := active.Capacity()
	ratio := m.usage.Average() / float64(capacity)

	var target int32

	switch {
	case (overflowTriggered || ratio >= m.cfg.GrowThreshold) && m.cfg.GrowFactor > 1:
		target = clampCapacity(float64(capacity) * m.cfg.GrowFactor)
	case ratio <= m.cfg.ShrinkThreshold && m.cfg.ShrinkFactor < 1:
		target = clampCapacity(float64(capacity) * m.cfg.ShrinkFactor)
	default:
		return
	}

	if target == capacity {
		return
	}

	// New allocations flip to the freshly sized buffer immediately; the
	// old buffer drains on the standby side without blocking anything.
	next := ringbuf.New(target, otherBufferID(active.ID()))
	m.standby.Store(active)
	m.active.Store(next)
	m.usage.Flush()
	m.resizes.Add(1)
}

func (m *Manager) reportAllocationFailure(size int) {
	handler := m.cfg.OnAllocationFailure
	if handler == nil || !m.failureLimiter.Allow() {
		return
	}

	handler(size)
}

func (m *Manager) lockMask(h logcore.PayloadHandle) uint64 {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	return m.locks[h]
}

func (m *Manager) dropLockEntry(h logcore.PayloadHandle) {
	m.locksMu.Lock()
	delete(m.locks, h)
	m.locksMu.Unlock()
}

func clampCapacity(target float64) int32 {
	if target < logcore.MinimumBufferCapacity {
		return logcore.MinimumBufferCapacity
	}

	if target > logcore.MaximumBufferCapacity {
		return logcore.MaximumBufferCapacity
	}

	return int32(target)
}

func otherBufferID(id uint8) uint8 {
	if id == bufferIDA {
		return bufferIDB
	}

	return bufferIDA
}

// LockContext identifies one outstanding pin on a payload: a single bit in
// the payload's 64-bit lock mask.
type LockContext struct {
	handle logcore.PayloadHandle
	bit    uint64
}

// Handle returns the pinned payload handle.
func (c LockContext) Handle() logcore.PayloadHandle {
	return c.handle
}

// IsValid reports whether the context refers to an acquired lock.
func (c LockContext) IsValid() bool {
	return c.bit != 0
}

// LockPayloadBuffer pins h so that a plain release is refused until every
// outstanding lock context is gone. At most 64 distinct contexts can pin
// one payload at a time.
func (m *Manager) LockPayloadBuffer(h logcore.PayloadHandle) (LockContext, bool) {
	if !m.initialized.Load() || !m.IsPayloadHandleValid(h) {
		return LockContext{}, false
	}

	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	mask := m.locks[h]
	if mask == ^uint64(0) {
		return LockContext{}, false
	}

	bit := uint64(1) << uint(bits.TrailingZeros64(^mask))
	m.locks[h] = mask | bit

	return LockContext{handle: h, bit: bit}, true
}

// UnlockPayloadBuffer clears the context's bit; once the mask reaches zero
// the tracking entry is removed and the payload can be released normally.
func (m *Manager) UnlockPayloadBuffer(ctx LockContext) bool {
	if !m.initialized.Load() || !ctx.IsValid() {
		return false
	}

	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	mask, ok := m.locks[ctx.handle]
	if !ok || mask&ctx.bit == 0 {
		return false
	}

	mask &^= ctx.bit
	if mask == 0 {
		delete(m.locks, ctx.handle)
	} else {
		m.locks[ctx.handle] = mask
	}

	return true
}
