// Package controller composes the memory manager, dispatch queue, and sink
// registry of one logger and implements the synchronous-flush and
// asynchronous-update protocols.
//
// One Controller exists per active logger. Producers call DispatchMessage
// from any goroutine; a single maintenance goroutine calls Update once per
// tick, never concurrently with itself or with message processing on the
// same controller. Shutdown tears the aggregate down after producers have
// quiesced.
package controller

import (
	"sync/atomic"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logcore"
	"github.com/hyp3rd/logcore/internal/spinlock"
	"github.com/hyp3rd/logcore/pkg/dispatch"
	"github.com/hyp3rd/logcore/pkg/memory"
	"github.com/hyp3rd/logcore/pkg/sink"
)

// sinkEntry pairs a registered sink with its processing watermark.
type sinkEntry struct {
	sink sink.Sink

	// lastTimestamp is the high-water mark of processed message times,
	// preventing the same message from reaching the same sink twice when
	// a message dispatched on the sync path is also seen by an async
	// drain.
	lastTimestamp atomic.Int64
}

// claim reports whether the sink wants msg and advances its watermark so
// no other drain can hand the sink the same message.
func (e *sinkEntry) claim(msg logcore.LogMessage) bool {
	if msg.Level < e.sink.MinimumLevel() {
		return false
	}

	for {
		last := e.lastTimestamp.Load()
		if msg.Timestamp <= last {
			return false
		}

		if e.lastTimestamp.CompareAndSwap(last, msg.Timestamp) {
			return true
		}
	}
}

// Controller is the per-logger aggregate.
type Controller struct {
	mem   *memory.Manager
	queue *dispatch.Queue

	sinksMu spinlock.RWMutex
	sinks   []*sinkEntry

	decorMu     spinlock.Mutex
	decorations []logcore.PayloadHandle

	syncMode atomic.Uint32

	down atomic.Bool
}

// New creates a controller from cfg: one memory manager, one dispatch
// queue, and an empty sink list. Out-of-range configuration values are
// silently replaced with defaults.
func New(cfg logcore.Config) *Controller {
	cfg = cfg.Normalized()

	c := &Controller{
		mem:   memory.NewManager(cfg.Memory),
		queue: dispatch.New(cfg.Queue.Capacity),
	}
	c.syncMode.Store(uint32(cfg.Sync))

	return c
}

// MemoryManager exposes the payload allocator for producers that serialize
// message bytes directly.
func (c *Controller) MemoryManager() *memory.Manager {
	return c.mem
}

// Queue exposes the dispatch queue, mainly for introspection.
func (c *Controller) Queue() *dispatch.Queue {
	return c.queue
}

// SyncMode returns the current sync mode.
func (c *Controller) SyncMode() logcore.SyncMode {
	return logcore.SyncMode(c.syncMode.Load())
}

// SetSyncMode changes the sync mode. Messages already in flight keep their
// at-most-once delivery guarantee through the per-sink watermarks.
func (c *Controller) SetSyncMode(mode logcore.SyncMode) {
	if mode.IsValid() {
		c.syncMode.Store(uint32(mode))
	}
}

// AddSink initializes s and registers it for messages at or above its
// minimum level.
func (c *Controller) AddSink(s sink.Sink) error {
	err := s.Initialize()
	if err != nil {
		return ewrap.Wrap(err, "initializing sink")
	}

	c.sinksMu.Lock()
	c.sinks = append(c.sinks, &sinkEntry{sink: s})
	c.sinksMu.Unlock()

	return nil
}

// RemoveSink unregisters and disposes s.
func (c *Controller) RemoveSink(s sink.Sink) error {
	var removed *sinkEntry

	c.sinksMu.Lock()

	for i, e := range c.sinks {
		if e.sink == s {
			removed = e
			c.sinks = append(c.sinks[:i], c.sinks[i+1:]...)

			break
		}
	}

	c.sinksMu.Unlock()

	if removed == nil {
		return nil
	}

	err := removed.sink.Dispose()
	if err != nil {
		return ewrap.Wrap(err, "disposing sink")
	}

	return nil
}

// DispatchMessage enqueues (handle, stacktrace id, level) stamped with the
// current time. Depending on the sync mode the message may be flushed
// synchronously on the calling goroutine before returning. Returns false
// when the message was dropped; the payload is released so it cannot leak.
func (c *Controller) DispatchMessage(h logcore.PayloadHandle, stacktraceID int64, level logcore.Level) bool {
	if c.down.Load() {
		// Same contract as the queue-full branch below: a refused
		// dispatch must not leak its payload.
		c.mem.ReleasePayloadBuffer(h, true)

		return false
	}

	ok := c.queue.Enqueue(logcore.LogMessage{
		Payload:      h,
		StacktraceID: stacktraceID,
		Level:        level,
	})
	if !ok {
		// The queue capacity is a hard bound; reclaim the payload of the
		// dropped message.
		c.mem.ReleasePayloadBuffer(h, true)

		return false
	}

	mode := c.SyncMode()
	if mode == logcore.FullSync || (mode == logcore.FatalIsSync && level == logcore.FatalLevel) {
		c.FlushSync()
	}

	return true
}

// FlushSync drains both queue lists in timestamp order through every
// interested sink on the calling goroutine. Safe to call concurrently with
// producers; the queue's combined sync lock serializes overlapping flushes.
func (c *Controller) FlushSync() {
	c.sinksMu.RLock()
	defer c.sinksMu.RUnlock()

	for _, e := range c.sinks {
		e.sink.OnBeforeFlush()
	}

	older, newer := c.queue.LockAndSortForSyncAccess()
	c.processMessages(older)
	c.processMessages(newer)
	c.queue.EndLockAfterSyncAccess()

	for _, e := range c.sinks {
		e.sink.OnAfterFlush()
	}
}

// Update runs one asynchronous cycle: sort and drain the read list through
// the sinks, flip the queue, then run the memory manager's maintenance.
// Call it from a single goroutine, once per tick, never concurrently with
// itself.
func (c *Controller) Update() {
	if c.down.Load() {
		return
	}

	c.sinksMu.RLock()

	for _, e := range c.sinks {
		e.sink.OnBeforeFlush()
	}

	// Producers keep appending to the write list between the sort and the
	// drain; only this goroutine flips the read side.
	c.queue.Sort()

	msgs := c.queue.BeginReadExclusive()
	c.processMessages(msgs)
	c.queue.EndReadExclusiveClearAndFlip()

	for _, e := range c.sinks {
		e.sink.OnAfterFlush()
	}

	c.sinksMu.RUnlock()

	c.mem.Update()
}

// processMessages fans each message out to every interested sink, then
// releases its payload. Must be called with the sink read hold and the
// queue's exclusive hold in place.
func (c *Controller) processMessages(msgs []logcore.LogMessage) {
	for i := range msgs {
		msg := msgs[i]

		payload, ok := c.mem.RetrievePayloadBuffer(msg.Payload)
		if ok {
			for _, e := range c.sinks {
				if e.claim(msg) {
					//nolint:errcheck // sink failures must not stall the drain
					e.sink.Process(msg, payload)
				}
			}
		}

		c.mem.ReleasePayloadBuffer(msg.Payload, false)
	}
}

// Shutdown flushes the remaining messages, disposes the sinks, and tears
// down the memory manager. It must run on the owning goroutine after all
// producers have quiesced. Subsequent calls return ErrShutDown.
func (c *Controller) Shutdown() error {
	if !c.down.CompareAndSwap(false, true) {
		return ErrShutDown
	}

	c.FlushSync()

	// No consumers remain; release the decorations immediately.
	c.decorMu.Lock()
	decorations := c.decorations
	c.decorations = nil
	c.decorMu.Unlock()

	for _, h := range decorations {
		c.mem.ReleasePayloadBuffer(h, true)
	}

	c.sinksMu.Lock()
	sinks := c.sinks
	c.sinks = nil
	c.sinksMu.Unlock()

	errorGroup := ewrap.NewErrorGroup()

	for _, e := range sinks {
		err := e.sink.Dispose()
		if err != nil {
			errorGroup.Add(err)
		}
	}

	c.mem.Shutdown()

	if errorGroup.HasErrors() {
		return errorGroup
	}

	return nil
}
