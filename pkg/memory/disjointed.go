package memory

import (
	"encoding/binary"

	"github.com/hyp3rd/logcore"
)

// handleSize is the encoded size of one PayloadHandle inside a disjointed
// head block.
const handleSize = 8

// MaxDisjointedParts is the largest number of content blocks one disjointed
// payload can reference, bounded by the head block's payload capacity.
const MaxDisjointedParts = logcore.MaximumPayloadSize / handleSize

// AllocateDisjointedPayloadBuffer allocates one head block referencing a
// freshly allocated content block per requested size. Construction is
// atomic from the caller's perspective: if any allocation fails, every
// block already carved is released and an invalid handle is returned. The
// underlying ring memory of a rolled-back burst is not reusable until the
// next reclaim cycle.
func (m *Manager) AllocateDisjointedPayloadBuffer(sizes []int) (logcore.PayloadHandle, bool) {
	if !m.initialized.Load() || len(sizes) == 0 || len(sizes) > MaxDisjointedParts {
		return 0, false
	}

	head, headView := m.AllocatePayloadBuffer(len(sizes) * handleSize)
	if !head.IsValid() {
		return 0, false
	}

	for i, size := range sizes {
		part, _ := m.AllocatePayloadBuffer(size)
		if !part.IsValid() {
			m.rollbackDisjointed(head, headView[:i*handleSize])

			return 0, false
		}

		binary.LittleEndian.PutUint64(headView[i*handleSize:], uint64(part))
	}

	return head.AsDisjointed(), true
}

// CreateDisjointedPayloadBufferFromExistingPayloads wraps already
// allocated payloads under a new head block, transferring their ownership
// to the head: from now on only the head handle is released, which
// cascades. Nesting is rejected: none of the content handles may itself be
// disjointed.
func (m *Manager) CreateDisjointedPayloadBufferFromExistingPayloads(handles []logcore.PayloadHandle) (logcore.PayloadHandle, bool) {
	if !m.initialized.Load() || len(handles) == 0 || len(handles) > MaxDisjointedParts {
		return 0, false
	}

	for _, h := range handles {
		if h.IsDisjointed() || !m.IsPayloadHandleValid(h) {
			return 0, false
		}
	}

	head, headView := m.AllocatePayloadBuffer(len(handles) * handleSize)
	if !head.IsValid() {
		return 0, false
	}

	for i, h := range handles {
		binary.LittleEndian.PutUint64(headView[i*handleSize:], uint64(h))
	}

	return head.AsDisjointed(), true
}

// RetrieveDisjointedPayloadBuffer resolves the content block at index of a
// disjointed payload.
func (m *Manager) RetrieveDisjointedPayloadBuffer(h logcore.PayloadHandle, index int) ([]byte, bool) {
	if !h.IsDisjointed() {
		return nil, false
	}

	head, ok := m.RetrievePayloadBuffer(h)
	if !ok {
		return nil, false
	}

	if index < 0 || (index+1)*handleSize > len(head) {
		return nil, false
	}

	part := logcore.PayloadHandle(binary.LittleEndian.Uint64(head[index*handleSize:]))

	return m.RetrievePayloadBuffer(part)
}

// DisjointedPayloadPartCount returns the number of content blocks a
// disjointed payload references.
func (m *Manager) DisjointedPayloadPartCount(h logcore.PayloadHandle) (int, bool) {
	if !h.IsDisjointed() {
		return 0, false
	}

	head, ok := m.RetrievePayloadBuffer(h)
	if !ok {
		return 0, false
	}

	return len(head) / handleSize, true
}

// releaseDisjointed cascades a release through the content blocks of a
// disjointed payload, continuing past individual failures, then releases
// the head. Content blocks honor the same lock rules as standalone
// payloads: a pinned part counts as a failure unless forced. Without
// force, any content failure keeps the head alive so the operation can be
// retried.
func (m *Manager) releaseDisjointed(h logcore.PayloadHandle, force bool) (bool, ReleaseResult) {
	head, ok := m.RetrievePayloadBuffer(h)
	if !ok {
		return false, ReleaseInvalidHandle
	}

	failed := false

	for off := 0; off+handleSize <= len(head); off += handleSize {
		part := logcore.PayloadHandle(binary.LittleEndian.Uint64(head[off:]))

		if !force && m.lockMask(part) != 0 {
			failed = true

			continue
		}

		buf := m.bufferFor(part)
		if buf == nil || !buf.Release(part) {
			failed = true

			continue
		}

		m.dropLockEntry(part)
	}

	if failed && !force {
		return false, ReleaseDisjointedFailed
	}

	buf := m.bufferFor(h)
	if buf == nil || !buf.Release(h) {
		return false, ReleaseInvalidHandle
	}

	if failed {
		return true, ReleaseForced
	}

	return true, ReleaseSuccess
}

// rollbackDisjointed undoes a partially constructed disjointed allocation,
// reading the content handles already written into the head block.
func (m *Manager) rollbackDisjointed(head logcore.PayloadHandle, written []byte) {
	for off := 0; off+handleSize <= len(written); off += handleSize {
		part := logcore.PayloadHandle(binary.LittleEndian.Uint64(written[off:]))

		if buf := m.bufferFor(part); buf != nil {
			buf.Release(part)
		}
	}

	if buf := m.bufferFor(head); buf != nil {
		buf.Release(head)
	}
}
