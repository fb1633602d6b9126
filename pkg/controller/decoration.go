package controller

import (
	"slices"

	"github.com/hyp3rd/logcore"
)

// AddDecoration registers a constant payload that producers attach to
// every subsequently dispatched message until it is removed. The
// controller takes ownership of the handle.
func (c *Controller) AddDecoration(h logcore.PayloadHandle) bool {
	if !c.mem.IsPayloadHandleValid(h) {
		return false
	}

	c.decorMu.Lock()
	c.decorations = append(c.decorations, h)
	c.decorMu.Unlock()

	return true
}

// RemoveDecoration detaches h and queues it for deferred release: a
// message dispatched before the removal may still reference the decoration
// mid-drain, and reclamation is tail-first, so the memory must survive at
// least one more full update cycle.
func (c *Controller) RemoveDecoration(h logcore.PayloadHandle) bool {
	found := false

	c.decorMu.Lock()

	for i, d := range c.decorations {
		if d == h {
			c.decorations = append(c.decorations[:i], c.decorations[i+1:]...)
			found = true

			break
		}
	}

	c.decorMu.Unlock()

	if found {
		c.mem.ReleasePayloadBufferDeferred(h)
	}

	return found
}

// Decorations returns a snapshot of the attached decoration handles.
// Producers read the referenced payloads to fold decoration bytes into the
// messages they serialize; the handles themselves stay owned by the
// controller.
func (c *Controller) Decorations() []logcore.PayloadHandle {
	c.decorMu.Lock()
	defer c.decorMu.Unlock()

	return slices.Clone(c.decorations)
}
