package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/logcore"
)

// steadyConfig builds a memory configuration with resizing and the overflow
// buffer disabled, so tests exercise one behavior at a time.
func steadyConfig(capacity int32) logcore.MemoryConfig {
	return logcore.MemoryConfig{
		InitialBufferCapacity:  capacity,
		OverflowBufferCapacity: 0,
		GrowThreshold:          logcore.DefaultGrowThreshold,
		ShrinkThreshold:        logcore.DefaultShrinkThreshold,
		GrowFactor:             logcore.MinGrowFactor,
		ShrinkFactor:           logcore.MaxShrinkFactor,
		MovingAverageWindow:    logcore.MaxMovingAverageWindow,
	}
}

func TestManager_AllocateRetrieveRelease(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	require.True(t, mgr.IsInitialized())

	handle, view := mgr.AllocatePayloadBuffer(32)
	require.True(t, handle.IsValid())
	require.Len(t, view, 32)

	for i := range view {
		view[i] = byte(i)
	}

	got, ok := mgr.RetrievePayloadBuffer(handle)
	require.True(t, ok)
	assert.Equal(t, view, got)
	assert.True(t, mgr.IsPayloadHandleValid(handle))

	ok, result := mgr.ReleasePayloadBuffer(handle, false)
	require.True(t, ok)
	assert.Equal(t, ReleaseSuccess, result)

	assert.False(t, mgr.IsPayloadHandleValid(handle))

	mgr.Update()

	assert.Equal(t, int32(0), mgr.BytesAllocated())

	st := mgr.Stats()
	assert.Equal(t, uint64(1), st.Allocations)
	assert.Equal(t, uint64(1), st.Releases)
}

func TestManager_ReleaseInvalidHandle(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	ok, result := mgr.ReleasePayloadBuffer(0, false)
	assert.False(t, ok)
	assert.Equal(t, ReleaseInvalidHandle, result)

	handle, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, handle.IsValid())

	ok, _ = mgr.ReleasePayloadBuffer(handle, false)
	require.True(t, ok)

	ok, result = mgr.ReleasePayloadBuffer(handle, false)
	assert.False(t, ok)
	assert.Equal(t, ReleaseInvalidHandle, result)
}

func TestManager_AllocationFailureHook(t *testing.T) {
	var (
		failures  int
		requested int
	)

	cfg := steadyConfig(1024)
	cfg.OnAllocationFailure = func(size int) {
		failures++
		requested = size
	}

	mgr := NewManager(cfg)

	for {
		h, _ := mgr.AllocatePayloadBuffer(120)
		if !h.IsValid() {
			break
		}
	}

	assert.Equal(t, 1, failures)
	assert.Equal(t, 120, requested)
	assert.Equal(t, uint64(1), mgr.Stats().AllocationFailures)

	// Further failures inside the rate window stay silent but are counted.
	h, _ := mgr.AllocatePayloadBuffer(120)
	assert.False(t, h.IsValid())
	assert.Equal(t, 1, failures)
	assert.Equal(t, uint64(2), mgr.Stats().AllocationFailures)
}

func TestManager_OversizedAllocationFails(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	h, view := mgr.AllocatePayloadBuffer(logcore.MaximumPayloadSize + 1)
	assert.False(t, h.IsValid())
	assert.Nil(t, view)
}

func TestManager_OverflowRouting(t *testing.T) {
	cfg := steadyConfig(1024)
	cfg.OverflowBufferCapacity = 4096

	mgr := NewManager(cfg)

	var overflowed logcore.PayloadHandle

	for {
		h, _ := mgr.AllocatePayloadBuffer(120)
		require.True(t, h.IsValid())

		if h.BufferID() == overflowBufferID {
			overflowed = h

			break
		}
	}

	require.True(t, overflowed.IsValid())

	// Overflow payloads behave like any other payload.
	_, ok := mgr.RetrievePayloadBuffer(overflowed)
	assert.True(t, ok)

	ok, result := mgr.ReleasePayloadBuffer(overflowed, false)
	require.True(t, ok)
	assert.Equal(t, ReleaseSuccess, result)

	assert.Positive(t, mgr.Stats().OverflowAllocations)
}

func TestManager_DeferredReleaseTiming(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	handle, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, handle.IsValid())

	require.True(t, mgr.ReleasePayloadBufferDeferred(handle))

	// The release request lands on the current list; the first cycle only
	// flips, the second one actually releases.
	mgr.Update()

	assert.True(t, mgr.IsPayloadHandleValid(handle), "deferred payload must survive one cycle")

	mgr.Update()

	assert.False(t, mgr.IsPayloadHandleValid(handle))
	assert.Equal(t, int32(0), mgr.BytesAllocated())
	assert.Equal(t, uint64(1), mgr.Stats().DeferredRequests)
}

func TestManager_DeferredReleaseRequeuesWhileLocked(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	handle, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, handle.IsValid())

	ctx, ok := mgr.LockPayloadBuffer(handle)
	require.True(t, ok)

	require.True(t, mgr.ReleasePayloadBufferDeferred(handle))

	for i := 0; i < 3; i++ {
		mgr.Update()
		assert.True(t, mgr.IsPayloadHandleValid(handle), "locked payload must survive cycle %d", i+1)
	}

	require.True(t, mgr.UnlockPayloadBuffer(ctx))

	mgr.Update()

	assert.False(t, mgr.IsPayloadHandleValid(handle))
}

func TestManager_LockRefusesPlainRelease(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	handle, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, handle.IsValid())

	ctx, ok := mgr.LockPayloadBuffer(handle)
	require.True(t, ok)
	require.True(t, ctx.IsValid())
	assert.Equal(t, handle, ctx.Handle())

	ok, result := mgr.ReleasePayloadBuffer(handle, false)
	assert.False(t, ok)
	assert.Equal(t, ReleaseBufferLocked, result)
	assert.True(t, mgr.IsPayloadHandleValid(handle))

	require.True(t, mgr.UnlockPayloadBuffer(ctx))

	ok, result = mgr.ReleasePayloadBuffer(handle, false)
	require.True(t, ok)
	assert.Equal(t, ReleaseSuccess, result)
}

func TestManager_ForcedReleaseOverridesLock(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	handle, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, handle.IsValid())

	ctx, ok := mgr.LockPayloadBuffer(handle)
	require.True(t, ok)

	ok, result := mgr.ReleasePayloadBuffer(handle, true)
	require.True(t, ok)
	assert.Equal(t, ReleaseForced, result)

	// The lock entry went with the payload.
	assert.False(t, mgr.UnlockPayloadBuffer(ctx))
}

func TestManager_LockContextLimit(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	handle, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, handle.IsValid())

	contexts := make([]LockContext, 0, 64)

	for i := 0; i < 64; i++ {
		ctx, ok := mgr.LockPayloadBuffer(handle)
		require.True(t, ok, "lock %d", i+1)

		contexts = append(contexts, ctx)
	}

	_, ok := mgr.LockPayloadBuffer(handle)
	assert.False(t, ok, "65th lock context must be refused")

	for _, ctx := range contexts {
		require.True(t, mgr.UnlockPayloadBuffer(ctx))
	}

	ok, result := mgr.ReleasePayloadBuffer(handle, false)
	require.True(t, ok)
	assert.Equal(t, ReleaseSuccess, result)
}

func TestManager_UnlockTwiceFails(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	handle, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, handle.IsValid())

	ctx, ok := mgr.LockPayloadBuffer(handle)
	require.True(t, ok)

	assert.True(t, mgr.UnlockPayloadBuffer(ctx))
	assert.False(t, mgr.UnlockPayloadBuffer(ctx))
	assert.False(t, mgr.UnlockPayloadBuffer(LockContext{}))
}

func TestManager_ResizeGrow(t *testing.T) {
	cfg := steadyConfig(1024)
	cfg.GrowThreshold = 0.5
	cfg.GrowFactor = 2.0
	cfg.MovingAverageWindow = 1

	mgr := NewManager(cfg)
	require.Equal(t, int32(1024), mgr.Capacity())

	handles := make([]logcore.PayloadHandle, 5)
	for i := range handles {
		h, _ := mgr.AllocatePayloadBuffer(120)
		require.True(t, h.IsValid())

		handles[i] = h
	}

	mgr.Update()

	st := mgr.Stats()
	assert.Equal(t, int32(2048), st.Capacity)
	assert.Equal(t, uint64(1), st.Resizes)
	assert.True(t, st.ResizeInProgress)

	// Payloads from before the resize stay reachable while the old buffer
	// drains; new allocations land in the replacement buffer.
	for _, h := range handles {
		_, ok := mgr.RetrievePayloadBuffer(h)
		assert.True(t, ok)
	}

	fresh, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, fresh.IsValid())
	assert.NotEqual(t, handles[0].BufferID(), fresh.BufferID())

	for _, h := range handles {
		ok, _ := mgr.ReleasePayloadBuffer(h, false)
		require.True(t, ok)
	}

	mgr.Update()

	assert.False(t, mgr.Stats().ResizeInProgress, "drained standby completes the resize")
}

func TestManager_ResizeWaitsForDrain(t *testing.T) {
	cfg := steadyConfig(1024)
	cfg.GrowThreshold = 0.5
	cfg.GrowFactor = 2.0
	cfg.MovingAverageWindow = 1

	mgr := NewManager(cfg)

	old, _ := mgr.AllocatePayloadBuffer(600)
	require.True(t, old.IsValid())

	mgr.Update()

	require.Equal(t, int32(2048), mgr.Capacity())
	require.True(t, mgr.Stats().ResizeInProgress)

	// Heavy load on the new buffer cannot start a second resize while the
	// old one still holds live payloads.
	big, _ := mgr.AllocatePayloadBuffer(1500)
	require.True(t, big.IsValid())

	for i := 0; i < 4; i++ {
		mgr.Update()
	}

	st := mgr.Stats()
	assert.Equal(t, int32(2048), st.Capacity)
	assert.Equal(t, uint64(1), st.Resizes)
	assert.True(t, st.ResizeInProgress)
}

func TestManager_ResizeShrink(t *testing.T) {
	cfg := steadyConfig(4096)
	cfg.ShrinkThreshold = 0.5
	cfg.ShrinkFactor = 0.5
	cfg.MovingAverageWindow = 1

	mgr := NewManager(cfg)
	require.Equal(t, int32(4096), mgr.Capacity())

	h, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, h.IsValid())

	mgr.Update()

	st := mgr.Stats()
	assert.Equal(t, int32(2048), st.Capacity)
	assert.Equal(t, uint64(1), st.Resizes)
}

func TestManager_OverflowPressureForcesGrow(t *testing.T) {
	cfg := steadyConfig(1024)
	cfg.OverflowBufferCapacity = 2048
	cfg.GrowThreshold = 0.9
	cfg.GrowFactor = 2.0
	// A window this large never fills; only overflow pressure can trigger
	// the resize here.
	cfg.MovingAverageWindow = logcore.MaxMovingAverageWindow

	mgr := NewManager(cfg)

	for {
		h, _ := mgr.AllocatePayloadBuffer(120)
		require.True(t, h.IsValid())

		if h.BufferID() == overflowBufferID {
			break
		}
	}

	mgr.Update()

	st := mgr.Stats()
	assert.Equal(t, int32(2048), st.Capacity)
	assert.Equal(t, uint64(1), st.Resizes)
}

func TestManager_ShutdownDegrades(t *testing.T) {
	mgr := NewManager(steadyConfig(1024))

	handle, _ := mgr.AllocatePayloadBuffer(16)
	require.True(t, handle.IsValid())

	mgr.Shutdown()

	assert.False(t, mgr.IsInitialized())

	h, view := mgr.AllocatePayloadBuffer(16)
	assert.False(t, h.IsValid())
	assert.Nil(t, view)

	_, ok := mgr.RetrievePayloadBuffer(handle)
	assert.False(t, ok)
	assert.False(t, mgr.IsPayloadHandleValid(handle))

	ok, result := mgr.ReleasePayloadBuffer(handle, false)
	assert.False(t, ok)
	assert.Equal(t, ReleaseNotInitialized, result)

	assert.False(t, mgr.ReleasePayloadBufferDeferred(handle))

	_, ok = mgr.LockPayloadBuffer(handle)
	assert.False(t, ok)

	// Shutdown is idempotent.
	mgr.Shutdown()
}

func TestManager_ConfigNormalization(t *testing.T) {
	mgr := NewManager(logcore.MemoryConfig{})

	assert.Equal(t, int32(logcore.DefaultBufferCapacity), mgr.Capacity())

	h, _ := mgr.AllocatePayloadBuffer(16)
	assert.True(t, h.IsValid())
}
