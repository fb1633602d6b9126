package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/logcore"
	"github.com/hyp3rd/logcore/pkg/controller"
	"github.com/hyp3rd/logcore/pkg/sink"
)

func newController(t *testing.T) (*controller.Controller, *sink.CountingSink) {
	t.Helper()

	cfg := logcore.DefaultConfig()
	cfg.Memory.InitialBufferCapacity = logcore.MinimumBufferCapacity
	cfg.Memory.OverflowBufferCapacity = 0
	cfg.Sync = logcore.FullSync

	c := controller.New(cfg)

	counting := sink.NewCountingSink(logcore.TraceLevel)
	require.NoError(t, c.AddSink(counting))

	t.Cleanup(func() {
		//nolint:errcheck // already shut down in some tests
		c.Shutdown()
	})

	return c, counting
}

func dispatchOne(t *testing.T, ctx context.Context, target *controller.Controller) bool {
	t.Helper()

	handle, view := target.MemoryManager().AllocatePayloadBuffer(5)
	require.True(t, handle.IsValid())
	copy(view, "hello")

	return Dispatch(ctx, handle, 0, logcore.InfoLevel)
}

func TestSetDefault(t *testing.T) {
	c, counting := newController(t)

	SetDefault(c)
	defer SetDefault(nil)

	require.Same(t, c, Default())

	assert.True(t, dispatchOne(t, context.Background(), c))
	assert.Equal(t, uint64(1), counting.Processed())
}

func TestDispatch_NoControllerInstalled(t *testing.T) {
	SetDefault(nil)

	assert.Nil(t, Default())
	assert.False(t, Dispatch(context.Background(), 0, 0, logcore.InfoLevel))
}

func TestWithController_OverridesDefault(t *testing.T) {
	fallback, fallbackCount := newController(t)
	scoped, scopedCount := newController(t)

	SetDefault(fallback)
	defer SetDefault(nil)

	ctx := WithController(context.Background(), scoped)

	require.Same(t, scoped, FromContext(ctx))
	require.Same(t, fallback, FromContext(context.Background()))

	assert.True(t, dispatchOne(t, ctx, scoped))

	assert.Equal(t, uint64(1), scopedCount.Processed())
	assert.Zero(t, fallbackCount.Processed())
}

func TestFromContext_NilContextFallsBack(t *testing.T) {
	c, _ := newController(t)

	SetDefault(c)
	defer SetDefault(nil)

	//nolint:staticcheck // the nil fallback is part of the contract
	assert.Same(t, c, FromContext(nil))
}
