package logcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, int32(DefaultBufferCapacity), cfg.Memory.InitialBufferCapacity)
	assert.Equal(t, int32(DefaultOverflowBufferCapacity), cfg.Memory.OverflowBufferCapacity)
	assert.Equal(t, DefaultQueueCapacity, cfg.Queue.Capacity)
	assert.Equal(t, FatalIsSync, cfg.Sync)

	// The defaults are already normal.
	assert.Equal(t, cfg, cfg.Normalized())
}

func TestMemoryConfig_Normalized(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*MemoryConfig)
		check  func(*testing.T, MemoryConfig)
	}{
		{
			name:   "capacity below minimum",
			mutate: func(c *MemoryConfig) { c.InitialBufferCapacity = MinimumBufferCapacity - 1 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.Equal(t, int32(DefaultBufferCapacity), c.InitialBufferCapacity)
			},
		},
		{
			name:   "capacity above maximum",
			mutate: func(c *MemoryConfig) { c.InitialBufferCapacity = MaximumBufferCapacity + 1 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.Equal(t, int32(DefaultBufferCapacity), c.InitialBufferCapacity)
			},
		},
		{
			name:   "zero overflow stays disabled",
			mutate: func(c *MemoryConfig) { c.OverflowBufferCapacity = 0 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.Equal(t, int32(0), c.OverflowBufferCapacity)
			},
		},
		{
			name:   "undersized overflow",
			mutate: func(c *MemoryConfig) { c.OverflowBufferCapacity = 16 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.Equal(t, int32(DefaultOverflowBufferCapacity), c.OverflowBufferCapacity)
			},
		},
		{
			name:   "grow threshold out of range",
			mutate: func(c *MemoryConfig) { c.GrowThreshold = 1.5 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.InDelta(t, DefaultGrowThreshold, c.GrowThreshold, 1e-9)
			},
		},
		{
			name:   "zero grow threshold",
			mutate: func(c *MemoryConfig) { c.GrowThreshold = 0 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.InDelta(t, DefaultGrowThreshold, c.GrowThreshold, 1e-9)
			},
		},
		{
			name:   "negative shrink threshold",
			mutate: func(c *MemoryConfig) { c.ShrinkThreshold = -0.1 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.InDelta(t, DefaultShrinkThreshold, c.ShrinkThreshold, 1e-9)
			},
		},
		{
			name:   "grow factor below one",
			mutate: func(c *MemoryConfig) { c.GrowFactor = 0.5 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.InDelta(t, DefaultGrowFactor, c.GrowFactor, 1e-9)
			},
		},
		{
			name:   "shrink factor above one",
			mutate: func(c *MemoryConfig) { c.ShrinkFactor = 2.0 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.InDelta(t, DefaultShrinkFactor, c.ShrinkFactor, 1e-9)
			},
		},
		{
			name:   "window out of range",
			mutate: func(c *MemoryConfig) { c.MovingAverageWindow = MaxMovingAverageWindow + 1 },
			check: func(t *testing.T, c MemoryConfig) {
				t.Helper()
				assert.Equal(t, DefaultMovingAverageWindow, c.MovingAverageWindow)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig().Memory
			tc.mutate(&cfg)
			tc.check(t, cfg.Normalized())
		})
	}
}

func TestQueueConfig_Normalized(t *testing.T) {
	assert.Equal(t, DefaultQueueCapacity, QueueConfig{Capacity: 0}.Normalized().Capacity)
	assert.Equal(t, DefaultQueueCapacity, QueueConfig{Capacity: MaximumQueueCapacity + 1}.Normalized().Capacity)
	assert.Equal(t, MinimumQueueCapacity, QueueConfig{Capacity: MinimumQueueCapacity}.Normalized().Capacity)
}

func TestConfig_NormalizedSyncMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sync = SyncMode(77)

	assert.Equal(t, FatalIsSync, cfg.Normalized().Sync)
}
