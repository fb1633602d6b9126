package logcore

const (
	// MinimumPayloadSize is the smallest payload a ring buffer hands out.
	MinimumPayloadSize = 4
	// MaximumPayloadSize is the largest payload a ring buffer hands out.
	MaximumPayloadSize = 32768

	// MinimumBufferCapacity is the hard lower bound on ring buffer capacity.
	MinimumBufferCapacity = 1024
	// MaximumBufferCapacity is the hard upper bound on ring buffer capacity,
	// chosen so ring arithmetic fits in signed 32-bit offsets.
	MaximumBufferCapacity = 1 << 27

	// DefaultBufferCapacity is the initial capacity of the default ring buffer.
	DefaultBufferCapacity = 64 * 1024
	// DefaultOverflowBufferCapacity is the capacity of the overflow buffer
	// absorbing bursts while the default buffer is full.
	DefaultOverflowBufferCapacity = 4 * 1024 * 1024

	// DefaultGrowThreshold is the utilization ratio at or above which the
	// default buffer grows.
	DefaultGrowThreshold = 0.75
	// DefaultShrinkThreshold is the utilization ratio at or below which the
	// default buffer shrinks.
	DefaultShrinkThreshold = 0.15
	// DefaultGrowFactor scales the capacity on growth.
	DefaultGrowFactor = 2.0
	// DefaultShrinkFactor scales the capacity on shrink.
	DefaultShrinkFactor = 0.5
	// DefaultMovingAverageWindow is the number of utilization samples the
	// resize decision averages over.
	DefaultMovingAverageWindow = 32

	// DefaultQueueCapacity is the per-list capacity of the dispatch queue.
	DefaultQueueCapacity = 4096
	// MinimumQueueCapacity / MaximumQueueCapacity bound the dispatch queue.
	MinimumQueueCapacity = 64
	MaximumQueueCapacity = 1 << 20

	// MinGrowFactor / MaxGrowFactor bound the growth factor. A factor of 1
	// disables growth.
	MinGrowFactor = 1.0
	MaxGrowFactor = 1000.0
	// MinShrinkFactor / MaxShrinkFactor bound the shrink factor. A factor
	// of 1 disables shrinking.
	MinShrinkFactor = 0.01
	MaxShrinkFactor = 1.0

	// MinMovingAverageWindow / MaxMovingAverageWindow bound the sample window.
	MinMovingAverageWindow = 1
	MaxMovingAverageWindow = 4096
)

// MemoryConfig configures the payload memory manager.
type MemoryConfig struct {
	// InitialBufferCapacity is the starting capacity of the default ring
	// buffer, in bytes.
	InitialBufferCapacity int32
	// OverflowBufferCapacity is the capacity of the overflow ring buffer,
	// in bytes. Zero disables the overflow buffer. The overflow buffer is
	// never resized.
	OverflowBufferCapacity int32
	// GrowThreshold is the moving-average utilization ratio in [0,1] at or
	// above which the default buffer grows.
	GrowThreshold float64
	// ShrinkThreshold is the moving-average utilization ratio in [0,1] at
	// or below which the default buffer shrinks.
	ShrinkThreshold float64
	// GrowFactor scales the capacity on growth; 1 disables growth.
	GrowFactor float64
	// ShrinkFactor scales the capacity on shrink; 1 disables shrinking.
	ShrinkFactor float64
	// MovingAverageWindow is the number of utilization samples averaged
	// for the resize decision.
	MovingAverageWindow int
	// OnAllocationFailure is invoked (rate limited) when an allocation
	// fails in both the default and overflow buffers. It must not log
	// through the same controller.
	OnAllocationFailure func(requestedSize int)
}

// QueueConfig configures the dispatch queue.
type QueueConfig struct {
	// Capacity is the fixed size of each of the queue's two message lists.
	// It is a hard bound: enqueueing against a full write list drops the
	// message.
	Capacity int
}

// Config holds the configuration for one logger's core.
type Config struct {
	// Memory configures the payload memory manager.
	Memory MemoryConfig
	// Queue configures the dispatch queue.
	Queue QueueConfig
	// Sync selects which dispatches flush synchronously.
	Sync SyncMode
}

// DefaultConfig returns the default core configuration.
func DefaultConfig() Config {
	return Config{
		Memory: MemoryConfig{
			InitialBufferCapacity:  DefaultBufferCapacity,
			OverflowBufferCapacity: DefaultOverflowBufferCapacity,
			GrowThreshold:          DefaultGrowThreshold,
			ShrinkThreshold:        DefaultShrinkThreshold,
			GrowFactor:             DefaultGrowFactor,
			ShrinkFactor:           DefaultShrinkFactor,
			MovingAverageWindow:    DefaultMovingAverageWindow,
		},
		Queue: QueueConfig{
			Capacity: DefaultQueueCapacity,
		},
		Sync: FatalIsSync,
	}
}

// Normalized returns a copy of the configuration with every out-of-range
// value silently replaced by its default. Configuration mistakes must never
// turn into a fatal startup error.
func (c Config) Normalized() Config {
	c.Memory = c.Memory.Normalized()
	c.Queue = c.Queue.Normalized()

	if !c.Sync.IsValid() {
		c.Sync = FatalIsSync
	}

	return c
}

// Normalized returns a copy with out-of-range values silently replaced by
// defaults.
func (c MemoryConfig) Normalized() MemoryConfig {
	if c.InitialBufferCapacity < MinimumBufferCapacity || c.InitialBufferCapacity > MaximumBufferCapacity {
		c.InitialBufferCapacity = DefaultBufferCapacity
	}

	if c.OverflowBufferCapacity != 0 &&
		(c.OverflowBufferCapacity < MinimumBufferCapacity || c.OverflowBufferCapacity > MaximumBufferCapacity) {
		c.OverflowBufferCapacity = DefaultOverflowBufferCapacity
	}

	if c.GrowThreshold <= 0 || c.GrowThreshold > 1 {
		c.GrowThreshold = DefaultGrowThreshold
	}

	if c.ShrinkThreshold < 0 || c.ShrinkThreshold > 1 {
		c.ShrinkThreshold = DefaultShrinkThreshold
	}

	if c.GrowFactor < MinGrowFactor || c.GrowFactor > MaxGrowFactor {
		c.GrowFactor = DefaultGrowFactor
	}

	if c.ShrinkFactor < MinShrinkFactor || c.ShrinkFactor > MaxShrinkFactor {
		c.ShrinkFactor = DefaultShrinkFactor
	}

	if c.MovingAverageWindow < MinMovingAverageWindow || c.MovingAverageWindow > MaxMovingAverageWindow {
		c.MovingAverageWindow = DefaultMovingAverageWindow
	}

	return c
}

// Normalized returns a copy with an out-of-range capacity replaced by the
// default.
func (c QueueConfig) Normalized() QueueConfig {
	if c.Capacity < MinimumQueueCapacity || c.Capacity > MaximumQueueCapacity {
		c.Capacity = DefaultQueueCapacity
	}

	return c
}
