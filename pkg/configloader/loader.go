// Package configloader loads core configuration from files, YAML
// documents, or environment variables using Viper. Values absent from the
// source keep their defaults; values out of range are silently replaced
// with defaults during normalization, so a bad configuration can degrade
// the logger but never prevent it from starting.
package configloader

import (
	"github.com/hyp3rd/logcore"
)

type rawConfig struct {
	SyncMode string `mapstructure:"sync_mode" yaml:"sync_mode"`
	Memory   struct {
		InitialBufferCapacity  *int32   `mapstructure:"initial_buffer_capacity"  yaml:"initial_buffer_capacity"`
		OverflowBufferCapacity *int32   `mapstructure:"overflow_buffer_capacity" yaml:"overflow_buffer_capacity"`
		GrowThreshold          *float64 `mapstructure:"grow_threshold"           yaml:"grow_threshold"`
		ShrinkThreshold        *float64 `mapstructure:"shrink_threshold"         yaml:"shrink_threshold"`
		GrowFactor             *float64 `mapstructure:"grow_factor"              yaml:"grow_factor"`
		ShrinkFactor           *float64 `mapstructure:"shrink_factor"            yaml:"shrink_factor"`
		MovingAverageWindow    *int     `mapstructure:"moving_average_window"    yaml:"moving_average_window"`
	} `mapstructure:"memory" yaml:"memory"`
	Queue struct {
		Capacity *int `mapstructure:"capacity" yaml:"capacity"`
	} `mapstructure:"queue" yaml:"queue"`
}

func applyRaw(raw rawConfig) logcore.Config {
	cfg := logcore.DefaultConfig()

	if raw.SyncMode != "" {
		cfg.Sync = logcore.ParseSyncMode(raw.SyncMode)
	}

	if raw.Memory.InitialBufferCapacity != nil {
		cfg.Memory.InitialBufferCapacity = *raw.Memory.InitialBufferCapacity
	}

	if raw.Memory.OverflowBufferCapacity != nil {
		cfg.Memory.OverflowBufferCapacity = *raw.Memory.OverflowBufferCapacity
	}

	if raw.Memory.GrowThreshold != nil {
		cfg.Memory.GrowThreshold = *raw.Memory.GrowThreshold
	}

	if raw.Memory.ShrinkThreshold != nil {
		cfg.Memory.ShrinkThreshold = *raw.Memory.ShrinkThreshold
	}

	if raw.Memory.GrowFactor != nil {
		cfg.Memory.GrowFactor = *raw.Memory.GrowFactor
	}

	if raw.Memory.ShrinkFactor != nil {
		cfg.Memory.ShrinkFactor = *raw.Memory.ShrinkFactor
	}

	if raw.Memory.MovingAverageWindow != nil {
		cfg.Memory.MovingAverageWindow = *raw.Memory.MovingAverageWindow
	}

	if raw.Queue.Capacity != nil {
		cfg.Queue.Capacity = *raw.Queue.Capacity
	}

	return cfg.Normalized()
}

func allKeys() []string {
	return []string{
		"sync_mode",
		"memory.initial_buffer_capacity",
		"memory.overflow_buffer_capacity",
		"memory.grow_threshold",
		"memory.shrink_threshold",
		"memory.grow_factor",
		"memory.shrink_factor",
		"memory.moving_average_window",
		"queue.capacity",
	}
}
