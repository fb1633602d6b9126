// Package logcore implements an allocation-free structured logging backend
// designed to run inside a real-time application's update loop.
//
// Producers on arbitrary goroutines serialize message bytes into payload
// buffers handed out by a ring-buffer allocator, then enqueue lightweight
// message descriptors into a double-buffered dispatch queue. Once per tick a
// single maintenance goroutine drains the queue through the registered sinks
// and reclaims payload memory. Fatal messages can flush synchronously on the
// dispatching goroutine.
//
// The hot path never blocks on I/O, never waits for space, and never panics:
// allocation exhaustion and stale handles surface as invalid handles and
// result codes, which callers treat as "drop the message".
//
// The package root holds the shared contracts: log levels, the packed
// PayloadHandle, the LogMessage descriptor, and the configuration surface.
// The machinery lives in pkg/memory (payload allocator), pkg/dispatch
// (message queue), and pkg/controller (per-logger composition).
//
// Basic usage:
//
//	ctrl := controller.New(logcore.DefaultConfig())
//	defer ctrl.Shutdown()
//
//	handle, buf := ctrl.MemoryManager().AllocatePayloadBuffer(len(msg))
//	if handle.IsValid() {
//		copy(buf, msg)
//		ctrl.DispatchMessage(handle, 0, logcore.InfoLevel)
//	}
//
//	// once per tick, from one goroutine:
//	ctrl.Update()
package logcore

import (
	"strings"

	"github.com/hyp3rd/ewrap"
)

// Level represents the severity of a log message.
type Level uint8

const (
	// TraceLevel represents verbose debugging information.
	TraceLevel Level = iota
	// DebugLevel represents debugging information.
	DebugLevel
	// InfoLevel represents general operational information.
	InfoLevel
	// WarnLevel represents warning messages.
	WarnLevel
	// ErrorLevel represents error messages.
	ErrorLevel
	// FatalLevel represents fatal error messages.
	FatalLevel
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the given Level is a valid log level, and false otherwise.
func (l Level) IsValid() bool {
	return l >= TraceLevel && l <= FatalLevel
}

// ParseLevel parses the given log level string into a Level, or returns an
// error if the level is invalid.
func ParseLevel(level string) (Level, error) {
	// Normalize the input to lowercase for case-insensitive comparison
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, ewrap.New("invalid log level: " + level)
	}
}
