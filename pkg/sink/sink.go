// Package sink defines the consumer contract the controller fans drained
// messages out to, plus minimal implementations: a writer-backed sink for
// console/file style destinations and a counting sink for tests and stress
// harnesses. Structured formatting templates live outside the core; the
// sinks here render a fixed "timestamp level payload" line at most.
package sink

import (
	"github.com/hyp3rd/logcore"
)

// Sink consumes drained log messages. Implementations must not retain the
// payload slice beyond the Process call: the memory backing it is released
// once every interested sink has seen the message.
type Sink interface {
	// Initialize prepares the sink before it receives messages.
	Initialize() error
	// MinimumLevel is the lowest level this sink is interested in.
	MinimumLevel() logcore.Level
	// OnBeforeFlush and OnAfterFlush bracket one drain cycle.
	OnBeforeFlush()
	OnAfterFlush()
	// Process handles one message whose payload has been resolved to raw
	// bytes.
	Process(msg logcore.LogMessage, payload []byte) error
	// Dispose releases the sink's resources.
	Dispose() error
}
