package sink

import (
	"sync/atomic"

	"github.com/hyp3rd/logcore"
)

// CountingSink discards payload bytes and counts what it sees. It backs
// tests and the stress harness, where the interesting signal is message
// accounting rather than output.
type CountingSink struct {
	minLevel logcore.Level

	processed atomic.Uint64
	bytes     atomic.Uint64
	flushes   atomic.Uint64
}

// NewCountingSink creates a counting sink for messages at or above
// minLevel.
func NewCountingSink(minLevel logcore.Level) *CountingSink {
	return &CountingSink{minLevel: minLevel}
}

// Initialize implements Sink.
func (s *CountingSink) Initialize() error {
	return nil
}

// MinimumLevel implements Sink.
func (s *CountingSink) MinimumLevel() logcore.Level {
	return s.minLevel
}

// OnBeforeFlush implements Sink.
func (s *CountingSink) OnBeforeFlush() {}

// OnAfterFlush implements Sink.
func (s *CountingSink) OnAfterFlush() {
	s.flushes.Add(1)
}

// Process implements Sink.
func (s *CountingSink) Process(_ logcore.LogMessage, payload []byte) error {
	s.processed.Add(1)
	s.bytes.Add(uint64(len(payload)))

	return nil
}

// Dispose implements Sink.
func (s *CountingSink) Dispose() error {
	return nil
}

// Processed returns the number of messages seen.
func (s *CountingSink) Processed() uint64 {
	return s.processed.Load()
}

// Bytes returns the total payload bytes seen.
func (s *CountingSink) Bytes() uint64 {
	return s.bytes.Load()
}

// Flushes returns the number of completed drain cycles.
func (s *CountingSink) Flushes() uint64 {
	return s.flushes.Load()
}

var _ Sink = (*CountingSink)(nil)
