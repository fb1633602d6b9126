package sink

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/mattn/go-isatty"

	"github.com/hyp3rd/logcore"
)

// ANSI color codes for terminal output.
const (
	colorMagenta = "\x1b[35m"
	colorBlue    = "\x1b[34m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorRed     = "\x1b[31m"
	colorBoldRed = "\x1b[31;1m"
	colorReset   = "\x1b[0m"
)

// levelColor returns the ANSI color for a level.
func levelColor(level logcore.Level) string {
	switch level {
	case logcore.TraceLevel:
		return colorMagenta
	case logcore.DebugLevel:
		return colorBlue
	case logcore.InfoLevel:
		return colorGreen
	case logcore.WarnLevel:
		return colorYellow
	case logcore.ErrorLevel:
		return colorRed
	case logcore.FatalLevel:
		return colorBoldRed
	default:
		return colorReset
	}
}

// WriterSink renders each message as a single "timestamp level payload"
// line into an io.Writer. Level names are colored when the writer is a
// terminal. Payload bytes are written as-is.
type WriterSink struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel logcore.Level
	color    bool
	scratch  []byte
}

// NewWriterSink creates a sink writing to out for messages at or above
// minLevel. Color is enabled automatically when out is a terminal.
func NewWriterSink(out io.Writer, minLevel logcore.Level) *WriterSink {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return &WriterSink{
		out:      out,
		minLevel: minLevel,
		color:    color,
	}
}

// Initialize implements Sink.
func (s *WriterSink) Initialize() error {
	return nil
}

// MinimumLevel implements Sink.
func (s *WriterSink) MinimumLevel() logcore.Level {
	return s.minLevel
}

// OnBeforeFlush implements Sink.
func (s *WriterSink) OnBeforeFlush() {}

// OnAfterFlush flushes the underlying writer when it supports it.
func (s *WriterSink) OnAfterFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if syncer, ok := s.out.(interface{ Sync() error }); ok {
		//nolint:errcheck // best effort, sinks must not stall the drain
		syncer.Sync()
	}
}

// Process implements Sink. The payload slice is consumed before returning;
// it is never retained.
func (s *WriterSink) Process(msg logcore.LogMessage, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.scratch[:0]
	buf = time.Unix(0, msg.Timestamp).UTC().AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, ' ')

	if s.color {
		buf = append(buf, levelColor(msg.Level)...)
		buf = append(buf, msg.Level.String()...)
		buf = append(buf, colorReset...)
	} else {
		buf = append(buf, msg.Level.String()...)
	}

	buf = append(buf, ' ')
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	s.scratch = buf[:0]

	_, err := s.out.Write(buf)
	if err != nil {
		return ewrap.Wrap(err, "writing log line")
	}

	return nil
}

// Dispose closes the underlying writer when it is closable and not a
// standard stream.
func (s *WriterSink) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	closer, ok := s.out.(io.Closer)
	if !ok {
		return nil
	}

	if f, ok := s.out.(*os.File); ok && (f == os.Stdout || f == os.Stderr) {
		return nil
	}

	err := closer.Close()
	if err != nil {
		return ewrap.Wrap(err, "closing sink writer")
	}

	return nil
}

var _ Sink = (*WriterSink)(nil)
