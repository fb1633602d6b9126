package logcore

// LogMessage is the lightweight descriptor enqueued for every dispatched
// message: the payload handle plus the metadata sinks filter on. The
// serialized message body itself stays in the ring buffer until every
// interested sink has consumed it.
type LogMessage struct {
	// Payload references the serialized message bytes.
	Payload PayloadHandle
	// Timestamp is the dispatch time in nanoseconds since the Unix epoch.
	Timestamp int64
	// StacktraceID identifies a captured stack trace, zero when absent.
	StacktraceID int64
	// Level is the severity the message was dispatched at.
	Level Level
}

// SyncMode controls which dispatched messages flush synchronously on the
// dispatching goroutine instead of waiting for the next update tick.
type SyncMode uint8

const (
	// FatalIsSync flushes synchronously for fatal messages only. This is
	// the default: fatal messages must reach the sinks before the process
	// can go down, everything else stays on the async path.
	FatalIsSync SyncMode = iota
	// FullAsync never flushes on dispatch; every message waits for the
	// next update tick.
	FullAsync
	// FullSync flushes synchronously on every dispatch.
	FullSync
)

// String returns the string representation of a sync mode.
func (m SyncMode) String() string {
	switch m {
	case FatalIsSync:
		return "fatal-sync"
	case FullAsync:
		return "full-async"
	case FullSync:
		return "full-sync"
	default:
		return "unknown"
	}
}

// IsValid reports whether the sync mode value is recognised.
func (m SyncMode) IsValid() bool {
	switch m {
	case FatalIsSync, FullAsync, FullSync:
		return true
	default:
		return false
	}
}

// ParseSyncMode parses a sync mode name. Unrecognised names fall back to
// FatalIsSync: configuration values out of range are replaced with defaults,
// never turned into startup errors.
func ParseSyncMode(mode string) SyncMode {
	switch mode {
	case "full-async", "async":
		return FullAsync
	case "full-sync", "sync":
		return FullSync
	default:
		return FatalIsSync
	}
}
