package memory

// ReleaseResult classifies the outcome of a payload release request, so
// callers can tell a retryable condition (locked payload, partially failed
// disjointed release) from a handle that is simply garbage.
type ReleaseResult uint8

const (
	// ReleaseSuccess means the payload was released normally.
	ReleaseSuccess ReleaseResult = iota
	// ReleaseNotInitialized means the manager is not (or no longer)
	// initialized; startup/teardown races degrade to this instead of
	// faulting.
	ReleaseNotInitialized
	// ReleaseInvalidHandle means the handle does not reference a live block.
	ReleaseInvalidHandle
	// ReleaseBufferLocked means the payload is pinned by at least one lock
	// context. The caller can retry later or force the release.
	ReleaseBufferLocked
	// ReleaseDisjointedFailed means one or more content blocks of a
	// disjointed payload could not be released. The head block is kept so
	// the call can be retried; a forced retry always succeeds.
	ReleaseDisjointedFailed
	// ReleaseForced means the release completed under force despite
	// outstanding locks or content-block failures.
	ReleaseForced
)

// String returns the string representation of the result code.
func (r ReleaseResult) String() string {
	switch r {
	case ReleaseSuccess:
		return "success"
	case ReleaseNotInitialized:
		return "not-initialized"
	case ReleaseInvalidHandle:
		return "invalid-handle"
	case ReleaseBufferLocked:
		return "buffer-locked"
	case ReleaseDisjointedFailed:
		return "disjointed-release-failed"
	case ReleaseForced:
		return "forced-release"
	default:
		return "unknown"
	}
}
