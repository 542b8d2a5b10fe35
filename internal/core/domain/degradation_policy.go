package domain

import "strings"

// DegradationMode enumerates fallback behaviors for flows that depend
// on the revocation cache.
type DegradationMode string

const (
	// DegradationModeFailOpen admits requests when revocation state cannot be read.
	DegradationModeFailOpen DegradationMode = "fail_open"
	// DegradationModeFailClosed rejects requests whenever revocation state cannot be confirmed.
	DegradationModeFailClosed DegradationMode = "fail_closed"
)

// ParseDegradationMode normalises textual input into a supported mode,
// defaulting to fail-open when unrecognised.
func ParseDegradationMode(value string) DegradationMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DegradationModeFailClosed), "strict", "fail-closed":
		return DegradationModeFailClosed
	default:
		return DegradationModeFailOpen
	}
}

// DegradationPolicy centralises how auth flows respond when the cache
// is unavailable or times out.
type DegradationPolicy struct {
	mode DegradationMode
}

// NewDegradationPolicy constructs a policy with the provided mode,
// defaulting to fail-open when unspecified.
func NewDegradationPolicy(mode DegradationMode) DegradationPolicy {
	if mode != DegradationModeFailClosed {
		mode = DegradationModeFailOpen
	}
	return DegradationPolicy{mode: mode}
}

// Mode returns the underlying policy mode.
func (p DegradationPolicy) Mode() DegradationMode {
	return p.mode
}

// FailsClosed indicates whether the policy rejects requests on cache errors.
func (p DegradationPolicy) FailsClosed() bool {
	return p.mode == DegradationModeFailClosed
}

// FailsOpen indicates whether the policy admits requests on cache errors.
func (p DegradationPolicy) FailsOpen() bool {
	return !p.FailsClosed()
}
