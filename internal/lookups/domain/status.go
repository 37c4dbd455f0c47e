// Package domain provides core business rules for the lookups bounded context.
package domain

// Lookup statuses. A lookup starts as pending, moves to calling when the
// outbound call is scheduled, and ends in exactly one terminal status.
const (
	StatusPending  = "pending"
	StatusCalling  = "calling"
	StatusCached   = "cached"
	StatusNotFound = "not_found"
	StatusFailed   = "failed"
)

var knownStatuses = map[string]struct{}{
	StatusPending:  {},
	StatusCalling:  {},
	StatusCached:   {},
	StatusNotFound: {},
	StatusFailed:   {},
}

// statusRank orders statuses along the monotonic progression
// pending → calling → terminal. Terminal statuses share the highest rank;
// among them, cached outranks failed (late success data wins).
var statusRank = map[string]int{
	StatusPending:  0,
	StatusCalling:  1,
	StatusFailed:   2,
	StatusNotFound: 2,
	StatusCached:   3,
}

// IsKnownStatus reports whether status is one of the canonical lookup statuses.
func IsKnownStatus(status string) bool {
	_, ok := knownStatuses[status]
	return ok
}

// IsTerminalStatus returns true once the lookup has reached an end state.
// Terminal lookups are never moved back to an earlier stage.
func IsTerminalStatus(status string) bool {
	return status == StatusCached || status == StatusNotFound || status == StatusFailed
}

// NextStatus resolves the status a lookup should hold after an event
// proposes candidate. The machine is strictly monotonic: a proposal ranked
// below the current status is ignored. The single exception built into the
// ranking is that cached replaces failed, because voice platforms sometimes
// report a transient failure before the final result arrives.
func NextStatus(current, candidate string) string {
	if !IsKnownStatus(candidate) {
		return current
	}
	if !IsKnownStatus(current) {
		return candidate
	}
	if statusRank[candidate] > statusRank[current] {
		return candidate
	}
	return current
}
