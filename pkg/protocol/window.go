// Package protocol defines the contract between the settlement engine and the
// untrusted collaborators it calls into: accounts, sponsors (paymasters), and
// account factories. The engine treats every collaborator call as fallible and
// resource-bounded; nothing in this package may panic across the boundary.
package protocol

// DeadlineWindow is the time range during which an operation's authorization
// is valid. It is produced independently by the account and (optionally) the
// sponsor, merged once during validation, and consumed once by the expiry
// check.
type DeadlineWindow struct {
	// ValidAfter is the earliest timestamp (inclusive) at which the
	// authorization becomes valid.
	ValidAfter uint64

	// ValidUntil is the timestamp (exclusive) at which the authorization
	// expires. Zero means no upper bound.
	ValidUntil uint64

	// AuthFailed reports that the signature check failed without reverting.
	// Returning a window instead of reverting lets gas estimation run with a
	// dummy signature.
	AuthFailed bool
}

// Intersect merges two windows: max of the ValidAfter values, min of the
// ValidUntil values (zero treated as unbounded), OR of the failure flags.
// Relayers depend on this exact merge rule.
func (w DeadlineWindow) Intersect(o DeadlineWindow) DeadlineWindow {
	merged := DeadlineWindow{
		ValidAfter: w.ValidAfter,
		ValidUntil: w.ValidUntil,
		AuthFailed: w.AuthFailed || o.AuthFailed,
	}
	if o.ValidAfter > merged.ValidAfter {
		merged.ValidAfter = o.ValidAfter
	}
	if merged.ValidUntil == 0 || (o.ValidUntil != 0 && o.ValidUntil < merged.ValidUntil) {
		merged.ValidUntil = o.ValidUntil
	}
	return merged
}

// Expired reports whether now falls outside the window. ValidAfter itself is
// valid; ValidUntil itself is already expired.
func (w DeadlineWindow) Expired(now uint64) bool {
	if now < w.ValidAfter {
		return true
	}
	if w.ValidUntil != 0 && now >= w.ValidUntil {
		return true
	}
	return false
}
