// Package reason defines the closed set of failure reasons shared by every authkit
// component.
//
// A [Reason] is itself an error, so components return it (usually wrapped with detail)
// through ordinary Go error values. Callers discriminate with [errors.Is] or [Of]:
//
//	if errors.Is(err, reason.Expired) { ... }
//
// Expected authentication and authorization failures are reported this way. Only
// configuration problems and backend (store) failures use other error values.
package reason

import "errors"

// Reason is a closed enum of failure kinds.
type Reason uint8

const (
	// None is the zero value and never returned as an error.
	None Reason = iota
	// Malformed: token or input has the wrong shape.
	Malformed
	// AlgorithmMismatch: token header names an algorithm other than the pinned one.
	AlgorithmMismatch
	// SignatureMismatch: recomputed signature differs from the supplied one.
	SignatureMismatch
	// Expired: credential is past its expiry.
	Expired
	// NotYetValid: token not-before is in the future.
	NotYetValid
	// InvalidClaims: issuer, audience or required claims do not match.
	InvalidClaims
	// Invalid: opaque credential is unknown (for example a used refresh token).
	Invalid
	// NotFound: referenced session does not exist.
	NotFound
	// IdleExpired: session idle timeout exceeded.
	IdleExpired
	// AbsoluteExpired: session absolute lifetime exceeded.
	AbsoluteExpired
	// Hijacked: client fingerprint does not match the one bound at creation.
	Hijacked
	// Denied: subject lacks the requested permission.
	Denied
	// Unauthenticated: no subject could be established.
	Unauthenticated
	// RateLimited: attempt budget for the window is exhausted.
	RateLimited
	// Locked: identifier is under a timed lockout.
	Locked
)

var names = [...]string{
	None:              "none",
	Malformed:         "malformed",
	AlgorithmMismatch: "algorithm mismatch",
	SignatureMismatch: "invalid signature",
	Expired:           "expired",
	NotYetValid:       "not yet valid",
	InvalidClaims:     "invalid claims",
	Invalid:           "invalid",
	NotFound:          "not found",
	IdleExpired:       "expired (idle)",
	AbsoluteExpired:   "expired (absolute)",
	Hijacked:          "hijacking detected",
	Denied:            "permission denied",
	Unauthenticated:   "unauthenticated",
	RateLimited:       "rate limited",
	Locked:            "locked",
}

// String returns the stable, log-safe name of r.
func (r Reason) String() string {
	if int(r) < len(names) {
		return names[r]
	}
	return "unknown"
}

// Error implements error.
func (r Reason) Error() string {
	return r.String()
}

// Is lets the two session expiry reasons match [Expired].
func (r Reason) Is(target error) bool {
	t, ok := target.(Reason)
	if !ok {
		return false
	}
	return t == r || (t == Expired && r.IsExpiry())
}

// IsExpiry reports whether r is any flavour of expiry.
func (r Reason) IsExpiry() bool {
	return r == Expired || r == IdleExpired || r == AbsoluteExpired
}

// IsSecurityEvent reports whether r signals probable abuse rather than ordinary
// expiry. Callers log these at a higher severity.
func (r Reason) IsSecurityEvent() bool {
	switch r {
	case Hijacked, AlgorithmMismatch, SignatureMismatch:
		return true
	default:
		return false
	}
}

// Public returns a generic message suitable for end users.
func (r Reason) Public() string {
	switch r {
	case Expired, IdleExpired, AbsoluteExpired, NotFound, Hijacked:
		return "session expired"
	case Denied:
		return "forbidden"
	case RateLimited, Locked:
		return "too many attempts"
	case None:
		return ""
	default:
		return "unauthorized"
	}
}

// Of extracts the Reason carried by err, or None.
func Of(err error) Reason {
	var r Reason
	if errors.As(err, &r) {
		return r
	}
	return None
}
