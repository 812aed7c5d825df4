package errs

import "errors"

// Reason is the closed set of outward-facing failure codes for token operations.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonInvalid     Reason = "invalid"
	ReasonExpired     Reason = "expired"
	ReasonRevoked     Reason = "revoked"
	ReasonUnavailable Reason = "unavailable"
)

// ReasonOf maps an error onto a Reason. Unknown errors collapse to invalid
// so that internal text never reaches the caller.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrExpired):
		return ReasonExpired
	case errors.Is(err, ErrRevoked):
		return ReasonRevoked
	case IsDependencyError(err):
		return ReasonUnavailable
	default:
		return ReasonInvalid
	}
}

// IsClientError reports errors caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrClaimTypeMismatch) ||
		errors.Is(err, ErrRevoked) ||
		errors.Is(err, ErrValidation)
}

// IsDependencyError reports store/broker failures.
func IsDependencyError(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrDeliveryFailed)
}

// IsProtocolError reports envelopes that must be dead-lettered.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrProtocol)
}
