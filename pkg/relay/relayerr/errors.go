// Package relayerr defines the error taxonomy surfaced by the relay client.
//
// Every failure returned by the client packages is a *Error tagged with a Kind.
// Views switch on the Kind to choose a message and a recovery action; they never
// need to look at HTTP status codes.
package relayerr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a relay failure.
type Kind string

const (
	// KindValidation covers malformed input the user can correct.
	KindValidation Kind = "validation"
	// KindSessionClosed is returned when the chain already reached its bound.
	KindSessionClosed Kind = "session_closed"
	// KindReference is returned when the step to continue from has no usable media.
	KindReference Kind = "reference"
	// KindCooldown is returned when the caller authored the latest step too recently.
	KindCooldown Kind = "cooldown"
	// KindTurnConflict is returned when another participant published first or is publishing.
	KindTurnConflict Kind = "turn_conflict"
	// KindRateLimit is returned when the backend throttles the caller.
	KindRateLimit Kind = "rate_limit"
	// KindNotFound is returned when the addressed resource does not exist.
	KindNotFound Kind = "not_found"
	// KindGeneric covers network failures and server errors.
	KindGeneric Kind = "generic"
)

// Server reason codes carried in error bodies.
const (
	ReasonValidationFailed     = "validation_failed"
	ReasonSessionComplete      = "session_complete"
	ReasonReferenceUnavailable = "reference_unavailable"
	ReasonStepConflict         = "step_conflict"
	ReasonTurnInProgress       = "turn_in_progress"
	ReasonCooldownActive       = "cooldown_active"
	ReasonRateLimited          = "rate_limited"
	ReasonNotFound             = "not_found"
	ReasonForbidden            = "forbidden"
	ReasonInternal             = "internal_error"
)

// IsValidationClass reports whether the kind is corrected by changing input.
func (k Kind) IsValidationClass() bool {
	return k == KindValidation || k == KindSessionClosed || k == KindReference
}

// Error is the single error type returned by the relay client.
type Error struct {
	Kind       Kind
	Reason     string
	Message    string
	Status     int
	Code       string
	RequestID  string
	Op         string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: KindCooldown}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// New builds an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds a generic error around a transport failure.
func Wrap(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{Kind: KindGeneric, Op: op, Message: "request failed", Err: err}
}

// KindOf returns the kind of err, or KindGeneric for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// ReasonOf returns the server reason code carried by err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsThrottled reports whether err is a rate limit signal.
func IsThrottled(err error) bool {
	return IsKind(err, KindRateLimit)
}

// Classify maps an HTTP status and server reason code to a Kind.
//
// The reason code wins when present; the status is the fallback so that a
// backend that only speaks status codes is still classified sensibly.
func Classify(status int, reason string) Kind {
	switch reason {
	case ReasonStepConflict, ReasonTurnInProgress:
		return KindTurnConflict
	case ReasonCooldownActive:
		return KindCooldown
	case ReasonRateLimited:
		return KindRateLimit
	case ReasonSessionComplete:
		return KindSessionClosed
	case ReasonReferenceUnavailable:
		return KindReference
	case ReasonNotFound:
		return KindNotFound
	case ReasonValidationFailed, ReasonForbidden:
		return KindValidation
	}

	switch {
	case status == http.StatusConflict:
		return KindTurnConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindGeneric
	}
}
