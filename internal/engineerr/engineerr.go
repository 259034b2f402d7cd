// Package engineerr defines the error kinds shared across the round engine's
// commands — the same plain-sentinel-plus-wrapper shape as pkg/repo.ErrNilDB and
// internal/model.ErrNotFound, generalized into a small taxonomy so every external
// command can be surfaced as a uniform {success, error, message} envelope.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the command envelope and for propagation policy
// decisions (e.g. whether the tick scheduler downgrades it instead of surfacing it).
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindConflict         Kind = "ConflictError"
	KindNotFound         Kind = "NotFound"
	KindStoreUnavailable Kind = "StoreUnavailable"
	KindLLMUpstream      Kind = "LLMUpstream"
	KindPriceUpstream    Kind = "PriceUpstream"
	KindInternal         Kind = "InternalError"
)

// Error is a kinded error carrying a caller-facing message and an optional
// underlying cause. The cause is never included in Error() output — it is logged,
// not surfaced, matching the teacher's "generic message to caller, detail to logs"
// convention in internal/persistence/engine.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a kinded error with a caller-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting of message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a kinded error without leaking cause's text to Message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to KindInternal for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or something it wraps) carries kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Envelope is the {success, error, message} shape every external command returns.
type Envelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Ok wraps a successful result in an Envelope.
func Ok(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

// Fail wraps err into a failure Envelope. Internal errors get a generic caller-facing
// message; everything else surfaces its own Message.
func Fail(err error) Envelope {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if e.Kind == KindInternal {
			msg = "internal error"
		}
		return Envelope{Success: false, Error: string(e.Kind), Message: msg}
	}
	return Envelope{Success: false, Error: string(KindInternal), Message: "internal error"}
}
