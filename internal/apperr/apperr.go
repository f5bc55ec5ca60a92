// Package apperr is the domain error taxonomy. Handlers render every
// domain error through one mapping so the portal endpoints can never
// diverge on the 404/410 split the UI branches on.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota // user-correctable input problem
	KindNotFound               // entity or token absent
	KindExpired                // portal past its TTL, distinct from not found
	KindConflict               // state machine refused the transition
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func NotFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func Expired(msg string) *Error    { return &Error{Kind: KindExpired, Message: msg} }
func Conflict(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }

// StatusCode maps a domain error to its HTTP status. Unknown errors are the
// caller's problem (rendered as a generic 500).
func StatusCode(err error) (int, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound, true
	case KindExpired:
		return http.StatusGone, true
	default:
		return http.StatusBadRequest, true
	}
}
