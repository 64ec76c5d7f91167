// Package apperr defines the error kinds surfaced by the booking core. Every
// failure a caller can act on is an *Error carrying one Kind; storage faults
// are wrapped as PersistenceFailure.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindInvalidTransition
	KindBadRequest
	KindNotFound
	KindConflict
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence_failure"
	}
	return "unknown"
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, and by code when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "not authorized"}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrBadRequest         = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
	ErrPersistence        = &Error{Kind: KindPersistence, Message: "persistence failure"}
	ErrPreconditionFailed = &Error{Kind: KindInvalidTransition, Code: CodePrecondition, Message: "precondition failed"}
	ErrStaleWrite         = &Error{Kind: KindConflict, Code: CodeStaleWrite, Message: "record changed concurrently"}
	ErrDuplicate          = &Error{Kind: KindConflict, Code: CodeDuplicate, Message: "duplicate record"}
)

const (
	CodePrecondition = "precondition_failed"
	CodeStaleWrite   = "stale_write"
	CodeDuplicate    = "duplicate"
)

// Unauthorized never carries detail: the caller must not learn anything about
// a record it may not see.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Code: "not_authorized", Message: "not authorized"}
}

func InvalidTransition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Code: "invalid_transition", Message: fmt.Sprintf(format, args...)}
}

func Precondition(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Code: CodePrecondition, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Code: "bad_request", Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: what + "_not_found", Message: what + " not found"}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: "conflict", Message: fmt.Sprintf(format, args...)}
}

func StaleWrite(what string) *Error {
	return &Error{Kind: KindConflict, Code: CodeStaleWrite, Message: what + " changed concurrently"}
}

func Duplicate(what string) *Error {
	return &Error{Kind: KindConflict, Code: CodeDuplicate, Message: "duplicate " + what}
}

// Persistence wraps a storage fault. Already-typed errors pass through so a
// store can return NotFound or Conflict unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindPersistence, Code: "persistence_failure", Message: op + " failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
