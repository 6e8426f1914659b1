package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Use errors.Is against these to classify a failure.
var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrPermission   = errors.New("permission denied")
	ErrStore        = errors.New("store error")
	ErrParse        = errors.New("parse error")
	ErrInvalidState = errors.New("invalid state")
	ErrNotFound     = errors.New("not found")
)

// Error carries a kind, the failing operation and a message safe to show users.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Is reports a match against the error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the short message for display; falls back to the kind.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "unexpected error"
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(op, format string, args ...any) error {
	return newError(ErrValidation, op, format, args...)
}

func ConflictError(op, format string, args ...any) error {
	return newError(ErrConflict, op, format, args...)
}

func PermissionError(op, format string, args ...any) error {
	return newError(ErrPermission, op, format, args...)
}

func InvalidStateError(op, format string, args ...any) error {
	return newError(ErrInvalidState, op, format, args...)
}

func NotFoundError(op, format string, args ...any) error {
	return newError(ErrNotFound, op, format, args...)
}

// ParseError wraps a decoding failure.
func ParseError(op string, err error) error {
	return &Error{Kind: ErrParse, Op: op, Message: "could not parse input", Err: err}
}

// StoreError wraps a persistence failure. An err that is already classified keeps its kind.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: ErrStore, Op: op, Message: "storage operation failed", Err: err}
}

// KindOf returns the first matching kind, or nil for unclassified errors.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrConflict, ErrPermission, ErrNotFound, ErrInvalidState, ErrParse, ErrStore} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
