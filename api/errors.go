// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-ev.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported")
	ErrClosed          = errors.New("multiplexer is closed")

	// ErrSinkUnresolved is a configuration error: no callback sink is
	// registered under the requested name.
	ErrSinkUnresolved = errors.New("callback sink not resolved")

	ErrBaseUninitialized = errors.New("event base not initialized")
	ErrBaseReleased      = errors.New("event base released")
	ErrEventFreed        = errors.New("event freed")
	ErrNotBound          = errors.New("event not bound to a base")
	ErrEventPending      = errors.New("event is pending")
	ErrEventsPending     = errors.New("events still pending on base")
	ErrLoopRunning       = errors.New("dispatch loop is running")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeNotSupported
	ErrCodeConfiguration
	ErrCodeRegistration
	ErrCodeUseAfterRelease
	ErrCodePoll
	ErrCodeState
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeNotSupported:
		return "not_supported"
	case ErrCodeConfiguration:
		return "configuration"
	case ErrCodeRegistration:
		return "registration"
	case ErrCodeUseAfterRelease:
		return "use_after_release"
	case ErrCodePoll:
		return "poll"
	case ErrCodeState:
		return "state"
	default:
		return "internal"
	}
}

// Error represents a structured error with code, failing operation and context.
type Error struct {
	Code    ErrorCode
	Op      string // operation name, e.g. "event_add"
	Message string
	Err     error // underlying cause, often a syscall.Errno
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches plain invalid-argument and not-supported errors by code so callers
// can test them without knowing the message.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return target == ErrInvalidArgument
	case ErrCodeNotSupported:
		return target == ErrNotSupported
	}
	return false
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// OpError wraps err as the failure of op.
func OpError(op string, code ErrorCode, err error) *Error {
	e := NewError(code, "failed")
	e.Op = op
	e.Err = err
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
