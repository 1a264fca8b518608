// SPDX-License-Identifier: AGPL-3.0-only
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies application errors
type Kind string

const (
	// KindInvalidInput marks errors caused by bad caller input
	KindInvalidInput Kind = "invalid_input"
	// KindNotFound marks lookups of unknown resources
	KindNotFound Kind = "not_found"
	// KindInternal marks unexpected failures
	KindInternal Kind = "internal"
)

// AppError is an error with a Kind attached
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// InvalidInput returns an error describing invalid caller input
func InvalidInput(msg string) error {
	return &AppError{Kind: KindInvalidInput, Message: msg}
}

// NotFound returns an error for an unknown resource
func NotFound(resource, id string) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// Internal wraps an unexpected error
func Internal(err error) error {
	return &AppError{Kind: KindInternal, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an AppError
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Platform error codes reported by a failed command post.
const (
	// CodeInvalidWindowHandle is reported when the host is gone
	CodeInvalidWindowHandle = 1400
	// CodeQueueFull is reported when the host message queue is full
	CodeQueueFull = 1816
)

// DispatchError is returned when the host refuses a posted command.
// Code is the platform error code, the only detail a caller gets.
type DispatchError struct {
	CommandID int
	Code      int
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("post command %d failed with code %d", e.CommandID, e.Code)
}

// Dispatch returns a DispatchError for the given command and code
func Dispatch(commandID, code int) error {
	return &DispatchError{CommandID: commandID, Code: code}
}

// DispatchCode extracts the platform code from err.
// It returns false if err is not a DispatchError.
func DispatchCode(err error) (int, bool) {
	var de *DispatchError
	if stderrors.As(err, &de) {
		return de.Code, true
	}
	return 0, false
}
