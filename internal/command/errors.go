package command

import (
	"errors"
	"fmt"
)

// Code identifies a failure class reported back to the host.
type Code string

const (
	CodeInvalidArguments Code = "invalid_arguments"
	CodeNotImplemented   Code = "not_implemented"
	CodeSDK              Code = "sdk_error"
)

var (
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrNotImplemented   = errors.New("not implemented")
	ErrSDK              = errors.New("sdk call failed")
)

// Error is the structured failure returned by the command surface.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches the sentinel for the error's code.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeInvalidArguments:
		return target == ErrInvalidArguments
	case CodeNotImplemented:
		return target == ErrNotImplemented
	case CodeSDK:
		return target == ErrSDK
	}
	return false
}

func (e *Error) Unwrap() error { return e.cause }

func InvalidArguments(method, details string) *Error {
	return &Error{
		Code:    CodeInvalidArguments,
		Message: fmt.Sprintf("could not extract arguments for method %q", method),
		Details: details,
	}
}

func NotImplemented(method string) *Error {
	return &Error{
		Code:    CodeNotImplemented,
		Message: fmt.Sprintf("method %q is not implemented", method),
	}
}

// SDKFailure wraps an error returned by the wrapped SDK.
func SDKFailure(method string, err error) *Error {
	e := &Error{
		Code:    CodeSDK,
		Message: fmt.Sprintf("sdk rejected method %q", method),
		cause:   err,
	}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// AsError extracts a *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
