package apperr

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is lets sentinel AppErrors match wrapped copies of themselves by code
// and message, so `errors.Is(err, domain.ErrProfileNotFound)` works across
// layers.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func Unauthenticated(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func Unavailable(msg string, cause error) error {
	return Wrap(CodeUnavailable, msg, cause)
}

func Internal(msg string) error {
	return New(CodeInternal, msg)
}

// CodeOf extracts the classification of err, or CodeUnknown for plain errors.
func CodeOf(err error) Code {
	var e *AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsNotFound is a convenience for the most common branch in the sync core:
// "absent" is an expected state, not a failure.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}
