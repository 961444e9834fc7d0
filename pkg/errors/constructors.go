package errors

import (
	"errors"
	"fmt"
)

// New builds an [Error] with no underlying cause:
//
//	err := errors.New(errors.CodeValidationRequired, "id_token is required")
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is [New] with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error, which becomes
// the Cause. A nil err yields nil, so store call sites can wrap
// unconditionally:
//
//	if err := row.Scan(&id); err != nil {
//	    return errors.Wrap(err, errors.CodeInternalDatabase, "failed to load identity")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf is [Wrap] with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// Validation builds a generic validation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf is [Validation] with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// NotFound builds a generic not-found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf is [NotFound] with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Unauthenticated builds the uniform authentication error protected
// endpoints surface. The message stays generic; the reason a token was
// rejected lives only in server-side logs.
func Unauthenticated(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden marks a request from an authenticated user who lacks
// permission for the action.
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// Conflict marks an operation that clashes with current state.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// Internal marks an unexpected failure whose detail must not reach
// users.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Internalf is [Internal] with a formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Unavailable marks a dependency outage.
func Unavailable(message string) *Error {
	return New(CodeUnavailable, message)
}

// Timeout marks a deadline expiry.
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// FromError coerces any error into an [*Error]: coded errors pass
// through, everything else wraps as internal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
