package apperror

import "errors"

// Error carries a stable machine code, a user-safe message and the
// wrapped internal cause. The internal cause is for logs only and must
// never reach a chat reply.
type Error struct {
	Code     string
	Message  string
	Internal error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

var (
	ErrQuotaExhausted = &Error{
		Code:    "quota_exhausted",
		Message: "You have used all of your free conversions",
	}

	ErrTooLarge = &Error{
		Code:    "too_large",
		Message: "The file exceeds the maximum allowed size",
	}

	ErrUnsupportedMedia = &Error{
		Code:    "unsupported_media",
		Message: "This file type is not supported",
	}

	ErrUserNotFound = &Error{
		Code:    "user_not_found",
		Message: "User is not registered",
	}

	ErrFetch = &Error{
		Code:    "fetch_error",
		Message: "Could not retrieve the file",
	}

	ErrTransform = &Error{
		Code:    "transform_error",
		Message: "Processing failed. Please try again later",
	}

	ErrDelivery = &Error{
		Code:    "delivery_error",
		Message: "Could not send the result. Please try again later",
	}

	ErrStorage = &Error{
		Code:    "storage_error",
		Message: "A temporary problem occurred. Please try again later",
	}

	ErrCleanup = &Error{
		Code:    "cleanup_error",
		Message: "A temporary problem occurred. Please try again later",
	}

	ErrInternal = &Error{
		Code:    "internal_error",
		Message: "An unexpected error occurred. Please try again later",
	}
)

func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, appErr *Error) *Error {
	return &Error{
		Code:     appErr.Code,
		Message:  appErr.Message,
		Internal: err,
	}
}

func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal.Code
}

func SafeMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}
