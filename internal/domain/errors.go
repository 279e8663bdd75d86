package domain

import "errors"

// Error kinds. Match them with errors.Is; the HTTP layer maps each kind to a
// status code.
var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication error")
	ErrNotFound       = errors.New("not found")
	ErrTransport      = errors.New("transport error")
)

// Error pairs a kind with a message that is safe to show to the caller.
// Cause carries the underlying failure for logs only.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

func Validation(msg string) *Error { return &Error{Kind: ErrValidation, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: ErrConflict, Message: msg} }

func Unauthenticated(msg string) *Error { return &Error{Kind: ErrAuthentication, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: ErrNotFound, Message: msg} }

func Transport(cause error) *Error {
	return &Error{Kind: ErrTransport, Message: "Internal server error", Cause: cause}
}
