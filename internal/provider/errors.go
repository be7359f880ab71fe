package provider

import "fmt"

// Error is the single unrecoverable-failure kind providers report:
// precondition unmet, transport failure, timeout, or a malformed backend
// response. It is always fatal to the current Execute call.
type Error struct {
	// Provider is the identifier of the backend that failed.
	Provider string

	// Message is the human-readable failure description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider == "" {
		return e.Message
	}
	return e.Provider + ": " + e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a provider error without a cause.
func NewError(providerName, message string) *Error {
	return &Error{Provider: providerName, Message: message}
}

// WrapError creates a provider error with a cause.
func WrapError(providerName, message string, err error) *Error {
	return &Error{Provider: providerName, Message: message, Err: err}
}

// Errorf creates a provider error with a formatted message.
func Errorf(providerName, format string, args ...any) *Error {
	return &Error{Provider: providerName, Message: fmt.Sprintf(format, args...)}
}
