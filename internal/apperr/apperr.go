package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the user is expected to recover from it.
type Kind string

const (
	KindValidation Kind = "validation" // bad user input, shown inline
	KindGeneration Kind = "generation" // generation service returned nothing usable
	KindNetwork    Kind = "network"    // transport failure talking to a collaborator
	KindCheckout   Kind = "checkout"   // payment session could not be created or confirmed
	KindInternal   Kind = "internal"
)

// Error is the typed error carried across package boundaries.
// Message is safe to show to the end user; Err holds the cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, apperr.Validation(""))
// style checks work without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Generation(msg string, cause error) *Error {
	return &Error{Kind: KindGeneration, Message: msg, Err: cause}
}

func Network(msg string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: msg, Err: cause}
}

func Checkout(msg string, cause error) *Error {
	return &Error{Kind: KindCheckout, Message: msg, Err: cause}
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message for err. Errors outside the
// taxonomy get a generic message so internal details never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An unexpected error occurred. Please try again."
}

// Retryable reports whether the user should be offered a "try again" action.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindGeneration, KindNetwork:
		return true
	}
	return false
}
