package errors

import "strings"

// ValidationErrors is an ordered collection of validation failures.
//
// Plugin option validation never fails fast: every violated constraint is
// collected so the caller can fix them all at once. The collection keeps
// insertion order and is never truncated.
type ValidationErrors []*Error

// Error implements the error interface by joining all messages.
func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the individual errors to errors.Is/As.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// Codes returns the error codes in collection order.
func (v ValidationErrors) Codes() []Code {
	codes := make([]Code, len(v))
	for i, e := range v {
		codes[i] = e.Code
	}
	return codes
}

// ErrOrNil returns the collection as an error, or nil when it is empty.
// Returning a typed nil slice through an error interface would be non-nil,
// so callers must use this instead of returning the slice directly.
func (v ValidationErrors) ErrOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
