package errors

import (
	goerrors "errors"
)

// Is reports whether any error in err's chain matches target.
// Re-exported so callers never need both this package and the
// standard one.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// As finds the first error in err's chain matching target's type and
// assigns it.
func As(err error, target any) bool {
	return goerrors.As(err, target)
}

// Unwrap returns the error wrapped by err, or nil.
func Unwrap(err error) error {
	return goerrors.Unwrap(err)
}
