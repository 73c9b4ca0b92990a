package quote

import (
	"errors"
	"fmt"
)

// TransientError is a retryable failure: network error, timeout, 5xx or a
// provider-side rate limit rejection.
type TransientError struct {
	Symbol string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error fetching %s: %v", e.Symbol, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a non-retryable failure such as an unknown symbol or
// rejected credentials.
type PermanentError struct {
	Symbol string
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error fetching %s: %v", e.Symbol, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError for symbol.
func Transient(symbol string, err error) error {
	return &TransientError{Symbol: symbol, Err: err}
}

// Permanent wraps err as a PermanentError for symbol.
func Permanent(symbol string, err error) error {
	return &PermanentError{Symbol: symbol, Err: err}
}

// IsTransient reports whether err is or wraps a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is or wraps a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
