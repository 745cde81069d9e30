package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownAuthority  = errors.New("unknown authority")
	ErrUnsupportedQuery  = errors.New("unsupported query")
	ErrValidation        = errors.New("invalid options")
	ErrTransientUpstream = errors.New("transient upstream failure")
	ErrMalformedUpstream = errors.New("malformed upstream data")
)

// ValidationError rejects a configuration before any network activity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnsupportedQueryError is returned when an authority cannot serve a data type
// or query mode at all. It is a validation error as well.
type UnsupportedQueryError struct {
	Authority string
	DataType  DataType
	Reason    string
}

func (e *UnsupportedQueryError) Error() string {
	msg := fmt.Sprintf("%s: %s does not provide %s", ErrUnsupportedQuery, e.Authority, e.DataType)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedQueryError) Is(target error) bool {
	return target == ErrUnsupportedQuery || target == ErrValidation
}

// Malformed wraps a parse failure on one upstream record or window.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedUpstream, fmt.Sprintf(format, args...))
}
