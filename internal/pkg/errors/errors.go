package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUpstream is a generic sentinel for external pipeline or store failures.
	ErrUpstream = errors.New("upstream failure")
	// ErrRecordInvalid marks a fully assembled audit record that fails
	// contract validation.
	ErrRecordInvalid = errors.New("record invalid")
)
