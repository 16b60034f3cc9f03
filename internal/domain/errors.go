package domain

import "errors"

var (
	// ErrNotFound is returned by stores when a record lookup misses.
	ErrNotFound = errors.New("domain: not found")
	// ErrMalformedOutput is returned by reasoning service adapters when a
	// structured response does not conform to the requested schema.
	ErrMalformedOutput = errors.New("domain: malformed structured output")
)
