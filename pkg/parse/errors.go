package parse

import (
	"fmt"
)

// DecodeError reports engine output that was not valid JSON where JSON was
// expected. Doc identifies the failed document's 0-based position within a
// multi-document stream; it is -1 for single-document parses.
type DecodeError struct {
	Doc int
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Doc >= 0 {
		return fmt.Sprintf("decoding document %d: %v", e.Doc, e.Err)
	}
	return fmt.Sprintf("decoding engine output: %v", e.Err)
}

// Unwrap returns the underlying decode error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// KeyNotFoundError reports a lookup of an absent name in a ValueMap.
type KeyNotFoundError struct {
	Key string
}

// Error implements the error interface.
func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("no such key: %q", e.Key)
}
