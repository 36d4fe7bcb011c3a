package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel errors for the two state-machine contract violations. Callers
// assert on these with errors.Is; they are never wrapped away.
var (
	// ErrNotFound means the referenced item does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidState means the operation is illegal for the item's
	// current status.
	ErrInvalidState = errors.New("operation not allowed in current item status")
)

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ResourceError reports an image resource failure. Fatal for uploads,
// logged and swallowed for releases.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("image %s failed: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
