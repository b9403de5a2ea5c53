package recipient

import (
	"errors"
	"fmt"
)

// Sentinel errors for recipient resolution.
var (
	ErrResolution      = errors.New("recipient resolution failed")
	ErrSegmentNotFound = errors.New("segment not found")
)

// ResolutionError reports that a recipient source could not be read.
// A send that hits one moves its campaign to failed.
type ResolutionError struct {
	Source string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve recipients: %s: %v", e.Source, e.Err)
}

func (e *ResolutionError) Unwrap() []error { return []error{ErrResolution, e.Err} }
