package sending

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a failed delivery to one recipient.
	ErrTransport = errors.New("transport send failed")

	// ErrSendInProgress is returned when another process holds the
	// campaign's send lock.
	ErrSendInProgress = errors.New("campaign send already in progress")
)

// TransportError is one recipient's delivery failure. It is counted in the
// run's failed total and never returned from Send.
type TransportError struct {
	Email string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Email, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }
