package engagement

import (
	"errors"
	"fmt"
)

// ErrTrackingWrite marks a failed engagement write.
var ErrTrackingWrite = errors.New("tracking write failed")

// TrackingWriteError carries the failed operation. Public tracking endpoints
// log it and still serve the pixel or redirect.
type TrackingWriteError struct {
	Op         string
	CampaignID string
	Err        error
}

func (e *TrackingWriteError) Error() string {
	return fmt.Sprintf("engagement %s for campaign %s: %v", e.Op, e.CampaignID, e.Err)
}

func (e *TrackingWriteError) Unwrap() []error { return []error{ErrTrackingWrite, e.Err} }
