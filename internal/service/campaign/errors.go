package campaign

import (
	"errors"
	"fmt"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound      = errors.New("campaign not found")
	ErrStateConflict = errors.New("campaign state conflict")
	ErrNoContent     = errors.New("campaign has no subject or content")
	ErrNoRecipients  = errors.New("campaign has no resolvable recipients")
	ErrInvalidInput  = errors.New("invalid campaign input")
)

// StateConflictError reports an action that is illegal from the campaign's
// current status. Nothing was mutated when it is returned.
type StateConflictError struct {
	CampaignID string
	Status     domain.CampaignStatus
	Action     Action
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("campaign %s: cannot %s while %s", e.CampaignID, e.Action, e.Status)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
