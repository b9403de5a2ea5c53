package campaign

import (
	"context"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign without its ledger. Returns ErrNotFound
	// if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, ordered by created_at DESC,
	// and the total before pagination.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign. c.ID must be set.
	Create(ctx context.Context, c *domain.Campaign) error

	// UpdateContent writes the editable fields of c only while the stored
	// status is one of from. It reports whether a row was updated.
	UpdateContent(ctx context.Context, c *domain.Campaign, from []domain.CampaignStatus) (bool, error)

	// Transition moves the campaign to status `to` only while the stored
	// status is one of from, applying patch in the same statement.
	Transition(ctx context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus, patch TransitionPatch) (bool, error)

	// IncrementCounters atomically adds delta to the aggregate counters.
	IncrementCounters(ctx context.Context, id string, delta domain.CampaignCounters) error

	// SetCounters overwrites the aggregate counters, used by reconciliation.
	SetCounters(ctx context.Context, id string, counters domain.CampaignCounters) error

	// AddFailed atomically adds n to the failed-send count.
	AddFailed(ctx context.Context, id string, n int) error

	// Delete removes the campaign while its status is one of from.
	Delete(ctx context.Context, id string, from []domain.CampaignStatus) (bool, error)

	// ListDue returns scheduled campaigns whose scheduled_at is not after now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)

	// ListStaleSending returns sending campaigns not updated since before.
	ListStaleSending(ctx context.Context, before time.Time, limit int) ([]domain.Campaign, error)
}

// Ledger is the read side of the engagement store that the campaign
// projection and the delete cascade need.
type Ledger interface {
	Ledger(ctx context.Context, campaignID string) ([]domain.RecipientProgress, error)
	Purge(ctx context.Context, campaignID string) (int, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status   domain.CampaignStatus
	Category domain.CampaignCategory
	Search   string
	Limit    int
	Offset   int
}

// TransitionPatch holds the columns written alongside a status change.
// Nil fields are left untouched.
type TransitionPatch struct {
	ScheduledAt   *time.Time
	ClearSchedule bool
	StartedAt     *time.Time
	CompletedAt   *time.Time
	FailedAt      *time.Time
	ErrorMessage  *string
}
