package engagement

import (
	"context"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
)

// MutateFunc changes a record in place. created is true when the record
// was inserted from the seed by this call.
type MutateFunc func(r *domain.EngagementRecord, created bool) error

// Repository is the data access contract for engagement records.
// (CampaignID, Email) is unique.
type Repository interface {
	// Upsert inserts seed if no record exists for the key, then runs fn on
	// the locked record and persists the result. Concurrent upserts on the
	// same key are serialized.
	Upsert(ctx context.Context, campaignID, email string, seed domain.EngagementRecord, fn MutateFunc) (*domain.EngagementRecord, error)

	// InsertPending writes the send snapshot of a campaign. New keys are
	// inserted as pending; an existing test record of the same key becomes a
	// pending real record; real records are left untouched. In the same
	// transaction the campaign is marked as snapshotted, even when records
	// is empty. It returns how many records became pending.
	InsertPending(ctx context.Context, campaignID string, records []domain.EngagementRecord) (int, error)

	// ListPending returns non-test records with sent=false, ordered by email.
	ListPending(ctx context.Context, campaignID string) ([]domain.EngagementRecord, error)

	// ListByCampaign returns every record of a campaign, ordered by email.
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.EngagementRecord, error)

	// ListWindow returns records created in [from, to).
	ListWindow(ctx context.Context, from, to time.Time) ([]domain.EngagementRecord, error)

	// DeleteByCampaign removes all records of a campaign.
	DeleteByCampaign(ctx context.Context, campaignID string) (int, error)
}

// CounterStore applies aggregate deltas to a campaign.
type CounterStore interface {
	IncrementCounters(ctx context.Context, campaignID string, delta domain.CampaignCounters) error
}

// Suppressor writes the global suppression list.
type Suppressor interface {
	Suppress(ctx context.Context, in suppression.SuppressInput) (bool, error)
}

// PreferenceUpdater turns off a user's optional mail categories.
type PreferenceUpdater interface {
	// DisableOptionalMail clears the marketing, newsletter, events and
	// promotional flags. It reports false when no user has the email.
	DisableOptionalMail(ctx context.Context, email string) (bool, error)
}
