package sending

import (
	"context"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/distlock"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
)

// Transport delivers one fully rendered message and returns the provider's
// message id. Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, msg domain.EmailMessage) (string, error)
}

// TemplateSource supplies stored template HTML for campaigns that reference
// a template instead of carrying inline content.
type TemplateSource interface {
	HTML(ctx context.Context, templateID string) (string, error)
}

// RecipientResolver turns a filter spec into an audience.
type RecipientResolver interface {
	Resolve(ctx context.Context, spec domain.RecipientFilterSpec, extraEmails []string, opts recipient.ResolveOptions) (*recipient.Resolution, error)
}

// SuppressionChecker drops suppressed and opted-out recipients.
type SuppressionChecker interface {
	Filter(ctx context.Context, recipients []domain.ResolvedRecipient, category domain.CampaignCategory) ([]domain.ResolvedRecipient, int, error)
}

// EngagementRecorder owns the per-recipient send ledger.
type EngagementRecorder interface {
	Snapshot(ctx context.Context, campaignID string, recipients []domain.ResolvedRecipient) (int, error)
	Pending(ctx context.Context, campaignID string) ([]domain.ResolvedRecipient, error)
	RecordSend(ctx context.Context, ev engagement.SendEvent) (domain.CampaignCounters, error)
}

// CampaignLifecycle is the part of the campaign service a send drives.
type CampaignLifecycle interface {
	Load(ctx context.Context, id string) (*domain.Campaign, error)
	StartSending(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, reason error) error
	IncrementCounters(ctx context.Context, id string, delta domain.CampaignCounters) error
	AddFailed(ctx context.Context, id string, n int) error
}

// Reconciler recomputes stored counters from the engagement records. A
// resumed send calls it to repair counters left behind by an interrupted batch.
type Reconciler interface {
	Reconcile(ctx context.Context, campaignID string) (domain.CampaignCounters, error)
}

// SegmentUsage records that a saved segment was used for a send.
type SegmentUsage interface {
	RecordUsage(ctx context.Context, id string) error
}

// LockFactory hands out per-key distributed locks.
type LockFactory interface {
	For(key string) distlock.DistLock
}
