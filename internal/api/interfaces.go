package api

import (
	"context"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/ses"
)

// CampaignService is the campaign lifecycle surface the handlers use.
type CampaignService interface {
	Create(ctx context.Context, in campaign.CreateInput) (*domain.Campaign, error)
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error)
	Update(ctx context.Context, id string, in campaign.UpdateInput) (*domain.Campaign, error)
	Schedule(ctx context.Context, id string, at time.Time) error
	Unschedule(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Duplicate(ctx context.Context, id, createdBy string) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error
}

// Sender runs campaign sends.
type Sender interface {
	Send(ctx context.Context, campaignID string) (*domain.SendResult, error)
	SendTest(ctx context.Context, campaignID string, emails []string) (*domain.SendResult, error)
}

// Resolver previews audiences.
type Resolver interface {
	Resolve(ctx context.Context, spec domain.RecipientFilterSpec, extra []string, opts recipient.ResolveOptions) (*recipient.Resolution, error)
}

// SegmentService manages saved segments.
type SegmentService interface {
	Create(ctx context.Context, name, description string, filter domain.RecipientFilterSpec) (*domain.RecipientSegment, error)
	Get(ctx context.Context, id string) (*domain.RecipientSegment, error)
	Estimate(ctx context.Context, id string) (int, error)
}

// SuppressionService manages the global suppression list.
type SuppressionService interface {
	Suppress(ctx context.Context, in suppression.SuppressInput) (bool, error)
	Get(ctx context.Context, email string) (*domain.UnsubscribedEmail, error)
	Resubscribe(ctx context.Context, email string) error
	List(ctx context.Context, f suppression.ListFilter) ([]domain.UnsubscribedEmail, int, error)
	GetStats(ctx context.Context) (*suppression.Stats, error)
}

// Analytics computes campaign and window summaries.
type Analytics interface {
	Campaign(ctx context.Context, campaignID string) (*domain.CampaignAnalytics, error)
	Window(ctx context.Context, from, to time.Time) (*domain.CampaignAnalytics, error)
	Reconcile(ctx context.Context, campaignID string) (domain.CampaignCounters, error)
}

// ReportExporter archives analytics snapshots.
type ReportExporter interface {
	Export(ctx context.Context, campaignID string) (string, error)
}

// FeedbackProcessor applies ESP bounce and complaint notifications.
type FeedbackProcessor interface {
	Process(ctx context.Context, body []byte) (*ses.FeedbackResult, error)
}
