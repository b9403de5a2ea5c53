package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

// topLinkLimit caps the TopLinks list of a summary.
const topLinkLimit = 10

// RecordSource loads engagement records.
type RecordSource interface {
	Records(ctx context.Context, campaignID string) ([]domain.EngagementRecord, error)
	Window(ctx context.Context, from, to time.Time) ([]domain.EngagementRecord, error)
}

// CounterWriter overwrites a campaign's stored aggregates.
type CounterWriter interface {
	SetCounters(ctx context.Context, campaignID string, counters domain.CampaignCounters) error
}

// Aggregator computes analytics on demand.
type Aggregator struct {
	records  RecordSource
	counters CounterWriter
	now      func() time.Time
}

// NewAggregator creates an aggregator. counters may be nil if Reconcile is unused.
func NewAggregator(records RecordSource, counters CounterWriter) *Aggregator {
	return &Aggregator{records: records, counters: counters, now: time.Now}
}

// Campaign summarizes one campaign.
func (a *Aggregator) Campaign(ctx context.Context, campaignID string) (*domain.CampaignAnalytics, error) {
	records, err := a.records.Records(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", campaignID, err)
	}
	out := Summarize(records)
	out.CampaignID = campaignID
	out.ComputedAt = a.now().UTC()
	return &out, nil
}

// Window summarizes every record created in [from, to).
func (a *Aggregator) Window(ctx context.Context, from, to time.Time) (*domain.CampaignAnalytics, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("analytics window: to must be after from")
	}
	records, err := a.records.Window(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load records for window: %w", err)
	}
	out := Summarize(records)
	f, t := from.UTC(), to.UTC()
	out.From, out.To = &f, &t
	out.ComputedAt = a.now().UTC()
	return &out, nil
}

// Reconcile recomputes a campaign's stored aggregates from its records and
// returns them. It repairs counters left short by an interrupted send.
func (a *Aggregator) Reconcile(ctx context.Context, campaignID string) (domain.CampaignCounters, error) {
	records, err := a.records.Records(ctx, campaignID)
	if err != nil {
		return domain.CampaignCounters{}, fmt.Errorf("load records for %s: %w", campaignID, err)
	}
	c := Counters(records)
	if a.counters != nil {
		if err := a.counters.SetCounters(ctx, campaignID, c); err != nil {
			return c, fmt.Errorf("store reconciled counters: %w", err)
		}
	}
	logger.Info("[Analytics] counters reconciled", "campaign_id", campaignID, "sent", c.Sent, "opened", c.Opened)
	return c, nil
}

// Counters derives the aggregate counters from records, excluding tests.
// Sent follows the same sent-or-delivered rule as Summarize.
func Counters(records []domain.EngagementRecord) domain.CampaignCounters {
	var c domain.CampaignCounters
	for i := range records {
		r := &records[i]
		if r.IsTestEmail {
			continue
		}
		if r.Sent || r.Delivered {
			c.Sent++
		}
		if r.Delivered {
			c.Delivered++
		}
		if r.Opened {
			c.Opened++
		}
		if r.Clicked {
			c.Clicked++
		}
		if r.Bounced {
			c.Bounced++
		}
		if r.Unsubscribed {
			c.Unsubscribed++
		}
	}
	return c
}

// Summarize computes counts and rates over records. Test records are ignored.
func Summarize(records []domain.EngagementRecord) domain.CampaignAnalytics {
	var out domain.CampaignAnalytics
	links := make(map[string]int)

	for i := range records {
		r := &records[i]
		if r.IsTestEmail {
			continue
		}
		out.Recipients++
		out.TotalOpens += r.OpenCount
		out.TotalClicks += r.ClickCount
		if r.Converted {
			out.Converted++
		}
		out.Revenue += r.Revenue
		for id, n := range r.LinkClicks {
			links[id] += n
		}
	}

	c := Counters(records)
	out.Sent = c.Sent
	out.Delivered = c.Delivered
	out.Opened = c.Opened
	out.Clicked = c.Clicked
	out.Bounced = c.Bounced
	out.Unsubscribed = c.Unsubscribed

	out.DeliveryRate = rate(out.Delivered, out.Sent)
	out.OpenRate = rate(out.Opened, out.Delivered)
	out.ClickRate = rate(out.Clicked, out.Opened)
	out.BounceRate = rate(out.Bounced, out.Sent)
	out.UnsubscribeRate = rate(out.Unsubscribed, out.Delivered)
	out.ConversionRate = rate(out.Converted, out.Clicked)
	out.TopLinks = topLinks(links, topLinkLimit)
	return out
}

func rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func topLinks(clicks map[string]int, limit int) []domain.LinkStat {
	if len(clicks) == 0 {
		return nil
	}
	out := make([]domain.LinkStat, 0, len(clicks))
	for id, n := range clicks {
		out = append(out, domain.LinkStat{LinkID: id, Clicks: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].LinkID < out[j].LinkID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
