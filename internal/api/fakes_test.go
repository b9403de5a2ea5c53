package api_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/ses"
)

type fakeCampaigns struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	lastList  campaign.ListFilter
}

func newFakeCampaigns(cs ...domain.Campaign) *fakeCampaigns {
	f := &fakeCampaigns{campaigns: map[string]*domain.Campaign{}}
	for i := range cs {
		c := cs[i]
		f.campaigns[c.ID] = &c
	}
	return f
}

func (f *fakeCampaigns) Create(_ context.Context, in campaign.CreateInput) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", campaign.ErrInvalidInput)
	}
	c := &domain.Campaign{ID: fmt.Sprintf("c%d", len(f.campaigns)+1), Name: in.Name, Subject: in.Subject, Status: domain.CampaignDraft}
	f.campaigns[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) Get(_ context.Context, id string) (*domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) List(_ context.Context, lf campaign.ListFilter) ([]domain.Campaign, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = lf
	var out []domain.Campaign
	for _, c := range f.campaigns {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCampaigns) Update(ctx context.Context, id string, in campaign.UpdateInput) (*domain.Campaign, error) {
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := campaign.Check(id, c.Status, campaign.ActionEdit); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.Name != nil {
		f.campaigns[id].Name = *in.Name
	}
	cp := *f.campaigns[id]
	return &cp, nil
}

func (f *fakeCampaigns) move(id string, a campaign.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	next, err := campaign.Next(id, c.Status, a)
	if err != nil {
		return err
	}
	c.Status = next
	return nil
}

func (f *fakeCampaigns) Schedule(_ context.Context, id string, at time.Time) error {
	if err := f.move(id, campaign.ActionSchedule); err != nil {
		return err
	}
	f.mu.Lock()
	f.campaigns[id].ScheduledAt = &at
	f.mu.Unlock()
	return nil
}

func (f *fakeCampaigns) Unschedule(_ context.Context, id string) error {
	return f.move(id, campaign.ActionUnschedule)
}

func (f *fakeCampaigns) Cancel(_ context.Context, id string) error {
	return f.move(id, campaign.ActionCancel)
}

func (f *fakeCampaigns) Duplicate(ctx context.Context, id, createdBy string) (*domain.Campaign, error) {
	src, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.Create(ctx, campaign.CreateInput{Name: src.Name + " (Copy)", Subject: src.Subject, CreatedBy: createdBy})
}

func (f *fakeCampaigns) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if err := campaign.Check(id, c.Status, campaign.ActionDelete); err != nil {
		return err
	}
	delete(f.campaigns, id)
	return nil
}

type fakeSender struct {
	mu    sync.Mutex
	sends []string
	tests [][]string
	err   error
}

func (f *fakeSender) Send(_ context.Context, id string) (*domain.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, id)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SendResult{CampaignID: id, Sent: 3, Batches: 1}, nil
}

func (f *fakeSender) SendTest(_ context.Context, id string, emails []string) (*domain.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tests = append(f.tests, emails)
	return &domain.SendResult{CampaignID: id, Sent: len(emails)}, nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sends...)
}

type fakeResolver struct {
	last recipient.ResolveOptions
}

func (f *fakeResolver) Resolve(_ context.Context, _ domain.RecipientFilterSpec, extra []string, opts recipient.ResolveOptions) (*recipient.Resolution, error) {
	f.last = opts
	res := &recipient.Resolution{TotalCount: len(extra)}
	if !opts.CountOnly {
		for _, e := range extra {
			res.Recipients = append(res.Recipients, domain.ResolvedRecipient{Email: e, Source: domain.SourceCustom})
		}
	}
	return res, nil
}

type fakeSegments struct{}

func (fakeSegments) Create(_ context.Context, name, description string, filter domain.RecipientFilterSpec) (*domain.RecipientSegment, error) {
	return &domain.RecipientSegment{ID: "s1", Name: name, Description: description, Filter: filter, EstimatedCount: 7}, nil
}

func (fakeSegments) Get(_ context.Context, id string) (*domain.RecipientSegment, error) {
	if id != "s1" {
		return nil, recipient.ErrSegmentNotFound
	}
	return &domain.RecipientSegment{ID: "s1", Name: "VIP"}, nil
}

func (fakeSegments) Estimate(context.Context, string) (int, error) { return 7, nil }

type fakeSuppressions struct {
	mu      sync.Mutex
	entries map[string]suppression.SuppressInput
}

func newFakeSuppressions() *fakeSuppressions {
	return &fakeSuppressions{entries: map[string]suppression.SuppressInput{}}
}

func (f *fakeSuppressions) Suppress(_ context.Context, in suppression.SuppressInput) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return false, suppression.ErrInvalidEmail
	}
	if _, ok := f.entries[email]; ok {
		return false, nil
	}
	f.entries[email] = in
	return true, nil
}

func (f *fakeSuppressions) Get(_ context.Context, email string) (*domain.UnsubscribedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.entries[email]
	if !ok {
		return nil, suppression.ErrNotFound
	}
	return &domain.UnsubscribedEmail{Email: email, Reason: in.Reason, Source: in.Source, IsActive: true}, nil
}

func (f *fakeSuppressions) Resubscribe(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[email]; !ok {
		return suppression.ErrNotFound
	}
	delete(f.entries, email)
	return nil
}

func (f *fakeSuppressions) List(context.Context, suppression.ListFilter) ([]domain.UnsubscribedEmail, int, error) {
	return nil, 0, nil
}

func (f *fakeSuppressions) GetStats(context.Context) (*suppression.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &suppression.Stats{Active: len(f.entries)}, nil
}

type fakeAnalytics struct {
	reconciled []string
	from, to   time.Time
}

func (f *fakeAnalytics) Campaign(_ context.Context, id string) (*domain.CampaignAnalytics, error) {
	return &domain.CampaignAnalytics{CampaignID: id, Sent: 10, Opened: 4}, nil
}

func (f *fakeAnalytics) Window(_ context.Context, from, to time.Time) (*domain.CampaignAnalytics, error) {
	f.from, f.to = from, to
	return &domain.CampaignAnalytics{Sent: 20}, nil
}

func (f *fakeAnalytics) Reconcile(_ context.Context, id string) (domain.CampaignCounters, error) {
	f.reconciled = append(f.reconciled, id)
	return domain.CampaignCounters{}, nil
}

type fakeReports struct{}

func (fakeReports) Export(_ context.Context, id string) (string, error) {
	return "campaign-reports/" + id + "/snapshot.json", nil
}

type fakeFeedback struct{}

func (fakeFeedback) Process(_ context.Context, body []byte) (*ses.FeedbackResult, error) {
	if len(body) == 0 || body[0] != '{' {
		return nil, ses.ErrMalformedNotification
	}
	return &ses.FeedbackResult{Kind: "Bounce", CampaignID: "c1", Recipients: 1}, nil
}
