package engagement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
)

// Service records engagement. It is safe for concurrent use; correctness
// under concurrent hits comes from the repository's per-key upsert.
type Service struct {
	repo       Repository
	counters   CounterStore
	suppressor Suppressor
	prefs      PreferenceUpdater
	now        func() time.Time
}

// NewService wires the engagement service. prefs may be nil.
func NewService(repo Repository, counters CounterStore, suppressor Suppressor, prefs PreferenceUpdater) *Service {
	return &Service{repo: repo, counters: counters, suppressor: suppressor, prefs: prefs, now: time.Now}
}

// OpenEvent is one pixel hit.
type OpenEvent struct {
	CampaignID string
	Email      string
	IPAddress  string
	UserAgent  string
	At         time.Time
}

// ClickEvent is one click-redirect hit.
type ClickEvent struct {
	CampaignID string
	Email      string
	LinkID     string
	URL        string
	IPAddress  string
	UserAgent  string
	At         time.Time
}

// UnsubscribeEvent is one unsubscribe-link hit.
type UnsubscribeEvent struct {
	CampaignID string
	Email      string
	IPAddress  string
	UserAgent  string
	At         time.Time
}

// SendEvent is a transport acceptance for one recipient.
type SendEvent struct {
	CampaignID string
	Recipient  domain.ResolvedRecipient
	MessageID  string
	IsTest     bool
	At         time.Time
}

// BounceEvent is a bounce notification from the ESP.
type BounceEvent struct {
	CampaignID string
	Email      string
	Permanent  bool
	BounceType string
	Reason     string
	At         time.Time
}

// ConversionEvent attributes a purchase or signup to a campaign.
type ConversionEvent struct {
	CampaignID string
	Email      string
	Revenue    float64
	At         time.Time
}

func (s *Service) at(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}

// trackedSeed is the record created when a tracking hit arrives before any
// send was recorded: being tracked implies it was delivered.
func trackedSeed(campaignID, email string, at time.Time) domain.EngagementRecord {
	return domain.EngagementRecord{
		CampaignID:  campaignID,
		Email:       email,
		Sent:        true,
		Delivered:   true,
		SentAt:      &at,
		DeliveredAt: &at,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

// createdDelta accounts the implied send and delivery of a seeded record.
func createdDelta(created bool, r *domain.EngagementRecord) domain.CampaignCounters {
	if !created || r.IsTestEmail {
		return domain.CampaignCounters{}
	}
	d := domain.CampaignCounters{}
	if r.Sent {
		d.Sent = 1
	}
	if r.Delivered {
		d.Delivered = 1
	}
	return d
}

func markOpened(r *domain.EngagementRecord, at time.Time, d *domain.CampaignCounters) {
	if !r.Opened {
		r.Opened = true
		if r.FirstOpenedAt == nil {
			r.FirstOpenedAt = &at
		}
		d.Opened++
	}
	if !r.Delivered {
		r.Delivered = true
		r.DeliveredAt = &at
		d.Delivered++
	}
	r.LastOpenedAt = &at
}

func applyClient(r *domain.EngagementRecord, ip, ua string) {
	if ip != "" {
		r.IPAddress = ip
	}
	if ua != "" {
		r.UserAgent = ua
		r.DeviceType = DeviceType(ua)
	}
}

// RecordOpen records a pixel hit. openCount grows on every hit; the opened
// aggregate grows only on the first.
func (s *Service) RecordOpen(ctx context.Context, ev OpenEvent) error {
	at := s.at(ev.At)
	email := domain.NormalizeEmail(ev.Email)
	var delta domain.CampaignCounters

	_, err := s.repo.Upsert(ctx, ev.CampaignID, email, trackedSeed(ev.CampaignID, email, at), func(r *domain.EngagementRecord, created bool) error {
		delta = createdDelta(created, r)
		r.OpenCount++
		markOpened(r, at, &delta)
		applyClient(r, ev.IPAddress, ev.UserAgent)
		return nil
	})
	if err != nil {
		return &TrackingWriteError{Op: "open", CampaignID: ev.CampaignID, Err: err}
	}
	return s.apply(ctx, "open", ev.CampaignID, delta)
}

// RecordClick records a click. A click on an unopened record also counts
// as its first open.
func (s *Service) RecordClick(ctx context.Context, ev ClickEvent) error {
	at := s.at(ev.At)
	email := domain.NormalizeEmail(ev.Email)
	var delta domain.CampaignCounters

	_, err := s.repo.Upsert(ctx, ev.CampaignID, email, trackedSeed(ev.CampaignID, email, at), func(r *domain.EngagementRecord, created bool) error {
		delta = createdDelta(created, r)
		if !r.Opened {
			r.OpenCount++
		}
		markOpened(r, at, &delta)

		r.ClickCount++
		if !r.Clicked {
			r.Clicked = true
			if r.FirstClickedAt == nil {
				r.FirstClickedAt = &at
			}
			delta.Clicked++
		}
		r.LastClickedAt = &at
		if ev.URL != "" {
			r.LastClickedURL = ev.URL
		}
		if ev.LinkID != "" {
			if r.LinkClicks == nil {
				r.LinkClicks = make(map[string]int)
			}
			r.LinkClicks[ev.LinkID]++
		}
		applyClient(r, ev.IPAddress, ev.UserAgent)
		return nil
	})
	if err != nil {
		return &TrackingWriteError{Op: "click", CampaignID: ev.CampaignID, Err: err}
	}
	return s.apply(ctx, "click", ev.CampaignID, delta)
}

// RecordUnsubscribe runs the unsubscribe cascade. Each step is idempotent
// and runs even if an earlier one failed; failures are joined.
func (s *Service) RecordUnsubscribe(ctx context.Context, ev UnsubscribeEvent) error {
	return s.unsubscribe(ctx, ev, domain.ReasonUserRequest, domain.SourceTrackingLink)
}

// RecordComplaint treats a spam complaint as an unsubscribe from the ESP.
func (s *Service) RecordComplaint(ctx context.Context, campaignID, email string, at time.Time) error {
	return s.unsubscribe(ctx, UnsubscribeEvent{CampaignID: campaignID, Email: email, At: at}, domain.ReasonComplaint, domain.SourceESPWebhook)
}

func (s *Service) unsubscribe(ctx context.Context, ev UnsubscribeEvent, reason domain.SuppressionReason, source domain.SuppressionSource) error {
	at := s.at(ev.At)
	email := domain.NormalizeEmail(ev.Email)
	var (
		errs    []error
		delta   domain.CampaignCounters
		userID  string
		flipped bool
	)

	// 1. engagement record flag and timestamp
	_, err := s.repo.Upsert(ctx, ev.CampaignID, email, trackedSeed(ev.CampaignID, email, at), func(r *domain.EngagementRecord, created bool) error {
		delta = createdDelta(created, r)
		flipped = false
		if !r.Unsubscribed {
			r.Unsubscribed = true
			r.UnsubscribedAt = &at
			flipped = true
		}
		userID = r.UserID
		applyClient(r, ev.IPAddress, ev.UserAgent)
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("record flag: %w", err))
	}

	// 2. global suppression
	if s.suppressor != nil {
		if _, err := s.suppressor.Suppress(ctx, suppression.SuppressInput{
			Email:      email,
			Reason:     reason,
			Source:     source,
			CampaignID: ev.CampaignID,
			UserID:     userID,
			IPAddress:  ev.IPAddress,
			UserAgent:  ev.UserAgent,
		}); err != nil {
			errs = append(errs, fmt.Errorf("suppress: %w", err))
		}
	}

	// 3. user preferences; transactional stays on
	if s.prefs != nil {
		found, err := s.prefs.DisableOptionalMail(ctx, email)
		if err != nil {
			errs = append(errs, fmt.Errorf("preferences: %w", err))
		} else if !found {
			logger.Debug("[Engagement] unsubscribe for unknown user", "email", email)
		}
	}

	// 4. campaign aggregate, first time only
	if flipped {
		delta.Unsubscribed++
	}
	if err := s.increment(ctx, ev.CampaignID, delta); err != nil {
		errs = append(errs, fmt.Errorf("aggregate: %w", err))
	}

	// 5. The ledger is a projection of the record written in step 1.

	if len(errs) > 0 {
		return &TrackingWriteError{Op: "unsubscribe", CampaignID: ev.CampaignID, Err: errors.Join(errs...)}
	}
	logger.Info("[Engagement] unsubscribe recorded", "campaign_id", ev.CampaignID, "email", email, "first", flipped)
	return nil
}

// RecordSend marks a recipient as sent and delivered. Unlike the tracking
// writes it does not touch campaign aggregates; it returns the delta so the
// orchestrator can persist a whole batch at once.
func (s *Service) RecordSend(ctx context.Context, ev SendEvent) (domain.CampaignCounters, error) {
	at := s.at(ev.At)
	rec := ev.Recipient
	email := domain.NormalizeEmail(rec.Email)
	seed := domain.EngagementRecord{
		CampaignID:  ev.CampaignID,
		Email:       email,
		UserID:      rec.UserID,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		Variables:   rec.Variables,
		IsTestEmail: ev.IsTest,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	var delta domain.CampaignCounters

	_, err := s.repo.Upsert(ctx, ev.CampaignID, email, seed, func(r *domain.EngagementRecord, created bool) error {
		delta = domain.CampaignCounters{}
		if ev.IsTest {
			// A test send never overwrites a real recipient's record.
			if !created && !r.IsTestEmail {
				return nil
			}
			r.IsTestEmail = true
			r.Sent, r.Delivered = true, true
			r.SentAt, r.DeliveredAt = &at, &at
			r.MessageID = ev.MessageID
			return nil
		}

		if r.IsTestEmail {
			resetForRealSend(r)
		}
		if !r.Sent {
			r.Sent = true
			r.SentAt = &at
			delta.Sent++
		}
		if !r.Delivered && !r.Bounced {
			r.Delivered = true
			r.DeliveredAt = &at
			delta.Delivered++
		}
		r.MessageID = ev.MessageID
		return nil
	})
	if err != nil {
		return domain.CampaignCounters{}, &TrackingWriteError{Op: "send", CampaignID: ev.CampaignID, Err: err}
	}
	return delta, nil
}

// resetForRealSend clears a test record that now belongs to a real recipient.
func resetForRealSend(r *domain.EngagementRecord) {
	*r = domain.EngagementRecord{
		CampaignID: r.CampaignID,
		Email:      r.Email,
		UserID:     r.UserID,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Variables:  r.Variables,
		CreatedAt:  r.CreatedAt,
	}
}

// RecordBounce marks a bounce. Delivery is revoked unless the recipient
// already opened, and permanent bounces are suppressed globally.
func (s *Service) RecordBounce(ctx context.Context, ev BounceEvent) error {
	at := s.at(ev.At)
	email := domain.NormalizeEmail(ev.Email)
	seed := domain.EngagementRecord{
		CampaignID: ev.CampaignID,
		Email:      email,
		Sent:       true,
		SentAt:     &at,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	var delta domain.CampaignCounters

	_, err := s.repo.Upsert(ctx, ev.CampaignID, email, seed, func(r *domain.EngagementRecord, created bool) error {
		delta = createdDelta(created, r)
		if !r.Bounced {
			r.Bounced = true
			r.BouncedAt = &at
			delta.Bounced++
		}
		r.BounceType = ev.BounceType
		r.BounceReason = ev.Reason
		if r.Delivered && !r.Opened {
			r.Delivered = false
			r.DeliveredAt = nil
			delta.Delivered--
		}
		return nil
	})
	var errs []error
	if err != nil {
		errs = append(errs, err)
	} else if err := s.increment(ctx, ev.CampaignID, delta); err != nil {
		errs = append(errs, err)
	}

	if ev.Permanent && s.suppressor != nil {
		if _, err := s.suppressor.Suppress(ctx, suppression.SuppressInput{
			Email:      email,
			Reason:     domain.ReasonHardBounce,
			Source:     domain.SourceESPWebhook,
			CampaignID: ev.CampaignID,
		}); err != nil {
			errs = append(errs, fmt.Errorf("suppress: %w", err))
		}
	}
	if len(errs) > 0 {
		return &TrackingWriteError{Op: "bounce", CampaignID: ev.CampaignID, Err: errors.Join(errs...)}
	}
	return nil
}

// RecordConversion attributes revenue to a recipient of a campaign.
func (s *Service) RecordConversion(ctx context.Context, ev ConversionEvent) error {
	at := s.at(ev.At)
	email := domain.NormalizeEmail(ev.Email)
	var delta domain.CampaignCounters

	_, err := s.repo.Upsert(ctx, ev.CampaignID, email, trackedSeed(ev.CampaignID, email, at), func(r *domain.EngagementRecord, created bool) error {
		delta = createdDelta(created, r)
		r.Converted = true
		r.ConversionCount++
		r.Revenue += ev.Revenue
		if r.ConvertedAt == nil {
			r.ConvertedAt = &at
		}
		return nil
	})
	if err != nil {
		return &TrackingWriteError{Op: "conversion", CampaignID: ev.CampaignID, Err: err}
	}
	return s.apply(ctx, "conversion", ev.CampaignID, delta)
}

// Snapshot persists a resolved audience as pending records so a resumed
// send works from the same list. Test records of recipients in the audience
// are turned into pending real records; other existing records are left as
// they are.
func (s *Service) Snapshot(ctx context.Context, campaignID string, recipients []domain.ResolvedRecipient) (int, error) {
	now := s.now().UTC()
	records := make([]domain.EngagementRecord, 0, len(recipients))
	for _, r := range recipients {
		records = append(records, domain.EngagementRecord{
			CampaignID: campaignID,
			Email:      domain.NormalizeEmail(r.Email),
			UserID:     r.UserID,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			Variables:  r.Variables,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	n, err := s.repo.InsertPending(ctx, campaignID, records)
	if err != nil {
		return 0, fmt.Errorf("snapshot recipients: %w", err)
	}
	return n, nil
}

// Pending returns the snapshot recipients not yet sent.
func (s *Service) Pending(ctx context.Context, campaignID string) ([]domain.ResolvedRecipient, error) {
	records, err := s.repo.ListPending(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load pending recipients: %w", err)
	}
	out := make([]domain.ResolvedRecipient, 0, len(records))
	for i := range records {
		out = append(out, records[i].Recipient())
	}
	return out, nil
}

// Ledger projects a campaign's non-test records onto the recipient ledger.
func (s *Service) Ledger(ctx context.Context, campaignID string) ([]domain.RecipientProgress, error) {
	records, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RecipientProgress, 0, len(records))
	for i := range records {
		if records[i].IsTestEmail {
			continue
		}
		out = append(out, records[i].Progress())
	}
	return out, nil
}

// Records returns all records of a campaign, test records included.
func (s *Service) Records(ctx context.Context, campaignID string) ([]domain.EngagementRecord, error) {
	return s.repo.ListByCampaign(ctx, campaignID)
}

// Window returns records created in [from, to).
func (s *Service) Window(ctx context.Context, from, to time.Time) ([]domain.EngagementRecord, error) {
	return s.repo.ListWindow(ctx, from, to)
}

// Purge deletes every record of a campaign.
func (s *Service) Purge(ctx context.Context, campaignID string) (int, error) {
	return s.repo.DeleteByCampaign(ctx, campaignID)
}

func (s *Service) apply(ctx context.Context, op, campaignID string, delta domain.CampaignCounters) error {
	if err := s.increment(ctx, campaignID, delta); err != nil {
		return &TrackingWriteError{Op: op, CampaignID: campaignID, Err: fmt.Errorf("aggregate: %w", err)}
	}
	return nil
}

func (s *Service) increment(ctx context.Context, campaignID string, delta domain.CampaignCounters) error {
	if delta.IsZero() || s.counters == nil {
		return nil
	}
	return s.counters.IncrementCounters(ctx, campaignID, delta)
}

// DeviceType classifies a user agent as mobile, tablet or desktop.
func DeviceType(ua string) string {
	l := strings.ToLower(ua)
	switch {
	case l == "":
		return ""
	case strings.Contains(l, "ipad") || strings.Contains(l, "tablet"):
		return "tablet"
	case strings.Contains(l, "mobile") || strings.Contains(l, "iphone") || strings.Contains(l, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}
