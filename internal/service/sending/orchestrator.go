package sending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/distlock"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/tracking"
)

// Config tunes a send run.
type Config struct {
	BatchSize     int
	Concurrency   int
	RatePerSecond float64       // 0 disables rate limiting
	Timeout       time.Duration // per transport call
	BaseURL       string        // public tracking base URL
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Deps are the collaborators of an Orchestrator. Templates, Reconciler and
// Segments are optional.
type Deps struct {
	Campaigns   CampaignLifecycle
	Resolver    RecipientResolver
	Suppression SuppressionChecker
	Engagement  EngagementRecorder
	Transport   Transport
	Locks       LockFactory
	Templates   TemplateSource
	Reconciler  Reconciler
	Segments    SegmentUsage
}

// Orchestrator sends campaigns.
type Orchestrator struct {
	Deps
	cfg          Config
	limiter      *rate.Limiter
	personalizer *Personalizer
	now          func() time.Time
}

// NewOrchestrator creates an orchestrator. The rate limiter is shared by all
// sends of this process.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		Deps:         deps,
		cfg:          cfg,
		personalizer: NewPersonalizer(),
		now:          time.Now,
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return o
}

// LockKey is the distributed lock key of a campaign's send.
func LockKey(campaignID string) string {
	return "campaign-send:" + campaignID
}

// Send delivers a campaign. A draft or scheduled campaign starts a fresh
// run; a campaign already sending is resumed from its snapshot. Per-recipient
// transport failures are counted, not returned.
func (o *Orchestrator) Send(ctx context.Context, campaignID string) (*domain.SendResult, error) {
	var result *domain.SendResult
	lock := o.Locks.For(LockKey(campaignID))
	err := distlock.Run(ctx, lock, func(ctx context.Context) error {
		var err error
		result, err = o.send(ctx, campaignID, lock)
		return err
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrSendInProgress)
	}
	return result, err
}

func (o *Orchestrator) send(ctx context.Context, campaignID string, lock distlock.DistLock) (*domain.SendResult, error) {
	c, err := o.Campaigns.Load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	result := &domain.SendResult{CampaignID: campaignID, StartedAt: o.now().UTC()}

	var content string
	switch c.Status {
	case domain.CampaignDraft, domain.CampaignScheduled:
		if content, err = o.prepare(ctx, c); err != nil {
			return nil, err
		}
		if err := o.Campaigns.StartSending(ctx, campaignID); err != nil {
			return nil, err
		}
		logger.Info("[SendOrchestrator] send started", "campaign_id", campaignID, "status_from", string(c.Status))
	case domain.CampaignSending:
		result.Resumed = true
		if content, err = o.content(ctx, c); err != nil {
			return nil, err
		}
		logger.Info("[SendOrchestrator] resuming send", "campaign_id", campaignID)
	default:
		return nil, &campaign.StateConflictError{CampaignID: campaignID, Status: c.Status, Action: campaign.ActionStart}
	}

	var audience []domain.ResolvedRecipient
	switch {
	case result.Resumed && c.SnapshotAt != nil:
		audience, err = o.resumeAudience(ctx, c, result)
	case result.Resumed:
		// Interrupted between the transition and the snapshot.
		logger.Warn("[SendOrchestrator] no recipient snapshot, resolving again", "campaign_id", campaignID)
		audience, err = o.freshAudience(ctx, c, result)
	default:
		audience, err = o.freshAudience(ctx, c, result)
	}
	if err != nil {
		return result, err
	}

	if err := o.dispatch(ctx, c, content, audience, lock, result); err != nil {
		return result, err
	}

	if err := o.Campaigns.Complete(ctx, campaignID); err != nil {
		return result, err
	}
	result.FinishedAt = o.now().UTC()
	logger.Info("[SendOrchestrator] send completed",
		"campaign_id", campaignID,
		"sent", result.Sent,
		"failed", result.Failed,
		"suppressed", result.Suppressed,
		"batches", result.Batches,
		"resumed", result.Resumed,
	)
	return result, nil
}

// prepare validates a campaign before it leaves draft or scheduled. Nothing
// is written when it fails. Resolution happens after the transition so a
// resolver failure is recorded on the campaign.
func (o *Orchestrator) prepare(ctx context.Context, c *domain.Campaign) (string, error) {
	if !c.HasContent() {
		return "", fmt.Errorf("campaign %s: %w", c.ID, campaign.ErrNoContent)
	}
	if !c.HasAudience() {
		return "", fmt.Errorf("campaign %s: %w", c.ID, campaign.ErrNoRecipients)
	}
	return o.content(ctx, c)
}

func (o *Orchestrator) content(ctx context.Context, c *domain.Campaign) (string, error) {
	if strings.TrimSpace(c.HTMLContent) != "" {
		return c.HTMLContent, nil
	}
	if c.TemplateID == "" || o.Templates == nil {
		return "", fmt.Errorf("campaign %s: %w", c.ID, campaign.ErrNoContent)
	}
	html, err := o.Templates.HTML(ctx, c.TemplateID)
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", c.TemplateID, err)
	}
	if strings.TrimSpace(html) == "" {
		return "", fmt.Errorf("campaign %s: %w", c.ID, campaign.ErrNoContent)
	}
	return html, nil
}

// freshAudience resolves, filters and snapshots the audience. Any failure
// here moves the campaign to failed.
func (o *Orchestrator) freshAudience(ctx context.Context, c *domain.Campaign, result *domain.SendResult) ([]domain.ResolvedRecipient, error) {
	res, err := o.Resolver.Resolve(ctx, filterOf(c), c.Emails, recipient.ResolveOptions{})
	if err != nil {
		return nil, o.fail(ctx, c.ID, err)
	}
	if res.TotalCount == 0 {
		return nil, o.fail(ctx, c.ID, fmt.Errorf("campaign %s: %w", c.ID, campaign.ErrNoRecipients))
	}
	kept, removed, err := o.Suppression.Filter(ctx, res.Recipients, c.Category)
	if err != nil {
		return nil, o.fail(ctx, c.ID, err)
	}
	result.Suppressed = removed
	if _, err := o.Engagement.Snapshot(ctx, c.ID, kept); err != nil {
		return nil, o.fail(ctx, c.ID, err)
	}
	o.recordSegmentUsage(ctx, c)

	logger.Info("[SendOrchestrator] audience resolved",
		"campaign_id", c.ID,
		"resolved", res.TotalCount,
		"suppressed", removed,
		"to_send", len(kept),
	)
	return kept, nil
}

// resumeAudience reloads the unsent part of the snapshot. The campaign stays
// in sending on failure so the resume can be retried.
func (o *Orchestrator) resumeAudience(ctx context.Context, c *domain.Campaign, result *domain.SendResult) ([]domain.ResolvedRecipient, error) {
	if o.Reconciler != nil {
		if _, err := o.Reconciler.Reconcile(ctx, c.ID); err != nil {
			logger.Warn("[SendOrchestrator] counter reconcile failed", "campaign_id", c.ID, "error", err)
		}
	}
	pending, err := o.Engagement.Pending(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	kept, removed, err := o.Suppression.Filter(ctx, pending, c.Category)
	if err != nil {
		return nil, err
	}
	result.Suppressed = removed
	logger.Info("[SendOrchestrator] pending recipients reloaded", "campaign_id", c.ID, "pending", len(pending), "suppressed", removed)
	return kept, nil
}

func (o *Orchestrator) recordSegmentUsage(ctx context.Context, c *domain.Campaign) {
	if o.Segments == nil || c.Filter == nil || c.Filter.SegmentID == "" {
		return
	}
	if err := o.Segments.RecordUsage(ctx, c.Filter.SegmentID); err != nil {
		logger.Warn("[SendOrchestrator] segment usage not recorded", "segment_id", c.Filter.SegmentID, "error", err)
	}
}

// fail moves the campaign to failed and returns cause.
func (o *Orchestrator) fail(ctx context.Context, campaignID string, cause error) error {
	logger.Error("[SendOrchestrator] send failed", "campaign_id", campaignID, "error", cause)
	if err := o.Campaigns.Fail(context.WithoutCancel(ctx), campaignID, cause); err != nil {
		return errors.Join(cause, fmt.Errorf("mark failed: %w", err))
	}
	return cause
}

// dispatch sends the audience batch by batch. Cancellation of ctx is only
// observed between batches and leaves the campaign in sending. The send lock
// is renewed before every batch after the first; a lost lock stops the send
// and leaves the campaign to whoever holds it now.
func (o *Orchestrator) dispatch(ctx context.Context, c *domain.Campaign, content string, audience []domain.ResolvedRecipient, lock distlock.DistLock, result *domain.SendResult) error {
	for start := 0; start < len(audience); start += o.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			logger.Warn("[SendOrchestrator] send interrupted, campaign left resumable",
				"campaign_id", c.ID, "sent", result.Sent, "remaining", len(audience)-start)
			return err
		}
		if start > 0 {
			if err := distlock.Refresh(ctx, lock); err != nil {
				logger.Error("[SendOrchestrator] send lock lost, stopping",
					"campaign_id", c.ID, "sent", result.Sent, "remaining", len(audience)-start, "error", err)
				return fmt.Errorf("campaign %s: %w", c.ID, err)
			}
		}
		end := start + o.cfg.BatchSize
		if end > len(audience) {
			end = len(audience)
		}

		out := o.sendBatch(ctx, c, content, audience[start:end])
		result.Batches++
		result.Sent += out.sent
		result.Failed += out.failed

		// Batch boundary: persist before moving on.
		persistCtx := context.WithoutCancel(ctx)
		if err := o.Campaigns.IncrementCounters(persistCtx, c.ID, out.delta); err != nil {
			return fmt.Errorf("persist batch counters: %w", err)
		}
		if out.failed > 0 {
			if err := o.Campaigns.AddFailed(persistCtx, c.ID, out.failed); err != nil {
				return fmt.Errorf("persist batch failures: %w", err)
			}
		}
		logger.Debug("[SendOrchestrator] batch done",
			"campaign_id", c.ID, "batch", result.Batches, "sent", out.sent, "failed", out.failed)
	}
	return nil
}

type batchOutcome struct {
	sent   int
	failed int
	delta  domain.CampaignCounters
}

func (o *Orchestrator) sendBatch(ctx context.Context, c *domain.Campaign, content string, batch []domain.ResolvedRecipient) batchOutcome {
	var (
		mu  sync.Mutex
		out batchOutcome
		g   errgroup.Group
	)
	g.SetLimit(o.cfg.Concurrency)

	for _, r := range batch {
		g.Go(func() error {
			delta, err := o.deliver(ctx, c, content, r, false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				out.sent++
				out.delta = out.delta.Add(delta)
			case ctx.Err() != nil:
				// Not attempted; it stays pending for the resume.
			default:
				out.failed++
				logger.Warn("[SendOrchestrator] recipient failed", "campaign_id", c.ID, "email", r.Email, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// deliver renders and sends one message and records the send.
func (o *Orchestrator) deliver(ctx context.Context, c *domain.Campaign, content string, r domain.ResolvedRecipient, isTest bool) (domain.CampaignCounters, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return domain.CampaignCounters{}, err
		}
	}

	msg := o.compose(c, content, r, isTest)
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	messageID, err := o.Transport.Send(callCtx, msg)
	cancel()
	if err != nil {
		return domain.CampaignCounters{}, &TransportError{Email: r.Email, Err: err}
	}

	delta, err := o.Engagement.RecordSend(context.WithoutCancel(ctx), engagement.SendEvent{
		CampaignID: c.ID,
		Recipient:  r,
		MessageID:  messageID,
		IsTest:     isTest,
	})
	if err != nil {
		// The transport accepted the message; the record stays pending and
		// a resume may send it again.
		logger.Error("[SendOrchestrator] send not recorded", "campaign_id", c.ID, "email", r.Email, "error", err)
	}
	return delta, nil
}

func (o *Orchestrator) compose(c *domain.Campaign, content string, r domain.ResolvedRecipient, isTest bool) domain.EmailMessage {
	email := domain.NormalizeEmail(r.Email)
	vars := Variables(r)
	subject := o.personalizer.Render(c.Subject, vars)
	if isTest {
		subject = "[TEST] " + subject
	}
	body := tracking.Instrument(o.personalizer.Render(content, vars), c.ID, email, o.cfg.BaseURL)

	return domain.EmailMessage{
		CampaignID:  c.ID,
		Email:       email,
		FromName:    c.FromName,
		FromEmail:   c.FromEmail,
		ReplyTo:     c.ReplyTo,
		Subject:     subject,
		HTMLContent: body,
		Headers: map[string]string{
			"List-Unsubscribe":      "<" + tracking.UnsubscribeURL(o.cfg.BaseURL, c.ID, email) + ">",
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
			"X-Campaign-ID":         c.ID,
		},
		IsTest: isTest,
	}
}

// SendTest delivers instrumented content to test addresses. Their records
// are flagged as test records; campaign status and counters are untouched.
func (o *Orchestrator) SendTest(ctx context.Context, campaignID string, emails []string) (*domain.SendResult, error) {
	c, err := o.Campaigns.Load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.HasContent() {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, campaign.ErrNoContent)
	}
	content, err := o.content(ctx, c)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var targets []domain.ResolvedRecipient
	for _, e := range emails {
		e = domain.NormalizeEmail(e)
		if seen[e] || !recipient.ValidEmail(e) {
			continue
		}
		seen[e] = true
		targets = append(targets, domain.ResolvedRecipient{Email: e, Source: domain.SourceCustom})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no valid test addresses", campaign.ErrInvalidInput)
	}

	result := &domain.SendResult{CampaignID: campaignID, StartedAt: o.now().UTC(), Batches: 1}
	for _, r := range targets {
		if _, err := o.deliver(ctx, c, content, r, true); err != nil {
			result.Failed++
			logger.Warn("[SendOrchestrator] test send failed", "campaign_id", campaignID, "email", r.Email, "error", err)
			continue
		}
		result.Sent++
	}
	result.FinishedAt = o.now().UTC()
	logger.Info("[SendOrchestrator] test send done", "campaign_id", campaignID, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

func filterOf(c *domain.Campaign) domain.RecipientFilterSpec {
	if c.Filter == nil {
		return domain.RecipientFilterSpec{}
	}
	return *c.Filter
}
