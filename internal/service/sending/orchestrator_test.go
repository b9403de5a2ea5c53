package sending_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/distlock"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/analytics"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/sending"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
)

const trackingBase = "https://t.example.com"

type harness struct {
	campaigns *campaignStore
	engRepo   *engagementRepo
	eng       *engagement.Service
	transport *recordingTransport
	orch      *sending.Orchestrator
}

func newHarness(resolver sending.RecipientResolver, locks sending.LockFactory, cs ...domain.Campaign) *harness {
	return newHarnessWithConfig(resolver, locks, sending.Config{BatchSize: 50, Concurrency: 8, BaseURL: trackingBase}, cs...)
}

func newHarnessWithConfig(resolver sending.RecipientResolver, locks sending.LockFactory, cfg sending.Config, cs ...domain.Campaign) *harness {
	if locks == nil {
		locks = newMemLocks()
	}
	campaigns := newCampaignStore(cs...)
	h := &harness{
		campaigns: campaigns,
		engRepo:   newEngagementRepo(campaigns),
		transport: &recordingTransport{fail: map[string]bool{}, hang: map[string]bool{}},
	}
	supp := suppression.NewService(newSuppressionRepo(), nil)
	h.eng = engagement.NewService(h.engRepo, h.campaigns, supp, nil)
	h.orch = sending.NewOrchestrator(sending.Deps{
		Campaigns:   h.campaigns,
		Resolver:    resolver,
		Suppression: supp,
		Engagement:  h.eng,
		Transport:   h.transport,
		Locks:       locks,
		Reconciler:  analytics.NewAggregator(h.eng, h.campaigns),
	}, cfg)
	return h
}

func draft(id string) domain.Campaign {
	return domain.Campaign{
		ID:          id,
		Name:        "Spring launch",
		Subject:     "Hello {{ first_name }}",
		HTMLContent: `<html><body><p>Hi {{ first_name }}, use {{ promo_code }}</p><a href="https://example.com/offer">Offer</a></body></html>`,
		FromEmail:   "news@example.com",
		FromName:    "News",
		Category:    domain.CategoryMarketing,
		Filter:      &domain.RecipientFilterSpec{Statuses: []string{"active"}},
		Status:      domain.CampaignDraft,
	}
}

func audience(n int) []domain.ResolvedRecipient {
	out := make([]domain.ResolvedRecipient, n)
	for i := range out {
		out[i] = domain.ResolvedRecipient{
			Email:     fmt.Sprintf("user%03d@example.com", i),
			FirstName: "user",
			Source:    domain.SourceUser,
		}
	}
	return out
}

func TestSend_PartialFailuresCompleteAsSent(t *testing.T) {
	defer goleak.VerifyNone(t)

	aud := audience(120)
	h := newHarness(&staticResolver{recipients: aud}, nil, draft("c1"))
	for i, r := range aud {
		if i%10 == 0 {
			h.transport.fail[r.Email] = true
		}
	}

	res, err := h.orch.Send(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, 120, res.Sent+res.Failed)
	assert.Equal(t, 108, res.Sent)
	assert.Equal(t, 12, res.Failed)
	assert.Equal(t, 3, res.Batches)
	assert.False(t, res.Resumed)

	c := h.campaigns.get("c1")
	assert.Equal(t, domain.CampaignSent, c.Status)
	assert.Equal(t, 108, c.Counters.Sent)
	assert.Equal(t, 108, c.Counters.Delivered)
	assert.Equal(t, 12, c.FailedCount)
	assert.Equal(t, 3, h.campaigns.increments, "counters persist once per batch")

	pending, err := h.eng.Pending(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, pending, 12, "failed recipients stay pending")
}

func TestSend_PersonalizesAndInstruments(t *testing.T) {
	h := newHarness(&staticResolver{recipients: []domain.ResolvedRecipient{{Email: "Ada@Example.com", FirstName: "ada"}}}, nil, draft("c1"))

	_, err := h.orch.Send(context.Background(), "c1")
	require.NoError(t, err)

	require.Len(t, h.transport.messages, 1)
	msg := h.transport.messages[0]
	assert.Equal(t, "ada@example.com", msg.Email)
	assert.Equal(t, "Hello ada", msg.Subject)
	assert.Contains(t, msg.HTMLContent, "Hi ada, use {{ promo_code }}")
	assert.Contains(t, msg.HTMLContent, trackingBase+"/tracking/open/c1/ada@example.com.png")
	assert.Contains(t, msg.HTMLContent, "/tracking/click/c1/ada@example.com?url=https%3A%2F%2Fexample.com%2Foffer")
	assert.NotContains(t, msg.HTMLContent, `href="https://example.com/offer"`)
	assert.Equal(t, "<"+trackingBase+"/tracking/unsubscribe/c1/ada@example.com>", msg.Headers["List-Unsubscribe"])
	assert.Equal(t, "List-Unsubscribe=One-Click", msg.Headers["List-Unsubscribe-Post"])
}

func TestSend_ResumeSkipsSentRecipients(t *testing.T) {
	ctx := context.Background()
	aud := audience(5)
	c := draft("c1")
	c.Status = domain.CampaignSending
	h := newHarness(&staticResolver{recipients: aud}, nil, c)

	_, err := h.eng.Snapshot(ctx, "c1", aud)
	require.NoError(t, err)
	for _, r := range aud[:2] {
		// Sent before the crash; the batch counters never made it.
		_, err := h.eng.RecordSend(ctx, engagement.SendEvent{CampaignID: "c1", Recipient: r, MessageID: "m"})
		require.NoError(t, err)
	}

	res, err := h.orch.Send(ctx, "c1")
	require.NoError(t, err)

	assert.True(t, res.Resumed)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, []string{aud[2].Email, aud[3].Email, aud[4].Email}, h.transport.sentTo())

	got := h.campaigns.get("c1")
	assert.Equal(t, domain.CampaignSent, got.Status)
	assert.Equal(t, 5, got.Counters.Sent)
	assert.Equal(t, 5, got.Counters.Delivered)
}

func TestSend_ResumeWithoutSnapshotResolvesAgain(t *testing.T) {
	aud := audience(5)
	c := draft("c1")
	c.Status = domain.CampaignSending // died right after the transition
	h := newHarness(&staticResolver{recipients: aud}, nil, c)

	res, err := h.orch.Send(context.Background(), "c1")
	require.NoError(t, err)

	assert.True(t, res.Resumed)
	assert.Equal(t, 5, res.Sent)
	assert.Len(t, h.transport.sentTo(), 5)

	got := h.campaigns.get("c1")
	assert.Equal(t, domain.CampaignSent, got.Status)
	assert.Equal(t, 5, got.Counters.Sent)
	assert.NotNil(t, got.SnapshotAt)
}

func TestSend_ResumeReachesEarlierTestRecipients(t *testing.T) {
	ctx := context.Background()
	aud := audience(3)
	h := newHarness(&staticResolver{recipients: aud}, nil, draft("c1"))

	_, err := h.orch.SendTest(ctx, "c1", []string{aud[1].Email})
	require.NoError(t, err)

	// Crash after the snapshot, before any batch ran.
	require.NoError(t, h.campaigns.StartSending(ctx, "c1"))
	_, err = h.eng.Snapshot(ctx, "c1", aud)
	require.NoError(t, err)

	pending, err := h.eng.Pending(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, pending, 3)

	res, err := h.orch.Send(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Equal(t, 3, res.Sent)

	var real []string
	for _, m := range h.transport.messages {
		if !m.IsTest {
			real = append(real, m.Email)
		}
	}
	assert.ElementsMatch(t, []string{aud[0].Email, aud[1].Email, aud[2].Email}, real)

	records, err := h.eng.Records(ctx, "c1")
	require.NoError(t, err)
	for _, r := range records {
		assert.False(t, r.IsTestEmail, r.Email)
		assert.True(t, r.Sent, r.Email)
	}
	assert.Equal(t, 3, h.campaigns.get("c1").Counters.Sent)
}

func TestSend_TimedOutCallsCountAsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	aud := audience(10)
	h := newHarnessWithConfig(&staticResolver{recipients: aud}, nil,
		sending.Config{BatchSize: 50, Concurrency: 4, Timeout: 50 * time.Millisecond, BaseURL: trackingBase}, draft("c1"))
	h.transport.hang[aud[0].Email] = true
	h.transport.hang[aud[5].Email] = true

	start := time.Now()
	res, err := h.orch.Send(context.Background(), "c1")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 8, res.Sent)
	assert.Equal(t, 2, res.Failed)

	c := h.campaigns.get("c1")
	assert.Equal(t, domain.CampaignSent, c.Status)
	assert.Equal(t, 2, c.FailedCount)
	assert.Equal(t, 8, c.Counters.Sent)
}

func TestSend_StopsWhenLockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locks := distlock.NewFactory(client, nil, "test", time.Minute)

	aud := audience(120)
	h := newHarness(&staticResolver{recipients: aud}, locks, draft("c1"))
	var once sync.Once
	h.transport.onSend = func(domain.EmailMessage) {
		once.Do(func() { mr.FastForward(2 * time.Minute) })
	}

	res, err := h.orch.Send(context.Background(), "c1")
	require.ErrorIs(t, err, distlock.ErrLockLost)
	assert.Equal(t, 50, res.Sent)
	assert.Equal(t, domain.CampaignSending, h.campaigns.get("c1").Status)

	h.transport.onSend = nil
	res, err = h.orch.Send(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Equal(t, 70, res.Sent)
	assert.Equal(t, domain.CampaignSent, h.campaigns.get("c1").Status)
}

func TestSend_RenewsLockOnLongSends(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locks := distlock.NewFactory(client, nil, "test", time.Minute)

	aud := audience(120)
	h := newHarness(&staticResolver{recipients: aud}, locks, draft("c1"))
	// Each batch eats most of the TTL; only renewal keeps the lock alive.
	var mu sync.Mutex
	seen := map[string]bool{}
	h.transport.onSend = func(m domain.EmailMessage) {
		mu.Lock()
		defer mu.Unlock()
		n := len(seen)
		seen[m.Email] = true
		if n%50 == 0 && len(seen) > n {
			mr.FastForward(45 * time.Second)
		}
	}

	res, err := h.orch.Send(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 120, res.Sent)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, domain.CampaignSent, h.campaigns.get("c1").Status)
}

func TestSend_CancelLeavesCampaignResumable(t *testing.T) {
	aud := audience(120)
	h := newHarness(&staticResolver{recipients: aud}, nil, draft("c1"))

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	h.transport.onSend = func(domain.EmailMessage) { once.Do(cancel) }

	res, err := h.orch.Send(ctx, "c1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.CampaignSending, h.campaigns.get("c1").Status)
	firstRun := res.Sent
	assert.Equal(t, 50, firstRun, "the in-flight batch finishes")

	h.transport.onSend = nil
	res, err = h.orch.Send(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Equal(t, 120-firstRun, res.Sent)
	assert.Len(t, h.transport.sentTo(), 120)
	assert.Equal(t, domain.CampaignSent, h.campaigns.get("c1").Status)
	assert.Equal(t, 120, h.campaigns.get("c1").Counters.Sent)
}

func TestSend_UnsubscribeSuppressesLaterCampaign(t *testing.T) {
	ctx := context.Background()
	aud := []domain.ResolvedRecipient{{Email: "a@x.com"}, {Email: "b@x.com"}, {Email: "c@x.com"}}
	h := newHarness(&staticResolver{recipients: aud}, nil, draft("c1"), draft("c2"))

	_, err := h.orch.Send(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, h.eng.RecordUnsubscribe(ctx, engagement.UnsubscribeEvent{CampaignID: "c1", Email: "A@x.com"}))

	res, err := h.orch.Send(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Suppressed)
	assert.Equal(t, 2, res.Sent)

	var second []string
	for _, m := range h.transport.messages {
		if m.CampaignID == "c2" {
			second = append(second, m.Email)
		}
	}
	assert.ElementsMatch(t, []string{"b@x.com", "c@x.com"}, second)
	assert.Equal(t, 1, h.campaigns.get("c1").Counters.Unsubscribed)
}

func TestSend_ResolverErrorFailsCampaign(t *testing.T) {
	resolveErr := &recipient.ResolutionError{Source: "users", Err: errors.New("connection refused")}
	h := newHarness(&staticResolver{err: resolveErr}, nil, draft("c1"))

	_, err := h.orch.Send(context.Background(), "c1")

	require.ErrorIs(t, err, recipient.ErrResolution)
	c := h.campaigns.get("c1")
	assert.Equal(t, domain.CampaignFailed, c.Status)
	assert.Contains(t, c.ErrorMessage, "connection refused")
	assert.Empty(t, h.transport.messages)
}

func TestSend_EmptyResolutionFailsCampaign(t *testing.T) {
	h := newHarness(&staticResolver{}, nil, draft("c1"))

	_, err := h.orch.Send(context.Background(), "c1")

	require.ErrorIs(t, err, campaign.ErrNoRecipients)
	assert.Equal(t, domain.CampaignFailed, h.campaigns.get("c1").Status)
}

func TestSend_FullySuppressedAudienceCompletes(t *testing.T) {
	ctx := context.Background()
	aud := []domain.ResolvedRecipient{{Email: "a@x.com"}}
	h := newHarness(&staticResolver{recipients: aud}, nil, draft("c1"), draft("c2"))
	require.NoError(t, h.eng.RecordUnsubscribe(ctx, engagement.UnsubscribeEvent{CampaignID: "c1", Email: "a@x.com"}))

	res, err := h.orch.Send(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 1, res.Suppressed)
	assert.Equal(t, 0, res.Batches)
	assert.Equal(t, domain.CampaignSent, h.campaigns.get("c2").Status)
}

func TestSend_RejectsIllegalStarts(t *testing.T) {
	sent := draft("sent")
	sent.Status = domain.CampaignSent
	empty := draft("empty")
	empty.HTMLContent = ""
	noAudience := draft("noaud")
	noAudience.Filter = nil

	h := newHarness(&staticResolver{recipients: audience(1)}, nil, sent, empty, noAudience)
	ctx := context.Background()

	_, err := h.orch.Send(ctx, "sent")
	var conflict *campaign.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.CampaignSent, conflict.Status)

	_, err = h.orch.Send(ctx, "empty")
	assert.ErrorIs(t, err, campaign.ErrNoContent)
	assert.Equal(t, domain.CampaignDraft, h.campaigns.get("empty").Status)

	_, err = h.orch.Send(ctx, "noaud")
	assert.ErrorIs(t, err, campaign.ErrNoRecipients)
	assert.Equal(t, domain.CampaignDraft, h.campaigns.get("noaud").Status)

	_, err = h.orch.Send(ctx, "missing")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
	assert.Empty(t, h.transport.messages)
}

func TestSend_LockContention(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locks := distlock.NewFactory(client, nil, "test", time.Minute)

	h := newHarness(&staticResolver{recipients: audience(3)}, locks, draft("c1"))
	ctx := context.Background()

	holder := locks.For(sending.LockKey("c1"))
	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.orch.Send(ctx, "c1")
	require.ErrorIs(t, err, sending.ErrSendInProgress)
	assert.Equal(t, domain.CampaignDraft, h.campaigns.get("c1").Status)

	require.NoError(t, holder.Release(ctx))
	res, err := h.orch.Send(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
}

func TestSendTest_LeavesCampaignUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(&staticResolver{}, nil, draft("c1"))

	res, err := h.orch.SendTest(ctx, "c1", []string{"QA@x.com", "not-an-email", "qa@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	require.Len(t, h.transport.messages, 1)
	msg := h.transport.messages[0]
	assert.True(t, strings.HasPrefix(msg.Subject, "[TEST] "))
	assert.True(t, msg.IsTest)

	c := h.campaigns.get("c1")
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.True(t, c.Counters.IsZero())

	records, err := h.eng.Records(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsTestEmail)

	_, err = h.orch.SendTest(ctx, "c1", []string{"nope"})
	assert.ErrorIs(t, err, campaign.ErrInvalidInput)
}
