package sending_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/distlock"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
)

// campaignStore is an in-memory CampaignLifecycle that enforces the state
// machine and doubles as the engagement CounterStore.
type campaignStore struct {
	mu         sync.Mutex
	campaigns  map[string]*domain.Campaign
	increments int
}

func newCampaignStore(cs ...domain.Campaign) *campaignStore {
	s := &campaignStore{campaigns: map[string]*domain.Campaign{}}
	for i := range cs {
		c := cs[i]
		s.campaigns[c.ID] = &c
	}
	return s
}

func (s *campaignStore) get(id string) domain.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.campaigns[id]
}

func (s *campaignStore) Load(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *campaignStore) move(id string, a campaign.Action) (*domain.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	next, err := campaign.Next(id, c.Status, a)
	if err != nil {
		return nil, err
	}
	c.Status = next
	return c, nil
}

func (s *campaignStore) StartSending(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.move(id, campaign.ActionStart)
	return err
}

func (s *campaignStore) Complete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.move(id, campaign.ActionComplete)
	return err
}

func (s *campaignStore) Fail(_ context.Context, id string, reason error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.move(id, campaign.ActionFail)
	if err != nil {
		return err
	}
	c.ErrorMessage = reason.Error()
	return nil
}

func (s *campaignStore) markSnapshot(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok {
		c.SnapshotAt = &at
	}
}

func (s *campaignStore) IncrementCounters(_ context.Context, id string, delta domain.CampaignCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increments++
	s.campaigns[id].Counters = s.campaigns[id].Counters.Add(delta)
	return nil
}

func (s *campaignStore) SetCounters(_ context.Context, id string, counters domain.CampaignCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[id].Counters = counters
	return nil
}

func (s *campaignStore) AddFailed(_ context.Context, id string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[id].FailedCount += n
	return nil
}

// engagementRepo is an in-memory engagement.Repository. Snapshots stamp
// the campaign in campaigns, as the Postgres transaction does.
type engagementRepo struct {
	mu        sync.Mutex
	records   map[string]*domain.EngagementRecord
	campaigns *campaignStore
}

func newEngagementRepo(campaigns *campaignStore) *engagementRepo {
	return &engagementRepo{records: map[string]*domain.EngagementRecord{}, campaigns: campaigns}
}

func rkey(cid, email string) string { return cid + "|" + email }

func (m *engagementRepo) Upsert(_ context.Context, cid, email string, seed domain.EngagementRecord, fn engagement.MutateFunc) (*domain.EngagementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[rkey(cid, email)]
	if !ok {
		cur = &seed
	}
	work := *cur
	if err := fn(&work, !ok); err != nil {
		return nil, err
	}
	m.records[rkey(cid, email)] = &work
	out := work
	return &out, nil
}

func (m *engagementRepo) InsertPending(_ context.Context, cid string, records []domain.EngagementRecord) (int, error) {
	m.mu.Lock()
	n := 0
	for i := range records {
		r := records[i]
		r.CampaignID = cid
		k := rkey(cid, r.Email)
		if cur, ok := m.records[k]; ok {
			if !cur.IsTestEmail {
				continue
			}
			r.CreatedAt = cur.CreatedAt
		}
		m.records[k] = &r
		n++
	}
	m.mu.Unlock()
	m.campaigns.markSnapshot(cid, time.Now().UTC())
	return n, nil
}

func (m *engagementRepo) list(cid string, keep func(*domain.EngagementRecord) bool) []domain.EngagementRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EngagementRecord
	for _, r := range m.records {
		if r.CampaignID == cid && keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (m *engagementRepo) ListPending(_ context.Context, cid string) ([]domain.EngagementRecord, error) {
	return m.list(cid, func(r *domain.EngagementRecord) bool { return !r.Sent && !r.IsTestEmail }), nil
}

func (m *engagementRepo) ListByCampaign(_ context.Context, cid string) ([]domain.EngagementRecord, error) {
	return m.list(cid, func(*domain.EngagementRecord) bool { return true }), nil
}

func (m *engagementRepo) ListWindow(context.Context, time.Time, time.Time) ([]domain.EngagementRecord, error) {
	return nil, nil
}

func (m *engagementRepo) DeleteByCampaign(context.Context, string) (int, error) { return 0, nil }

// suppressionRepo is an in-memory suppression.Repository.
type suppressionRepo struct {
	mu    sync.Mutex
	store map[string]*domain.UnsubscribedEmail
}

func newSuppressionRepo() *suppressionRepo {
	return &suppressionRepo{store: map[string]*domain.UnsubscribedEmail{}}
}

func (m *suppressionRepo) Upsert(_ context.Context, e *domain.UnsubscribedEmail) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.store[e.Email]; ok && cur.IsActive {
		return false, nil
	}
	cp := *e
	m.store[e.Email] = &cp
	return true, nil
}

func (m *suppressionRepo) Get(_ context.Context, email string) (*domain.UnsubscribedEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[email]
	if !ok {
		return nil, suppression.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *suppressionRepo) ActiveAmong(_ context.Context, emails []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, e := range emails {
		if s, ok := m.store[e]; ok && s.IsActive {
			out[e] = true
		}
	}
	return out, nil
}

func (m *suppressionRepo) Deactivate(context.Context, string, time.Time) error { return nil }

func (m *suppressionRepo) List(context.Context, suppression.ListFilter) ([]domain.UnsubscribedEmail, int, error) {
	return nil, 0, nil
}

// staticResolver returns a fixed audience.
type staticResolver struct {
	recipients []domain.ResolvedRecipient
	err        error
}

func (r *staticResolver) Resolve(_ context.Context, _ domain.RecipientFilterSpec, _ []string, opts recipient.ResolveOptions) (*recipient.Resolution, error) {
	if r.err != nil {
		return nil, r.err
	}
	res := &recipient.Resolution{TotalCount: len(r.recipients)}
	if !opts.CountOnly {
		res.Recipients = append([]domain.ResolvedRecipient(nil), r.recipients...)
	}
	return res, nil
}

// recordingTransport accepts every message except those addressed to fail.
// Messages addressed to hang block until the call's context ends.
type recordingTransport struct {
	mu       sync.Mutex
	fail     map[string]bool
	hang     map[string]bool
	messages []domain.EmailMessage
	onSend   func(domain.EmailMessage)
}

func (t *recordingTransport) Send(ctx context.Context, msg domain.EmailMessage) (string, error) {
	if t.onSend != nil {
		t.onSend(msg)
	}
	if t.hang[msg.Email] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[msg.Email] {
		return "", errors.New("mailbox unavailable")
	}
	t.messages = append(t.messages, msg)
	return "msg-" + msg.Email, nil
}

func (t *recordingTransport) sentTo() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.messages))
	for _, m := range t.messages {
		out = append(out, m.Email)
	}
	sort.Strings(out)
	return out
}

// memLocks is a process-local LockFactory.
type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks { return &memLocks{held: map[string]bool{}} }

func (f *memLocks) For(key string) distlock.DistLock { return &memLock{f: f, key: key} }

type memLock struct {
	f   *memLocks
	key string
}

func (l *memLock) Acquire(context.Context) (bool, error) {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	if l.f.held[l.key] {
		return false, nil
	}
	l.f.held[l.key] = true
	return true, nil
}

func (l *memLock) Release(context.Context) error {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	delete(l.f.held, l.key)
	return nil
}
