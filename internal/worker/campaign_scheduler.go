// Package worker runs the background loops of the campaign engine: due
// scheduled sends and resumption of sends abandoned by a crashed process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/sending"
)

const (
	DefaultSchedulerPollInterval = 30 * time.Second

	// DefaultStaleAfter is how long a sending campaign may go without a
	// counter update before another worker resumes it.
	DefaultStaleAfter = 15 * time.Minute

	// pollBatch caps how many campaigns one tick picks up.
	pollBatch = 10
)

// CampaignSource lists campaigns that need the scheduler's attention.
type CampaignSource interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error)
	ListStaleSending(ctx context.Context, staleAfter time.Duration, limit int) ([]domain.Campaign, error)
}

// Sender starts or resumes a campaign send.
type Sender interface {
	Send(ctx context.Context, campaignID string) (*domain.SendResult, error)
}

// SchedulerConfig tunes the scheduler. Zero values take the defaults.
type SchedulerConfig struct {
	PollInterval time.Duration
	StaleAfter   time.Duration
	// Concurrency caps how many campaigns send at once from one tick.
	Concurrency int
}

// SchedulerStats are cumulative counters since Start.
type SchedulerStats struct {
	Ticks     int64 `json:"ticks"`
	Started   int64 `json:"started"`
	Resumed   int64 `json:"resumed"`
	Contended int64 `json:"contended"`
	Errors    int64 `json:"errors"`
}

// CampaignScheduler polls for due scheduled campaigns and stale sends and
// hands them to the sender. The sender's distributed lock keeps two workers
// from sending the same campaign.
type CampaignScheduler struct {
	campaigns CampaignSource
	sender    Sender
	cfg       SchedulerConfig
	workerID  string
	now       func() time.Time

	ticks     int64
	started   int64
	resumed   int64
	contended int64
	errors    int64

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewCampaignScheduler creates a scheduler.
func NewCampaignScheduler(campaigns CampaignSource, sender Sender, cfg SchedulerConfig) *CampaignScheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultSchedulerPollInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &CampaignScheduler{
		campaigns: campaigns,
		sender:    sender,
		cfg:       cfg,
		workerID:  fmt.Sprintf("scheduler-%s-%d", getHostname(), time.Now().UnixNano()%10000),
		now:       time.Now,
	}
}

// Start begins the polling loop. Sends in flight are cancelled by Stop.
func (cs *CampaignScheduler) Start(ctx context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.running {
		return fmt.Errorf("scheduler already running")
	}
	cs.running = true

	ctx, cs.cancel = context.WithCancel(ctx)
	logger.Info("[CampaignScheduler] starting", "worker_id", cs.workerID, "poll_interval", cs.cfg.PollInterval.String())

	cs.wg.Add(1)
	go cs.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for in-flight sends to return.
func (cs *CampaignScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	cs.mu.Unlock()

	cs.cancel()
	cs.wg.Wait()
	s := cs.Stats()
	logger.Info("[CampaignScheduler] stopped", "worker_id", cs.workerID, "started", s.Started, "resumed", s.Resumed, "errors", s.Errors)
}

// Stats returns a snapshot of the scheduler counters.
func (cs *CampaignScheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Ticks:     atomic.LoadInt64(&cs.ticks),
		Started:   atomic.LoadInt64(&cs.started),
		Resumed:   atomic.LoadInt64(&cs.resumed),
		Contended: atomic.LoadInt64(&cs.contended),
		Errors:    atomic.LoadInt64(&cs.errors),
	}
}

func (cs *CampaignScheduler) loop(ctx context.Context) {
	defer cs.wg.Done()

	ticker := time.NewTicker(cs.cfg.PollInterval)
	defer ticker.Stop()

	cs.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.Tick(ctx)
		}
	}
}

// Tick runs one poll: due scheduled campaigns first, then stale sends. It
// returns once every send it started has returned.
func (cs *CampaignScheduler) Tick(ctx context.Context) {
	atomic.AddInt64(&cs.ticks, 1)

	due, err := cs.campaigns.ListDue(ctx, cs.now(), pollBatch)
	if err != nil {
		atomic.AddInt64(&cs.errors, 1)
		logger.Error("[CampaignScheduler] list due campaigns failed", "error", err)
	}
	stale, err := cs.campaigns.ListStaleSending(ctx, cs.cfg.StaleAfter, pollBatch)
	if err != nil {
		atomic.AddInt64(&cs.errors, 1)
		logger.Error("[CampaignScheduler] list stale sends failed", "error", err)
	}
	if len(due)+len(stale) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cs.cfg.Concurrency)
	for _, c := range due {
		id := c.ID
		g.Go(func() error {
			if cs.send(gctx, id, "scheduled") {
				atomic.AddInt64(&cs.started, 1)
			}
			return nil
		})
	}
	for _, c := range stale {
		id := c.ID
		g.Go(func() error {
			if cs.send(gctx, id, "stale") {
				atomic.AddInt64(&cs.resumed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// send reports whether the send ran to completion.
func (cs *CampaignScheduler) send(ctx context.Context, id, reason string) bool {
	logger.Info("[CampaignScheduler] sending campaign", "campaign_id", id, "reason", reason)
	result, err := cs.sender.Send(ctx, id)
	switch {
	case errors.Is(err, sending.ErrSendInProgress):
		atomic.AddInt64(&cs.contended, 1)
		logger.Debug("[CampaignScheduler] campaign held by another worker", "campaign_id", id)
		return false
	case err != nil:
		atomic.AddInt64(&cs.errors, 1)
		logger.Error("[CampaignScheduler] send failed", "campaign_id", id, "reason", reason, "error", err)
		return false
	}
	logger.Info("[CampaignScheduler] campaign sent", "campaign_id", id, "sent", result.Sent, "failed", result.Failed, "resumed", result.Resumed)
	return true
}

func getHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "worker"
	}
	return h
}
