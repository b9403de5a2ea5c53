package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

// Service implements campaign lifecycle logic on top of a Repository.
// All public methods are safe for concurrent use if the repository is.
type Service struct {
	repo   Repository
	ledger Ledger
	now    func() time.Time
}

// NewService creates a campaign service. ledger may be nil, in which case
// Get returns campaigns without recipients and Delete does not cascade.
func NewService(repo Repository, ledger Ledger) *Service {
	return &Service{repo: repo, ledger: ledger, now: time.Now}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name        string                      `json:"name"`
	Subject     string                      `json:"subject"`
	HTMLContent string                      `json:"html_content"`
	TemplateID  string                      `json:"template_id"`
	FromName    string                      `json:"from_name"`
	FromEmail   string                      `json:"from_email"`
	ReplyTo     string                      `json:"reply_to"`
	Category    domain.CampaignCategory     `json:"category"`
	Filter      *domain.RecipientFilterSpec `json:"filter"`
	Emails      []string                    `json:"emails"`
	Variants    []domain.Variant            `json:"variants"`
	ScheduledAt *time.Time                  `json:"scheduled_at"`
	CreatedBy   string                      `json:"created_by"`
}

// UpdateInput holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateInput struct {
	Name        *string                     `json:"name"`
	Subject     *string                     `json:"subject"`
	HTMLContent *string                     `json:"html_content"`
	TemplateID  *string                     `json:"template_id"`
	FromName    *string                     `json:"from_name"`
	FromEmail   *string                     `json:"from_email"`
	ReplyTo     *string                     `json:"reply_to"`
	Category    *domain.CampaignCategory    `json:"category"`
	Filter      *domain.RecipientFilterSpec `json:"filter"`
	Emails      []string                    `json:"emails"`
	Variants    []domain.Variant            `json:"variants"`
}

// Create validates and persists a new draft campaign. A ScheduledAt on the
// input schedules it in the same call.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidInput("name is required")
	}
	if in.Category == "" {
		in.Category = domain.CategoryMarketing
	}

	now := s.now().UTC()
	c := &domain.Campaign{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Subject:     in.Subject,
		HTMLContent: in.HTMLContent,
		TemplateID:  in.TemplateID,
		FromName:    in.FromName,
		FromEmail:   in.FromEmail,
		ReplyTo:     in.ReplyTo,
		Category:    in.Category,
		Filter:      in.Filter,
		Emails:      normalizeEmails(in.Emails),
		Variants:    in.Variants,
		Status:      domain.CampaignDraft,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	if in.ScheduledAt != nil {
		if err := s.Schedule(ctx, c.ID, *in.ScheduledAt); err != nil {
			return nil, err
		}
		at := in.ScheduledAt.UTC()
		c.Status = domain.CampaignScheduled
		c.ScheduledAt = &at
	}

	logger.Info("[campaign.Service] campaign created", "campaign_id", c.ID, "status", string(c.Status))
	return c, nil
}

// Get returns a campaign with its recipient ledger rebuilt from engagement
// records.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.ledger != nil {
		progress, err := s.ledger.Ledger(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
		c.Recipients = progress
	}
	return c, nil
}

// Load returns the campaign row without the ledger projection.
func (s *Service) Load(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.repo.List(ctx, f)
}

// Update applies the non-nil fields. Campaigns that are sending or sent are
// immutable.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Check(id, c.Status, ActionEdit); err != nil {
		return nil, err
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, invalidInput("name cannot be empty")
		}
		c.Name = *in.Name
	}
	if in.Subject != nil {
		c.Subject = *in.Subject
	}
	if in.HTMLContent != nil {
		c.HTMLContent = *in.HTMLContent
	}
	if in.TemplateID != nil {
		c.TemplateID = *in.TemplateID
	}
	if in.FromName != nil {
		c.FromName = *in.FromName
	}
	if in.FromEmail != nil {
		c.FromEmail = *in.FromEmail
	}
	if in.ReplyTo != nil {
		c.ReplyTo = *in.ReplyTo
	}
	if in.Category != nil {
		c.Category = *in.Category
	}
	if in.Filter != nil {
		c.Filter = in.Filter
	}
	if in.Emails != nil {
		c.Emails = normalizeEmails(in.Emails)
	}
	if in.Variants != nil {
		c.Variants = in.Variants
	}
	c.UpdatedAt = s.now().UTC()

	ok, err := s.repo.UpdateContent(ctx, c, AllowedFrom(ActionEdit))
	if err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	if !ok {
		return nil, s.conflict(ctx, id, ActionEdit)
	}
	return c, nil
}

// Schedule moves a draft (or re-times a scheduled) campaign to scheduled.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		return invalidInput("scheduled_at is required")
	}
	at = at.UTC()
	return s.transition(ctx, id, ActionSchedule, TransitionPatch{ScheduledAt: &at})
}

// Unschedule returns a scheduled campaign to draft.
func (s *Service) Unschedule(ctx context.Context, id string) error {
	return s.transition(ctx, id, ActionUnschedule, TransitionPatch{ClearSchedule: true})
}

// Cancel is honored only before sending starts.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, ActionCancel, TransitionPatch{})
}

// StartSending moves a draft or scheduled campaign to sending. It is the
// first write of a send and happens before any recipient work.
func (s *Service) StartSending(ctx context.Context, id string) error {
	now := s.now().UTC()
	return s.transition(ctx, id, ActionStart, TransitionPatch{StartedAt: &now})
}

// Complete moves a sending campaign to sent. Partial transport failures
// still complete the run.
func (s *Service) Complete(ctx context.Context, id string) error {
	now := s.now().UTC()
	return s.transition(ctx, id, ActionComplete, TransitionPatch{CompletedAt: &now})
}

// Fail moves a sending campaign to failed with the reason attached.
func (s *Service) Fail(ctx context.Context, id string, reason error) error {
	now := s.now().UTC()
	msg := reason.Error()
	return s.transition(ctx, id, ActionFail, TransitionPatch{FailedAt: &now, ErrorMessage: &msg})
}

// IncrementCounters adds delta to the campaign aggregates.
func (s *Service) IncrementCounters(ctx context.Context, id string, delta domain.CampaignCounters) error {
	if delta.IsZero() {
		return nil
	}
	return s.repo.IncrementCounters(ctx, id, delta)
}

// SetCounters overwrites the campaign aggregates.
func (s *Service) SetCounters(ctx context.Context, id string, counters domain.CampaignCounters) error {
	return s.repo.SetCounters(ctx, id, counters)
}

// AddFailed adds n transport failures to the campaign.
func (s *Service) AddFailed(ctx context.Context, id string, n int) error {
	if n == 0 {
		return nil
	}
	return s.repo.AddFailed(ctx, id, n)
}

// Duplicate copies content and audience into a new draft. It works from
// any status, including terminal ones.
func (s *Service) Duplicate(ctx context.Context, id, createdBy string) (*domain.Campaign, error) {
	src, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	dup := &domain.Campaign{
		ID:             uuid.New().String(),
		Name:           src.Name + " (copy)",
		Subject:        src.Subject,
		HTMLContent:    src.HTMLContent,
		TemplateID:     src.TemplateID,
		FromName:       src.FromName,
		FromEmail:      src.FromEmail,
		ReplyTo:        src.ReplyTo,
		Category:       src.Category,
		Emails:         append([]string(nil), src.Emails...),
		Variants:       append([]domain.Variant(nil), src.Variants...),
		Status:         domain.CampaignDraft,
		DuplicatedFrom: src.ID,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if src.Filter != nil {
		f := *src.Filter
		dup.Filter = &f
	}
	if err := s.repo.Create(ctx, dup); err != nil {
		return nil, fmt.Errorf("create duplicate: %w", err)
	}
	logger.Info("[campaign.Service] campaign duplicated", "campaign_id", dup.ID, "source_id", src.ID)
	return dup, nil
}

// Delete removes a campaign and purges its engagement records. A campaign
// that is sending cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := Check(id, c.Status, ActionDelete); err != nil {
		return err
	}

	if s.ledger != nil {
		n, err := s.ledger.Purge(ctx, id)
		if err != nil {
			return fmt.Errorf("purge engagement records: %w", err)
		}
		logger.Info("[campaign.Service] engagement records purged", "campaign_id", id, "records", n)
	}

	ok, err := s.repo.Delete(ctx, id, AllowedFrom(ActionDelete))
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if !ok {
		return s.conflict(ctx, id, ActionDelete)
	}
	return nil
}

// ListDue returns scheduled campaigns whose time has come.
func (s *Service) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	return s.repo.ListDue(ctx, now.UTC(), limit)
}

// ListStaleSending returns sending campaigns idle for longer than staleAfter.
func (s *Service) ListStaleSending(ctx context.Context, staleAfter time.Duration, limit int) ([]domain.Campaign, error) {
	return s.repo.ListStaleSending(ctx, s.now().UTC().Add(-staleAfter), limit)
}

func (s *Service) transition(ctx context.Context, id string, a Action, patch TransitionPatch) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	to, err := Next(id, c.Status, a)
	if err != nil {
		return err
	}

	ok, err := s.repo.Transition(ctx, id, AllowedFrom(a), to, patch)
	if err != nil {
		return fmt.Errorf("%s campaign %s: %w", a, id, err)
	}
	if !ok {
		return s.conflict(ctx, id, a)
	}
	logger.Info("[campaign.Service] status changed", "campaign_id", id, "from", string(c.Status), "to", string(to))
	return nil
}

// conflict re-reads the status after a lost compare-and-set.
func (s *Service) conflict(ctx context.Context, id string, a Action) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("reload after conflict: %w", err)
	}
	return &StateConflictError{CampaignID: id, Status: c.Status, Action: a}
}

func normalizeEmails(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, e := range in {
		e = domain.NormalizeEmail(e)
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
