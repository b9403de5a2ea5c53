package suppression

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

// lookupChunk bounds the IN-list size of a single ActiveAmong call.
const lookupChunk = 1000

// Service implements suppression business logic. It is safe for concurrent use.
type Service struct {
	repo  Repository
	prefs PreferenceStore
	now   func() time.Time
}

// NewService creates a suppression service. prefs may be nil, in which case
// only the suppression list is consulted.
func NewService(repo Repository, prefs PreferenceStore) *Service {
	return &Service{repo: repo, prefs: prefs, now: time.Now}
}

// SuppressInput describes one suppression signal.
type SuppressInput struct {
	Email      string                   `json:"email"`
	Reason     domain.SuppressionReason `json:"reason"`
	Source     domain.SuppressionSource `json:"source"`
	CampaignID string                   `json:"campaign_id,omitempty"`
	UserID     string                   `json:"user_id,omitempty"`
	IPAddress  string                   `json:"ip_address,omitempty"`
	UserAgent  string                   `json:"user_agent,omitempty"`
}

// Suppress adds or reactivates a suppression. Repeating it is harmless; it
// reports whether this call changed the address from sendable to suppressed.
func (s *Service) Suppress(ctx context.Context, in SuppressInput) (bool, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return false, fmt.Errorf("%w: %q", ErrInvalidEmail, in.Email)
	}
	if in.Reason == "" {
		in.Reason = domain.ReasonManual
	}
	if in.Source == "" {
		in.Source = domain.SourceAdmin
	}

	now := s.now().UTC()
	entry := &domain.UnsubscribedEmail{
		ID:             uuid.New().String(),
		Email:          email,
		IsActive:       true,
		Reason:         in.Reason,
		Source:         in.Source,
		CampaignID:     in.CampaignID,
		UserID:         in.UserID,
		IPAddress:      in.IPAddress,
		UserAgent:      in.UserAgent,
		UnsubscribedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	activated, err := s.repo.Upsert(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("suppress %s: %w", logger.RedactEmail(email), err)
	}
	if activated {
		logger.Info("[Suppression] address suppressed", "email", email, "reason", string(in.Reason), "source", string(in.Source))
	}
	return activated, nil
}

// IsSuppressed reports whether an address has an active suppression.
func (s *Service) IsSuppressed(ctx context.Context, email string) (bool, error) {
	email = domain.NormalizeEmail(email)
	active, err := s.repo.ActiveAmong(ctx, []string{email})
	if err != nil {
		return false, err
	}
	return active[email], nil
}

// Get returns the suppression row for an email.
func (s *Service) Get(ctx context.Context, email string) (*domain.UnsubscribedEmail, error) {
	return s.repo.Get(ctx, domain.NormalizeEmail(email))
}

// Resubscribe deactivates an address's suppression, keeping the row for audit.
func (s *Service) Resubscribe(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEmail)
	}
	return s.repo.Deactivate(ctx, email, s.now().UTC())
}

// List returns suppression entries matching the given filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.UnsubscribedEmail, int, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	return s.repo.List(ctx, f)
}

// Filter is the pre-send SuppressionChecker. It returns the recipients that
// may receive mail of the given category and the number removed.
func (s *Service) Filter(ctx context.Context, recipients []domain.ResolvedRecipient, category domain.CampaignCategory) ([]domain.ResolvedRecipient, int, error) {
	if len(recipients) == 0 {
		return recipients, 0, nil
	}

	emails := make([]string, len(recipients))
	for i, r := range recipients {
		emails[i] = domain.NormalizeEmail(r.Email)
	}

	suppressed := make(map[string]bool)
	for start := 0; start < len(emails); start += lookupChunk {
		end := start + lookupChunk
		if end > len(emails) {
			end = len(emails)
		}
		active, err := s.repo.ActiveAmong(ctx, emails[start:end])
		if err != nil {
			return nil, 0, fmt.Errorf("check suppression list: %w", err)
		}
		for e := range active {
			suppressed[e] = true
		}
	}

	var prefs map[string]domain.Preferences
	if s.prefs != nil && category != domain.CategoryTransactional {
		p, err := s.prefs.PreferencesByEmail(ctx, emails)
		if err != nil {
			return nil, 0, fmt.Errorf("check preferences: %w", err)
		}
		prefs = p
	}

	kept := make([]domain.ResolvedRecipient, 0, len(recipients))
	for i, r := range recipients {
		email := emails[i]
		if suppressed[email] {
			continue
		}
		if p, ok := prefs[email]; ok && !p.Allows(category) {
			continue
		}
		kept = append(kept, r)
	}

	removed := len(recipients) - len(kept)
	if removed > 0 {
		logger.Info("[Suppression] audience filtered", "category", string(category), "removed", removed, "kept", len(kept))
	}
	return kept, removed, nil
}

// Stats are aggregate counts grouped by reason and source.
type Stats struct {
	Active   int            `json:"active"`
	ByReason map[string]int `json:"by_reason"`
	BySource map[string]int `json:"by_source"`
}

// GetStats computes suppression statistics over active entries.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	entries, total, err := s.repo.List(ctx, ListFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		Active:   total,
		ByReason: make(map[string]int),
		BySource: make(map[string]int),
	}
	for _, e := range entries {
		stats.ByReason[string(e.Reason)]++
		stats.BySource[string(e.Source)]++
	}
	return stats, nil
}
