package suppression

import (
	"context"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
)

// Repository defines the data access contract for the suppression list.
type Repository interface {
	// Upsert inserts a suppression or reactivates the existing row for the
	// same email. It reports whether the email was newly (re)activated.
	Upsert(ctx context.Context, e *domain.UnsubscribedEmail) (bool, error)

	// Get returns the row for an email, active or not.
	Get(ctx context.Context, email string) (*domain.UnsubscribedEmail, error)

	// ActiveAmong returns the subset of emails that are actively suppressed.
	ActiveAmong(ctx context.Context, emails []string) (map[string]bool, error)

	// Deactivate marks the row inactive. Returns ErrNotFound if there is no
	// active row.
	Deactivate(ctx context.Context, email string, at time.Time) error

	// List returns suppression entries matching the filter.
	List(ctx context.Context, filter ListFilter) ([]domain.UnsubscribedEmail, int, error)
}

// PreferenceStore reads user mail preferences by email.
type PreferenceStore interface {
	PreferencesByEmail(ctx context.Context, emails []string) (map[string]domain.Preferences, error)
}

// ListFilter controls pagination and filtering for suppression lists.
type ListFilter struct {
	Reason     domain.SuppressionReason
	Source     domain.SuppressionSource
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}
