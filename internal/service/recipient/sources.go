package recipient

import (
	"context"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
)

// PaidOrFree are the registration payment statuses that count as attending.
var PaidOrFree = []string{"paid", "free"}

// UserQuery is the user-attribute part of a filter. Subscriptions and
// NoActiveSubscription are OR-ed; every other field narrows.
type UserQuery struct {
	Subscriptions        []string
	NoActiveSubscription bool
	Statuses             []string
	Roles                []string
	ModulePermissions    []string
	LastLoginSince       *time.Time
	RegisteredFrom       *time.Time
	RegisteredTo         *time.Time
}

// UserStore queries internal users by attribute.
type UserStore interface {
	FindUsers(ctx context.Context, q UserQuery) ([]domain.User, error)
}

// RegistrationStore queries event registrations.
type RegistrationStore interface {
	FindRegistrants(ctx context.Context, eventIDs []string, paymentStatuses []string) ([]domain.Registration, error)
}

// ContactListProvider is the external list-management provider.
type ContactListProvider interface {
	ListContacts(ctx context.Context, listID string) ([]domain.Contact, error)
	Lists(ctx context.Context) ([]domain.ContactList, error)
}

// SegmentStore persists saved segments and their cached statistics.
type SegmentStore interface {
	Create(ctx context.Context, s *domain.RecipientSegment) error
	Get(ctx context.Context, id string) (*domain.RecipientSegment, error)
	UpdateEstimate(ctx context.Context, id string, count int, at time.Time) error
	RecordUsage(ctx context.Context, id string, at time.Time) error
}
