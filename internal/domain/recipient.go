package domain

import (
	"sort"
	"strings"
	"time"
)

// RecipientSource identifies where a resolved recipient came from.
type RecipientSource string

const (
	SourceUser     RecipientSource = "user"
	SourceEvent    RecipientSource = "event"
	SourceExternal RecipientSource = "external"
	SourceCustom   RecipientSource = "custom"
)

// RecipientFilterSpec is a declarative audience query. Every field is an
// optional predicate; the resolver's merge rules depend on which ones are set.
type RecipientFilterSpec struct {
	// User-attribute predicates.
	Subscriptions        []string   `json:"subscriptions,omitempty"`
	NoActiveSubscription bool       `json:"no_active_subscription,omitempty"`
	Statuses             []string   `json:"statuses,omitempty"`
	Roles                []string   `json:"roles,omitempty"`
	ModulePermissions    []string   `json:"module_permissions,omitempty"`
	LastLoginWithinDays  *int       `json:"last_login_within_days,omitempty"`
	RegisteredFrom       *time.Time `json:"registered_from,omitempty"`
	RegisteredTo         *time.Time `json:"registered_to,omitempty"`

	// Event-registration predicate.
	EventIDs []string `json:"event_ids,omitempty"`

	// Additive and subtractive sources.
	CustomEmails    []string `json:"custom_emails,omitempty"`
	ExternalListIDs []string `json:"external_list_ids,omitempty"`
	ExcludeListIDs  []string `json:"exclude_list_ids,omitempty"`

	SegmentID string `json:"segment_id,omitempty"`
}

// HasUserPredicates reports whether any user-attribute predicate is present.
// A present predicate makes the user set present even when it matches nobody.
func (s RecipientFilterSpec) HasUserPredicates() bool {
	return len(s.Subscriptions) > 0 ||
		s.NoActiveSubscription ||
		len(s.Statuses) > 0 ||
		len(s.Roles) > 0 ||
		len(s.ModulePermissions) > 0 ||
		s.LastLoginWithinDays != nil ||
		s.RegisteredFrom != nil ||
		s.RegisteredTo != nil
}

// HasEventPredicate reports whether an event-registration predicate is present.
func (s RecipientFilterSpec) HasEventPredicate() bool {
	return len(s.EventIDs) > 0
}

// IsEmpty reports whether the filter selects nobody on its own.
func (s RecipientFilterSpec) IsEmpty() bool {
	return !s.HasUserPredicates() && !s.HasEventPredicate() &&
		len(s.CustomEmails) == 0 && len(s.ExternalListIDs) == 0 && s.SegmentID == ""
}

// Merge folds a saved segment's spec into s. List predicates are unioned;
// scalar predicates already set on s win over the segment's.
func (s RecipientFilterSpec) Merge(seg RecipientFilterSpec) RecipientFilterSpec {
	out := s
	out.Subscriptions = unionStrings(s.Subscriptions, seg.Subscriptions)
	out.Statuses = unionStrings(s.Statuses, seg.Statuses)
	out.Roles = unionStrings(s.Roles, seg.Roles)
	out.ModulePermissions = unionStrings(s.ModulePermissions, seg.ModulePermissions)
	out.EventIDs = unionStrings(s.EventIDs, seg.EventIDs)
	out.CustomEmails = unionStrings(s.CustomEmails, seg.CustomEmails)
	out.ExternalListIDs = unionStrings(s.ExternalListIDs, seg.ExternalListIDs)
	out.ExcludeListIDs = unionStrings(s.ExcludeListIDs, seg.ExcludeListIDs)
	out.NoActiveSubscription = s.NoActiveSubscription || seg.NoActiveSubscription
	if out.LastLoginWithinDays == nil {
		out.LastLoginWithinDays = seg.LastLoginWithinDays
	}
	if out.RegisteredFrom == nil {
		out.RegisteredFrom = seg.RegisteredFrom
	}
	if out.RegisteredTo == nil {
		out.RegisteredTo = seg.RegisteredTo
	}
	// The segment reference is consumed by the merge.
	out.SegmentID = ""
	return out
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string{}, a...), b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// RecipientSegment is a named, reusable filter with a cached size estimate.
// It is a convenience over the resolver, never a source of truth.
type RecipientSegment struct {
	ID             string              `json:"id" db:"id"`
	Name           string              `json:"name" db:"name"`
	Description    string              `json:"description,omitempty" db:"description"`
	Filter         RecipientFilterSpec `json:"filter"`
	EstimatedCount int                 `json:"estimated_count" db:"estimated_count"`
	LastCalculated *time.Time          `json:"last_calculated,omitempty" db:"last_calculated"`
	UsageCount     int                 `json:"usage_count" db:"usage_count"`
	LastUsedAt     *time.Time          `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// ResolvedRecipient is one member of a resolved audience.
type ResolvedRecipient struct {
	Email     string            `json:"email"`
	UserID    string            `json:"user_id,omitempty"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Source    RecipientSource   `json:"source"`
	Variables map[string]string `json:"variables,omitempty"`
}

// NormalizeEmail lower-cases and trims an address. Every set operation on
// recipients is keyed by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Registration is one event registration as seen by the resolver.
type Registration struct {
	EventID       string `json:"event_id" db:"event_id"`
	Email         string `json:"email" db:"email"`
	UserID        string `json:"user_id,omitempty" db:"user_id"`
	FirstName     string `json:"first_name,omitempty" db:"first_name"`
	LastName      string `json:"last_name,omitempty" db:"last_name"`
	PaymentStatus string `json:"payment_status" db:"payment_status"`
}

// Contact is one member of an external contact list.
type Contact struct {
	Email     string            `json:"email"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// ContactList describes a list available at the external provider.
type ContactList struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}
