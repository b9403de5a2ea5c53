package domain

import (
	"strings"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// CampaignCategory selects which recipient preference flag governs opt-out.
type CampaignCategory string

const (
	CategoryMarketing     CampaignCategory = "marketing"
	CategoryNewsletter    CampaignCategory = "newsletter"
	CategoryEvents        CampaignCategory = "events"
	CategoryPromotional   CampaignCategory = "promotional"
	CategoryTransactional CampaignCategory = "transactional"
)

// Campaign is one outbound bulk-email operation with content, audience and
// lifecycle status.
type Campaign struct {
	ID          string           `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Subject     string           `json:"subject" db:"subject"`
	HTMLContent string           `json:"html_content" db:"html_content"`
	TemplateID  string           `json:"template_id,omitempty" db:"template_id"`
	FromName    string           `json:"from_name" db:"from_name"`
	FromEmail   string           `json:"from_email" db:"from_email"`
	ReplyTo     string           `json:"reply_to,omitempty" db:"reply_to"`
	Category    CampaignCategory `json:"category" db:"category"`

	Filter *RecipientFilterSpec `json:"filter,omitempty"`
	Emails []string             `json:"emails,omitempty"`

	Status       CampaignStatus `json:"status" db:"status"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty" db:"scheduled_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt     *time.Time     `json:"failed_at,omitempty" db:"failed_at"`
	ErrorMessage string         `json:"error_message,omitempty" db:"error_message"`

	// SnapshotAt is set once the send audience has been persisted as
	// pending engagement records. A sending campaign without it never got
	// that far and must be resolved again.
	SnapshotAt *time.Time `json:"snapshot_at,omitempty" db:"snapshot_at"`

	Counters    CampaignCounters `json:"analytics"`
	FailedCount int              `json:"failed_count" db:"failed_count"`

	// Variants are stored for A/B testing; winner selection is not modelled.
	Variants []Variant `json:"variants,omitempty"`

	// Recipients is a read projection of the campaign's engagement records.
	Recipients []RecipientProgress `json:"recipients,omitempty"`

	DuplicatedFrom string    `json:"duplicated_from,omitempty" db:"duplicated_from"`
	CreatedBy      string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed || c.Status == CampaignCancelled
}

// HasContent reports whether the campaign carries something to send.
func (c *Campaign) HasContent() bool {
	if strings.TrimSpace(c.Subject) == "" {
		return false
	}
	return strings.TrimSpace(c.HTMLContent) != "" || c.TemplateID != ""
}

// HasAudience reports whether any audience source is configured at all.
func (c *Campaign) HasAudience() bool {
	return len(c.Emails) > 0 || (c.Filter != nil && !c.Filter.IsEmpty())
}

// CampaignCounters are the aggregate engagement counters of a campaign.
// They only ever move through atomic increments.
type CampaignCounters struct {
	Sent         int `json:"sent" db:"sent_count"`
	Delivered    int `json:"delivered" db:"delivered_count"`
	Opened       int `json:"opened" db:"opened_count"`
	Clicked      int `json:"clicked" db:"clicked_count"`
	Bounced      int `json:"bounced" db:"bounced_count"`
	Unsubscribed int `json:"unsubscribed" db:"unsubscribed_count"`
}

// Add returns the element-wise sum of two counter sets.
func (c CampaignCounters) Add(o CampaignCounters) CampaignCounters {
	return CampaignCounters{
		Sent:         c.Sent + o.Sent,
		Delivered:    c.Delivered + o.Delivered,
		Opened:       c.Opened + o.Opened,
		Clicked:      c.Clicked + o.Clicked,
		Bounced:      c.Bounced + o.Bounced,
		Unsubscribed: c.Unsubscribed + o.Unsubscribed,
	}
}

// IsZero reports whether no counter changed.
func (c CampaignCounters) IsZero() bool {
	return c == CampaignCounters{}
}

// Variant is a stored A/B test variant.
type Variant struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
	Weight      int    `json:"weight"`
}

// RecipientProgress is the per-recipient view of a campaign's ledger.
type RecipientProgress struct {
	Email          string     `json:"email"`
	Sent           bool       `json:"sent"`
	Delivered      bool       `json:"delivered"`
	Opened         bool       `json:"opened"`
	Clicked        bool       `json:"clicked"`
	Bounced        bool       `json:"bounced"`
	Unsubscribed   bool       `json:"unsubscribed"`
	OpenCount      int        `json:"open_count"`
	ClickCount     int        `json:"click_count"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	FirstOpenedAt  *time.Time `json:"first_opened_at,omitempty"`
	FirstClickedAt *time.Time `json:"first_clicked_at,omitempty"`
	BouncedAt      *time.Time `json:"bounced_at,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
}
