package domain

import "time"

// EngagementRecord is the persistent, idempotent log of one recipient's
// interaction with one campaign. (CampaignID, Email) is unique; every
// tracking write is an upsert on that key.
type EngagementRecord struct {
	CampaignID string `json:"campaign_id" db:"campaign_id"`
	Email      string `json:"email" db:"email"`

	UserID    string            `json:"user_id,omitempty" db:"user_id"`
	FirstName string            `json:"first_name,omitempty" db:"first_name"`
	LastName  string            `json:"last_name,omitempty" db:"last_name"`
	Variables map[string]string `json:"variables,omitempty"`

	IsTestEmail bool   `json:"is_test_email" db:"is_test_email"`
	MessageID   string `json:"message_id,omitempty" db:"message_id"`

	Sent         bool `json:"sent" db:"sent"`
	Delivered    bool `json:"delivered" db:"delivered"`
	Opened       bool `json:"opened" db:"opened"`
	Clicked      bool `json:"clicked" db:"clicked"`
	Bounced      bool `json:"bounced" db:"bounced"`
	Unsubscribed bool `json:"unsubscribed" db:"unsubscribed"`

	OpenCount  int `json:"open_count" db:"open_count"`
	ClickCount int `json:"click_count" db:"click_count"`

	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	FirstOpenedAt  *time.Time `json:"first_opened_at,omitempty" db:"first_opened_at"`
	LastOpenedAt   *time.Time `json:"last_opened_at,omitempty" db:"last_opened_at"`
	FirstClickedAt *time.Time `json:"first_clicked_at,omitempty" db:"first_clicked_at"`
	LastClickedAt  *time.Time `json:"last_clicked_at,omitempty" db:"last_clicked_at"`
	BouncedAt      *time.Time `json:"bounced_at,omitempty" db:"bounced_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty" db:"unsubscribed_at"`

	// Device and click metadata from the latest tracking hit.
	DeviceType     string         `json:"device_type,omitempty" db:"device_type"`
	IPAddress      string         `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string         `json:"user_agent,omitempty" db:"user_agent"`
	LastClickedURL string         `json:"last_clicked_url,omitempty" db:"last_clicked_url"`
	LinkClicks     map[string]int `json:"link_clicks,omitempty"`

	BounceType   string `json:"bounce_type,omitempty" db:"bounce_type"`
	BounceReason string `json:"bounce_reason,omitempty" db:"bounce_reason"`

	// Conversion attribution.
	Converted       bool       `json:"converted" db:"converted"`
	ConversionCount int        `json:"conversion_count" db:"conversion_count"`
	Revenue         float64    `json:"revenue" db:"revenue"`
	ConvertedAt     *time.Time `json:"converted_at,omitempty" db:"converted_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Progress projects the record onto the campaign ledger view.
func (r *EngagementRecord) Progress() RecipientProgress {
	return RecipientProgress{
		Email:          r.Email,
		Sent:           r.Sent,
		Delivered:      r.Delivered,
		Opened:         r.Opened,
		Clicked:        r.Clicked,
		Bounced:        r.Bounced,
		Unsubscribed:   r.Unsubscribed,
		OpenCount:      r.OpenCount,
		ClickCount:     r.ClickCount,
		SentAt:         r.SentAt,
		DeliveredAt:    r.DeliveredAt,
		FirstOpenedAt:  r.FirstOpenedAt,
		FirstClickedAt: r.FirstClickedAt,
		BouncedAt:      r.BouncedAt,
		UnsubscribedAt: r.UnsubscribedAt,
	}
}

// Recipient rebuilds the resolved recipient captured in the send snapshot.
func (r *EngagementRecord) Recipient() ResolvedRecipient {
	return ResolvedRecipient{
		Email:     r.Email,
		UserID:    r.UserID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Variables: r.Variables,
	}
}

// TrackingEventType enumerates the types of email engagement events.
type TrackingEventType string

const (
	EventOpen        TrackingEventType = "open"
	EventClick       TrackingEventType = "click"
	EventUnsubscribe TrackingEventType = "unsubscribe"
	EventBounce      TrackingEventType = "bounce"
	EventComplaint   TrackingEventType = "complaint"
)

// TrackingEvent is one inbound tracking hit as it travels through the
// optional tracking queue.
type TrackingEvent struct {
	EventType  TrackingEventType `json:"event_type"`
	CampaignID string            `json:"campaign_id"`
	Email      string            `json:"email"`
	LinkID     string            `json:"link_id,omitempty"`
	URL        string            `json:"url,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
