package domain

import "time"

// SuppressionReason enumerates why an email was suppressed.
type SuppressionReason string

const (
	ReasonUserRequest SuppressionReason = "user_request"
	ReasonHardBounce  SuppressionReason = "hard_bounce"
	ReasonComplaint   SuppressionReason = "complaint"
	ReasonManual      SuppressionReason = "manual"
	ReasonImport      SuppressionReason = "import"
)

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SourceTrackingLink SuppressionSource = "tracking_link"
	SourceESPWebhook   SuppressionSource = "esp_webhook"
	SourceAdmin        SuppressionSource = "admin"
	SourceImport       SuppressionSource = "import"
)

// UnsubscribedEmail is a global suppression entry. There is at most one row
// per lower-cased email; re-suppression reactivates it in place.
type UnsubscribedEmail struct {
	ID             string            `json:"id" db:"id"`
	Email          string            `json:"email" db:"email"`
	IsActive       bool              `json:"is_active" db:"is_active"`
	Reason         SuppressionReason `json:"reason" db:"reason"`
	Source         SuppressionSource `json:"source" db:"source"`
	CampaignID     string            `json:"campaign_id,omitempty" db:"campaign_id"`
	UserID         string            `json:"user_id,omitempty" db:"user_id"`
	IPAddress      string            `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string            `json:"user_agent,omitempty" db:"user_agent"`
	UnsubscribedAt time.Time         `json:"unsubscribed_at" db:"unsubscribed_at"`
	ResubscribedAt *time.Time        `json:"resubscribed_at,omitempty" db:"resubscribed_at"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}
