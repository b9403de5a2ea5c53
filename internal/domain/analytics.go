package domain

import "time"

// LinkStat is the click volume of one tracked link.
type LinkStat struct {
	LinkID string `json:"link_id"`
	URL    string `json:"url,omitempty"`
	Clicks int    `json:"clicks"`
}

// CampaignAnalytics is a rate summary computed from engagement records.
type CampaignAnalytics struct {
	CampaignID   string `json:"campaign_id,omitempty"`
	Recipients   int    `json:"recipients"`
	Sent         int    `json:"sent"`
	Delivered    int    `json:"delivered"`
	Opened       int    `json:"opened"`
	Clicked      int    `json:"clicked"`
	Bounced      int    `json:"bounced"`
	Unsubscribed int    `json:"unsubscribed"`
	Converted    int    `json:"converted"`
	TotalOpens   int    `json:"total_opens"`
	TotalClicks  int    `json:"total_clicks"`

	DeliveryRate    float64 `json:"delivery_rate"`
	OpenRate        float64 `json:"open_rate"`
	ClickRate       float64 `json:"click_rate"`
	BounceRate      float64 `json:"bounce_rate"`
	UnsubscribeRate float64 `json:"unsubscribe_rate"`
	ConversionRate  float64 `json:"conversion_rate"`
	Revenue         float64 `json:"revenue"`

	TopLinks []LinkStat `json:"top_links,omitempty"`

	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	ComputedAt time.Time  `json:"computed_at"`
}
