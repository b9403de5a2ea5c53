package domain

import "time"

// EmailMessage is the fully-resolved message handed to a transport.
// By the time a message reaches this struct, all placeholder substitution
// and tracking injection is complete.
type EmailMessage struct {
	CampaignID  string            `json:"campaign_id"`
	Email       string            `json:"email"`
	FromName    string            `json:"from_name"`
	FromEmail   string            `json:"from_email"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"html_content"`
	Headers     map[string]string `json:"headers,omitempty"`
	IsTest      bool              `json:"is_test,omitempty"`
}

// SendResult is the outcome of one orchestrated campaign send.
type SendResult struct {
	CampaignID string    `json:"campaign_id"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Suppressed int       `json:"suppressed"`
	Batches    int       `json:"batches"`
	Resumed    bool      `json:"resumed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
