package ses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
)

// ErrMalformedNotification is returned for payloads that are not SNS
// envelopes carrying an SES notification.
var ErrMalformedNotification = errors.New("malformed SES notification")

// FeedbackRecorder receives bounce and complaint feedback.
type FeedbackRecorder interface {
	RecordBounce(ctx context.Context, ev engagement.BounceEvent) error
	RecordComplaint(ctx context.Context, campaignID, email string, at time.Time) error
}

type snsEnvelope struct {
	Type         string `json:"Type"`
	MessageID    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
}

type sesNotification struct {
	NotificationType string `json:"notificationType"`
	EventType        string `json:"eventType"`
	Mail             struct {
		MessageID string              `json:"messageId"`
		Tags      map[string][]string `json:"tags"`
	} `json:"mail"`
	Bounce *struct {
		BounceType        string    `json:"bounceType"`
		BounceSubType     string    `json:"bounceSubType"`
		Timestamp         time.Time `json:"timestamp"`
		BouncedRecipients []struct {
			EmailAddress   string `json:"emailAddress"`
			DiagnosticCode string `json:"diagnosticCode"`
		} `json:"bouncedRecipients"`
	} `json:"bounce"`
	Complaint *struct {
		Timestamp            time.Time `json:"timestamp"`
		ComplainedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"complainedRecipients"`
	} `json:"complaint"`
}

// kind prefers eventType (configuration-set event publishing) over the
// older notificationType field.
func (n *sesNotification) kind() string {
	if n.EventType != "" {
		return n.EventType
	}
	return n.NotificationType
}

func (n *sesNotification) campaignID() string {
	if v := n.Mail.Tags[CampaignTag]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// FeedbackResult summarises one processed notification.
type FeedbackResult struct {
	Kind       string `json:"kind"`
	CampaignID string `json:"campaign_id,omitempty"`
	Recipients int    `json:"recipients"`
}

// FeedbackProcessor applies SNS-delivered SES feedback to engagement.
type FeedbackProcessor struct {
	recorder   FeedbackRecorder
	httpClient *http.Client
}

// NewFeedbackProcessor creates a processor. Subscription confirmations are
// fetched with httpClient, or http.DefaultClient when nil.
func NewFeedbackProcessor(recorder FeedbackRecorder, httpClient *http.Client) *FeedbackProcessor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &FeedbackProcessor{recorder: recorder, httpClient: httpClient}
}

// Process handles one SNS POST body.
// TODO: verify the SNS message signature against SigningCertURL before
// applying notifications.
func (p *FeedbackProcessor) Process(ctx context.Context, body []byte) (*FeedbackResult, error) {
	var env snsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	switch env.Type {
	case "SubscriptionConfirmation":
		if err := p.confirm(ctx, env.SubscribeURL); err != nil {
			return nil, err
		}
		logger.Info("[SESFeedback] subscription confirmed", "topic", env.TopicArn)
		return &FeedbackResult{Kind: "SubscriptionConfirmation"}, nil
	case "Notification":
	default:
		return nil, fmt.Errorf("%w: unexpected SNS type %q", ErrMalformedNotification, env.Type)
	}

	var n sesNotification
	if err := json.Unmarshal([]byte(env.Message), &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	res := &FeedbackResult{Kind: n.kind(), CampaignID: n.campaignID()}
	if res.CampaignID == "" {
		logger.Debug("[SESFeedback] notification without campaign tag", "kind", res.Kind, "message_id", n.Mail.MessageID)
		return res, nil
	}

	var errs []error
	switch res.Kind {
	case "Bounce":
		if n.Bounce == nil {
			return nil, fmt.Errorf("%w: bounce without details", ErrMalformedNotification)
		}
		for _, r := range n.Bounce.BouncedRecipients {
			err := p.recorder.RecordBounce(ctx, engagement.BounceEvent{
				CampaignID: res.CampaignID,
				Email:      r.EmailAddress,
				Permanent:  n.Bounce.BounceType == "Permanent",
				BounceType: n.Bounce.BounceType,
				Reason:     bounceReason(n.Bounce.BounceSubType, r.DiagnosticCode),
				At:         n.Bounce.Timestamp,
			})
			if err != nil {
				errs = append(errs, err)
				continue
			}
			res.Recipients++
		}
	case "Complaint":
		if n.Complaint == nil {
			return nil, fmt.Errorf("%w: complaint without details", ErrMalformedNotification)
		}
		for _, r := range n.Complaint.ComplainedRecipients {
			if err := p.recorder.RecordComplaint(ctx, res.CampaignID, r.EmailAddress, n.Complaint.Timestamp); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Recipients++
		}
	default:
		logger.Debug("[SESFeedback] ignoring notification", "kind", res.Kind)
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}

func bounceReason(subType, diagnostic string) string {
	switch {
	case diagnostic == "":
		return subType
	case subType == "":
		return diagnostic
	default:
		return subType + ": " + diagnostic
	}
}

// confirm fetches the subscribe URL, which must point at SNS.
func (p *FeedbackProcessor) confirm(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || !strings.HasSuffix(u.Hostname(), ".amazonaws.com") {
		return fmt.Errorf("%w: untrusted subscribe URL %q", ErrMalformedNotification, raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("confirming subscription: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("confirming subscription: status %d", resp.StatusCode)
	}
	return nil
}
