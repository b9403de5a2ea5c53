package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
)

type EventType string

const (
	EventOpen        EventType = "opened"
	EventClick       EventType = "clicked"
	EventUnsubscribe EventType = "unsubscribed"
)

// Event is the queued form of one tracking hit.
type Event struct {
	EventType  EventType `json:"event_type"`
	CampaignID string    `json:"campaign_id"`
	Email      string    `json:"email"`
	LinkID     string    `json:"link_id,omitempty"`
	LinkURL    string    `json:"link_url,omitempty"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Timestamp  time.Time `json:"timestamp"`
}

// SQSAPI is the subset of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Publisher is a Recorder that queues hits on SQS instead of writing them,
// keeping the public endpoints independent of database latency.
type Publisher struct {
	client   SQSAPI
	queueURL string
	now      func() time.Time
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, now: time.Now}
}

func (p *Publisher) RecordOpen(ctx context.Context, ev engagement.OpenEvent) error {
	return p.Publish(ctx, Event{
		EventType:  EventOpen,
		CampaignID: ev.CampaignID,
		Email:      ev.Email,
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
		Timestamp:  p.stamp(ev.At),
	})
}

func (p *Publisher) RecordClick(ctx context.Context, ev engagement.ClickEvent) error {
	return p.Publish(ctx, Event{
		EventType:  EventClick,
		CampaignID: ev.CampaignID,
		Email:      ev.Email,
		LinkID:     ev.LinkID,
		LinkURL:    ev.URL,
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
		Timestamp:  p.stamp(ev.At),
	})
}

func (p *Publisher) RecordUnsubscribe(ctx context.Context, ev engagement.UnsubscribeEvent) error {
	return p.Publish(ctx, Event{
		EventType:  EventUnsubscribe,
		CampaignID: ev.CampaignID,
		Email:      ev.Email,
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
		Timestamp:  p.stamp(ev.At),
	})
}

// Publish sends one event to the queue.
func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal tracking event: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return &engagement.TrackingWriteError{Op: string(evt.EventType), CampaignID: evt.CampaignID, Err: fmt.Errorf("publish: %w", err)}
	}
	return nil
}

// stamp fixes the event time at the edge so queue delay does not shift
// first-event timestamps.
func (p *Publisher) stamp(at time.Time) time.Time {
	if at.IsZero() {
		return p.now().UTC()
	}
	return at.UTC()
}

// Consumer drains queued tracking events into a Recorder.
type Consumer struct {
	client   SQSAPI
	queueURL string
	sink     Recorder
	waitTime int32
	backoff  time.Duration
}

func NewConsumer(client SQSAPI, queueURL string, sink Recorder) *Consumer {
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		sink:     sink,
		waitTime: 20,
		backoff:  5 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	logger.Info("[TrackingConsumer] started", "queue", c.queueURL)
	for {
		if ctx.Err() != nil {
			logger.Info("[TrackingConsumer] stopped")
			return
		}
		if _, err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("[TrackingConsumer] receive failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
		}
	}
}

// PollOnce receives one batch and processes it. Messages that fail to apply
// stay on the queue and are redelivered after the visibility timeout;
// the engagement writes are idempotent so a redelivery is harmless.
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     c.waitTime,
	})
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, msg := range out.Messages {
		if c.handle(ctx, msg) {
			c.deleteMessage(ctx, msg.ReceiptHandle)
			processed++
		}
	}
	return processed, nil
}

func (c *Consumer) handle(ctx context.Context, msg types.Message) bool {
	var evt Event
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &evt); err != nil {
		logger.Warn("[TrackingConsumer] dropping malformed message", "error", err)
		return true
	}
	if err := c.apply(ctx, evt); err != nil {
		logger.Error("[TrackingConsumer] apply failed", "event_type", string(evt.EventType), "campaign_id", evt.CampaignID, "error", err)
		return false
	}
	return true
}

func (c *Consumer) apply(ctx context.Context, evt Event) error {
	switch evt.EventType {
	case EventOpen:
		return c.sink.RecordOpen(ctx, engagement.OpenEvent{
			CampaignID: evt.CampaignID,
			Email:      evt.Email,
			IPAddress:  evt.IPAddress,
			UserAgent:  evt.UserAgent,
			At:         evt.Timestamp,
		})
	case EventClick:
		return c.sink.RecordClick(ctx, engagement.ClickEvent{
			CampaignID: evt.CampaignID,
			Email:      evt.Email,
			LinkID:     evt.LinkID,
			URL:        evt.LinkURL,
			IPAddress:  evt.IPAddress,
			UserAgent:  evt.UserAgent,
			At:         evt.Timestamp,
		})
	case EventUnsubscribe:
		return c.sink.RecordUnsubscribe(ctx, engagement.UnsubscribeEvent{
			CampaignID: evt.CampaignID,
			Email:      evt.Email,
			IPAddress:  evt.IPAddress,
			UserAgent:  evt.UserAgent,
			At:         evt.Timestamp,
		})
	default:
		logger.Warn("[TrackingConsumer] unknown event type", "event_type", string(evt.EventType))
		return nil
	}
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	}); err != nil {
		logger.Warn("[TrackingConsumer] delete failed", "error", err)
	}
}
