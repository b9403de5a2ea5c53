// Package ses delivers campaign mail through AWS SES v2 and decodes the
// bounce and complaint notifications SES publishes through SNS.
package ses

import (
	"context"
	"fmt"
	"net/mail"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

// CampaignTag is the message tag carrying the campaign id. Notifications
// echo it back, which is how bounces find their campaign.
const CampaignTag = "campaign_id"

// SESAPI is the subset of the SES v2 client used for sending.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Options are sender defaults applied when a campaign leaves them empty.
type Options struct {
	ConfigurationSet string
	FromEmail        string
	FromName         string
}

// Transport sends one message per SES call.
type Transport struct {
	client SESAPI
	opts   Options
}

// NewTransport creates an SES transport.
func NewTransport(client SESAPI, opts Options) *Transport {
	return &Transport{client: client, opts: opts}
}

// NewFromConfig creates an SES transport from an AWS config.
func NewFromConfig(cfg aws.Config, opts Options) *Transport {
	return NewTransport(sesv2.NewFromConfig(cfg), opts)
}

// Send delivers msg and returns the SES message id.
func (t *Transport) Send(ctx context.Context, msg domain.EmailMessage) (string, error) {
	fromEmail, fromName := msg.FromEmail, msg.FromName
	if fromEmail == "" {
		fromEmail, fromName = t.opts.FromEmail, t.opts.FromName
	}
	if fromEmail == "" {
		return "", fmt.Errorf("no sender address configured")
	}
	from := (&mail.Address{Name: fromName, Address: fromEmail}).String()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")},
				},
				Headers: messageHeaders(msg.Headers),
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String(CampaignTag), Value: aws.String(msg.CampaignID)},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if t.opts.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(t.opts.ConfigurationSet)
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return "", err
	}
	messageID := aws.ToString(out.MessageId)
	logger.Debug("[SES] sent", "email", msg.Email, "message_id", messageID)
	return messageID, nil
}

// messageHeaders converts headers in a stable order.
func messageHeaders(h map[string]string) []types.MessageHeader {
	if len(h) == 0 {
		return nil
	}
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]types.MessageHeader, 0, len(names))
	for _, k := range names {
		out = append(out, types.MessageHeader{Name: aws.String(k), Value: aws.String(h[k])})
	}
	return out
}
