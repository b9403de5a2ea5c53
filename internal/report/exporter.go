// Package report archives campaign analytics snapshots to S3.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

// ErrNotFound is returned when a snapshot object does not exist.
var ErrNotFound = errors.New("report not found")

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// AnalyticsSource computes a campaign summary.
type AnalyticsSource interface {
	Campaign(ctx context.Context, campaignID string) (*domain.CampaignAnalytics, error)
}

// Exporter writes analytics snapshots as JSON objects keyed
// {prefix}/{campaign id}/{timestamp}.json.
type Exporter struct {
	client    S3API
	analytics AnalyticsSource
	bucket    string
	prefix    string
	now       func() time.Time
}

// NewExporter creates an exporter.
func NewExporter(client S3API, analytics AnalyticsSource, bucket, prefix string) *Exporter {
	if prefix == "" {
		prefix = "campaign-reports"
	}
	return &Exporter{client: client, analytics: analytics, bucket: bucket, prefix: prefix, now: time.Now}
}

// Key returns the object key for a snapshot taken at.
func (e *Exporter) Key(campaignID string, at time.Time) string {
	return path.Join(e.prefix, campaignID, at.UTC().Format("20060102T150405Z")+".json")
}

// Export computes and stores a snapshot of campaignID, returning its key.
func (e *Exporter) Export(ctx context.Context, campaignID string) (string, error) {
	summary, err := e.analytics.Campaign(ctx, campaignID)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}

	key := e.Key(campaignID, e.now())
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject %s/%s: %w", e.bucket, key, err)
	}

	logger.Info("[Report] snapshot exported", "campaign_id", campaignID, "key", key, "bytes", len(body))
	return key, nil
}

// Load reads a stored snapshot.
func (e *Exporter) Load(ctx context.Context, key string) (*domain.CampaignAnalytics, error) {
	resp, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("S3 GetObject %s/%s: %w", e.bucket, key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading report body: %w", err)
	}
	var out domain.CampaignAnalytics
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &out, nil
}
