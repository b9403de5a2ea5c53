// Package app wires the campaign engine's components from configuration.
// Each binary builds an App and uses the parts it needs.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/config"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/contactlist"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/awscfg"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/distlock"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/report"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/repository/postgres"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/analytics"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/sending"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/ses"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/tracking"
)

// App holds the wired services. Redis, SQS and the report exporter are nil
// when not configured.
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	AWS    aws.Config

	Campaigns    *campaign.Service
	Engagement   *engagement.Service
	Suppressions *suppression.Service
	Resolver     *recipient.Resolver
	Segments     *recipient.SegmentService
	Analytics    *analytics.Aggregator
	Sender       *sending.Orchestrator
	Feedback     *ses.FeedbackProcessor
	Reports      *report.Exporter
	S3           *s3.Client
	SQS          *sqs.Client
}

// New connects to Postgres (and Redis and AWS when configured) and builds
// every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db}

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn("[App] redis unreachable, using Postgres advisory locks", "addr", cfg.Redis.Addr, "error", err)
			_ = a.Redis.Close()
			a.Redis = nil
		} else {
			logger.Info("[App] redis connected", "addr", cfg.Redis.Addr)
		}
	}

	a.AWS, err = awscfg.Load(ctx, cfg.SES.Region, cfg.SES.AccessKey, cfg.SES.SecretKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("aws config: %w", err)
	}
	if cfg.Tracking.SQSQueueURL != "" {
		a.SQS = sqs.NewFromConfig(a.AWS)
	}

	a.build()
	return a, nil
}

func (a *App) build() {
	cfg := a.Config

	campaigns := postgres.NewCampaignRepo(a.DB)
	users := postgres.NewUserRepo(a.DB)
	segments := postgres.NewSegmentRepo(a.DB)

	a.Suppressions = suppression.NewService(postgres.NewSuppressionRepo(a.DB), users)
	a.Engagement = engagement.NewService(postgres.NewEngagementRepo(a.DB), campaigns, a.Suppressions, users)
	a.Campaigns = campaign.NewService(campaigns, a.Engagement)
	a.Analytics = analytics.NewAggregator(a.Engagement, campaigns)

	var lists recipient.ContactListProvider
	if cfg.ContactList.Enabled && cfg.ContactList.BaseURL != "" {
		lists = contactlist.NewClient(contactlist.Config{
			BaseURL:    cfg.ContactList.BaseURL,
			APIKey:     cfg.ContactList.APIKey,
			PageSize:   cfg.ContactList.PageSize,
			Timeout:    cfg.ContactList.Timeout(),
			MaxRetries: cfg.ContactList.MaxRetries,
		})
	}
	a.Resolver = recipient.NewResolver(users, postgres.NewRegistrationRepo(a.DB), lists, segments)
	a.Segments = recipient.NewSegmentService(segments, a.Resolver)

	a.Sender = sending.NewOrchestrator(sending.Deps{
		Campaigns:   a.Campaigns,
		Resolver:    a.Resolver,
		Suppression: a.Suppressions,
		Engagement:  a.Engagement,
		Transport: ses.NewFromConfig(a.AWS, ses.Options{
			ConfigurationSet: cfg.SES.ConfigurationSet,
			FromEmail:        cfg.SES.FromEmail,
			FromName:         cfg.SES.FromName,
		}),
		Locks:      distlock.NewFactory(a.Redis, a.DB.DB, "mailer", cfg.Sending.LockTTL()),
		Templates:  postgres.NewTemplateRepo(a.DB),
		Reconciler: a.Analytics,
		Segments:   a.Segments,
	}, sending.Config{
		BatchSize:     cfg.Sending.BatchSize,
		Concurrency:   cfg.Sending.Concurrency,
		RatePerSecond: cfg.Sending.RatePerSecond,
		Timeout:       cfg.Sending.Timeout(),
		BaseURL:       cfg.Tracking.BaseURL,
	})

	a.Feedback = ses.NewFeedbackProcessor(a.Engagement, http.DefaultClient)

	if cfg.Reports.S3Bucket != "" {
		s3cfg := a.AWS.Copy()
		if cfg.Reports.S3Region != "" {
			s3cfg.Region = cfg.Reports.S3Region
		}
		a.S3 = s3.NewFromConfig(s3cfg)
		a.Reports = report.NewExporter(a.S3, a.Analytics, cfg.Reports.S3Bucket, cfg.Reports.Prefix)
	}
}

// TrackingRecorder is where tracking hits go: the SQS queue when one is
// configured, otherwise straight to the engagement store.
func (a *App) TrackingRecorder() tracking.Recorder {
	if a.SQS != nil {
		return tracking.NewPublisher(a.SQS, a.Config.Tracking.SQSQueueURL)
	}
	return a.Engagement
}

// TrackingConsumer drains the tracking queue, or is nil without one.
func (a *App) TrackingConsumer() *tracking.Consumer {
	if a.SQS == nil {
		return nil
	}
	return tracking.NewConsumer(a.SQS, a.Config.Tracking.SQSQueueURL, a.Engagement)
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
