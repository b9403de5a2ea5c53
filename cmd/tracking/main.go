package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/app"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/config"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/awscfg"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/tracking"
)

// With a queue configured the tracking service only publishes hits to SQS
// and runs without a database connection; cmd/worker drains the queue.
// Without one it writes engagement records directly.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Redact())
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder tracking.Recorder
	if cfg.Tracking.SQSQueueURL != "" {
		awsCfg, err := awscfg.Load(ctx, cfg.SES.Region, cfg.SES.AccessKey, cfg.SES.SecretKey)
		if err != nil {
			logger.Error("[Tracking] aws config", "error", err)
			os.Exit(1)
		}
		recorder = tracking.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Tracking.SQSQueueURL)
		logger.Info("[Tracking] publishing hits to SQS", "queue", cfg.Tracking.SQSQueueURL)
	} else {
		a, err := app.New(ctx, cfg)
		if err != nil {
			logger.Error("[Tracking] startup failed", "error", err)
			os.Exit(1)
		}
		defer a.Close()
		recorder = a.Engagement
		logger.Info("[Tracking] writing hits to Postgres")
	}
	handler := tracking.NewHandler(recorder, cfg.Tracking.DefaultLandingURL, cfg.Tracking.ConfirmationURL)

	port := cfg.Server.Port
	if os.Getenv("PORT") == "" {
		port = 8081
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler.Routes(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("[Tracking] listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[Tracking] listen failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("[Tracking] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("[Tracking] shutdown", "error", err)
	}
}
