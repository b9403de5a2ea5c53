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

	"github.com/yordy89/day-trade-dak-api-sub005/internal/api"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/app"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/config"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/tracking"
)

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

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("[Server] startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	deps := api.Deps{
		Campaigns:    a.Campaigns,
		Sender:       a.Sender,
		Resolver:     a.Resolver,
		Segments:     a.Segments,
		Suppressions: a.Suppressions,
		Analytics:    a.Analytics,
		Feedback:     a.Feedback,
	}
	var bucket api.BucketHeader
	if a.Reports != nil {
		deps.Reports = a.Reports
		bucket = a.S3
	}

	// Background sends outlive requests but stop with the process.
	sendCtx, cancelSends := context.WithCancel(context.Background())
	defer cancelSends()
	handlers := api.NewHandlers(sendCtx, deps)

	health := api.NewHealthChecker(a.DB.DB, a.Redis, bucket, cfg.Reports.S3Bucket)
	public := tracking.NewHandler(a.TrackingRecorder(), cfg.Tracking.DefaultLandingURL, cfg.Tracking.ConfirmationURL)
	srv := api.NewServer(api.NewRouter(cfg.Server, handlers, health, public))

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	errc := make(chan error, 1)
	go func() {
		logger.Info("[Server] listening", "addr", addr)
		errc <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[Server] listen failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("[Server] shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("[Server] shutdown", "error", err)
	}

	// Interrupted sends resume from their snapshot on the next start.
	cancelSends()
	handlers.Wait()
	logger.Info("[Server] stopped")
}
