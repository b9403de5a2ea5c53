package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/app"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/config"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/worker"
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
		logger.Error("[Worker] startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	scheduler := worker.NewCampaignScheduler(a.Campaigns, a.Sender, worker.SchedulerConfig{
		PollInterval: cfg.Scheduler.Interval(),
		StaleAfter:   cfg.Scheduler.StaleAfter(),
	})
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("[Worker] scheduler start failed", "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	if consumer := a.TrackingConsumer(); consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	} else {
		logger.Info("[Worker] no tracking queue configured, consumer disabled")
	}

	logger.Info("[Worker] running")
	<-ctx.Done()

	logger.Info("[Worker] shutting down")
	scheduler.Stop()
	wg.Wait()
	logger.Info("[Worker] stopped")
}
