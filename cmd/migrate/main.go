package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/config"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/repository/postgres"
)

// usage: migrate [-config path] [-max n] up|down|status
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config (optional)")
	maxN := flag.Int("max", 0, "maximum migrations to apply (0 = all; down defaults to 1)")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Redact())
	defer logger.Sync()

	if cfg.Database.URL == "" {
		logger.Error("[Migrate] DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := postgres.Open(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("[Migrate] connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	switch cmd {
	case "up":
		n, err := postgres.Migrate(db.DB, migrate.Up, *maxN)
		if err != nil {
			logger.Error("[Migrate] up failed", "error", err)
			os.Exit(1)
		}
		logger.Info("[Migrate] applied", "count", n)
	case "down":
		limit := *maxN
		if limit == 0 {
			limit = 1
		}
		n, err := postgres.Migrate(db.DB, migrate.Down, limit)
		if err != nil {
			logger.Error("[Migrate] down failed", "error", err)
			os.Exit(1)
		}
		logger.Info("[Migrate] rolled back", "count", n)
	case "status":
		lines, err := postgres.MigrationStatus(db.DB)
		if err != nil {
			logger.Error("[Migrate] status failed", "error", err)
			os.Exit(1)
		}
		for _, l := range lines {
			fmt.Println(l)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down or status)\n", cmd)
		os.Exit(2)
	}
}
