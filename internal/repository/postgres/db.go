// Package postgres implements the service repositories on PostgreSQL with
// sqlx, and owns the schema migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/config"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationTable = "schema_migrations"

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrations returns the embedded migration source.
func Migrations() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFiles, Root: "migrations"}
}

// Migrate applies up to max migrations in dir; max 0 applies all.
func Migrate(db *sql.DB, dir migrate.MigrationDirection, max int) (int, error) {
	ms := migrate.MigrationSet{TableName: migrationTable}
	n, err := ms.ExecMax(db, "postgres", Migrations(), dir, max)
	if err != nil {
		return n, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("[Postgres] migrations applied", "count", n, "direction", directionName(dir))
	return n, nil
}

// MigrationStatus lists the applied migration ids.
func MigrationStatus(db *sql.DB) ([]string, error) {
	ms := migrate.MigrationSet{TableName: migrationTable}
	records, err := ms.GetMigrationRecords(db, "postgres")
	if err != nil {
		return nil, fmt.Errorf("migration records: %w", err)
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Id)
	}
	return ids, nil
}

func directionName(dir migrate.MigrationDirection) string {
	if dir == migrate.Down {
		return "down"
	}
	return "up"
}

func statusArray[T ~string](in []T) interface{} {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return pq.Array(out)
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
