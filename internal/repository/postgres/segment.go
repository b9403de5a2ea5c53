package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
)

type segmentRow struct {
	ID             string     `db:"id"`
	Name           string     `db:"name"`
	Description    string     `db:"description"`
	Filter         []byte     `db:"filter"`
	EstimatedCount int        `db:"estimated_count"`
	LastCalculated *time.Time `db:"last_calculated"`
	UsageCount     int        `db:"usage_count"`
	LastUsedAt     *time.Time `db:"last_used_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// SegmentRepo implements recipient.SegmentStore against PostgreSQL.
type SegmentRepo struct{ db *sqlx.DB }

func NewSegmentRepo(db *sqlx.DB) *SegmentRepo { return &SegmentRepo{db: db} }

func (r *SegmentRepo) Create(ctx context.Context, s *domain.RecipientSegment) error {
	filter, err := json.Marshal(s.Filter)
	if err != nil {
		return fmt.Errorf("encode segment filter: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recipient_segments
			(id, name, description, filter, estimated_count, last_calculated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.Name, s.Description, filter, s.EstimatedCount, s.LastCalculated, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	return nil
}

func (r *SegmentRepo) Get(ctx context.Context, id string) (*domain.RecipientSegment, error) {
	var row segmentRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, name, description, filter, estimated_count, last_calculated,
		       usage_count, last_used_at, created_at, updated_at
		FROM recipient_segments WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, recipient.ErrSegmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	s := &domain.RecipientSegment{
		ID:             row.ID,
		Name:           row.Name,
		Description:    row.Description,
		EstimatedCount: row.EstimatedCount,
		LastCalculated: row.LastCalculated,
		UsageCount:     row.UsageCount,
		LastUsedAt:     row.LastUsedAt,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Filter, &s.Filter); err != nil {
		return nil, fmt.Errorf("decode segment filter: %w", err)
	}
	return s, nil
}

func (r *SegmentRepo) UpdateEstimate(ctx context.Context, id string, count int, at time.Time) error {
	return r.exec(ctx, `UPDATE recipient_segments
		SET estimated_count = $1, last_calculated = $2, updated_at = NOW() WHERE id = $3`, count, at, id)
}

func (r *SegmentRepo) RecordUsage(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE recipient_segments
		SET usage_count = usage_count + 1, last_used_at = $1, updated_at = NOW() WHERE id = $2`, at, id)
}

func (r *SegmentRepo) exec(ctx context.Context, q string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return recipient.ErrSegmentNotFound
	}
	return nil
}
