package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
)

// RegistrationRepo reads event registrations.
type RegistrationRepo struct{ db *sqlx.DB }

func NewRegistrationRepo(db *sqlx.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

func (r *RegistrationRepo) FindRegistrants(ctx context.Context, eventIDs []string, paymentStatuses []string) ([]domain.Registration, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var out []domain.Registration
	err := r.db.SelectContext(ctx, &out, `
		SELECT event_id, email, user_id, first_name, last_name, payment_status
		FROM event_registrations
		WHERE event_id = ANY($1) AND payment_status = ANY($2)
		ORDER BY email
	`, pq.Array(eventIDs), pq.Array(paymentStatuses))
	if err != nil {
		return nil, fmt.Errorf("find registrants: %w", err)
	}
	return out, nil
}
