package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
)

const suppressionColumns = `id, email, is_active, reason, source, campaign_id, user_id, ip_address,
	user_agent, unsubscribed_at, resubscribed_at, created_at, updated_at`

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sqlx.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sqlx.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

// Upsert reactivates an inactive row in place; an active row is left alone
// and reported as not newly suppressed.
func (r *SuppressionRepo) Upsert(ctx context.Context, e *domain.UnsubscribedEmail) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	var id string
	err := r.db.GetContext(ctx, &id, `
		INSERT INTO unsubscribed_emails
			(id, email, is_active, reason, source, campaign_id, user_id, ip_address, user_agent,
			 unsubscribed_at, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			is_active = TRUE, reason = EXCLUDED.reason, source = EXCLUDED.source,
			campaign_id = EXCLUDED.campaign_id, user_id = EXCLUDED.user_id,
			ip_address = EXCLUDED.ip_address, user_agent = EXCLUDED.user_agent,
			unsubscribed_at = EXCLUDED.unsubscribed_at, resubscribed_at = NULL, updated_at = NOW()
		WHERE NOT unsubscribed_emails.is_active
		RETURNING id
	`, e.ID, e.Email, string(e.Reason), string(e.Source), e.CampaignID, e.UserID, e.IPAddress, e.UserAgent,
		e.UnsubscribedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("suppress: %w", err)
	}
	e.ID = id
	return true, nil
}

func (r *SuppressionRepo) Get(ctx context.Context, email string) (*domain.UnsubscribedEmail, error) {
	var e domain.UnsubscribedEmail
	err := r.db.GetContext(ctx, &e, `SELECT `+suppressionColumns+` FROM unsubscribed_emails WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, suppression.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get suppression: %w", err)
	}
	return &e, nil
}

func (r *SuppressionRepo) ActiveAmong(ctx context.Context, emails []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(emails) == 0 {
		return out, nil
	}
	var found []string
	if err := r.db.SelectContext(ctx, &found,
		`SELECT email FROM unsubscribed_emails WHERE is_active AND email = ANY($1)`, pq.Array(emails)); err != nil {
		return nil, fmt.Errorf("active suppressions: %w", err)
	}
	for _, e := range found {
		out[e] = true
	}
	return out, nil
}

func (r *SuppressionRepo) Deactivate(ctx context.Context, email string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE unsubscribed_emails SET is_active = FALSE, resubscribed_at = $1, updated_at = NOW()
		WHERE email = $2 AND is_active
	`, at, email)
	if err != nil {
		return fmt.Errorf("deactivate suppression: %w", err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return suppression.ErrNotFound
	}
	return nil
}

func (r *SuppressionRepo) List(ctx context.Context, f suppression.ListFilter) ([]domain.UnsubscribedEmail, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var where []string
	var args []interface{}
	add := func(cond string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	if f.Reason != "" {
		add("reason = $%d", string(f.Reason))
	}
	if f.Source != "" {
		add("source = $%d", string(f.Source))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("email ILIKE $%d", "%"+s+"%")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM unsubscribed_emails`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	var out []domain.UnsubscribedEmail
	q := fmt.Sprintf(`SELECT %s FROM unsubscribed_emails%s ORDER BY unsubscribed_at DESC LIMIT $%d OFFSET $%d`,
		suppressionColumns, clause, len(args)+1, len(args)+2)
	if err := r.db.SelectContext(ctx, &out, q, append(args, limit, f.Offset)...); err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	return out, total, nil
}
