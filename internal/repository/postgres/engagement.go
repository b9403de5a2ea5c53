package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
)

const engagementColumns = `campaign_id, email, user_id, first_name, last_name, variables, is_test_email,
	message_id, sent, delivered, opened, clicked, bounced, unsubscribed, open_count, click_count,
	sent_at, delivered_at, first_opened_at, last_opened_at, first_clicked_at, last_clicked_at,
	bounced_at, unsubscribed_at, device_type, ip_address, user_agent, last_clicked_url, link_clicks,
	bounce_type, bounce_reason, converted, conversion_count, revenue, converted_at, created_at, updated_at`

// engagementRow shadows the map fields of the record with their JSONB columns.
type engagementRow struct {
	domain.EngagementRecord
	VariablesJSON  []byte `db:"variables"`
	LinkClicksJSON []byte `db:"link_clicks"`
}

func (r *engagementRow) toDomain() (domain.EngagementRecord, error) {
	rec := r.EngagementRecord
	if len(r.VariablesJSON) > 0 {
		if err := json.Unmarshal(r.VariablesJSON, &rec.Variables); err != nil {
			return rec, fmt.Errorf("decode variables: %w", err)
		}
	}
	if len(r.LinkClicksJSON) > 0 {
		if err := json.Unmarshal(r.LinkClicksJSON, &rec.LinkClicks); err != nil {
			return rec, fmt.Errorf("decode link clicks: %w", err)
		}
	}
	return rec, nil
}

func mapColumn[V any](m map[string]V) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// EngagementRepo implements engagement.Repository against PostgreSQL.
type EngagementRepo struct{ db *sqlx.DB }

// NewEngagementRepo creates a Postgres-backed engagement repository.
func NewEngagementRepo(db *sqlx.DB) *EngagementRepo { return &EngagementRepo{db: db} }

// Upsert runs in one transaction: insert the seed if the key is new, lock
// the row, apply fn and write it back.
func (r *EngagementRepo) Upsert(ctx context.Context, campaignID, email string, seed domain.EngagementRecord, fn engagement.MutateFunc) (*domain.EngagementRecord, error) {
	seed.CampaignID, seed.Email = campaignID, email

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	res, err := insertRecord(ctx, tx, seed)
	if err != nil {
		return nil, fmt.Errorf("seed engagement: %w", err)
	}
	created, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}

	var row engagementRow
	if err := tx.GetContext(ctx, &row, `SELECT `+engagementColumns+` FROM email_engagement
		WHERE campaign_id = $1 AND email = $2 FOR UPDATE`, campaignID, email); err != nil {
		return nil, fmt.Errorf("lock engagement: %w", err)
	}
	rec, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	if err := fn(&rec, created); err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.Now().UTC()
	if err := updateRecord(ctx, tx, &rec); err != nil {
		return nil, fmt.Errorf("write engagement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit engagement: %w", err)
	}
	return &rec, nil
}

// insertRecord inserts rec unless its key exists.
func insertRecord(ctx context.Context, q sqlx.ExecerContext, rec domain.EngagementRecord) (sql.Result, error) {
	vars, err := mapColumn(rec.Variables)
	if err != nil {
		return nil, err
	}
	clicks, err := mapColumn(rec.LinkClicks)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	stmt := `INSERT INTO email_engagement (` + engagementColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		$20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37)
		ON CONFLICT (campaign_id, email) DO NOTHING`
	return q.ExecContext(ctx, stmt,
		rec.CampaignID, rec.Email, rec.UserID, rec.FirstName, rec.LastName, vars, rec.IsTestEmail,
		rec.MessageID, rec.Sent, rec.Delivered, rec.Opened, rec.Clicked, rec.Bounced, rec.Unsubscribed,
		rec.OpenCount, rec.ClickCount, rec.SentAt, rec.DeliveredAt, rec.FirstOpenedAt, rec.LastOpenedAt,
		rec.FirstClickedAt, rec.LastClickedAt, rec.BouncedAt, rec.UnsubscribedAt, rec.DeviceType,
		rec.IPAddress, rec.UserAgent, rec.LastClickedURL, clicks, rec.BounceType, rec.BounceReason,
		rec.Converted, rec.ConversionCount, rec.Revenue, rec.ConvertedAt, rec.CreatedAt, rec.UpdatedAt)
}

func updateRecord(ctx context.Context, q sqlx.ExecerContext, rec *domain.EngagementRecord) error {
	vars, err := mapColumn(rec.Variables)
	if err != nil {
		return err
	}
	clicks, err := mapColumn(rec.LinkClicks)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		UPDATE email_engagement SET
			user_id = $3, first_name = $4, last_name = $5, variables = $6, is_test_email = $7,
			message_id = $8, sent = $9, delivered = $10, opened = $11, clicked = $12, bounced = $13,
			unsubscribed = $14, open_count = $15, click_count = $16, sent_at = $17, delivered_at = $18,
			first_opened_at = $19, last_opened_at = $20, first_clicked_at = $21, last_clicked_at = $22,
			bounced_at = $23, unsubscribed_at = $24, device_type = $25, ip_address = $26,
			user_agent = $27, last_clicked_url = $28, link_clicks = $29, bounce_type = $30,
			bounce_reason = $31, converted = $32, conversion_count = $33, revenue = $34,
			converted_at = $35, updated_at = $36
		WHERE campaign_id = $1 AND email = $2
	`, rec.CampaignID, rec.Email, rec.UserID, rec.FirstName, rec.LastName, vars, rec.IsTestEmail,
		rec.MessageID, rec.Sent, rec.Delivered, rec.Opened, rec.Clicked, rec.Bounced,
		rec.Unsubscribed, rec.OpenCount, rec.ClickCount, rec.SentAt, rec.DeliveredAt,
		rec.FirstOpenedAt, rec.LastOpenedAt, rec.FirstClickedAt, rec.LastClickedAt,
		rec.BouncedAt, rec.UnsubscribedAt, rec.DeviceType, rec.IPAddress,
		rec.UserAgent, rec.LastClickedURL, clicks, rec.BounceType,
		rec.BounceReason, rec.Converted, rec.ConversionCount, rec.Revenue,
		rec.ConvertedAt, rec.UpdatedAt)
	return err
}

// InsertPending writes the send snapshot and stamps campaigns.snapshot_at
// in one transaction.
func (r *EngagementRepo) InsertPending(ctx context.Context, campaignID string, records []domain.EngagementRecord) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for i := range records {
		rec := records[i]
		rec.CampaignID = campaignID
		res, err := insertRecord(ctx, tx, rec)
		if err != nil {
			return 0, fmt.Errorf("insert pending %d: %w", i, err)
		}
		if ok, _ := rowsAffected(res); ok {
			inserted++
			continue
		}
		res, err = resetTestRecord(ctx, tx, rec)
		if err != nil {
			return 0, fmt.Errorf("reset test record %d: %w", i, err)
		}
		if ok, _ := rowsAffected(res); ok {
			inserted++
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE campaigns SET snapshot_at = NOW(), updated_at = NOW() WHERE id = $1`, campaignID); err != nil {
		return 0, fmt.Errorf("mark snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}
	return inserted, nil
}

// resetTestRecord turns a test record into a pending real one. Real
// records do not match.
func resetTestRecord(ctx context.Context, q sqlx.ExecerContext, rec domain.EngagementRecord) (sql.Result, error) {
	vars, err := mapColumn(rec.Variables)
	if err != nil {
		return nil, err
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return q.ExecContext(ctx, `
		UPDATE email_engagement SET
			user_id = $3, first_name = $4, last_name = $5, variables = $6, is_test_email = FALSE,
			message_id = '', sent = FALSE, delivered = FALSE, opened = FALSE, clicked = FALSE,
			bounced = FALSE, unsubscribed = FALSE, open_count = 0, click_count = 0, sent_at = NULL,
			delivered_at = NULL, first_opened_at = NULL, last_opened_at = NULL,
			first_clicked_at = NULL, last_clicked_at = NULL, bounced_at = NULL,
			unsubscribed_at = NULL, device_type = '', ip_address = '', user_agent = '',
			last_clicked_url = '', link_clicks = NULL, bounce_type = '', bounce_reason = '',
			converted = FALSE, conversion_count = 0, revenue = 0, converted_at = NULL,
			updated_at = $7
		WHERE campaign_id = $1 AND email = $2 AND is_test_email
	`, rec.CampaignID, rec.Email, rec.UserID, rec.FirstName, rec.LastName, vars, updatedAt)
}

func (r *EngagementRepo) ListPending(ctx context.Context, campaignID string) ([]domain.EngagementRecord, error) {
	return r.list(ctx, `WHERE campaign_id = $1 AND NOT sent AND NOT is_test_email ORDER BY email`, campaignID)
}

func (r *EngagementRepo) ListByCampaign(ctx context.Context, campaignID string) ([]domain.EngagementRecord, error) {
	return r.list(ctx, `WHERE campaign_id = $1 ORDER BY email`, campaignID)
}

func (r *EngagementRepo) ListWindow(ctx context.Context, from, to time.Time) ([]domain.EngagementRecord, error) {
	return r.list(ctx, `WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`, from, to)
}

func (r *EngagementRepo) list(ctx context.Context, where string, args ...interface{}) ([]domain.EngagementRecord, error) {
	var rows []engagementRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+engagementColumns+` FROM email_engagement `+where, args...); err != nil {
		return nil, fmt.Errorf("list engagement: %w", err)
	}
	out := make([]domain.EngagementRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *EngagementRepo) DeleteByCampaign(ctx context.Context, campaignID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_engagement WHERE campaign_id = $1`, campaignID)
	if err != nil {
		return 0, fmt.Errorf("delete engagement: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
