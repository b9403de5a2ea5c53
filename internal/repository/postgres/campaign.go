package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
)

const campaignColumns = `id, name, subject, html_content, template_id, from_name, from_email, reply_to,
	category, filter, emails, variants, status, scheduled_at, started_at, completed_at, failed_at,
	snapshot_at, error_message, sent_count, delivered_count, opened_count, clicked_count, bounced_count,
	unsubscribed_count, failed_count, duplicated_from, created_by, created_at, updated_at`

type campaignRow struct {
	ID                string     `db:"id"`
	Name              string     `db:"name"`
	Subject           string     `db:"subject"`
	HTMLContent       string     `db:"html_content"`
	TemplateID        string     `db:"template_id"`
	FromName          string     `db:"from_name"`
	FromEmail         string     `db:"from_email"`
	ReplyTo           string     `db:"reply_to"`
	Category          string     `db:"category"`
	Filter            []byte     `db:"filter"`
	Emails            []byte     `db:"emails"`
	Variants          []byte     `db:"variants"`
	Status            string     `db:"status"`
	ScheduledAt       *time.Time `db:"scheduled_at"`
	StartedAt         *time.Time `db:"started_at"`
	CompletedAt       *time.Time `db:"completed_at"`
	FailedAt          *time.Time `db:"failed_at"`
	SnapshotAt        *time.Time `db:"snapshot_at"`
	ErrorMessage      string     `db:"error_message"`
	SentCount         int        `db:"sent_count"`
	DeliveredCount    int        `db:"delivered_count"`
	OpenedCount       int        `db:"opened_count"`
	ClickedCount      int        `db:"clicked_count"`
	BouncedCount      int        `db:"bounced_count"`
	UnsubscribedCount int        `db:"unsubscribed_count"`
	FailedCount       int        `db:"failed_count"`
	DuplicatedFrom    string     `db:"duplicated_from"`
	CreatedBy         string     `db:"created_by"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (r *campaignRow) toDomain() (*domain.Campaign, error) {
	c := &domain.Campaign{
		ID:           r.ID,
		Name:         r.Name,
		Subject:      r.Subject,
		HTMLContent:  r.HTMLContent,
		TemplateID:   r.TemplateID,
		FromName:     r.FromName,
		FromEmail:    r.FromEmail,
		ReplyTo:      r.ReplyTo,
		Category:     domain.CampaignCategory(r.Category),
		Status:       domain.CampaignStatus(r.Status),
		ScheduledAt:  r.ScheduledAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		FailedAt:     r.FailedAt,
		SnapshotAt:   r.SnapshotAt,
		ErrorMessage: r.ErrorMessage,
		Counters: domain.CampaignCounters{
			Sent:         r.SentCount,
			Delivered:    r.DeliveredCount,
			Opened:       r.OpenedCount,
			Clicked:      r.ClickedCount,
			Bounced:      r.BouncedCount,
			Unsubscribed: r.UnsubscribedCount,
		},
		FailedCount:    r.FailedCount,
		DuplicatedFrom: r.DuplicatedFrom,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if len(r.Filter) > 0 {
		var f domain.RecipientFilterSpec
		if err := json.Unmarshal(r.Filter, &f); err != nil {
			return nil, fmt.Errorf("decode filter of %s: %w", r.ID, err)
		}
		c.Filter = &f
	}
	if len(r.Emails) > 0 {
		if err := json.Unmarshal(r.Emails, &c.Emails); err != nil {
			return nil, fmt.Errorf("decode emails of %s: %w", r.ID, err)
		}
	}
	if len(r.Variants) > 0 {
		if err := json.Unmarshal(r.Variants, &c.Variants); err != nil {
			return nil, fmt.Errorf("decode variants of %s: %w", r.ID, err)
		}
	}
	return c, nil
}

// jsonColumn encodes v for a nullable JSONB column.
func jsonColumn(v interface{}, empty bool) ([]byte, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

func audienceColumns(c *domain.Campaign) (filter, emails, variants []byte, err error) {
	if filter, err = jsonColumn(c.Filter, c.Filter == nil); err != nil {
		return
	}
	if emails, err = jsonColumn(c.Emails, len(c.Emails) == 0); err != nil {
		return
	}
	variants, err = jsonColumn(c.Variants, len(c.Variants) == 0)
	return
}

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sqlx.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sqlx.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	var row campaignRow
	err := r.db.GetContext(ctx, &row, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return row.toDomain()
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
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
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(name ILIKE $%[1]d OR subject ILIKE $%[1]d)", "%"+s+"%")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM campaigns`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM campaigns%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		campaignColumns, clause, len(args)+1, len(args)+2)
	out, err := r.selectCampaigns(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	return out, total, nil
}

func (r *CampaignRepo) selectCampaigns(ctx context.Context, q string, args ...interface{}) ([]domain.Campaign, error) {
	var rows []campaignRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Campaign, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	filter, emails, variants, err := audienceColumns(c)
	if err != nil {
		return fmt.Errorf("encode campaign: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, subject, html_content, template_id, from_name, from_email, reply_to,
			 category, filter, emails, variants, status, scheduled_at, duplicated_from,
			 created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, c.ID, c.Name, c.Subject, c.HTMLContent, c.TemplateID, c.FromName, c.FromEmail, c.ReplyTo,
		string(c.Category), filter, emails, variants, string(c.Status), c.ScheduledAt, c.DuplicatedFrom,
		c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) UpdateContent(ctx context.Context, c *domain.Campaign, from []domain.CampaignStatus) (bool, error) {
	filter, emails, variants, err := audienceColumns(c)
	if err != nil {
		return false, fmt.Errorf("encode campaign: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			name = $1, subject = $2, html_content = $3, template_id = $4, from_name = $5,
			from_email = $6, reply_to = $7, category = $8, filter = $9, emails = $10,
			variants = $11, updated_at = $12
		WHERE id = $13 AND status = ANY($14)
	`, c.Name, c.Subject, c.HTMLContent, c.TemplateID, c.FromName,
		c.FromEmail, c.ReplyTo, string(c.Category), filter, emails,
		variants, c.UpdatedAt, c.ID, statusArray(from))
	if err != nil {
		return false, fmt.Errorf("update campaign: %w", err)
	}
	return rowsAffected(res)
}

func (r *CampaignRepo) Transition(ctx context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus, patch campaign.TransitionPatch) (bool, error) {
	sets := []string{"status = $1", "updated_at = NOW()"}
	args := []interface{}{string(to)}
	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	switch {
	case patch.ScheduledAt != nil:
		set("scheduled_at", *patch.ScheduledAt)
	case patch.ClearSchedule:
		sets = append(sets, "scheduled_at = NULL")
	}
	if patch.StartedAt != nil {
		set("started_at", *patch.StartedAt)
	}
	if patch.CompletedAt != nil {
		set("completed_at", *patch.CompletedAt)
	}
	if patch.FailedAt != nil {
		set("failed_at", *patch.FailedAt)
	}
	if patch.ErrorMessage != nil {
		set("error_message", *patch.ErrorMessage)
	}

	q := fmt.Sprintf(`UPDATE campaigns SET %s WHERE id = $%d AND status = ANY($%d)`,
		strings.Join(sets, ", "), len(args)+1, len(args)+2)
	res, err := r.db.ExecContext(ctx, q, append(args, id, statusArray(from))...)
	if err != nil {
		return false, fmt.Errorf("transition campaign: %w", err)
	}
	return rowsAffected(res)
}

func (r *CampaignRepo) IncrementCounters(ctx context.Context, id string, d domain.CampaignCounters) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			sent_count = sent_count + $1,
			delivered_count = GREATEST(delivered_count + $2, 0),
			opened_count = opened_count + $3,
			clicked_count = clicked_count + $4,
			bounced_count = bounced_count + $5,
			unsubscribed_count = unsubscribed_count + $6,
			updated_at = NOW()
		WHERE id = $7
	`, d.Sent, d.Delivered, d.Opened, d.Clicked, d.Bounced, d.Unsubscribed, id)
	if err != nil {
		return fmt.Errorf("increment counters: %w", err)
	}
	return nil
}

func (r *CampaignRepo) SetCounters(ctx context.Context, id string, c domain.CampaignCounters) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET
			sent_count = $1, delivered_count = $2, opened_count = $3,
			clicked_count = $4, bounced_count = $5, unsubscribed_count = $6,
			updated_at = NOW()
		WHERE id = $7
	`, c.Sent, c.Delivered, c.Opened, c.Clicked, c.Bounced, c.Unsubscribed, id)
	if err != nil {
		return fmt.Errorf("set counters: %w", err)
	}
	return nil
}

func (r *CampaignRepo) AddFailed(ctx context.Context, id string, n int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET failed_count = failed_count + $1, updated_at = NOW() WHERE id = $2`, n, id)
	if err != nil {
		return fmt.Errorf("add failed: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string, from []domain.CampaignStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND status = ANY($2)`, id, statusArray(from))
	if err != nil {
		return false, fmt.Errorf("delete campaign: %w", err)
	}
	return rowsAffected(res)
}

func (r *CampaignRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Campaign, error) {
	out, err := r.selectCampaigns(ctx, `SELECT `+campaignColumns+` FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	return out, nil
}

func (r *CampaignRepo) ListStaleSending(ctx context.Context, before time.Time, limit int) ([]domain.Campaign, error) {
	out, err := r.selectCampaigns(ctx, `SELECT `+campaignColumns+` FROM campaigns
		WHERE status = 'sending' AND updated_at < $1
		ORDER BY updated_at LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale campaigns: %w", err)
	}
	return out, nil
}
