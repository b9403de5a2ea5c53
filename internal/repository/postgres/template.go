package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrTemplateNotFound is returned for an unknown template id.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateRepo serves stored template HTML.
type TemplateRepo struct{ db *sqlx.DB }

func NewTemplateRepo(db *sqlx.DB) *TemplateRepo { return &TemplateRepo{db: db} }

func (r *TemplateRepo) HTML(ctx context.Context, templateID string) (string, error) {
	var html string
	err := r.db.GetContext(ctx, &html, `SELECT html_content FROM email_templates WHERE id = $1`, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}
	if err != nil {
		return "", fmt.Errorf("get template: %w", err)
	}
	return html, nil
}
