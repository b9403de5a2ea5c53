package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
)

type userRow struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Status    string `db:"status"`
	Role      string `db:"role"`
	domain.Preferences
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:          r.ID,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Status:      r.Status,
		Role:        r.Role,
		Preferences: r.Preferences,
	}
}

const userColumns = `id, email, first_name, last_name, status, role,
	pref_marketing, pref_newsletter, pref_events, pref_promotional, pref_transactional`

// UserRepo reads the internal user store: audience queries, mail
// preferences and the unsubscribe preference write-back.
type UserRepo struct{ db *sqlx.DB }

// NewUserRepo creates a Postgres-backed user repository.
func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// FindUsers returns users matching every predicate of q. The subscription
// predicates are OR-ed with each other.
func (r *UserRepo) FindUsers(ctx context.Context, q recipient.UserQuery) ([]domain.User, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var subs []string
	if len(q.Subscriptions) > 0 {
		subs = append(subs, "subscriptions && "+arg(pq.Array(q.Subscriptions)))
	}
	if q.NoActiveSubscription {
		subs = append(subs, "cardinality(subscriptions) = 0")
	}
	if len(subs) > 0 {
		where = append(where, "("+strings.Join(subs, " OR ")+")")
	}
	if len(q.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(pq.Array(q.Statuses))+")")
	}
	if len(q.Roles) > 0 {
		where = append(where, "role = ANY("+arg(pq.Array(q.Roles))+")")
	}
	if len(q.ModulePermissions) > 0 {
		where = append(where, "module_permissions && "+arg(pq.Array(q.ModulePermissions)))
	}
	if q.LastLoginSince != nil {
		where = append(where, "last_login >= "+arg(*q.LastLoginSince))
	}
	if q.RegisteredFrom != nil {
		where = append(where, "created_at >= "+arg(*q.RegisteredFrom))
	}
	if q.RegisteredTo != nil {
		where = append(where, "created_at <= "+arg(*q.RegisteredTo))
	}

	stmt := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY email"

	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// PreferencesByEmail returns the preferences of the users owning emails.
// Emails without a user are absent from the result.
func (r *UserRepo) PreferencesByEmail(ctx context.Context, emails []string) (map[string]domain.Preferences, error) {
	out := make(map[string]domain.Preferences)
	if len(emails) == 0 {
		return out, nil
	}
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = ANY($1)`, pq.Array(emails)); err != nil {
		return nil, fmt.Errorf("user preferences: %w", err)
	}
	for _, row := range rows {
		out[domain.NormalizeEmail(row.Email)] = row.Preferences
	}
	return out, nil
}

func (r *UserRepo) DisableOptionalMail(ctx context.Context, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			pref_marketing = FALSE, pref_newsletter = FALSE,
			pref_events = FALSE, pref_promotional = FALSE, updated_at = NOW()
		WHERE lower(email) = $1
	`, domain.NormalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("disable optional mail: %w", err)
	}
	return rowsAffected(res)
}
