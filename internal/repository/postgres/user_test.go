package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
)

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows(columnNames(userColumns))
}

func TestFindUsersOrsSubscriptionPredicates(t *testing.T) {
	db, mock := newMock(t)
	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE \(subscriptions && \$1 OR cardinality\(subscriptions\) = 0\) AND role = ANY\(\$2\) AND last_login >= \$3 ORDER BY email`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), since).
		WillReturnRows(userRows().
			AddRow("u1", "a@x.com", "Ann", "Lee", "active", "customer", true, false, true, true, true))

	users, err := NewUserRepo(db).FindUsers(context.Background(), recipient.UserQuery{
		Subscriptions:        []string{"pro"},
		NoActiveSubscription: true,
		Roles:                []string{"customer"},
		LastLoginSince:       &since,
	})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ann", users[0].FirstName)
	assert.False(t, users[0].Preferences.Newsletter)
	assert.True(t, users[0].Preferences.Marketing)
}

func TestFindUsersWithoutPredicates(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM users ORDER BY email`).WillReturnRows(userRows())

	users, err := NewUserRepo(db).FindUsers(context.Background(), recipient.UserQuery{})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestPreferencesByEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE lower\(email\) = ANY\(\$1\)`).
		WillReturnRows(userRows().
			AddRow("u1", "Ann@X.com", "Ann", "", "active", "customer", false, true, true, true, true))

	prefs, err := NewUserRepo(db).PreferencesByEmail(context.Background(), []string{"ann@x.com", "bob@x.com"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Preferences{
		"ann@x.com": {Marketing: false, Newsletter: true, Events: true, Promotional: true, Transactional: true},
	}, prefs)
}

func TestDisableOptionalMail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET`).
		WithArgs("ann@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := NewUserRepo(db).DisableOptionalMail(context.Background(), " Ann@X.com ")
	require.NoError(t, err)
	assert.True(t, ok)
}
