package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
)

var testTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestCampaignGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCampaignRepo(db)

	cols := columnNames(campaignColumns)
	mock.ExpectQuery(`SELECT (.+) FROM campaigns WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(rowOf(cols, map[string]driver.Value{
			"id":           "c1",
			"name":         "Spring sale",
			"subject":      "Hi {{first_name}}",
			"category":     "promotional",
			"status":       "draft",
			"filter":       []byte(`{"roles":["customer"],"exclude_list_ids":["l9"]}`),
			"emails":       []byte(`["a@x.com"]`),
			"opened_count": int64(4),
			"snapshot_at":  testTime,
		})...))

	c, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Spring sale", c.Name)
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.Equal(t, domain.CategoryPromotional, c.Category)
	require.NotNil(t, c.Filter)
	assert.Equal(t, []string{"customer"}, c.Filter.Roles)
	assert.Equal(t, []string{"l9"}, c.Filter.ExcludeListIDs)
	assert.Equal(t, []string{"a@x.com"}, c.Emails)
	assert.Equal(t, 4, c.Counters.Opened)
	assert.Nil(t, c.ScheduledAt)
	require.NotNil(t, c.SnapshotAt)
	assert.True(t, c.SnapshotAt.Equal(testTime))
}

func TestCampaignGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT (.+) FROM campaigns`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columnNames(campaignColumns)))

	_, err := NewCampaignRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestCampaignTransitionIsConditional(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCampaignRepo(db)
	started := testTime

	mock.ExpectExec(`UPDATE campaigns SET status = \$1, updated_at = NOW\(\), started_at = \$2 WHERE id = \$3 AND status = ANY\(\$4\)`).
		WithArgs("sending", started, "c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaigns SET status = \$1, updated_at = NOW\(\), scheduled_at = NULL WHERE id = \$2 AND status = ANY\(\$3\)`).
		WithArgs("draft", "c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Transition(context.Background(), "c1",
		[]domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled}, domain.CampaignSending,
		campaign.TransitionPatch{StartedAt: &started})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Transition(context.Background(), "c1",
		[]domain.CampaignStatus{domain.CampaignScheduled}, domain.CampaignDraft,
		campaign.TransitionPatch{ClearSchedule: true})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCampaignIncrementCounters(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE campaigns SET sent_count = sent_count \+ \$1`).
		WithArgs(3, -1, 2, 0, 1, 0, "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewCampaignRepo(db).IncrementCounters(context.Background(), "c1",
		domain.CampaignCounters{Sent: 3, Delivered: -1, Opened: 2, Bounced: 1})
	require.NoError(t, err)
}

func TestCampaignListBuildsFilters(t *testing.T) {
	db, mock := newMock(t)
	cols := columnNames(campaignColumns)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns WHERE status = \$1 AND \(name ILIKE \$2 OR subject ILIKE \$2\)`).
		WithArgs("sent", "%sale%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM campaigns WHERE status = \$1 AND (.+) ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("sent", "%sale%", 50, 0).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(rowOf(cols, map[string]driver.Value{"id": "c1", "status": "sent"})...))

	out, total, err := NewCampaignRepo(db).List(context.Background(), campaign.ListFilter{Status: domain.CampaignSent, Search: "sale"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, out, 1)
	assert.Equal(t, "c1", out[0].ID)
}

func TestCampaignDeleteGuardsStatus(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM campaigns WHERE id = \$1 AND status = ANY\(\$2\)`).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := NewCampaignRepo(db).Delete(context.Background(), "c1", []domain.CampaignStatus{domain.CampaignDraft})
	require.NoError(t, err)
	assert.False(t, ok)
}
