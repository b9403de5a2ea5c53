package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/api"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/config"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
)

type harness struct {
	router    http.Handler
	handlers  *api.Handlers
	campaigns *fakeCampaigns
	sender    *fakeSender
	resolver  *fakeResolver
	supp      *fakeSuppressions
	analytics *fakeAnalytics
}

func newHarness(t *testing.T, withOptional bool, cs ...domain.Campaign) *harness {
	t.Helper()
	h := &harness{
		campaigns: newFakeCampaigns(cs...),
		sender:    &fakeSender{},
		resolver:  &fakeResolver{},
		supp:      newFakeSuppressions(),
		analytics: &fakeAnalytics{},
	}
	deps := api.Deps{
		Campaigns:    h.campaigns,
		Sender:       h.sender,
		Resolver:     h.resolver,
		Segments:     fakeSegments{},
		Suppressions: h.supp,
		Analytics:    h.analytics,
	}
	if withOptional {
		deps.Reports = fakeReports{}
		deps.Feedback = fakeFeedback{}
	}
	h.handlers = api.NewHandlers(context.Background(), deps)
	h.router = api.NewRouter(config.ServerConfig{}, h.handlers, nil, nil)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func draft(id string) domain.Campaign {
	return domain.Campaign{ID: id, Name: "Spring sale", Subject: "Hi", Status: domain.CampaignDraft}
}

func TestCreateAndGetCampaign(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodPost, "/api/campaigns", `{"name":"Launch","subject":"Hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "draft", body["status"])

	rec = h.do(t, http.MethodGet, "/api/campaigns/"+body["id"].(string), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Launch", decode(t, rec)["name"])
}

func TestCreateCampaign_ValidationIs400(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodPost, "/api/campaigns", `{"subject":"Hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/campaigns", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCampaign_NotFound(t *testing.T) {
	h := newHarness(t, false)
	rec := h.do(t, http.MethodGet, "/api/campaigns/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCampaigns_PassesFiltersAndPaginates(t *testing.T) {
	h := newHarness(t, false, draft("c1"), draft("c2"))

	rec := h.do(t, http.MethodGet, "/api/campaigns?status=draft&category=events&search=sale&page=2&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, domain.CampaignDraft, h.campaigns.lastList.Status)
	assert.Equal(t, domain.CategoryEvents, h.campaigns.lastList.Category)
	assert.Equal(t, "sale", h.campaigns.lastList.Search)
	assert.Equal(t, 1, h.campaigns.lastList.Limit)
	assert.Equal(t, 1, h.campaigns.lastList.Offset)

	meta := decode(t, rec)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, meta["total"])
	assert.EqualValues(t, 2, meta["total_pages"])
	assert.Equal(t, false, meta["has_more"])
}

func TestListCampaigns_OffsetOverridesPage(t *testing.T) {
	h := newHarness(t, false, draft("c1"))

	rec := h.do(t, http.MethodGet, "/api/campaigns?page=9&offset=3&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, h.campaigns.lastList.Offset)
	assert.Equal(t, 2, h.campaigns.lastList.Limit)

	meta := decode(t, rec)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, meta["page"])
	assert.EqualValues(t, 3, meta["offset"])
}

func TestListCampaigns_CapsLimit(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/campaigns?limit=100000&page=-4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200, h.campaigns.lastList.Limit)
	assert.Equal(t, 0, h.campaigns.lastList.Offset)
}

func TestListSuppressions_EmptyListIsArray(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/suppressions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decode(t, rec)["data"])
}

func TestUpdateCampaign_ConflictWhenSent(t *testing.T) {
	c := draft("c1")
	c.Status = domain.CampaignSent
	h := newHarness(t, false, c)

	rec := h.do(t, http.MethodPut, "/api/campaigns/c1", `{"name":"Renamed"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "state_conflict", decode(t, rec)["code"])
}

func TestSendCampaign_RunsInBackground(t *testing.T) {
	h := newHarness(t, false, draft("c1"))

	rec := h.do(t, http.MethodPost, "/api/campaigns/c1/send", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "c1", decode(t, rec)["campaign_id"])

	h.handlers.Wait()
	assert.Equal(t, []string{"c1"}, h.sender.sent())
}

func TestSendCampaign_WaitReturnsResult(t *testing.T) {
	h := newHarness(t, false, draft("c1"))

	rec := h.do(t, http.MethodPost, "/api/campaigns/c1/send?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["sent"])
}

func TestSendCampaign_ResumesSending(t *testing.T) {
	c := draft("c1")
	c.Status = domain.CampaignSending
	h := newHarness(t, false, c)

	rec := h.do(t, http.MethodPost, "/api/campaigns/c1/send?wait=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendCampaign_ConflictIsSynchronous(t *testing.T) {
	c := draft("c1")
	c.Status = domain.CampaignSent
	h := newHarness(t, false, c)

	rec := h.do(t, http.MethodPost, "/api/campaigns/c1/send", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	h.handlers.Wait()
	assert.Empty(t, h.sender.sent())
}

func TestSendTest_RequiresEmails(t *testing.T) {
	h := newHarness(t, false, draft("c1"))

	rec := h.do(t, http.MethodPost, "/api/campaigns/c1/test", `{"emails":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/campaigns/c1/test", `{"emails":["qa@example.com"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [][]string{{"qa@example.com"}}, h.sender.tests)
}

func TestScheduleLifecycle(t *testing.T) {
	h := newHarness(t, false, draft("c1"))

	rec := h.do(t, http.MethodPost, "/api/campaigns/c1/schedule", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec = h.do(t, http.MethodPost, "/api/campaigns/c1/schedule", `{"scheduled_at":"`+at+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "scheduled", decode(t, rec)["status"])

	rec = h.do(t, http.MethodPost, "/api/campaigns/c1/unschedule", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft", decode(t, rec)["status"])

	rec = h.do(t, http.MethodPost, "/api/campaigns/c1/unschedule", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelAndDelete(t *testing.T) {
	h := newHarness(t, false, draft("c1"), draft("c2"))

	rec := h.do(t, http.MethodPost, "/api/campaigns/c1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode(t, rec)["status"])

	rec = h.do(t, http.MethodDelete, "/api/campaigns/c2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodDelete, "/api/campaigns/c2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicateCampaign(t *testing.T) {
	h := newHarness(t, false, draft("c1"))

	rec := h.do(t, http.MethodPost, "/api/campaigns/c1/duplicate", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Spring sale (Copy)", decode(t, rec)["name"])
}

func TestCampaignAnalytics_Reconcile(t *testing.T) {
	h := newHarness(t, false, draft("c1"))

	rec := h.do(t, http.MethodGet, "/api/campaigns/c1/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, h.analytics.reconciled)

	rec = h.do(t, http.MethodGet, "/api/campaigns/c1/analytics?reconcile=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"c1"}, h.analytics.reconciled)
	assert.EqualValues(t, 4, decode(t, rec)["opened"])
}

func TestWindowAnalytics_Bounds(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/analytics?from=2026-01-01&to=2026-02-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), h.analytics.from)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), h.analytics.to)

	rec = h.do(t, http.MethodGet, "/api/analytics?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/analytics?from=2026-02-01&to=2026-01-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptionalEndpoints(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, false, draft("c1"))
		assert.Equal(t, http.StatusNotImplemented, h.do(t, http.MethodPost, "/api/campaigns/c1/analytics/export", "").Code)
		assert.Equal(t, http.StatusNotImplemented, h.do(t, http.MethodPost, "/api/webhooks/ses", `{}`).Code)
	})

	t.Run("configured", func(t *testing.T) {
		h := newHarness(t, true, draft("c1"))

		rec := h.do(t, http.MethodPost, "/api/campaigns/c1/analytics/export", "")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "campaign-reports/c1/snapshot.json", decode(t, rec)["key"])

		rec = h.do(t, http.MethodPost, "/api/webhooks/ses", `{"Type":"Notification"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Bounce", decode(t, rec)["kind"])

		rec = h.do(t, http.MethodPost, "/api/webhooks/ses", `garbage`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResolveRecipients_CapsLimit(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodPost, "/api/recipients/resolve", `{"emails":["a@example.com","b@example.com"],"limit":5000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1000, h.resolver.last.Limit)
	assert.EqualValues(t, 2, decode(t, rec)["total_count"])
}

func TestSegments(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodPost, "/api/segments", `{"name":"VIP","filter":{"subscriptions":["premium"]}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 7, decode(t, rec)["estimated_count"])

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/segments/nope", "").Code)

	rec = h.do(t, http.MethodPost, "/api/segments/s1/estimate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, decode(t, rec)["estimated_count"])
}

func TestSuppressions(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodPost, "/api/suppressions", `{"email":"Jane@Example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "jane@example.com", decode(t, rec)["email"])

	rec = h.do(t, http.MethodPost, "/api/suppressions", `{"email":"jane@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["created"])

	rec = h.do(t, http.MethodGet, "/api/suppressions/JANE@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "manual", body["reason"])
	assert.Equal(t, "admin", body["source"])

	rec = h.do(t, http.MethodGet, "/api/suppressions/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["active"])

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/suppressions/jane@example.com", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/suppressions/jane@example.com", "").Code)
}

func TestHealthRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := newHarness(t, false)
	health := api.NewHealthChecker(nil, rdb, nil, "")
	router := api.NewRouter(config.ServerConfig{}, h.handlers, health, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "up", checks["redis"].(map[string]interface{})["status"])

	mr.Close()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
