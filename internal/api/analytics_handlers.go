package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/httputil"
)

// HandleCampaignAnalytics summarizes one campaign. ?reconcile=true first
// rewrites the stored counters from the engagement records.
//
//	GET /api/campaigns/{id}/analytics
func (h *Handlers) HandleCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if r.URL.Query().Get("reconcile") == "true" {
		if _, err := h.Analytics.Reconcile(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
	}
	summary, err := h.Analytics.Campaign(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, summary)
}

// HandleExportAnalytics archives a snapshot to S3.
//
//	POST /api/campaigns/{id}/analytics/export
func (h *Handlers) HandleExportAnalytics(w http.ResponseWriter, r *http.Request) {
	if h.Reports == nil {
		httputil.ErrorCode(w, http.StatusNotImplemented, "not_configured", "report export is not configured")
		return
	}
	key, err := h.Reports.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, map[string]string{"key": key})
}

// HandleWindowAnalytics summarizes every campaign record created in a window.
// Bounds are RFC 3339 timestamps or dates; to defaults to now and from to
// thirty days before to.
//
//	GET /api/analytics?from=&to=
func (h *Handlers) HandleWindowAnalytics(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := parseBound(v)
		if err != nil {
			httputil.BadRequest(w, "invalid to: "+err.Error())
			return
		}
		to = t
	}
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := parseBound(v)
		if err != nil {
			httputil.BadRequest(w, "invalid from: "+err.Error())
			return
		}
		from = t
	}
	if !to.After(from) {
		httputil.BadRequest(w, "to must be after from")
		return
	}

	summary, err := h.Analytics.Window(r.Context(), from, to)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, summary)
}

func parseBound(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", v)
}
