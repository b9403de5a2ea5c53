package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/httputil"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
)

// HandleListSuppressions lists suppression entries.
//
//	GET /api/suppressions?reason=&source=&active=&search=&page=&offset=&limit=
func (h *Handlers) HandleListSuppressions(w http.ResponseWriter, r *http.Request) {
	p := parsePageWindow(r, 50, 500)
	q := r.URL.Query()
	list, total, err := h.Suppressions.List(r.Context(), suppression.ListFilter{
		Reason:     domain.SuppressionReason(q.Get("reason")),
		Source:     domain.SuppressionSource(q.Get("source")),
		ActiveOnly: q.Get("active") != "false",
		Search:     q.Get("search"),
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, newListResponse(list, p, total))
}

// HandleSuppress adds an address by hand. Reason and source default to
// manual and admin.
func (h *Handlers) HandleSuppress(w http.ResponseWriter, r *http.Request) {
	var in suppression.SuppressInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.Reason == "" {
		in.Reason = domain.ReasonManual
	}
	if in.Source == "" {
		in.Source = domain.SourceAdmin
	}
	created, err := h.Suppressions.Suppress(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.JSON(w, status, map[string]interface{}{"email": domain.NormalizeEmail(in.Email), "suppressed": true, "created": created})
}

func (h *Handlers) HandleSuppressionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Suppressions.GetStats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, stats)
}

func (h *Handlers) HandleGetSuppression(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}
	e, err := h.Suppressions.Get(r.Context(), email)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, e)
}

// HandleResubscribe deactivates a suppression.
//
//	DELETE /api/suppressions/{email}
func (h *Handlers) HandleResubscribe(w http.ResponseWriter, r *http.Request) {
	email, ok := emailParam(w, r)
	if !ok {
		return
	}
	if err := h.Suppressions.Resubscribe(r.Context(), email); err != nil {
		respondError(w, err)
		return
	}
	httputil.NoContent(w)
}

func emailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		httputil.BadRequest(w, "invalid email")
		return "", false
	}
	return domain.NormalizeEmail(email), true
}
