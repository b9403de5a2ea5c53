package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/httputil"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
)

const maxPreviewLimit = 1000

type resolveRequest struct {
	Filter    domain.RecipientFilterSpec `json:"filter"`
	Emails    []string                   `json:"emails"`
	Offset    int                        `json:"offset"`
	Limit     int                        `json:"limit"`
	CountOnly bool                       `json:"count_only"`
}

// HandleResolveRecipients previews an audience without sending.
//
//	POST /api/recipients/resolve
func (h *Handlers) HandleResolveRecipients(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Limit <= 0 || req.Limit > maxPreviewLimit {
		req.Limit = maxPreviewLimit
	}
	res, err := h.Resolver.Resolve(r.Context(), req.Filter, req.Emails, recipient.ResolveOptions{
		Offset:    req.Offset,
		Limit:     req.Limit,
		CountOnly: req.CountOnly,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, res)
}

type segmentRequest struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Filter      domain.RecipientFilterSpec `json:"filter"`
}

func (h *Handlers) HandleCreateSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	seg, err := h.Segments.Create(r.Context(), req.Name, req.Description, req.Filter)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, seg)
}

func (h *Handlers) HandleGetSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := h.Segments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, seg)
}

func (h *Handlers) HandleEstimateSegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.Segments.Estimate(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"segment_id": id, "estimated_count": n})
}
