package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/httputil"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
)

// HandleListCampaigns lists campaigns, newest first.
//
//	GET /api/campaigns?status=&category=&search=&page=&offset=&limit=
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	p := parsePageWindow(r, 25, 200)
	q := r.URL.Query()
	list, total, err := h.Campaigns.List(r.Context(), campaign.ListFilter{
		Status:   domain.CampaignStatus(q.Get("status")),
		Category: domain.CampaignCategory(q.Get("category")),
		Search:   q.Get("search"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, newListResponse(list, p, total))
}

func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.Campaigns.Create(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, c)
}

// HandleGetCampaign returns the campaign with its recipient ledger.
func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) HandleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var in campaign.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.Campaigns.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) HandleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.Campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	httputil.NoContent(w)
}

// HandleSendCampaign starts or resumes a send. By default the send runs in
// the background and the call returns 202; ?wait=true blocks and returns
// the result. Lifecycle conflicts are reported synchronously either way.
//
//	POST /api/campaigns/{id}/send
func (h *Handlers) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.Campaigns.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if c.Status != domain.CampaignSending {
		if err := campaign.Check(id, c.Status, campaign.ActionStart); err != nil {
			respondError(w, err)
			return
		}
	}

	if r.URL.Query().Get("wait") == "true" {
		result, err := h.Sender.Send(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		httputil.OK(w, result)
		return
	}

	h.sends.Add(1)
	go func() {
		defer h.sends.Done()
		result, err := h.Sender.Send(h.baseCtx, id)
		if err != nil {
			logger.Error("[API] background send failed", "campaign_id", id, "error", err)
			return
		}
		logger.Info("[API] background send finished", "campaign_id", id, "sent", result.Sent, "failed", result.Failed)
	}()
	httputil.Accepted(w, map[string]string{"campaign_id": id, "status": string(domain.CampaignSending)})
}

type testSendRequest struct {
	Emails []string `json:"emails"`
}

func (h *Handlers) HandleSendTest(w http.ResponseWriter, r *http.Request) {
	var req testSendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Emails) == 0 {
		httputil.BadRequest(w, "emails is required")
		return
	}
	result, err := h.Sender.SendTest(r.Context(), chi.URLParam(r, "id"), req.Emails)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, result)
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (h *Handlers) HandleScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.ScheduledAt.IsZero() {
		httputil.BadRequest(w, "scheduled_at is required")
		return
	}
	h.transition(w, r, func(id string) error {
		return h.Campaigns.Schedule(r.Context(), id, req.ScheduledAt)
	})
}

func (h *Handlers) HandleUnscheduleCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id string) error { return h.Campaigns.Unschedule(r.Context(), id) })
}

func (h *Handlers) HandleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id string) error { return h.Campaigns.Cancel(r.Context(), id) })
}

// transition runs a lifecycle change and answers with the updated campaign.
func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, fn func(id string) error) {
	id := chi.URLParam(r, "id")
	if err := fn(id); err != nil {
		respondError(w, err)
		return
	}
	c, err := h.Campaigns.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, c)
}

type duplicateRequest struct {
	CreatedBy string `json:"created_by"`
}

func (h *Handlers) HandleDuplicateCampaign(w http.ResponseWriter, r *http.Request) {
	var req duplicateRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.Campaigns.Duplicate(r.Context(), chi.URLParam(r, "id"), req.CreatedBy)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, c)
}
