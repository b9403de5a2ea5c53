package api

import (
	"context"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Deps are the services behind the admin API. Reports and Feedback may be
// nil, which disables their endpoints.
type Deps struct {
	Campaigns    CampaignService
	Sender       Sender
	Resolver     Resolver
	Segments     SegmentService
	Suppressions SuppressionService
	Analytics    Analytics
	Reports      ReportExporter
	Feedback     FeedbackProcessor
}

// Handlers serves the admin API.
type Handlers struct {
	Deps

	// baseCtx outlives requests; background sends run under it.
	baseCtx context.Context
	sends   sync.WaitGroup
}

// NewHandlers creates the admin handlers. Background sends are cancelled
// with ctx.
func NewHandlers(ctx context.Context, deps Deps) *Handlers {
	return &Handlers{Deps: deps, baseCtx: ctx}
}

// Wait blocks until background sends have returned.
func (h *Handlers) Wait() { h.sends.Wait() }

// RegisterRoutes mounts every admin route on r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.HandleListCampaigns)
		r.Post("/", h.HandleCreateCampaign)
		r.Get("/{id}", h.HandleGetCampaign)
		r.Put("/{id}", h.HandleUpdateCampaign)
		r.Delete("/{id}", h.HandleDeleteCampaign)

		r.Post("/{id}/send", h.HandleSendCampaign)
		r.Post("/{id}/test", h.HandleSendTest)
		r.Post("/{id}/schedule", h.HandleScheduleCampaign)
		r.Post("/{id}/unschedule", h.HandleUnscheduleCampaign)
		r.Post("/{id}/cancel", h.HandleCancelCampaign)
		r.Post("/{id}/duplicate", h.HandleDuplicateCampaign)

		r.Get("/{id}/analytics", h.HandleCampaignAnalytics)
		r.Post("/{id}/analytics/export", h.HandleExportAnalytics)
	})

	r.Get("/analytics", h.HandleWindowAnalytics)

	r.Post("/recipients/resolve", h.HandleResolveRecipients)
	r.Route("/segments", func(r chi.Router) {
		r.Post("/", h.HandleCreateSegment)
		r.Get("/{id}", h.HandleGetSegment)
		r.Post("/{id}/estimate", h.HandleEstimateSegment)
	})

	r.Route("/suppressions", func(r chi.Router) {
		r.Get("/", h.HandleListSuppressions)
		r.Post("/", h.HandleSuppress)
		r.Get("/stats", h.HandleSuppressionStats)
		r.Get("/{email}", h.HandleGetSuppression)
		r.Delete("/{email}", h.HandleResubscribe)
	})

	r.Post("/webhooks/ses", h.HandleSESWebhook)
}
